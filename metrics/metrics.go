// Package metrics exposes tile compression counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "fitstile"

	MetricTilesTotal     = "tiles_total"
	MetricBytesIn        = "bytes_in_total"
	MetricBytesOut       = "bytes_out_total"
	MetricFallbacksTotal = "fallbacks_total"
	MetricTileSeconds    = "tile_duration_seconds"
)

// Label values of the direction label.
const (
	DirectionCompress   = "compress"
	DirectionDecompress = "decompress"
)

// Label values of the outcome label.
const (
	OutcomeDone   = "done"
	OutcomeFailed = "failed"
)

// Metrics groups the collectors of one compressor or decompressor. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Tiles       *prometheus.CounterVec
	BytesIn     *prometheus.CounterVec
	BytesOut    *prometheus.CounterVec
	Fallbacks   *prometheus.CounterVec
	TileSeconds *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Tiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      MetricTilesTotal,
			Help:      "Tiles processed, by direction, algorithm and outcome.",
		}, []string{"direction", "algorithm", "outcome"}),
		BytesIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      MetricBytesIn,
			Help:      "Bytes consumed by the tile codecs.",
		}, []string{"direction", "algorithm"}),
		BytesOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      MetricBytesOut,
			Help:      "Bytes produced by the tile codecs.",
		}, []string{"direction", "algorithm"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      MetricFallbacksTotal,
			Help:      "Float tiles stored losslessly because they could not be quantized.",
		}, []string{"algorithm"}),
		TileSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      MetricTileSeconds,
			Help:      "Time spent on one tile.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}, []string{"direction"}),
	}

	if reg != nil {
		for _, c := range m.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.Tiles, m.BytesIn, m.BytesOut, m.Fallbacks, m.TileSeconds}
}

// ObserveTile records one finished tile.
func (m *Metrics) ObserveTile(direction, algorithm string, failed bool, in, out int, seconds float64) {
	if m == nil {
		return
	}

	outcome := OutcomeDone
	if failed {
		outcome = OutcomeFailed
	}
	m.Tiles.WithLabelValues(direction, algorithm, outcome).Inc()
	m.TileSeconds.WithLabelValues(direction).Observe(seconds)
	if !failed {
		m.BytesIn.WithLabelValues(direction, algorithm).Add(float64(in))
		m.BytesOut.WithLabelValues(direction, algorithm).Add(float64(out))
	}
}

// ObserveFallback records a tile stored with the lossless fallback.
func (m *Metrics) ObserveFallback(algorithm string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(algorithm).Inc()
}
