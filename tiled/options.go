package tiled

import (
	"fmt"
	"runtime"
	"slices"

	"github.com/arloliu/fitstile/codec"
	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/format"
	"github.com/arloliu/fitstile/internal/options"
	"github.com/arloliu/fitstile/logger"
	"github.com/arloliu/fitstile/metrics"
	"github.com/arloliu/fitstile/quant"
	"github.com/arloliu/fitstile/table"
)

// FailurePolicy decides what happens after a tile fails.
type FailurePolicy uint8

const (
	// AbortOnFirst stops dispatching tiles after the first failure. Tiles
	// already running finish.
	AbortOnFirst FailurePolicy = iota
	// CollectAll runs every tile and reports all failures together.
	CollectAll
)

func (p FailurePolicy) String() string {
	switch p {
	case AbortOnFirst:
		return "AbortOnFirst"
	case CollectAll:
		return "CollectAll"
	default:
		return "Unknown"
	}
}

// config is shared by Compressor and Decompressor. The decompressor only
// looks at the scheduling and observability fields.
type config struct {
	tileDims        []int
	compression     format.CompressionType
	codecOpts       []codec.Option
	quant           quant.Options
	nullPolicy      format.NullPolicy
	maskCompression format.CompressionType
	form            table.DescriptorForm
	workers         int
	failure         FailurePolicy
	logger          logger.Logger
	metrics         *metrics.Metrics
}

// Option configures a Compressor or Decompressor.
type Option = options.Option[*config]

func defaultConfig() config {
	return config{
		compression:     format.CompressionRice,
		quant:           quant.DefaultOptions(),
		nullPolicy:      format.NullSentinel,
		maskCompression: format.CompressionPLIO,
		form:            table.FormP,
		workers:         runtime.GOMAXPROCS(0),
		failure:         AbortOnFirst,
		logger:          logger.NopLogger,
	}
}

// WithTileDims sets ZTILEn, axis 0 first. Without it the image is tiled row
// by row, except under HCOMPRESS_1 which gets blocks of up to 16 rows.
func WithTileDims(dims ...int) Option {
	return options.New(func(c *config) error {
		for _, d := range dims {
			if d <= 0 {
				return fmt.Errorf("tile dims %v: %w", dims, errs.ErrInvalidGeometry)
			}
		}
		c.tileDims = slices.Clone(dims)

		return nil
	})
}

// WithCompression selects the tile algorithm.
func WithCompression(t format.CompressionType) Option {
	return options.New(func(c *config) error {
		if t == format.CompressionUnknown {
			return fmt.Errorf("compression %s: %w", t, errs.ErrUnknownCodec)
		}
		c.compression = t

		return nil
	})
}

// WithCodecOptions passes algorithm parameters such as the Rice block size.
func WithCodecOptions(opts ...codec.Option) Option {
	return options.NoError(func(c *config) {
		c.codecOpts = append(c.codecOpts, opts...)
	})
}

// WithQuantization configures how float tiles are turned into integers.
// Method QuantizeOff stores float pixels as they are, which only the
// byte-oriented algorithms accept.
func WithQuantization(q quant.Options) Option {
	return options.NoError(func(c *config) { c.quant = q })
}

// WithNullPolicy chooses how undefined pixels are persisted.
func WithNullPolicy(p format.NullPolicy) Option {
	return options.New(func(c *config) error {
		if p != format.NullSentinel && p != format.NullMaskColumn {
			return fmt.Errorf("null policy %s: %w", p, errs.ErrInvalidOption)
		}
		c.nullPolicy = p

		return nil
	})
}

// WithMaskCompression sets ZMASKCMP, the algorithm of the NULL_PIXEL_MASK
// column. It defaults to PLIO_1.
func WithMaskCompression(t format.CompressionType) Option {
	return options.New(func(c *config) error {
		if t == format.CompressionUnknown || t == format.CompressionHCompress {
			return fmt.Errorf("mask compression %s: %w", t, errs.ErrInvalidOption)
		}
		c.maskCompression = t

		return nil
	})
}

// WithDescriptorForm selects 32-bit (P) or 64-bit (Q) heap descriptors.
func WithDescriptorForm(f table.DescriptorForm) Option {
	return options.New(func(c *config) error {
		if f != table.FormP && f != table.FormQ {
			return fmt.Errorf("descriptor form %q: %w", f, errs.ErrInvalidOption)
		}
		c.form = f

		return nil
	})
}

// WithWorkers bounds the number of tiles processed at once. n <= 0 selects
// runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return options.NoError(func(c *config) {
		if n <= 0 {
			n = runtime.GOMAXPROCS(0)
		}
		c.workers = n
	})
}

func WithFailurePolicy(p FailurePolicy) Option {
	return options.New(func(c *config) error {
		if p != AbortOnFirst && p != CollectAll {
			return fmt.Errorf("failure policy %d: %w", p, errs.ErrInvalidOption)
		}
		c.failure = p

		return nil
	})
}

func WithLogger(l logger.Logger) Option {
	return options.NoError(func(c *config) {
		if l == nil {
			l = logger.NopLogger
		}
		c.logger = l
	})
}

// WithMetrics records tile counters on m. A nil m disables metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return options.NoError(func(c *config) { c.metrics = m })
}
