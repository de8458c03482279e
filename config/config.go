// Package config loads compressor settings from TOML.
//
// A config file looks like
//
//	compression = "RICE_1"
//	tile-dims = [512, 1]
//	workers = 8
//	failure-policy = "collect"
//
//	[codec]
//	block-size = 32
//
//	[quantization]
//	method = "SUBTRACTIVE_DITHER_2"
//	level = 4.0
//	dither-seed = 42
//
//	[nulls]
//	policy = "mask-column"
//	mask-compression = "PLIO_1"
//
// Every key is optional. Zero values select the compressor defaults.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/fitstile/codec"
	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/format"
	"github.com/arloliu/fitstile/logger"
	"github.com/arloliu/fitstile/metrics"
	"github.com/arloliu/fitstile/quant"
	"github.com/arloliu/fitstile/table"
	"github.com/arloliu/fitstile/tiled"
)

// Config mirrors the tiled options in a file-friendly form.
type Config struct {
	// Compression is the ZCMPTYPE name, e.g. "RICE_1" or "HCOMPRESS_1".
	Compression string `toml:"compression"`
	// TileDims is ZTILEn, axis 0 first. Empty tiles row by row, or in blocks
	// of rows for HCOMPRESS_1.
	TileDims []int `toml:"tile-dims"`
	// DescriptorForm is "P" or "Q".
	DescriptorForm string `toml:"descriptor-form"`
	// Workers bounds concurrent tiles. Zero uses GOMAXPROCS.
	Workers int `toml:"workers"`
	// FailurePolicy is "abort" or "collect".
	FailurePolicy string `toml:"failure-policy"`
	Verbose       bool   `toml:"verbose"`
	// Metrics registers tile counters when set.
	Metrics bool `toml:"metrics"`

	Codec struct {
		BlockSize int  `toml:"block-size"`
		BytePix   int  `toml:"bytepix"`
		Scale     int  `toml:"scale"`
		Smooth    bool `toml:"smooth"`
		GzipLevel int  `toml:"gzip-level"`
	} `toml:"codec"`

	Quantization struct {
		Method     string  `toml:"method"`
		Level      float64 `toml:"level"`
		DitherSeed int     `toml:"dither-seed"`
	} `toml:"quantization"`

	Nulls struct {
		// Policy is "sentinel" or "mask-column".
		Policy          string `toml:"policy"`
		MaskCompression string `toml:"mask-compression"`
	} `toml:"nulls"`
}

// Default returns the configuration the compressor uses without options.
func Default() *Config {
	q := quant.DefaultOptions()
	c := &Config{
		Compression:    format.CompressionRice.String(),
		DescriptorForm: string(table.FormP),
		FailurePolicy:  "abort",
	}
	c.Codec.BlockSize = codec.DefaultBlockSize
	c.Codec.GzipLevel = -1
	c.Quantization.Method = q.Method.String()
	c.Quantization.Level = q.Level
	c.Quantization.DitherSeed = q.DitherSeed
	c.Nulls.Policy = "sentinel"
	c.Nulls.MaskCompression = format.CompressionPLIO.String()

	return c
}

// Parse decodes a TOML document.
func Parse(data []byte) (*Config, error) {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, errors.Wrap(err, "parse config")
	}

	c := &Config{}
	if err := tree.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	// zero is a valid gzip level, so only an explicit key overrides it
	if !tree.Has("codec.gzip-level") {
		c.Codec.GzipLevel = -1
	}

	return c, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	return Parse(data)
}

// Encode writes c as TOML.
func (c *Config) Encode(w io.Writer) error {
	buf, err := toml.Marshal(*c)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	_, err = w.Write(buf)

	return err
}

// Options translates c into compressor options. Log lines go to w, which
// may be nil to discard them; reg receives the tile metrics when Metrics
// is set.
func (c *Config) Options(w io.Writer, reg prometheus.Registerer) ([]tiled.Option, error) {
	var opts []tiled.Option

	if c.Compression != "" {
		t := format.ParseCompressionType(c.Compression)
		if t == format.CompressionUnknown {
			return nil, fmt.Errorf("compression %q: %w", c.Compression, errs.ErrUnknownCodec)
		}
		opts = append(opts, tiled.WithCompression(t))
	}
	if len(c.TileDims) > 0 {
		opts = append(opts, tiled.WithTileDims(c.TileDims...))
	}
	if c.DescriptorForm != "" {
		f := strings.ToUpper(c.DescriptorForm)
		if len(f) != 1 {
			return nil, fmt.Errorf("descriptor form %q: %w", c.DescriptorForm, errs.ErrInvalidOption)
		}
		opts = append(opts, tiled.WithDescriptorForm(table.DescriptorForm(f[0])))
	}
	opts = append(opts, tiled.WithWorkers(c.Workers))

	policy, err := parseFailurePolicy(c.FailurePolicy)
	if err != nil {
		return nil, err
	}
	opts = append(opts, tiled.WithFailurePolicy(policy))

	opts = append(opts, tiled.WithCodecOptions(c.codecOptions()...))

	q, err := c.quantOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts, tiled.WithQuantization(q))

	nullOpts, err := c.nullOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts, nullOpts...)

	if w != nil {
		l := logger.NewStandardLogger(w)
		if c.Verbose {
			l = logger.NewVerboseLogger(w)
		}
		opts = append(opts, tiled.WithLogger(l))
	}

	if c.Metrics {
		m, err := metrics.New(reg)
		if err != nil {
			return nil, errors.Wrap(err, "register metrics")
		}
		opts = append(opts, tiled.WithMetrics(m))
	}

	return opts, nil
}

func (c *Config) codecOptions() []codec.Option {
	var opts []codec.Option
	if c.Codec.BlockSize != 0 {
		opts = append(opts, codec.WithBlockSize(c.Codec.BlockSize))
	}
	if c.Codec.BytePix != 0 {
		opts = append(opts, codec.WithBytePix(c.Codec.BytePix))
	}
	if c.Codec.Scale != 0 {
		opts = append(opts, codec.WithScale(c.Codec.Scale))
	}
	if c.Codec.Smooth {
		opts = append(opts, codec.WithSmooth(true))
	}

	return append(opts, codec.WithGzipLevel(c.Codec.GzipLevel))
}

func (c *Config) quantOptions() (quant.Options, error) {
	q := quant.DefaultOptions()
	if m := c.Quantization.Method; m != "" {
		switch method, ok := format.ParseQuantizeMethod(m); {
		case ok:
			q.Method = method
		case strings.EqualFold(m, "LOSSLESS"):
			q.Method = format.QuantizeLossless
		default:
			return q, fmt.Errorf("quantization method %q: %w", m, errs.ErrInvalidOption)
		}
	}
	if c.Quantization.Level != 0 {
		q.Level = c.Quantization.Level
	}
	if c.Quantization.DitherSeed != 0 {
		q.DitherSeed = c.Quantization.DitherSeed
	}

	if q.Method == format.QuantizeOff {
		return q, nil
	}

	return q, errors.Wrap(q.Validate(), "quantization")
}

func (c *Config) nullOptions() ([]tiled.Option, error) {
	var opts []tiled.Option
	switch strings.ToLower(c.Nulls.Policy) {
	case "", "sentinel":
		opts = append(opts, tiled.WithNullPolicy(format.NullSentinel))
	case "mask-column", "mask":
		opts = append(opts, tiled.WithNullPolicy(format.NullMaskColumn))
	default:
		return nil, fmt.Errorf("null policy %q: %w", c.Nulls.Policy, errs.ErrInvalidOption)
	}
	if name := c.Nulls.MaskCompression; name != "" {
		t := format.ParseCompressionType(name)
		if t == format.CompressionUnknown {
			return nil, fmt.Errorf("mask compression %q: %w", name, errs.ErrUnknownCodec)
		}
		opts = append(opts, tiled.WithMaskCompression(t))
	}

	return opts, nil
}

func parseFailurePolicy(name string) (tiled.FailurePolicy, error) {
	switch strings.ToLower(name) {
	case "", "abort", "abort-on-first":
		return tiled.AbortOnFirst, nil
	case "collect", "collect-all":
		return tiled.CollectAll, nil
	default:
		return 0, fmt.Errorf("failure policy %q: %w", name, errs.ErrInvalidOption)
	}
}
