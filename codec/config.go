package codec

import (
	"fmt"
	"strings"

	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/internal/options"
)

// Default parameter values.
const (
	DefaultBlockSize = 32
	MinBlockSize     = 16
	MaxBlockSize     = 128
)

// Config holds the tunables of every algorithm. Each codec reads the fields
// that apply to it and ignores the rest.
type Config struct {
	// BlockSize is the RICE_1 block length, a power of two in [16, 128].
	BlockSize int
	// BytePix is the RICE_1 integer width in bytes (1, 2 or 4). Zero selects
	// the width of the tile's element kind.
	BytePix int
	// Scale is the HCOMPRESS_1 digitization scale. Zero and one are lossless.
	Scale int
	// Smooth enables HCOMPRESS_1 smoothing during decompression.
	Smooth bool
	// GzipLevel is the deflate level of GZIP_1 and GZIP_2.
	GzipLevel int
}

// Option configures a Config.
type Option = options.Option[*Config]

// DefaultConfig returns the configuration used when no option is given.
func DefaultConfig() Config {
	return Config{
		BlockSize: DefaultBlockSize,
		GzipLevel: -1,
	}
}

// NewConfig applies opts over DefaultConfig and validates the result.
func NewConfig(opts ...Option) (Config, error) {
	cfg := DefaultConfig()
	if err := options.Apply(&cfg, opts...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks every field against its permitted range.
func (c Config) Validate() error {
	if c.BlockSize < MinBlockSize || c.BlockSize > MaxBlockSize || c.BlockSize&(c.BlockSize-1) != 0 {
		return fmt.Errorf("rice block size %d must be a power of two in [%d, %d]: %w",
			c.BlockSize, MinBlockSize, MaxBlockSize, errs.ErrInvalidOption)
	}
	switch c.BytePix {
	case 0, 1, 2, 4:
	default:
		return fmt.Errorf("rice bytepix %d must be 1, 2 or 4: %w", c.BytePix, errs.ErrInvalidOption)
	}
	if c.Scale < 0 {
		return fmt.Errorf("hcompress scale %d must be >= 0: %w", c.Scale, errs.ErrInvalidOption)
	}
	if c.GzipLevel < -2 || c.GzipLevel > 9 {
		return fmt.Errorf("gzip level %d out of range: %w", c.GzipLevel, errs.ErrInvalidOption)
	}

	return nil
}

// Lossy reports whether the configuration discards information for
// HCOMPRESS_1.
func (c Config) Lossy() bool {
	return c.Scale > 1
}

func WithBlockSize(n int) Option {
	return options.NoError(func(c *Config) { c.BlockSize = n })
}

func WithBytePix(n int) Option {
	return options.NoError(func(c *Config) { c.BytePix = n })
}

func WithScale(scale int) Option {
	return options.NoError(func(c *Config) { c.Scale = scale })
}

func WithSmooth(smooth bool) Option {
	return options.NoError(func(c *Config) { c.Smooth = smooth })
}

func WithGzipLevel(level int) Option {
	return options.NoError(func(c *Config) { c.GzipLevel = level })
}

// WithParam applies a ZNAMEi/ZVALi pair. Unknown names are rejected so that
// a table written by a newer writer is not silently misread.
func WithParam(name string, value int64) Option {
	return options.New(func(c *Config) error {
		switch strings.ToUpper(strings.TrimSpace(name)) {
		case "BLOCKSIZE":
			c.BlockSize = int(value)
		case "BYTEPIX":
			c.BytePix = int(value)
		case "SCALE":
			c.Scale = int(value)
		case "SMOOTH":
			c.Smooth = value != 0
		case "NOISEBIT":
			// quantization level of old writers, handled by the quantizer
		default:
			return fmt.Errorf("compression parameter %q: %w", name, errs.ErrInvalidOption)
		}

		return nil
	})
}
