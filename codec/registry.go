package codec

import (
	"fmt"
	"sort"
	"sync"

	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/format"
)

// Constructor builds a codec from a validated configuration.
type Constructor func(cfg Config) (Codec, error)

var registry = struct {
	sync.RWMutex
	ctors map[format.CompressionType]Constructor
}{ctors: make(map[format.CompressionType]Constructor)}

// Register makes an algorithm available to New. Registering the same type
// twice replaces the earlier constructor.
func Register(t format.CompressionType, ctor Constructor) {
	registry.Lock()
	defer registry.Unlock()

	registry.ctors[t] = ctor
}

// Registered lists the registered algorithms in ascending order.
func Registered() []format.CompressionType {
	registry.RLock()
	defer registry.RUnlock()

	out := make([]format.CompressionType, 0, len(registry.ctors))
	for t := range registry.ctors {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// New builds the codec for t with the given options.
func New(t format.CompressionType, opts ...Option) (Codec, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	return NewWithConfig(t, cfg)
}

// NewWithConfig builds the codec for t from an explicit configuration.
func NewWithConfig(t format.CompressionType, cfg Config) (Codec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry.RLock()
	ctor, ok := registry.ctors[t]
	registry.RUnlock()
	if !ok {
		return nil, fmt.Errorf("compression type %s: %w", t, errs.ErrUnknownCodec)
	}

	return ctor(cfg)
}

// Lookup resolves a ZCMPTYPE name and builds its codec.
func Lookup(name string, opts ...Option) (Codec, error) {
	t := format.ParseCompressionType(name)
	if t == format.CompressionUnknown {
		return nil, fmt.Errorf("compression type %q: %w", name, errs.ErrUnknownCodec)
	}

	return New(t, opts...)
}

func init() {
	Register(format.CompressionRice, func(cfg Config) (Codec, error) { return NewRice(cfg), nil })
	Register(format.CompressionPLIO, func(Config) (Codec, error) { return NewPLIO(), nil })
	Register(format.CompressionHCompress, func(cfg Config) (Codec, error) { return NewHCompress(cfg), nil })
	Register(format.CompressionGzip1, newStreamCtor(format.CompressionGzip1))
	Register(format.CompressionGzip2, newStreamCtor(format.CompressionGzip2))
	Register(format.CompressionNone, newStreamCtor(format.CompressionNone))
	Register(format.CompressionZstd, newStreamCtor(format.CompressionZstd))
	Register(format.CompressionLZ4, newStreamCtor(format.CompressionLZ4))
	Register(format.CompressionS2, newStreamCtor(format.CompressionS2))
}
