package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlicePoolGet(t *testing.T) {
	t.Run("exact length", func(t *testing.T) {
		s, release := Int64s.Get(100)
		defer release()

		require.Len(t, s, 100)
		require.GreaterOrEqual(t, cap(s), 100)
	})

	t.Run("grows when capacity is short", func(t *testing.T) {
		p := NewSlicePool[int32]()
		_, release := p.Get(10)
		release()

		s, release := p.Get(1000)
		defer release()
		require.Len(t, s, 1000)
	})

	t.Run("zero size", func(t *testing.T) {
		s, release := Float64s.Get(0)
		defer release()
		require.Empty(t, s)
	})
}

func BenchmarkSlicePoolGet(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		s, release := Int32s.Get(4096)
		s[0] = 1
		release()
	}
}
