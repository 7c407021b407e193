package bufpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferAllocation(t *testing.T) {
	t.Run("AllocatesSmallBuffer", func(t *testing.T) {
		buf := Get(100)
		defer Put(buf)

		assert.GreaterOrEqual(t, len(buf), 100)
		assert.Equal(t, DefaultSmallSize, cap(buf))
	})

	t.Run("AllocatesReadBuffer", func(t *testing.T) {
		buf := Get(10 * 1024)
		defer Put(buf)

		assert.GreaterOrEqual(t, len(buf), 10*1024)
		assert.Equal(t, DefaultReadSize, cap(buf))
	})

	t.Run("AllocatesLargeBuffer", func(t *testing.T) {
		buf := Get(100 * 1024)
		defer Put(buf)

		assert.GreaterOrEqual(t, len(buf), 100*1024)
		assert.Equal(t, DefaultLargeSize, cap(buf))
	})

	t.Run("AllocatesOversizedBuffer", func(t *testing.T) {
		buf := Get(2 * 1024 * 1024)
		defer Put(buf)

		assert.GreaterOrEqual(t, len(buf), 2*1024*1024)
		assert.Equal(t, len(buf), cap(buf))
	})

	t.Run("AllocatesZeroSizeBuffer", func(t *testing.T) {
		buf := Get(0)
		defer Put(buf)

		assert.NotNil(t, buf)
		assert.Equal(t, DefaultSmallSize, cap(buf))
	})
}

func TestBufferSizeClassBoundaries(t *testing.T) {
	for _, size := range []int{DefaultSmallSize, DefaultReadSize, DefaultLargeSize} {
		buf := Get(size)
		assert.Equal(t, size, len(buf))
		assert.Equal(t, size, cap(buf))
		Put(buf)
	}
}

func TestPutTolerance(t *testing.T) {
	t.Run("NilBuffer", func(t *testing.T) {
		Put(nil) // must not panic
	})

	t.Run("ForeignBuffer", func(t *testing.T) {
		// Not from the pool: dropped, not pooled.
		Put(make([]byte, 123))
	})
}

func TestCustomPoolClasses(t *testing.T) {
	p := NewPool(&Config{SmallSize: 16, ReadSize: 64, LargeSize: 256})

	buf := p.Get(20)
	assert.Equal(t, 64, cap(buf))
	p.Put(buf)

	buf = p.Get(300)
	assert.Equal(t, 300, cap(buf))
	p.Put(buf)
}

func TestConcurrentGetPut(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				buf := Get(1024)
				buf[0] = byte(j)
				Put(buf)
			}
		}()
	}
	wg.Wait()
}
