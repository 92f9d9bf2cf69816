package geomeasure

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncer_CollapsesRepeats(t *testing.T) {
	var wg sync.WaitGroup
	d := newDebouncer(20*time.Millisecond, &wg)

	var runs atomic.Int32
	var last atomic.Int32
	for i := 1; i <= 5; i++ {
		i := int32(i)
		d.schedule("a", func() {
			runs.Add(1)
			last.Store(i)
		})
	}
	assert.Equal(t, 1, d.len())
	wg.Wait()

	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, int32(5), last.Load())
	assert.Equal(t, 0, d.len())
}

func TestDebouncer_KeysAreIndependent(t *testing.T) {
	var wg sync.WaitGroup
	d := newDebouncer(5*time.Millisecond, &wg)

	var runs atomic.Int32
	d.schedule("a", func() { runs.Add(1) })
	d.schedule("b", func() { runs.Add(1) })
	wg.Wait()

	assert.Equal(t, int32(2), runs.Load())
}

func TestDebouncer_Cancel(t *testing.T) {
	var wg sync.WaitGroup
	d := newDebouncer(time.Hour, &wg)

	ran := false
	d.schedule("a", func() { ran = true })
	d.schedule("b", func() { ran = true })
	d.cancel("a")
	d.cancel("missing")
	assert.Equal(t, 1, d.len())

	d.stopAll()
	assert.Equal(t, 0, d.len())

	// Stopped timers release the wait group.
	wg.Wait()
	assert.False(t, ran)
}
