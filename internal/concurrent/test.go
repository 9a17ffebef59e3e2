package concurrent

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Assertion waits for an expected number of asynchronous events.
type Assertion struct {
	counter  *Counter
	expected int
	seen     int64
	extra    int64
}

func NewAssertion(expected int) *Assertion {
	wg := new(sync.WaitGroup)
	wg.Add(expected)
	return &Assertion{
		counter:  NewCounter(wg),
		expected: expected,
	}
}

// Expect tracks one event, events beyond the expected count are recorded as failures.
func (a *Assertion) Expect(v interface{}) {
	if atomic.AddInt64(&a.seen, 1) > int64(a.expected) {
		atomic.AddInt64(&a.extra, 1)
		return
	}
	a.counter.Track(v)
}

// Assert waits up to the given timeout for the expected events.
func (a *Assertion) Assert(t *testing.T, timeout time.Duration) []interface{} {
	done := make(chan struct{})
	go func() {
		a.counter.waitGroup.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Errorf("timed out after %v with %d of %d events", timeout, a.counter.Get(), a.expected)
	}
	assert.Equal(t, a.expected, a.counter.Get())
	assert.Equal(t, int64(0), atomic.LoadInt64(&a.extra), fmt.Sprintf("unexpected events: %v", a.counter.Values()))
	return a.counter.Values()
}
