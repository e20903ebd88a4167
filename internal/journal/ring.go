package journal

import "sync/atomic"

// Ring is a bounded channel-like buffer with overwrite-oldest semantics.
//
// The manager publishes lifecycle events through a Ring so a slow or absent
// consumer can never block a simulation trigger: when the buffer is full the
// oldest event is dropped and counted in the metrics.
//
// Readers either range over C() like a normal channel or use Receive and
// TryReceive, which additionally track the Processed metric.
type Ring[T any] struct {
	ch      chan T
	metrics FeedMetrics
}

// NewRing creates a Ring with the given capacity.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("journal: ring capacity must be > 0")
	}
	return &Ring[T]{ch: make(chan T, capacity)}
}

// C returns the underlying receive-only channel. Reads through C() bypass the
// Processed metric.
func (r *Ring[T]) C() <-chan T {
	return r.ch
}

// ForceSend inserts an item without ever blocking, discarding the oldest
// buffered item if needed. Returns true when an item was discarded.
func (r *Ring[T]) ForceSend(v T) bool {
	dropped := false

	select {
	case r.ch <- v:
		r.metrics.addWritten(1)
	default:
		select {
		case <-r.ch: // drop oldest
			r.metrics.addOverwritten(1)
			dropped = true
		default:
		}
		r.ch <- v
		r.metrics.addWritten(1)
	}

	return dropped
}

// Receive blocks until a value is available or the ring is closed.
func (r *Ring[T]) Receive() (v T, ok bool) {
	v, ok = <-r.ch
	if ok {
		r.metrics.addProcessed(1)
	}
	return
}

// TryReceive attempts a non-blocking receive, returning (zero, false) when
// nothing is buffered.
func (r *Ring[T]) TryReceive() (v T, ok bool) {
	select {
	case v, ok = <-r.ch:
		if ok {
			r.metrics.addProcessed(1)
		}
		return
	default:
		var zero T
		return zero, false
	}
}

// Len returns the number of buffered elements.
func (r *Ring[T]) Len() int {
	return len(r.ch)
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int {
	return cap(r.ch)
}

// Close closes the underlying channel. ForceSend panics afterwards.
func (r *Ring[T]) Close() {
	close(r.ch)
}

// Metrics returns a snapshot of the current counters.
func (r *Ring[T]) Metrics() FeedMetrics {
	return FeedMetrics{
		Written:     atomic.LoadInt64(&r.metrics.Written),
		Overwritten: atomic.LoadInt64(&r.metrics.Overwritten),
		Processed:   atomic.LoadInt64(&r.metrics.Processed),
	}
}

// FeedMetrics tracks ring throughput with lock-free counters.
type FeedMetrics struct {
	Written     int64
	Overwritten int64
	Processed   int64
}

func (m *FeedMetrics) addWritten(n int) {
	atomic.AddInt64(&m.Written, int64(n))
}

func (m *FeedMetrics) addOverwritten(n int) {
	atomic.AddInt64(&m.Overwritten, int64(n))
}

func (m *FeedMetrics) addProcessed(n int) {
	atomic.AddInt64(&m.Processed, int64(n))
}
