package journal

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/srg/blesim/internal/groutine"
)

const (
	// Journal lifecycle states, stored atomically in Journal.state
	stateNotRunning uint32 = iota
	stateRunning
	stateStopping

	// MaxCapacity guards against accidental misconfiguration.
	MaxCapacity uint32 = 1024 * 1024
)

// Metrics provides lock-free counters for a Journal.
type Metrics struct {
	EventsRetained    int64 // events successfully enqueued
	EventsOverwritten int64 // events lost to buffer overflow
	Errors            int64
}

// Journal retains lifecycle events from a feed channel in an overlapped MPMC
// ring buffer. When the buffer is full the oldest events are overwritten, so
// the journal always holds the most recent window of activity.
//
// All methods are thread-safe.
type Journal struct {
	events  <-chan Event
	buffer  mpmc.RichOverlappedRingBuffer[Event]
	stop    chan struct{}
	done    chan struct{}
	onError func(error)
	state   uint32

	retained    int64
	overwritten int64
	errors      int64
}

// New creates a journal reading from ch. capacity sets the retained window
// size. onError is called on unexpected buffer failures; nil panics.
func New(ch <-chan Event, capacity uint32, onError func(error)) (*Journal, error) {
	if ch == nil {
		return nil, fmt.Errorf("event channel cannot be nil")
	}
	if capacity == 0 {
		return nil, fmt.Errorf("journal capacity must be > 0")
	}
	if capacity > MaxCapacity {
		return nil, fmt.Errorf("journal capacity %d exceeds maximum %d", capacity, MaxCapacity)
	}

	if onError == nil {
		onError = func(err error) {
			panic(fmt.Sprintf("journal: %v", err))
		}
	}

	return &Journal{
		events:  ch,
		buffer:  mpmc.NewOverlappedRingBuffer[Event](capacity),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		onError: onError,
	}, nil
}

// Start begins retaining events in a background goroutine. Blocks until the
// goroutine is running or a startup timeout expires.
func (j *Journal) Start() error {
	if !atomic.CompareAndSwapUint32(&j.state, stateNotRunning, stateRunning) {
		switch atomic.LoadUint32(&j.state) {
		case stateRunning:
			return fmt.Errorf("journal is already running")
		case stateStopping:
			return fmt.Errorf("journal is stopping, wait for it to finish")
		default:
			return fmt.Errorf("journal is in unknown state")
		}
	}

	// Fresh channels per start cycle so a restarted journal cannot close an
	// already-closed channel.
	j.stop = make(chan struct{})
	j.done = make(chan struct{})

	started := make(chan struct{}, 1)

	groutine.Go(context.Background(), "journal-consumer", func(_ context.Context) {
		started <- struct{}{}

		defer func() {
			close(j.done)
			atomic.StoreUint32(&j.state, stateNotRunning)
		}()
		for {
			select {
			case <-j.stop:
				return
			case ev, ok := <-j.events:
				if !ok {
					return // feed closed
				}
				overwrites, err := j.buffer.EnqueueM(ev)
				if err != nil {
					atomic.AddInt64(&j.errors, 1)
					j.onError(fmt.Errorf("unexpected journal enqueue error: %w", err))
					return
				}
				atomic.AddInt64(&j.overwritten, int64(overwrites))
				atomic.AddInt64(&j.retained, 1)
			}
		}
	})

	select {
	case <-started:
		return nil
	case <-time.After(1 * time.Second):
		close(j.stop)
		<-j.done
		return fmt.Errorf("journal failed to start within 1s timeout")
	}
}

// Stop stops event retention and waits for the goroutine to exit.
func (j *Journal) Stop() error {
	if !atomic.CompareAndSwapUint32(&j.state, stateRunning, stateStopping) {
		switch atomic.LoadUint32(&j.state) {
		case stateNotRunning:
			return nil // already stopped
		case stateStopping:
			// already stopping, fall through and wait
		default:
			return fmt.Errorf("journal is in unknown state")
		}
	} else {
		close(j.stop)
	}

	select {
	case <-j.done:
		return nil
	case <-time.After(5 * time.Second):
		<-j.done
		return fmt.Errorf("stop completed but exceeded 5s timeout")
	}
}

// Drain removes and returns all retained events in arrival order.
func (j *Journal) Drain() ([]Event, error) {
	var out []Event
	for !j.buffer.IsEmpty() {
		ev, err := j.buffer.Dequeue()
		if err != nil {
			return out, fmt.Errorf("journal dequeue error: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// Transcript drains the journal and renders one line per event. The result is
// stable across runs (no timestamps), suitable for golden comparisons.
func (j *Journal) Transcript() (string, error) {
	events, err := j.Drain()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, ev := range events {
		b.WriteString(ev.TranscriptLine())
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// GetMetrics returns a copy of the current counters.
func (j *Journal) GetMetrics() Metrics {
	return Metrics{
		EventsRetained:    atomic.LoadInt64(&j.retained),
		EventsOverwritten: atomic.LoadInt64(&j.overwritten),
		Errors:            atomic.LoadInt64(&j.errors),
	}
}
