package clicks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"shortlink/internal/metrics"
	"shortlink/internal/types"
)

// EventWriter persists a batch of clicks to the event log.
type EventWriter interface {
	InsertClicks(ctx context.Context, clicks []types.Click) error
}

// CounterStore applies the per-mapping atomic click-count increment.
type CounterStore interface {
	IncrementClickCount(ctx context.Context, id int64) error
}

type Options struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	FlushRetries  int

	// DropOldest selects the overflow policy for a full buffer: evict the
	// oldest pending click (default) or wait up to OverflowWait. Either way
	// Record returns within OverflowWait; redirects never queue behind
	// analytics.
	DropOldest   bool
	OverflowWait time.Duration
}

func (o *Options) defaults() {
	if o.BufferSize <= 0 {
		o.BufferSize = 1000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 5 * time.Second
	}
	if o.FlushRetries <= 0 {
		o.FlushRetries = 3
	}
	if o.OverflowWait <= 0 || o.OverflowWait > 5*time.Millisecond {
		o.OverflowWait = 2 * time.Millisecond
	}
}

// Recorder decouples click persistence from the redirect path. Producers
// enqueue into a bounded buffer and return immediately; a single drain
// goroutine batches events into the event log and applies the click-count
// increments, which keeps events for one mapping in enqueue order.
//
// Recording is best-effort: a batch that still fails after the retry bound
// is dropped and counted, never surfaced to the redirect caller.
type Recorder struct {
	events EventWriter
	counts CounterStore
	opts   Options

	buffer chan types.Click
	quit   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func NewRecorder(events EventWriter, counts CounterStore, opts Options) *Recorder {
	opts.defaults()
	r := &Recorder{
		events: events,
		counts: counts,
		opts:   opts,
		buffer: make(chan types.Click, opts.BufferSize),
		quit:   make(chan struct{}),
	}
	r.wg.Add(1)
	go r.worker()
	return r
}

// Record enqueues a click without waiting for persistence. The caller
// aborting its request afterwards has no effect; the click is already owned
// by the recorder.
func (r *Recorder) Record(c types.Click) {
	select {
	case r.buffer <- c:
		metrics.ClicksEnqueued.Inc()
		return
	default:
	}

	if r.opts.DropOldest {
		// Evict one pending click to make room for the newest.
		select {
		case <-r.buffer:
			metrics.ClicksDropped.WithLabelValues("buffer_full").Inc()
		default:
		}
		select {
		case r.buffer <- c:
			metrics.ClicksEnqueued.Inc()
		default:
			metrics.ClicksDropped.WithLabelValues("buffer_full").Inc()
		}
		return
	}

	timer := time.NewTimer(r.opts.OverflowWait)
	defer timer.Stop()
	select {
	case r.buffer <- c:
		metrics.ClicksEnqueued.Inc()
	case <-timer.C:
		metrics.ClicksDropped.WithLabelValues("buffer_full").Inc()
	}
}

// Close stops the worker after draining everything still buffered.
func (r *Recorder) Close() {
	r.once.Do(func() {
		close(r.quit)
	})
	r.wg.Wait()
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	var batch []types.Click
	ticker := time.NewTicker(r.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case c := <-r.buffer:
			batch = append(batch, c)
			if len(batch) >= r.opts.BatchSize {
				r.flush(batch)
				batch = nil
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(batch)
				batch = nil
			}
		case <-r.quit:
			for {
				select {
				case c := <-r.buffer:
					batch = append(batch, c)
				default:
					if len(batch) > 0 {
						r.flush(batch)
					}
					return
				}
			}
		}
	}
}

// flush writes the batch to the event log with bounded retries, then applies
// the click-count increments. Exhausted batches are dropped; losing analytics
// under sustained failure beats backpressuring redirects.
func (r *Recorder) flush(batch []types.Click) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	for attempt := 1; attempt <= r.opts.FlushRetries; attempt++ {
		if err = r.events.InsertClicks(ctx, batch); err == nil {
			break
		}
		metrics.FlushFailures.Inc()
		slog.Warn("click batch flush failed",
			"attempt", attempt, "batch_size", len(batch), "error", err)
		if attempt < r.opts.FlushRetries {
			time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
		}
	}
	if err != nil {
		metrics.ClicksDropped.WithLabelValues("flush_failed").Add(float64(len(batch)))
		slog.Error("dropping click batch after exhausted retries",
			"batch_size", len(batch), "error", err)
		return
	}

	for _, c := range batch {
		if err := r.counts.IncrementClickCount(ctx, c.MappingID); err != nil {
			slog.Warn("click count increment failed",
				"mapping_id", c.MappingID, "error", err)
		}
	}
}
