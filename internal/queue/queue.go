// Package queue implements the in-process evaluation queue: bounded
// concurrency, FIFO dispatch, drain detection with a settle window, and a
// backfill gate that keeps the memory-heavy aggregate rebuild from racing
// the memory-heavy evaluation pipeline.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultConcurrency is the maximum number of evaluation pipelines running
// in parallel. Tuned downward from an earlier value of 5 after OOM
// incidents under thundering-herd completion.
const DefaultConcurrency = 3

// DefaultDrainWait is how long the queue must stay fully idle before the
// drain handler fires. New work arriving inside the window cancels it.
const DefaultDrainWait = 15 * time.Second

// Job is one evaluation invocable. The queue is robust to arbitrary job
// misbehaviour short of a process crash; a returned error is logged and
// counted, never propagated.
type Job func(ctx context.Context) error

// Config configures a Queue. The drain-phase callbacks are constructor
// arguments: there is no registration mutability.
type Config struct {
	// Concurrency bounds parallel jobs; defaults to DefaultConcurrency.
	Concurrency int

	// DrainWait is the idle settle window; defaults to DefaultDrainWait.
	DrainWait time.Duration

	// Backfill runs while the queue is gated, after a completed drain
	// window. Optional.
	Backfill func(ctx context.Context) error

	// OnDrained runs after the backfill phase (the continuation that
	// re-invokes the scheduler). Optional.
	OnDrained func(ctx context.Context) error

	// Logger receives queue lifecycle events. Defaults to slog.Default().
	Logger *slog.Logger
}

// item is one transient queue record.
type item struct {
	id         string
	fn         Job
	enqueuedAt time.Time
}

// Stats is a read-only snapshot of queue state.
type Stats struct {
	Active          int       `json:"active"`
	Queued          int       `json:"queued"`
	BackfillRunning bool      `json:"backfillRunning"`
	TotalEnqueued   int64     `json:"totalEnqueued"`
	TotalCompleted  int64     `json:"totalCompleted"`
	TotalFailed     int64     `json:"totalFailed"`
	TotalBackfills  int64     `json:"totalBackfills"`
	LastCompletedID string    `json:"lastCompletedId,omitempty"`
	LastCompletedAt time.Time `json:"lastCompletedAt,omitzero"`
	LastFailedID    string    `json:"lastFailedId,omitempty"`
	LastFailedAt    time.Time `json:"lastFailedAt,omitzero"`
	StartedAt       time.Time `json:"startedAt"`
}

// Queue is the owned evaluation queue. All mutable state lives behind one
// mutex; jobs run on their own goroutines and re-enter dispatch on
// completion, so no completion chain can grow the stack.
type Queue struct {
	cfg Config
	ctx context.Context

	mu              sync.Mutex
	waiting         []item
	active          int
	backfillRunning bool
	drainTimer      *time.Timer

	totalEnqueued  int64
	totalCompleted int64
	totalFailed    int64
	totalBackfills int64

	lastCompletedID string
	lastCompletedAt time.Time
	lastFailedID    string
	lastFailedAt    time.Time

	startedAt time.Time
}

// New creates a Queue. Jobs receive ctx; cancelling it is the only way to
// abandon in-flight work (the queue itself imposes no wall-clock limit).
func New(ctx context.Context, cfg Config) *Queue {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	if cfg.DrainWait <= 0 {
		cfg.DrainWait = DefaultDrainWait
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Queue{
		cfg:       cfg,
		ctx:       ctx,
		startedAt: time.Now().UTC(),
	}
}

// Enqueue appends a job and attempts dispatch. It returns the job's
// 1-based position among waiting items at enqueue time and the total
// number of items the queue holds (waiting plus active). A pending drain
// timer is cancelled: the queue is no longer idle.
func (q *Queue) Enqueue(id string, fn Job) (position, length int) {
	q.mu.Lock()

	q.cancelDrainTimerLocked()

	q.waiting = append(q.waiting, item{id: id, fn: fn, enqueuedAt: time.Now().UTC()})
	q.totalEnqueued++

	position = len(q.waiting)
	length = len(q.waiting) + q.active

	q.dispatchLocked()
	q.mu.Unlock()

	return position, length
}

// Stats returns a snapshot of queue state.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Stats{
		Active:          q.active,
		Queued:          len(q.waiting),
		BackfillRunning: q.backfillRunning,
		TotalEnqueued:   q.totalEnqueued,
		TotalCompleted:  q.totalCompleted,
		TotalFailed:     q.totalFailed,
		TotalBackfills:  q.totalBackfills,
		LastCompletedID: q.lastCompletedID,
		LastCompletedAt: q.lastCompletedAt,
		LastFailedID:    q.lastFailedID,
		LastFailedAt:    q.lastFailedAt,
		StartedAt:       q.startedAt,
	}
}

// dispatchLocked starts waiting jobs while capacity remains and the
// backfill gate is clear. Callers hold q.mu.
func (q *Queue) dispatchLocked() {
	for q.active < q.cfg.Concurrency && len(q.waiting) > 0 && !q.backfillRunning {
		next := q.waiting[0]
		q.waiting = q.waiting[1:]
		q.active++

		go q.run(next)
	}
}

// run executes one job and re-enters dispatch on completion. Each
// completion runs on its own goroutine, so rapid completion storms cannot
// overflow any stack.
func (q *Queue) run(it item) {
	err := q.invoke(it)

	q.mu.Lock()

	q.active--

	now := time.Now().UTC()
	if err != nil {
		q.totalFailed++
		q.lastFailedID = it.id
		q.lastFailedAt = now

		q.cfg.Logger.Warn("evaluation failed", "id", it.id, "error", err)
	} else {
		q.totalCompleted++
		q.lastCompletedID = it.id
		q.lastCompletedAt = now
	}

	q.dispatchLocked()
	q.maybeArmDrainTimerLocked()
	q.mu.Unlock()
}

// invoke runs the job, converting a panic into an error so a misbehaving
// pipeline cannot take down the process.
func (q *Queue) invoke(it item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{id: it.id, value: r}
		}
	}()

	return it.fn(q.ctx)
}

// maybeArmDrainTimerLocked arms the drain timer when the queue has gone
// fully idle after at least one completion. Callers hold q.mu.
func (q *Queue) maybeArmDrainTimerLocked() {
	if q.active != 0 || len(q.waiting) != 0 || q.totalCompleted == 0 || q.backfillRunning {
		return
	}

	q.cancelDrainTimerLocked()
	q.drainTimer = time.AfterFunc(q.cfg.DrainWait, q.onDrained)
}

func (q *Queue) cancelDrainTimerLocked() {
	if q.drainTimer != nil {
		q.drainTimer.Stop()
		q.drainTimer = nil
	}
}

// onDrained is the drain handler: gate, backfill, ungate, dispatch
// anything that arrived meanwhile, then the continuation. Strictly
// sequential; errors in either phase are logged, never retried here (the
// next drain tries again).
func (q *Queue) onDrained() {
	q.mu.Lock()

	// Re-check idleness: work may have slipped in between the timer firing
	// and the lock acquisition.
	if q.active != 0 || len(q.waiting) != 0 {
		q.mu.Unlock()

		return
	}

	q.drainTimer = nil
	q.backfillRunning = true
	q.mu.Unlock()

	ranBackfill := false

	if q.cfg.Backfill != nil {
		ranBackfill = true
		started := time.Now()

		err := q.cfg.Backfill(q.ctx)
		if err != nil {
			q.cfg.Logger.Error("drain backfill failed", "error", err, "duration", time.Since(started))
		} else {
			q.cfg.Logger.Info("drain backfill complete", "duration", time.Since(started))
		}
	}

	q.mu.Lock()
	q.backfillRunning = false

	if ranBackfill {
		q.totalBackfills++
	}

	q.dispatchLocked()
	q.mu.Unlock()

	if q.cfg.OnDrained != nil {
		err := q.cfg.OnDrained(q.ctx)
		if err != nil {
			q.cfg.Logger.Error("drain continuation failed", "error", err)
		}
	}
}

// panicError wraps a recovered panic from a job.
type panicError struct {
	id    string
	value any
}

func (p *panicError) Error() string {
	return "evaluation panicked: " + p.id
}
