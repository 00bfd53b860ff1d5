// Package flow runs a pipeline as a set of named tasks.
//
// A flow body submits tasks; each submission returns a Future immediately
// and the task runs in its own goroutine. A task may depend on other
// futures: it waits for them, and if any of them failed it ends in
// UpstreamFailed without running. Independent tasks run concurrently, up to
// Options.MaxConcurrency at a time. A failing task does not cancel its
// siblings; Run waits for every submitted task and reports all failures.
//
// Retries are a fixed count with a fixed delay between attempts.
package flow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"duckpond/internal/metrics"
)

// ErrUpstreamFailed is wrapped by the error of a task that did not run
// because one of its dependencies failed.
var ErrUpstreamFailed = errors.New("flow: upstream task failed")

// State is the lifecycle state of a task run.
type State int

const (
	Pending State = iota
	Running
	Completed
	Failed
	UpstreamFailed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case UpstreamFailed:
		return "upstream_failed"
	case Cancelled:
		return "cancelled"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// Final reports whether s is terminal.
func (s State) Final() bool { return s >= Completed }

// Task is a unit of work with its retry policy.
type Task[T any] struct {
	Name string
	// Retries is the number of extra attempts after a failure.
	Retries int
	// RetryDelay is the fixed wait between attempts.
	RetryDelay time.Duration
	Run        func(ctx context.Context) (T, error)
}

// Options configures a flow run.
type Options struct {
	// MaxConcurrency bounds the number of tasks running at once; <= 0 means
	// unbounded.
	MaxConcurrency int
	// Retries, when non-nil, replaces every task's retry count.
	Retries *int
	// RetryDelay, when non-zero, replaces every task's retry delay.
	RetryDelay time.Duration
}

// Waiter is anything a task can depend on.
type Waiter interface {
	// Wait blocks until the dependency is final and returns its error.
	Wait(ctx context.Context) error
	// Name is the task run name.
	Name() string
}

// Flow is a running flow. It is passed to the body given to Run.
type Flow struct {
	name  string
	runID string
	ctx   context.Context
	opts  Options
	sem   *semaphore.Weighted
	entry *log.Entry

	wg    sync.WaitGroup
	mu    sync.Mutex
	runs  []*taskRun
	names map[string]int
}

// Name returns the flow name.
func (f *Flow) Name() string { return f.name }

// RunID returns the unique id of this flow run.
func (f *Flow) RunID() string { return f.runID }

// Context returns the flow's context; it carries the flow name for metrics
// and a logger with flow fields.
func (f *Flow) Context() context.Context { return f.ctx }

// taskRun is the bookkeeping of one submitted task. Fields other than name
// and base are guarded by Flow.mu.
type taskRun struct {
	name     string
	base     string
	state    State
	attempts int
	started  time.Time
	ended    time.Time
	err      error
}

func (f *Flow) newRun(base string) *taskRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.names[base]
	f.names[base] = n + 1
	name := base
	if n > 0 {
		name = base + "-" + strconv.Itoa(n)
	}
	r := &taskRun{name: name, base: base}
	f.runs = append(f.runs, r)
	return r
}

func (f *Flow) set(r *taskRun, fn func(r *taskRun)) {
	f.mu.Lock()
	fn(r)
	f.mu.Unlock()
}

// Run executes body as a flow named name and waits for every task it
// submitted. The returned error joins body's error with the errors of all
// failed tasks; it is nil only when every task completed.
func Run(ctx context.Context, name string, opts Options, body func(f *Flow) error) (Summary, error) {
	runID := uuid.NewString()
	entry := log.WithFields(log.Fields{"flow": name, "run_id": runID})

	f := &Flow{
		name:  name,
		runID: runID,
		opts:  opts,
		entry: entry,
		names: map[string]int{},
	}
	if opts.MaxConcurrency > 0 {
		f.sem = semaphore.NewWeighted(int64(opts.MaxConcurrency))
	}
	f.ctx = withEntry(metrics.WithFlow(ctx, name), entry)

	start := time.Now()
	entry.Info("flow: started")

	bodyErr := runBody(f, body)
	f.wg.Wait()

	sum := f.summary(start)
	errs := []error{}
	if bodyErr != nil {
		errs = append(errs, fmt.Errorf("flow %s: %w", name, bodyErr))
	}
	for _, t := range sum.Tasks {
		if t.State == Failed || t.State == Cancelled {
			errs = append(errs, fmt.Errorf("task %s: %w", t.Name, t.Err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		sum.State = Failed
		entry.WithError(err).WithField("duration", sum.Duration).Error("flow: failed")
	} else {
		sum.State = Completed
		entry.WithField("duration", sum.Duration).Info("flow: completed")
	}
	return sum, err
}

func runBody(f *Flow, body func(f *Flow) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
		}
	}()
	return body(f)
}

// Future is the handle of a submitted task.
type Future[T any] struct {
	flow *Flow
	run  *taskRun
	done chan struct{}
	val  T
	err  error
}

// Name returns the task run name, unique within the flow.
func (fu *Future[T]) Name() string { return fu.run.name }

// Wait blocks until the task is final and returns its error.
func (fu *Future[T]) Wait(ctx context.Context) error {
	select {
	case <-fu.done:
		return fu.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Result waits for the task and returns its value.
func (fu *Future[T]) Result(ctx context.Context) (T, error) {
	if err := fu.Wait(ctx); err != nil {
		var zero T
		return zero, err
	}
	return fu.val, nil
}

// State returns the task's current state.
func (fu *Future[T]) State() State {
	fu.flow.mu.Lock()
	defer fu.flow.mu.Unlock()
	return fu.run.state
}

// Submit schedules t on f after deps and returns its Future.
func Submit[T any](f *Flow, t Task[T], deps ...Waiter) *Future[T] {
	fu := &Future[T]{flow: f, run: f.newRun(t.Name), done: make(chan struct{})}
	if f.opts.Retries != nil {
		t.Retries = *f.opts.Retries
	}
	if f.opts.RetryDelay > 0 {
		t.RetryDelay = f.opts.RetryDelay
	}
	t.Retries = max(t.Retries, 0)

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer close(fu.done)
		fu.val, fu.err = execute(f, fu.run, t, deps)
	}()
	return fu
}

func execute[T any](f *Flow, r *taskRun, t Task[T], deps []Waiter) (T, error) {
	var zero T
	ctx := f.ctx
	entry := f.entry.WithField("task", r.name)
	ctx = withEntry(ctx, entry)
	start := time.Now()

	finish := func(state State, status string, err error) {
		f.set(r, func(r *taskRun) {
			r.state = state
			r.err = err
			r.ended = time.Now()
			if r.started.IsZero() {
				r.started = start
			}
		})
		metrics.RecordTask(f.name, r.base, status, time.Since(start))
	}

	for _, d := range deps {
		if err := d.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				finish(Cancelled, metrics.StatusCancelled, ctx.Err())
				return zero, ctx.Err()
			}
			err = fmt.Errorf("%w: %s", ErrUpstreamFailed, d.Name())
			entry.WithError(err).Warn("flow: task not run")
			finish(UpstreamFailed, metrics.StatusUpstream, err)
			return zero, err
		}
	}

	if f.sem != nil {
		if err := f.sem.Acquire(ctx, 1); err != nil {
			finish(Cancelled, metrics.StatusCancelled, err)
			return zero, err
		}
		defer f.sem.Release(1)
	}

	f.set(r, func(r *taskRun) {
		r.state = Running
		r.started = time.Now()
	})

	var err error
	for attempt := 0; attempt <= t.Retries; attempt++ {
		f.set(r, func(r *taskRun) { r.attempts = attempt + 1 })

		var v T
		v, err = attemptTask(ctx, t)
		if err == nil {
			entry.WithFields(log.Fields{"attempts": attempt + 1, "duration": time.Since(start)}).Info("flow: task completed")
			finish(Completed, metrics.StatusSuccess, nil)
			return v, nil
		}
		if ctx.Err() != nil {
			break
		}
		if attempt < t.Retries {
			entry.WithError(err).WithFields(log.Fields{
				"attempt": attempt + 1,
				"retries": t.Retries,
				"delay":   t.RetryDelay,
			}).Warn("flow: task failed, retrying")
			metrics.RecordRetry(f.name, r.base)
			if serr := sleep(ctx, t.RetryDelay); serr != nil {
				break
			}
		}
	}

	if cerr := ctx.Err(); cerr != nil {
		finish(Cancelled, metrics.StatusCancelled, cerr)
		return zero, cerr
	}
	entry.WithError(err).Error("flow: task failed")
	finish(Failed, metrics.StatusFailure, err)
	return zero, err
}

func attemptTask[T any](ctx context.Context, t Task[T]) (v T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	if t.Run == nil {
		return v, fmt.Errorf("flow: task %s has no Run func", t.Name)
	}
	return t.Run(ctx)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type entryKey struct{}

func withEntry(ctx context.Context, e *log.Entry) context.Context {
	return context.WithValue(ctx, entryKey{}, e)
}

// Log returns the logger of the flow or task running in ctx, or the standard
// logger's entry outside a flow.
func Log(ctx context.Context) *log.Entry {
	if e, ok := ctx.Value(entryKey{}).(*log.Entry); ok {
		return e
	}
	return log.NewEntry(log.StandardLogger())
}
