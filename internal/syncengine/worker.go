package syncengine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultSyncInterval is the nominal scheduling period between ticks with
// no pending work (spec.md section 4.J: "60s nominal").
const DefaultSyncInterval = 60 * time.Second

type eventKind int

const (
	eventScheduledSync eventKind = iota
	eventSyncAction
)

type event struct {
	kind eventKind
}

// Worker is the single-threaded, event-queue-driven scheduler spec.md
// section 4.J describes: exactly one action in flight at a time (section
// 5), a timer goroutine that only posts events, and the queue as the sole
// synchronization boundary. This replaces the teacher's N-goroutine
// WorkerPool/DepTracker fan-out (see DESIGN.md, REDESIGN FLAGS).
type Worker struct {
	Session  *Session
	Producer *Producer
	Executor *Executor
	Interval time.Duration

	queue   chan event
	pending []Action
	timer   *time.Timer
	stop    chan struct{}
	done    chan struct{}
}

// NewWorker constructs a Worker. interval <= 0 uses DefaultSyncInterval.
func NewWorker(session *Session, producer *Producer, executor *Executor, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}

	return &Worker{
		Session:  session,
		Producer: producer,
		Executor: executor,
		Interval: interval,
		queue:    make(chan event, 16), //nolint:mnd // generous headroom; only ever 0 or 1 events pending at a time
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run starts the event loop and blocks until Stop is called or an
// invariant violation terminates it (spec.md section 7). It posts an
// initial SCHEDULED_SYNC so the first tick runs immediately rather than
// waiting a full Interval.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.done)

	w.logger().Info("sync worker starting", slog.Duration("interval", w.Interval))

	w.queue <- event{kind: eventScheduledSync}

	for {
		select {
		case <-w.stop:
			return nil
		case ev := <-w.queue:
			if err := w.handleEvent(ctx, ev); err != nil {
				w.logger().Error("sync worker terminating", slog.Any("error", err))
				return err
			}
		}
	}
}

// Stop cancels any pending timer and waits for the in-flight action (if
// any) and the run loop to finish (spec.md section 5: a worker-level
// cancellation signal that "(a) stops the timer, (b) drains the event
// queue, (c) lets the current action finish or abort cleanly").
func (w *Worker) Stop(ctx context.Context) error {
	if w.timer != nil {
		w.timer.Stop()
	}

	close(w.stop)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) handleEvent(ctx context.Context, ev event) error {
	switch ev.kind {
	case eventScheduledSync:
		return w.handleScheduledSync(ctx)
	case eventSyncAction:
		return w.handleSyncAction(ctx)
	default:
		return fmt.Errorf("syncengine: unknown event kind %d", ev.kind)
	}
}

func (w *Worker) handleScheduledSync(ctx context.Context) error {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}

	actions, err := w.Producer.Produce(ctx)
	if err != nil {
		if isInvariantViolation(err) {
			return fmt.Errorf("syncengine: producing actions: %w", err)
		}

		// Like a failed action, a failed scan is logged and retried on the
		// next tick.
		w.logger().Error("producing actions failed", slog.String("error_kind", errorKind(err)), slog.Any("error", err))
		w.scheduleNextSync()

		return nil
	}

	w.logger().Debug("produced actions", slog.Int("count", len(actions)))
	w.pending = actions

	w.postEvent(eventSyncAction)

	return nil
}

func (w *Worker) handleSyncAction(ctx context.Context) error {
	if len(w.pending) == 0 {
		w.scheduleNextSync()
		return nil
	}

	action := w.pending[0]
	w.pending = w.pending[1:]

	if err := w.Executor.Execute(ctx, action); err != nil && isInvariantViolation(err) {
		return fmt.Errorf("syncengine: invariant violation on %s: %w", action.Key, err)
	}
	// Non-invariant failures are already logged by Execute with structured
	// error_kind/file_key fields; the worker continues to the next tick,
	// which re-derives the action from fresh state (spec.md section 7).

	w.postEvent(eventSyncAction)

	return nil
}

// postEvent enqueues kind, but yields to a concurrent Stop rather than
// blocking forever if the queue is somehow full while shutting down.
func (w *Worker) postEvent(kind eventKind) {
	select {
	case w.queue <- event{kind: kind}:
	case <-w.stop:
	}
}

func (w *Worker) scheduleNextSync() {
	w.timer = time.AfterFunc(w.Interval, func() {
		select {
		case w.queue <- event{kind: eventScheduledSync}:
		case <-w.stop:
		}
	})
}

func (w *Worker) logger() *slog.Logger {
	if w.Session.Logger != nil {
		return w.Session.Logger
	}

	return slog.Default()
}

// RunOnce bypasses the event loop entirely: produce once, execute every
// resulting action sequentially, then return (spec.md section 4.J's
// run_once, used by the CLI's --once flag).
func (w *Worker) RunOnce(ctx context.Context) error {
	actions, err := w.Producer.Produce(ctx)
	if err != nil {
		return fmt.Errorf("syncengine: producing actions: %w", err)
	}

	for _, action := range actions {
		if err := w.Executor.Execute(ctx, action); err != nil && isInvariantViolation(err) {
			return fmt.Errorf("syncengine: invariant violation on %s: %w", action.Key, err)
		}
	}

	return nil
}
