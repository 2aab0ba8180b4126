package calendarsync

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Handler executes a decoded task.
type Handler interface {
	Handle(ctx context.Context, t Task) Outcome
}

// Worker pulls tasks from a named queue and runs them through a handler.
type Worker struct {
	store        TaskStore
	queue        string
	handler      Handler
	concurrency  int
	pollInterval time.Duration
	wake         chan struct{}
	logger       logrus.FieldLogger
}

// NewWorker creates a worker pool of the given size.
func NewWorker(store TaskStore, queue string, handler Handler, concurrency int, pollInterval time.Duration, logger logrus.FieldLogger) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Worker{
		store:        store,
		queue:        queue,
		handler:      handler,
		concurrency:  concurrency,
		pollInterval: pollInterval,
		wake:         make(chan struct{}, 1),
		logger:       logger,
	}
}

// Notify wakes an idle worker. It never blocks.
func (w *Worker) Notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.WithFields(logrus.Fields{
		"queue":   w.queue,
		"workers": w.concurrency,
	}).Info("Starting calendar sync workers")

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error {
			w.loop(ctx)
			return nil
		})
	}
	err := g.Wait()

	w.logger.Info("Calendar sync workers stopped")
	return err
}

func (w *Worker) loop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		w.drain(ctx)

		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		case <-ticker.C:
		}
	}
}

// drain runs tasks until the queue has nothing runnable.
func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		ran, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.WithError(err).Error("Calendar sync worker error")
			return
		}
		if !ran {
			return
		}
	}
}

// RunOnce claims and runs a single task. It reports whether a task was claimed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	rec, err := w.store.ClaimNext(ctx, w.queue)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}

	task, err := TaskFromRecord(rec)
	if err != nil {
		w.logger.WithField("task_id", rec.ID).WithError(err).Error("Discarding unreadable calendar sync task")
		return true, w.store.Fail(ctx, rec.ID, err.Error())
	}

	outcome := w.handler.Handle(ctx, task)
	if outcome == OutcomeFailed {
		return true, w.store.Fail(ctx, rec.ID, "remote calendar operation failed")
	}
	return true, w.store.Complete(ctx, rec.ID)
}
