package calendarsync

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// MaintenanceStore is the part of the task store the scheduler maintains.
type MaintenanceStore interface {
	ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeFinished(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler runs periodic queue maintenance.
type Scheduler struct {
	cron       *cron.Cron
	store      MaintenanceStore
	worker     *Worker
	staleAfter time.Duration
	retainDone time.Duration
	now        func() time.Time
}

// NewScheduler creates the maintenance scheduler. worker may be nil; when set
// it is woken after stale tasks are reclaimed.
func NewScheduler(store MaintenanceStore, worker *Worker, staleAfter, retainDone time.Duration) *Scheduler {
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if retainDone <= 0 {
		retainDone = 7 * 24 * time.Hour
	}

	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		store:      store,
		worker:     worker,
		staleAfter: staleAfter,
		retainDone: retainDone,
		now:        time.Now,
	}
}

// Start registers the maintenance jobs and starts the cron runner.
func (s *Scheduler) Start() error {
	log.Println("Starting sync queue scheduler...")

	// Redeliver tasks whose worker died mid-run
	if _, err := s.cron.AddFunc("@every 1m", func() {
		s.ReclaimStale(context.Background())
	}); err != nil {
		return err
	}

	// Drop old finished tasks
	if _, err := s.cron.AddFunc("@every 1h", func() {
		s.PurgeFinished(context.Background())
	}); err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("Sync queue scheduler started (stale after %s, retain %s)", s.staleAfter, s.retainDone)
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	log.Println("Stopping sync queue scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Sync queue scheduler stopped")
}

// ReclaimStale returns stuck running tasks to the queue.
func (s *Scheduler) ReclaimStale(ctx context.Context) int64 {
	return s.reclaim(ctx, s.now().Add(-s.staleAfter))
}

// ReclaimRunning returns every running task to the queue. Call it at startup,
// before the worker runs, to redeliver tasks a previous process left behind.
func (s *Scheduler) ReclaimRunning(ctx context.Context) int64 {
	return s.reclaim(ctx, s.now())
}

func (s *Scheduler) reclaim(ctx context.Context, cutoff time.Time) int64 {
	n, err := s.store.ReclaimStale(ctx, cutoff)
	if err != nil {
		log.Printf("Failed to reclaim stale sync tasks: %v", err)
		return 0
	}
	if n > 0 {
		log.Printf("Reclaimed %d stale sync tasks", n)
		if s.worker != nil {
			s.worker.Notify()
		}
	}
	return n
}

// PurgeFinished deletes finished tasks past the retention window.
func (s *Scheduler) PurgeFinished(ctx context.Context) int64 {
	n, err := s.store.PurgeFinished(ctx, s.now().Add(-s.retainDone))
	if err != nil {
		log.Printf("Failed to purge finished sync tasks: %v", err)
		return 0
	}
	if n > 0 {
		log.Printf("Purged %d finished sync tasks", n)
	}
	return n
}
