// Package scheduler owns the recurring check cycle: fetch every subscription,
// diff against its known slots, notify and commit.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fiffu/slotwatch/lib/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrCycleInProgress = errors.New("a check cycle is already running")

// cancelWait bounds how long Stop waits for a cycle after cancelling it.
const cancelWait = 5 * time.Second

type Store interface {
	AllActive(ctx context.Context) (models.Subscriptions, error)
	UpdateKnownSlots(ctx context.Context, id uint, slots []models.Slot, checkedAt time.Time) error
	RecordFailure(ctx context.Context, userID, url string, cause error, permanent bool, checkedAt time.Time) (*models.Subscription, error)
	MarkFailureWarned(ctx context.Context, userID, url string) error
	MarkForReview(ctx context.Context, userID, url, reason string) error
	ClearReview(ctx context.Context, userID, url string) error
}

type Scraper interface {
	Fetch(ctx context.Context, url string) (*models.Page, error)
}

type Notifier interface {
	NotifyNewSlots(ctx context.Context, sub *models.Subscription, slots []models.Slot) error
	NotifyFailureWarning(ctx context.Context, sub *models.Subscription, cause error) error
}

type Options struct {
	Interval         time.Duration
	Concurrency      int
	FailureThreshold int
	ShutdownGrace    time.Duration
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = 5 * time.Minute
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = 5
	}
	if o.ShutdownGrace <= 0 {
		o.ShutdownGrace = 30 * time.Second
	}
	return o
}

type Scheduler struct {
	store    Store
	scraper  Scraper
	notifier Notifier
	log      *zap.Logger
	opts     Options
	now      func() time.Time

	running sync.Mutex // held for the duration of a cycle

	alarm        *alarmClock
	cycleCtx     context.Context
	cancelCycles context.CancelFunc
	wg           sync.WaitGroup
}

func New(store Store, scraper Scraper, notifier Notifier, log *zap.Logger, opts Options) *Scheduler {
	return &Scheduler{
		store:    store,
		scraper:  scraper,
		notifier: notifier,
		log:      log,
		opts:     opts.withDefaults(),
		now:      time.Now,
	}
}

// Start runs the first cycle immediately and then one per interval until
// Stop. ctx only bounds startup; cycles outlive it.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cycleCtx, s.cancelCycles = context.WithCancel(context.Background())
	s.alarm = newAlarmClock(s.opts.Interval)
	ticks := s.alarm.Start(s.cycleCtx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for range ticks {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.scheduledCycle()
			}()
		}
	}()

	s.log.Sugar().Infow("Scheduler started", "interval", s.opts.Interval.String(), "concurrency", s.opts.Concurrency)
	return nil
}

// Stop halts the ticks and waits for a running cycle until the grace period
// or ctx expires, after which the cycle is cancelled and given a short while
// to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.alarm == nil {
		return nil
	}
	s.alarm.Stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	grace := time.NewTimer(s.opts.ShutdownGrace)
	defer grace.Stop()

	select {
	case <-done:
		s.cancelCycles()
		s.log.Sugar().Info("Scheduler stopped")
		return nil
	case <-grace.C:
	case <-ctx.Done():
	}

	s.log.Sugar().Warn("Cancelling running cycle")
	s.cancelCycles()

	// Let cancelled writes land before the database is closed.
	wait := time.NewTimer(cancelWait)
	defer wait.Stop()
	select {
	case <-done:
		s.log.Sugar().Info("Scheduler stopped")
	case <-wait.C:
		s.log.Sugar().Warn("Abandoning running cycle")
	}
	return nil
}

func (s *Scheduler) scheduledCycle() {
	_, err := s.RunCycle(s.cycleCtx)
	switch {
	case errors.Is(err, ErrCycleInProgress):
		cyclesSkipped.Inc()
		s.log.Sugar().Warn("Previous cycle still running, skipping tick")
	case err != nil:
		s.log.Sugar().Errorw("Cycle failed", "err", err)
	}
}

// RunCycle checks every subscription once. It returns ErrCycleInProgress
// without doing anything when another cycle is running.
func (s *Scheduler) RunCycle(ctx context.Context) (*CycleReport, error) {
	if !s.running.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer s.running.Unlock()

	start := s.now()
	id := uuid.NewString()
	c := &cycle{id: id, log: s.log.Sugar().With("cycle_id", id)}

	subs, err := s.store.AllActive(ctx)
	if err != nil {
		cyclesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load subscriptions: %w", err)
	}

	outcomes := make([]outcome, len(subs))
	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i := range subs {
		i := i
		g.Go(func() error {
			outcomes[i] = s.check(ctx, c, &subs[i])
			return nil
		})
	}
	_ = g.Wait()

	report := &CycleReport{ID: c.id, Selected: len(subs)}
	for _, o := range outcomes {
		report.add(o)
		subscriptionOutcomes.WithLabelValues(o.String()).Inc()
	}
	report.Duration = s.now().Sub(start)

	cyclesTotal.WithLabelValues("ok").Inc()
	cycleDuration.Observe(report.Duration.Seconds())
	c.log.Infow(fmt.Sprintf("Processed %d subscriptions", report.Selected), report.logFields()...)
	return report, nil
}
