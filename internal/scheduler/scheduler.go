// Package scheduler runs periodic jobs on a cron spec. Each run takes a
// Redis lock first so that only one API instance executes a given job.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const lockPrefix = "rental:lock:"

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler wraps a cron runner with a distributed lock per job.
type Scheduler struct {
	cron    *cron.Cron
	locker  *Locker
	log     *zap.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a scheduler. rdb may be nil. Each run is bounded by lockTTL
// so it never outlives its lock.
func New(rdb *redis.Client, lockTTL time.Duration, log *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{log.Sugar()}
	locker := NewLocker(rdb, lockTTL)
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		locker:  locker,
		log:     log,
		timeout: locker.ttl,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers job under name on spec (standard 5-field cron syntax).
func (s *Scheduler) Add(spec, name string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.wg.Add(1)
		defer s.wg.Done()
		if _, err := s.RunOnce(s.ctx, name, job); err != nil {
			s.log.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.log.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// RunOnce runs job now if its lock is free. ran is false when another
// instance holds the lock.
func (s *Scheduler) RunOnce(ctx context.Context, name string, job Job) (ran bool, err error) {
	release, ok, err := s.locker.TryLock(ctx, lockPrefix+name)
	if err != nil {
		return false, fmt.Errorf("lock %s: %w", name, err)
	}
	if !ok {
		s.log.Info("job skipped; lock held elsewhere", zap.String("job", name))
		return false, nil
	}
	defer release()

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	err = job(runCtx)
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%s exceeded %s: %w", name, s.timeout, err)
	}
	s.log.Info("job finished", zap.String("job", name), zap.Duration("took", time.Since(start)), zap.Error(err))
	return true, err
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop prevents new runs, cancels running ones and waits for them or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	s.cancel()
	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger routes cron's own messages to zap.
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.s.Errorw(msg, append(kv, "error", err)...)
}
