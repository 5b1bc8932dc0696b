// Package job runs periodic maintenance on a cron schedule.
package job

import (
	"context"
	"fmt"
	"time"

	"github.com/fatflowers/membership/internal/app/service/membership"
	"github.com/fatflowers/membership/pkg/config"
	"github.com/fatflowers/membership/pkg/logctx"
	"github.com/fatflowers/membership/pkg/tool"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const expiryTimeout = 5 * time.Minute

// Expirer closes memberships whose window has ended.
type Expirer interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

type Scheduler struct {
	cron    *cron.Cron
	spec    string
	expirer Expirer
	log     *zap.SugaredLogger
}

func NewScheduler(cfg *config.Config, memberships *membership.Service, log *zap.SugaredLogger) *Scheduler {
	return newScheduler(cfg.Scheduler.ExpirySpec, memberships, log)
}

func newScheduler(spec string, expirer Expirer, log *zap.SugaredLogger) *Scheduler {
	cl := cronLogger{log: log}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC), cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		spec:    spec,
		expirer: expirer,
		log:     log,
	}
}

// Start registers the jobs and starts the cron loop. An empty spec disables the sweep.
func (s *Scheduler) Start() error {
	if s.spec == "" {
		s.log.Infow("expiry sweep disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunExpiry(context.Background()) }); err != nil {
		return fmt.Errorf("invalid expiry spec %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.log.Infow("scheduler started", "expiry_spec", s.spec)
	return nil
}

// Stop waits for running jobs or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunExpiry runs one expiry sweep.
func (s *Scheduler) RunExpiry(ctx context.Context) {
	ctx, cancel := context.WithTimeout(logctx.WithTraceID(ctx, tool.GenerateUUIDV7()), expiryTimeout)
	defer cancel()
	n, err := s.expirer.ExpireOverdue(ctx)
	if err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("expiry sweep failed", "expired", n, "error", err)
		return
	}
	logctx.FromCtx(ctx, s.log).Debugw("expiry sweep done", "expired", n)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}

func register(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return s.Start() },
		OnStop:  s.Stop,
	})
}

var Module = fx.Options(
	fx.Provide(NewScheduler),
	fx.Invoke(register),
)
