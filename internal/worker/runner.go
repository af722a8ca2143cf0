// Package worker drives the engine on a fixed cadence. Cycles never
// overlap: a cycle still running when the next tick arrives causes the tick
// to be skipped, keeping every cycle's snapshot and state view discrete.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/costgov/costgov/internal/engine"
	"github.com/costgov/costgov/internal/pkg/logger"
	"github.com/costgov/costgov/internal/pkg/metrics"
	"github.com/costgov/costgov/internal/policystore"
)

// Runner schedules evaluation cycles and policy reloads.
type Runner struct {
	engine       *engine.Engine
	loader       *policystore.Loader
	holder       *policystore.Holder
	interval     time.Duration
	cycleTimeout time.Duration
	log          *logger.Logger
}

func NewRunner(eng *engine.Engine, loader *policystore.Loader, holder *policystore.Holder, interval, cycleTimeout time.Duration, log *logger.Logger) *Runner {
	return &Runner{
		engine:       eng,
		loader:       loader,
		holder:       holder,
		interval:     interval,
		cycleTimeout: cycleTimeout,
		log:          log,
	}
}

// Run blocks until the context is cancelled, then waits for an in-flight
// cycle to finish. The first cycle fires immediately rather than one full
// interval after start.
func (r *Runner) Run(ctx context.Context) error {
	clog := cronLogger{r.log}
	c := cron.New(cron.WithChain(
		cron.Recover(clog),
		cron.SkipIfStillRunning(clog),
	))

	if _, err := c.AddFunc(fmt.Sprintf("@every %s", r.interval), func() { r.tick(ctx) }); err != nil {
		return err
	}

	r.tick(ctx)
	c.Start()
	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	return ctx.Err()
}

// tick reloads the policy store and runs one cycle. A failed reload keeps
// the previous store active; the cycle still runs against known-good
// policies.
func (r *Runner) tick(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}

	store, rejected, err := r.loader.Load()
	if err != nil {
		r.log.ErrorWithErr(err, "policy reload failed, keeping previous store")
	} else {
		r.holder.Swap(store)
		metrics.RecordPolicyLoad(store.Len(), len(rejected))
	}

	cycleCtx := ctx
	if r.cycleTimeout > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, r.cycleTimeout)
		defer cancel()
	}
	if _, err := r.engine.RunCycle(cycleCtx); err != nil {
		r.log.ErrorWithErr(err, "cycle failed")
	}
}

// cronLogger adapts the structured logger to cron's logging interface.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugf("%s %v", msg, keysAndValues)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).Errorf("%s %v", msg, keysAndValues)
}
