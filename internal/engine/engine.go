// Package engine orchestrates evaluation cycles. A cycle is all-or-nothing
// with respect to durable state: it captures one policy store and one
// snapshot, evaluates in parallel, dispatches the surviving actions, and
// commits threshold, baseline, and journal updates in a single transaction.
// A cancelled or failed cycle commits nothing.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/costgov/costgov/internal/dispatch"
	"github.com/costgov/costgov/internal/domain/decision"
	"github.com/costgov/costgov/internal/domain/policy"
	"github.com/costgov/costgov/internal/domain/resource"
	"github.com/costgov/costgov/internal/domain/spend"
	"github.com/costgov/costgov/internal/domain/state"
	"github.com/costgov/costgov/internal/evaluator"
	"github.com/costgov/costgov/internal/inventory"
	"github.com/costgov/costgov/internal/pkg/errors"
	"github.com/costgov/costgov/internal/pkg/logger"
	"github.com/costgov/costgov/internal/pkg/metrics"
	"github.com/costgov/costgov/internal/policystore"
	"github.com/costgov/costgov/internal/threshold"
)

// AuditWriter records the cycle's decision log. Failures are reported, never
// cycle-fatal.
type AuditWriter interface {
	WriteAudit(ctx context.Context, cycleID string, decisions []decision.Decision, now time.Time) error
}

// Options tunes one engine instance.
type Options struct {
	Workers          int
	Bucket           time.Duration
	JournalRetention time.Duration
}

// Engine runs evaluation cycles against the active policy store.
type Engine struct {
	holder     *policystore.Holder
	inv        *inventory.Service
	feeds      []inventory.SpendFeed
	eval       *evaluator.Evaluator
	dispatcher *dispatch.Dispatcher
	repo       state.Repository
	audit      AuditWriter
	opts       Options
	log        *logger.Logger

	now func() time.Time
}

// New assembles an engine. The audit writer may be nil.
func New(holder *policystore.Holder, inv *inventory.Service, feeds []inventory.SpendFeed, eval *evaluator.Evaluator, dispatcher *dispatch.Dispatcher, repo state.Repository, audit AuditWriter, opts Options, log *logger.Logger) *Engine {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Bucket <= 0 {
		opts.Bucket = time.Hour
	}
	return &Engine{
		holder:     holder,
		inv:        inv,
		feeds:      feeds,
		eval:       eval,
		dispatcher: dispatcher,
		repo:       repo,
		audit:      audit,
		opts:       opts,
		log:        log,
		now:        time.Now,
	}
}

// SetClock overrides the engine's time source. Offline evaluations and tests
// pin the cycle instant with it.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// CycleReport summarizes one completed cycle.
type CycleReport struct {
	CycleID       string        `json:"cycle_id"`
	PolicyVersion string        `json:"policy_version"`
	Resources     int           `json:"resources"`
	Decisions     int           `json:"decisions"`
	Suppressed    int           `json:"suppressed"`
	Actions       int           `json:"actions"`
	Deduplicated  int           `json:"deduplicated"`
	Errors        int           `json:"errors"`
	Duration      time.Duration `json:"duration"`
}

// RunCycle executes one full evaluation cycle. The policy store and the
// snapshot are captured once at the start; neither a store swap nor an
// inventory refresh mid-cycle is ever observed.
func (e *Engine) RunCycle(ctx context.Context) (*CycleReport, error) {
	started := e.now().UTC()
	report := &CycleReport{CycleID: uuid.NewString()}
	log := e.log.With("cycle", report.CycleID)

	store := e.holder.Current()
	if store == nil {
		metrics.RecordCycle("failed", e.now().Sub(started))
		return nil, errors.New(errors.ErrCodeStore, "no policy store loaded")
	}
	report.PolicyVersion = store.Version()

	snapshot, err := e.inv.Snapshot(ctx)
	if err != nil {
		metrics.RecordCycle("failed", e.now().Sub(started))
		return nil, err
	}
	report.Resources = len(snapshot.Resources)
	metrics.SetSnapshotSize(report.Resources)

	thresholds, err := e.repo.LoadThresholds(ctx)
	if err != nil {
		metrics.RecordCycle("failed", e.now().Sub(started))
		return nil, err
	}
	baselines, err := e.repo.LoadBaselines(ctx)
	if err != nil {
		metrics.RecordCycle("failed", e.now().Sub(started))
		return nil, err
	}

	decisions, evalErrs := e.evaluateResources(ctx, snapshot, store, started)
	report.Errors += len(evalErrs)
	for _, err := range evalErrs {
		log.ErrorWithErr(err, "evaluation error")
	}

	budget := e.evaluateBudgets(ctx, store, thresholds, baselines, started)
	decisions = append(decisions, budget.Decisions...)
	report.Errors += budget.Errors

	if err := ctx.Err(); err != nil {
		metrics.RecordCycle("cancelled", e.now().Sub(started))
		return nil, err
	}

	decisions = evaluator.ResolveConflicts(decisions)
	report.Decisions = len(decisions)
	for _, d := range decisions {
		if d.Suppressed {
			report.Suppressed++
			continue
		}
		metrics.RecordDecision(d.PolicyKind, string(d.Action))
	}

	bucket := started.Truncate(e.opts.Bucket)
	actions := e.dispatcher.Prepare(decisions, bucket, started)

	fresh, deduplicated, err := e.filterSeen(ctx, actions)
	if err != nil {
		metrics.RecordCycle("failed", e.now().Sub(started))
		return nil, err
	}
	report.Deduplicated = deduplicated
	metrics.RecordDeduplicated(deduplicated)

	delivered, err := e.dispatcher.Dispatch(ctx, fresh)
	if err != nil {
		// Cancellation mid-dispatch: do not commit, the journal must not
		// claim keys for a cycle whose state never landed.
		metrics.RecordCycle("cancelled", e.now().Sub(started))
		return nil, err
	}
	report.Actions = len(delivered)
	for _, a := range fresh {
		metrics.RecordDispatch(string(a.Kind), a.DryRun)
	}

	nextThresholds, nextBaselines := merge(budget.Thresholds, budget.Baselines)
	if err := e.repo.CommitCycle(ctx, nextThresholds, nextBaselines, delivered, bucket); err != nil {
		metrics.RecordCycle("failed", e.now().Sub(started))
		return nil, err
	}

	if e.audit != nil {
		if err := e.audit.WriteAudit(ctx, report.CycleID, decisions, started); err != nil {
			log.ErrorWithErr(err, "audit write failed")
		}
	}
	if e.opts.JournalRetention > 0 {
		if err := e.repo.PruneJournal(ctx, started.Add(-e.opts.JournalRetention)); err != nil {
			log.ErrorWithErr(err, "journal prune failed")
		}
	}

	report.Duration = e.now().Sub(started)
	metrics.RecordCycle("ok", report.Duration)
	log.WithFields(map[string]interface{}{
		"policy_version": report.PolicyVersion,
		"resources":      report.Resources,
		"decisions":      report.Decisions,
		"suppressed":     report.Suppressed,
		"actions":        report.Actions,
		"deduplicated":   report.Deduplicated,
		"errors":         report.Errors,
		"duration":       report.Duration.String(),
	}).Info("cycle complete")
	return report, nil
}

// evaluateResources fans the snapshot across the worker pool. Results are
// reduced on the calling goroutine; workers share nothing mutable.
func (e *Engine) evaluateResources(ctx context.Context, snapshot *resource.Snapshot, store *policystore.Store, now time.Time) ([]decision.Decision, []error) {
	policies := resourcePolicies(store)

	type result struct {
		decisions []decision.Decision
		errs      []error
	}

	jobs := make(chan *resource.Resource)
	results := make(chan result)

	var wg sync.WaitGroup
	for i := 0; i < e.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range jobs {
				ds, errs := e.eval.EvaluateResource(r, policies, now)
				results <- result{decisions: ds, errs: errs}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, r := range snapshot.Resources {
			select {
			case jobs <- r:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		decisions []decision.Decision
		errs      []error
	)
	for res := range results {
		decisions = append(decisions, res.decisions...)
		errs = append(errs, res.errs...)
	}
	return decisions, errs
}

type budgetOutcome struct {
	Decisions  []decision.Decision
	Thresholds []*state.ThresholdState
	Baselines  []*state.AnomalyBaseline
	Errors     int
}

// evaluateBudgets runs every budget policy against the merged spend feeds.
// A failing feed skips only the policies depending on it.
func (e *Engine) evaluateBudgets(ctx context.Context, store *policystore.Store, thresholds map[string]*state.ThresholdState, baselines map[string]*state.AnomalyBaseline, now time.Time) budgetOutcome {
	var out budgetOutcome
	for _, p := range store.ByKind(policy.KindBudget) {
		spends, err := e.collectSpends(ctx, p.Budget, now)
		if err != nil {
			e.log.WithError(err).With("policy", p.Name).Error("spend feed failed")
			out.Errors++
			continue
		}
		res := e.eval.EvaluateBudget(p, spends, thresholds, baselines, now)
		out.Decisions = append(out.Decisions, res.Decisions...)
		out.Thresholds = append(out.Thresholds, res.Thresholds...)
		out.Baselines = append(out.Baselines, res.Baselines...)
	}
	return out
}

func (e *Engine) collectSpends(ctx context.Context, spec *policy.BudgetSpec, now time.Time) ([]spend.ScopeSpend, error) {
	periodStart := threshold.PeriodStart(spec.TimeUnit, now)

	merged := map[string]*spend.ScopeSpend{}
	var lastErr error
	ok := false
	for _, feed := range e.feeds {
		spends, err := feed.ScopeSpends(ctx, spec.ScopeTag, periodStart, now)
		if err != nil {
			lastErr = err
			continue
		}
		ok = true
		for _, s := range spends {
			if cur, exists := merged[s.Key]; exists {
				cur.Amount += s.Amount
				cur.Daily = append(cur.Daily, s.Daily...).Sorted()
			} else {
				cp := s
				merged[s.Key] = &cp
			}
		}
	}
	if !ok && lastErr != nil {
		return nil, lastErr
	}

	out := make([]spend.ScopeSpend, 0, len(merged))
	for _, s := range merged {
		out = append(out, *s)
	}
	return out, nil
}

// filterSeen drops actions whose idempotency key is already journaled.
func (e *Engine) filterSeen(ctx context.Context, actions []decision.Action) ([]decision.Action, int, error) {
	if len(actions) == 0 {
		return nil, 0, nil
	}
	keys := make([]string, len(actions))
	for i, a := range actions {
		keys[i] = a.IdempotencyKey
	}
	seen, err := e.repo.SeenActions(ctx, keys)
	if err != nil {
		return nil, 0, err
	}
	fresh := actions[:0:0]
	for _, a := range actions {
		if !seen[a.IdempotencyKey] {
			fresh = append(fresh, a)
		}
	}
	return fresh, len(actions) - len(fresh), nil
}

func resourcePolicies(store *policystore.Store) []*policy.Policy {
	var out []*policy.Policy
	for _, p := range store.Enabled() {
		if p.Kind != policy.KindBudget {
			out = append(out, p)
		}
	}
	return out
}

// merge keys the cycle's state updates for commit. Only updated keys are
// rewritten; untouched state keeps its stored values.
func merge(updatedT []*state.ThresholdState, updatedB []*state.AnomalyBaseline) (map[string]*state.ThresholdState, map[string]*state.AnomalyBaseline) {
	nextT := make(map[string]*state.ThresholdState, len(updatedT))
	for _, t := range updatedT {
		nextT[t.Key()] = t
	}
	nextB := make(map[string]*state.AnomalyBaseline, len(updatedB))
	for _, b := range updatedB {
		nextB[b.Key] = b
	}
	return nextT, nextB
}
