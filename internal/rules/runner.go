package rules

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/trafficops/adrules/internal/entities"
	"github.com/trafficops/adrules/internal/observability"
	"github.com/trafficops/adrules/internal/stats"
)

// RuleSource provides the enabled rules for a batch run.
type RuleSource interface {
	GetEnabledRules(ctx context.Context) ([]entities.Rule, error)
}

// UnitFailure records one failed (rule, ad group) unit. A failure never
// aborts the run; the rest of the units still execute.
type UnitFailure struct {
	RuleID    uint
	RuleName  string
	AdGroupID string
	Reason    string
	Err       error
}

// RunSummary is the outcome of one batch run.
type RunSummary struct {
	RunID          string
	Started        time.Time
	Finished       time.Time
	Units          int
	Triggered      int
	NoChanges      int
	TargetsChanged int
	Failures       []UnitFailure
}

// Runner executes all enabled rules against a set of ad groups. Stats are
// prefetched once per target type, then the (rule, ad group) units run on a
// bounded worker pool. Units are independent: they touch disjoint history
// rows and the appliers are idempotent within a run, so ordering between
// units does not matter.
type Runner struct {
	rules       RuleSource
	loader      *stats.Loader
	engine      *Engine
	metrics     *observability.Metrics
	log         zerolog.Logger
	concurrency int
}

// NewRunner wires a Runner. metrics may be nil when instrumentation is not
// configured. concurrency bounds the worker pool; values below 1 mean
// sequential execution.
func NewRunner(rules RuleSource, loader *stats.Loader, engine *Engine, metrics *observability.Metrics, log zerolog.Logger, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		rules:       rules,
		loader:      loader,
		engine:      engine,
		metrics:     metrics,
		log:         log,
		concurrency: concurrency,
	}
}

type unit struct {
	rule   *entities.Rule
	bundle *stats.AdGroupBundle
}

// Run executes every enabled rule against every given ad group and returns
// the per-run summary. Only rule fetching and stats loading can fail the
// whole run; individual unit failures are collected in the summary.
func (r *Runner) Run(ctx context.Context, adGroupIDs []string) (*RunSummary, error) {
	summary := &RunSummary{RunID: uuid.NewString(), Started: time.Now()}
	log := r.log.With().Str("run_id", summary.RunID).Logger()

	ruleList, err := r.rules.GetEnabledRules(ctx)
	if err != nil {
		return nil, err
	}
	log.Info().Int("rules", len(ruleList)).Int("ad_groups", len(adGroupIDs)).Msg("starting rule run")

	byTargetType := make(map[string][]*entities.Rule)
	for i := range ruleList {
		rule := &ruleList[i]
		byTargetType[rule.TargetType] = append(byTargetType[rule.TargetType], rule)
	}
	targetTypes := make([]string, 0, len(byTargetType))
	for tt := range byTargetType {
		targetTypes = append(targetTypes, tt)
	}
	sort.Strings(targetTypes)

	var units []unit
	for _, tt := range targetTypes {
		bundles, err := r.loader.Load(ctx, tt, adGroupIDs)
		if err != nil {
			return nil, err
		}
		for _, rule := range byTargetType[tt] {
			for _, id := range adGroupIDs {
				if bundle, ok := bundles[id]; ok {
					units = append(units, unit{rule: rule, bundle: bundle})
				}
			}
		}
	}
	summary.Units = len(units)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, u := range units {
		g.Go(func() error {
			start := time.Now()
			res, err := r.engine.ApplyRule(gctx, u.rule, u.bundle)
			if r.metrics != nil {
				r.metrics.ApplyDuration.WithLabelValues(u.rule.ActionType).Observe(time.Since(start).Seconds())
			}
			mu.Lock()
			defer mu.Unlock()
			r.record(summary, u, res, err)
			return nil
		})
	}
	// goroutines never return errors; Wait only observes ctx cancellation
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary.Finished = time.Now()
	if r.metrics != nil {
		r.metrics.RunDuration.Observe(summary.Finished.Sub(summary.Started).Seconds())
	}
	log.Info().
		Int("units", summary.Units).
		Int("triggered", summary.Triggered).
		Int("no_changes", summary.NoChanges).
		Int("failures", len(summary.Failures)).
		Msg("rule run finished")
	return summary, nil
}

func (r *Runner) record(summary *RunSummary, u unit, res *ApplyResult, err error) {
	if err != nil {
		reason := FailureReason(err)
		summary.Failures = append(summary.Failures, UnitFailure{
			RuleID:    u.rule.ID,
			RuleName:  u.rule.Name,
			AdGroupID: u.bundle.AdGroup.ID,
			Reason:    reason,
			Err:       err,
		})
		if r.metrics != nil {
			r.metrics.RulesEvaluated.WithLabelValues(entities.HistoryStatusFailure).Inc()
			r.metrics.UnitFailures.WithLabelValues(reason).Inc()
		}
		return
	}
	changedTargets := 0
	for _, c := range res.Changes {
		if c.HasChanges() {
			changedTargets++
		}
	}
	summary.TargetsChanged += changedTargets
	switch res.Status {
	case entities.HistoryStatusSuccess:
		summary.Triggered++
	case entities.HistoryStatusSuccessNoChanges:
		summary.NoChanges++
	}
	if r.metrics != nil {
		r.metrics.RulesEvaluated.WithLabelValues(res.Status).Inc()
		if changedTargets > 0 {
			r.metrics.TriggersFired.WithLabelValues(u.rule.ActionType).Add(float64(changedTargets))
		}
	}
}
