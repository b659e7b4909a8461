package rules

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafficops/adrules/internal/entities"
	"github.com/trafficops/adrules/internal/stats"
)

// OutcomeWriter persists the outcome of one (rule, ad group) unit. The
// trigger rows and the history row must land in a single transaction so a
// partial failure cannot leave one without the other.
type OutcomeWriter interface {
	WriteOutcome(ctx context.Context, triggers []entities.TriggerHistory, history *entities.RuleHistory) error
}

// Notifier delivers rule notification messages. Send failures are logged
// and never roll back the history write.
type Notifier interface {
	Send(ctx context.Context, subject, body string, recipients []string) error
}

// ApplyResult is the outcome of one rule applied to one ad group.
type ApplyResult struct {
	Status  string
	Changes []entities.ValueChange
	// ConditionValues records, per target, the resolved operand pair of
	// every evaluated condition.
	ConditionValues map[string]map[string]ConditionValues
	ChangesText     string
	FailureReason   string
}

// Engine ties the resolver, evaluator, cooldown tracker and appliers
// together for one (rule, ad group) unit at a time. The decision phase is
// pure; the only blocking calls are the cooldown prefetch and the outcome
// write.
type Engine struct {
	resolver  *Resolver
	cooldowns *CooldownTracker
	appliers  *ApplierSet
	writer    OutcomeWriter
	notifier  Notifier
	names     DisplayNames
	log       zerolog.Logger
	now       func() time.Time
}

// NewEngine wires an Engine.
func NewEngine(cooldowns *CooldownTracker, appliers *ApplierSet, writer OutcomeWriter, notifier Notifier, names DisplayNames, log zerolog.Logger) *Engine {
	return &Engine{
		resolver:  NewResolver(),
		cooldowns: cooldowns,
		appliers:  appliers,
		writer:    writer,
		notifier:  notifier,
		names:     names,
		log:       log,
		now:       time.Now,
	}
}

// SetClock overrides the engine clock. Tests use this to pin cooldown and
// current-date resolution.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// ApplyRule runs one rule against one ad group's prefetched bundle:
// cooldown-filter, evaluate all conditions per target, apply the action to
// matching targets, then persist exactly one history record (plus trigger
// rows for targets whose value actually changed) in one transaction.
//
// A returned error means the unit failed; a failure history record has
// already been written with the mapped reason.
func (e *Engine) ApplyRule(ctx context.Context, rule *entities.Rule, bundle *stats.AdGroupBundle) (*ApplyResult, error) {
	now := e.now()
	res := &ApplyResult{ConditionValues: make(map[string]map[string]ConditionValues)}

	cooldown, err := e.cooldowns.Prefetch(ctx, rule, bundle.AdGroup.ID, now)
	if err != nil {
		return e.fail(ctx, rule, bundle.AdGroup.ID, res, err)
	}
	applier, err := e.appliers.For(rule.ActionType)
	if err != nil {
		return e.fail(ctx, rule, bundle.AdGroup.ID, res, err)
	}

	targets := make([]string, 0, len(bundle.Targets))
	for t := range bundle.Targets {
		targets = append(targets, t)
	}
	sort.Strings(targets)

	for _, target := range targets {
		if cooldown.IsOnCooldown(target) {
			continue
		}
		matched, condValues, err := EvaluateAll(e.resolver, rule, bundle.Targets[target], bundle, now)
		if err != nil {
			return e.fail(ctx, rule, bundle.AdGroup.ID, res, err)
		}
		res.ConditionValues[target] = condValues
		if !matched {
			continue
		}
		change, err := applier.Apply(ctx, ApplyContext{Rule: rule, AdGroup: bundle.AdGroup, Target: target})
		if err != nil {
			return e.fail(ctx, rule, bundle.AdGroup.ID, res, err)
		}
		res.Changes = append(res.Changes, change)
	}

	var changed []entities.ValueChange
	var triggers []entities.TriggerHistory
	for _, c := range res.Changes {
		if !c.HasChanges() {
			continue
		}
		changed = append(changed, c)
		triggers = append(triggers, entities.TriggerHistory{
			RuleID:      rule.ID,
			AdGroupID:   bundle.AdGroup.ID,
			TargetKey:   c.Target,
			TriggeredAt: now,
		})
	}

	res.Status = entities.HistoryStatusSuccessNoChanges
	if len(changed) > 0 {
		res.Status = entities.HistoryStatusSuccess
	}
	res.ChangesText = FormatChanges(rule, changed, e.names)

	changesJSON, err := entities.MarshalChanges(changed)
	if err != nil {
		return e.fail(ctx, rule, bundle.AdGroup.ID, res, err)
	}
	history := &entities.RuleHistory{
		RuleID:      rule.ID,
		AdGroupID:   bundle.AdGroup.ID,
		Status:      res.Status,
		Changes:     changesJSON,
		ChangesText: res.ChangesText,
	}
	if err := e.writer.WriteOutcome(ctx, triggers, history); err != nil {
		res.Status = entities.HistoryStatusFailure
		res.FailureReason = FailureReason(err)
		return res, err
	}

	e.notify(ctx, rule, bundle.AdGroup, res)
	return res, nil
}

// fail records a failure history row with the mapped reason and propagates
// the error. Typed precondition failures keep their specific reason; all
// others surface to the user as the generic unforeseen-error sentence.
func (e *Engine) fail(ctx context.Context, rule *entities.Rule, adGroupID string, res *ApplyResult, cause error) (*ApplyResult, error) {
	reason := FailureReason(cause)
	res.Status = entities.HistoryStatusFailure
	res.FailureReason = reason
	if reason == FailureUnexpectedError {
		e.log.Error().Err(cause).Uint("rule_id", rule.ID).Str("ad_group_id", adGroupID).Msg("rule run failed")
	} else {
		e.log.Info().Uint("rule_id", rule.ID).Str("ad_group_id", adGroupID).Str("reason", reason).Msg("rule run blocked by precondition")
	}
	history := &entities.RuleHistory{
		RuleID:        rule.ID,
		AdGroupID:     adGroupID,
		Status:        entities.HistoryStatusFailure,
		FailureReason: reason,
		ChangesText:   FailureMessage(reason),
	}
	if werr := e.writer.WriteOutcome(ctx, nil, history); werr != nil {
		e.log.Error().Err(werr).Uint("rule_id", rule.ID).Msg("failed to record failure history")
	}
	return res, cause
}

// notify delivers the rule's configured notifications after the history
// write. Fire-and-forget: errors are logged, never propagated.
func (e *Engine) notify(ctx context.Context, rule *entities.Rule, adGroup stats.AdGroup, res *ApplyResult) {
	if e.notifier == nil {
		return
	}
	triggered := res.Status == entities.HistoryStatusSuccess

	if rule.ActionType == ActionSendEmail && triggered {
		subject := ExpandMacros(rule.SendEmailSubject, rule, adGroup, res.ChangesText)
		body := ExpandMacros(rule.SendEmailBody, rule, adGroup, res.ChangesText)
		if err := e.notifier.Send(ctx, subject, body, splitRecipients(rule.SendEmailRecipients)); err != nil {
			e.log.Error().Err(err).Uint("rule_id", rule.ID).Msg("failed to send rule email")
		}
	}

	switch rule.NotificationType {
	case NotifyOnRuleRun:
	case NotifyOnRuleTriggered:
		if !triggered {
			return
		}
	default:
		return
	}
	subject := ExpandMacros("Automation rule {{rule_name}} ran on {{ad_group_name}}", rule, adGroup, res.ChangesText)
	if err := e.notifier.Send(ctx, subject, res.ChangesText, splitRecipients(rule.NotificationRecipients)); err != nil {
		e.log.Error().Err(err).Uint("rule_id", rule.ID).Msg("failed to send rule notification")
	}
}

func splitRecipients(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
