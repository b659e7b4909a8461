package rules

import (
	"context"
	"time"

	"github.com/trafficops/adrules/internal/entities"
)

// TriggerReader is the trigger-history lookup the cooldown tracker needs.
// Implementations must answer in one bulk query per (rule, ad group); a rule
// run may touch thousands of targets.
type TriggerReader interface {
	ListTriggeredTargets(ctx context.Context, ruleID uint, adGroupID string, since time.Time) (map[string]struct{}, error)
}

// CooldownTracker decides whether targets are suppressed by a recent firing
// of the same rule.
type CooldownTracker struct {
	triggers TriggerReader
}

// NewCooldownTracker creates a CooldownTracker.
func NewCooldownTracker(triggers TriggerReader) *CooldownTracker {
	return &CooldownTracker{triggers: triggers}
}

// CooldownSet is the prefetched suppression set for one (rule, ad group)
// unit. Membership checks are pure map lookups.
type CooldownSet struct {
	suppressed map[string]struct{}
}

// Prefetch bulk-loads the targets triggered within the rule's cooldown
// window ending at now.
func (t *CooldownTracker) Prefetch(ctx context.Context, rule *entities.Rule, adGroupID string, now time.Time) (CooldownSet, error) {
	since := now.Add(-time.Duration(rule.CooldownHours) * time.Hour)
	suppressed, err := t.triggers.ListTriggeredTargets(ctx, rule.ID, adGroupID, since)
	if err != nil {
		return CooldownSet{}, err
	}
	return CooldownSet{suppressed: suppressed}, nil
}

// IsOnCooldown reports whether the target fired within the cooldown window.
func (s CooldownSet) IsOnCooldown(target string) bool {
	_, ok := s.suppressed[target]
	return ok
}

// Size returns the number of suppressed targets.
func (s CooldownSet) Size() int {
	return len(s.suppressed)
}
