package rules

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/trafficops/adrules/internal/entities"
	"github.com/trafficops/adrules/internal/stats"
)

// BidModifierStore persists per-target bid modifiers.
type BidModifierStore interface {
	Current(ctx context.Context, adGroupID, targetType, target string) (float64, bool, error)
	Save(ctx context.Context, adGroupID, targetType, target string, value float64) error
}

// AdGroupStore persists the ad group scalars and state that ad-group-level
// actions operate on.
type AdGroupStore interface {
	Get(ctx context.Context, adGroupID string) (*entities.AdGroupSettings, error)
	SaveBid(ctx context.Context, adGroupID string, bid float64) error
	SaveDailyBudget(ctx context.Context, adGroupID string, budget float64) error
	SetState(ctx context.Context, adGroupID, state string) error
}

// PublisherGroupStore persists publisher group membership. AddEntry is
// idempotent and reports whether the entry was newly added.
type PublisherGroupStore interface {
	AddEntry(ctx context.Context, groupID, publisher, source string) (bool, error)
}

// ApplyContext carries what an applier needs for one target.
type ApplyContext struct {
	Rule    *entities.Rule
	AdGroup stats.AdGroup
	Target  string
}

// ActionApplier computes and persists the bounded change for one target and
// returns the resulting value change. The write happens unconditionally;
// whether history and triggers are recorded is decided by HasChanges.
type ActionApplier interface {
	Apply(ctx context.Context, in ApplyContext) (entities.ValueChange, error)
}

// ApplierSet selects the applier for a rule's action type.
type ApplierSet struct {
	bidMods   BidModifierStore
	adGroups  AdGroupStore
	pubGroups PublisherGroupStore
}

// NewApplierSet wires the appliers to their stores.
func NewApplierSet(bidMods BidModifierStore, adGroups AdGroupStore, pubGroups PublisherGroupStore) *ApplierSet {
	return &ApplierSet{bidMods: bidMods, adGroups: adGroups, pubGroups: pubGroups}
}

// For returns the applier for an action type.
func (s *ApplierSet) For(actionType string) (ActionApplier, error) {
	switch actionType {
	case ActionIncreaseBidModifier:
		return bidModifierApplier{store: s.bidMods, increase: true}, nil
	case ActionDecreaseBidModifier:
		return bidModifierApplier{store: s.bidMods, increase: false}, nil
	case ActionIncreaseBid:
		return bidApplier{store: s.adGroups, increase: true}, nil
	case ActionDecreaseBid:
		return bidApplier{store: s.adGroups, increase: false}, nil
	case ActionIncreaseBudget:
		return budgetApplier{store: s.adGroups, increase: true}, nil
	case ActionDecreaseBudget:
		return budgetApplier{store: s.adGroups, increase: false}, nil
	case ActionTurnOff:
		return turnOffApplier{store: s.adGroups}, nil
	case ActionBlacklist:
		return publisherGroupApplier{store: s.pubGroups, blacklist: true}, nil
	case ActionAddToPublisherGroup:
		return publisherGroupApplier{store: s.pubGroups}, nil
	case ActionNotify, ActionSendEmail:
		return messageApplier{}, nil
	default:
		return nil, fmt.Errorf("unknown action type %q", actionType)
	}
}

// step applies the clamped monotonic adjustment shared by all magnitude
// actions: move by changeStep toward changeLimit, clamp at the limit rather
// than rejecting, so repeated firings converge to the limit and hold there.
func step(base float64, rule *entities.Rule, increase bool) float64 {
	if increase {
		return math.Min(base+rule.ChangeStep, rule.ChangeLimit)
	}
	return math.Max(base-rule.ChangeStep, rule.ChangeLimit)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

type bidModifierApplier struct {
	store    BidModifierStore
	increase bool
}

func (a bidModifierApplier) Apply(ctx context.Context, in ApplyContext) (entities.ValueChange, error) {
	base, ok, err := a.store.Current(ctx, in.AdGroup.ID, in.Rule.TargetType, in.Target)
	if err != nil {
		return entities.ValueChange{}, err
	}
	if !ok {
		base = 1.0
	}
	next := clamp(step(base, in.Rule, a.increase), MinBidModifier, MaxBidModifier)
	if err := a.store.Save(ctx, in.AdGroup.ID, in.Rule.TargetType, in.Target, next); err != nil {
		return entities.ValueChange{}, err
	}
	return entities.ValueChange{Target: in.Target, OldValue: base, NewValue: next}, nil
}

type bidApplier struct {
	store    AdGroupStore
	increase bool
}

func (a bidApplier) Apply(ctx context.Context, in ApplyContext) (entities.ValueChange, error) {
	settings, err := requireAdGroup(ctx, a.store, in.AdGroup.ID)
	if err != nil {
		return entities.ValueChange{}, err
	}
	if settings.CampaignAutopilot {
		return entities.ValueChange{}, ErrCampaignAutopilotActive
	}
	next := math.Max(step(settings.Bid, in.Rule, a.increase), MinBid)
	if err := a.store.SaveBid(ctx, in.AdGroup.ID, next); err != nil {
		return entities.ValueChange{}, err
	}
	return entities.ValueChange{Target: in.Target, OldValue: settings.Bid, NewValue: next}, nil
}

type budgetApplier struct {
	store    AdGroupStore
	increase bool
}

func (a budgetApplier) Apply(ctx context.Context, in ApplyContext) (entities.ValueChange, error) {
	settings, err := requireAdGroup(ctx, a.store, in.AdGroup.ID)
	if err != nil {
		return entities.ValueChange{}, err
	}
	if !settings.BudgetAutopilot {
		return entities.ValueChange{}, ErrBudgetAutopilotInactive
	}
	next := math.Max(step(settings.DailyBudget, in.Rule, a.increase), MinDailyBudget)
	if err := a.store.SaveDailyBudget(ctx, in.AdGroup.ID, next); err != nil {
		return entities.ValueChange{}, err
	}
	return entities.ValueChange{Target: in.Target, OldValue: settings.DailyBudget, NewValue: next}, nil
}

type turnOffApplier struct {
	store AdGroupStore
}

func (a turnOffApplier) Apply(ctx context.Context, in ApplyContext) (entities.ValueChange, error) {
	settings, err := requireAdGroup(ctx, a.store, in.AdGroup.ID)
	if err != nil {
		return entities.ValueChange{}, err
	}
	if settings.State != entities.AdGroupStatePaused {
		if err := a.store.SetState(ctx, in.AdGroup.ID, entities.AdGroupStatePaused); err != nil {
			return entities.ValueChange{}, err
		}
	}
	return entities.ValueChange{Target: in.Target, OldValue: settings.State, NewValue: entities.AdGroupStatePaused}, nil
}

type publisherGroupApplier struct {
	store     PublisherGroupStore
	blacklist bool
}

func (a publisherGroupApplier) Apply(ctx context.Context, in ApplyContext) (entities.ValueChange, error) {
	groupID := in.Rule.PublisherGroupID
	if a.blacklist {
		groupID = blacklistGroupID(in.AdGroup.ID)
	}
	publisher, source := SplitPublisherTarget(in.Target)
	added, err := a.store.AddEntry(ctx, groupID, publisher, source)
	if err != nil {
		return entities.ValueChange{}, err
	}
	change := entities.ValueChange{Target: in.Target, OldValue: "", NewValue: groupID}
	if !added {
		change.OldValue = groupID
	}
	return change, nil
}

// messageApplier covers notify and send_email: no target state changes, the
// macro-expanded message body is the audit "change".
type messageApplier struct{}

func (a messageApplier) Apply(_ context.Context, in ApplyContext) (entities.ValueChange, error) {
	body := ExpandMacros(in.Rule.SendEmailBody, in.Rule, in.AdGroup, "")
	if in.Rule.ActionType == ActionNotify {
		body = fmt.Sprintf("Rule %q matched %s", in.Rule.Name, in.Target)
	}
	return entities.ValueChange{Target: in.Target, OldValue: "", NewValue: body}, nil
}

func requireAdGroup(ctx context.Context, store AdGroupStore, adGroupID string) (*entities.AdGroupSettings, error) {
	settings, err := store.Get(ctx, adGroupID)
	if err != nil {
		return nil, err
	}
	if settings == nil || settings.Archived {
		return nil, fmt.Errorf("%w: ad group %s", ErrInvalidTarget, adGroupID)
	}
	return settings, nil
}

func blacklistGroupID(adGroupID string) string {
	return "blacklist:" + adGroupID
}

// SplitPublisherTarget splits a "domain__source" publisher target key.
func SplitPublisherTarget(target string) (publisher, source string) {
	if i := strings.Index(target, "__"); i >= 0 {
		return target[:i], target[i+2:]
	}
	return target, ""
}
