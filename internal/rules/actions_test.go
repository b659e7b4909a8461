package rules

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafficops/adrules/internal/entities"
	"github.com/trafficops/adrules/internal/stats"
)

// fakeBidModifierStore keeps modifiers in a map keyed by target.
// Mutex-guarded because runner tests apply rules concurrently.
type fakeBidModifierStore struct {
	mu        sync.Mutex
	modifiers map[string]float64
	saves     int
}

func newFakeBidModifierStore() *fakeBidModifierStore {
	return &fakeBidModifierStore{modifiers: map[string]float64{}}
}

func (s *fakeBidModifierStore) Current(_ context.Context, _, _, target string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.modifiers[target]
	return v, ok, nil
}

func (s *fakeBidModifierStore) Save(_ context.Context, _, _, target string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modifiers[target] = value
	s.saves++
	return nil
}

// fakeAdGroupStore holds one settings row per ad group.
type fakeAdGroupStore struct {
	groups map[string]*entities.AdGroupSettings
}

func newFakeAdGroupStore(groups ...*entities.AdGroupSettings) *fakeAdGroupStore {
	s := &fakeAdGroupStore{groups: map[string]*entities.AdGroupSettings{}}
	for _, g := range groups {
		s.groups[g.AdGroupID] = g
	}
	return s
}

func (s *fakeAdGroupStore) Get(_ context.Context, id string) (*entities.AdGroupSettings, error) {
	return s.groups[id], nil
}

func (s *fakeAdGroupStore) SaveBid(_ context.Context, id string, bid float64) error {
	s.groups[id].Bid = bid
	return nil
}

func (s *fakeAdGroupStore) SaveDailyBudget(_ context.Context, id string, budget float64) error {
	s.groups[id].DailyBudget = budget
	return nil
}

func (s *fakeAdGroupStore) SetState(_ context.Context, id, state string) error {
	s.groups[id].State = state
	return nil
}

// fakePublisherGroupStore records entries as group/publisher/source keys.
type fakePublisherGroupStore struct {
	entries map[string]bool
}

func newFakePublisherGroupStore() *fakePublisherGroupStore {
	return &fakePublisherGroupStore{entries: map[string]bool{}}
}

func (s *fakePublisherGroupStore) AddEntry(_ context.Context, groupID, publisher, source string) (bool, error) {
	key := groupID + "/" + publisher + "/" + source
	if s.entries[key] {
		return false, nil
	}
	s.entries[key] = true
	return true, nil
}

func applyCtx(rule *entities.Rule, target string) ApplyContext {
	return ApplyContext{
		Rule:    rule,
		AdGroup: stats.AdGroup{ID: "ag-1", CampaignID: "c-1", Name: "US Mobile"},
		Target:  target,
	}
}

func TestBidModifierApplier_ConvergesToLimit(t *testing.T) {
	t.Parallel()

	store := newFakeBidModifierStore()
	appliers := NewApplierSet(store, nil, nil)
	applier, err := appliers.For(ActionIncreaseBidModifier)
	require.NoError(t, err)

	rule := &entities.Rule{
		TargetType:  TargetCountry,
		ActionType:  ActionIncreaseBidModifier,
		ChangeStep:  0.8,
		ChangeLimit: 2.0,
	}

	// No stored modifier: base defaults to 1.0.
	expected := []struct {
		old float64
		new float64
	}{
		{1.0, 1.8},
		{1.8, 2.0}, // clamped at the limit, not rejected
		{2.0, 2.0}, // at the limit: persisted again, but no change
	}
	for i, step := range expected {
		change, err := applier.Apply(t.Context(), applyCtx(rule, "US"))
		require.NoError(t, err)
		assert.Equal(t, step.old, change.OldValue, "step %d old", i)
		assert.Equal(t, step.new, change.NewValue, "step %d new", i)
	}
	assert.Equal(t, 3, store.saves, "every firing persists, even without change")
	assert.False(t, entities.ValueChange{Target: "US", OldValue: 2.0, NewValue: 2.0}.HasChanges())
}

func TestBidModifierApplier_GlobalBounds(t *testing.T) {
	t.Parallel()

	store := newFakeBidModifierStore()
	store.modifiers["US"] = 0.05
	appliers := NewApplierSet(store, nil, nil)

	applier, err := appliers.For(ActionDecreaseBidModifier)
	require.NoError(t, err)

	// Change limit below the global floor: the floor wins.
	rule := &entities.Rule{
		TargetType:  TargetCountry,
		ActionType:  ActionDecreaseBidModifier,
		ChangeStep:  0.5,
		ChangeLimit: 0.001,
	}
	change, err := applier.Apply(t.Context(), applyCtx(rule, "US"))
	require.NoError(t, err)
	assert.Equal(t, MinBidModifier, change.NewValue)
}

func TestBidApplier_CampaignAutopilotBlocks(t *testing.T) {
	t.Parallel()

	store := newFakeAdGroupStore(&entities.AdGroupSettings{
		AdGroupID: "ag-1", State: entities.AdGroupStateActive, Bid: 0.5, CampaignAutopilot: true,
	})
	appliers := NewApplierSet(nil, store, nil)
	applier, err := appliers.For(ActionIncreaseBid)
	require.NoError(t, err)

	rule := &entities.Rule{TargetType: TargetAdGroup, ActionType: ActionIncreaseBid, ChangeStep: 0.1, ChangeLimit: 1.0}
	_, err = applier.Apply(t.Context(), applyCtx(rule, "ag-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCampaignAutopilotActive)
	assert.Equal(t, FailureCampaignAutopilotActive, FailureReason(err))
}

func TestBidApplier_AdjustsWithFloor(t *testing.T) {
	t.Parallel()

	store := newFakeAdGroupStore(&entities.AdGroupSettings{
		AdGroupID: "ag-1", State: entities.AdGroupStateActive, Bid: 0.05,
	})
	appliers := NewApplierSet(nil, store, nil)
	applier, err := appliers.For(ActionDecreaseBid)
	require.NoError(t, err)

	rule := &entities.Rule{TargetType: TargetAdGroup, ActionType: ActionDecreaseBid, ChangeStep: 0.5, ChangeLimit: 0.001}
	change, err := applier.Apply(t.Context(), applyCtx(rule, "ag-1"))
	require.NoError(t, err)
	assert.Equal(t, MinBid, change.NewValue)
	assert.Equal(t, MinBid, store.groups["ag-1"].Bid)
}

func TestBudgetApplier_RequiresBudgetAutopilot(t *testing.T) {
	t.Parallel()

	store := newFakeAdGroupStore(&entities.AdGroupSettings{
		AdGroupID: "ag-1", State: entities.AdGroupStateActive, DailyBudget: 50, BudgetAutopilot: false,
	})
	appliers := NewApplierSet(nil, store, nil)
	applier, err := appliers.For(ActionIncreaseBudget)
	require.NoError(t, err)

	rule := &entities.Rule{TargetType: TargetAdGroup, ActionType: ActionIncreaseBudget, ChangeStep: 10, ChangeLimit: 100}
	_, err = applier.Apply(t.Context(), applyCtx(rule, "ag-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBudgetAutopilotInactive)

	store.groups["ag-1"].BudgetAutopilot = true
	change, err := applier.Apply(t.Context(), applyCtx(rule, "ag-1"))
	require.NoError(t, err)
	assert.Equal(t, 60.0, change.NewValue)
}

func TestTurnOffApplier_Idempotent(t *testing.T) {
	t.Parallel()

	store := newFakeAdGroupStore(&entities.AdGroupSettings{
		AdGroupID: "ag-1", State: entities.AdGroupStateActive,
	})
	appliers := NewApplierSet(nil, store, nil)
	applier, err := appliers.For(ActionTurnOff)
	require.NoError(t, err)

	rule := &entities.Rule{TargetType: TargetAdGroup, ActionType: ActionTurnOff}

	change, err := applier.Apply(t.Context(), applyCtx(rule, "ag-1"))
	require.NoError(t, err)
	assert.True(t, change.HasChanges())
	assert.Equal(t, entities.AdGroupStatePaused, store.groups["ag-1"].State)

	// Already paused: reports no change.
	change, err = applier.Apply(t.Context(), applyCtx(rule, "ag-1"))
	require.NoError(t, err)
	assert.False(t, change.HasChanges())
}

func TestApplier_ArchivedTargetIsInvalid(t *testing.T) {
	t.Parallel()

	store := newFakeAdGroupStore(&entities.AdGroupSettings{
		AdGroupID: "ag-1", State: entities.AdGroupStateActive, Archived: true,
	})
	appliers := NewApplierSet(nil, store, nil)
	applier, err := appliers.For(ActionTurnOff)
	require.NoError(t, err)

	rule := &entities.Rule{TargetType: TargetAdGroup, ActionType: ActionTurnOff}
	_, err = applier.Apply(t.Context(), applyCtx(rule, "ag-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestPublisherGroupApplier(t *testing.T) {
	t.Parallel()

	t.Run("blacklist derives its group from the ad group", func(t *testing.T) {
		t.Parallel()
		store := newFakePublisherGroupStore()
		appliers := NewApplierSet(nil, nil, store)
		applier, err := appliers.For(ActionBlacklist)
		require.NoError(t, err)

		rule := &entities.Rule{TargetType: TargetPublisher, ActionType: ActionBlacklist}
		change, err := applier.Apply(t.Context(), applyCtx(rule, "spam.example.com__taboola"))
		require.NoError(t, err)
		assert.True(t, change.HasChanges())
		assert.True(t, store.entries["blacklist:ag-1/spam.example.com/taboola"])

		// Re-applying is a no-op, not an error.
		change, err = applier.Apply(t.Context(), applyCtx(rule, "spam.example.com__taboola"))
		require.NoError(t, err)
		assert.False(t, change.HasChanges())
	})

	t.Run("add_to_publisher_group uses the configured group", func(t *testing.T) {
		t.Parallel()
		store := newFakePublisherGroupStore()
		appliers := NewApplierSet(nil, nil, store)
		applier, err := appliers.For(ActionAddToPublisherGroup)
		require.NoError(t, err)

		rule := &entities.Rule{
			TargetType:       TargetPublisher,
			ActionType:       ActionAddToPublisherGroup,
			PublisherGroupID: "pg-77",
		}
		change, err := applier.Apply(t.Context(), applyCtx(rule, "news.example.com__outbrain"))
		require.NoError(t, err)
		assert.True(t, change.HasChanges())
		assert.True(t, store.entries["pg-77/news.example.com/outbrain"])
	})
}

func TestApplierSet_UnknownAction(t *testing.T) {
	t.Parallel()

	_, err := NewApplierSet(nil, nil, nil).For("explode")
	assert.Error(t, err)
}

func TestSplitPublisherTarget(t *testing.T) {
	t.Parallel()

	pub, source := SplitPublisherTarget("site.example.com__taboola")
	assert.Equal(t, "site.example.com", pub)
	assert.Equal(t, "taboola", source)

	pub, source = SplitPublisherTarget("bare-domain.com")
	assert.Equal(t, "bare-domain.com", pub)
	assert.Empty(t, source)
}
