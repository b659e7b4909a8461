package rules

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafficops/adrules/internal/entities"
	"github.com/trafficops/adrules/internal/stats"
)

// fakeTriggerReader serves a fixed suppression set.
type fakeTriggerReader struct {
	targets map[string]struct{}
	since   time.Time
}

func (f *fakeTriggerReader) ListTriggeredTargets(_ context.Context, _ uint, _ string, since time.Time) (map[string]struct{}, error) {
	f.since = since
	return f.targets, nil
}

// fakeOutcomeWriter captures written outcomes. Mutex-guarded because the
// runner writes from its worker pool.
type fakeOutcomeWriter struct {
	mu        sync.Mutex
	triggers  []entities.TriggerHistory
	histories []entities.RuleHistory
	err       error
}

func (f *fakeOutcomeWriter) WriteOutcome(_ context.Context, triggers []entities.TriggerHistory, history *entities.RuleHistory) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, triggers...)
	f.histories = append(f.histories, *history)
	return nil
}

// fakeNotifier records sent messages.
type fakeNotifier struct {
	subjects []string
	bodies   []string
}

func (f *fakeNotifier) Send(_ context.Context, subject, body string, _ []string) error {
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, body)
	return nil
}

func testEngine(writer OutcomeWriter, notifier Notifier, bidMods BidModifierStore, suppressed map[string]struct{}) *Engine {
	tracker := NewCooldownTracker(&fakeTriggerReader{targets: suppressed})
	appliers := NewApplierSet(bidMods, nil, nil)
	return NewEngine(tracker, appliers, writer, notifier, NewNameService(nil), zerolog.Nop())
}

func countryBundle(values map[string]float64) *stats.AdGroupBundle {
	targets := make(map[string]*stats.TargetBundle, len(values))
	for country, cpc := range values {
		v := cpc
		targets[country] = &stats.TargetBundle{
			Metrics: map[string]stats.WindowValues{
				MetricAvgCPC: {WindowLast7Days: &v},
			},
		}
	}
	return &stats.AdGroupBundle{
		AdGroup: stats.AdGroup{ID: "ag-1", CampaignID: "c-1", Name: "US Mobile"},
		Targets: targets,
	}
}

func countryRule() *entities.Rule {
	return &entities.Rule{
		ID:            7,
		Name:          "Cut expensive countries",
		TargetType:    TargetCountry,
		ActionType:    ActionDecreaseBidModifier,
		ChangeStep:    0.2,
		ChangeLimit:   0.5,
		CooldownHours: 48,
		Window:        WindowLast7Days,
		Conditions: []entities.RuleCondition{
			{LeftOperandType: MetricAvgCPC, Operator: OperatorGreaterThan, RightOperandType: ValueAbsolute, RightOperandValue: "1.0"},
		},
	}
}

func TestEngine_ApplyRule_Success(t *testing.T) {
	t.Parallel()

	writer := &fakeOutcomeWriter{}
	store := newFakeBidModifierStore()
	engine := testEngine(writer, nil, store, nil)

	// DE and FR exceed the CPC threshold; US does not.
	bundle := countryBundle(map[string]float64{"US": 0.4, "DE": 1.5, "FR": 2.0})
	res, err := engine.ApplyRule(t.Context(), countryRule(), bundle)
	require.NoError(t, err)

	assert.Equal(t, entities.HistoryStatusSuccess, res.Status)
	assert.Len(t, res.Changes, 2)
	assert.Len(t, res.ConditionValues, 3, "condition values recorded for every evaluated target")

	require.Len(t, writer.histories, 1, "one history row per unit")
	history := writer.histories[0]
	assert.Equal(t, uint(7), history.RuleID)
	assert.Equal(t, "ag-1", history.AdGroupID)
	assert.Equal(t, entities.HistoryStatusSuccess, history.Status)
	assert.Contains(t, history.ChangesText, "Germany")
	assert.Contains(t, history.ChangesText, "France")
	assert.NotContains(t, history.ChangesText, "United States")

	require.Len(t, writer.triggers, 2, "trigger rows only for changed targets")
	assert.Equal(t, 0.8, store.modifiers["DE"])
	assert.Equal(t, 0.8, store.modifiers["FR"])
}

func TestEngine_ApplyRule_NoChanges(t *testing.T) {
	t.Parallel()

	writer := &fakeOutcomeWriter{}
	store := newFakeBidModifierStore()
	store.modifiers["DE"] = 0.5 // already at the change limit
	engine := testEngine(writer, nil, store, nil)

	bundle := countryBundle(map[string]float64{"DE": 1.5})
	res, err := engine.ApplyRule(t.Context(), countryRule(), bundle)
	require.NoError(t, err)

	assert.Equal(t, entities.HistoryStatusSuccessNoChanges, res.Status)
	assert.Empty(t, writer.triggers, "no trigger rows without actual changes")
	require.Len(t, writer.histories, 1)
	assert.Equal(t, "Rule didn't change any country bid modifiers.", writer.histories[0].ChangesText)
	assert.Equal(t, 1, store.saves, "the unchanged value is still persisted")
}

func TestEngine_ApplyRule_CooldownSuppression(t *testing.T) {
	t.Parallel()

	writer := &fakeOutcomeWriter{}
	store := newFakeBidModifierStore()
	engine := testEngine(writer, nil, store, map[string]struct{}{"DE": {}})

	bundle := countryBundle(map[string]float64{"DE": 1.5, "FR": 1.5})
	res, err := engine.ApplyRule(t.Context(), countryRule(), bundle)
	require.NoError(t, err)

	assert.Equal(t, entities.HistoryStatusSuccess, res.Status)
	require.Len(t, res.Changes, 1, "suppressed target is skipped entirely")
	assert.Equal(t, "FR", res.Changes[0].Target)
	assert.NotContains(t, res.ConditionValues, "DE", "suppressed targets are not evaluated")
	_, touched := store.modifiers["DE"]
	assert.False(t, touched)
}

func TestEngine_ApplyRule_CooldownWindowStart(t *testing.T) {
	t.Parallel()

	reader := &fakeTriggerReader{}
	tracker := NewCooldownTracker(reader)
	engine := NewEngine(tracker, NewApplierSet(newFakeBidModifierStore(), nil, nil), &fakeOutcomeWriter{}, nil, NewNameService(nil), zerolog.Nop())
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	engine.SetClock(func() time.Time { return now })

	_, err := engine.ApplyRule(t.Context(), countryRule(), countryBundle(nil))
	require.NoError(t, err)
	assert.Equal(t, now.Add(-48*time.Hour), reader.since)
}

func TestEngine_ApplyRule_FailureRecordsHistory(t *testing.T) {
	t.Parallel()

	writer := &fakeOutcomeWriter{}
	store := newFakeAdGroupStore(&entities.AdGroupSettings{
		AdGroupID: "ag-1", State: entities.AdGroupStateActive, Bid: 0.5, CampaignAutopilot: true,
	})
	tracker := NewCooldownTracker(&fakeTriggerReader{})
	engine := NewEngine(tracker, NewApplierSet(nil, store, nil), writer, nil, NewNameService(nil), zerolog.Nop())

	spend := 500.0
	bundle := &stats.AdGroupBundle{
		AdGroup: stats.AdGroup{ID: "ag-1", Name: "US Mobile"},
		Targets: map[string]*stats.TargetBundle{
			"ag-1": {Metrics: map[string]stats.WindowValues{
				MetricTotalSpend: {WindowLast7Days: &spend},
			}},
		},
	}
	rule := &entities.Rule{
		ID:            3,
		Name:          "Raise strong bids",
		TargetType:    TargetAdGroup,
		ActionType:    ActionIncreaseBid,
		ChangeStep:    0.1,
		ChangeLimit:   2.0,
		CooldownHours: 24,
		Window:        WindowLast7Days,
		Conditions: []entities.RuleCondition{
			{LeftOperandType: MetricTotalSpend, Operator: OperatorGreaterThan, RightOperandType: ValueAbsolute, RightOperandValue: "100"},
		},
	}

	res, err := engine.ApplyRule(t.Context(), rule, bundle)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCampaignAutopilotActive)
	assert.Equal(t, entities.HistoryStatusFailure, res.Status)
	assert.Equal(t, FailureCampaignAutopilotActive, res.FailureReason)

	require.Len(t, writer.histories, 1)
	history := writer.histories[0]
	assert.Equal(t, entities.HistoryStatusFailure, history.Status)
	assert.Equal(t, FailureCampaignAutopilotActive, history.FailureReason)
	assert.Equal(t, FailureMessage(FailureCampaignAutopilotActive), history.ChangesText)
	assert.Empty(t, writer.triggers)
}

func TestEngine_Notify_OnRuleTriggered(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{}
	store := newFakeBidModifierStore()
	engine := testEngine(&fakeOutcomeWriter{}, notifier, store, nil)

	rule := countryRule()
	rule.NotificationType = NotifyOnRuleTriggered
	rule.NotificationRecipients = "ops@example.com"

	// First run: no matching target, no notification.
	_, err := engine.ApplyRule(t.Context(), rule, countryBundle(map[string]float64{"US": 0.4}))
	require.NoError(t, err)
	assert.Empty(t, notifier.subjects)

	// Second run triggers and notifies.
	_, err = engine.ApplyRule(t.Context(), rule, countryBundle(map[string]float64{"DE": 1.5}))
	require.NoError(t, err)
	require.Len(t, notifier.subjects, 1)
	assert.Contains(t, notifier.subjects[0], "Cut expensive countries")
	assert.Contains(t, notifier.bodies[0], "Germany")
}

func TestEngine_SendEmailExpandsMacros(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{}
	writer := &fakeOutcomeWriter{}
	tracker := NewCooldownTracker(&fakeTriggerReader{})
	engine := NewEngine(tracker, NewApplierSet(nil, nil, nil), writer, notifier, NewNameService(nil), zerolog.Nop())

	spend := 150.0
	bundle := &stats.AdGroupBundle{
		AdGroup: stats.AdGroup{ID: "ag-1", CampaignID: "c-9", Name: "US Mobile"},
		Targets: map[string]*stats.TargetBundle{
			"ag-1": {Metrics: map[string]stats.WindowValues{
				MetricTotalSpend: {WindowLastDay: &spend},
			}},
		},
		Budgets: stats.BudgetFacts{DailyCap: 100},
	}
	rule := &entities.Rule{
		ID:                  11,
		Name:                "Cap alert",
		TargetType:          TargetAdGroup,
		ActionType:          ActionSendEmail,
		CooldownHours:       24,
		Window:              WindowLastDay,
		SendEmailSubject:    "{{rule_name}}: {{ad_group_name}}",
		SendEmailBody:       "Ad group {{ad_group_id}} in campaign {{campaign_id}} hit its cap.",
		SendEmailRecipients: "ops@example.com, buyer@example.com",
		Conditions: []entities.RuleCondition{
			{LeftOperandType: MetricTotalSpend, Operator: OperatorGreaterThan, RightOperandType: ValueDailyCap},
		},
	}

	_, err := engine.ApplyRule(t.Context(), rule, bundle)
	require.NoError(t, err)
	require.Len(t, notifier.subjects, 1)
	assert.Equal(t, "Cap alert: US Mobile", notifier.subjects[0])
	assert.Equal(t, "Ad group ag-1 in campaign c-9 hit its cap.", notifier.bodies[0])
}

func TestEngine_WriteFailurePropagates(t *testing.T) {
	t.Parallel()

	writer := &fakeOutcomeWriter{err: errors.New("disk full")}
	store := newFakeBidModifierStore()
	engine := testEngine(writer, nil, store, nil)

	res, err := engine.ApplyRule(t.Context(), countryRule(), countryBundle(map[string]float64{"DE": 1.5}))
	require.Error(t, err)
	assert.Equal(t, entities.HistoryStatusFailure, res.Status)
	assert.Equal(t, FailureUnexpectedError, res.FailureReason)
}

func TestSplitRecipients(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a@x.com", "b@x.com"}, splitRecipients("a@x.com, b@x.com"))
	assert.Nil(t, splitRecipients(""))
}
