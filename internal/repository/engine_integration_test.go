package repository

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafficops/adrules/internal/entities"
	"github.com/trafficops/adrules/internal/rules"
	"github.com/trafficops/adrules/internal/stats"
)

// Full cycle against real storage: rule CRUD, stats bundle, engine apply,
// history write, and cooldown suppression on the next run.
func TestEngineAgainstRepositories(t *testing.T) {
	db := setupTestDB(t)
	ctx := t.Context()

	ruleRepo := NewRuleRepository(db, rules.NewSchemaValidator())
	historyRepo := NewHistoryRepository(db)
	bidMods := NewBidModifierRepository(db)

	rule := testRule("Cut expensive countries")
	require.NoError(t, ruleRepo.CreateRule(ctx, rule))

	cpc := 2.5
	bundle := &stats.AdGroupBundle{
		AdGroup: stats.AdGroup{ID: "ag-1", CampaignID: "c-1", Name: "US Mobile"},
		Targets: map[string]*stats.TargetBundle{
			"DE": {Metrics: map[string]stats.WindowValues{
				rules.MetricAvgCPC: {rules.WindowLast7Days: &cpc},
			}},
		},
	}

	engine := rules.NewEngine(
		rules.NewCooldownTracker(historyRepo),
		rules.NewApplierSet(bidMods, NewAdGroupRepository(db), NewPublisherGroupRepository(db)),
		historyRepo,
		nil,
		rules.NewNameService(nil),
		zerolog.Nop(),
	)

	res, err := engine.ApplyRule(ctx, rule, bundle)
	require.NoError(t, err)
	assert.Equal(t, entities.HistoryStatusSuccess, res.Status)

	mod, ok, err := bidMods.Current(ctx, "ag-1", rules.TargetCountry, "DE")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.9, mod)

	items, total, err := historyRepo.ListHistory(ctx, HistoryFilter{RuleID: rule.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Contains(t, items[0].ChangesText, "Germany")

	// Second run inside the cooldown window: the target is suppressed, the
	// modifier stays put, and the unit records success without changes.
	res, err = engine.ApplyRule(ctx, rule, bundle)
	require.NoError(t, err)
	assert.Equal(t, entities.HistoryStatusSuccessNoChanges, res.Status)

	mod, _, err = bidMods.Current(ctx, "ag-1", rules.TargetCountry, "DE")
	require.NoError(t, err)
	assert.Equal(t, 0.9, mod, "suppressed target is not re-adjusted")

	_, total, err = historyRepo.ListHistory(ctx, HistoryFilter{RuleID: rule.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total, "every run appends its own history row")
}
