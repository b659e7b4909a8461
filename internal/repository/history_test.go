package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafficops/adrules/internal/entities"
)

func TestHistoryRepository_WriteOutcomeAndList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewHistoryRepository(db)
	ctx := t.Context()
	now := time.Now().UTC()

	triggers := []entities.TriggerHistory{
		{RuleID: 1, AdGroupID: "ag-1", TargetKey: "DE", TriggeredAt: now},
		{RuleID: 1, AdGroupID: "ag-1", TargetKey: "FR", TriggeredAt: now},
	}
	history := &entities.RuleHistory{
		RuleID:      1,
		AdGroupID:   "ag-1",
		Status:      entities.HistoryStatusSuccess,
		Changes:     `[{"target":"DE","old_value":1,"new_value":0.8}]`,
		ChangesText: "Decreased bid modifiers for countries: Germany (1.00 to 0.80).",
	}
	require.NoError(t, repo.WriteOutcome(ctx, triggers, history))

	items, total, err := repo.ListHistory(ctx, HistoryFilter{RuleID: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, entities.HistoryStatusSuccess, items[0].Status)
	assert.Contains(t, items[0].ChangesText, "Germany")
}

func TestHistoryRepository_ListTriggeredTargets(t *testing.T) {
	db := setupTestDB(t)
	repo := NewHistoryRepository(db)
	ctx := t.Context()
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	seed := []entities.TriggerHistory{
		{RuleID: 1, AdGroupID: "ag-1", TargetKey: "DE", TriggeredAt: now.Add(-12 * time.Hour)},
		{RuleID: 1, AdGroupID: "ag-1", TargetKey: "FR", TriggeredAt: now.Add(-72 * time.Hour)},
		{RuleID: 1, AdGroupID: "ag-2", TargetKey: "US", TriggeredAt: now.Add(-1 * time.Hour)},
		{RuleID: 2, AdGroupID: "ag-1", TargetKey: "IT", TriggeredAt: now.Add(-1 * time.Hour)},
		// Exactly at the window boundary: still suppressed.
		{RuleID: 1, AdGroupID: "ag-1", TargetKey: "ES", TriggeredAt: now.Add(-48 * time.Hour)},
	}
	require.NoError(t, db.Create(&seed).Error)

	got, err := repo.ListTriggeredTargets(ctx, 1, "ag-1", now.Add(-48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"DE": {}, "ES": {}}, got,
		"only this rule's targets for this ad group inside the window")
}

func TestHistory_AppendOnly(t *testing.T) {
	db := setupTestDB(t)
	repo := NewHistoryRepository(db)
	ctx := t.Context()
	now := time.Now().UTC()

	history := &entities.RuleHistory{RuleID: 1, AdGroupID: "ag-1", Status: entities.HistoryStatusSuccess}
	trigger := entities.TriggerHistory{RuleID: 1, AdGroupID: "ag-1", TargetKey: "DE", TriggeredAt: now}
	require.NoError(t, repo.WriteOutcome(ctx, []entities.TriggerHistory{trigger}, history))

	err := db.WithContext(ctx).Model(history).Update("status", entities.HistoryStatusFailure).Error
	assert.ErrorIs(t, err, entities.ErrHistoryImmutable, "history rows reject updates")

	err = db.WithContext(ctx).Delete(&entities.RuleHistory{}, history.ID).Error
	assert.ErrorIs(t, err, entities.ErrHistoryImmutable, "history rows reject plain deletes")

	var fetched entities.TriggerHistory
	require.NoError(t, db.WithContext(ctx).First(&fetched).Error)
	err = db.WithContext(ctx).Delete(&fetched).Error
	assert.ErrorIs(t, err, entities.ErrHistoryImmutable, "trigger rows reject plain deletes")
}

func TestHistoryRepository_RetentionDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewHistoryRepository(db)
	ctx := t.Context()
	now := time.Now().UTC()

	old := []entities.TriggerHistory{
		{RuleID: 1, AdGroupID: "ag-1", TargetKey: "DE", TriggeredAt: now.Add(-100 * 24 * time.Hour)},
	}
	recent := []entities.TriggerHistory{
		{RuleID: 1, AdGroupID: "ag-1", TargetKey: "FR", TriggeredAt: now},
	}
	require.NoError(t, db.Create(&old).Error)
	require.NoError(t, db.Create(&recent).Error)

	removed, err := repo.DeleteHistoryBefore(ctx, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	var count int64
	require.NoError(t, db.Model(&entities.TriggerHistory{}).Count(&count).Error)
	assert.EqualValues(t, 1, count, "recent rows survive retention cleanup")
}

func TestHistoryRepository_ListFiltersAndPaginates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewHistoryRepository(db)
	ctx := t.Context()

	for i := 0; i < 5; i++ {
		status := entities.HistoryStatusSuccess
		if i%2 == 1 {
			status = entities.HistoryStatusFailure
		}
		require.NoError(t, repo.WriteOutcome(ctx, nil, &entities.RuleHistory{
			RuleID: 1, AdGroupID: "ag-1", Status: status,
		}))
	}

	failures, total, err := repo.ListHistory(ctx, HistoryFilter{Status: entities.HistoryStatusFailure})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, failures, 2)

	page, total, err := repo.ListHistory(ctx, HistoryFilter{AdGroupID: "ag-1", Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, page, 2)
}
