package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/trafficops/adrules/internal/entities"
)

// HistoryRepository reads and writes the append-only run history: one
// RuleHistory row per (rule, ad group) unit plus TriggerHistory rows for the
// targets the unit changed. It backs both the cooldown tracker and the
// engine's outcome writer.
type HistoryRepository interface {
	// WriteOutcome persists the trigger rows and the history row of one
	// unit in a single transaction.
	WriteOutcome(ctx context.Context, triggers []entities.TriggerHistory, history *entities.RuleHistory) error

	// ListTriggeredTargets returns the set of targets a rule fired on for
	// an ad group since the given time, in one bulk query.
	ListTriggeredTargets(ctx context.Context, ruleID uint, adGroupID string, since time.Time) (map[string]struct{}, error)

	ListHistory(ctx context.Context, filter HistoryFilter) ([]entities.RuleHistory, int64, error)

	// DeleteHistoryBefore removes history and trigger rows older than the
	// given time. This is the only sanctioned delete path for the
	// append-only tables.
	DeleteHistoryBefore(ctx context.Context, before time.Time) (int64, error)
}

// HistoryFilter controls history listing queries.
type HistoryFilter struct {
	RuleID    uint
	AdGroupID string
	Status    string
	Limit     int
	Offset    int
}

// historyRepository implements HistoryRepository.
type historyRepository struct {
	db *gorm.DB
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

// WriteOutcome persists one unit's outcome atomically. A failed trigger
// insert rolls back the history row and vice versa.
func (r *historyRepository) WriteOutcome(ctx context.Context, triggers []entities.TriggerHistory, history *entities.RuleHistory) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(triggers) > 0 {
			if err := tx.Create(&triggers).Error; err != nil {
				return fmt.Errorf("failed to save trigger history: %w", err)
			}
		}
		if err := tx.Create(history).Error; err != nil {
			return fmt.Errorf("failed to save rule history: %w", err)
		}
		return nil
	})
}

// ListTriggeredTargets returns the distinct targets of a (rule, ad group)
// pair triggered at or after since.
func (r *historyRepository) ListTriggeredTargets(ctx context.Context, ruleID uint, adGroupID string, since time.Time) (map[string]struct{}, error) {
	var targets []string
	err := r.db.WithContext(ctx).
		Model(&entities.TriggerHistory{}).
		Where("rule_id = ? AND ad_group_id = ? AND triggered_at >= ?", ruleID, adGroupID, since).
		Distinct().
		Pluck("target_key", &targets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list triggered targets: %w", err)
	}
	set := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		set[t] = struct{}{}
	}
	return set, nil
}

// ListHistory returns history entries matching the filter with pagination,
// newest first.
func (r *historyRepository) ListHistory(ctx context.Context, filter HistoryFilter) ([]entities.RuleHistory, int64, error) {
	var items []entities.RuleHistory
	var total int64

	apply := func(q *gorm.DB) *gorm.DB {
		if filter.RuleID > 0 {
			q = q.Where("rule_id = ?", filter.RuleID)
		}
		if filter.AdGroupID != "" {
			q = q.Where("ad_group_id = ?", filter.AdGroupID)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		return q
	}

	if err := apply(r.db.WithContext(ctx).Model(&entities.RuleHistory{})).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count rule history: %w", err)
	}

	query := apply(r.db.WithContext(ctx)).Order("created_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list rule history: %w", err)
	}
	return items, total, nil
}

// DeleteHistoryBefore removes rows older than before from both history
// tables. The context carries the retention flag so the append-only hooks
// admit the delete.
func (r *historyRepository) DeleteHistoryBefore(ctx context.Context, before time.Time) (int64, error) {
	ctx = entities.WithRetentionDelete(ctx)
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("triggered_at < ?", before).Delete(&entities.TriggerHistory{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete trigger history before %v: %w", before, result.Error)
		}
		removed += result.RowsAffected
		result = tx.Where("created_at < ?", before).Delete(&entities.RuleHistory{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete rule history before %v: %w", before, result.Error)
		}
		removed += result.RowsAffected
		return nil
	})
	return removed, err
}
