package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trafficops/adrules/internal/entities"
)

// bidModifierRepository persists per-target bid modifiers. It satisfies the
// engine's BidModifierStore.
type bidModifierRepository struct {
	db *gorm.DB
}

// NewBidModifierRepository creates a bid modifier store.
func NewBidModifierRepository(db *gorm.DB) *bidModifierRepository {
	return &bidModifierRepository{db: db}
}

// Current returns the stored modifier for a target, with ok=false when no
// row exists yet.
func (r *bidModifierRepository) Current(ctx context.Context, adGroupID, targetType, target string) (float64, bool, error) {
	var mod entities.BidModifier
	err := r.db.WithContext(ctx).
		Where("ad_group_id = ? AND target_type = ? AND target = ?", adGroupID, targetType, target).
		First(&mod).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get bid modifier: %w", err)
	}
	return mod.Modifier, true, nil
}

// Save upserts the modifier for a target.
func (r *bidModifierRepository) Save(ctx context.Context, adGroupID, targetType, target string, value float64) error {
	mod := entities.BidModifier{
		AdGroupID:  adGroupID,
		TargetType: targetType,
		Target:     target,
		Modifier:   value,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ad_group_id"}, {Name: "target_type"}, {Name: "target"}},
		DoUpdates: clause.AssignmentColumns([]string{"modifier", "updated_at"}),
	}).Create(&mod).Error
	if err != nil {
		return fmt.Errorf("failed to save bid modifier: %w", err)
	}
	return nil
}

// adGroupRepository persists ad group delivery settings. It satisfies the
// engine's AdGroupStore.
type adGroupRepository struct {
	db *gorm.DB
}

// NewAdGroupRepository creates an ad group settings store.
func NewAdGroupRepository(db *gorm.DB) *adGroupRepository {
	return &adGroupRepository{db: db}
}

// Get returns the settings row for an ad group, or nil when none exists.
func (r *adGroupRepository) Get(ctx context.Context, adGroupID string) (*entities.AdGroupSettings, error) {
	var settings entities.AdGroupSettings
	err := r.db.WithContext(ctx).Where("ad_group_id = ?", adGroupID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ad group %s: %w", adGroupID, err)
	}
	return &settings, nil
}

// Upsert creates or replaces an ad group settings row.
func (r *adGroupRepository) Upsert(ctx context.Context, settings *entities.AdGroupSettings) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ad_group_id"}},
		UpdateAll: true,
	}).Create(settings).Error
	if err != nil {
		return fmt.Errorf("failed to upsert ad group %s: %w", settings.AdGroupID, err)
	}
	return nil
}

// SaveBid updates the base bid of an ad group.
func (r *adGroupRepository) SaveBid(ctx context.Context, adGroupID string, bid float64) error {
	return r.updateColumn(ctx, adGroupID, "bid", bid)
}

// SaveDailyBudget updates the daily budget of an ad group.
func (r *adGroupRepository) SaveDailyBudget(ctx context.Context, adGroupID string, budget float64) error {
	return r.updateColumn(ctx, adGroupID, "daily_budget", budget)
}

// SetState updates the delivery state of an ad group.
func (r *adGroupRepository) SetState(ctx context.Context, adGroupID, state string) error {
	return r.updateColumn(ctx, adGroupID, "state", state)
}

func (r *adGroupRepository) updateColumn(ctx context.Context, adGroupID, column string, value any) error {
	result := r.db.WithContext(ctx).
		Model(&entities.AdGroupSettings{}).
		Where("ad_group_id = ?", adGroupID).
		Update(column, value)
	if result.Error != nil {
		return fmt.Errorf("failed to update ad group %s: %w", adGroupID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("ad group %s not found", adGroupID)
	}
	return nil
}

// publisherGroupRepository persists publisher group membership. It satisfies
// the engine's PublisherGroupStore.
type publisherGroupRepository struct {
	db *gorm.DB
}

// NewPublisherGroupRepository creates a publisher group store.
func NewPublisherGroupRepository(db *gorm.DB) *publisherGroupRepository {
	return &publisherGroupRepository{db: db}
}

// AddEntry inserts a publisher into a group if not already present and
// reports whether a row was added. Re-applying a blacklist rule on the same
// publisher is a no-op, not an error.
func (r *publisherGroupRepository) AddEntry(ctx context.Context, groupID, publisher, source string) (bool, error) {
	var existing entities.PublisherGroupEntry
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND publisher = ? AND source = ?", groupID, publisher, source).
		First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("failed to check publisher group entry: %w", err)
	}
	entry := entities.PublisherGroupEntry{GroupID: groupID, Publisher: publisher, Source: source}
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return false, fmt.Errorf("failed to add publisher group entry: %w", err)
	}
	return true, nil
}

// ListEntries returns the members of a publisher group.
func (r *publisherGroupRepository) ListEntries(ctx context.Context, groupID string) ([]entities.PublisherGroupEntry, error) {
	var entries []entities.PublisherGroupEntry
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list publisher group entries: %w", err)
	}
	return entries, nil
}
