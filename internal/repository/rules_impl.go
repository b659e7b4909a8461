package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/trafficops/adrules/internal/entities"
	"github.com/trafficops/adrules/internal/rules"
)

// ruleRepository implements RuleRepository.
type ruleRepository struct {
	db        *gorm.DB
	validator *rules.SchemaValidator
}

// NewRuleRepository creates a new RuleRepository. Every write path runs the
// validator before touching the database.
func NewRuleRepository(db *gorm.DB, validator *rules.SchemaValidator) RuleRepository {
	return &ruleRepository{db: db, validator: validator}
}

// ListRules returns automation rules matching the given filter.
func (r *ruleRepository) ListRules(ctx context.Context, filter RuleFilter) ([]entities.Rule, error) {
	var list []entities.Rule
	query := r.db.WithContext(ctx).Preload("Conditions")

	if filter.TargetType != "" {
		query = query.Where("target_type = ?", filter.TargetType)
	}
	if filter.ActionType != "" {
		query = query.Where("action_type = ?", filter.ActionType)
	}
	if filter.Enabled != nil {
		query = query.Where("enabled = ?", *filter.Enabled)
	}
	if filter.BuiltIn != nil {
		query = query.Where("built_in = ?", *filter.BuiltIn)
	}

	if err := query.Order("id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return list, nil
}

// GetRule returns a single rule by ID with its conditions.
// Returns ErrRuleNotFound if the rule does not exist.
func (r *ruleRepository) GetRule(ctx context.Context, id uint) (*entities.Rule, error) {
	var rule entities.Rule
	if err := r.db.WithContext(ctx).Preload("Conditions").First(&rule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to get rule %d: %w", id, err)
	}
	return &rule, nil
}

// CreateRule validates and creates a new rule with its conditions.
func (r *ruleRepository) CreateRule(ctx context.Context, rule *entities.Rule) error {
	if err := r.validator.ValidateRule(rule); err != nil {
		return fmt.Errorf("invalid rule: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

// UpdateRule validates and replaces a rule, deleting existing conditions
// first. Updates are full-state: the caller sends the complete rule, since
// condition legality depends on fields elsewhere in the rule.
func (r *ruleRepository) UpdateRule(ctx context.Context, rule *entities.Rule) error {
	if rule.ID == 0 {
		return fmt.Errorf("failed to update rule: missing rule ID")
	}
	if err := r.validator.ValidateRule(rule); err != nil {
		return fmt.Errorf("invalid rule: %w", err)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("rule_id = ?", rule.ID).Delete(&entities.RuleCondition{}).Error; err != nil {
			return fmt.Errorf("failed to delete old conditions: %w", err)
		}
		// Zero out IDs so GORM inserts new rows instead of trying to update deleted ones
		for i := range rule.Conditions {
			rule.Conditions[i].ID = 0
		}
		if err := tx.Save(rule).Error; err != nil {
			return fmt.Errorf("failed to update rule: %w", err)
		}
		return nil
	})
}

// DeleteRule deletes a rule and its conditions via cascade.
func (r *ruleRepository) DeleteRule(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entities.Rule{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete rule %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// ToggleRule enables or disables a rule.
func (r *ruleRepository) ToggleRule(ctx context.Context, id uint, enabled bool) error {
	result := r.db.WithContext(ctx).Model(&entities.Rule{}).Where("id = ?", id).Update("enabled", enabled)
	if result.Error != nil {
		return fmt.Errorf("failed to toggle rule %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// GetEnabledRules returns all enabled rules with their conditions.
func (r *ruleRepository) GetEnabledRules(ctx context.Context) ([]entities.Rule, error) {
	enabled := true
	return r.ListRules(ctx, RuleFilter{Enabled: &enabled})
}

// SeedDefaultRules inserts the built-in rules that are not already present,
// matching by name. Returns the number of rules inserted.
func (r *ruleRepository) SeedDefaultRules(ctx context.Context) (int64, error) {
	var seeded int64
	for _, rule := range rules.DefaultRules() {
		var count int64
		if err := r.db.WithContext(ctx).Model(&entities.Rule{}).Where("name = ?", rule.Name).Count(&count).Error; err != nil {
			return seeded, fmt.Errorf("failed to check rule %q: %w", rule.Name, err)
		}
		if count > 0 {
			continue
		}
		if err := r.CreateRule(ctx, &rule); err != nil {
			return seeded, fmt.Errorf("failed to seed rule %q: %w", rule.Name, err)
		}
		seeded++
	}
	return seeded, nil
}

// DeleteBuiltInRules deletes all built-in rules.
func (r *ruleRepository) DeleteBuiltInRules(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Where("built_in = ?", true).Delete(&entities.Rule{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete built-in rules: %w", result.Error)
	}
	return result.RowsAffected, nil
}
