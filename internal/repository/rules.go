// Package repository provides the GORM-backed persistence layer for
// automation rules, their run history, and the targets rule actions mutate.
package repository

import (
	"context"
	"errors"

	"github.com/trafficops/adrules/internal/entities"
)

// ErrRuleNotFound is returned when a rule lookup matches no row.
var ErrRuleNotFound = errors.New("automation rule not found")

// RuleRepository handles automation rule CRUD and bulk operations. Create
// and update run the schema validator first; an invalid rule never reaches
// the database.
type RuleRepository interface {
	// Rule CRUD
	ListRules(ctx context.Context, filter RuleFilter) ([]entities.Rule, error)
	GetRule(ctx context.Context, id uint) (*entities.Rule, error)
	CreateRule(ctx context.Context, rule *entities.Rule) error
	UpdateRule(ctx context.Context, rule *entities.Rule) error
	DeleteRule(ctx context.Context, id uint) error
	ToggleRule(ctx context.Context, id uint, enabled bool) error

	// Bulk operations
	GetEnabledRules(ctx context.Context) ([]entities.Rule, error)
	SeedDefaultRules(ctx context.Context) (int64, error)
	DeleteBuiltInRules(ctx context.Context) (int64, error)
}

// RuleFilter controls rule listing queries.
type RuleFilter struct {
	TargetType string
	ActionType string
	Enabled    *bool
	BuiltIn    *bool
}
