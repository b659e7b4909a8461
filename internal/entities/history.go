package entities

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Rule history statuses.
const (
	HistoryStatusSuccess          = "success"
	HistoryStatusSuccessNoChanges = "success_no_changes"
	HistoryStatusFailure          = "failure"
)

// ErrHistoryImmutable is returned when an update or delete is attempted on a
// history row. History tables are append-only; retention cleanup must go
// through WithRetentionDelete.
var ErrHistoryImmutable = errors.New("history records are append-only")

type retentionDeleteKey struct{}

// WithRetentionDelete marks the context so the append-only guard admits a
// delete issued by the retention cleanup path.
func WithRetentionDelete(ctx context.Context) context.Context {
	return context.WithValue(ctx, retentionDeleteKey{}, true)
}

func retentionDeleteAllowed(ctx context.Context) bool {
	allowed, _ := ctx.Value(retentionDeleteKey{}).(bool)
	return allowed
}

// TriggerHistory records each time a rule fired on a target. Its existence
// within the rule's cooldown window suppresses re-evaluation of that target.
type TriggerHistory struct {
	ID          uint      `gorm:"primaryKey"`
	RuleID      uint      `gorm:"not null;index:idx_trigger_rule_adgroup,priority:1"`
	AdGroupID   string    `gorm:"size:50;not null;index:idx_trigger_rule_adgroup,priority:2"`
	TargetKey   string    `gorm:"size:255;not null"`
	TriggeredAt time.Time `gorm:"not null;index:idx_trigger_rule_adgroup,priority:3"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM.
func (TriggerHistory) TableName() string {
	return "automation_trigger_history"
}

// BeforeUpdate rejects updates; trigger history is append-only.
func (TriggerHistory) BeforeUpdate(*gorm.DB) error {
	return ErrHistoryImmutable
}

// BeforeDelete rejects deletes unless issued by retention cleanup.
func (TriggerHistory) BeforeDelete(tx *gorm.DB) error {
	if retentionDeleteAllowed(tx.Statement.Context) {
		return nil
	}
	return ErrHistoryImmutable
}

// RuleHistory records the outcome of one rule run against one ad group.
// Changes holds the per-target value changes serialized as JSON.
type RuleHistory struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	RuleID        uint      `gorm:"not null;index:idx_rule_history_rule,priority:1" json:"rule_id"`
	AdGroupID     string    `gorm:"size:50;not null;index" json:"ad_group_id"`
	Status        string    `gorm:"size:30;not null" json:"status"`
	Changes       string    `gorm:"type:text;default:''" json:"changes"`
	ChangesText   string    `gorm:"type:text;default:''" json:"changes_text"`
	FailureReason string    `gorm:"size:100;default:''" json:"failure_reason"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index:idx_rule_history_rule,priority:2" json:"created_at"`
}

// TableName returns the table name for GORM.
func (RuleHistory) TableName() string {
	return "automation_rule_history"
}

// BeforeUpdate rejects updates; rule history is append-only.
func (RuleHistory) BeforeUpdate(*gorm.DB) error {
	return ErrHistoryImmutable
}

// BeforeDelete rejects deletes unless issued by retention cleanup.
func (RuleHistory) BeforeDelete(tx *gorm.DB) error {
	if retentionDeleteAllowed(tx.Statement.Context) {
		return nil
	}
	return ErrHistoryImmutable
}
