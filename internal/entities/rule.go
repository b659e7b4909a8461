package entities

import "time"

// Rule defines a user-configurable automation rule.
// Rules compare windowed reporting metrics against conditions and, when all
// conditions match for a target, apply an action (bid/budget adjustment,
// pause, blacklist, notification).
type Rule struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"size:1000;default:''" json:"description"`
	Enabled     bool   `gorm:"not null;index" json:"enabled"`
	BuiltIn     bool   `gorm:"not null;default:false" json:"built_in"`
	TargetType  string `gorm:"size:50;not null;index" json:"target_type"`
	ActionType  string `gorm:"size:50;not null" json:"action_type"`
	ChangeStep  float64 `gorm:"default:0" json:"change_step"`
	ChangeLimit float64 `gorm:"default:0" json:"change_limit"`

	// CooldownHours must be a positive multiple of 24.
	CooldownHours int    `gorm:"not null;default:24" json:"cooldown_hours"`
	Window        string `gorm:"size:30;not null" json:"window"`

	// PublisherGroupID names the group add_to_publisher_group inserts into.
	PublisherGroupID string `gorm:"size:50;default:''" json:"publisher_group_id"`

	NotificationType       string `gorm:"size:30;default:''" json:"notification_type"`
	NotificationRecipients string `gorm:"size:1000;default:''" json:"notification_recipients"`

	// Email fields are only meaningful when ActionType is ActionSendEmail.
	SendEmailSubject    string `gorm:"size:500;default:''" json:"send_email_subject"`
	SendEmailBody       string `gorm:"type:text;default:''" json:"send_email_body"`
	SendEmailRecipients string `gorm:"size:1000;default:''" json:"send_email_recipients"`

	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	Conditions []RuleCondition `gorm:"foreignKey:RuleID;constraint:OnDelete:CASCADE" json:"conditions"`
}

// TableName returns the table name for GORM.
func (Rule) TableName() string {
	return "automation_rules"
}

// RuleCondition defines a single condition within an automation rule.
// All conditions in a rule use AND logic.
type RuleCondition struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	RuleID uint `gorm:"not null;index" json:"rule_id"`

	LeftOperandType     string  `gorm:"size:100;not null" json:"left_operand_type"`
	LeftOperandWindow   string  `gorm:"size:30;default:''" json:"left_operand_window"`
	LeftOperandModifier float64 `gorm:"default:0" json:"left_operand_modifier"`

	// ConversionPixel optionally pins a conversion metric to a specific
	// pixel/window/attribution instead of the campaign's CPA goal.
	ConversionPixel       string `gorm:"size:100;default:''" json:"conversion_pixel"`
	ConversionWindow      string `gorm:"size:30;default:''" json:"conversion_window"`
	ConversionAttribution string `gorm:"size:30;default:''" json:"conversion_attribution"`

	Operator string `gorm:"size:30;not null" json:"operator"`

	RightOperandType   string `gorm:"size:100;not null" json:"right_operand_type"`
	RightOperandWindow string `gorm:"size:30;default:''" json:"right_operand_window"`
	RightOperandValue  string `gorm:"size:500;default:''" json:"right_operand_value"`

	SortOrder int `gorm:"default:0" json:"sort_order"`
}

// TableName returns the table name for GORM.
func (RuleCondition) TableName() string {
	return "automation_rule_conditions"
}
