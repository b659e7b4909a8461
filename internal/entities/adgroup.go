package entities

import "time"

// Ad group delivery states.
const (
	AdGroupStateActive = "active"
	AdGroupStatePaused = "paused"
)

// AdGroupSettings holds the mutable delivery settings of an ad group that
// adjustment and state-transition actions operate on.
type AdGroupSettings struct {
	AdGroupID   string  `gorm:"primaryKey;size:50" json:"ad_group_id"`
	CampaignID  string  `gorm:"size:50;not null;index" json:"campaign_id"`
	Name        string  `gorm:"size:255;not null" json:"name"`
	State       string  `gorm:"size:20;not null;default:'active'" json:"state"`
	Archived    bool    `gorm:"not null;default:false" json:"archived"`
	Bid         float64 `gorm:"not null;default:0" json:"bid"`
	DailyBudget float64 `gorm:"not null;default:0" json:"daily_budget"`

	// Autopilot flags guard bid and budget adjustments: campaign autopilot
	// owns bids while active, budget autopilot must be active for budget
	// actions to apply.
	CampaignAutopilot bool `gorm:"not null;default:false" json:"campaign_autopilot"`
	BudgetAutopilot   bool `gorm:"not null;default:false" json:"budget_autopilot"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (AdGroupSettings) TableName() string {
	return "ad_group_settings"
}

// BidModifier is a multiplicative adjustment around 1.0 applied to the base
// bid for one targeting dimension value within an ad group.
type BidModifier struct {
	ID         uint      `gorm:"primaryKey"`
	AdGroupID  string    `gorm:"size:50;not null;uniqueIndex:idx_bid_modifier_target,priority:1"`
	TargetType string    `gorm:"size:50;not null;uniqueIndex:idx_bid_modifier_target,priority:2"`
	Target     string    `gorm:"size:255;not null;uniqueIndex:idx_bid_modifier_target,priority:3"`
	Modifier   float64   `gorm:"not null;default:1"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (BidModifier) TableName() string {
	return "bid_modifiers"
}

// PublisherGroupEntry is one blacklisted or grouped publisher.
type PublisherGroupEntry struct {
	ID        uint      `gorm:"primaryKey"`
	GroupID   string    `gorm:"size:50;not null;index"`
	Publisher string    `gorm:"size:255;not null"`
	Source    string    `gorm:"size:100;default:''"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM.
func (PublisherGroupEntry) TableName() string {
	return "publisher_group_entries"
}
