// Package rules implements the automation rule evaluation and application
// engine: operand resolution, condition evaluation, cooldown suppression,
// bounded action application, and audit formatting.
package rules

// Target types define the entity dimension a rule's action applies to.
const (
	TargetAdGroup   = "ad_group"
	TargetAd        = "ad"
	TargetPublisher = "publisher"
	TargetSource    = "source"
	TargetDevice    = "device"
	TargetCountry   = "country"
	TargetState     = "state"
	TargetDMA       = "dma"
	TargetOS        = "os"
)

// Action types define what happens when a rule fires on a target.
const (
	ActionIncreaseBid         = "increase_bid"
	ActionDecreaseBid         = "decrease_bid"
	ActionIncreaseBidModifier = "increase_bid_modifier"
	ActionDecreaseBidModifier = "decrease_bid_modifier"
	ActionIncreaseBudget      = "increase_budget"
	ActionDecreaseBudget      = "decrease_budget"
	ActionTurnOff             = "turn_off"
	ActionBlacklist           = "blacklist"
	ActionAddToPublisherGroup = "add_to_publisher_group"
	ActionNotify              = "notify"
	ActionSendEmail           = "send_email"
)

// Condition operators.
const (
	OperatorEquals      = "equals"
	OperatorNotEquals   = "not_equals"
	OperatorLessThan    = "less_than"
	OperatorGreaterThan = "greater_than"
	OperatorContains    = "contains"
	OperatorNotContains = "not_contains"
	OperatorStartsWith  = "starts_with"
	OperatorEndsWith    = "ends_with"
)

// Metric windows select which aggregated stat slice a condition reads.
const (
	WindowLastDay       = "last_day"
	WindowLast3Days     = "last_3_days"
	WindowLast7Days     = "last_7_days"
	WindowLast30Days    = "last_30_days"
	WindowLast60Days    = "last_60_days"
	WindowLifetime      = "lifetime"
	WindowNotApplicable = "not_applicable"
)

// Left operand metric keys: windowed stats.
const (
	MetricTotalSpend     = "total_spend"
	MetricClicks         = "clicks"
	MetricImpressions    = "impressions"
	MetricVisits         = "visits"
	MetricPageviews      = "pageviews"
	MetricNewUsers       = "new_users"
	MetricAvgCPC         = "avg_cpc"
	MetricAvgCPM         = "avg_cpm"
	MetricCTR            = "ctr"
	MetricBounceRate     = "bounce_rate"
	MetricPctNewUsers    = "pct_new_users"
	MetricAvgTimeOnSite  = "avg_time_on_site"
	MetricPagesPerVisit  = "pages_per_visit"
	MetricAvgCostPerVisit = "avg_cost_per_visit"
)

// Left operand metric keys: conversion-pixel-derived.
const (
	MetricConversions = "conversions"
	MetricAvgCPA      = "avg_cost_per_conversion"
)

// Left operand metric keys: entity settings.
const (
	MetricAdGroupName             = "ad_group_name"
	MetricCampaignName            = "campaign_name"
	MetricCampaignType            = "campaign_type"
	MetricAdGroupCreatedDate      = "ad_group_created_date"
	MetricAdGroupStartDate        = "ad_group_start_date"
	MetricAdGroupEndDate          = "ad_group_end_date"
	MetricDaysSinceAdGroupCreated = "days_since_ad_group_created"
	MetricDaysSinceCampaignCreated = "days_since_campaign_created"
	MetricAdGroupDailyCap         = "ad_group_daily_cap"
)

// Right operand value types.
const (
	ValueAbsolute        = "absolute"
	ValueCampaignBudget  = "campaign_budget"
	ValueRemainingBudget = "remaining_budget"
	ValueDailyCap        = "daily_cap"
	ValueTotalSpend      = "total_spend"
	ValueCurrentDate     = "current_date"
)

// Notification types control when a rule emails its recipients.
const (
	NotifyNone            = "none"
	NotifyOnRuleRun       = "on_rule_run"
	NotifyOnRuleTriggered = "on_rule_triggered"
)

// Conversion attribution windows.
const (
	AttributionClick = "click"
	AttributionView  = "view"
)

// Bid modifier bounds. Clamping to the rule's change limit happens first;
// these global bounds are the hard floor and ceiling.
const (
	MinBidModifier = 0.01
	MaxBidModifier = 11.0
)

// Floors for scalar adjustments. An adjustment may clamp down to these but
// never below.
const (
	MinBid         = 0.01
	MinDailyBudget = 1.0
)

// HoursPerDay anchors the cooldown validation: cooldowns are whole days
// expressed in hours.
const HoursPerDay = 24
