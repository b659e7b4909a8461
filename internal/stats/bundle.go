// Package stats defines the reporting-data contracts the rules engine
// consumes. The warehouse that produces these bundles is an external
// collaborator; only the lookup shape is specified here.
package stats

import "fmt"

// WindowValues maps a window key to an aggregated stat value. A nil entry
// means the warehouse returned NULL for that window; a missing key means the
// window slice was never produced at all. The two cases are not equivalent:
// raw counter metrics default to zero for an absent slice but stay undecided
// for an explicit NULL.
type WindowValues map[string]*float64

// TargetBundle holds everything known about one target: windowed stats,
// entity settings, and conversion aggregates keyed by pixel.
type TargetBundle struct {
	// Metrics maps metric key → window → value.
	Metrics map[string]WindowValues `yaml:"metrics"`

	// Settings holds non-stat entity attributes (name, created date,
	// campaign type, budgets) read directly by settings-type operands.
	Settings map[string]any `yaml:"settings"`

	// Conversions maps ConversionKey(slug, attribution) → window → value.
	Conversions map[string]WindowValues `yaml:"conversions"`
}

// ConversionKey builds the lookup key for a conversion aggregate.
func ConversionKey(pixelSlug, attribution string) string {
	return fmt.Sprintf("%s/%s", pixelSlug, attribution)
}

// AdGroup identifies the ad group a rule unit runs against.
type AdGroup struct {
	ID         string `yaml:"id"`
	CampaignID string `yaml:"campaign_id"`
	Name       string `yaml:"name"`
}

// BudgetFacts are the campaign-level budget figures right operands can
// reference.
type BudgetFacts struct {
	CampaignBudget  float64 `yaml:"campaign_budget"`
	RemainingBudget float64 `yaml:"remaining_budget"`
	DailyCap        float64 `yaml:"daily_cap"`
}

// CPAGoal is a campaign's cost-per-acquisition objective. It supplies the
// default pixel/window/attribution for conversion operands that do not pin
// an explicit pixel.
type CPAGoal struct {
	PixelSlug   string `yaml:"pixel_slug"`
	Window      string `yaml:"window"`
	Attribution string `yaml:"attribution"`
}

// AdGroupBundle is the prefetched unit of work for one (rule, ad group)
// evaluation: all target bundles plus campaign-level facts. Everything the
// decision phase needs is in here, so condition evaluation never blocks on
// I/O.
type AdGroupBundle struct {
	AdGroup AdGroup                  `yaml:"ad_group"`
	Targets map[string]*TargetBundle `yaml:"targets"`
	Budgets BudgetFacts              `yaml:"budgets"`
	CPAGoal *CPAGoal                 `yaml:"cpa_goal"`
}
