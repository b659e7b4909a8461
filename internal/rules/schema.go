package rules

import "sort"

// ValueClass groups metrics by resolution semantics.
type ValueClass int

const (
	// ClassRawCounter: summable stat. An absent window slice defaults to 0.
	ClassRawCounter ValueClass = iota
	// ClassAveraged: ratio/average stat. An absent window slice stays
	// unknown; averaging nothing is not zero.
	ClassAveraged
	// ClassSettingString: non-stat string attribute from entity settings.
	ClassSettingString
	// ClassSettingDate: non-stat date attribute from entity settings.
	ClassSettingDate
	// ClassSettingNumber: non-stat numeric attribute from entity settings.
	ClassSettingNumber
	// ClassConversionCount: pixel-derived counter (zero-default semantics).
	ClassConversionCount
	// ClassConversionCost: pixel-derived average (unknown semantics).
	ClassConversionCost
)

// ModifierKind tells how a condition's left operand modifier applies.
type ModifierKind int

const (
	ModifierNone ModifierKind = iota
	// ModifierMultiplier scales the resolved stat value.
	ModifierMultiplier
	// ModifierDayOffset shifts a date value by whole days.
	ModifierDayOffset
)

// MetricSpec describes one left operand metric: its resolution class,
// whether a window selection is legal, and which modifier kind applies.
type MetricSpec struct {
	Key      string
	Label    string
	Class    ValueClass
	Windowed bool
	Modifier ModifierKind
}

var metricSpecs = map[string]MetricSpec{
	MetricTotalSpend:      {Key: MetricTotalSpend, Label: "Total Spend", Class: ClassRawCounter, Windowed: true, Modifier: ModifierMultiplier},
	MetricClicks:          {Key: MetricClicks, Label: "Clicks", Class: ClassRawCounter, Windowed: true, Modifier: ModifierMultiplier},
	MetricImpressions:     {Key: MetricImpressions, Label: "Impressions", Class: ClassRawCounter, Windowed: true, Modifier: ModifierMultiplier},
	MetricVisits:          {Key: MetricVisits, Label: "Visits", Class: ClassRawCounter, Windowed: true, Modifier: ModifierMultiplier},
	MetricPageviews:       {Key: MetricPageviews, Label: "Pageviews", Class: ClassRawCounter, Windowed: true, Modifier: ModifierMultiplier},
	MetricNewUsers:        {Key: MetricNewUsers, Label: "New Users", Class: ClassRawCounter, Windowed: true, Modifier: ModifierMultiplier},
	MetricAvgCPC:          {Key: MetricAvgCPC, Label: "Average CPC", Class: ClassAveraged, Windowed: true, Modifier: ModifierMultiplier},
	MetricAvgCPM:          {Key: MetricAvgCPM, Label: "Average CPM", Class: ClassAveraged, Windowed: true, Modifier: ModifierMultiplier},
	MetricCTR:             {Key: MetricCTR, Label: "CTR", Class: ClassAveraged, Windowed: true, Modifier: ModifierMultiplier},
	MetricBounceRate:      {Key: MetricBounceRate, Label: "Bounce Rate", Class: ClassAveraged, Windowed: true, Modifier: ModifierMultiplier},
	MetricPctNewUsers:     {Key: MetricPctNewUsers, Label: "% New Users", Class: ClassAveraged, Windowed: true, Modifier: ModifierMultiplier},
	MetricAvgTimeOnSite:   {Key: MetricAvgTimeOnSite, Label: "Avg. Time on Site", Class: ClassAveraged, Windowed: true, Modifier: ModifierMultiplier},
	MetricPagesPerVisit:   {Key: MetricPagesPerVisit, Label: "Pageviews per Visit", Class: ClassAveraged, Windowed: true, Modifier: ModifierMultiplier},
	MetricAvgCostPerVisit: {Key: MetricAvgCostPerVisit, Label: "Avg. Cost per Visit", Class: ClassAveraged, Windowed: true, Modifier: ModifierMultiplier},

	MetricConversions: {Key: MetricConversions, Label: "Conversions", Class: ClassConversionCount, Windowed: true, Modifier: ModifierNone},
	MetricAvgCPA:      {Key: MetricAvgCPA, Label: "Avg. Cost per Conversion", Class: ClassConversionCost, Windowed: true, Modifier: ModifierMultiplier},

	MetricAdGroupName:  {Key: MetricAdGroupName, Label: "Ad Group Name", Class: ClassSettingString},
	MetricCampaignName: {Key: MetricCampaignName, Label: "Campaign Name", Class: ClassSettingString},
	MetricCampaignType: {Key: MetricCampaignType, Label: "Campaign Type", Class: ClassSettingString},

	MetricAdGroupCreatedDate: {Key: MetricAdGroupCreatedDate, Label: "Ad Group Created Date", Class: ClassSettingDate, Modifier: ModifierDayOffset},
	MetricAdGroupStartDate:   {Key: MetricAdGroupStartDate, Label: "Ad Group Start Date", Class: ClassSettingDate, Modifier: ModifierDayOffset},
	MetricAdGroupEndDate:     {Key: MetricAdGroupEndDate, Label: "Ad Group End Date", Class: ClassSettingDate, Modifier: ModifierDayOffset},

	MetricDaysSinceAdGroupCreated:  {Key: MetricDaysSinceAdGroupCreated, Label: "Days Since Ad Group Created", Class: ClassSettingNumber},
	MetricDaysSinceCampaignCreated: {Key: MetricDaysSinceCampaignCreated, Label: "Days Since Campaign Created", Class: ClassSettingNumber},
	MetricAdGroupDailyCap:          {Key: MetricAdGroupDailyCap, Label: "Ad Group Daily Cap", Class: ClassSettingNumber},
}

// MetricFor looks up the spec of a left operand metric key.
func MetricFor(key string) (MetricSpec, bool) {
	spec, ok := metricSpecs[key]
	return spec, ok
}

// numericOperators are legal for number-valued operands.
var numericOperators = []string{OperatorEquals, OperatorNotEquals, OperatorLessThan, OperatorGreaterThan}

// dateOperators are legal for date-valued operands.
var dateOperators = []string{OperatorEquals, OperatorNotEquals, OperatorLessThan, OperatorGreaterThan}

// stringOperators are legal for string-valued operands.
var stringOperators = []string{OperatorEquals, OperatorNotEquals, OperatorContains, OperatorNotContains, OperatorStartsWith, OperatorEndsWith}

// OperatorsFor returns the operators legal for a metric's value class.
func OperatorsFor(class ValueClass) []string {
	switch class {
	case ClassSettingString:
		return stringOperators
	case ClassSettingDate:
		return dateOperators
	default:
		return numericOperators
	}
}

// operatorLegal reports whether op is in the legal set for the class.
func operatorLegal(op string, class ValueClass) bool {
	for _, legal := range OperatorsFor(class) {
		if op == legal {
			return true
		}
	}
	return false
}

// actionTargets is the fixed actionType → targetType compatibility table.
// Bid and budget adjustments and state transitions operate on the ad group
// itself; bid modifiers on any targeting dimension; publisher actions only
// on publishers; notifications anywhere.
var actionTargets = map[string][]string{
	ActionIncreaseBid:    {TargetAdGroup},
	ActionDecreaseBid:    {TargetAdGroup},
	ActionIncreaseBudget: {TargetAdGroup},
	ActionDecreaseBudget: {TargetAdGroup},
	ActionTurnOff:        {TargetAdGroup, TargetAd},

	ActionIncreaseBidModifier: {TargetAd, TargetPublisher, TargetSource, TargetDevice, TargetCountry, TargetState, TargetDMA, TargetOS},
	ActionDecreaseBidModifier: {TargetAd, TargetPublisher, TargetSource, TargetDevice, TargetCountry, TargetState, TargetDMA, TargetOS},

	ActionBlacklist:           {TargetPublisher},
	ActionAddToPublisherGroup: {TargetPublisher},

	ActionNotify:    allTargetTypes,
	ActionSendEmail: allTargetTypes,
}

var allTargetTypes = []string{
	TargetAdGroup, TargetAd, TargetPublisher, TargetSource,
	TargetDevice, TargetCountry, TargetState, TargetDMA, TargetOS,
}

// ActionValidForTarget checks the action/target compatibility table.
func ActionValidForTarget(actionType, targetType string) bool {
	for _, t := range actionTargets[actionType] {
		if t == targetType {
			return true
		}
	}
	return false
}

// windowHours maps each window to its span for reference tooling. Lifetime
// and not-applicable carry no span.
var windowHours = map[string]int{
	WindowLastDay:    24,
	WindowLast3Days:  3 * 24,
	WindowLast7Days:  7 * 24,
	WindowLast30Days: 30 * 24,
	WindowLast60Days: 60 * 24,
}

// KnownWindow reports whether the window key is part of the catalog.
func KnownWindow(w string) bool {
	if _, ok := windowHours[w]; ok {
		return true
	}
	return w == WindowLifetime || w == WindowNotApplicable
}

// Schema describes the full catalog of target types, metrics, operators and
// actions, for UI/tooling consumption.
type Schema struct {
	TargetTypes []TargetTypeSchema `json:"targetTypes"`
	Metrics     []MetricSchema     `json:"metrics"`
	Operators   []OperatorSchema   `json:"operators"`
	Windows     []string           `json:"windows"`
}

// TargetTypeSchema describes a target type and its compatible actions.
type TargetTypeSchema struct {
	Name    string   `json:"name"`
	Label   string   `json:"label"`
	Actions []string `json:"actions"`
}

// MetricSchema describes a left operand metric for the UI.
type MetricSchema struct {
	Name      string   `json:"name"`
	Label     string   `json:"label"`
	Windowed  bool     `json:"windowed"`
	Operators []string `json:"operators"`
}

// OperatorSchema describes an operator for the UI.
type OperatorSchema struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// GetSchema returns the full rules schema.
func GetSchema() Schema {
	s := Schema{
		Windows: []string{
			WindowLastDay, WindowLast3Days, WindowLast7Days,
			WindowLast30Days, WindowLast60Days, WindowLifetime,
		},
		Operators: []OperatorSchema{
			{Name: OperatorEquals, Label: "is equal to"},
			{Name: OperatorNotEquals, Label: "is not equal to"},
			{Name: OperatorLessThan, Label: "is less than"},
			{Name: OperatorGreaterThan, Label: "is greater than"},
			{Name: OperatorContains, Label: "contains"},
			{Name: OperatorNotContains, Label: "does not contain"},
			{Name: OperatorStartsWith, Label: "starts with"},
			{Name: OperatorEndsWith, Label: "ends with"},
		},
	}
	for _, tt := range allTargetTypes {
		entry := TargetTypeSchema{Name: tt, Label: TargetNoun(tt).Singular}
		for action, targets := range actionTargets {
			for _, t := range targets {
				if t == tt {
					entry.Actions = append(entry.Actions, action)
					break
				}
			}
		}
		sort.Strings(entry.Actions)
		s.TargetTypes = append(s.TargetTypes, entry)
	}
	for _, spec := range metricSpecs {
		s.Metrics = append(s.Metrics, MetricSchema{
			Name:      spec.Key,
			Label:     spec.Label,
			Windowed:  spec.Windowed,
			Operators: OperatorsFor(spec.Class),
		})
	}
	sort.Slice(s.Metrics, func(i, j int) bool { return s.Metrics[i].Name < s.Metrics[j].Name })
	return s
}
