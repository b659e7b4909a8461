package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafficops/adrules/internal/entities"
)

func validRule() *entities.Rule {
	return &entities.Rule{
		Name:          "Pause expensive ad groups",
		TargetType:    TargetAdGroup,
		ActionType:    ActionTurnOff,
		CooldownHours: 24,
		Window:        WindowLast7Days,
		Conditions: []entities.RuleCondition{
			{
				LeftOperandType:   MetricAvgCPC,
				Operator:          OperatorGreaterThan,
				RightOperandType:  ValueAbsolute,
				RightOperandValue: "2.0",
			},
		},
	}
}

func TestValidateRule_Valid(t *testing.T) {
	t.Parallel()
	require.NoError(t, NewSchemaValidator().ValidateRule(validRule()))
}

func TestValidateRule_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*entities.Rule)
		wantErr string
	}{
		{
			name:    "missing name",
			mutate:  func(r *entities.Rule) { r.Name = "" },
			wantErr: "name is required",
		},
		{
			name:    "action target mismatch",
			mutate:  func(r *entities.Rule) { r.ActionType = ActionBlacklist },
			wantErr: "not valid for target type",
		},
		{
			name:    "bid adjustment on dimension target",
			mutate:  func(r *entities.Rule) { r.TargetType = TargetCountry; r.ActionType = ActionIncreaseBid },
			wantErr: "not valid for target type",
		},
		{
			name:    "cooldown not a day multiple",
			mutate:  func(r *entities.Rule) { r.CooldownHours = 36 },
			wantErr: "cooldown",
		},
		{
			name:    "cooldown zero",
			mutate:  func(r *entities.Rule) { r.CooldownHours = 0 },
			wantErr: "cooldown",
		},
		{
			name:    "unknown window",
			mutate:  func(r *entities.Rule) { r.Window = "last_fortnight" },
			wantErr: "unknown window",
		},
		{
			name:    "no conditions",
			mutate:  func(r *entities.Rule) { r.Conditions = nil },
			wantErr: "at least one condition",
		},
		{
			name:    "state action with change step",
			mutate:  func(r *entities.Rule) { r.ChangeStep = 0.1 },
			wantErr: "does not take a change step",
		},
		{
			name: "adjustment without step",
			mutate: func(r *entities.Rule) {
				r.ActionType = ActionIncreaseBudget
				r.ChangeStep = 0
				r.ChangeLimit = 100
			},
			wantErr: "change step must be positive",
		},
		{
			name: "modifier limit beyond ceiling",
			mutate: func(r *entities.Rule) {
				r.TargetType = TargetCountry
				r.ActionType = ActionIncreaseBidModifier
				r.ChangeStep = 0.1
				r.ChangeLimit = 12
			},
			wantErr: "change limit must be within",
		},
		{
			name: "add_to_publisher_group without group",
			mutate: func(r *entities.Rule) {
				r.TargetType = TargetPublisher
				r.ActionType = ActionAddToPublisherGroup
			},
			wantErr: "requires a publisher group",
		},
		{
			name: "send_email without body",
			mutate: func(r *entities.Rule) {
				r.ActionType = ActionSendEmail
				r.SendEmailSubject = "s"
				r.SendEmailRecipients = "a@x.com"
			},
			wantErr: "send_email requires",
		},
		{
			name:    "email fields on non-email rule",
			mutate:  func(r *entities.Rule) { r.SendEmailSubject = "stray" },
			wantErr: "only valid for send_email",
		},
		{
			name:    "unknown metric",
			mutate:  func(r *entities.Rule) { r.Conditions[0].LeftOperandType = "made_up" },
			wantErr: "unknown left operand",
		},
		{
			name:    "string operator on numeric metric",
			mutate:  func(r *entities.Rule) { r.Conditions[0].Operator = OperatorContains },
			wantErr: "not valid for",
		},
		{
			name: "window on non-windowed metric",
			mutate: func(r *entities.Rule) {
				r.Conditions[0].LeftOperandType = MetricCampaignName
				r.Conditions[0].Operator = OperatorContains
				r.Conditions[0].LeftOperandWindow = WindowLast7Days
				r.Conditions[0].RightOperandValue = "Search"
			},
			wantErr: "does not take a window",
		},
		{
			name: "modifier on conversions",
			mutate: func(r *entities.Rule) {
				r.Conditions[0].LeftOperandType = MetricConversions
				r.Conditions[0].LeftOperandModifier = 2
			},
			wantErr: "does not take a modifier",
		},
		{
			name:    "absolute without value",
			mutate:  func(r *entities.Rule) { r.Conditions[0].RightOperandValue = "" },
			wantErr: "requires a value",
		},
		{
			name:    "unknown right operand",
			mutate:  func(r *entities.Rule) { r.Conditions[0].RightOperandType = "psychic" },
			wantErr: "unknown right operand",
		},
		{
			name: "conversion window without pixel",
			mutate: func(r *entities.Rule) {
				r.Conditions[0].LeftOperandType = MetricConversions
				r.Conditions[0].ConversionWindow = WindowLast30Days
			},
			wantErr: "require an explicit pixel",
		},
	}

	validator := NewSchemaValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rule := validRule()
			tt.mutate(rule)
			err := validator.ValidateRule(rule)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaultRules_AllValid(t *testing.T) {
	t.Parallel()

	validator := NewSchemaValidator()
	for _, rule := range DefaultRules() {
		assert.NoErrorf(t, validator.ValidateRule(&rule), "default rule %q", rule.Name)
	}
}

func TestActionValidForTarget(t *testing.T) {
	t.Parallel()

	assert.True(t, ActionValidForTarget(ActionTurnOff, TargetAd))
	assert.True(t, ActionValidForTarget(ActionIncreaseBidModifier, TargetOS))
	assert.True(t, ActionValidForTarget(ActionNotify, TargetDMA))
	assert.False(t, ActionValidForTarget(ActionIncreaseBidModifier, TargetAdGroup))
	assert.False(t, ActionValidForTarget(ActionBlacklist, TargetCountry))
	assert.False(t, ActionValidForTarget("unknown", TargetAdGroup))
}

func TestGetSchema(t *testing.T) {
	t.Parallel()

	schema := GetSchema()
	assert.Len(t, schema.TargetTypes, len(allTargetTypes))
	assert.Len(t, schema.Metrics, len(metricSpecs))
	assert.NotEmpty(t, schema.Operators)
	assert.NotContains(t, schema.Windows, WindowNotApplicable)

	for _, tt := range schema.TargetTypes {
		assert.IsIncreasingf(t, tt.Actions, "actions for %s must be sorted", tt.Name)
	}
	names := make([]string, 0, len(schema.Metrics))
	for _, m := range schema.Metrics {
		names = append(names, m.Name)
	}
	assert.IsIncreasing(t, names, "metrics must be sorted by name")
}
