package rules

import (
	"github.com/trafficops/adrules/internal/entities"
)

// DefaultRules returns the built-in automation rules seeded on first run.
// They ship disabled so operators opt in explicitly, and can be restored
// with the seed command.
func DefaultRules() []entities.Rule {
	return []entities.Rule{
		{
			Name:          "Pause ad groups with expensive clicks",
			Description:   "Turns off ad groups whose 7-day average CPC exceeds $2",
			Enabled:       false,
			BuiltIn:       true,
			TargetType:    TargetAdGroup,
			ActionType:    ActionTurnOff,
			CooldownHours: 24,
			Window:        WindowLast7Days,
			Conditions: []entities.RuleCondition{
				{
					LeftOperandType:   MetricAvgCPC,
					LeftOperandWindow: WindowLast7Days,
					Operator:          OperatorGreaterThan,
					RightOperandType:  ValueAbsolute,
					RightOperandValue: "2.0",
					SortOrder:         0,
				},
			},
		},
		{
			Name:          "Blacklist non-converting publishers",
			Description:   "Blacklists publishers with heavy 30-day spend and no conversions",
			Enabled:       false,
			BuiltIn:       true,
			TargetType:    TargetPublisher,
			ActionType:    ActionBlacklist,
			CooldownHours: 72,
			Window:        WindowLast30Days,
			Conditions: []entities.RuleCondition{
				{
					LeftOperandType:   MetricTotalSpend,
					LeftOperandWindow: WindowLast30Days,
					Operator:          OperatorGreaterThan,
					RightOperandType:  ValueAbsolute,
					RightOperandValue: "100",
					SortOrder:         0,
				},
				{
					LeftOperandType:   MetricConversions,
					LeftOperandWindow: WindowLast30Days,
					Operator:          OperatorEquals,
					RightOperandType:  ValueAbsolute,
					RightOperandValue: "0",
					SortOrder:         1,
				},
			},
		},
		{
			Name:          "Boost converting countries",
			Description:   "Raises country bid modifiers where cost per conversion beats $5",
			Enabled:       false,
			BuiltIn:       true,
			TargetType:    TargetCountry,
			ActionType:    ActionIncreaseBidModifier,
			ChangeStep:    0.1,
			ChangeLimit:   2.0,
			CooldownHours: 48,
			Window:        WindowLast7Days,
			Conditions: []entities.RuleCondition{
				{
					LeftOperandType:   MetricAvgCPA,
					LeftOperandWindow: WindowLast7Days,
					Operator:          OperatorLessThan,
					RightOperandType:  ValueAbsolute,
					RightOperandValue: "5.0",
					SortOrder:         0,
				},
			},
		},
		{
			Name:          "Warn on exhausted daily caps",
			Description:   "Sends a notification when yesterday's spend reached the daily cap",
			Enabled:       false,
			BuiltIn:       true,
			TargetType:    TargetAdGroup,
			ActionType:    ActionNotify,
			CooldownHours: 24,
			Window:        WindowLastDay,
			Conditions: []entities.RuleCondition{
				{
					LeftOperandType:   MetricTotalSpend,
					LeftOperandWindow: WindowLastDay,
					Operator:          OperatorGreaterThan,
					RightOperandType:  ValueDailyCap,
					SortOrder:         0,
				},
			},
		},
	}
}
