package rules

import (
	"fmt"

	"github.com/trafficops/adrules/internal/entities"
)

// SchemaValidator validates rules against the legality tables. The
// repository runs it on create and on every full-state update, since field
// validity is interdependent (change step bounds depend on the action type,
// operator legality on the left operand, and so on).
type SchemaValidator struct{}

// NewSchemaValidator returns the validator backed by the static tables.
func NewSchemaValidator() *SchemaValidator { return &SchemaValidator{} }

// ValidateRule checks every interdependent field of a rule.
func (v *SchemaValidator) ValidateRule(rule *entities.Rule) error {
	if rule.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if !ActionValidForTarget(rule.ActionType, rule.TargetType) {
		return fmt.Errorf("action %q is not valid for target type %q", rule.ActionType, rule.TargetType)
	}
	if rule.CooldownHours <= 0 || rule.CooldownHours%HoursPerDay != 0 {
		return fmt.Errorf("cooldown must be a positive multiple of %d hours, got %d", HoursPerDay, rule.CooldownHours)
	}
	if !KnownWindow(rule.Window) {
		return fmt.Errorf("unknown window %q", rule.Window)
	}
	if err := v.validateAction(rule); err != nil {
		return err
	}
	if len(rule.Conditions) == 0 {
		return fmt.Errorf("rule must have at least one condition")
	}
	for i := range rule.Conditions {
		if err := v.validateCondition(&rule.Conditions[i]); err != nil {
			return fmt.Errorf("condition %d: %w", i+1, err)
		}
	}
	return nil
}

func (v *SchemaValidator) validateAction(rule *entities.Rule) error {
	switch rule.ActionType {
	case ActionIncreaseBid, ActionDecreaseBid,
		ActionIncreaseBudget, ActionDecreaseBudget:
		if rule.ChangeStep <= 0 {
			return fmt.Errorf("change step must be positive for %s", rule.ActionType)
		}
		if rule.ChangeLimit <= 0 {
			return fmt.Errorf("change limit must be positive for %s", rule.ActionType)
		}
	case ActionIncreaseBidModifier, ActionDecreaseBidModifier:
		if rule.ChangeStep <= 0 {
			return fmt.Errorf("change step must be positive for %s", rule.ActionType)
		}
		if rule.ChangeLimit < MinBidModifier || rule.ChangeLimit > MaxBidModifier {
			return fmt.Errorf("change limit must be within [%g, %g] for %s", MinBidModifier, MaxBidModifier, rule.ActionType)
		}
	case ActionTurnOff, ActionBlacklist, ActionAddToPublisherGroup, ActionNotify:
		if rule.ChangeStep != 0 || rule.ChangeLimit != 0 {
			return fmt.Errorf("%s does not take a change step or limit", rule.ActionType)
		}
		if rule.ActionType == ActionAddToPublisherGroup && rule.PublisherGroupID == "" {
			return fmt.Errorf("add_to_publisher_group requires a publisher group")
		}
	case ActionSendEmail:
		if rule.SendEmailSubject == "" || rule.SendEmailBody == "" || rule.SendEmailRecipients == "" {
			return fmt.Errorf("send_email requires subject, body and recipients")
		}
	default:
		return fmt.Errorf("unknown action type %q", rule.ActionType)
	}
	if rule.ActionType != ActionSendEmail &&
		(rule.SendEmailSubject != "" || rule.SendEmailBody != "" || rule.SendEmailRecipients != "") {
		return fmt.Errorf("email fields are only valid for send_email rules")
	}
	return nil
}

func (v *SchemaValidator) validateCondition(cond *entities.RuleCondition) error {
	spec, ok := MetricFor(cond.LeftOperandType)
	if !ok {
		return fmt.Errorf("unknown left operand %q", cond.LeftOperandType)
	}
	if !operatorLegal(cond.Operator, spec.Class) {
		return fmt.Errorf("operator %q is not valid for %s", cond.Operator, cond.LeftOperandType)
	}
	if cond.LeftOperandWindow != "" {
		if !spec.Windowed {
			return fmt.Errorf("%s does not take a window", cond.LeftOperandType)
		}
		if !KnownWindow(cond.LeftOperandWindow) {
			return fmt.Errorf("unknown window %q", cond.LeftOperandWindow)
		}
	}
	if cond.LeftOperandModifier != 0 && spec.Modifier == ModifierNone {
		return fmt.Errorf("%s does not take a modifier", cond.LeftOperandType)
	}
	switch cond.RightOperandType {
	case ValueAbsolute:
		if cond.RightOperandValue == "" {
			return fmt.Errorf("absolute right operand requires a value")
		}
	case ValueCampaignBudget, ValueRemainingBudget, ValueDailyCap, ValueCurrentDate:
		// looked up, no stored value
	case ValueTotalSpend:
		if cond.RightOperandWindow != "" && !KnownWindow(cond.RightOperandWindow) {
			return fmt.Errorf("unknown right operand window %q", cond.RightOperandWindow)
		}
	default:
		return fmt.Errorf("unknown right operand %q", cond.RightOperandType)
	}
	if cond.ConversionPixel == "" && (cond.ConversionWindow != "" || cond.ConversionAttribution != "") {
		return fmt.Errorf("conversion window/attribution require an explicit pixel")
	}
	return nil
}
