package rules

import "errors"

// Hard errors that abort the evaluation of a rule for a run. These indicate
// configuration that leaked past rule-authoring validation or a stale target
// list, not a runtime data condition.
var (
	// ErrNoCPAGoal: a conversion operand had neither an explicit pixel nor
	// a campaign CPA goal to default to.
	ErrNoCPAGoal = errors.New("no CPA goal set for conversion metric")

	// ErrInvalidOperator: the operator does not apply to the left operand's
	// resolved type.
	ErrInvalidOperator = errors.New("invalid operator for left operand")

	// ErrInvalidTarget: the action target no longer exists or is archived.
	ErrInvalidTarget = errors.New("invalid target")
)

// Expected precondition failures. Recorded as a specific rule history
// failure reason and shown to the user as a plain sentence.
var (
	ErrCampaignAutopilotActive = errors.New("campaign autopilot is active")
	ErrBudgetAutopilotInactive = errors.New("budget autopilot is not active")
)

// Rule history failure reasons.
const (
	FailureCampaignAutopilotActive = "campaign_autopilot_active"
	FailureBudgetAutopilotInactive = "budget_autopilot_inactive"
	FailureUnexpectedError         = "unexpected_error"
)

// failureMessages are the user-facing sentences for each failure reason.
// The underlying error of an unexpected failure is logged internally and
// never shown verbatim.
var failureMessages = map[string]string{
	FailureCampaignAutopilotActive: "Campaign autopilot is currently managing bids; the rule action was not applied.",
	FailureBudgetAutopilotInactive: "Budget autopilot is not active on this ad group; the rule action was not applied.",
	FailureUnexpectedError:         "An unforeseen error occurred while running this rule.",
}

// FailureReason classifies an apply error into a history failure reason.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrCampaignAutopilotActive):
		return FailureCampaignAutopilotActive
	case errors.Is(err, ErrBudgetAutopilotInactive):
		return FailureBudgetAutopilotInactive
	default:
		return FailureUnexpectedError
	}
}

// FailureMessage returns the user-facing sentence for a failure reason.
func FailureMessage(reason string) string {
	if msg, ok := failureMessages[reason]; ok {
		return msg
	}
	return failureMessages[FailureUnexpectedError]
}
