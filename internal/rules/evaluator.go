package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/trafficops/adrules/internal/entities"
	"github.com/trafficops/adrules/internal/stats"
)

// Evaluate applies an operator to a resolved value pair. Both values must be
// known and of the same kind; an unrecognized operator or a kind mismatch is
// a data-integrity bug, not a runtime condition.
func Evaluate(operator string, left, right Value) (bool, error) {
	if left.Kind != right.Kind {
		return false, fmt.Errorf("%w: comparing %v against %v", ErrInvalidOperator, left.Kind, right.Kind)
	}

	switch operator {
	case OperatorEquals:
		return equals(left, right), nil
	case OperatorNotEquals:
		return !equals(left, right), nil
	case OperatorLessThan, OperatorGreaterThan:
		return ordered(operator, left, right)
	case OperatorContains, OperatorNotContains, OperatorStartsWith, OperatorEndsWith:
		if left.Kind != KindString {
			return false, fmt.Errorf("%w: %s requires string operands", ErrInvalidOperator, operator)
		}
		return substring(operator, left.Str, right.Str), nil
	default:
		return false, fmt.Errorf("unrecognized operator %q", operator)
	}
}

// equals is exact: no numeric tolerance is applied, matching the decimal
// precision stored upstream.
func equals(left, right Value) bool {
	switch left.Kind {
	case KindNumber:
		return left.Num == right.Num
	case KindDate:
		return left.Date.Equal(right.Date)
	default:
		return left.Str == right.Str
	}
}

func ordered(operator string, left, right Value) (bool, error) {
	var less bool
	switch left.Kind {
	case KindNumber:
		less = left.Num < right.Num
		if operator == OperatorGreaterThan {
			return left.Num > right.Num, nil
		}
	case KindDate:
		less = left.Date.Before(right.Date)
		if operator == OperatorGreaterThan {
			return left.Date.After(right.Date), nil
		}
	default:
		return false, fmt.Errorf("%w: %s requires numeric or date operands", ErrInvalidOperator, operator)
	}
	return less, nil
}

func substring(operator, left, right string) bool {
	switch operator {
	case OperatorContains:
		return strings.Contains(left, right)
	case OperatorNotContains:
		return !strings.Contains(left, right)
	case OperatorStartsWith:
		return strings.HasPrefix(left, right)
	default:
		return strings.HasSuffix(left, right)
	}
}

// ConditionValues records the resolved operand pair of one condition for the
// audit trail.
type ConditionValues struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// EvaluateAll resolves and evaluates every condition of a rule against one
// target. All conditions must hold (AND). Any condition with an unknown
// operand makes the rule non-matching for the target without error; hard
// resolution errors propagate and abort the rule run.
func EvaluateAll(resolver *Resolver, rule *entities.Rule, target *stats.TargetBundle, bundle *stats.AdGroupBundle, now time.Time) (bool, map[string]ConditionValues, error) {
	values := make(map[string]ConditionValues, len(rule.Conditions))
	matched := true
	for i := range rule.Conditions {
		cond := &rule.Conditions[i]
		left, right, err := resolver.Resolve(rule, cond, target, bundle, now)
		if err != nil {
			return false, nil, err
		}
		key := fmt.Sprintf("%d:%s %s %s", i+1, cond.LeftOperandType, cond.Operator, cond.RightOperandType)
		values[key] = ConditionValues{Left: left.Display(), Right: right.Display()}

		if !left.IsKnown() || !right.IsKnown() {
			matched = false
			continue
		}
		ok, err := Evaluate(cond.Operator, left, right)
		if err != nil {
			return false, nil, err
		}
		if !ok {
			matched = false
		}
	}
	return matched, values, nil
}
