package rules

import (
	"fmt"
	"strconv"
	"time"

	"github.com/trafficops/adrules/internal/entities"
	"github.com/trafficops/adrules/internal/stats"
)

// Resolver turns a condition's operand descriptors plus a target's metric
// bundle into a pair of comparable values. It is pure: all data it reads was
// prefetched into the bundle.
type Resolver struct{}

// NewResolver creates a Resolver.
func NewResolver() *Resolver { return &Resolver{} }

// Resolve produces the (left, right) value pair for one condition. Either
// side may come back Unknown, which the evaluator treats as a non-match.
// Hard errors (ErrNoCPAGoal, ErrInvalidOperator) abort the rule run.
func (r *Resolver) Resolve(rule *entities.Rule, cond *entities.RuleCondition, target *stats.TargetBundle, bundle *stats.AdGroupBundle, now time.Time) (Value, Value, error) {
	spec, ok := MetricFor(cond.LeftOperandType)
	if !ok {
		return Unknown(), Unknown(), fmt.Errorf("unknown left operand %q", cond.LeftOperandType)
	}

	left, err := r.resolveLeft(rule, cond, spec, target, bundle)
	if err != nil {
		return Unknown(), Unknown(), err
	}
	left = applyModifier(left, spec, cond.LeftOperandModifier)

	right, err := r.resolveRight(rule, cond, spec, target, bundle, now)
	if err != nil {
		return Unknown(), Unknown(), err
	}
	return left, right, nil
}

func (r *Resolver) resolveLeft(rule *entities.Rule, cond *entities.RuleCondition, spec MetricSpec, target *stats.TargetBundle, bundle *stats.AdGroupBundle) (Value, error) {
	switch spec.Class {
	case ClassRawCounter, ClassAveraged:
		window := cond.LeftOperandWindow
		if window == "" {
			window = rule.Window
		}
		return resolveStat(target.Metrics, spec.Key, window, spec.Class == ClassRawCounter), nil

	case ClassConversionCount, ClassConversionCost:
		return r.resolveConversion(rule, cond, spec, target, bundle)

	case ClassSettingString, ClassSettingDate, ClassSettingNumber:
		return resolveSetting(target.Settings, spec)

	default:
		return Unknown(), fmt.Errorf("unhandled value class for %q", spec.Key)
	}
}

// resolveStat reads one window slice of one metric. The distinction between
// an absent slice and an explicit NULL inside it is load-bearing: a raw
// counter that was never aggregated for the window is a true zero, while a
// NULL (or any averaged metric with no slice) stays undecided.
func resolveStat(metrics map[string]stats.WindowValues, key, window string, rawCounter bool) Value {
	absent := func() Value {
		if rawCounter {
			return Number(0)
		}
		return Unknown()
	}
	slice, ok := metrics[key]
	if !ok {
		return absent()
	}
	val, ok := slice[window]
	if !ok {
		return absent()
	}
	if val == nil {
		return Unknown()
	}
	return Number(*val)
}

func (r *Resolver) resolveConversion(rule *entities.Rule, cond *entities.RuleCondition, spec MetricSpec, target *stats.TargetBundle, bundle *stats.AdGroupBundle) (Value, error) {
	pixel := cond.ConversionPixel
	window := cond.ConversionWindow
	attribution := cond.ConversionAttribution
	if pixel == "" {
		goal := bundle.CPAGoal
		if goal == nil {
			return Unknown(), fmt.Errorf("%w: rule %d condition on %s", ErrNoCPAGoal, rule.ID, spec.Key)
		}
		pixel = goal.PixelSlug
		window = goal.Window
		attribution = goal.Attribution
	}
	if window == "" {
		window = rule.Window
	}
	if attribution == "" {
		attribution = AttributionClick
	}
	key := stats.ConversionKey(pixel, attribution)
	return resolveStat(target.Conversions, key, window, spec.Class == ClassConversionCount), nil
}

func resolveSetting(settings map[string]any, spec MetricSpec) (Value, error) {
	raw, ok := settings[spec.Key]
	if !ok || raw == nil {
		return Unknown(), nil
	}
	switch spec.Class {
	case ClassSettingString:
		return String(fmt.Sprintf("%v", raw)), nil
	case ClassSettingDate:
		switch v := raw.(type) {
		case time.Time:
			return Date(v), nil
		case string:
			val, err := ParseDate(v)
			if err != nil {
				return Unknown(), err
			}
			return val, nil
		default:
			return Unknown(), fmt.Errorf("setting %s holds %T, expected a date", spec.Key, raw)
		}
	default:
		num, err := toFloat64(raw)
		if err != nil {
			return Unknown(), fmt.Errorf("setting %s: %w", spec.Key, err)
		}
		return Number(num), nil
	}
}

// applyModifier applies the condition's left operand modifier: a multiplier
// for stat metrics, a whole-day offset for date metrics.
func applyModifier(v Value, spec MetricSpec, modifier float64) Value {
	if modifier == 0 || !v.IsKnown() {
		return v
	}
	switch spec.Modifier {
	case ModifierMultiplier:
		if v.Kind == KindNumber {
			v.Num *= modifier
		}
	case ModifierDayOffset:
		if v.Kind == KindDate {
			v.Date = v.Date.AddDate(0, 0, int(modifier))
		}
	}
	return v
}

func (r *Resolver) resolveRight(rule *entities.Rule, cond *entities.RuleCondition, spec MetricSpec, target *stats.TargetBundle, bundle *stats.AdGroupBundle, now time.Time) (Value, error) {
	switch cond.RightOperandType {
	case ValueAbsolute:
		return castAbsolute(cond.RightOperandValue, spec.Class)
	case ValueCurrentDate:
		return Date(now), nil
	case ValueCampaignBudget:
		return Number(bundle.Budgets.CampaignBudget), nil
	case ValueRemainingBudget:
		return Number(bundle.Budgets.RemainingBudget), nil
	case ValueDailyCap:
		return Number(bundle.Budgets.DailyCap), nil
	case ValueTotalSpend:
		window := cond.RightOperandWindow
		if window == "" {
			window = rule.Window
		}
		return resolveStat(target.Metrics, MetricTotalSpend, window, true), nil
	default:
		return Unknown(), fmt.Errorf("unknown right operand %q", cond.RightOperandType)
	}
}

// castAbsolute casts the stored right operand string to the left operand's
// resolved type. A value that does not parse to the required type is a
// configuration bug surfaced as ErrInvalidOperator.
func castAbsolute(raw string, class ValueClass) (Value, error) {
	switch class {
	case ClassSettingString:
		return String(raw), nil
	case ClassSettingDate:
		val, err := ParseDate(raw)
		if err != nil {
			return Unknown(), fmt.Errorf("%w: %v", ErrInvalidOperator, err)
		}
		return val, nil
	default:
		num, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Unknown(), fmt.Errorf("%w: %q is not numeric", ErrInvalidOperator, raw)
		}
		return Number(num), nil
	}
}

func toFloat64(val any) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", val)
	}
}
