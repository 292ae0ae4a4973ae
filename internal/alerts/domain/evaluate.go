package alerts

import "time"

// Condition is the tri-state outcome of evaluating a rule against one
// sample. Unknown means the field the rule needs was not reported; it
// neither advances nor resets the debounce clock.
type Condition int

const (
	ConditionUnknown Condition = iota
	ConditionFalse
	ConditionTrue
)

// Sample is the slice of a telemetry reading the evaluator looks at.
// Nil fields were not reported by the sensor.
type Sample struct {
	Temperature *float64
	Pressure    *float64
	DoorOpen    *int
	At          time.Time
}

// Evaluate decides whether the rule's condition holds for the sample.
// equipment_offline rules are never evaluated from a single sample;
// presence of any sample refutes offline, so the result is false.
func Evaluate(rule AlertRule, sample Sample) (Condition, *float64) {
	switch rule.RuleType {
	case RuleTemperatureHigh, RuleTemperatureLow:
		return compareField(rule, sample.Temperature)
	case RulePressureHigh, RulePressureLow:
		return compareField(rule, sample.Pressure)
	case RuleDoorOpen:
		if sample.DoorOpen == nil {
			return ConditionUnknown, nil
		}
		value := float64(*sample.DoorOpen)
		if *sample.DoorOpen == 1 {
			return ConditionTrue, &value
		}
		return ConditionFalse, &value
	case RuleEquipmentOffline:
		return ConditionFalse, nil
	default:
		return ConditionUnknown, nil
	}
}

func compareField(rule AlertRule, field *float64) (Condition, *float64) {
	if field == nil {
		return ConditionUnknown, nil
	}
	if rule.ThresholdValue == nil {
		return ConditionUnknown, field
	}
	if rule.Operator.Compare(*field, *rule.ThresholdValue) {
		return ConditionTrue, field
	}
	return ConditionFalse, field
}
