package alerts

import "testing"

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func tempRule(op Operator, threshold float64) AlertRule {
	return AlertRule{
		ID:             "rule-1",
		Name:           "temperature high",
		RuleType:       RuleTemperatureHigh,
		ThresholdValue: floatPtr(threshold),
		Operator:       op,
		Severity:       SeverityCritical,
		Scope:          RuleScope{Kind: ScopeGlobal},
		IsActive:       true,
	}
}

func TestEvaluate_TemperatureOperators(t *testing.T) {
	cases := []struct {
		name      string
		op        Operator
		threshold float64
		value     float64
		want      Condition
	}{
		{"greater true", OperatorGreater, 8.0, 9.0, ConditionTrue},
		{"greater boundary false", OperatorGreater, 8.0, 8.0, ConditionFalse},
		{"greater or equal boundary", OperatorGreaterOrEqual, 8.0, 8.0, ConditionTrue},
		{"less true", OperatorLess, -18.0, -20.0, ConditionTrue},
		{"less false", OperatorLess, -18.0, -10.0, ConditionFalse},
		{"less or equal boundary", OperatorLessOrEqual, -18.0, -18.0, ConditionTrue},
		{"equal exact", OperatorEqual, 4.0, 4.0, ConditionTrue},
		{"equal near miss", OperatorEqual, 4.0, 4.0000001, ConditionFalse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule := tempRule(tc.op, tc.threshold)
			got, value := Evaluate(rule, Sample{Temperature: floatPtr(tc.value)})
			if got != tc.want {
				t.Fatalf("condition = %v, want %v", got, tc.want)
			}
			if value == nil || *value != tc.value {
				t.Fatalf("value = %v, want %v", value, tc.value)
			}
		})
	}
}

func TestEvaluate_NilFieldIsUnknown(t *testing.T) {
	rule := tempRule(OperatorGreater, 8.0)
	got, value := Evaluate(rule, Sample{Pressure: floatPtr(2.0)})
	if got != ConditionUnknown {
		t.Fatalf("condition = %v, want unknown", got)
	}
	if value != nil {
		t.Fatalf("value = %v, want nil", value)
	}
}

func TestEvaluate_PressureRuleReadsPressure(t *testing.T) {
	rule := AlertRule{
		ID:             "rule-p",
		Name:           "pressure low",
		RuleType:       RulePressureLow,
		ThresholdValue: floatPtr(1.5),
		Operator:       OperatorLess,
		Severity:       SeverityWarning,
		Scope:          RuleScope{Kind: ScopeGlobal},
	}
	got, _ := Evaluate(rule, Sample{Pressure: floatPtr(1.0), Temperature: floatPtr(99.0)})
	if got != ConditionTrue {
		t.Fatalf("condition = %v, want true", got)
	}
}

func TestEvaluate_DoorOpenIgnoresOperator(t *testing.T) {
	rule := AlertRule{
		ID:       "rule-d",
		Name:     "door open",
		RuleType: RuleDoorOpen,
		Operator: OperatorLess,
		Severity: SeverityWarning,
		Scope:    RuleScope{Kind: ScopeGlobal},
	}
	if got, _ := Evaluate(rule, Sample{DoorOpen: intPtr(1)}); got != ConditionTrue {
		t.Fatalf("door=1 should be true, got %v", got)
	}
	if got, _ := Evaluate(rule, Sample{DoorOpen: intPtr(0)}); got != ConditionFalse {
		t.Fatalf("door=0 should be false, got %v", got)
	}
	if got, _ := Evaluate(rule, Sample{}); got != ConditionUnknown {
		t.Fatalf("missing door should be unknown, got %v", got)
	}
}

func TestEvaluate_OfflineRuleRefutedByPresence(t *testing.T) {
	rule := AlertRule{
		ID:       "rule-o",
		Name:     "offline",
		RuleType: RuleEquipmentOffline,
		Severity: SeverityCritical,
		Scope:    RuleScope{Kind: ScopeGlobal},
	}
	got, _ := Evaluate(rule, Sample{Temperature: floatPtr(1.0)})
	if got != ConditionFalse {
		t.Fatalf("a sample refutes offline, got %v", got)
	}
}
