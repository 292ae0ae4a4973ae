package alerts

import (
	"testing"
	"time"
)

func observeAll(t *testing.T, rule AlertRule, start time.Time, steps []struct {
	offset time.Duration
	cond   Condition
	open   bool
	want   Decision
}) DebounceState {
	t.Helper()
	state := DebounceState{EquipmentID: "eq-1", RuleID: rule.ID, Phase: PhaseClear}
	for i, step := range steps {
		var decision Decision
		state, decision = Observe(state, rule, step.cond, nil, start.Add(step.offset), step.open)
		if decision != step.want {
			t.Fatalf("step %d (offset %s): decision = %v, want %v", i, step.offset, decision, step.want)
		}
	}
	return state
}

func TestObserve_FiresExactlyAtDuration(t *testing.T) {
	rule := tempRule(OperatorGreater, 8.0)
	rule.DurationSeconds = 300
	start := time.Date(2026, 1, 10, 5, 0, 0, 0, time.UTC)

	// Readings every 60s, continuously true. No alert before t=300,
	// fire exactly at t=300, no re-fire afterwards.
	steps := []struct {
		offset time.Duration
		cond   Condition
		open   bool
		want   Decision
	}{
		{0, ConditionTrue, false, DecisionNone},
		{60 * time.Second, ConditionTrue, false, DecisionNone},
		{120 * time.Second, ConditionTrue, false, DecisionNone},
		{180 * time.Second, ConditionTrue, false, DecisionNone},
		{240 * time.Second, ConditionTrue, false, DecisionNone},
		{300 * time.Second, ConditionTrue, false, DecisionFire},
		{360 * time.Second, ConditionTrue, true, DecisionNone},
		{420 * time.Second, ConditionTrue, true, DecisionNone},
	}
	observeAll(t, rule, start, steps)
}

func TestObserve_FalseResetsClock(t *testing.T) {
	rule := tempRule(OperatorGreater, 8.0)
	rule.DurationSeconds = 300
	start := time.Date(2026, 1, 10, 5, 0, 0, 0, time.UTC)

	// True at t=0, false at t=150, true again from t=450: the clock
	// restarts, so the fire lands at t=750, not earlier.
	steps := []struct {
		offset time.Duration
		cond   Condition
		open   bool
		want   Decision
	}{
		{0, ConditionTrue, false, DecisionNone},
		{150 * time.Second, ConditionFalse, false, DecisionNone},
		{450 * time.Second, ConditionTrue, false, DecisionNone},
		{600 * time.Second, ConditionTrue, false, DecisionNone},
		{750 * time.Second, ConditionTrue, false, DecisionFire},
	}
	observeAll(t, rule, start, steps)
}

func TestObserve_ClearIsImmediate(t *testing.T) {
	rule := tempRule(OperatorGreater, 8.0)
	rule.DurationSeconds = 300
	start := time.Date(2026, 1, 10, 5, 0, 0, 0, time.UTC)

	state := DebounceState{EquipmentID: "eq-1", RuleID: rule.ID, Phase: PhaseHolding, Since: start}
	state, decision := Observe(state, rule, ConditionFalse, nil, start.Add(10*time.Second), true)
	if decision != DecisionClear {
		t.Fatalf("decision = %v, want clear", decision)
	}
	if state.Phase != PhaseClear || !state.Since.IsZero() {
		t.Fatalf("state not reset: %+v", state)
	}
}

func TestObserve_UnknownIsNoOp(t *testing.T) {
	rule := tempRule(OperatorGreater, 8.0)
	rule.DurationSeconds = 300
	start := time.Date(2026, 1, 10, 5, 0, 0, 0, time.UTC)

	holding := DebounceState{EquipmentID: "eq-1", RuleID: rule.ID, Phase: PhaseHolding, Since: start}
	after, decision := Observe(holding, rule, ConditionUnknown, nil, start.Add(time.Hour), false)
	if decision != DecisionNone {
		t.Fatalf("decision = %v, want none", decision)
	}
	if after.Phase != PhaseHolding || !after.Since.Equal(start) {
		t.Fatalf("unknown must not advance or reset the clock: %+v", after)
	}
}

func TestObserve_BoundaryEqualityFires(t *testing.T) {
	rule := tempRule(OperatorGreater, 8.0)
	rule.DurationSeconds = 60
	start := time.Date(2026, 1, 10, 5, 0, 0, 0, time.UTC)

	state := DebounceState{EquipmentID: "eq-1", RuleID: rule.ID, Phase: PhaseHolding, Since: start}
	_, decision := Observe(state, rule, ConditionTrue, nil, start.Add(60*time.Second), false)
	if decision != DecisionFire {
		t.Fatalf("held == duration must fire, got %v", decision)
	}
}

func TestObserve_ZeroDurationFiresImmediately(t *testing.T) {
	rule := tempRule(OperatorGreater, 8.0)
	rule.DurationSeconds = 0
	start := time.Date(2026, 1, 10, 5, 0, 0, 0, time.UTC)

	state := DebounceState{EquipmentID: "eq-1", RuleID: rule.ID, Phase: PhaseClear}
	_, decision := Observe(state, rule, ConditionTrue, nil, start, false)
	if decision != DecisionFire {
		t.Fatalf("zero duration must fire on first true, got %v", decision)
	}
}

func TestObserve_NoRefireWhileOpen(t *testing.T) {
	rule := tempRule(OperatorGreater, 8.0)
	rule.DurationSeconds = 0
	start := time.Date(2026, 1, 10, 5, 0, 0, 0, time.UTC)

	state := DebounceState{EquipmentID: "eq-1", RuleID: rule.ID, Phase: PhaseHolding, Since: start}
	_, decision := Observe(state, rule, ConditionTrue, nil, start.Add(time.Minute), true)
	if decision != DecisionNone {
		t.Fatalf("open alert must suppress re-fire, got %v", decision)
	}
}

func TestObserve_TracksLastValue(t *testing.T) {
	rule := tempRule(OperatorGreater, 8.0)
	start := time.Date(2026, 1, 10, 5, 0, 0, 0, time.UTC)

	state := DebounceState{EquipmentID: "eq-1", RuleID: rule.ID, Phase: PhaseClear}
	state, _ = Observe(state, rule, ConditionTrue, floatPtr(9.5), start, true)
	if state.LastValue == nil || *state.LastValue != 9.5 {
		t.Fatalf("last value not tracked: %+v", state.LastValue)
	}
}
