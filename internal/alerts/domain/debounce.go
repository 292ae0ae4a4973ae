package alerts

import (
	"context"
	"time"
)

// Phase is the debounce state machine tag. A pair is either clear or
// holding since some instant; the tag keeps "condition is false" and
// "no observation yet" from collapsing into one nullable timestamp.
type Phase string

const (
	PhaseClear   Phase = "clear"
	PhaseHolding Phase = "holding"
)

// DebounceState tracks how long a rule condition has held continuously
// for one (equipment, rule) pair.
type DebounceState struct {
	EquipmentID string
	RuleID      string
	Phase       Phase
	Since       time.Time
	LastValue   *float64
	UpdatedAt   time.Time
}

// Decision is the outcome of one debounce observation.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionFire
	DecisionClear
)

// Observe advances the state machine with one condition result and
// returns the updated state plus the action the caller must take.
// hasOpenAlert tells the machine whether the dedup index already holds
// an open alert for the pair.
//
// Firing requires the condition to have held continuously for the
// rule's duration, with equality counting as satisfied. Clearing is
// immediate and is only reported when there is an open alert to
// resolve.
func Observe(state DebounceState, rule AlertRule, condition Condition, value *float64, at time.Time, hasOpenAlert bool) (DebounceState, Decision) {
	if condition == ConditionUnknown {
		return state, DecisionNone
	}

	at = at.UTC()
	state.UpdatedAt = at
	if value != nil {
		state.LastValue = value
	}

	if condition == ConditionFalse {
		state.Phase = PhaseClear
		state.Since = time.Time{}
		if hasOpenAlert {
			return state, DecisionClear
		}
		return state, DecisionNone
	}

	// condition == ConditionTrue
	if state.Phase != PhaseHolding || state.Since.IsZero() {
		state.Phase = PhaseHolding
		state.Since = at
		if rule.Duration() == 0 && !hasOpenAlert {
			return state, DecisionFire
		}
		return state, DecisionNone
	}
	if hasOpenAlert {
		return state, DecisionNone
	}
	if at.Sub(state.Since) >= rule.Duration() {
		return state, DecisionFire
	}
	return state, DecisionNone
}

// StateRepository persists debounce state between evaluation passes.
type StateRepository interface {
	Get(ctx context.Context, equipmentID, ruleID string) (*DebounceState, error)
	Upsert(ctx context.Context, state *DebounceState) error
	Clear(ctx context.Context, equipmentID, ruleID string) error
}
