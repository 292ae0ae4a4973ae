package application

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"log"
	"sync"
	"time"

	alerts "coldchain-cloud/internal/alerts/domain"
	"coldchain-cloud/internal/auth"
	fleet "coldchain-cloud/internal/fleet/domain"
	"coldchain-cloud/internal/observability/metrics"
	telemetryevents "coldchain-cloud/internal/telemetry/application/events"
)

// AlertNotifier publishes alert lifecycle events.
type AlertNotifier interface {
	Notify(ctx context.Context, event AlertEvent)
}

// AlertEvent represents a lifecycle update.
type AlertEvent struct {
	Type  string       `json:"type"`
	Alert alerts.Alert `json:"alert"`
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Service runs the alert evaluation engine and owns alert lifecycle
// transitions.
type Service struct {
	resolver   *Resolver
	alerts     alerts.AlertRepository
	states     alerts.StateRepository
	equipments fleet.EquipmentRepository
	notifier   AlertNotifier
	clock      Clock
	logger     *log.Logger

	offlineThreshold time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// ServiceOption customizes the alert service.
type ServiceOption func(*Service)

// WithNotifier assigns a notifier.
func WithNotifier(notifier AlertNotifier) ServiceOption {
	return func(s *Service) {
		s.notifier = notifier
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithOfflineThreshold overrides the freshness window.
func WithOfflineThreshold(threshold time.Duration) ServiceOption {
	return func(s *Service) {
		if threshold > 0 {
			s.offlineThreshold = threshold
		}
	}
}

// NewService constructs the alert service.
func NewService(
	resolver *Resolver,
	alertRepo alerts.AlertRepository,
	states alerts.StateRepository,
	equipments fleet.EquipmentRepository,
	logger *log.Logger,
	opts ...ServiceOption,
) (*Service, error) {
	if resolver == nil {
		return nil, errors.New("alerts: nil resolver")
	}
	if alertRepo == nil || states == nil {
		return nil, errors.New("alerts: nil repository")
	}
	if equipments == nil {
		return nil, errors.New("alerts: nil equipment repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &Service{
		resolver:         resolver,
		alerts:           alertRepo,
		states:           states,
		equipments:       equipments,
		clock:            systemClock{},
		logger:           logger,
		offlineThreshold: 5 * time.Minute,
		locks:            make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// lockFor serializes evaluation per equipment. Different equipment
// evaluate in parallel; there is no cross-equipment shared state.
func (s *Service) lockFor(equipmentID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[equipmentID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[equipmentID] = lock
	}
	return lock
}

// HandleReadingReceived runs one evaluation pass for the reading's
// equipment. Errors are returned for the consumer to log; by then the
// reading itself is already durable.
func (s *Service) HandleReadingReceived(ctx context.Context, evt telemetryevents.ReadingReceived) error {
	if s == nil {
		return errors.New("alerts: nil service")
	}
	if evt.EquipmentID == "" {
		return errors.New("alerts: reading missing equipment id")
	}

	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveEvaluation(result, time.Since(start))
	}()

	lock := s.lockFor(evt.EquipmentID)
	lock.Lock()
	defer lock.Unlock()

	equipment, err := s.equipments.Get(ctx, evt.EquipmentID)
	if err != nil {
		result = metrics.ResultError
		return err
	}
	if equipment == nil {
		result = metrics.ResultError
		return fleet.ErrNotFound
	}

	at := evt.OccurredAt
	if at.IsZero() {
		at = s.clock.Now()
	}
	at = at.UTC()

	ref := alerts.EquipmentRef{EquipmentID: equipment.ID, CompanyID: equipment.CompanyID}
	rules, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		result = metrics.ResultError
		return err
	}

	sample := alerts.Sample{
		Temperature: evt.Temperature,
		Pressure:    evt.Pressure,
		DoorOpen:    evt.DoorOpen,
		At:          at,
	}
	for _, rule := range rules {
		condition, value := alerts.Evaluate(rule, sample)
		if err := s.applyObservation(ctx, equipment, rule, condition, value, at); err != nil {
			result = metrics.ResultError
			return err
		}
	}

	lastSeen := equipment.LastSeenAt
	if at.After(lastSeen) {
		lastSeen = at
	}
	return s.reprojectStatus(ctx, equipment.ID, lastSeen, at)
}

// applyObservation runs one (rule, condition) observation through the
// debounce machine and executes the resulting lifecycle action.
func (s *Service) applyObservation(ctx context.Context, equipment *fleet.Equipment, rule alerts.AlertRule, condition alerts.Condition, value *float64, at time.Time) error {
	open, err := s.alerts.FindOpenByEquipmentRule(ctx, equipment.ID, rule.ID)
	if err != nil {
		return err
	}

	state := alerts.DebounceState{EquipmentID: equipment.ID, RuleID: rule.ID, Phase: alerts.PhaseClear}
	if stored, err := s.states.Get(ctx, equipment.ID, rule.ID); err != nil {
		return err
	} else if stored != nil {
		state = *stored
	}

	next, decision := alerts.Observe(state, rule, condition, value, at, open != nil)
	if err := s.states.Upsert(ctx, &next); err != nil {
		return err
	}

	switch decision {
	case alerts.DecisionFire:
		return s.openAlert(ctx, equipment, rule, next.LastValue, at)
	case alerts.DecisionClear:
		return s.autoResolve(ctx, open, at)
	default:
		return nil
	}
}

func (s *Service) openAlert(ctx context.Context, equipment *fleet.Equipment, rule alerts.AlertRule, value *float64, at time.Time) error {
	mc := alerts.NewMessageContext(rule, equipment.Serial, value)
	now := s.clock.Now().UTC()
	alert := &alerts.Alert{
		ID:           buildAlertID(equipment.ID, rule.ID, at),
		EquipmentID:  equipment.ID,
		CompanyID:    equipment.CompanyID,
		RuleID:       rule.ID,
		Type:         rule.RuleType,
		Severity:     rule.Severity,
		Message:      alerts.RenderMessage(rule, mc),
		Status:       alerts.StatusActive,
		TriggerValue: value,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.alerts.Create(ctx, alert); err != nil {
		return err
	}
	s.notify(ctx, "fired", *alert)
	return nil
}

func (s *Service) autoResolve(ctx context.Context, open *alerts.Alert, at time.Time) error {
	if open == nil {
		return nil
	}
	resolvedAt := at
	if resolvedAt.IsZero() {
		resolvedAt = s.clock.Now().UTC()
	}
	if err := s.alerts.MarkResolved(ctx, open.ID, resolvedAt); err != nil {
		return err
	}
	open.Status = alerts.StatusResolved
	open.ResolvedAt = resolvedAt
	open.UpdatedAt = resolvedAt
	s.notify(ctx, "resolved", *open)
	return nil
}

func (s *Service) reprojectStatus(ctx context.Context, equipmentID string, lastSeen, now time.Time) error {
	active, err := s.alerts.ListActiveByEquipment(ctx, equipmentID)
	if err != nil {
		return err
	}
	status := alerts.ProjectStatus(lastSeen, active, now, s.offlineThreshold)
	return s.equipments.UpdateStatus(ctx, equipmentID, status)
}

// SweepOffline checks every equipment for staleness: it drives the
// equipment_offline rules, whose condition clock is the last reading
// time itself, and refreshes each equipment's derived status.
func (s *Service) SweepOffline(ctx context.Context, now time.Time) error {
	if s == nil {
		return errors.New("alerts: nil service")
	}
	now = now.UTC()

	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveSweep(result, time.Since(start))
	}()

	equipments, err := s.equipments.ListAll(ctx)
	if err != nil {
		result = metrics.ResultError
		return err
	}

	var firstErr error
	for i := range equipments {
		equipment := equipments[i]
		if err := s.sweepEquipment(ctx, &equipment, now); err != nil {
			s.logger.Printf("alerts: sweep equipment %s: %v", equipment.ID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		result = metrics.ResultError
	}
	return firstErr
}

func (s *Service) sweepEquipment(ctx context.Context, equipment *fleet.Equipment, now time.Time) error {
	lock := s.lockFor(equipment.ID)
	lock.Lock()
	defer lock.Unlock()

	ref := alerts.EquipmentRef{EquipmentID: equipment.ID, CompanyID: equipment.CompanyID}
	rules, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		return err
	}

	for _, rule := range rules {
		if rule.RuleType != alerts.RuleEquipmentOffline {
			continue
		}
		if err := s.sweepOfflineRule(ctx, equipment, rule, now); err != nil {
			return err
		}
	}
	return s.reprojectStatus(ctx, equipment.ID, equipment.LastSeenAt, now)
}

// sweepOfflineRule fires responsive-silence alerts. Offline has held
// continuously since the last reading arrived, so the debounce clock is
// pinned to last_seen_at rather than the sweep time.
func (s *Service) sweepOfflineRule(ctx context.Context, equipment *fleet.Equipment, rule alerts.AlertRule, now time.Time) error {
	open, err := s.alerts.FindOpenByEquipmentRule(ctx, equipment.ID, rule.ID)
	if err != nil {
		return err
	}

	since := equipment.LastSeenAt
	if since.IsZero() {
		since = equipment.CreatedAt
	}
	if since.IsZero() {
		return nil
	}

	state := alerts.DebounceState{
		EquipmentID: equipment.ID,
		RuleID:      rule.ID,
		Phase:       alerts.PhaseHolding,
		Since:       since.UTC(),
	}
	next, decision := alerts.Observe(state, rule, alerts.ConditionTrue, nil, now, open != nil)
	if err := s.states.Upsert(ctx, &next); err != nil {
		return err
	}
	if decision == alerts.DecisionFire {
		return s.openAlert(ctx, equipment, rule, nil, now)
	}
	return nil
}

// Acknowledge marks an alert acknowledged. Re-acknowledging an already
// acknowledged alert is allowed and just refreshes notes and timestamp.
func (s *Service) Acknowledge(ctx context.Context, id, userID, notes string) (*alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	if id == "" {
		return nil, errors.New("alerts: alert id required")
	}
	alert, err := s.alerts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, alerts.ErrNotFound
	}
	if companyID := auth.CompanyIDFromContext(ctx); companyID != "" && alert.CompanyID != companyID {
		return nil, auth.ErrCompanyMismatch
	}
	if alert.Status == alerts.StatusResolved {
		return nil, alerts.ErrInvalidState
	}
	ackedAt := s.clock.Now().UTC()
	if err := s.alerts.MarkAcknowledged(ctx, alert.ID, userID, notes, ackedAt); err != nil {
		return nil, err
	}
	alert.Status = alerts.StatusAcknowledged
	alert.AcknowledgedAt = ackedAt
	alert.AcknowledgedBy = userID
	alert.AcknowledgmentNotes = notes
	alert.UpdatedAt = ackedAt
	s.notify(ctx, "acknowledged", *alert)
	return alert, nil
}

// Resolve marks an alert resolved. Resolving an already resolved alert
// is a no-op returning the current record.
func (s *Service) Resolve(ctx context.Context, id string) (*alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	if id == "" {
		return nil, errors.New("alerts: alert id required")
	}
	alert, err := s.alerts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, alerts.ErrNotFound
	}
	if companyID := auth.CompanyIDFromContext(ctx); companyID != "" && alert.CompanyID != companyID {
		return nil, auth.ErrCompanyMismatch
	}
	if alert.Status == alerts.StatusResolved {
		return alert, nil
	}
	resolvedAt := s.clock.Now().UTC()
	if err := s.alerts.MarkResolved(ctx, alert.ID, resolvedAt); err != nil {
		return nil, err
	}
	alert.Status = alerts.StatusResolved
	alert.ResolvedAt = resolvedAt
	alert.UpdatedAt = resolvedAt
	s.notify(ctx, "resolved", *alert)

	if err := s.states.Clear(ctx, alert.EquipmentID, alert.RuleID); err != nil {
		s.logger.Printf("alerts: clear debounce state for %s/%s: %v", alert.EquipmentID, alert.RuleID, err)
	}
	return alert, nil
}

// ListAlerts returns alerts matching the filter, scoped to the caller's
// company when one is bound to the context.
func (s *Service) ListAlerts(ctx context.Context, filter alerts.ListFilter) ([]alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	if companyID := auth.CompanyIDFromContext(ctx); companyID != "" {
		filter.CompanyID = companyID
	}
	return s.alerts.List(ctx, filter)
}

func (s *Service) notify(ctx context.Context, eventType string, alert alerts.Alert) {
	if s == nil {
		return
	}
	metrics.IncAlertEvent(eventType)
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, AlertEvent{Type: eventType, Alert: alert})
}

func buildAlertID(equipmentID, ruleID string, at time.Time) string {
	sum := sha1.Sum([]byte(equipmentID + "|" + ruleID + "|" + at.Format(time.RFC3339Nano)))
	return "alert-" + hex.EncodeToString(sum[:8])
}
