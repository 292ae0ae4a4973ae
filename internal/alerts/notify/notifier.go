package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	alertapp "coldchain-cloud/internal/alerts/application"
	alerts "coldchain-cloud/internal/alerts/domain"
	fleet "coldchain-cloud/internal/fleet/domain"
	"coldchain-cloud/internal/observability/metrics"
)

// RuleReader loads alert rules.
type RuleReader interface {
	Get(ctx context.Context, id string) (*alerts.AlertRule, error)
}

// EquipmentReader loads equipment metadata.
type EquipmentReader interface {
	Get(ctx context.Context, id string) (*fleet.Equipment, error)
}

// AlertReader loads alert records.
type AlertReader interface {
	Get(ctx context.Context, id string) (*alerts.Alert, error)
}

// Clock provides time for scheduling.
type Clock interface {
	Now() time.Time
}

type sendRecord struct {
	at   time.Time
	hash string
}

// Notifier sends alert notifications via a channel and escalates
// critical alerts that stay unacknowledged.
type Notifier struct {
	rules          RuleReader
	equipments     EquipmentReader
	alerts         AlertReader
	channel        Channel
	template       *Template
	escalation     time.Duration
	clock          Clock
	mu             sync.Mutex
	timers         map[string]*time.Timer
	sent           map[string]sendRecord
	cooldown       time.Duration
	dedupeWindow   time.Duration
	requestTimeout time.Duration
}

// Option configures the notifier.
type Option func(*Notifier)

// WithEscalation configures escalation delay.
func WithEscalation(after time.Duration) Option {
	return func(n *Notifier) {
		if after > 0 {
			n.escalation = after
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithRequestTimeout overrides the default timeout for escalation checks.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.requestTimeout = timeout
		}
	}
}

// WithCooldown sets a minimum interval between notifications for the
// same alert and event.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// NewNotifier constructs an alert notifier.
func NewNotifier(rules RuleReader, equipments EquipmentReader, alertReader AlertReader, channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if alertReader == nil {
		return nil, errors.New("alert notifier: nil alert reader")
	}
	if channel == nil {
		return nil, errors.New("alert notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		rules:          rules,
		equipments:     equipments,
		alerts:         alertReader,
		channel:        channel,
		template:       template,
		clock:          systemClock{},
		timers:         make(map[string]*time.Timer),
		sent:           make(map[string]sendRecord),
		requestTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify implements AlertNotifier.
func (n *Notifier) Notify(ctx context.Context, event alertapp.AlertEvent) {
	if n == nil || n.channel == nil {
		return
	}
	rule, equipment := n.lookup(ctx, event.Alert)
	n.dispatch(ctx, event.Type, event.Alert, rule, equipment)

	switch event.Type {
	case "fired":
		n.scheduleEscalation(event.Alert)
	case "acknowledged", "resolved":
		n.cancelEscalation(event.Alert.ID)
	}
}

// Close stops all pending escalation timers.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.mu.Lock()
	timers := n.timers
	n.timers = make(map[string]*time.Timer)
	n.mu.Unlock()
	for _, timer := range timers {
		if timer != nil {
			timer.Stop()
		}
	}
}

func (n *Notifier) lookup(ctx context.Context, alert alerts.Alert) (*alerts.AlertRule, *fleet.Equipment) {
	var rule *alerts.AlertRule
	if n.rules != nil && alert.RuleID != "" {
		if r, err := n.rules.Get(ctx, alert.RuleID); err == nil {
			rule = r
		}
	}
	var equipment *fleet.Equipment
	if n.equipments != nil {
		if e, err := n.equipments.Get(ctx, alert.EquipmentID); err == nil {
			equipment = e
		}
	}
	return rule, equipment
}

func (n *Notifier) dispatch(ctx context.Context, eventType string, alert alerts.Alert, rule *alerts.AlertRule, equipment *fleet.Equipment) {
	data := buildTemplateData(eventType, alert, rule, equipment)
	content, err := n.template.Render(data)
	if err != nil {
		return
	}
	if !n.shouldSend(alert.ID, eventType, content) {
		return
	}
	if err := n.channel.Send(ctx, content); err != nil {
		metrics.IncNotification("webhook", metrics.ResultError)
		return
	}
	metrics.IncNotification("webhook", metrics.ResultSuccess)
	n.markSent(alert.ID, eventType, content)
}

// scheduleEscalation re-notifies for critical alerts that nobody
// acknowledges within the escalation window.
func (n *Notifier) scheduleEscalation(alert alerts.Alert) {
	if n == nil || n.escalation <= 0 || alert.ID == "" {
		return
	}
	if alert.Severity != alerts.SeverityCritical {
		return
	}
	n.mu.Lock()
	if existing, ok := n.timers[alert.ID]; ok && existing != nil {
		existing.Stop()
	}
	timer := time.AfterFunc(n.escalation, func() {
		n.runEscalation(alert.ID)
	})
	n.timers[alert.ID] = timer
	n.mu.Unlock()
}

func (n *Notifier) cancelEscalation(alertID string) {
	if n == nil || alertID == "" {
		return
	}
	n.mu.Lock()
	timer := n.timers[alertID]
	delete(n.timers, alertID)
	n.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
}

func (n *Notifier) runEscalation(alertID string) {
	if n == nil || alertID == "" {
		return
	}
	n.mu.Lock()
	delete(n.timers, alertID)
	n.mu.Unlock()

	ctx := context.Background()
	if n.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.requestTimeout)
		defer cancel()
	}

	alert, err := n.alerts.Get(ctx, alertID)
	if err != nil || alert == nil {
		return
	}
	if alert.Status != alerts.StatusActive {
		return
	}
	rule, equipment := n.lookup(ctx, *alert)
	n.dispatch(ctx, "escalated", *alert, rule, equipment)
}

func buildTemplateData(eventType string, alert alerts.Alert, rule *alerts.AlertRule, equipment *fleet.Equipment) TemplateData {
	equipmentLabel := alert.EquipmentID
	if equipment != nil && equipment.Serial != "" {
		equipmentLabel = equipment.Serial
	}
	ruleName := alert.RuleID
	threshold := ""
	if rule != nil {
		if rule.Name != "" {
			ruleName = rule.Name
		}
		if rule.ThresholdValue != nil {
			threshold = fmt.Sprintf("%s %s", rule.Operator, formatFloat(*rule.ThresholdValue))
		}
	}
	return TemplateData{
		Equipment:    equipmentLabel,
		EquipmentID:  alert.EquipmentID,
		Rule:         ruleName,
		RuleID:       alert.RuleID,
		TriggerValue: formatTrigger(alert.TriggerValue),
		Threshold:    threshold,
		RaisedAt:     alert.CreatedAt.UTC().Format(time.RFC3339),
		Status:       alert.Status,
		Severity:     string(alert.Severity),
		Suggestion:   suggestionFor(alert),
		Event:        eventType,
		EventLabel:   eventLabel(eventType),
	}
}

func eventLabel(event string) string {
	switch event {
	case "fired":
		return "Triggered"
	case "acknowledged":
		return "Acknowledged"
	case "resolved":
		return "Resolved"
	case "escalated":
		return "Escalated"
	default:
		return event
	}
}

func suggestionFor(alert alerts.Alert) string {
	if alert.Type == alerts.RuleEquipmentOffline {
		return "Check network connectivity and power at the site."
	}
	switch alert.Severity {
	case alerts.SeverityCritical:
		return "Inspect the unit immediately; stock may be at risk."
	default:
		return "Verify the condition and take action if needed."
	}
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func formatTrigger(value *float64) string {
	if value == nil {
		return "n/a"
	}
	return formatFloat(*value)
}

func (n *Notifier) shouldSend(alertID, eventType, content string) bool {
	if n == nil {
		return false
	}
	if n.cooldown <= 0 && n.dedupeWindow <= 0 {
		return true
	}
	key := notificationKey(alertID, eventType)
	now := n.clock.Now().UTC()
	hash := hashContent(content)

	n.mu.Lock()
	record, ok := n.sent[key]
	n.mu.Unlock()
	if !ok {
		return true
	}
	if n.cooldown > 0 && now.Sub(record.at) < n.cooldown {
		return false
	}
	if n.dedupeWindow > 0 && record.hash == hash && now.Sub(record.at) < n.dedupeWindow {
		return false
	}
	return true
}

func (n *Notifier) markSent(alertID, eventType, content string) {
	if n == nil {
		return
	}
	key := notificationKey(alertID, eventType)
	n.mu.Lock()
	n.sent[key] = sendRecord{
		at:   n.clock.Now().UTC(),
		hash: hashContent(content),
	}
	n.mu.Unlock()
}

func notificationKey(alertID, eventType string) string {
	return alertID + "|" + eventType
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:8])
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
