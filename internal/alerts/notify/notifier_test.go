package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	alertapp "coldchain-cloud/internal/alerts/application"
	alerts "coldchain-cloud/internal/alerts/domain"
	fleet "coldchain-cloud/internal/fleet/domain"
)

type stubRuleReader struct {
	rule *alerts.AlertRule
}

func (s stubRuleReader) Get(context.Context, string) (*alerts.AlertRule, error) {
	return s.rule, nil
}

type stubEquipmentReader struct {
	equipment *fleet.Equipment
}

func (s stubEquipmentReader) Get(context.Context, string) (*fleet.Equipment, error) {
	return s.equipment, nil
}

type stubAlertReader struct {
	mu    sync.Mutex
	alert *alerts.Alert
}

func (s *stubAlertReader) Get(context.Context, string) (*alerts.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alert == nil {
		return nil, nil
	}
	copied := *s.alert
	return &copied, nil
}

func (s *stubAlertReader) setStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alert.Status = status
}

type recordingChannel struct {
	mu       sync.Mutex
	messages []string
}

func (c *recordingChannel) Send(_ context.Context, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, content)
	return nil
}

func (c *recordingChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func floatPtr(v float64) *float64 { return &v }

func testRule() *alerts.AlertRule {
	return &alerts.AlertRule{
		ID:             "rule-1",
		Name:           "Freezer Temp High",
		RuleType:       alerts.RuleTemperatureHigh,
		ThresholdValue: floatPtr(-15),
		Operator:       alerts.OperatorGreater,
		Severity:       alerts.SeverityCritical,
		Scope:          alerts.RuleScope{Kind: alerts.ScopeGlobal},
		IsActive:       true,
	}
}

func testAlert() *alerts.Alert {
	return &alerts.Alert{
		ID:           "alert-1",
		EquipmentID:  "eq-1",
		CompanyID:    "company-1",
		RuleID:       "rule-1",
		Type:         alerts.RuleTemperatureHigh,
		Severity:     alerts.SeverityCritical,
		Message:      "temp out of range",
		Status:       alerts.StatusActive,
		TriggerValue: floatPtr(-9.5),
		CreatedAt:    time.Date(2026, 1, 26, 8, 0, 0, 0, time.UTC),
	}
}

func TestWebhookNotifierPayload(t *testing.T) {
	payloadCh := make(chan webhookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		payloadCh <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("new webhook channel: %v", err)
	}
	tpl, err := NewTemplate("")
	if err != nil {
		t.Fatalf("new template: %v", err)
	}

	alert := testAlert()
	equipment := &fleet.Equipment{ID: "eq-1", Serial: "FRZ-001"}
	notifier, err := NewNotifier(
		stubRuleReader{rule: testRule()},
		stubEquipmentReader{equipment: equipment},
		&stubAlertReader{alert: alert},
		channel,
		tpl,
	)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	defer notifier.Close()

	notifier.Notify(context.Background(), alertapp.AlertEvent{Type: "fired", Alert: *alert})

	select {
	case payload := <-payloadCh:
		if payload.MsgType != "text" {
			t.Fatalf("expected msgtype text, got %s", payload.MsgType)
		}
		content := payload.Text.Content
		checks := []string{
			"[Alert Triggered]",
			"Equipment: FRZ-001",
			"Rule: Freezer Temp High",
			"Trigger Value: -9.5",
			"Threshold: > -15",
			"Severity: critical",
		}
		for _, check := range checks {
			if !strings.Contains(content, check) {
				t.Fatalf("content missing %q:\n%s", check, content)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no webhook payload received")
	}
}

func TestNotifierEscalatesUnacknowledged(t *testing.T) {
	channel := &recordingChannel{}
	reader := &stubAlertReader{alert: testAlert()}
	notifier, err := NewNotifier(
		stubRuleReader{rule: testRule()},
		stubEquipmentReader{},
		reader,
		channel,
		nil,
		WithEscalation(20*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	defer notifier.Close()

	notifier.Notify(context.Background(), alertapp.AlertEvent{Type: "fired", Alert: *reader.alert})

	deadline := time.Now().Add(time.Second)
	for channel.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected escalation, got %d messages", channel.count())
		}
		time.Sleep(5 * time.Millisecond)
	}
	channel.mu.Lock()
	escalated := channel.messages[1]
	channel.mu.Unlock()
	if !strings.Contains(escalated, "[Alert Escalated]") {
		t.Fatalf("second message is not an escalation:\n%s", escalated)
	}
}

func TestNotifierAcknowledgeCancelsEscalation(t *testing.T) {
	channel := &recordingChannel{}
	reader := &stubAlertReader{alert: testAlert()}
	notifier, err := NewNotifier(
		stubRuleReader{rule: testRule()},
		stubEquipmentReader{},
		reader,
		channel,
		nil,
		WithEscalation(30*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	defer notifier.Close()

	notifier.Notify(context.Background(), alertapp.AlertEvent{Type: "fired", Alert: *reader.alert})
	reader.setStatus(alerts.StatusAcknowledged)
	acked := *reader.alert
	notifier.Notify(context.Background(), alertapp.AlertEvent{Type: "acknowledged", Alert: acked})

	time.Sleep(80 * time.Millisecond)
	if got := channel.count(); got != 2 {
		t.Fatalf("expected fired + acknowledged only, got %d messages", got)
	}
}

func TestNotifierDedupeSuppressesRepeat(t *testing.T) {
	channel := &recordingChannel{}
	reader := &stubAlertReader{alert: testAlert()}
	notifier, err := NewNotifier(
		stubRuleReader{rule: testRule()},
		stubEquipmentReader{},
		reader,
		channel,
		nil,
		WithDedupeWindow(time.Minute),
	)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	defer notifier.Close()

	event := alertapp.AlertEvent{Type: "fired", Alert: *reader.alert}
	notifier.Notify(context.Background(), event)
	notifier.Notify(context.Background(), event)

	if got := channel.count(); got != 1 {
		t.Fatalf("expected duplicate suppression, got %d messages", got)
	}
}
