package application

import (
	"context"
	"testing"
	"time"

	alerts "coldchain-cloud/internal/alerts/domain"
	fleet "coldchain-cloud/internal/fleet/domain"
)

func TestSweepOffline_FiresAfterSilence(t *testing.T) {
	lastSeen := time.Date(2026, 1, 10, 5, 0, 0, 0, time.UTC)
	clock := &fixedClock{now: lastSeen}

	rule := offlineRule("rule-offline", alerts.RuleScope{Kind: alerts.ScopeGlobal}, 600)
	equipment := testFreezer()
	equipment.LastSeenAt = lastSeen

	rules := newMemRuleRepo(rule)
	alertRepo := newMemAlertRepo()
	states := newMemStateRepo()
	equipments := newMemEquipmentRepo(equipment)
	service, notifier := testService(t, clock, rules, alertRepo, states, equipments)

	ctx := context.Background()

	// Quiet for less than the rule duration: nothing fires.
	if err := service.SweepOffline(ctx, lastSeen.Add(599*time.Second)); err != nil {
		t.Fatalf("early sweep: %v", err)
	}
	if alertRepo.countByStatus(alerts.StatusActive) != 0 {
		t.Fatal("sweep fired before the offline duration elapsed")
	}

	clock.Set(lastSeen.Add(601 * time.Second))
	if err := service.SweepOffline(ctx, lastSeen.Add(601*time.Second)); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if alertRepo.countByStatus(alerts.StatusActive) != 1 {
		t.Fatal("expected offline alert after silence")
	}
	if notifier.byType("fired") != 1 {
		t.Fatal("expected fired notification")
	}
	if equipments.status("eq-1") != fleet.StatusOffline {
		t.Fatalf("expected offline status, got %s", equipments.status("eq-1"))
	}

	// A later sweep must not duplicate the alert.
	clock.Set(lastSeen.Add(700 * time.Second))
	if err := service.SweepOffline(ctx, lastSeen.Add(700*time.Second)); err != nil {
		t.Fatalf("repeat sweep: %v", err)
	}
	if alertRepo.countByStatus(alerts.StatusActive) != 1 {
		t.Fatal("repeat sweep duplicated the alert")
	}

	// The next reading refutes offline and auto-resolves immediately.
	at := lastSeen.Add(705 * time.Second)
	clock.Set(at)
	if err := equipments.TouchLastSeen(ctx, "eq-1", at); err != nil {
		t.Fatalf("touch last seen: %v", err)
	}
	if err := service.HandleReadingReceived(ctx, reading(at, 4.0)); err != nil {
		t.Fatalf("reading after outage: %v", err)
	}
	if alertRepo.countByStatus(alerts.StatusResolved) != 1 {
		t.Fatal("offline alert should auto-resolve on the next reading")
	}
	if alertRepo.countByStatus(alerts.StatusActive) != 0 {
		t.Fatal("no active alert expected after recovery")
	}
	if equipments.status("eq-1") != fleet.StatusOperational {
		t.Fatalf("expected operational after recovery, got %s", equipments.status("eq-1"))
	}
}

func TestSweepOffline_NeverReportedUsesCreation(t *testing.T) {
	created := time.Date(2026, 1, 10, 5, 0, 0, 0, time.UTC)
	clock := &fixedClock{now: created}

	rule := offlineRule("rule-offline", alerts.RuleScope{Kind: alerts.ScopeGlobal}, 600)
	equipment := testFreezer()
	equipment.CreatedAt = created

	rules := newMemRuleRepo(rule)
	alertRepo := newMemAlertRepo()
	states := newMemStateRepo()
	equipments := newMemEquipmentRepo(equipment)
	service, _ := testService(t, clock, rules, alertRepo, states, equipments)

	ctx := context.Background()
	clock.Set(created.Add(601 * time.Second))
	if err := service.SweepOffline(ctx, created.Add(601*time.Second)); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if alertRepo.countByStatus(alerts.StatusActive) != 1 {
		t.Fatal("expected offline alert anchored to creation time")
	}
}

func TestSweeper_RunsOnInterval(t *testing.T) {
	lastSeen := time.Date(2026, 1, 10, 5, 0, 0, 0, time.UTC)
	clock := &fixedClock{now: lastSeen.Add(601 * time.Second)}

	rule := offlineRule("rule-offline", alerts.RuleScope{Kind: alerts.ScopeGlobal}, 600)
	equipment := testFreezer()
	equipment.LastSeenAt = lastSeen

	rules := newMemRuleRepo(rule)
	alertRepo := newMemAlertRepo()
	states := newMemStateRepo()
	equipments := newMemEquipmentRepo(equipment)
	service, _ := testService(t, clock, rules, alertRepo, states, equipments)

	sweeper, err := NewSweeper(service, 5*time.Millisecond, testLogger(), WithSweeperClock(clock))
	if err != nil {
		t.Fatalf("new sweeper: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for alertRepo.countByStatus(alerts.StatusActive) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweeper never fired the offline alert")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancel")
	}
}
