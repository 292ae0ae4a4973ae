package alerts

import (
	"testing"
	"time"

	fleet "coldchain-cloud/internal/fleet/domain"
)

func TestProjectStatus_Precedence(t *testing.T) {
	now := time.Date(2026, 1, 10, 5, 0, 0, 0, time.UTC)
	fresh := now.Add(-time.Minute)
	threshold := 5 * time.Minute

	critical := Alert{Status: StatusActive, Severity: SeverityCritical}
	warning := Alert{Status: StatusActive, Severity: SeverityWarning}

	cases := []struct {
		name     string
		lastSeen time.Time
		alerts   []Alert
		want     fleet.EquipmentStatus
	}{
		{"never reported", time.Time{}, nil, fleet.StatusOffline},
		{"stale", now.Add(-10 * time.Minute), []Alert{critical}, fleet.StatusOffline},
		{"critical wins over warning", fresh, []Alert{warning, critical}, fleet.StatusCritical},
		{"warning", fresh, []Alert{warning}, fleet.StatusWarning},
		{"no alerts", fresh, nil, fleet.StatusOperational},
		{"resolved alerts ignored", fresh, []Alert{{Status: StatusResolved, Severity: SeverityCritical}}, fleet.StatusOperational},
		{"acknowledged still counts", fresh, []Alert{{Status: StatusAcknowledged, Severity: SeverityWarning}}, fleet.StatusWarning},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ProjectStatus(tc.lastSeen, tc.alerts, now, threshold)
			if got != tc.want {
				t.Fatalf("status = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestProjectStatus_Deterministic(t *testing.T) {
	now := time.Date(2026, 1, 10, 5, 0, 0, 0, time.UTC)
	lastSeen := now.Add(-30 * time.Second)
	alerts := []Alert{{Status: StatusActive, Severity: SeverityWarning}}

	first := ProjectStatus(lastSeen, alerts, now, time.Minute)
	second := ProjectStatus(lastSeen, alerts, now, time.Minute)
	if first != second {
		t.Fatalf("projection not deterministic: %s vs %s", first, second)
	}
}

func TestProjectStatus_ExactThresholdIsOnline(t *testing.T) {
	now := time.Date(2026, 1, 10, 5, 0, 0, 0, time.UTC)
	lastSeen := now.Add(-5 * time.Minute)
	got := ProjectStatus(lastSeen, nil, now, 5*time.Minute)
	if got != fleet.StatusOperational {
		t.Fatalf("gap equal to threshold should still be online, got %s", got)
	}
}
