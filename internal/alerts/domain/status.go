package alerts

import (
	"time"

	fleet "coldchain-cloud/internal/fleet/domain"
)

// ProjectStatus derives the coarse equipment status. It is a pure
// function of its inputs so re-deriving with the same arguments always
// yields the same result.
//
// Offline wins over everything: an equipment that never reported, or
// whose last reading is older than the freshness window, is offline
// regardless of open alerts. Otherwise the worst open severity decides.
func ProjectStatus(lastSeenAt time.Time, activeAlerts []Alert, now time.Time, offlineThreshold time.Duration) fleet.EquipmentStatus {
	if lastSeenAt.IsZero() || now.Sub(lastSeenAt) > offlineThreshold {
		return fleet.StatusOffline
	}
	hasWarning := false
	for _, alert := range activeAlerts {
		if !alert.Open() {
			continue
		}
		switch alert.Severity {
		case SeverityCritical:
			return fleet.StatusCritical
		case SeverityWarning:
			hasWarning = true
		}
	}
	if hasWarning {
		return fleet.StatusWarning
	}
	return fleet.StatusOperational
}
