package service

import "fredserve/internal/platform/config"

// Hooks for the external service_test package: data_service_test.go must live
// outside package service so it can import worker without an import cycle.
var (
	NewTestRouter       = newTestRouter
	ObservationsPayload = observationsPayload
	EstimateSeconds     = estimateSeconds
)

func RouterConfig(r *OutputRouter) *config.Config { return r.cfg }
