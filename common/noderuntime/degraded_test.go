package noderuntime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveDegradedMarker_NoFlagsIsClean(t *testing.T) {
	marker := DeriveDegradedMarker(Result{})
	assert.False(t, marker.Degraded)
	assert.Empty(t, marker.Reason)
}

func TestDeriveDegradedMarker_FallbackReasonBeatsAPIFailureCategory(t *testing.T) {
	marker := DeriveDegradedMarker(Result{FallbackReason: "provider_unavailable", APIFailureCategory: "socket_missing"})
	assert.True(t, marker.Degraded)
	assert.Equal(t, "provider_unavailable", marker.Reason)
}

func TestDeriveDegradedMarker_APIFailureCategoryBeatsDispatchUncertain(t *testing.T) {
	marker := DeriveDegradedMarker(Result{APIFailureCategory: "socket_missing", DispatchUncertain: true})
	assert.Equal(t, "socket_missing", marker.Reason)
}

func TestDeriveDegradedMarker_DispatchUncertainBeatsCLIFallback(t *testing.T) {
	marker := DeriveDegradedMarker(Result{DispatchUncertain: true, CLIFallbackUsed: true})
	assert.Equal(t, "dispatch_uncertain", marker.Reason)
}

func TestDeriveDegradedMarker_CLIFallbackBeatsDeterministicFallback(t *testing.T) {
	marker := DeriveDegradedMarker(Result{CLIFallbackUsed: true, DeterministicFallbackUsed: true})
	assert.Equal(t, "cli_fallback_used", marker.Reason)
}

func TestDeriveDegradedMarker_DeterministicFallbackBeatsSuccessWithWarning(t *testing.T) {
	marker := DeriveDegradedMarker(Result{DeterministicFallbackUsed: true, DeterministicSuccessWithWarning: true})
	assert.Equal(t, "deterministic_fallback_used", marker.Reason)
}

func TestDeriveDegradedMarker_SuccessWithWarningReportsSuccessWithWarning(t *testing.T) {
	marker := DeriveDegradedMarker(Result{DeterministicSuccessWithWarning: true})
	assert.Equal(t, "success_with_warning", marker.Reason)
}
