package noderuntime

// DegradedMarker is the (degraded, reason) pair derived from a handler's
// Result after completion.
type DegradedMarker struct {
	Degraded bool
	Reason   string
}

// DeriveDegradedMarker implements spec.md §4.8's precedence exactly:
// fallback_reason > api_failure_category > dispatch_uncertain >
// cli_fallback_used > deterministic_fallback_used > "success_with_warning"
// > "degraded". The node is degraded whenever any of the union members is
// set; the reason is the first one present in precedence order, or the
// catch-all "degraded" when fallback_attempted is the only member set.
func DeriveDegradedMarker(r Result) DegradedMarker {
	anyFlag := r.FallbackAttempted || r.DispatchUncertain || r.CLIFallbackUsed ||
		r.DeterministicFallbackUsed || r.DeterministicSuccessWithWarning ||
		r.FallbackReason != "" || r.APIFailureCategory != ""

	if !anyFlag {
		return DegradedMarker{}
	}

	switch {
	case r.FallbackReason != "":
		return DegradedMarker{Degraded: true, Reason: r.FallbackReason}
	case r.APIFailureCategory != "":
		return DegradedMarker{Degraded: true, Reason: r.APIFailureCategory}
	case r.DispatchUncertain:
		return DegradedMarker{Degraded: true, Reason: "dispatch_uncertain"}
	case r.CLIFallbackUsed:
		return DegradedMarker{Degraded: true, Reason: "cli_fallback_used"}
	case r.DeterministicFallbackUsed:
		return DegradedMarker{Degraded: true, Reason: "deterministic_fallback_used"}
	case r.DeterministicSuccessWithWarning:
		return DegradedMarker{Degraded: true, Reason: "success_with_warning"}
	default:
		return DegradedMarker{Degraded: true, Reason: "degraded"}
	}
}
