package encadrement

// BillingPolicy carries the billing toggles resolved from configuration at
// boot. The aggregate stays deterministic: the policy is an argument to the
// billing transitions, never ambient state read inside them.
type BillingPolicy struct {
	// AutoResume reactivates a paused encadrement when a successful charge
	// lands, instead of waiting for an explicit resume from the account.
	AutoResume bool

	// GracePeriod tolerates one failed charge before the auto-pause.
	// Without it the first failure pauses immediately.
	GracePeriod bool
}

// DefaultBillingPolicy matches the shipped defaults: no auto-resume, one
// grace cycle before the auto-pause.
func DefaultBillingPolicy() BillingPolicy {
	return BillingPolicy{GracePeriod: true}
}

// pauseThreshold is the consecutive-failure count at which the auto-pause
// fires.
func (p BillingPolicy) pauseThreshold() int {
	if p.GracePeriod {
		return 2
	}
	return 1
}
