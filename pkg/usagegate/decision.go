package usagegate

import "github.com/dmitrymomot/meterkit/pkg/plan"

// DenyReason identifies why a metered request was refused. The three reasons
// require different user actions (subscribe/fix payment, wait for the daily
// reset, upgrade or enable overage), so callers surface them individually
// instead of a generic failure.
type DenyReason string

const (
	DenySubscriptionRequired DenyReason = "subscription_required"
	DenyDailyLimitExceeded   DenyReason = "daily_limit_exceeded"
	DenyMonthlyLimitExceeded DenyReason = "monthly_limit_exceeded"
)

// Decision is the typed outcome of a quota check. Policy denials are values,
// not errors: only integrity and storage failures surface as errors from
// CheckAndConsume.
type Decision struct {
	Allowed bool
	Reason  DenyReason // set only when Allowed is false

	// Overage reports that the request was allowed past the monthly quota and
	// will be billed at OverageUnitPrice per unit.
	Overage          bool
	OverageUnitPrice plan.Money

	// MonthlyUsed/MonthlyQuota reflect the ledger after this decision, for
	// response headers and usage meters.
	MonthlyUsed  int64
	MonthlyQuota int64
}

// Denied reports whether the request must not proceed.
func (d Decision) Denied() bool {
	return !d.Allowed
}

func allowed(used, quota int64) Decision {
	return Decision{Allowed: true, MonthlyUsed: used, MonthlyQuota: quota}
}

func allowedWithOverage(price plan.Money, used, quota int64) Decision {
	return Decision{
		Allowed:          true,
		Overage:          true,
		OverageUnitPrice: price,
		MonthlyUsed:      used,
		MonthlyQuota:     quota,
	}
}

func denied(reason DenyReason, used, quota int64) Decision {
	return Decision{Reason: reason, MonthlyUsed: used, MonthlyQuota: quota}
}
