package plan

// Tier represents a subscription plan tier.
type Tier string

const (
	TierFree   Tier = "free"
	TierBasic  Tier = "basic"
	TierPro    Tier = "pro"
	TierAgency Tier = "agency"
)

// Valid reports whether the tier is one of the closed enum values.
// Entitlement records read from storage may carry a corrupted tier;
// callers must treat an invalid tier as deny, never as unlimited.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierBasic, TierPro, TierAgency:
		return true
	}
	return false
}

const (
	// Unlimited indicates no quota for a resource (-1 chosen for SQL compatibility)
	Unlimited int64 = -1
)

// Feature represents a plan-specific capability that can be enabled/disabled.
type Feature string

const (
	FeatureAPI           Feature = "api"
	FeatureBulkExport    Feature = "bulk_export"
	FeatureTeamSeats     Feature = "team_seats"
	FeatureCustomVoice   Feature = "custom_voice"
	FeatureWhiteLabel    Feature = "white_label"
	FeaturePrioritySlots Feature = "priority_slots"
)

// Money represents a monetary amount in the smallest currency unit.
// For example, $0.12 USD would be Amount: 12, Currency: "USD".
type Money struct {
	Amount   int64  `yaml:"amount"`   // Amount in smallest currency unit (cents for USD)
	Currency string `yaml:"currency"` // ISO 4217 currency code
}

// IsZero reports whether no amount is set.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// Limits describes the metered-usage constraints of a single tier.
type Limits struct {
	// MonthlyQuota is the number of metered units allowed per calendar month.
	// Unlimited (-1) disables the monthly cap.
	MonthlyQuota int64 `yaml:"monthly_quota"`

	// DailyQuota is the optional per-day cap. Zero means the tier has no daily cap.
	DailyQuota int64 `yaml:"daily_quota"`

	// OverageUnitPrice is the per-unit price charged for consumption past the
	// monthly quota. A zero price means the tier does not support overage.
	OverageUnitPrice Money `yaml:"overage_unit_price"`

	Features []Feature `yaml:"features"`
}

// HasDailyQuota reports whether the tier defines a per-day cap.
func (l Limits) HasDailyQuota() bool {
	return l.DailyQuota > 0
}

// OverageSupported reports whether consumption past the monthly quota can be
// billed instead of denied.
func (l Limits) OverageSupported() bool {
	return !l.OverageUnitPrice.IsZero()
}
