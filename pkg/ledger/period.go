package ledger

import "time"

// Granularity identifies the kind of usage period a counter covers.
type Granularity string

const (
	GranularityMonthly Granularity = "monthly"
	GranularityDaily   Granularity = "daily"
)

// Period identifies one usage-counter window for a tenant. The key is a
// calendar bucket (YYYY-MM or YYYY-MM-DD in UTC), so rollover is implicit:
// a counter for a new period key starts at zero the first time it is touched
// and no reset job ever runs.
type Period struct {
	Granularity Granularity
	Key         string
}

// Monthly returns the monthly period containing t.
func Monthly(t time.Time) Period {
	return Period{
		Granularity: GranularityMonthly,
		Key:         t.UTC().Format("2006-01"),
	}
}

// Daily returns the daily period containing t.
func Daily(t time.Time) Period {
	return Period{
		Granularity: GranularityDaily,
		Key:         t.UTC().Format("2006-01-02"),
	}
}

// End returns the first instant after the period, used to expire counter keys.
func (p Period) End() time.Time {
	switch p.Granularity {
	case GranularityDaily:
		t, err := time.Parse("2006-01-02", p.Key)
		if err != nil {
			return time.Time{}
		}
		return t.AddDate(0, 0, 1)
	default:
		t, err := time.Parse("2006-01", p.Key)
		if err != nil {
			return time.Time{}
		}
		return t.AddDate(0, 1, 0)
	}
}
