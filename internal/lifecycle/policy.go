package lifecycle

// Policy holds the tunable thresholds used by the classifier.
type Policy struct {
	// HeartbeatStaleDays is the heartbeat age (calendar days) after which a
	// POC with assignments leaves the Active state.
	HeartbeatStaleDays float64

	// StallWorkdays is the number of working days without a completion
	// after which an engagement counts as stalled.
	StallWorkdays int

	// PrepHoursPerDay is the preparation capacity per working day.
	PrepHoursPerDay float64

	// EndingSoonDays is the working-day window before the planned end date
	// in which an incomplete POC is flagged at risk.
	EndingSoonDays int
}

// DefaultPolicy returns the standard thresholds.
func DefaultPolicy() Policy {
	return Policy{
		HeartbeatStaleDays: 2,
		StallWorkdays:      4,
		PrepHoursPerDay:    8,
		EndingSoonDays:     3,
	}
}
