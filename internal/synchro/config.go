package synchro

import "time"

// Config carries the coordinator's tunables. Zero values are not
// usable; start from DefaultConfig.
type Config struct {
	// BaselineStrength seeds every off-diagonal cell of the
	// coordination matrix. Diagonal cells are always 1.
	BaselineStrength float64

	// ConvergenceRate is the fraction of the source/target gap closed
	// by one synchronization operation, per affected dimension.
	ConvergenceRate float64

	// DriftThreshold is the magnitude above which a drift event is
	// emitted (strict comparison).
	DriftThreshold float64

	// CriticalDrift is the magnitude above which the coordinator
	// enters the desynchronizing state (strict comparison).
	CriticalDrift float64

	// MaxDrift caps reported drift magnitude.
	MaxDrift float64

	// HighDriftPriority promotes generated state-sync operations to
	// high priority when pre-sync drift is at or above this value.
	HighDriftPriority float64

	// SyncDeadline bounds how long a generated operation may wait in
	// the queue before it is considered stale.
	SyncDeadline time.Duration

	// BaseSyncTime is the modeled duration of a zero-drift operation.
	// Actual modeled time scales with (1 + drift).
	BaseSyncTime time.Duration

	// EnergyBase and EnergyPerDrift set the energy cost of one
	// operation: EnergyBase + EnergyPerDrift * drift.
	EnergyBase     float64
	EnergyPerDrift float64

	// HealthInterval and DriftInterval pace the background tickers
	// started by Initialize.
	HealthInterval time.Duration
	DriftInterval  time.Duration

	// Workers bounds how many operation lanes execute concurrently.
	Workers int

	// HistoryLimit caps the retained executed-operation records used
	// for rollback and reporting.
	HistoryLimit int
}

// DefaultConfig returns the coordinator defaults.
func DefaultConfig() Config {
	return Config{
		BaselineStrength:  0.8,
		ConvergenceRate:   0.5,
		DriftThreshold:    0.1,
		CriticalDrift:     0.25,
		MaxDrift:          0.3,
		HighDriftPriority: 0.2,
		SyncDeadline:      30 * time.Second,
		BaseSyncTime:      100 * time.Millisecond,
		EnergyBase:        5,
		EnergyPerDrift:    10,
		HealthInterval:    time.Minute,
		DriftInterval:     30 * time.Second,
		Workers:           4,
		HistoryLimit:      256,
	}
}
