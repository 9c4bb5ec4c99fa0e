package stabilize

import "time"

// Config tunes the remediation pipeline. Zero values are never used
// directly; construct via DefaultConfig and override fields as needed.
type Config struct {
	// DetectionThreshold is the instability measure a dimension must
	// strictly exceed before a pattern is emitted.
	DetectionThreshold float64

	// CriticalThreshold is the overall instability above which a fracture
	// pattern fires and an unplannable construct becomes a hard error.
	CriticalThreshold float64

	// AnchorFailureThreshold is the anchor stability below which an
	// anchor failure pattern fires.
	AnchorFailureThreshold float64

	// EnergyScale converts step severity to estimated energy.
	EnergyScale float64

	// TimeScale converts step severity to estimated processing time.
	TimeScale time.Duration

	// EnergyBudget caps total energy one execution may consume.
	EnergyBudget float64

	// GoodEnough is the stability at which execution exits early after a
	// successful step.
	GoodEnough float64

	// ReconfigureThreshold is the network impact above which adaptation
	// escalates to a full network reconfiguration.
	ReconfigureThreshold float64

	// WeakNodeThreshold marks nodes that algorithm adjustment re-tunes.
	WeakNodeThreshold float64

	// MinEffectiveness is the effectiveness below which an executed
	// adaptation strategy counts as failed.
	MinEffectiveness float64
}

// DefaultConfig returns the standard pipeline tuning.
func DefaultConfig() Config {
	return Config{
		DetectionThreshold:     0.1,
		CriticalThreshold:      0.8,
		AnchorFailureThreshold: 0.3,
		EnergyScale:            100,
		TimeScale:              2 * time.Second,
		EnergyBudget:           10_000,
		GoodEnough:             0.8,
		ReconfigureThreshold:   0.7,
		WeakNodeThreshold:      0.5,
		MinEffectiveness:       0.3,
	}
}
