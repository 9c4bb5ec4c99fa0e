package reality

import "time"

// RiskLevel classifies how dangerous executing a plan is.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// AtLeast reports whether l is as severe as min.
func (l RiskLevel) AtLeast(min RiskLevel) bool {
	return riskRank(l) >= riskRank(min)
}

func riskRank(l RiskLevel) int {
	switch l {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	default:
		return -1
	}
}

// RiskAssessment is the planner's judgment of a plan. It is a pure
// function of the input patterns, never of execution history.
type RiskAssessment struct {
	Level              RiskLevel `json:"level"`
	FailureProbability float64   `json:"failure_probability"`
	Mitigations        []string  `json:"mitigations"`
}

// Step is one remediation action inside a plan.
type Step struct {
	ID              string        `json:"id"`
	PatternID       string        `json:"pattern_id"`
	PatternKind     PatternKind   `json:"pattern_kind"`
	Algorithm       Algorithm     `json:"algorithm"`
	Priority        int           `json:"priority"`
	Severity        float64       `json:"severity"`
	EstimatedEnergy float64       `json:"estimated_energy"`
	EstimatedTime   time.Duration `json:"estimated_time"`
}

// Plan is an ordered remediation program for one construct.
//
// Plans are immutable once handed to the executor: the executor receives
// the plan by value and never writes back into it.
type Plan struct {
	ID                 string         `json:"id"`
	ConstructID        string         `json:"construct_id"`
	Steps              []Step         `json:"steps"`
	TotalEnergy        float64        `json:"total_energy"`
	EstimatedDuration  time.Duration  `json:"estimated_duration"`
	Risk               RiskAssessment `json:"risk"`
	SuccessProbability float64        `json:"success_probability"`
	CreatedAt          time.Time      `json:"created_at"`
}

// Empty reports whether the plan has no steps.
func (p Plan) Empty() bool { return len(p.Steps) == 0 }
