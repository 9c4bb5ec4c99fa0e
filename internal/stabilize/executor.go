package stabilize

import (
	"context"
	"fmt"
	"time"

	"github.com/starwell/coherence/internal/reality"
)

// StepResult records the outcome of one executed plan step.
type StepResult struct {
	StepID             string            `json:"step_id"`
	PatternID          string            `json:"pattern_id"`
	Algorithm          reality.Algorithm `json:"algorithm"`
	Success            bool              `json:"success"`
	ResultingStability float64           `json:"resulting_stability"`
	EnergyUsed         float64           `json:"energy_used"`
	Warnings           []string          `json:"warnings,omitempty"`
	Errors             []string          `json:"errors,omitempty"`
}

// ValidationReport states whether a run improved the construct. Whenever
// Valid is false it carries at least one warning or error explaining why.
type ValidationReport struct {
	Valid    bool     `json:"valid"`
	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// Result is the full outcome of executing a plan against a construct.
type Result struct {
	PlanID               string        `json:"plan_id"`
	ConstructID          string        `json:"construct_id"`
	OriginalStability    float64       `json:"original_stability"`
	FinalStability       float64       `json:"final_stability"`
	StabilityImprovement float64       `json:"stability_improvement"`
	StepsExecuted        int           `json:"steps_executed"`
	StepsSucceeded       int           `json:"steps_succeeded"`
	EarlyExit            bool          `json:"early_exit"`
	EnergyConsumed       float64       `json:"energy_consumed"`
	ProcessingTime       time.Duration `json:"processing_time"`

	StepResults []StepResult     `json:"step_results"`
	Validation  ValidationReport `json:"validation"`
	CompletedAt time.Time        `json:"completed_at"`
}

// Executor runs stabilization plans. It is the only component that
// mutates construct health during stabilization; every write is clamped.
type Executor struct {
	cfg   Config
	clock reality.Clock
}

// NewExecutor creates an executor.
func NewExecutor(cfg Config, clock reality.Clock) *Executor {
	return &Executor{cfg: cfg, clock: clock}
}

// Execute runs the plan's steps strictly in order.
//
// A step succeeds when its algorithm raises stability strictly above the
// pre-step value within the remaining energy budget. Failed steps record
// their reason and execution continues with the next step. After any
// successful step that lifts stability past the good-enough threshold the
// remaining steps are skipped.
//
// LastStabilization advances only when at least one step succeeded. The
// result is valid only when final stability strictly exceeds the
// original; an invalid result always carries at least one warning or
// error.
//
// Cancellation is honored between steps: the construct keeps whatever
// progress completed steps made, and the partial result is returned with
// the context's error.
func (e *Executor) Execute(ctx context.Context, c *reality.Construct, plan reality.Plan) (Result, error) {
	res := Result{
		PlanID:            plan.ID,
		ConstructID:       c.ID,
		OriginalStability: c.Health.Stability,
	}
	budget := e.cfg.EnergyBudget

	for _, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			e.finish(c, &res, plan)
			return res, fmt.Errorf("execution cancelled after %d steps: %w", res.StepsExecuted, err)
		}

		sr := StepResult{
			StepID:    step.ID,
			PatternID: step.PatternID,
			Algorithm: step.Algorithm,
		}
		res.StepsExecuted++

		apply, ok := algorithmFor(step.Algorithm)
		if !ok {
			sr.ResultingStability = c.Health.Stability
			sr.Errors = append(sr.Errors, fmt.Sprintf("unknown algorithm %q; step skipped", step.Algorithm))
			res.StepResults = append(res.StepResults, sr)
			continue
		}
		if step.EstimatedEnergy > budget {
			sr.ResultingStability = c.Health.Stability
			sr.Errors = append(sr.Errors, fmt.Sprintf(
				"energy budget exhausted: step needs %.1f, %.1f remaining", step.EstimatedEnergy, budget))
			res.StepResults = append(res.StepResults, sr)
			continue
		}

		before := c.Health.Stability
		apply(&c.Health, step.Severity)
		c.Health.Clamp()

		sr.ResultingStability = c.Health.Stability
		sr.EnergyUsed = step.EstimatedEnergy
		sr.Success = sr.ResultingStability > before
		if !sr.Success {
			sr.Warnings = append(sr.Warnings, "algorithm produced no stability gain")
		}

		budget -= step.EstimatedEnergy
		res.EnergyConsumed += step.EstimatedEnergy
		res.ProcessingTime += step.EstimatedTime
		if sr.Success {
			res.StepsSucceeded++
		}
		res.StepResults = append(res.StepResults, sr)

		if sr.Success && sr.ResultingStability > e.cfg.GoodEnough {
			res.EarlyExit = true
			break
		}
	}

	e.finish(c, &res, plan)
	return res, nil
}

// finish closes out the result: final measurements, the stabilization
// timestamp, and the validation report.
func (e *Executor) finish(c *reality.Construct, res *Result, plan reality.Plan) {
	res.FinalStability = c.Health.Stability
	res.StabilityImprovement = res.FinalStability - res.OriginalStability
	res.CompletedAt = e.clock.Now()

	if res.StepsSucceeded > 0 {
		c.LastStabilization = res.CompletedAt
	}

	v := ValidationReport{Valid: res.FinalStability > res.OriginalStability}
	if plan.Empty() {
		v.Warnings = append(v.Warnings, "no remediation steps planned")
	}
	for _, sr := range res.StepResults {
		v.Errors = append(v.Errors, sr.Errors...)
	}
	if !v.Valid && len(v.Warnings) == 0 && len(v.Errors) == 0 {
		v.Warnings = append(v.Warnings, "stability did not improve; review step outcomes")
	}
	res.Validation = v
}
