package harness

// TraceEvent records one executed flow step (or the closing drift
// sweep) for reporting and golden comparison.
type TraceEvent struct {
	Seq  int    `json:"seq"`
	Kind string `json:"kind"` // stabilize, synchronize, coordinate, drift_sweep

	Construct string `json:"construct,omitempty"`
	Source    string `json:"source,omitempty"`
	Target    string `json:"target,omitempty"`

	Success bool `json:"success"`

	// Stabilize detail.
	Valid     bool    `json:"valid,omitempty"`
	Stability float64 `json:"stability,omitempty"`
	Steps     int     `json:"steps,omitempty"`

	// Synchronize / coordinate detail.
	Drift        float64 `json:"drift,omitempty"`
	Synchronized int     `json:"synchronized,omitempty"`
	Operations   int     `json:"operations,omitempty"`

	// Drift sweep detail.
	Events int `json:"events,omitempty"`

	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every expect clause held and
	// every assertion passed.
	Pass bool `json:"pass"`

	// Trace contains one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expect and assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Snapshot is the deterministic report built after the flow, used
	// for golden comparison and CLI output.
	Snapshot *ReportSnapshot `json:"snapshot,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a trace event, assigning its sequence number.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
