package sink

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starwell/coherence/internal/reality"
)

type recordingSink struct {
	events []Event
}

func (r *recordingSink) Publish(_ context.Context, ev Event) {
	r.events = append(r.events, ev)
}

func TestSlogSinkFormatsEvents(t *testing.T) {
	var buf bytes.Buffer
	s := NewSlog(slog.New(slog.NewTextHandler(&buf, nil)))

	s.Publish(context.Background(), StabilityAlert{
		ConstructID: "alpha",
		Risk:        reality.RiskHigh,
		Overall:     0.62,
		Message:     "instability rising",
	})

	out := buf.String()
	assert.Contains(t, out, "stability alert")
	assert.Contains(t, out, "construct=alpha")
	assert.Contains(t, out, "risk=high")

	buf.Reset()
	s.Publish(context.Background(), SyncIssue{
		ConstructA: "alpha",
		ConstructB: "beta",
		Kind:       IssueDrift,
		Magnitude:  0.18,
	})

	out = buf.String()
	assert.Contains(t, out, "synchronization issue")
	assert.Contains(t, out, "construct_a=alpha")
	assert.Contains(t, out, "kind=drift")
}

func TestSlogSinkDefaultsToDefaultLogger(t *testing.T) {
	s := NewSlog(nil)
	require.NotNil(t, s.log)
}

func TestFanoutPublishesToAllSinks(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	f := Fanout{a, b, Nop{}}

	f.Publish(context.Background(), SyncIssue{Kind: IssueDesynchronized})

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.Equal(t, "sync_issue", a.events[0].EventKind())
}

func TestPrometheusSinkCountsEvents(t *testing.T) {
	p := NewPrometheus()

	before := testutil.ToFloat64(stabilityAlerts.WithLabelValues("prom-alpha", "critical"))
	p.Publish(context.Background(), StabilityAlert{
		ConstructID: "prom-alpha",
		Risk:        reality.RiskCritical,
		Overall:     0.9,
	})
	assert.Equal(t, before+1, testutil.ToFloat64(stabilityAlerts.WithLabelValues("prom-alpha", "critical")))
	assert.Equal(t, 0.9, testutil.ToFloat64(stabilityMeasure.WithLabelValues("prom-alpha")))

	issuesBefore := testutil.ToFloat64(syncIssues.WithLabelValues(IssueDrift))
	p.Publish(context.Background(), SyncIssue{
		ConstructA: "prom-alpha",
		ConstructB: "prom-beta",
		Kind:       IssueDrift,
		Magnitude:  0.2,
	})
	assert.Equal(t, issuesBefore+1, testutil.ToFloat64(syncIssues.WithLabelValues(IssueDrift)))
}
