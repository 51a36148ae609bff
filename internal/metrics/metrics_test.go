package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetIsSingleton(t *testing.T) {
	a := Get()
	b := Get()
	assert.Same(t, a, b)
}

func TestRecordPauseObservesAndClearsGauge(t *testing.T) {
	m := Get()
	m.RecordBreakpointHit("breakpoint")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CurrentlyPaused))

	m.RecordPause(250 * time.Millisecond)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.CurrentlyPaused))
}

func TestRecordBreakpointHitLabelsByKind(t *testing.T) {
	m := Get()
	before := testutil.ToFloat64(m.BreakpointHits.WithLabelValues("exception"))

	m.RecordBreakpointHit("exception")

	after := testutil.ToFloat64(m.BreakpointHits.WithLabelValues("exception"))
	assert.Equal(t, before+1, after)
}

func TestRecordEvaluationLabelsByOutcome(t *testing.T) {
	m := Get()
	before := testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("ok"))

	m.RecordEvaluation("ok", 10*time.Millisecond)

	after := testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("ok"))
	assert.Equal(t, before+1, after)
}

type fakeSampler struct {
	mailbox, scripts, locations, breakpoints int
}

func (f fakeSampler) MailboxLen() int            { return f.mailbox }
func (f fakeSampler) ScriptCount() int            { return f.scripts }
func (f fakeSampler) BreakableLocationCount() int { return f.locations }
func (f fakeSampler) BreakpointCount() int        { return f.breakpoints }

func TestCollectorSamplesGauges(t *testing.T) {
	sampler := fakeSampler{mailbox: 3, scripts: 7, locations: 42, breakpoints: 2}
	c := NewCollector(sampler, time.Millisecond)
	c.Start()
	defer c.Stop()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(Get().MailboxDepth) == 3 &&
			testutil.ToFloat64(Get().ScriptsRegistered) == 7 &&
			testutil.ToFloat64(Get().BreakableLocations) == 42 &&
			testutil.ToFloat64(Get().BreakpointsActive) == 2
	}, time.Second, time.Millisecond)
}

func TestHTTPStatusCode(t *testing.T) {
	assert.Equal(t, "200", HTTPStatusCode(200))
	assert.Equal(t, "404", HTTPStatusCode(404))
}
