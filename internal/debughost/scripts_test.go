package debughost

import (
	"testing"

	"apex-build/internal/jdwp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJNISignatureToClassName(t *testing.T) {
	assert.Equal(t, "jdk.nashorn.internal.runtime.ScriptRuntime", jniSignatureToClassName("Ljdk/nashorn/internal/runtime/ScriptRuntime;"))
}

func TestScriptPathPrefersSourceName(t *testing.T) {
	h := &Host{}
	assert.Equal(t, "main.js", h.scriptPath(scriptClassPrefix+"Foo.eval", "main.js"))
}

func TestScriptPathFallsBackToEvalSynthesis(t *testing.T) {
	h := &Host{}
	got := h.scriptPath(scriptClassPrefix+"Foo.eval", "<eval>")
	assert.Equal(t, "eval:///Foo", got)
}

func newTestHostForRegistration() *Host {
	return &Host{
		Events:             NewEventBus(),
		scriptsByURL:       make(map[string]*Script),
		scriptsByHash:      make(map[string]*Script),
		scriptsByID:        make(map[string]*Script),
		breakableLocsByURL: make(map[string][]*BreakableLocation),
		breakableLocsByID:  make(map[string]*BreakableLocation),
	}
}

func TestFinishRegistrationDedupesIdenticalSource(t *testing.T) {
	h := newTestHostForRegistration()

	lines := map[jdwp.MethodID][]jdwp.LineEntry{1: {{CodeIndex: 0, Line: 1}}}
	h.finishRegistration("file:///a.js", "var x = 1;", 10, lines, jdwp.Location{})
	h.finishRegistration("file:///b.js", "var x = 1;", 20, lines, jdwp.Location{})

	require.Len(t, h.scriptsByID, 1, "identical recovered source must dedupe to one Script per spec.md section 8")
	assert.Len(t, h.scriptsByURL, 2, "each distinct URL still gets its own entry even when aliased to one Script")
}

func TestFinishRegistrationDistinctSourceCreatesNewScript(t *testing.T) {
	h := newTestHostForRegistration()

	lines := map[jdwp.MethodID][]jdwp.LineEntry{1: {{CodeIndex: 0, Line: 1}}}
	h.finishRegistration("file:///a.js", "var x = 1;", 10, lines, jdwp.Location{})
	h.finishRegistration("file:///a.js", "var y = 2;", 20, lines, jdwp.Location{})

	assert.Len(t, h.scriptsByID, 2)
}

func TestFinishRegistrationPublishesOnlyOnNewURL(t *testing.T) {
	h := newTestHostForRegistration()
	sub := h.Events.Subscribe()

	lines := map[jdwp.MethodID][]jdwp.LineEntry{1: {{CodeIndex: 0, Line: 1}}}
	h.finishRegistration("file:///a.js", "var x = 1;", 10, lines, jdwp.Location{})

	select {
	case ev := <-sub:
		assert.Equal(t, EventScriptAdded, ev.Kind)
	default:
		t.Fatal("expected EventScriptAdded to be published for a new URL")
	}

	h.finishRegistration("file:///a.js", "var x = 1;", 10, lines, jdwp.Location{})
	select {
	case ev := <-sub:
		t.Fatalf("unexpected second publish for an already-seen URL: %+v", ev)
	default:
	}
}

func TestFinishRegistrationBuildsBreakableLocations(t *testing.T) {
	h := newTestHostForRegistration()

	lines := map[jdwp.MethodID][]jdwp.LineEntry{
		1: {{CodeIndex: 0, Line: 1}, {CodeIndex: 4, Line: 2}},
	}
	h.finishRegistration("file:///a.js", "var x = 1;\nvar y = 2;", 10, lines, jdwp.Location{})

	assert.Len(t, h.breakableLocsByURL["file:///a.js"], 2)
	assert.Len(t, h.breakableLocsByID, 2)
}
