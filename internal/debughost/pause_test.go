package debughost

import (
	"testing"

	"apex-build/internal/jdwp"

	"github.com/stretchr/testify/assert"
)

func TestPauseHitKindException(t *testing.T) {
	h := &Host{}
	kind := h.pauseHitKind(jdwp.Event{Kind: jdwp.EventException})
	assert.Equal(t, "exception", kind)
}

func TestPauseHitKindDebuggerStatement(t *testing.T) {
	h := &Host{debuggerStatementReq: 7}
	kind := h.pauseHitKind(jdwp.Event{Kind: jdwp.EventBreakpoint, RequestID: 7})
	assert.Equal(t, "debugger-statement", kind)
}

func TestPauseHitKindOrdinaryBreakpoint(t *testing.T) {
	h := &Host{debuggerStatementReq: 7}
	kind := h.pauseHitKind(jdwp.Event{Kind: jdwp.EventBreakpoint, RequestID: 3})
	assert.Equal(t, "breakpoint", kind)
}

func TestBreakableLocationAtMatchesByVMLocation(t *testing.T) {
	loc := jdwp.Location{Class: 1, Method: 2, CodeIndex: 3}
	bl := &BreakableLocation{ID: "bl$1", VMLocation: loc}
	h := &Host{breakableLocsByID: map[string]*BreakableLocation{"bl$1": bl}}

	got := h.breakableLocationAt(loc)
	assert.Same(t, bl, got)

	missing := h.breakableLocationAt(jdwp.Location{Class: 99})
	assert.Nil(t, missing)
}

func TestResumeWhenNotPausedReturnsIllegalState(t *testing.T) {
	h := &Host{mailbox: make(chan mailboxItem, 1), stopped: make(chan struct{}), Events: NewEventBus()}
	go h.pumpLoop()
	defer close(h.mailbox)

	err := h.Resume()
	assert.ErrorIs(t, err, ErrIllegalState)
}
