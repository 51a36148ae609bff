package debughost

import (
	"time"

	"apex-build/internal/jdwp"
	"apex-build/internal/metrics"
	"go.uber.org/zap"
)

// mailboxItem is the event pump's single typed union of work items: a FIFO
// consumed by one worker goroutine standing in for an actor mailbox. The
// FIFO is bounded (the 256-slot channel NewHost makes); senders block
// while it is full.
type mailboxItem interface{ isMailboxItem() }

type eventSetItem struct{ es jdwp.EventSet }
type considerReferenceTypeItem struct {
	rt           jdwp.ReferenceTypeID
	attemptsLeft int
}
type postponeInitializeItem struct{}
type callItem struct {
	fn   func()
	done chan struct{}
}

func (eventSetItem) isMailboxItem()             {}
func (considerReferenceTypeItem) isMailboxItem() {}
func (postponeInitializeItem) isMailboxItem()   {}
func (callItem) isMailboxItem()                 {}

// post runs fn on the pump's serial executor and blocks until it completes,
// giving every external call (resume, step, setBreakpoint,
// evaluateOnStackFrame, getObjectProperties, ...) the same to-completion
// semantics as the VM's own event handling.
func (h *Host) post(fn func()) {
	done := make(chan struct{})
	item := callItem{fn: fn, done: done}
	select {
	case h.mailbox <- item:
	case <-h.stopped:
		return
	}
	select {
	case <-done:
	case <-h.stopped:
	}
}

// Run starts the event pump: a goroutine draining h.mailbox, plus a
// goroutine forwarding the JDWP connection's event sets into the mailbox,
// plus the initial class-prepare watch and quiescence timer.
func (h *Host) Run() {
	go h.pumpLoop()
	go h.forwardVMEvents()

	h.post(func() {
		h.installInitialClassPrepareWatch()
		time.AfterFunc(QuiescenceWindowMS*time.Millisecond, func() {
			select {
			case h.mailbox <- postponeInitializeItem{}:
			case <-h.stopped:
			}
		})
	})
}

func (h *Host) forwardVMEvents() {
	for es := range h.conn.Events {
		select {
		case h.mailbox <- eventSetItem{es: es}:
		case <-h.stopped:
			return
		}
	}
	// Connection's reader loop exited: treat as VM disconnect.
	select {
	case h.mailbox <- eventSetItem{es: jdwp.EventSet{Events: []jdwp.Event{{Kind: jdwp.EventVMDisconnected}}}}:
	case <-h.stopped:
	}
}

func (h *Host) pumpLoop() {
	for item := range h.mailbox {
		switch v := item.(type) {
		case eventSetItem:
			h.handleEventSet(v.es)
		case considerReferenceTypeItem:
			h.considerReferenceType(v.rt, v.attemptsLeft)
		case postponeInitializeItem:
			h.tickInitialization()
		case quiescenceCheckItem:
			h.handleQuiescenceCheck(v.sinceCount)
		case callItem:
			v.fn()
			close(v.done)
		}
		if h.Events.IsComplete() {
			close(h.stopped)
			return
		}
	}
}

func (h *Host) installInitialClassPrepareWatch() {
	_, err := h.conn.SetEventRequest(jdwp.EventClassPrepare, jdwp.SuspendNone, nil)
	if err != nil {
		h.log.Warn("debughost: failed to install class-prepare watch", zap.Error(err))
	}
}

// tickInitialization implements the quiescence check: if no class-prepare
// events arrived since the last tick, run full initialization; otherwise
// reschedule.
func (h *Host) tickInitialization() {
	if h.isInitialized {
		return
	}
	seen := h.classPrepareCount
	time.AfterFunc(QuiescenceWindowMS*time.Millisecond, func() {
		select {
		case h.mailbox <- quiescenceCheckItem{sinceCount: seen}:
		case <-h.stopped:
		}
	})
}

type quiescenceCheckItem struct{ sinceCount int }

func (quiescenceCheckItem) isMailboxItem() {}

func (h *Host) handleQuiescenceCheck(sinceCount int) {
	metrics.Get().QuiescenceChecks.Inc()
	if h.isInitialized {
		return
	}
	if h.classPrepareCount == sinceCount {
		h.runFullInitialization()
		return
	}
	h.tickInitialization()
}

func (h *Host) runFullInitialization() {
	classes, err := h.conn.AllClasses()
	if err != nil {
		h.log.Error("debughost: AllClasses failed during initialization", zap.Error(err))
		return
	}
	for _, c := range classes {
		h.registerFromReferenceType(c.ID, InitialScriptResolveAttempts)
	}
	h.installDebuggerStatementBreakpoint()
	h.isInitialized = true
	h.Events.Publish(HostEvent{Kind: EventInitialInitializationComplete})
}

// installDebuggerStatementBreakpoint realizes the JavaScript `debugger`
// statement by setting a fixed breakpoint at ScriptRuntime.DEBUGGER.
func (h *Host) installDebuggerStatementBreakpoint() {
	if h.infra.scriptRuntime == 0 {
		return
	}
	methods, err := h.conn.Methods(h.infra.scriptRuntime)
	if err != nil {
		return
	}
	for _, m := range methods {
		if m.Name == "DEBUGGER" {
			loc := jdwp.Location{TypeTag: jdwp.TypeTagClass, Class: h.infra.scriptRuntime, Method: m.ID, CodeIndex: 0}
			reqID, err := h.conn.SetEventRequest(jdwp.EventBreakpoint, jdwp.SuspendEventThrad, []jdwp.Modifier{
				{Kind: jdwp.ModLocationOnly, Location: loc},
			})
			if err == nil {
				h.debuggerStatementReq = reqID
			}
			return
		}
	}
}

// handleEventSet processes one delivered composite event set. Per spec.md
// section 4.4: VMDeath/VMDisconnect complete the stream; if already paused,
// every other event set is ignored and immediately resumed (one session at
// a time); otherwise each event is dispatched by kind.
func (h *Host) handleEventSet(es jdwp.EventSet) {
	metrics.Get().EventSetsHandled.WithLabelValues(dominantEventKind(es)).Inc()

	for _, ev := range es.Events {
		if ev.Kind == jdwp.EventVMDeath || ev.Kind == jdwp.EventVMDisconnected {
			h.Events.Complete()
			return
		}
	}

	if h.paused != nil {
		h.resumeEventSet()
		return
	}

	h.retryPendingSources()

	paused := false
	for _, ev := range es.Events {
		switch ev.Kind {
		case jdwp.EventBreakpoint:
			if h.handleBreakpointEvent(ev) {
				paused = true
			}
		case jdwp.EventClassPrepare:
			h.classPrepareCount++
			if h.isInitialized {
				h.registerFromReferenceType(ev.RefTypeID, InitialScriptResolveAttempts)
			}
		case jdwp.EventException:
			if h.shouldPauseOnException(ev) && h.handleBreakpointEvent(ev) {
				paused = true
			}
		case jdwp.EventVMStart:
			// ignored silently
		}
	}

	if !paused {
		h.resumeEventSet()
	}
}

func (h *Host) resumeEventSet() {
	if err := h.conn.Resume(); err != nil {
		h.log.Warn("debughost: resume failed", zap.Error(err))
	}
}

func (h *Host) shouldPauseOnException(ev jdwp.Event) bool {
	switch h.exceptionPauseMode {
	case PauseOnExceptionsNone:
		return false
	case PauseOnExceptionsAll:
		return true
	case PauseOnExceptionsCaught:
		return ev.HasCatchLoc
	case PauseOnExceptionsUncaught:
		return !ev.HasCatchLoc
	}
	return false
}

func (h *Host) considerReferenceType(rt jdwp.ReferenceTypeID, attemptsLeft int) {
	h.registerFromReferenceType(rt, attemptsLeft)
}

// dominantEventKind labels a composite event set by its first event's kind,
// for per-kind throughput metrics.
func dominantEventKind(es jdwp.EventSet) string {
	if len(es.Events) == 0 {
		return "empty"
	}
	switch es.Events[0].Kind {
	case jdwp.EventBreakpoint:
		return "breakpoint"
	case jdwp.EventException:
		return "exception"
	case jdwp.EventClassPrepare:
		return "class-prepare"
	case jdwp.EventVMStart:
		return "vm-start"
	case jdwp.EventVMDeath:
		return "vm-death"
	case jdwp.EventVMDisconnected:
		return "vm-disconnected"
	default:
		return "other"
	}
}
