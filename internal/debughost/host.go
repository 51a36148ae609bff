package debughost

import (
	"sync"

	"apex-build/internal/hostlog"
	"apex-build/internal/jdwp"
	"go.uber.org/zap"
)

// Host is one attached debug session: the target VM, one serial event-pump
// worker, and every piece of state the pump owns. A Host's lifetime equals
// one debug session; there is no module-scope mutable state anywhere in
// this package.
type Host struct {
	conn *jdwp.Conn
	log  *zap.Logger

	Events *EventBus

	mu                     sync.Mutex
	scriptsByURL           map[string]*Script
	scriptsByHash          map[string]*Script
	scriptsByID            map[string]*Script
	breakableLocsByURL     map[string][]*BreakableLocation
	breakableLocsByID      map[string]*BreakableLocation
	enabledBreakpoints     map[string]*BreakableLocation // breakpoint id -> location
	pendingSources         map[jdwp.ReferenceTypeID]*pendingSource
	nextScriptID           int

	infra infrastructureClasses

	isInitialized         bool
	willPauseOnBreakpoints bool
	classPrepareCount      int
	exceptionPauseMode     PauseOnExceptions
	debuggerStatementReq   int32
	pendingStepLocs        []*BreakableLocation

	paused  *PausedData
	objects *objectRegistry

	mailbox chan mailboxItem
	stopped chan struct{}
}

// infrastructureClasses caches handles to the engine's runtime support
// classes, populated the first time each is seen during registration.
type infrastructureClasses struct {
	scriptRuntime jdwp.ReferenceTypeID
	context       jdwp.ReferenceTypeID
	boxedTypes    map[string]jdwp.ReferenceTypeID
}

// pendingSource tracks a script class still waiting for its reflective
// source fields to be populated by the engine.
type pendingSource struct {
	rt            jdwp.ReferenceTypeID
	attemptsLeft  int
}

// PauseOnExceptions selects which thrown exceptions pause execution.
type PauseOnExceptions int

const (
	PauseOnExceptionsNone PauseOnExceptions = iota
	PauseOnExceptionsCaught
	PauseOnExceptionsUncaught
	PauseOnExceptionsAll
)

// NewHost wraps an already-attached JDWP connection in a debug host. Use
// Attach for the common case of dialing a target and building a Host in
// one step.
func NewHost(conn *jdwp.Conn) *Host {
	h := &Host{
		conn:               conn,
		log:                hostlog.L(),
		Events:             NewEventBus(),
		scriptsByURL:       make(map[string]*Script),
		scriptsByHash:      make(map[string]*Script),
		scriptsByID:        make(map[string]*Script),
		breakableLocsByURL: make(map[string][]*BreakableLocation),
		breakableLocsByID:  make(map[string]*BreakableLocation),
		enabledBreakpoints: make(map[string]*BreakableLocation),
		pendingSources:     make(map[jdwp.ReferenceTypeID]*pendingSource),
		infra:              infrastructureClasses{boxedTypes: make(map[string]jdwp.ReferenceTypeID)},
		objects:            newObjectRegistry(),
		mailbox:            make(chan mailboxItem, 256),
		stopped:            make(chan struct{}),
	}
	return h
}

// Attach dials the JDWP target at host:port and starts the event pump.
// There are no retries: a refused connection is fatal (spec.md section
// 4.1), surfaced as a *jdwp.ConnectError.
func Attach(targetHost string, targetPort int) (*Host, error) {
	conn, err := jdwp.Connect(targetHost, targetPort)
	if err != nil {
		return nil, err
	}
	h := NewHost(conn)
	h.Run()
	return h, nil
}

// Scripts returns every currently-registered script.
func (h *Host) Scripts() []*Script {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Script, 0, len(h.scriptsByID))
	for _, s := range h.scriptsByID {
		out = append(out, s)
	}
	return out
}

// ScriptByID looks up a registered script by its stable id.
func (h *Host) ScriptByID(id string) (*Script, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.scriptsByID[id]
	return s, ok
}

// IsPaused reports whether the target thread is currently suspended by us.
func (h *Host) IsPaused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused != nil
}

// MailboxLen reports how many items are currently queued on the event pump,
// satisfying metrics.HostSampler.
func (h *Host) MailboxLen() int {
	return len(h.mailbox)
}

// ScriptCount reports the number of currently-registered, deduplicated
// scripts, satisfying metrics.HostSampler.
func (h *Host) ScriptCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.scriptsByID)
}

// BreakableLocationCount reports the total breakable locations across every
// registered script, satisfying metrics.HostSampler.
func (h *Host) BreakableLocationCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.breakableLocsByID)
}

// BreakpointCount reports the number of breakpoints currently installed on
// the target, satisfying metrics.HostSampler.
func (h *Host) BreakpointCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.enabledBreakpoints)
}
