package debughost

import (
	"fmt"
	"time"

	"apex-build/internal/jdwp"
	"apex-build/internal/metrics"
	"go.uber.org/zap"
)

const maxSnapshotFrames = 64

// frameSnapshot is everything the evaluation engine needs to act on one
// paused frame after the initial pause snapshot was taken. Per spec.md's
// lifetime discipline: once any JDWP invoke runs on this thread, the frame
// and slot ids below are no longer trustworthy and must not be touched
// again outside of a fresh snapshot.
type frameSnapshot struct {
	thread      jdwp.ThreadID
	frame       jdwp.FrameID
	thisVal     jdwp.Value
	wrapperObj  jdwp.ObjectID
	slotByName  map[string]int32
	changesSeen int32 // length of the wrapper's "||changes" array already written back
}

// PausedData holds everything accumulated at the moment the target
// suspended. It lives exactly as long as one pause -- created when a
// breakpoint/exception/step event is handled, discarded on Resume/Step.
type PausedData struct {
	thread    jdwp.ThreadID
	frames    []StackFrame
	snapshots map[string]*frameSnapshot
	exception *ValueNode
	startedAt time.Time
}

func (p *PausedData) snapshotFor(frameID string) (*frameSnapshot, bool) {
	s, ok := p.snapshots[frameID]
	return s, ok
}

// handleBreakpointEvent implements spec.md section 4.5: snapshot every
// visible frame, synthesize a scope wrapper per frame, publish
// EventHitBreakpoint, and report whether the target should actually remain
// suspended (false means the caller resumes immediately: breakpoints are
// being ignored, or the thread's frames could not be read). The exception
// pause mode is checked by the caller before this is reached.
func (h *Host) handleBreakpointEvent(ev jdwp.Event) bool {
	if ev.Kind == jdwp.EventBreakpoint && !h.willPauseOnBreakpoints {
		return false
	}

	frames, err := h.conn.Frames(ev.Thread, 0, maxSnapshotFrames)
	if err != nil {
		h.log.Warn("debughost: Frames failed while handling pause", zap.Error(err))
		return false
	}

	paused := &PausedData{thread: ev.Thread, snapshots: make(map[string]*frameSnapshot), startedAt: time.Now()}

	for i, fi := range frames {
		sf, snap, err := h.snapshotFrame(ev.Thread, fi)
		if err != nil {
			h.log.Debug("debughost: skipping frame in snapshot", zap.Int("index", i), zap.Error(err))
			continue
		}
		paused.frames = append(paused.frames, sf)
		paused.snapshots[sf.ID] = snap
	}

	if ev.Kind == jdwp.EventException && ev.Exception != 0 {
		marshaled := h.marshalValue(ev.Thread, jdwp.Value{Tag: jdwp.TagObject, Object: ev.Exception})
		paused.exception = &marshaled
	}

	h.mu.Lock()
	h.paused = paused
	h.mu.Unlock()

	// Whatever fired this pause (a persistent breakpoint, an exception, or
	// one of a step's one-shot locations), any step still armed from a
	// previous Step call is superseded now: disable its remaining
	// one-shot locations so they don't linger as surprise breakpoints.
	h.mu.Lock()
	stale := h.pendingStepLocs
	h.pendingStepLocs = nil
	h.mu.Unlock()
	for _, bl := range stale {
		h.disableLocation(bl)
	}

	h.Events.Publish(HostEvent{Kind: EventHitBreakpoint, StackFrames: paused.frames, Error: paused.exception})
	metrics.Get().RecordBreakpointHit(h.pauseHitKind(ev))
	return true
}

func (h *Host) pauseHitKind(ev jdwp.Event) string {
	switch {
	case ev.Kind == jdwp.EventException:
		return "exception"
	case ev.RequestID == h.debuggerStatementReq && h.debuggerStatementReq != 0:
		return "debugger-statement"
	default:
		return "breakpoint"
	}
}

// snapshotFrame builds a marshaled StackFrame and its matching
// frameSnapshot for one raw JDI frame: visible variables, per-slot values
// (with INVALID_SLOT degrading to one read at a time), "this", and a
// synthesized accessor scope wrapper.
func (h *Host) snapshotFrame(thread jdwp.ThreadID, fi jdwp.FrameInfo) (StackFrame, *frameSnapshot, error) {
	_, classRT, err := h.frameDeclaringType(fi.Location)
	if err != nil {
		return StackFrame{}, nil, err
	}

	vars, err := h.conn.VisibleVariablesAt(classRT, fi.Location.Method, fi.Location.CodeIndex)
	if err != nil {
		return StackFrame{}, nil, err
	}

	values, err := h.readFrameSlots(thread, fi.ID, vars)
	if err != nil {
		return StackFrame{}, nil, err
	}

	thisObj, err := h.conn.ThisObject(thread, fi.ID)
	if err != nil {
		thisObj = 0
	}
	thisVal := jdwp.Value{Tag: jdwp.TagObject, Object: thisObj}

	locals := make(map[string]jdwp.Value, len(vars))
	slotByName := make(map[string]int32, len(vars))
	for i, v := range vars {
		locals[v.Name] = values[i]
		slotByName[v.Name] = v.Slot
	}

	wrapper, err := h.buildScopeWrapper(thread, 0, thisObj, locals)
	if err != nil {
		h.log.Debug("debughost: scope wrapper synthesis failed, locals will be read-only", zap.Error(err))
		wrapper = 0
	}

	frameID := fmt.Sprintf("frame$%d$%d", thread, fi.ID)
	bl := h.breakableLocationAt(fi.Location)

	sf := StackFrame{
		ID:                frameID,
		ThisValue:         h.marshalValue(thread, thisVal),
		ScopeChain:        []Scope{{Type: ScopeLocal, Object: h.objects.register(jdwp.Value{Tag: jdwp.TagObject, Object: wrapper}, "")}},
		BreakableLocation: bl,
		host:              h,
		frame:             fi.ID,
	}
	if bl != nil {
		sf.FunctionName = bl.Script.URL
	}

	snap := &frameSnapshot{
		thread:     thread,
		frame:      fi.ID,
		thisVal:    thisVal,
		wrapperObj: wrapper,
		slotByName: slotByName,
	}
	return sf, snap, nil
}

// readFrameSlots reads every visible variable's value in one batched call,
// degrading to one-at-a-time reads on INVALID_SLOT per spec.md section
// 4.5 -- a slot can go temporarily invalid at a method's very first
// instruction, before its declared range technically starts.
func (h *Host) readFrameSlots(thread jdwp.ThreadID, frame jdwp.FrameID, vars []jdwp.VariableEntry) ([]jdwp.Value, error) {
	if len(vars) == 0 {
		return nil, nil
	}
	slots := make([]jdwp.Slot, len(vars))
	for i, v := range vars {
		slots[i] = jdwp.Slot{Index: v.Slot, Tag: jdwp.TagFromSignature(v.Signature)}
	}

	values, err := h.conn.GetFrameValues(thread, frame, slots)
	if err == nil {
		return values, nil
	}
	if !jdwp.IsInvalidSlot(err) {
		return nil, err
	}

	out := make([]jdwp.Value, len(vars))
	for i, s := range slots {
		v, err := h.conn.GetFrameValues(thread, frame, []jdwp.Slot{s})
		if err != nil {
			out[i] = jdwp.Value{Tag: s.Tag}
			continue
		}
		out[i] = v[0]
	}
	return out, nil
}

func (h *Host) frameDeclaringType(loc jdwp.Location) (jdwp.TypeTag, jdwp.ReferenceTypeID, error) {
	return loc.TypeTag, loc.Class, nil
}

func (h *Host) breakableLocationAt(loc jdwp.Location) *BreakableLocation {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, bl := range h.breakableLocsByID {
		if bl.VMLocation.Class == loc.Class && bl.VMLocation.Method == loc.Method && bl.VMLocation.CodeIndex == loc.CodeIndex {
			return bl
		}
	}
	return nil
}

// Resume continues the suspended target, clearing pause-scoped state.
func (h *Host) Resume() error {
	var err error
	h.post(func() {
		err = h.resumeLocked()
	})
	return err
}

func (h *Host) resumeLocked() error {
	return h.resumeKeeping(nil)
}

// resumeKeeping clears pause state and resumes the target. keep names the
// one-shot locations a just-issued Step armed; every other previously
// pending step location is disabled, since abandoning a step (by resuming
// plainly, or by issuing a new one) must not leave stray one-shot
// breakpoints installed on the target.
func (h *Host) resumeKeeping(keep []*BreakableLocation) error {
	h.mu.Lock()
	wasPaused := h.paused != nil
	var startedAt time.Time
	if h.paused != nil {
		startedAt = h.paused.startedAt
	}
	h.paused = nil
	stale := h.pendingStepLocs
	h.pendingStepLocs = keep
	h.mu.Unlock()

	if wasPaused {
		metrics.Get().RecordPause(time.Since(startedAt))
	}
	h.clearObjectCache()
	for _, bl := range stale {
		if !containsLocation(keep, bl) {
			h.disableLocation(bl)
		}
	}
	if !wasPaused {
		return ErrIllegalState
	}
	if err := h.conn.Resume(); err != nil {
		return err
	}
	h.Events.Publish(HostEvent{Kind: EventResumed})
	return nil
}

func containsLocation(locs []*BreakableLocation, target *BreakableLocation) bool {
	for _, bl := range locs {
		if bl == target {
			return true
		}
	}
	return false
}

// StepKind selects the granularity of a Step call.
type StepKind int

const (
	StepInto StepKind = iota
	StepOver
	StepOut
)

// Step implements spec.md section 4.5: script lines and JVM lines don't
// correspond, so the engine fakes a step with one-shot breakpoints rather
// than a JDWP StepRequest modifier.
//   - StepInto enables every breakable location across every script once.
//   - StepOver enables every breakable location of the current frame's
//     method past the current line, plus the same set in the parent frame.
//   - StepOut enables only the parent frame's set.
//
// Whichever one-shot location fires first disarms the rest (see
// handleBreakpointEvent); resuming or stepping again without a hit disarms
// them too (see resumeKeeping).
func (h *Host) Step(kind StepKind) error {
	var err error
	h.post(func() {
		err = h.stepLocked(kind)
	})
	return err
}

func (h *Host) stepLocked(kind StepKind) error {
	h.mu.Lock()
	paused := h.paused
	h.mu.Unlock()
	if paused == nil {
		return ErrIllegalState
	}

	var targets []*BreakableLocation
	switch kind {
	case StepInto:
		h.mu.Lock()
		targets = make([]*BreakableLocation, 0, len(h.breakableLocsByID))
		for _, bl := range h.breakableLocsByID {
			targets = append(targets, bl)
		}
		h.mu.Unlock()
	case StepOver:
		targets = append(h.stepLocationsPastFrame(paused, 0), h.stepLocationsPastFrame(paused, 1)...)
	case StepOut:
		targets = h.stepLocationsPastFrame(paused, 1)
	}

	for _, bl := range targets {
		h.enableOnceLocked(bl)
	}
	return h.resumeKeeping(targets)
}

// stepLocationsPastFrame returns every breakable location sharing the
// declaring method of paused.frames[frameIndex]'s current location whose
// script line is strictly greater than that frame's current line. Used by
// StepOver (frame 0, then frame 1) and StepOut (frame 1 only).
func (h *Host) stepLocationsPastFrame(paused *PausedData, frameIndex int) []*BreakableLocation {
	if frameIndex >= len(paused.frames) {
		return nil
	}
	cur := paused.frames[frameIndex].BreakableLocation
	if cur == nil {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*BreakableLocation
	for _, bl := range h.breakableLocsByID {
		if bl.VMLocation.Class == cur.VMLocation.Class &&
			bl.VMLocation.Method == cur.VMLocation.Method &&
			bl.ScriptLocation.Line > cur.ScriptLocation.Line {
			out = append(out, bl)
		}
	}
	return out
}

// SetPauseOnBreakpoints toggles whether hitting a user breakpoint actually
// suspends the target (CDP's setBreakpointsActive / ignoreBreakpoints).
func (h *Host) SetPauseOnBreakpoints(enabled bool) {
	h.post(func() {
		h.willPauseOnBreakpoints = enabled
	})
}

// SetPauseOnExceptions selects which thrown exceptions pause execution.
func (h *Host) SetPauseOnExceptions(mode PauseOnExceptions) {
	h.post(func() {
		h.exceptionPauseMode = mode
	})
}

// PauseAtNextStatement arms a one-shot break at the next bytecode the
// target threads execute, by enabling every currently-registered breakable
// location once. Unlike SetBreakpoint this does not persist past the
// first hit.
func (h *Host) PauseAtNextStatement() {
	h.post(func() {
		h.mu.Lock()
		locs := make([]*BreakableLocation, 0, len(h.breakableLocsByID))
		for _, bl := range h.breakableLocsByID {
			locs = append(locs, bl)
		}
		h.mu.Unlock()
		var armed []*BreakableLocation
		for _, bl := range locs {
			if bl.Enabled() {
				continue // an already-set breakpoint stays as it is
			}
			h.enableOnceLocked(bl)
			armed = append(armed, bl)
		}
		// Recorded like a step's one-shot locations, so the next pause
		// disarms them (see handleBreakpointEvent).
		h.mu.Lock()
		h.pendingStepLocs = append(h.pendingStepLocs, armed...)
		h.mu.Unlock()
	})
}

// Reset implements spec.md section 4.5's reset operation: forgets every
// script, breakable location and pending source, as if freshly attached,
// without tearing down the JDWP connection itself.
func (h *Host) Reset() {
	h.post(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.scriptsByURL = make(map[string]*Script)
		h.scriptsByHash = make(map[string]*Script)
		h.scriptsByID = make(map[string]*Script)
		h.breakableLocsByURL = make(map[string][]*BreakableLocation)
		h.breakableLocsByID = make(map[string]*BreakableLocation)
		h.enabledBreakpoints = make(map[string]*BreakableLocation)
		h.pendingSources = make(map[jdwp.ReferenceTypeID]*pendingSource)
		h.nextScriptID = 0
		h.isInitialized = false
		h.classPrepareCount = 0
		h.paused = nil
	})
}
