package debughost

import "fmt"

// topFrameAlias is the well-known stack frame id meaning "the innermost
// paused frame" -- the fixed contract's shorthand for callers that don't
// want to track frame ids explicitly (spec.md section 6).
const topFrameAlias = "$top"

// resolveFrameID maps the "$top" alias to the innermost frame id of the
// current pause, passing any other value through unchanged.
func (h *Host) resolveFrameID(frameID string) (string, error) {
	if frameID != topFrameAlias {
		return frameID, nil
	}
	h.mu.Lock()
	paused := h.paused
	h.mu.Unlock()
	if paused == nil || len(paused.frames) == 0 {
		return "", ErrIllegalState
	}
	return paused.frames[0].ID, nil
}

// EvaluateOnStackFrame is the public entry point for spec.md section 4.7:
// evaluate expression against frameID's scope (or "$top"), optionally
// exposing extra named objects from the object registry to the expression.
func (h *Host) EvaluateOnStackFrame(frameID, expression string, named map[string]ObjectID) (ValueNode, error) {
	resolved, err := h.resolveFrameID(frameID)
	if err != nil {
		return ValueNode{}, err
	}
	var (
		result ValueNode
		evErr  error
	)
	h.post(func() {
		result, evErr = h.evaluateOnStackFrame(resolved, expression, named)
	})
	return result, evErr
}

// GetBreakpointLocationsInRange is the exported, range-validating wrapper
// around GetBreakpointLocations: to is optional (nil means "to end of
// script").
func (h *Host) GetBreakpointLocationsInRange(scriptID string, from ScriptLocation, to *ScriptLocation) ([]ScriptLocation, error) {
	if to != nil && (to.Line < from.Line || (to.Line == from.Line && to.Column < from.Column)) {
		return nil, fmt.Errorf("debughost: invalid range %v..%v", from, to)
	}
	return h.GetBreakpointLocations(scriptID, from, to)
}

// PauseOnExceptionsMode reports the exception pause mode currently active.
func (h *Host) PauseOnExceptionsMode() PauseOnExceptions {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exceptionPauseMode
}

// CurrentStackFrames returns the marshaled frames of the active pause, or
// nil if the target is running.
func (h *Host) CurrentStackFrames() []StackFrame {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.paused == nil {
		return nil
	}
	return h.paused.frames
}

// CurrentException returns the exception that caused the active pause, if
// the pause was an exception break.
func (h *Host) CurrentException() *ValueNode {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.paused == nil {
		return nil
	}
	return h.paused.exception
}
