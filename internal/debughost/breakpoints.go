package debughost

import (
	"fmt"

	"apex-build/internal/jdwp"
	"go.uber.org/zap"
)

// SetBreakpoint finds the breakable location at scriptURL:(line,column) and
// enables its underlying VM breakpoint with event-thread suspend policy.
// scriptURL is normalized through NewScriptURL (spec.md section 6) before
// lookup, the same normalization registration applies, so callers may pass
// any of the forms section 6 accepts.
func (h *Host) SetBreakpoint(scriptURL string, loc ScriptLocation) (*Breakpoint, error) {
	normalized := normalizeScriptURL(scriptURL)
	var bp *Breakpoint
	h.post(func() {
		bp = h.setBreakpointLocked(normalized, loc)
	})
	return bp, nil
}

func (h *Host) setBreakpointLocked(scriptURL string, loc ScriptLocation) *Breakpoint {
	h.mu.Lock()
	locs := h.breakableLocsByURL[scriptURL]
	var target *BreakableLocation
	// Exact (line, column) match only -- column handling here is a TODO
	// carried over from the original implementation (spec.md section 9c).
	for _, bl := range locs {
		if bl.ScriptLocation.Line == loc.Line && bl.ScriptLocation.Column == loc.Column {
			target = bl
			break
		}
	}
	h.mu.Unlock()

	if target == nil {
		return nil
	}

	h.enableLocation(target, false)

	h.mu.Lock()
	h.enabledBreakpoints[target.ID] = target
	h.mu.Unlock()

	return &Breakpoint{ID: target.ID, ScriptID: target.Script.ID, Location: target.ScriptLocation}
}

func (h *Host) enableLocation(bl *BreakableLocation, once bool) {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	if bl.enabled {
		return
	}
	reqID, err := h.conn.SetEventRequest(jdwp.EventBreakpoint, jdwp.SuspendEventThrad, []jdwp.Modifier{
		{Kind: jdwp.ModLocationOnly, Location: bl.VMLocation},
	})
	if err != nil {
		h.log.Warn("debughost: setting breakpoint failed", zap.Error(err))
		return
	}
	bl.enabled = true
	bl.enabledOnce = once
	bl.requestID = reqID
}

func (h *Host) disableLocation(bl *BreakableLocation) {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	if !bl.enabled {
		return
	}
	_ = h.conn.ClearEventRequest(jdwp.EventBreakpoint, bl.requestID)
	bl.enabled = false
	bl.enabledOnce = false
}

// RemoveBreakpointByID disables and forgets a previously set breakpoint.
func (h *Host) RemoveBreakpointByID(id string) error {
	h.post(func() {
		h.mu.Lock()
		bl, ok := h.enabledBreakpoints[id]
		if ok {
			delete(h.enabledBreakpoints, id)
		}
		h.mu.Unlock()
		if ok {
			h.disableLocation(bl)
		}
	})
	return nil
}

// GetBreakpointLocations returns every breakable location of scriptID whose
// (line, column) lies in [from, to): line-end inclusive, column-on-end-line
// exclusive, per spec.md section 4.3.
func (h *Host) GetBreakpointLocations(scriptID string, from ScriptLocation, to *ScriptLocation) ([]ScriptLocation, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	script, ok := h.scriptsByID[scriptID]
	if !ok {
		return nil, fmt.Errorf("debughost: unknown script id %q", scriptID)
	}

	script.mu.Lock()
	defer script.mu.Unlock()

	var out []ScriptLocation
	for _, bl := range script.breakableLoc {
		if inRange(bl.ScriptLocation, from, to) {
			out = append(out, bl.ScriptLocation)
		}
	}
	return out, nil
}

func inRange(loc, from ScriptLocation, to *ScriptLocation) bool {
	if before(loc, from) {
		return false
	}
	if to == nil {
		return true
	}
	if loc.Line < to.Line {
		return true
	}
	if loc.Line == to.Line {
		return loc.Column < to.Column
	}
	return false
}

func before(a, b ScriptLocation) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Column < b.Column
}

// enableOnceLocked installs a one-shot breakpoint, used by stepping and by
// PauseAtNextStatement. Both record the location in pendingStepLocs, which
// handleBreakpointEvent disarms on the next pause.
func (h *Host) enableOnceLocked(bl *BreakableLocation) {
	h.enableLocation(bl, true)
}
