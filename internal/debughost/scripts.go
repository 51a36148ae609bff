package debughost

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"apex-build/internal/jdwp"
	"go.uber.org/zap"
)

// registerFromReferenceType implements the registration algorithm of
// spec.md section 4.2 for one loaded class T. Must run on the pump's
// serial executor.
func (h *Host) registerFromReferenceType(rt jdwp.ReferenceTypeID, attemptsLeft int) {
	sig, err := h.conn.Signature(rt)
	if err != nil {
		return
	}
	className := jniSignatureToClassName(sig)

	if wantedInfrastructureClasses[className] {
		h.cacheInfrastructureClass(className, rt)
		return
	}

	if !strings.HasPrefix(className, scriptClassPrefix) {
		return
	}

	lines, err := h.conn.AllLineLocations(rt)
	if err != nil || len(lines) == 0 {
		return // absent line information: nothing to register yet
	}

	sourceName, firstLoc, ok := h.firstLineLocation(rt, lines)
	if !ok {
		return
	}

	source, err := h.recoverSource(rt)
	if err != nil {
		h.schedulePendingSource(rt, attemptsLeft)
		return
	}
	if strings.Contains(source, EvaluatedCodeMarker) {
		return // our own evaluated code reappearing on reconnect
	}

	scriptPath := h.scriptPath(className, sourceName)
	h.finishRegistration(scriptPath, source, rt, lines, firstLoc)
}

// firstLineLocation picks a representative source-name and (method,
// codeIndex) to derive the script path from, matching "take the first
// location" in spec.md step 2.
func (h *Host) firstLineLocation(rt jdwp.ReferenceTypeID, lines map[jdwp.MethodID][]jdwp.LineEntry) (string, jdwp.Location, bool) {
	sourceName, err := h.conn.SourceFile(rt)
	if err != nil {
		sourceName = "<eval>"
	}
	for method, entries := range lines {
		if len(entries) == 0 {
			continue
		}
		return sourceName, jdwp.Location{TypeTag: jdwp.TypeTagClass, Class: rt, Method: method, CodeIndex: entries[0].CodeIndex}, true
	}
	return "", jdwp.Location{}, false
}

// scriptPath derives a script's registered URL from its JDWP source-name,
// normalized through NewScriptURL (spec.md section 6) so it matches the
// form a breakpoint lookup normalizes its scriptURL argument to.
func (h *Host) scriptPath(className, sourceName string) string {
	if sourceName != "<eval>" && sourceName != "" {
		return normalizeScriptURL(sourceName)
	}
	return normalizeScriptURL(evalScriptPath(className))
}

// recoverSource walks the private field chain Script$ -> source -> data ->
// RawData.array and concatenates the recovered char array, per spec.md
// section 4.2 and the design-note on reflective access to engine internals.
func (h *Host) recoverSource(rt jdwp.ReferenceTypeID) (string, error) {
	sourceVal, err := h.readStaticField(rt, "source")
	if err != nil {
		return "", err
	}
	if sourceVal.Tag != jdwp.TagObject || sourceVal.Object == 0 {
		return "", fmt.Errorf("debughost: source field not yet populated")
	}

	dataVal, err := h.readInstanceField(sourceVal.Object, "data")
	if err != nil {
		return "", err
	}
	if dataVal.Tag != jdwp.TagObject || dataVal.Object == 0 {
		return "", fmt.Errorf("debughost: source.data field not yet populated")
	}

	arrayVal, err := h.readInstanceField(dataVal.Object, "array")
	if err != nil {
		return "", err
	}
	if arrayVal.Tag != jdwp.TagArray || arrayVal.Object == 0 {
		return "", fmt.Errorf("debughost: source.data.array field not yet populated")
	}

	return h.readCharArrayAsString(arrayVal.Object)
}

func (h *Host) schedulePendingSource(rt jdwp.ReferenceTypeID, attemptsLeft int) {
	if attemptsLeft <= 0 {
		h.log.Debug("debughost: giving up on source recovery", zap.Uint64("refType", uint64(rt)))
		return
	}
	h.pendingSources[rt] = &pendingSource{rt: rt, attemptsLeft: attemptsLeft - 1}
	time.AfterFunc(SourceResolveRetryIntervalMS*time.Millisecond, func() {
		select {
		case h.mailbox <- considerReferenceTypeItem{rt: rt, attemptsLeft: attemptsLeft - 1}:
		case <-h.stopped:
		}
	})
}

// retryPendingSources re-attempts source recovery for any script classes
// still waiting, ahead of any breakpoint/exception dispatch this tick --
// the reflective source field is often populated between class-prepare and
// the first hit.
func (h *Host) retryPendingSources() {
	if len(h.pendingSources) == 0 {
		return
	}
	pending := h.pendingSources
	h.pendingSources = make(map[jdwp.ReferenceTypeID]*pendingSource)
	for rt, p := range pending {
		h.registerFromReferenceType(rt, p.attemptsLeft)
	}
}

func (h *Host) cacheInfrastructureClass(className string, rt jdwp.ReferenceTypeID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch className {
	case "jdk.nashorn.internal.runtime.ScriptRuntime":
		h.infra.scriptRuntime = rt
	case "jdk.nashorn.internal.runtime.Context":
		h.infra.context = rt
	default:
		h.infra.boxedTypes[className] = rt
	}
}

// finishRegistration applies the deduplication rule and builds the
// script's BreakableLocation table (spec.md section 4.2 steps 4-5).
func (h *Host) finishRegistration(scriptPath, source string, rt jdwp.ReferenceTypeID, lines map[jdwp.MethodID][]jdwp.LineEntry, _ jdwp.Location) {
	h.mu.Lock()
	defer h.mu.Unlock()

	hash := contentsHash(source)
	script, existed := h.scriptsByHash[hash]
	isNewURL := false

	if !existed {
		h.nextScriptID++
		id := strconv.Itoa(h.nextScriptID)
		script = NewScript(id, scriptPath, source)
		h.scriptsByHash[hash] = script
		h.scriptsByID[id] = script
	}

	if _, ok := h.scriptsByURL[scriptPath]; !ok {
		h.scriptsByURL[scriptPath] = script
		isNewURL = true
	}

	for method, entries := range lines {
		for _, e := range entries {
			bl := &BreakableLocation{
				ID:     fmt.Sprintf("%s:%d:%d", script.ID, e.Line, 1),
				Script: script,
				VMLocation: jdwp.Location{
					TypeTag:   jdwp.TypeTagClass,
					Class:     rt,
					Method:    method,
					CodeIndex: e.CodeIndex,
				},
				ScriptLocation: ScriptLocation{Line: int(e.Line), Column: 1},
			}
			h.breakableLocsByURL[scriptPath] = append(h.breakableLocsByURL[scriptPath], bl)
			h.breakableLocsByID[bl.ID] = bl
			script.mu.Lock()
			script.breakableLoc = append(script.breakableLoc, bl)
			script.mu.Unlock()
		}
	}

	if isNewURL {
		h.Events.Publish(HostEvent{Kind: EventScriptAdded, Script: script})
	}
}

// jniSignatureToClassName converts a JNI type signature ("Lfoo/Bar;") to a
// dotted class name ("foo.Bar").
func jniSignatureToClassName(sig string) string {
	s := strings.TrimPrefix(sig, "L")
	s = strings.TrimSuffix(s, ";")
	return strings.ReplaceAll(s, "/", ".")
}
