package debughost

import (
	"fmt"
	"strings"
	"time"

	"apex-build/internal/jdwp"
	"apex-build/internal/metrics"
	"go.uber.org/zap"
)

// evaluateContext resolves Context.getGlobal().getContext() once per pause,
// the private entry point spec.md section 4.7 drives all evaluation
// through (Context.eval). Nashorn upgrades that rename this path are
// expected to fail loudly here rather than silently misbehave.
func (h *Host) evaluateContext(thread jdwp.ThreadID) (jdwp.ObjectID, error) {
	if h.infra.context == 0 {
		return 0, fmt.Errorf("debughost: Context class not yet registered")
	}
	getGlobal, err := h.findMethod(h.infra.context, "getGlobal")
	if err != nil {
		return 0, err
	}
	globalVal, exc, err := h.conn.InvokeStaticMethod(h.infra.context, thread, getGlobal, nil, 0)
	if err != nil {
		return 0, err
	}
	if exc != 0 {
		return 0, fmt.Errorf("debughost: Context.getGlobal() threw")
	}
	ctxVal, err := h.invokeNamed(thread, globalVal.Object, "getContext", nil)
	if err != nil {
		return 0, err
	}
	return ctxVal.Object, nil
}

// rawEval runs "'<marker>'; " + code through Context.eval(scope, code, this,
// undefined), suppressing a result that is exactly the marker (statements
// like "var x = 42" evaluate to the leading string literal).
func (h *Host) rawEval(thread jdwp.ThreadID, scope, this jdwp.ObjectID, code string) (jdwp.Value, *ValueNode, error) {
	ctx, err := h.evaluateContext(thread)
	if err != nil {
		return jdwp.Value{}, nil, err
	}
	evalMethod, err := h.findMethod(h.infra.context, "eval")
	if err != nil {
		return jdwp.Value{}, nil, err
	}

	wrapped := fmt.Sprintf("'%s';%s", EvaluatedCodeMarker, code)
	srcObj, err := h.conn.CreateString(wrapped)
	if err != nil {
		return jdwp.Value{}, nil, err
	}

	args := []jdwp.Value{
		{Tag: jdwp.TagObject, Object: scope},
		{Tag: jdwp.TagString, Object: srcObj},
		{Tag: jdwp.TagObject, Object: this},
		{Tag: jdwp.TagObject, Object: 0},
	}
	_, ctxRT, err := h.conn.ObjectReferenceType(ctx)
	if err != nil {
		return jdwp.Value{}, nil, err
	}
	ret, exc, err := h.conn.InvokeInstanceMethod(ctx, thread, ctxRT, evalMethod, args, 0)
	if err != nil {
		return jdwp.Value{}, nil, err
	}
	if exc != 0 {
		thrown := h.marshalValue(thread, jdwp.Value{Tag: jdwp.TagObject, Object: exc})
		return jdwp.Value{}, nil, &EvaluationError{Message: "thrown exception", Exception: &thrown}
	}
	if ret.Tag == jdwp.TagString {
		if s, err := h.stringValue(ret.Object); err == nil && s == EvaluatedCodeMarker {
			return jdwp.Value{Tag: jdwp.TagObject, Object: 0}, nil, nil
		}
	}
	return ret, nil, nil
}

// newPlainObject builds a bare "{}" object in the target, used as the base
// onto which locals are injected before the accessor wrapper is built.
func (h *Host) newPlainObject(thread jdwp.ThreadID) (jdwp.ObjectID, error) {
	v, _, err := h.rawEval(thread, 0, 0, "({})")
	if err != nil {
		return 0, err
	}
	return v.Object, nil
}

// putLiveValue injects a raw, already-live value as a named property of a
// holder object without ever re-serializing it through JS source text --
// the technique that lets the wrapper shadow arbitrary object references,
// not just primitives.
func (h *Host) putLiveValue(thread jdwp.ThreadID, holder jdwp.ObjectID, name string, v jdwp.Value) error {
	_, err := h.invokeNamed(thread, holder, "put", []jdwp.Value{
		{Tag: jdwp.TagString, Object: h.mustCreateString(name)},
		v,
		{Tag: jdwp.TagBoolean, Prim: 1},
	})
	return err
}

func (h *Host) mustCreateString(s string) jdwp.ObjectID {
	id, err := h.conn.CreateString(s)
	if err != nil {
		return 0
	}
	return id
}

// getProperty reads a named property off a ScriptObject by calling its
// real get(Object) method -- the same entry point scriptObjectProperties
// uses, so it works for the hidden "||changes" bookkeeping property just
// as well as any ordinary JS property.
func (h *Host) getProperty(thread jdwp.ThreadID, obj jdwp.ObjectID, name string) (jdwp.Value, error) {
	return h.invokeNamed(thread, obj, "get", []jdwp.Value{
		{Tag: jdwp.TagString, Object: h.mustCreateString(name)},
	})
}

// buildScopeWrapper implements spec.md section 4.7 step 1: a transient
// object whose prototype is the frame's original scope (or "this"), with
// one accessor property per local. The setter appends [name, value] to a
// hidden "||changes" array the write-back pass later drains; the getter
// reads the live value straight out of the holder object. Locals are
// injected via putLiveValue so object references survive unchanged, not
// through literal JS source.
func (h *Host) buildScopeWrapper(thread jdwp.ThreadID, originalScope, this jdwp.ObjectID, locals map[string]jdwp.Value) (jdwp.ObjectID, error) {
	holder, err := h.newPlainObject(thread)
	if err != nil {
		return 0, err
	}
	names := make([]string, 0, len(locals))
	for name, v := range locals {
		if err := h.putLiveValue(thread, holder, name, v); err != nil {
			return 0, fmt.Errorf("debughost: injecting local %q: %w", name, err)
		}
		names = append(names, name)
	}

	base := originalScope
	if base == 0 {
		base = this
	}

	var sb strings.Builder
	sb.WriteString("(function(__base, __holder){\n")
	sb.WriteString("  var w = Object.create(__base);\n")
	sb.WriteString("  var __changes = [];\n")
	sb.WriteString("  Object.defineProperty(w, '||changes', {value: __changes, enumerable:false, configurable:false});\n")
	for _, name := range names {
		sb.WriteString(fmt.Sprintf(
			"  Object.defineProperty(w, %q, {get: function(){ return __holder[%q]; }, "+
				"set: function(v){ __changes.push([%q, v]); }, enumerable:true, configurable:true});\n",
			name, name, name))
	}
	sb.WriteString("  return w;\n})")

	factory, _, err := h.rawEval(thread, 0, 0, sb.String())
	if err != nil {
		return 0, err
	}

	applyArgs := []jdwp.Value{{Tag: jdwp.TagObject, Object: base}, {Tag: jdwp.TagObject, Object: holder}}
	result, err := h.invokeNamed(thread, factory.Object, "apply", applyArgs)
	if err != nil {
		return 0, err
	}
	return result.Object, nil
}

// evaluateOnStackFrame implements spec.md section 4.7: wrap the frame's
// scope with any extra named objects, invoke Context.eval, marshal the
// result, then write back any local mutations recorded in the wrapper's
// change log.
func (h *Host) evaluateOnStackFrame(frameID string, expression string, named map[string]ObjectID) (ValueNode, error) {
	h.mu.Lock()
	paused := h.paused
	h.mu.Unlock()
	if paused == nil {
		return ValueNode{}, ErrIllegalState
	}

	snap, ok := paused.snapshotFor(frameID)
	if !ok {
		return ValueNode{}, fmt.Errorf("debughost: unknown stack frame id %q", frameID)
	}

	start := time.Now()
	scope := snap.wrapperObj
	if len(named) > 0 {
		extra := make(map[string]jdwp.Value, len(named))
		for name, oid := range named {
			entry, ok := h.objects.lookup(oid)
			if !ok {
				continue
			}
			extra[name] = entry.raw
		}
		wrapped, err := h.buildScopeWrapper(snap.thread, scope, snap.thisVal.Object, extra)
		if err != nil {
			return ValueNode{}, err
		}
		scope = wrapped
	}

	result, thrown, err := h.rawEval(snap.thread, scope, snap.thisVal.Object, expression)
	if err != nil {
		outcome := "error"
		if ee, ok := err.(*EvaluationError); ok && ee.Exception != nil {
			outcome = "thrown"
		}
		metrics.Get().RecordEvaluation(outcome, time.Since(start))
		if ee, ok := err.(*EvaluationError); ok && ee.Exception != nil {
			return *ee.Exception, nil
		}
		return ValueNode{}, &EvaluationError{Message: "evaluation failed", Cause: err}
	}
	_ = thrown

	h.writeBackChanges(snap)
	h.objects.clearCache() // evaluation may have mutated arbitrary objects

	metrics.Get().RecordEvaluation("ok", time.Since(start))
	return h.marshalValue(snap.thread, result), nil
}

// writeBackChanges reads the wrapper's "||changes" array and applies every
// (name, value) pair recorded since the last write-back to the matching
// JDI local slot on the frame that produced the snapshot -- the array only
// grows, so snap.changesSeen marks how much of it has already been
// applied across repeated evaluations against the same pause.
func (h *Host) writeBackChanges(snap *frameSnapshot) {
	if snap.wrapperObj == 0 {
		return
	}
	changesVal, err := h.getProperty(snap.thread, snap.wrapperObj, "||changes")
	if err != nil {
		return
	}
	length, err := h.conn.ArrayLength(changesVal.Object)
	if err != nil {
		return
	}
	for i := snap.changesSeen; i < length; i++ {
		pairVals, err := h.conn.ArrayValues(changesVal.Object, i, 1)
		if err != nil || len(pairVals) == 0 {
			continue
		}
		pairArr := pairVals[0].Object
		nameVal, err := h.conn.ArrayValues(pairArr, 0, 1)
		if err != nil || len(nameVal) == 0 {
			continue
		}
		newVal, err := h.conn.ArrayValues(pairArr, 1, 1)
		if err != nil || len(newVal) == 0 {
			continue
		}
		name, err := h.stringValue(nameVal[0].Object)
		if err != nil {
			continue
		}
		slot, ok := snap.slotByName[name]
		if !ok {
			continue
		}
		if err := h.conn.SetFrameValue(snap.thread, snap.frame, slot, newVal[0]); err != nil {
			h.log.Warn("debughost: local write-back failed", zap.Error(err))
		}
	}
	snap.changesSeen = length
}
