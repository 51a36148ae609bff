package debughost

import (
	"fmt"

	"apex-build/internal/jdwp"
)

// findField locates a declared field by name on a reference type. This is
// the named adapter spec.md's design notes call for: the field-path lookup
// used to recover source (Script$ -> source -> data -> array) is explicit
// and its absence is a hard error, not a silent skip, so an engine upgrade
// that renames these fields fails loudly.
func (h *Host) findField(rt jdwp.ReferenceTypeID, name string) (jdwp.FieldID, error) {
	fields, err := h.conn.Fields(rt)
	if err != nil {
		return 0, fmt.Errorf("debughost: listing fields of %d: %w", rt, err)
	}
	for _, f := range fields {
		if f.Name == name {
			return f.ID, nil
		}
	}
	return 0, fmt.Errorf("debughost: field %q not found on reference type %d (engine field layout changed?)", name, rt)
}

// readStaticField reads a named static field's value off a reference type.
func (h *Host) readStaticField(rt jdwp.ReferenceTypeID, name string) (jdwp.Value, error) {
	fid, err := h.findField(rt, name)
	if err != nil {
		return jdwp.Value{}, err
	}
	vals, err := h.conn.GetStaticValues(rt, []jdwp.FieldID{fid})
	if err != nil {
		return jdwp.Value{}, err
	}
	return vals[0], nil
}

// readInstanceField reads a named instance field's value off an object,
// resolving the object's runtime reference type first.
func (h *Host) readInstanceField(obj jdwp.ObjectID, name string) (jdwp.Value, error) {
	_, rt, err := h.conn.ObjectReferenceType(obj)
	if err != nil {
		return jdwp.Value{}, err
	}
	fid, err := h.findField(rt, name)
	if err != nil {
		return jdwp.Value{}, err
	}
	vals, err := h.conn.GetFieldValues(obj, []jdwp.FieldID{fid})
	if err != nil {
		return jdwp.Value{}, err
	}
	return vals[0], nil
}

// findMethod locates a declared method by name on a reference type. Several
// names recur (e.g. "put", "get") so callers that need a specific overload
// should additionally check FieldInfo/MethodInfo signature strings; the
// host only ever needs the single-overload case for the Nashorn internals
// it targets.
func (h *Host) findMethod(rt jdwp.ReferenceTypeID, name string) (jdwp.MethodID, error) {
	methods, err := h.conn.Methods(rt)
	if err != nil {
		return 0, fmt.Errorf("debughost: listing methods of %d: %w", rt, err)
	}
	for _, m := range methods {
		if m.Name == name {
			return m.ID, nil
		}
	}
	return 0, fmt.Errorf("debughost: method %q not found on reference type %d", name, rt)
}

// invokeNamed invokes the named instance method of obj, temporarily
// resuming the target thread for the duration of the call. Every raw
// StackFrame/Value reference the caller holds becomes invalid the moment
// this is called -- see PausedData's lifetime discipline.
func (h *Host) invokeNamed(thread jdwp.ThreadID, obj jdwp.ObjectID, name string, args []jdwp.Value) (jdwp.Value, error) {
	_, rt, err := h.conn.ObjectReferenceType(obj)
	if err != nil {
		return jdwp.Value{}, err
	}
	mid, err := h.findMethod(rt, name)
	if err != nil {
		return jdwp.Value{}, err
	}
	ret, exc, err := h.conn.InvokeInstanceMethod(obj, thread, rt, mid, args, 0)
	if err != nil {
		return jdwp.Value{}, err
	}
	if exc != 0 {
		return jdwp.Value{}, fmt.Errorf("debughost: invoking %s threw an exception object %d", name, exc)
	}
	return ret, nil
}

// readCharArrayAsString reads an entire char[] object and concatenates it
// into a Go string -- the last hop of the Script$ -> source -> data -> array
// recovery chain.
func (h *Host) readCharArrayAsString(arr jdwp.ObjectID) (string, error) {
	length, err := h.conn.ArrayLength(arr)
	if err != nil {
		return "", err
	}
	if length == 0 {
		return "", nil
	}
	vals, err := h.conn.ArrayValues(arr, 0, length)
	if err != nil {
		return "", err
	}
	runes := make([]rune, len(vals))
	for i, v := range vals {
		runes[i] = rune(v.Prim)
	}
	return string(runes), nil
}
