package debughost

import (
	"fmt"
	"math"
	"strings"

	"apex-build/internal/jdwp"
	"apex-build/internal/metrics"
)

// registryEntry is one pause-scoped object handed out to the outside world.
type registryEntry struct {
	raw       jdwp.Value
	className string
}

// objectRegistry mints ObjectIDs for complex values surfaced during one
// pause and discards them wholesale the moment the pause ends -- per
// spec.md section 4.6, object ids are meaningless once the target resumes.
type objectRegistry struct {
	byID map[ObjectID]registryEntry
	next int
}

func newObjectRegistry() *objectRegistry {
	return &objectRegistry{byID: make(map[ObjectID]registryEntry)}
}

func (r *objectRegistry) register(v jdwp.Value, className string) ObjectID {
	r.next++
	id := ObjectID(fmt.Sprintf("obj$%d", r.next))
	r.byID[id] = registryEntry{raw: v, className: className}
	metrics.Get().ObjectsMinted.Inc()
	return id
}

func (r *objectRegistry) lookup(id ObjectID) (registryEntry, bool) {
	e, ok := r.byID[id]
	return e, ok
}

// clearCache discards every minted id -- called on resume/step and again
// defensively after an evaluation, since an evaluated expression can have
// arbitrary side effects on objects the registry is holding raw references
// to.
func (r *objectRegistry) clearCache() {
	r.byID = make(map[ObjectID]registryEntry)
}

func (h *Host) clearObjectCache() {
	if h.objects != nil {
		h.objects.clearCache()
	}
}

// stringValue reads a java.lang.String object's text.
func (h *Host) stringValue(obj jdwp.ObjectID) (string, error) {
	if obj == 0 {
		return "", nil
	}
	return h.conn.StringValue(obj)
}

// Nashorn's internal runtime classes -- enough of a prefix match to
// classify a remote value's shape without a general type system.
const (
	classNativeArray    = "jdk.nashorn.internal.objects.NativeArray"
	classScriptFunction = "jdk.nashorn.internal.runtime.ScriptFunction"
	classNativeDate     = "jdk.nashorn.internal.objects.NativeDate"
	classNativeRegExp   = "jdk.nashorn.internal.objects.NativeRegExp"
	classNativeError    = "jdk.nashorn.internal.objects.NativeError"
	classECMAException  = "jdk.nashorn.internal.runtime.ECMAException"
	classHashtable      = "java.util.Hashtable"
	classProperties     = "java.util.Properties"
)

// marshalValue converts a raw JDWP value into the client-facing ValueNode
// shape (spec.md section 4.6). Reference values that look like engine
// objects classify by runtime class name; anything else is surfaced as a
// generic object with a minted id.
func (h *Host) marshalValue(thread jdwp.ThreadID, v jdwp.Value) ValueNode {
	switch v.Tag {
	case jdwp.TagBoolean:
		return ValueNode{Kind: ValueSimple, Simple: SimpleScalar{Kind: "boolean", Bool: v.Prim != 0}}
	case jdwp.TagByte, jdwp.TagShort, jdwp.TagInt:
		return ValueNode{Kind: ValueSimple, Simple: SimpleScalar{Kind: "number", Number: float64(int32(v.Prim))}}
	case jdwp.TagLong:
		return ValueNode{Kind: ValueSimple, Simple: SimpleScalar{Kind: "number", Number: float64(int64(v.Prim))}}
	case jdwp.TagFloat, jdwp.TagDouble:
		return ValueNode{Kind: ValueSimple, Simple: SimpleScalar{Kind: "number", Number: bitsToFloat64(v.Tag, v.Prim)}}
	case jdwp.TagChar:
		return ValueNode{Kind: ValueSimple, Simple: SimpleScalar{Kind: "string", String: string(rune(v.Prim))}}
	case jdwp.TagVoid:
		return ValueNode{Kind: ValueSimple, Simple: SimpleScalar{Kind: "undefined", IsUndefined: true}}
	case jdwp.TagString:
		s, err := h.stringValue(v.Object)
		if err != nil {
			s = ""
		}
		return ValueNode{Kind: ValueSimple, Simple: SimpleScalar{Kind: "string", String: s}}
	}

	if v.Object == 0 {
		return ValueNode{Kind: ValueSimple, Simple: SimpleScalar{Kind: "null", IsNull: true}}
	}

	className, err := h.runtimeClassName(v.Object)
	if err != nil {
		className = ""
	}

	id := h.objects.register(v, className)

	switch {
	case className == classNativeArray:
		length := h.arrayLikeLength(thread, v.Object)
		return ValueNode{Kind: ValueArray, ClassName: className, ID: id, Length: length}
	case className == classScriptFunction || strings.HasSuffix(className, "$Lambda"):
		name, src := h.functionDescription(thread, v.Object)
		return ValueNode{Kind: ValueFunction, ClassName: className, ID: id, FunctionName: name, FunctionSource: src}
	case className == classNativeDate:
		return ValueNode{Kind: ValueDate, ClassName: className, ID: id}
	case className == classNativeRegExp:
		return ValueNode{Kind: ValueRegExp, ClassName: className, ID: id}
	case className == classNativeError || className == classECMAException:
		return ValueNode{Kind: ValueError, ClassName: className, ID: id}
	default:
		return ValueNode{Kind: ValueObject, ClassName: className, ID: id}
	}
}

func bitsToFloat64(tag jdwp.Tag, bits uint64) float64 {
	// Tag-specific reinterpretation happens in the codec at decode time for
	// fixed-width float/double already; by the time marshalValue sees Prim
	// it already holds the IEEE-754 bit pattern truncated to a uint64, so a
	// direct cast through the matching width recovers the value.
	if tag == jdwp.TagFloat {
		return float64(math.Float32frombits(uint32(bits)))
	}
	return math.Float64frombits(bits)
}

func (h *Host) runtimeClassName(obj jdwp.ObjectID) (string, error) {
	_, rt, err := h.conn.ObjectReferenceType(obj)
	if err != nil {
		return "", err
	}
	sig, err := h.conn.Signature(rt)
	if err != nil {
		return "", err
	}
	return jniSignatureToClassName(sig), nil
}

func (h *Host) arrayLikeLength(thread jdwp.ThreadID, obj jdwp.ObjectID) int {
	v, err := h.invokeNamed(thread, obj, "getLength", nil)
	if err != nil {
		return 0
	}
	return int(int32(v.Prim))
}

func (h *Host) functionDescription(thread jdwp.ThreadID, obj jdwp.ObjectID) (name string, source string) {
	if nameVal, err := h.invokeNamed(thread, obj, "getName", nil); err == nil && nameVal.Tag == jdwp.TagString {
		name, _ = h.stringValue(nameVal.Object)
	}
	if srcVal, err := h.invokeNamed(thread, obj, "toSource", nil); err == nil && srcVal.Tag == jdwp.TagString {
		source, _ = h.stringValue(srcVal.Object)
	}
	return name, source
}

// NamedProperty pairs a property name with its descriptor, the shape
// getObjectProperties returns (spec.md section 4.6).
type NamedProperty struct {
	Name       string
	Descriptor ObjectPropertyDescriptor
}

// GetObjectProperties resolves the properties of a previously-minted object
// id, dispatching by runtime type per spec.md section 4.6's extractor
// table. ScriptObject-derived values (the common case: everything the
// target script itself created) prefer the in-target extractor script,
// falling back to a manual getOwnKeys/get walk if that eval fails;
// Hashtable-likes drive keys()/hasMoreElements()/nextElement(); anything
// else falls back to declared-field reflection.
func (h *Host) GetObjectProperties(id ObjectID, onlyOwn, onlyAccessors bool) ([]NamedProperty, error) {
	h.mu.Lock()
	paused := h.paused
	h.mu.Unlock()
	if paused == nil {
		return nil, ErrIllegalState
	}

	entry, ok := h.objects.lookup(id)
	if !ok {
		return nil, ErrUnknownObject
	}
	if entry.raw.Object == 0 {
		return nil, nil
	}

	thread := paused.thread

	switch {
	case h.looksLikeScriptObject(entry.className):
		if props, err := h.propertyExtractorProperties(thread, entry.raw.Object, onlyOwn, onlyAccessors); err == nil {
			return props, nil
		}
		h.log.Debug("debughost: in-target extractor script failed, falling back to getOwnKeys walk")
		if props, err := h.scriptObjectProperties(thread, entry.raw.Object, onlyOwn, onlyAccessors); err == nil {
			return props, nil
		}
		h.log.Debug("debughost: preferred property path failed, falling back to field reflection")
	case h.looksLikeHashtable(entry.className):
		return h.hashtableProperties(thread, entry.raw.Object, onlyAccessors)
	}

	return h.reflectiveProperties(entry.raw.Object, onlyAccessors)
}

func (h *Host) looksLikeScriptObject(className string) bool {
	return strings.HasPrefix(className, "jdk.nashorn.internal.")
}

func (h *Host) looksLikeHashtable(className string) bool {
	return className == classHashtable || className == classProperties || strings.HasSuffix(className, ".Hashtable")
}

// propertyExtractorSource is the pre-compiled in-target extractor of
// spec.md section 4.6's preferred row: walk own keys (and, unless onlyOwn,
// the prototype chain), classify each as Data or Accessor via its own
// property descriptor, drop the hidden-prefix bookkeeping keys, and
// flatten the result into [name, flags, value, getter, setter] x N. flags
// is a subset of "cewo" (configurable/enumerable/writable/own).
const propertyExtractorSource = `(function(__obj, __onlyOwn, __onlyAccessors){
  var out = [];
  var seen = {};
  var target = __obj;
  var own = true;
  while (target !== null && target !== undefined) {
    var names = Object.getOwnPropertyNames(target);
    for (var i = 0; i < names.length; i++) {
      var name = names[i];
      if (name.indexOf('||') === 0 || seen[name]) continue;
      seen[name] = true;
      var desc = Object.getOwnPropertyDescriptor(target, name);
      var isAccessor = (typeof desc.get === 'function') || (typeof desc.set === 'function');
      if (__onlyAccessors && !isAccessor) continue;
      var flags = '';
      if (desc.configurable) flags += 'c';
      if (desc.enumerable) flags += 'e';
      if (desc.writable) flags += 'w';
      if (own) flags += 'o';
      out.push(name, flags, isAccessor ? undefined : desc.value, desc.get, desc.set);
    }
    if (__onlyOwn) break;
    target = Object.getPrototypeOf(target);
    own = false;
  }
  return out;
})`

const propertyExtractorTupleWidth = 5

func (h *Host) propertyExtractorProperties(thread jdwp.ThreadID, obj jdwp.ObjectID, onlyOwn, onlyAccessors bool) ([]NamedProperty, error) {
	factory, _, err := h.rawEval(thread, 0, 0, propertyExtractorSource)
	if err != nil {
		return nil, err
	}

	applyArgs := []jdwp.Value{
		{Tag: jdwp.TagObject, Object: obj},
		{Tag: jdwp.TagBoolean, Prim: boolPrim(onlyOwn)},
		{Tag: jdwp.TagBoolean, Prim: boolPrim(onlyAccessors)},
	}
	resultVal, err := h.invokeNamed(thread, factory.Object, "apply", applyArgs)
	if err != nil {
		return nil, err
	}
	if resultVal.Tag != jdwp.TagObject || resultVal.Object == 0 {
		return nil, nil
	}

	length, err := h.conn.ArrayLength(resultVal.Object)
	if err != nil {
		return nil, err
	}
	flat, err := h.conn.ArrayValues(resultVal.Object, 0, length)
	if err != nil {
		return nil, err
	}

	out := make([]NamedProperty, 0, int(length)/propertyExtractorTupleWidth)
	for i := 0; i+propertyExtractorTupleWidth <= len(flat); i += propertyExtractorTupleWidth {
		nameVal, flagsVal, valueVal, getterVal, setterVal := flat[i], flat[i+1], flat[i+2], flat[i+3], flat[i+4]
		name, err := h.stringValue(nameVal.Object)
		if err != nil {
			continue
		}
		flags, _ := h.stringValue(flagsVal.Object)

		desc := ObjectPropertyDescriptor{
			Configurable: strings.Contains(flags, "c"),
			Enumerable:   strings.Contains(flags, "e"),
			Writable:     strings.Contains(flags, "w"),
			IsOwn:        strings.Contains(flags, "o"),
		}
		hasGetter := getterVal.Tag == jdwp.TagObject && getterVal.Object != 0
		hasSetter := setterVal.Tag == jdwp.TagObject && setterVal.Object != 0
		if hasGetter || hasSetter {
			desc.Kind = PropertyAccessor
			if hasGetter {
				g := h.marshalValue(thread, getterVal)
				desc.Getter = &g
			}
			if hasSetter {
				s := h.marshalValue(thread, setterVal)
				desc.Setter = &s
			}
		} else {
			desc.Kind = PropertyData
			v := h.marshalValue(thread, valueVal)
			desc.Value = &v
		}
		out = append(out, NamedProperty{Name: name, Descriptor: desc})
	}
	return out, nil
}

func boolPrim(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// scriptObjectProperties is the fallback path when the in-target extractor
// script can't be evaluated: drive ScriptObject.getOwnKeys(all)/get(key)
// directly, walking the prototype chain via getProto() when onlyOwn is
// false. It carries no getter/setter split, so onlyAccessors yields nothing.
func (h *Host) scriptObjectProperties(thread jdwp.ThreadID, obj jdwp.ObjectID, onlyOwn, onlyAccessors bool) ([]NamedProperty, error) {
	if onlyAccessors {
		return nil, nil
	}

	var out []NamedProperty
	target := obj
	isOwn := true
	for {
		props, err := h.scriptObjectOwnKeys(thread, target, isOwn)
		if err != nil {
			if isOwn {
				return nil, err
			}
			break
		}
		out = append(out, props...)
		if onlyOwn {
			break
		}
		protoVal, err := h.invokeNamed(thread, target, "getProto", nil)
		if err != nil || protoVal.Tag != jdwp.TagObject || protoVal.Object == 0 {
			break
		}
		target = protoVal.Object
		isOwn = false
	}
	return out, nil
}

func (h *Host) scriptObjectOwnKeys(thread jdwp.ThreadID, obj jdwp.ObjectID, isOwn bool) ([]NamedProperty, error) {
	keysVal, err := h.invokeNamed(thread, obj, "getOwnKeys", []jdwp.Value{{Tag: jdwp.TagBoolean, Prim: 1}})
	if err != nil {
		return nil, err
	}
	length, err := h.conn.ArrayLength(keysVal.Object)
	if err != nil {
		return nil, err
	}
	keyVals, err := h.conn.ArrayValues(keysVal.Object, 0, length)
	if err != nil {
		return nil, err
	}

	out := make([]NamedProperty, 0, length)
	for _, kv := range keyVals {
		name, err := h.stringValue(kv.Object)
		if err != nil {
			continue
		}
		if strings.HasPrefix(name, hiddenPropertyPrefix) {
			continue
		}

		valueVal, err := h.invokeNamed(thread, obj, "get", []jdwp.Value{kv})
		if err != nil {
			continue
		}

		marshaled := h.marshalValue(thread, valueVal)
		out = append(out, NamedProperty{
			Name: name,
			Descriptor: ObjectPropertyDescriptor{
				Kind:         PropertyData,
				Configurable: true,
				Enumerable:   true,
				Writable:     true,
				IsOwn:        isOwn,
				Value:        &marshaled,
			},
		})
	}
	return out, nil
}

// hashtableProperties implements spec.md section 4.6's Hashtable-like row:
// drive keys()/hasMoreElements()/nextElement(), stringify each key, and
// read get(key) as the value. Accessors are forbidden for this kind and
// always yield an empty result.
func (h *Host) hashtableProperties(thread jdwp.ThreadID, obj jdwp.ObjectID, onlyAccessors bool) ([]NamedProperty, error) {
	if onlyAccessors {
		return nil, nil
	}

	enumVal, err := h.invokeNamed(thread, obj, "keys", nil)
	if err != nil {
		return nil, err
	}
	if enumVal.Tag != jdwp.TagObject || enumVal.Object == 0 {
		return nil, nil
	}
	enumObj := enumVal.Object

	var out []NamedProperty
	for {
		hasMore, err := h.invokeNamed(thread, enumObj, "hasMoreElements", nil)
		if err != nil || hasMore.Prim == 0 {
			break
		}
		keyVal, err := h.invokeNamed(thread, enumObj, "nextElement", nil)
		if err != nil {
			break
		}
		valueVal, err := h.invokeNamed(thread, obj, "get", []jdwp.Value{keyVal})
		if err != nil {
			continue
		}
		marshaled := h.marshalValue(thread, valueVal)
		out = append(out, NamedProperty{
			Name: h.stringifyKey(thread, keyVal),
			Descriptor: ObjectPropertyDescriptor{
				Kind:         PropertyData,
				Configurable: true,
				Enumerable:   true,
				Writable:     true,
				IsOwn:        true,
				Value:        &marshaled,
			},
		})
	}
	return out, nil
}

// stringifyKey renders a Hashtable key as text: directly for a String key,
// via toString() for anything else.
func (h *Host) stringifyKey(thread jdwp.ThreadID, v jdwp.Value) string {
	if v.Tag == jdwp.TagString {
		s, _ := h.stringValue(v.Object)
		return s
	}
	if v.Object == 0 {
		return ""
	}
	toStringVal, err := h.invokeNamed(thread, v.Object, "toString", nil)
	if err != nil || toStringVal.Tag != jdwp.TagString {
		return ""
	}
	s, _ := h.stringValue(toStringVal.Object)
	return s
}

// reflectiveProperties extracts declared instance fields of an arbitrary
// host object as generic properties -- the fallback path for values that
// are neither Nashorn ScriptObjects nor Hashtable-likes (plain Java objects
// crossing the boundary).
func (h *Host) reflectiveProperties(obj jdwp.ObjectID, onlyAccessors bool) ([]NamedProperty, error) {
	if onlyAccessors {
		return nil, nil
	}
	_, rt, err := h.conn.ObjectReferenceType(obj)
	if err != nil {
		return nil, err
	}
	fields, err := h.conn.Fields(rt)
	if err != nil {
		return nil, err
	}
	ids := make([]jdwp.FieldID, len(fields))
	for i, f := range fields {
		ids[i] = f.ID
	}
	vals, err := h.conn.GetFieldValues(obj, ids)
	if err != nil {
		return nil, err
	}

	out := make([]NamedProperty, 0, len(fields))
	for i, f := range fields {
		marshaled := h.marshalValue(0, vals[i])
		out = append(out, NamedProperty{
			Name: f.Name,
			Descriptor: ObjectPropertyDescriptor{
				Kind:         PropertyGeneric,
				Configurable: false,
				Enumerable:   true,
				Writable:     true,
				IsOwn:        true,
				Value:        &marshaled,
			},
		})
	}
	return out, nil
}
