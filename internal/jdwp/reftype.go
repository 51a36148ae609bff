package jdwp

const (
	csReferenceType = 2
	csClassType     = 3
	csArrayType     = 4
	csMethod        = 6
)

const (
	cmdRTSignature         = 1
	cmdRTFields             = 4
	cmdRTMethods            = 5
	cmdRTGetValues          = 6
	cmdRTSourceFile         = 7
	cmdRTStatus             = 9
	cmdRTInterfaces         = 10
	cmdRTClassObject        = 11
	cmdRTSourceDebugExt     = 12
	cmdRTSignatureWithGeneric = 13
	cmdRTAllLineLocations   = 1 // within Method command set, see below
)

const (
	cmdClassTypeSuperclass    = 1
	cmdClassTypeSetValues     = 2
	cmdClassTypeInvokeMethod  = 3
	cmdClassTypeNewInstance   = 4
)

const (
	cmdMethodLineTable = 1
	cmdMethodVariableTable = 2
)

// FieldInfo describes one declared field of a reference type.
type FieldInfo struct {
	ID        FieldID
	Name      string
	Signature string
	ModBits   int32
}

// MethodInfo describes one declared method of a reference type.
type MethodInfo struct {
	ID        MethodID
	Name      string
	Signature string
	ModBits   int32
}

// LineEntry is one (codeIndex -> source line) mapping from Method.LineTable.
type LineEntry struct {
	CodeIndex uint64
	Line      int32
}

// Signature returns a reference type's JNI-style type signature.
func (c *Conn) Signature(rt ReferenceTypeID) (string, error) {
	e := c.newEncoder().writeReferenceTypeID(rt)
	d, err := c.send(csReferenceType, cmdRTSignature, e.bytes())
	if err != nil {
		return "", err
	}
	return d.readString(), nil
}

// SourceFile returns the source file name attribute of a reference type, if
// the target recorded one (Script$ classes usually carry "<eval>").
func (c *Conn) SourceFile(rt ReferenceTypeID) (string, error) {
	e := c.newEncoder().writeReferenceTypeID(rt)
	d, err := c.send(csReferenceType, cmdRTSourceFile, e.bytes())
	if err != nil {
		return "", err
	}
	return d.readString(), nil
}

// Fields returns a reference type's declared (non-inherited) fields.
func (c *Conn) Fields(rt ReferenceTypeID) ([]FieldInfo, error) {
	e := c.newEncoder().writeReferenceTypeID(rt)
	d, err := c.send(csReferenceType, cmdRTFields, e.bytes())
	if err != nil {
		return nil, err
	}
	n := int(d.readInt())
	out := make([]FieldInfo, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, FieldInfo{
			ID:        d.readFieldID(),
			Name:      d.readString(),
			Signature: d.readString(),
			ModBits:   d.readInt(),
		})
	}
	return out, nil
}

// Methods returns a reference type's declared methods.
func (c *Conn) Methods(rt ReferenceTypeID) ([]MethodInfo, error) {
	e := c.newEncoder().writeReferenceTypeID(rt)
	d, err := c.send(csReferenceType, cmdRTMethods, e.bytes())
	if err != nil {
		return nil, err
	}
	n := int(d.readInt())
	out := make([]MethodInfo, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, MethodInfo{
			ID:        d.readMethodID(),
			Name:      d.readString(),
			Signature: d.readString(),
			ModBits:   d.readInt(),
		})
	}
	return out, nil
}

// GetStaticValues reads static field values from a reference type; used to
// read a Script$ class's static "source" field during source recovery.
func (c *Conn) GetStaticValues(rt ReferenceTypeID, fields []FieldID) ([]Value, error) {
	e := c.newEncoder().writeReferenceTypeID(rt).writeInt(int32(len(fields)))
	for _, f := range fields {
		e.writeFieldID(f)
	}
	d, err := c.send(csReferenceType, cmdRTGetValues, e.bytes())
	if err != nil {
		return nil, err
	}
	n := int(d.readInt())
	out := make([]Value, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, d.readValue())
	}
	return out, nil
}

// AllLineLocations returns every breakable (line, codeIndex) location across
// every method of a reference type -- the raw material for BreakableLocation
// construction in the script registry.
func (c *Conn) AllLineLocations(rt ReferenceTypeID) (map[MethodID][]LineEntry, error) {
	methods, err := c.Methods(rt)
	if err != nil {
		return nil, err
	}
	out := make(map[MethodID][]LineEntry, len(methods))
	for _, m := range methods {
		lines, err := c.lineTable(rt, m.ID)
		if err != nil {
			continue // native/abstract methods carry no line table
		}
		if len(lines) > 0 {
			out[m.ID] = lines
		}
	}
	return out, nil
}

// VariableEntry is one entry of Method.VariableTable: a named local slot
// valid over a range of the method's bytecode.
type VariableEntry struct {
	CodeIndex uint64
	Name      string
	Signature string
	Length    int32
	Slot      int32
}

// VariableTable returns the local-variable table for a method, the source
// of "visible variables" the pause engine snapshots on every frame.
func (c *Conn) VariableTable(rt ReferenceTypeID, m MethodID) ([]VariableEntry, error) {
	e := c.newEncoder().writeReferenceTypeID(rt).writeMethodID(m)
	d, err := c.send(csMethod, cmdMethodVariableTable, e.bytes())
	if err != nil {
		return nil, err
	}
	_ = d.readInt() // argCnt
	n := int(d.readInt())
	out := make([]VariableEntry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, VariableEntry{
			CodeIndex: uint64(d.readLong()),
			Name:      d.readString(),
			Signature: d.readString(),
			Length:    d.readInt(),
			Slot:      d.readInt(),
		})
	}
	return out, nil
}

// VisibleVariablesAt returns the variables in scope at a given code index,
// skipping the synthetic ":return" slot Nashorn injects.
func (c *Conn) VisibleVariablesAt(rt ReferenceTypeID, m MethodID, codeIndex uint64) ([]VariableEntry, error) {
	all, err := c.VariableTable(rt, m)
	if err != nil {
		return nil, err
	}
	out := make([]VariableEntry, 0, len(all))
	for _, v := range all {
		if v.Name == ":return" {
			continue
		}
		if codeIndex >= v.CodeIndex && codeIndex < v.CodeIndex+uint64(v.Length) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (c *Conn) lineTable(rt ReferenceTypeID, m MethodID) ([]LineEntry, error) {
	e := c.newEncoder().writeReferenceTypeID(rt).writeMethodID(m)
	d, err := c.send(csMethod, cmdMethodLineTable, e.bytes())
	if err != nil {
		return nil, err
	}
	_ = d.readLong() // start
	_ = d.readLong() // end
	n := int(d.readInt())
	out := make([]LineEntry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, LineEntry{CodeIndex: uint64(d.readLong()), Line: d.readInt()})
	}
	return out, nil
}

// InvokeStaticMethod invokes a static method on a class, used to call
// Context.getGlobal() when setting up an evaluation. Invoking
// a method on the suspended thread temporarily resumes it -- callers must
// never hold onto stack frame or value references obtained before the call.
func (c *Conn) InvokeStaticMethod(class ReferenceTypeID, thread ThreadID, method MethodID, args []Value, options int32) (Value, ObjectID, error) {
	e := c.newEncoder().writeReferenceTypeID(class).writeObjectID(thread).writeMethodID(method)
	e.writeInt(int32(len(args)))
	for _, a := range args {
		e.writeValue(a)
	}
	e.writeInt(options)
	d, err := c.send(csClassType, cmdClassTypeInvokeMethod, e.bytes())
	if err != nil {
		return Value{}, 0, err
	}
	ret := d.readValue()
	exc := d.readObjectID()
	return ret, exc, nil
}
