package jdwp

const (
	csObjectReference = 9
	csArrayReference  = 13
)

const (
	cmdObjRefReferenceType = 1
	cmdObjRefGetValues     = 2
	cmdObjRefSetValues     = 3
	cmdObjRefInvokeMethod  = 6
	cmdObjRefDisableCollection = 7
	cmdObjRefEnableCollection  = 8
)

const (
	cmdArrRefLength    = 1
	cmdArrRefGetValues = 2
	cmdArrRefSetValues = 3
)

// GetFieldValues reads instance field values from an object (given the
// declaring reference type's field ids, as returned by Fields).
func (c *Conn) GetFieldValues(obj ObjectID, fields []FieldID) ([]Value, error) {
	e := c.newEncoder().writeObjectID(obj).writeInt(int32(len(fields)))
	for _, f := range fields {
		e.writeFieldID(f)
	}
	d, err := c.send(csObjectReference, cmdObjRefGetValues, e.bytes())
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

// ObjectReferenceType returns an object's runtime reference type.
func (c *Conn) ObjectReferenceType(obj ObjectID) (TypeTag, ReferenceTypeID, error) {
	e := c.newEncoder().writeObjectID(obj)
	d, err := c.send(csObjectReference, cmdObjRefReferenceType, e.bytes())
	if err != nil {
		return 0, 0, err
	}
	return TypeTag(d.readByte()), d.readReferenceTypeID(), nil
}

// InvokeInstanceMethod invokes a method on an object; see the resumption
// caveat on InvokeStaticMethod -- the same applies here.
func (c *Conn) InvokeInstanceMethod(obj ObjectID, thread ThreadID, class ReferenceTypeID, method MethodID, args []Value, options int32) (Value, ObjectID, error) {
	e := c.newEncoder().writeObjectID(obj).writeObjectID(thread).writeReferenceTypeID(class).writeMethodID(method)
	e.writeInt(int32(len(args)))
	for _, a := range args {
		e.writeValue(a)
	}
	e.writeInt(options)
	d, err := c.send(csObjectReference, cmdObjRefInvokeMethod, e.bytes())
	if err != nil {
		return Value{}, 0, err
	}
	ret := d.readValue()
	exc := d.readObjectID()
	return ret, exc, nil
}

// ArrayLength returns an array object's length.
func (c *Conn) ArrayLength(arr ObjectID) (int32, error) {
	e := c.newEncoder().writeObjectID(arr)
	d, err := c.send(csArrayReference, cmdArrRefLength, e.bytes())
	if err != nil {
		return 0, err
	}
	return d.readInt(), nil
}

// ArrayValues reads a contiguous slice of an array's elements.
func (c *Conn) ArrayValues(arr ObjectID, first, length int32) ([]Value, error) {
	e := c.newEncoder().writeObjectID(arr).writeInt(first).writeInt(length)
	d, err := c.send(csArrayReference, cmdArrRefGetValues, e.bytes())
	if err != nil {
		return nil, err
	}
	tag := Tag(d.readByte())
	n := int(d.readInt())
	out := make([]Value, 0, n)
	for i := 0; i < n; i++ {
		if isPrimitiveTag(tag) {
			out = append(out, readPrimitiveElement(d, tag))
		} else {
			out = append(out, d.readValue())
		}
	}
	return out, nil
}

func isPrimitiveTag(t Tag) bool {
	switch t {
	case TagObject, TagString, TagThread, TagThreadGroup, TagClassLoader, TagClassObject, TagArray:
		return false
	default:
		return true
	}
}

// readPrimitiveElement reads one element of a primitive array: unlike
// readValue, the per-element tag is not repeated on the wire.
func readPrimitiveElement(d *decoder, tag Tag) Value {
	v := Value{Tag: tag}
	switch tag {
	case TagLong, TagDouble:
		v.Prim = uint64(d.readLong())
	case TagBoolean, TagByte:
		v.Prim = uint64(d.readByte())
	case TagChar, TagShort:
		b0 := d.readByte()
		b1 := d.readByte()
		v.Prim = uint64(b0)<<8 | uint64(b1)
	default:
		v.Prim = uint64(uint32(d.readInt()))
	}
	return v
}
