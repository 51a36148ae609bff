package jdwp

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// encoder builds a JDWP command packet body in big-endian wire order.
type encoder struct {
	buf  bytes.Buffer
	conn *Conn
}

func (c *Conn) newEncoder() *encoder {
	return &encoder{conn: c}
}

func (e *encoder) writeByte(b byte) *encoder {
	e.buf.WriteByte(b)
	return e
}

func (e *encoder) writeInt(v int32) *encoder {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	e.buf.Write(b[:])
	return e
}

func (e *encoder) writeLong(v int64) *encoder {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	e.buf.Write(b[:])
	return e
}

func (e *encoder) writeString(s string) *encoder {
	e.writeInt(int32(len(s)))
	e.buf.WriteString(s)
	return e
}

func (e *encoder) writeID(v uint64, size int) *encoder {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf.Write(b[8-size:])
	return e
}

func (e *encoder) writeObjectID(id ObjectID) *encoder {
	return e.writeID(uint64(id), e.conn.sizes.ObjectIDSize)
}

func (e *encoder) writeReferenceTypeID(id ReferenceTypeID) *encoder {
	return e.writeID(uint64(id), e.conn.sizes.ReferenceTypeIDSize)
}

func (e *encoder) writeMethodID(id MethodID) *encoder {
	return e.writeID(uint64(id), e.conn.sizes.MethodIDSize)
}

func (e *encoder) writeFieldID(id FieldID) *encoder {
	return e.writeID(uint64(id), e.conn.sizes.FieldIDSize)
}

func (e *encoder) writeFrameID(id FrameID) *encoder {
	return e.writeID(uint64(id), e.conn.sizes.FrameIDSize)
}

func (e *encoder) writeLocation(loc Location) *encoder {
	e.writeByte(byte(loc.TypeTag))
	e.writeReferenceTypeID(loc.Class)
	e.writeMethodID(loc.Method)
	e.writeLong(int64(loc.CodeIndex))
	return e
}

func (e *encoder) writeValue(v Value) *encoder {
	e.writeByte(byte(v.Tag))
	switch v.Tag {
	case TagObject, TagString, TagThread, TagThreadGroup, TagClassLoader, TagClassObject, TagArray:
		e.writeObjectID(v.Object)
	case TagLong, TagDouble:
		e.writeLong(int64(v.Prim))
	case TagBoolean, TagByte:
		e.writeByte(byte(v.Prim))
	case TagChar, TagShort:
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(v.Prim))
		e.buf.Write(b[:])
	default:
		e.writeInt(int32(v.Prim))
	}
	return e
}

func (e *encoder) bytes() []byte {
	return e.buf.Bytes()
}

// decoder reads a JDWP reply body in big-endian wire order.
type decoder struct {
	data []byte
	off  int
	conn *Conn
}

func (c *Conn) newDecoder(data []byte) *decoder {
	return &decoder{data: data, conn: c}
}

func (d *decoder) err() error {
	if d.off > len(d.data) {
		return fmt.Errorf("jdwp: decode past end of packet (off=%d len=%d)", d.off, len(d.data))
	}
	return nil
}

func (d *decoder) readByte() byte {
	b := d.data[d.off]
	d.off++
	return b
}

func (d *decoder) readInt() int32 {
	v := binary.BigEndian.Uint32(d.data[d.off : d.off+4])
	d.off += 4
	return int32(v)
}

func (d *decoder) readLong() int64 {
	v := binary.BigEndian.Uint64(d.data[d.off : d.off+8])
	d.off += 8
	return int64(v)
}

func (d *decoder) readString() string {
	n := int(d.readInt())
	s := string(d.data[d.off : d.off+n])
	d.off += n
	return s
}

func (d *decoder) readID(size int) uint64 {
	var b [8]byte
	copy(b[8-size:], d.data[d.off:d.off+size])
	d.off += size
	return binary.BigEndian.Uint64(b[:])
}

func (d *decoder) readObjectID() ObjectID {
	return ObjectID(d.readID(d.conn.sizes.ObjectIDSize))
}

func (d *decoder) readReferenceTypeID() ReferenceTypeID {
	return ReferenceTypeID(d.readID(d.conn.sizes.ReferenceTypeIDSize))
}

func (d *decoder) readMethodID() MethodID {
	return MethodID(d.readID(d.conn.sizes.MethodIDSize))
}

func (d *decoder) readFieldID() FieldID {
	return FieldID(d.readID(d.conn.sizes.FieldIDSize))
}

func (d *decoder) readFrameID() FrameID {
	return FrameID(d.readID(d.conn.sizes.FrameIDSize))
}

func (d *decoder) readLocation() Location {
	return Location{
		TypeTag:   TypeTag(d.readByte()),
		Class:     d.readReferenceTypeID(),
		Method:    d.readMethodID(),
		CodeIndex: uint64(d.readLong()),
	}
}

func (d *decoder) readValue() Value {
	tag := Tag(d.readByte())
	v := Value{Tag: tag}
	switch tag {
	case TagObject, TagString, TagThread, TagThreadGroup, TagClassLoader, TagClassObject, TagArray:
		v.Object = d.readObjectID()
	case TagLong, TagDouble:
		v.Prim = uint64(d.readLong())
	case TagBoolean, TagByte:
		v.Prim = uint64(d.readByte())
	case TagChar, TagShort:
		v.Prim = uint64(binary.BigEndian.Uint16(d.data[d.off : d.off+2]))
		d.off += 2
	default:
		v.Prim = uint64(uint32(d.readInt()))
	}
	return v
}

func (d *decoder) remaining() int {
	return len(d.data) - d.off
}
