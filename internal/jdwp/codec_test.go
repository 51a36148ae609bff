package jdwp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConn() *Conn {
	return &Conn{sizes: IDSizes{
		FieldIDSize:         8,
		MethodIDSize:        8,
		ObjectIDSize:        8,
		ReferenceTypeIDSize: 8,
		FrameIDSize:         8,
	}}
}

func TestEncodeDecodeIntRoundtrip(t *testing.T) {
	c := testConn()
	e := c.newEncoder()
	e.writeInt(-42)
	e.writeInt(1234567)

	d := c.newDecoder(e.bytes())
	assert.Equal(t, int32(-42), d.readInt())
	assert.Equal(t, int32(1234567), d.readInt())
	require.NoError(t, d.err())
}

func TestEncodeDecodeLongRoundtrip(t *testing.T) {
	c := testConn()
	e := c.newEncoder()
	e.writeLong(-1)
	e.writeLong(9007199254740993)

	d := c.newDecoder(e.bytes())
	assert.Equal(t, int64(-1), d.readLong())
	assert.Equal(t, int64(9007199254740993), d.readLong())
}

func TestEncodeDecodeStringRoundtrip(t *testing.T) {
	c := testConn()
	e := c.newEncoder()
	e.writeString("hello, jdwp")

	d := c.newDecoder(e.bytes())
	assert.Equal(t, "hello, jdwp", d.readString())
}

func TestEncodeDecodeObjectIDRoundtrip(t *testing.T) {
	c := testConn()
	e := c.newEncoder()
	e.writeObjectID(ObjectID(0xdeadbeef))

	d := c.newDecoder(e.bytes())
	assert.Equal(t, ObjectID(0xdeadbeef), d.readObjectID())
}

func TestEncodeDecodeLocationRoundtrip(t *testing.T) {
	c := testConn()
	loc := Location{TypeTag: TypeTagClass, Class: 7, Method: 3, CodeIndex: 42}
	e := c.newEncoder()
	e.writeLocation(loc)

	d := c.newDecoder(e.bytes())
	assert.Equal(t, loc, d.readLocation())
}

func TestEncodeDecodeValueVariants(t *testing.T) {
	c := testConn()
	cases := []Value{
		{Tag: TagInt, Prim: uint64(uint32(int32(-7)))},
		{Tag: TagBoolean, Prim: 1},
		{Tag: TagObject, Object: ObjectID(99)},
		{Tag: TagLong, Prim: uint64(int64(-123456789))},
	}
	for _, v := range cases {
		e := c.newEncoder()
		e.writeValue(v)
		d := c.newDecoder(e.bytes())
		assert.Equal(t, v, d.readValue())
	}
}

func TestDecoderRemaining(t *testing.T) {
	c := testConn()
	e := c.newEncoder()
	e.writeInt(1)
	e.writeInt(2)

	d := c.newDecoder(e.bytes())
	assert.Equal(t, 8, d.remaining())
	d.readInt()
	assert.Equal(t, 4, d.remaining())
}

func TestIsInvalidSlot(t *testing.T) {
	assert.True(t, IsInvalidSlot(&Error{Code: ErrInvalidSlot}))
	assert.False(t, IsInvalidSlot(&Error{Code: ErrInvalidIndex}))
	assert.False(t, IsInvalidSlot(nil))
}

func TestTagFromSignature(t *testing.T) {
	assert.Equal(t, TagArray, TagFromSignature("[I"))
	assert.Equal(t, TagObject, TagFromSignature("Ljava/lang/String;"))
	assert.Equal(t, TagInt, TagFromSignature("I"))
	assert.Equal(t, TagObject, TagFromSignature(""))
}
