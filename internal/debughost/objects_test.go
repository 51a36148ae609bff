package debughost

import (
	"math"
	"testing"

	"apex-build/internal/jdwp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectRegistryRegisterLookupClear(t *testing.T) {
	r := newObjectRegistry()

	id1 := r.register(jdwp.Value{Tag: jdwp.TagObject, Object: 1}, "Foo")
	id2 := r.register(jdwp.Value{Tag: jdwp.TagObject, Object: 2}, "Bar")
	assert.NotEqual(t, id1, id2)

	entry, ok := r.lookup(id1)
	require.True(t, ok)
	assert.Equal(t, "Foo", entry.className)

	r.clearCache()
	_, ok = r.lookup(id1)
	assert.False(t, ok)

	id3 := r.register(jdwp.Value{Tag: jdwp.TagObject, Object: 3}, "Baz")
	assert.Equal(t, ObjectID("obj$3"), id3)
}

func TestMarshalValuePrimitives(t *testing.T) {
	h := &Host{}

	boolNode := h.marshalValue(0, jdwp.Value{Tag: jdwp.TagBoolean, Prim: 1})
	assert.Equal(t, ValueSimple, boolNode.Kind)
	assert.True(t, boolNode.Simple.Bool)
	assert.Equal(t, "boolean", boolNode.Simple.Kind)

	intNode := h.marshalValue(0, jdwp.Value{Tag: jdwp.TagInt, Prim: uint64(uint32(int32(-5)))})
	assert.Equal(t, "number", intNode.Simple.Kind)
	assert.Equal(t, float64(-5), intNode.Simple.Number)

	voidNode := h.marshalValue(0, jdwp.Value{Tag: jdwp.TagVoid})
	assert.True(t, voidNode.Simple.IsUndefined)

	nullNode := h.marshalValue(0, jdwp.Value{Tag: jdwp.TagObject, Object: 0})
	assert.True(t, nullNode.Simple.IsNull)

	charNode := h.marshalValue(0, jdwp.Value{Tag: jdwp.TagChar, Prim: uint64('x')})
	assert.Equal(t, "x", charNode.Simple.String)
}

func TestBitsToFloat64(t *testing.T) {
	d := bitsToFloat64(jdwp.TagDouble, math.Float64bits(3.5))
	assert.Equal(t, 3.5, d)

	f := bitsToFloat64(jdwp.TagFloat, uint64(math.Float32bits(2.5)))
	assert.Equal(t, float64(2.5), f)
}

func TestGetObjectPropertiesRequiresPause(t *testing.T) {
	h := &Host{objects: newObjectRegistry()}
	_, err := h.GetObjectProperties(ObjectID("obj$1"), false, false)
	assert.ErrorIs(t, err, ErrIllegalState)
}

func TestGetObjectPropertiesUnknownID(t *testing.T) {
	h := &Host{objects: newObjectRegistry(), paused: &PausedData{}}
	_, err := h.GetObjectProperties(ObjectID("missing"), false, false)
	assert.ErrorIs(t, err, ErrUnknownObject)
}

func TestGetObjectPropertiesNullObject(t *testing.T) {
	reg := newObjectRegistry()
	id := reg.register(jdwp.Value{Tag: jdwp.TagObject, Object: 0}, "")
	h := &Host{objects: reg, paused: &PausedData{}}

	props, err := h.GetObjectProperties(id, false, false)
	require.NoError(t, err)
	assert.Nil(t, props)
}
