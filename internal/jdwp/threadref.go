package jdwp

const csThreadReference = 11
const csStackFrame = 16

const (
	cmdThreadName       = 1
	cmdThreadSuspend    = 2
	cmdThreadResume     = 3
	cmdThreadFrames     = 6
	cmdThreadFrameCount = 7
)

const (
	cmdFrameGetValues = 1
	cmdFrameSetValues = 2
	cmdFrameThisObject = 3
)

// FrameInfo is one entry of ThreadReference.Frames: a frame id paired with
// its current location.
type FrameInfo struct {
	ID       FrameID
	Location Location
}

// ThreadName returns a thread's name.
func (c *Conn) ThreadName(t ThreadID) (string, error) {
	e := c.newEncoder().writeObjectID(t)
	d, err := c.send(csThreadReference, cmdThreadName, e.bytes())
	if err != nil {
		return "", err
	}
	return d.readString(), nil
}

// Frames returns up to length frames of a thread's call stack starting at
// startFrame (length -1 means "all").
func (c *Conn) Frames(t ThreadID, startFrame, length int32) ([]FrameInfo, error) {
	e := c.newEncoder().writeObjectID(t).writeInt(startFrame).writeInt(length)
	d, err := c.send(csThreadReference, cmdThreadFrames, e.bytes())
	if err != nil {
		return nil, err
	}
	n := int(d.readInt())
	out := make([]FrameInfo, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, FrameInfo{ID: d.readFrameID(), Location: d.readLocation()})
	}
	return out, nil
}

// FrameCount returns the number of frames currently on a thread's stack.
func (c *Conn) FrameCount(t ThreadID) (int32, error) {
	e := c.newEncoder().writeObjectID(t)
	d, err := c.send(csThreadReference, cmdThreadFrameCount, e.bytes())
	if err != nil {
		return 0, err
	}
	return d.readInt(), nil
}

// Slot identifies one local-variable slot to read or write.
type Slot struct {
	Index int32
	Tag   Tag
}

// GetFrameValues reads a batch of local-variable slots from one frame. If
// the target replies INVALID_SLOT, the caller degrades to one-slot-at-a-time
// reads -- this method makes no attempt to retry internally so that
// distinction is visible to the pause engine.
func (c *Conn) GetFrameValues(t ThreadID, f FrameID, slots []Slot) ([]Value, error) {
	e := c.newEncoder().writeObjectID(t).writeFrameID(f).writeInt(int32(len(slots)))
	for _, s := range slots {
		e.writeInt(s.Index)
		e.writeByte(byte(s.Tag))
	}
	d, err := c.send(csStackFrame, cmdFrameGetValues, e.bytes())
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

// SetFrameValue writes one local-variable slot on a still-live frame, the
// write-back step of scope-synthesis evaluation.
func (c *Conn) SetFrameValue(t ThreadID, f FrameID, slot int32, v Value) error {
	e := c.newEncoder().writeObjectID(t).writeFrameID(f).writeInt(1)
	e.writeInt(slot)
	e.writeValue(v)
	_, err := c.send(csStackFrame, cmdFrameSetValues, e.bytes())
	return err
}

// ThisObject returns a frame's receiver ("this"), or a null object id for a
// static frame.
func (c *Conn) ThisObject(t ThreadID, f FrameID) (ObjectID, error) {
	e := c.newEncoder().writeObjectID(t).writeFrameID(f)
	d, err := c.send(csStackFrame, cmdFrameThisObject, e.bytes())
	if err != nil {
		return 0, err
	}
	v := d.readValue()
	return v.Object, nil
}
