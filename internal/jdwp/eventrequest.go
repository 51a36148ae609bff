package jdwp

const csEventRequest = 15

const (
	cmdEventRequestSet   = 1
	cmdEventRequestClear = 2
	cmdEventRequestClearAllBreakpoints = 3
)

// ModKind identifies an event-request modifier kind (JDWP EventRequest.Set
// modifier union discriminant).
type ModKind byte

const (
	ModCount        ModKind = 1
	ModClassMatch   ModKind = 5
	ModLocationOnly ModKind = 7
	ModExceptionOnly ModKind = 8
)

// Modifier is one constraint narrowing which occurrences of an event kind
// are reported.
type Modifier struct {
	Kind ModKind

	// ModLocationOnly
	Location Location

	// ModClassMatch
	ClassPattern string

	// ModExceptionOnly
	ExceptionType   ReferenceTypeID
	Caught          bool
	Uncaught        bool

	// ModCount
	Count int32
}

func (m Modifier) encode(e *encoder) {
	e.writeByte(byte(m.Kind))
	switch m.Kind {
	case ModCount:
		e.writeInt(m.Count)
	case ModClassMatch:
		e.writeString(m.ClassPattern)
	case ModLocationOnly:
		e.writeLocation(m.Location)
	case ModExceptionOnly:
		e.writeReferenceTypeID(m.ExceptionType)
		e.writeByte(boolByte(m.Caught))
		e.writeByte(boolByte(m.Uncaught))
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// SetEventRequest installs a new event request and returns its request id,
// used for breakpoints, class-prepare watches and exception requests alike.
func (c *Conn) SetEventRequest(kind EventKind, policy SuspendPolicy, mods []Modifier) (int32, error) {
	e := c.newEncoder().writeByte(byte(kind)).writeByte(byte(policy)).writeInt(int32(len(mods)))
	for _, m := range mods {
		m.encode(e)
	}
	d, err := c.send(csEventRequest, cmdEventRequestSet, e.bytes())
	if err != nil {
		return 0, err
	}
	return d.readInt(), nil
}

// ClearEventRequest removes a previously installed event request.
func (c *Conn) ClearEventRequest(kind EventKind, requestID int32) error {
	e := c.newEncoder().writeByte(byte(kind)).writeInt(requestID)
	_, err := c.send(csEventRequest, cmdEventRequestClear, e.bytes())
	return err
}
