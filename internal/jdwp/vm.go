package jdwp

const (
	csVirtualMachine = 1
)

const (
	cmdVMVersion         = 1
	cmdVMClassesBySignature = 2
	cmdVMAllClasses      = 3
	cmdVMAllThreads      = 4
	cmdVMDispose         = 6
	cmdVMIDSizes         = 7
	cmdVMSuspend         = 8
	cmdVMResume          = 9
	cmdVMExit            = 10
	cmdVMCreateString    = 11
	cmdVMHoldEvents      = 15
	cmdVMReleaseEvents   = 16
)

// idSizes issues VirtualMachine.IDSizes. Called once at attach time before
// any other decoding can happen, so it can't go through the normal decoder
// helpers (those need c.sizes populated already).
func (c *Conn) idSizes() (IDSizes, error) {
	d, err := c.send(csVirtualMachine, cmdVMIDSizes, nil)
	if err != nil {
		return IDSizes{}, err
	}
	return IDSizes{
		FieldIDSize:         int(d.readInt()),
		MethodIDSize:        int(d.readInt()),
		ObjectIDSize:        int(d.readInt()),
		ReferenceTypeIDSize: int(d.readInt()),
		FrameIDSize:         int(d.readInt()),
	}, nil
}

// LoadedReferenceType describes one entry of VirtualMachine.AllClasses.
type LoadedReferenceType struct {
	TypeTag   TypeTag
	ID        ReferenceTypeID
	Signature string
	Status    int32
}

// AllClasses enumerates every class currently loaded in the target.
func (c *Conn) AllClasses() ([]LoadedReferenceType, error) {
	d, err := c.send(csVirtualMachine, cmdVMAllClasses, nil)
	if err != nil {
		return nil, err
	}
	n := int(d.readInt())
	out := make([]LoadedReferenceType, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, LoadedReferenceType{
			TypeTag:   TypeTag(d.readByte()),
			ID:        d.readReferenceTypeID(),
			Signature: d.readString(),
			Status:    d.readInt(),
		})
	}
	return out, nil
}

// Resume resumes every suspended thread in the target VM.
func (c *Conn) Resume() error {
	_, err := c.send(csVirtualMachine, cmdVMResume, nil)
	return err
}

// Suspend suspends every thread in the target VM.
func (c *Conn) Suspend() error {
	_, err := c.send(csVirtualMachine, cmdVMSuspend, nil)
	return err
}

// AllThreads enumerates every thread currently running in the target.
func (c *Conn) AllThreads() ([]ThreadID, error) {
	d, err := c.send(csVirtualMachine, cmdVMAllThreads, nil)
	if err != nil {
		return nil, err
	}
	n := int(d.readInt())
	out := make([]ThreadID, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, d.readObjectID())
	}
	return out, nil
}

// Dispose releases the debug session, letting the target run free.
func (c *Conn) Dispose() error {
	_, err := c.send(csVirtualMachine, cmdVMDispose, nil)
	return err
}

// CreateString interns a string in the target and returns its object id,
// used when constructing arguments for invoked methods.
func (c *Conn) CreateString(s string) (ObjectID, error) {
	e := c.newEncoder().writeString(s)
	d, err := c.send(csVirtualMachine, cmdVMCreateString, e.bytes())
	if err != nil {
		return 0, err
	}
	return d.readObjectID(), nil
}
