package jdwp

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

const handshake = "JDWP-Handshake"

const (
	flagReply        = 0x80
	commandSetEvent  = 64
	commandEventSet  = 100
)

// packet is a raw JDWP packet: a command (request) or a reply.
type packet struct {
	id     uint32
	flags  byte
	cmdSet byte
	cmd    byte
	err    ErrorCode
	data   []byte
}

// EventSet is a decoded composite command-set-64 event packet: one or more
// events sharing a suspend policy, delivered atomically by the target.
type EventSet struct {
	SuspendPolicy SuspendPolicy
	Events        []Event
}

// Event is a single decoded JDWP event within an EventSet.
type Event struct {
	Kind         EventKind
	RequestID    int32
	Thread       ThreadID
	Location     Location  // Breakpoint/SingleStep/MethodEntry/MethodExit/Exception
	RefTypeID    ReferenceTypeID
	Exception    ObjectID // Exception events only
	CatchLoc     Location // Exception events only; zero value if uncaught
	HasCatchLoc  bool
}

// ConnectError is returned by Connect when the target could not be reached.
// It carries a user-facing hint about the target's JDWP launch arguments,
// per spec.md section 4.1.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("jdwp: connect to %s failed: %v (target must be launched with "+
		"-agentlib:jdwp=transport=dt_socket,server=y,suspend=n,address=%s)", e.Addr, e.Err, e.Addr)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Conn is an attached JDWP connection: one socket, one reply-correlation
// table, one background reader feeding a serial event channel.
type Conn struct {
	conn   net.Conn
	r      *bufio.Reader
	sizes  IDSizes
	nextID uint32

	mu      sync.Mutex
	pending map[uint32]chan packet

	Events <-chan EventSet
	events chan EventSet

	closed chan struct{}
}

// Connect performs a JDWP socket-attach to host:port and negotiates ID
// sizes. No retries: a failed attach is fatal per spec.md's ConnectError.
func Connect(host string, port int) (*Conn, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	raw, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}

	c := &Conn{
		conn:    raw,
		r:       bufio.NewReader(raw),
		pending: make(map[uint32]chan packet),
		events:  make(chan EventSet, 64),
		closed:  make(chan struct{}),
	}
	c.Events = c.events

	if err := c.doHandshake(); err != nil {
		raw.Close()
		return nil, &ConnectError{Addr: addr, Err: err}
	}

	go c.readLoop()

	sizes, err := c.idSizes()
	if err != nil {
		raw.Close()
		return nil, &ConnectError{Addr: addr, Err: err}
	}
	c.sizes = sizes

	return c, nil
}

func (c *Conn) doHandshake() error {
	if _, err := c.conn.Write([]byte(handshake)); err != nil {
		return err
	}
	buf := make([]byte, len(handshake))
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return err
	}
	if string(buf) != handshake {
		return fmt.Errorf("unexpected handshake response %q", buf)
	}
	return nil
}

// send transmits a command packet and blocks for its reply.
func (c *Conn) send(cmdSet, cmd byte, body []byte) (*decoder, error) {
	id := atomic.AddUint32(&c.nextID, 1)
	ch := make(chan packet, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	hdr := make([]byte, 11)
	binary.BigEndian.PutUint32(hdr[0:4], uint32(11+len(body)))
	binary.BigEndian.PutUint32(hdr[4:8], id)
	hdr[8] = 0 // flags
	hdr[9] = cmdSet
	hdr[10] = cmd

	if _, err := c.conn.Write(append(hdr, body...)); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case p := <-ch:
		if p.err != ErrNone {
			return nil, &Error{Code: p.err}
		}
		return c.newDecoder(p.data), nil
	case <-c.closed:
		return nil, io.ErrClosedPipe
	}
}

// readLoop is the connection's sole reader: it demultiplexes replies to
// their waiting caller and forwards composite event-set packets to Events.
func (c *Conn) readLoop() {
	defer close(c.events)
	for {
		p, err := c.readPacket()
		if err != nil {
			close(c.closed)
			return
		}
		if p.flags&flagReply != 0 {
			c.mu.Lock()
			ch, ok := c.pending[p.id]
			if ok {
				delete(c.pending, p.id)
			}
			c.mu.Unlock()
			if ok {
				ch <- p
			}
			continue
		}
		if p.cmdSet == commandSetEvent && p.cmd == commandEventSet {
			es, err := c.decodeEventSet(p.data)
			if err == nil {
				c.events <- es
			}
		}
	}
}

func (c *Conn) readPacket() (packet, error) {
	hdr := make([]byte, 11)
	if _, err := io.ReadFull(c.r, hdr); err != nil {
		return packet{}, err
	}
	length := binary.BigEndian.Uint32(hdr[0:4])
	id := binary.BigEndian.Uint32(hdr[4:8])
	flags := hdr[8]

	var p packet
	p.id = id
	p.flags = flags

	body := make([]byte, int(length)-11)
	if len(body) > 0 {
		if _, err := io.ReadFull(c.r, body); err != nil {
			return packet{}, err
		}
	}

	if flags&flagReply != 0 {
		p.err = ErrorCode(binary.BigEndian.Uint16(hdr[9:11]))
		p.data = body
	} else {
		p.cmdSet = hdr[9]
		p.cmd = hdr[10]
		p.data = body
	}
	return p, nil
}

func (c *Conn) decodeEventSet(body []byte) (EventSet, error) {
	d := c.newDecoder(body)
	es := EventSet{SuspendPolicy: SuspendPolicy(d.readByte())}
	n := int(d.readInt())
	es.Events = make([]Event, 0, n)
	for i := 0; i < n; i++ {
		kind := EventKind(d.readByte())
		ev := Event{Kind: kind}
		switch kind {
		case EventVMStart:
			_ = d.readInt() // requestID
			ev.Thread = d.readObjectID()
		case EventBreakpoint, EventSingleStep, EventMethodEntry, EventMethodExit:
			ev.RequestID = d.readInt()
			ev.Thread = d.readObjectID()
			ev.Location = d.readLocation()
		case EventException:
			ev.RequestID = d.readInt()
			ev.Thread = d.readObjectID()
			ev.Location = d.readLocation()
			ev.Exception = d.readObjectID()
			tag := d.readByte()
			if tag != 0 {
				ev.CatchLoc = d.readLocation()
				ev.HasCatchLoc = true
			}
		case EventClassPrepare:
			ev.RequestID = d.readInt()
			ev.Thread = d.readObjectID()
			_ = d.readByte() // ref type tag
			ev.RefTypeID = d.readReferenceTypeID()
			_ = d.readString() // signature
			_ = d.readInt()    // status
		case EventClassUnload:
			ev.RequestID = d.readInt()
			_ = d.readString()
		case EventThreadStart, EventThreadDeath:
			ev.RequestID = d.readInt()
			ev.Thread = d.readObjectID()
		case EventVMDeath:
			ev.RequestID = d.readInt()
		default:
			ev.RequestID = d.readInt()
		}
		es.Events = append(es.Events, ev)
	}
	if err := d.err(); err != nil {
		return EventSet{}, err
	}
	return es, nil
}

// Close disposes the underlying socket.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Sizes returns the negotiated identifier widths.
func (c *Conn) Sizes() IDSizes {
	return c.sizes
}
