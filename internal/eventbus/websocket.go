// Package eventbus pushes debughost.EventBus occurrences out over a bare
// WebSocket connection, standing in for the CDP JSON-RPC layer that
// spec.md places out of scope (see debughost.EventBus for the in-process
// fan-out this wraps). One frame per HostEvent, JSON-encoded.
package eventbus

import (
	"net/http"
	"sync"
	"time"

	"apex-build/internal/debughost"
	"apex-build/internal/hostlog"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// upgrader mirrors internal/debugging's CDP upgrader: generous buffers, and
// origin checking left to a reverse proxy in front of this process.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Frame is the wire shape of one forwarded event.
type Frame struct {
	Kind      string      `json:"kind"`
	Script    *scriptView `json:"script,omitempty"`
	Frames    []frameView `json:"frames,omitempty"`
	Error     interface{} `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type scriptView struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type frameView struct {
	ID           string `json:"id"`
	FunctionName string `json:"functionName"`
}

func eventKindName(k debughost.EventKind) string {
	switch k {
	case debughost.EventScriptAdded:
		return "scriptAdded"
	case debughost.EventHitBreakpoint:
		return "hitBreakpoint"
	case debughost.EventResumed:
		return "resumed"
	case debughost.EventUncaughtError:
		return "uncaughtError"
	case debughost.EventInitialInitializationComplete:
		return "initializationComplete"
	default:
		return "unknown"
	}
}

func toFrame(ev debughost.HostEvent) Frame {
	f := Frame{Kind: eventKindName(ev.Kind), Timestamp: time.Now()}
	if ev.Script != nil {
		f.Script = &scriptView{ID: ev.Script.ID, URL: ev.Script.URL}
	}
	for _, sf := range ev.StackFrames {
		f.Frames = append(f.Frames, frameView{ID: sf.ID, FunctionName: sf.FunctionName})
	}
	if ev.Error != nil {
		f.Error = ev.Error
	}
	return f
}

// Hub upgrades incoming HTTP connections to WebSockets and forwards every
// event published on a Host's EventBus to each connected client, one
// goroutine and one EventBus subscription per connection.
type Hub struct {
	host *debughost.Host
	log  *zap.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewHub builds a Hub that forwards host's events to each connection its
// Handler serves.
func NewHub(host *debughost.Host) *Hub {
	return &Hub{host: host, log: hostlog.L(), clients: make(map[*websocket.Conn]struct{})}
}

// Handler upgrades the request and registers the connection as a forwarding
// target until it errors or closes.
func (h *Hub) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("eventbus: websocket upgrade failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	sub := h.host.Events.Subscribe()
	defer func() {
		h.host.Events.Unsubscribe(sub)
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	// Drain inbound frames purely to detect client disconnects; this
	// transport is push-only, there is no client->server command set.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for ev := range sub {
		if err := conn.WriteJSON(toFrame(ev)); err != nil {
			return
		}
	}
}

// Broadcast pushes a single frame to every currently-connected client
// immediately, bypassing the per-connection subscription, for frames that
// are not Host events.
func (h *Hub) Broadcast(frame Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.WriteJSON(frame)
	}
}
