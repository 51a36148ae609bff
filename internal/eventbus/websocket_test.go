package eventbus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"apex-build/internal/debughost"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestEventKindName(t *testing.T) {
	cases := map[debughost.EventKind]string{
		debughost.EventScriptAdded:                  "scriptAdded",
		debughost.EventHitBreakpoint:                 "hitBreakpoint",
		debughost.EventResumed:                       "resumed",
		debughost.EventUncaughtError:                 "uncaughtError",
		debughost.EventInitialInitializationComplete: "initializationComplete",
		debughost.EventKind(999):                     "unknown",
	}
	for kind, want := range cases {
		require.Equal(t, want, eventKindName(kind))
	}
}

func TestToFrameCarriesScript(t *testing.T) {
	ev := debughost.HostEvent{
		Kind:   debughost.EventScriptAdded,
		Script: &debughost.Script{ID: "script$1", URL: "file:///a.js"},
	}
	frame := toFrame(ev)
	require.Equal(t, "scriptAdded", frame.Kind)
	require.NotNil(t, frame.Script)
	require.Equal(t, "script$1", frame.Script.ID)
	require.Equal(t, "file:///a.js", frame.Script.URL)
}

func TestHubForwardsPublishedEvents(t *testing.T) {
	host := &debughost.Host{Events: debughost.NewEventBus()}
	hub := NewHub(host)

	server := httptest.NewServer(http.HandlerFunc(hub.Handler))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the server goroutine a moment to register the subscription
	// before publishing, since Subscribe happens asynchronously relative
	// to the client's Dial returning.
	time.Sleep(20 * time.Millisecond)

	host.Events.Publish(debughost.HostEvent{
		Kind:   debughost.EventScriptAdded,
		Script: &debughost.Script{ID: "script$1", URL: "file:///a.js"},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, "scriptAdded", frame.Kind)
	require.Equal(t, "script$1", frame.Script.ID)
}
