package signal_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	router "github.com/beaconlabs/signaling/internal/adapters/http"
	"github.com/beaconlabs/signaling/internal/adapters/signal"
	"github.com/beaconlabs/signaling/internal/app"
	"github.com/beaconlabs/signaling/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Mode:         "release",
		ReadLimit:    65536,
		PingPeriod:   54 * time.Second,
		WriteTimeout: 5 * time.Second,
		SendBuffer:   32,
		Secret:       "test-secret",
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *app.Rooms) {
	t.Helper()
	cfg := testConfig()
	rooms := app.NewRooms()
	rt := app.NewRouter(app.NewSessions(), rooms, app.DropPolicy{})
	ctl := signal.NewController(rt, cfg)
	echo := signal.NewEchoHub(cfg)

	srv := httptest.NewServer(router.SetupRouter(context.Background(), cfg, ctl, echo, rooms))
	t.Cleanup(srv.Close)
	return srv, rooms
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readJSON(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	var m map[string]any
	require.NoError(t, ws.ReadJSON(&m))
	return m
}

func TestSignalJoinAndRelay(t *testing.T) {
	srv, _ := newTestServer(t)
	a := dial(t, srv, "/api/ws/signal")
	b := dial(t, srv, "/api/ws/signal")

	require.NoError(t, a.WriteJSON(map[string]any{"type": "join", "roomId": "r1", "userId": "alice"}))
	state := readJSON(t, a)
	require.Equal(t, "room_state", state["type"])
	require.Equal(t, float64(1), state["count"])

	require.NoError(t, b.WriteJSON(map[string]any{"type": "join", "roomId": "r1", "userId": "bob"}))
	state = readJSON(t, b)
	require.Equal(t, "room_state", state["type"])
	require.Equal(t, float64(2), state["count"])
	require.Equal(t, []any{"alice"}, state["members"])

	notice := readJSON(t, a)
	require.Equal(t, "join", notice["type"])
	require.Equal(t, "r1", notice["roomId"])
	require.Equal(t, "bob", notice["userId"])

	// Offer goes to the peer verbatim, extra fields included.
	require.NoError(t, b.WriteJSON(map[string]any{"type": "offer", "roomId": "r1", "sdp": "v=0"}))
	offer := readJSON(t, a)
	require.Equal(t, "offer", offer["type"])
	require.Equal(t, "v=0", offer["sdp"])

	// Candidate without roomId falls back to the session's room.
	require.NoError(t, a.WriteJSON(map[string]any{"type": "candidate", "candidate": "candidate:1"}))
	cand := readJSON(t, b)
	require.Equal(t, "candidate", cand["type"])
	require.Equal(t, "candidate:1", cand["candidate"])
}

func TestSignalDisconnectBroadcastsLeave(t *testing.T) {
	srv, rooms := newTestServer(t)
	a := dial(t, srv, "/api/ws/signal")
	b := dial(t, srv, "/api/ws/signal")

	require.NoError(t, a.WriteJSON(map[string]any{"type": "join", "roomId": "r1", "userId": "alice"}))
	readJSON(t, a) // room_state
	require.NoError(t, b.WriteJSON(map[string]any{"type": "join", "roomId": "r1", "userId": "bob"}))
	readJSON(t, b) // room_state
	readJSON(t, a) // join notice

	require.NoError(t, b.Close())

	notice := readJSON(t, a)
	require.Equal(t, "leave", notice["type"])
	require.Equal(t, "r1", notice["roomId"])
	require.Equal(t, "bob", notice["userId"])

	require.Eventually(t, func() bool {
		members := rooms.Members("r1")
		return len(members) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSignalMalformedFrameKeepsConnection(t *testing.T) {
	srv, _ := newTestServer(t)
	a := dial(t, srv, "/api/ws/signal")
	b := dial(t, srv, "/api/ws/signal")

	require.NoError(t, a.WriteJSON(map[string]any{"type": "join", "roomId": "r1", "userId": "alice"}))
	readJSON(t, a)
	require.NoError(t, b.WriteJSON(map[string]any{"type": "join", "roomId": "r1", "userId": "bob"}))
	readJSON(t, b)
	readJSON(t, a)

	require.NoError(t, b.WriteMessage(websocket.TextMessage, []byte("not json at all")))

	// The malformed frame was dropped; b is still connected and relaying.
	require.NoError(t, b.WriteJSON(map[string]any{"type": "offer", "roomId": "r1", "sdp": "v=0"}))
	offer := readJSON(t, a)
	require.Equal(t, "offer", offer["type"])
}

func TestEchoBroadcast(t *testing.T) {
	srv, _ := newTestServer(t)
	a := dial(t, srv, "/api/ws/echo")
	b := dial(t, srv, "/api/ws/echo")

	// Both endpoints must be registered before the frame is sent; give the
	// second connection a moment to finish its handshake server-side.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("hi")))

	for _, ws := range []*websocket.Conn{a, b} {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, "Echo: hi", string(data))
	}
}
