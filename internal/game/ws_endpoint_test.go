package game

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsClient struct {
	t  *testing.T
	ws *websocket.Conn
}

func newWSServer(t *testing.T, grace time.Duration) (*httptest.Server, *Service) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(64, log)
	svc := NewService(Config{ReconnectGrace: grace}, NewStore(), hub, nil, log)
	server := NewServer(svc, hub, log)

	mux := http.NewServeMux()
	server.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, svc
}

func dial(t *testing.T, ts *httptest.Server) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return &wsClient{t: t, ws: ws}
}

func (c *wsClient) send(typ, id string, payload any) {
	c.t.Helper()
	env := Envelope{Type: typ, ID: id}
	if payload != nil {
		env.Payload = mustJSON(payload)
	}
	require.NoError(c.t, c.ws.WriteJSON(env))
}

// waitFor reads until an envelope of type typ (and id, when set) arrives.
func (c *wsClient) waitFor(typ, id string) Envelope {
	c.t.Helper()
	_ = c.ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := c.ws.ReadMessage()
		require.NoError(c.t, err, "waiting for %s", typ)
		var env Envelope
		if json.Unmarshal(data, &env) != nil {
			continue
		}
		if env.Type == typ && (id == "" || env.ID == id) {
			return env
		}
	}
}

func (c *wsClient) ack(id string) Ack {
	c.t.Helper()
	var a Ack
	require.NoError(c.t, json.Unmarshal(c.waitFor(EvtAck, id).Payload, &a))
	return a
}

func TestWS_CreateJoinAndAck(t *testing.T) {
	ts, _ := newWSServer(t, time.Minute)

	alice := dial(t, ts)
	alice.send(MsgCreateRoom, "1", CreateRoomPayload{Name: "Alice"})
	created := alice.ack("1")
	require.True(t, created.OK, created.Error)
	require.Len(t, created.RoomCode, RoomCodeLength)
	require.NotEmpty(t, created.SessionID)

	bob := dial(t, ts)
	bob.send(MsgJoinRoom, "j", JoinRoomPayload{RoomCode: created.RoomCode, Name: "Bob"})
	joined := bob.ack("j")
	require.True(t, joined.OK, joined.Error)

	var st PublicState
	require.NoError(t, json.Unmarshal(alice.waitFor(EvtRoomUpdate, "").Payload, &st))
	for len(st.Players) < 2 {
		require.NoError(t, json.Unmarshal(alice.waitFor(EvtRoomUpdate, "").Payload, &st))
	}
	assert.Equal(t, "Bob", st.Players[1].Name)

	bob.send(MsgStartGame, "s", nil)
	started := bob.ack("s")
	assert.False(t, started.OK)
	assert.Equal(t, ErrNotCreator.Error(), started.Error)
}

func TestWS_BadFrames(t *testing.T) {
	ts, _ := newWSServer(t, time.Minute)
	c := dial(t, ts)

	require.NoError(t, c.ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	c.waitFor(EvtError, "")

	c.send("nope", "", nil)
	c.waitFor(EvtError, "")

	c.send(MsgJoinRoom, "x", json.RawMessage(`{"roomCode": 5}`))
	a := c.ack("x")
	assert.False(t, a.OK)
	assert.Equal(t, "invalid payload", a.Error)

	c.send(MsgKickPlayer, "k", KickPlayerPayload{TargetPlayerID: "someone"})
	a = c.ack("k")
	assert.Equal(t, ErrNotInRoom.Error(), a.Error)
}

func TestWS_CloseInLobbyLeavesRoom(t *testing.T) {
	ts, svc := newWSServer(t, time.Minute)

	c := dial(t, ts)
	c.send(MsgCreateRoom, "1", CreateRoomPayload{Name: "Solo"})
	require.True(t, c.ack("1").OK)
	require.Equal(t, 1, svc.Store().Len())

	require.NoError(t, c.ws.Close())
	require.Eventually(t, func() bool { return svc.Store().Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_SendDistinguishesFullBufferFromClosedConn(t *testing.T) {
	var buf bytes.Buffer
	hub := NewHub(1, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	slow := &ClientConn{addr: "slow", send: make(chan []byte, 1), done: make(chan struct{})}
	gone := &ClientConn{addr: "gone", send: make(chan []byte, 1), done: make(chan struct{})}
	close(gone.done)
	hub.conns[slow.addr] = slow
	hub.conns[gone.addr] = gone

	env := Envelope{Type: EvtRoomUpdate}
	hub.Send("gone", env)
	assert.NotContains(t, buf.String(), "send buffer full")
	assert.Contains(t, buf.String(), "send to closed connection")

	hub.Send("slow", env)
	assert.NotContains(t, buf.String(), "send buffer full")
	hub.Send("slow", env)
	assert.Contains(t, buf.String(), "send buffer full")
	assert.Len(t, slow.send, 1)
}
