package game

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pingPeriod   = 25 * time.Second
	writeWait    = 10 * time.Second
	maxFrameSize = 64 << 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type ClientConn struct {
	addr string
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
}

var (
	errConnClosed = errors.New("connection closed")
	errSendFull   = errors.New("send buffer full")
)

// enqueue never blocks: a client that cannot keep up loses messages, the room
// does not wait for it.
func (c *ClientConn) enqueue(msg []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return errSendFull
	}
}

func (c *ClientConn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *ClientConn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

// Hub maps transport addresses to live connections. It is the Transport the
// Service sends through.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*ClientConn

	sendBuffer int
	log        *slog.Logger
}

func NewHub(sendBuffer int, log *slog.Logger) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		conns:      make(map[string]*ClientConn),
		sendBuffer: sendBuffer,
		log:        log,
	}
}

func (h *Hub) Send(addr string, env Envelope) {
	h.mu.RLock()
	c, ok := h.conns[addr]
	h.mu.RUnlock()
	if !ok {
		return
	}
	b, err := json.Marshal(env)
	if err != nil {
		h.log.Error("encode envelope", "type", env.Type, "err", err)
		return
	}
	switch err := c.enqueue(b); {
	case errors.Is(err, errSendFull):
		h.log.Warn("send buffer full, message dropped", "addr", addr, "type", env.Type)
	case err != nil:
		h.log.Debug("send to closed connection", "addr", addr, "type", env.Type)
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) register(ws *websocket.Conn) *ClientConn {
	c := &ClientConn{
		addr: uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, h.sendBuffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.conns[c.addr] = c
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(c *ClientConn) {
	h.mu.Lock()
	delete(h.conns, c.addr)
	h.mu.Unlock()
	c.Close()
}

// handleWS: WebSocket вход в комнату. Room and identity are negotiated with
// room:create / room:join over the socket itself.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ws.SetReadLimit(maxFrameSize)

	cc := s.hub.register(ws)
	log := s.log.With("addr", cc.addr)
	log.Debug("connection opened")

	go cc.writeLoop()

	// reader loop
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			break
		}
		s.dispatch(cc, data, log)
	}

	// disconnect
	s.svc.Disconnect(cc.addr)
	s.hub.unregister(cc)
	log.Debug("connection closed")
}

func (s *Server) dispatch(cc *ClientConn, data []byte, log *slog.Logger) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.reply(cc, Envelope{Type: EvtError, Payload: mustJSON(MessagePayload{Message: "invalid json"})})
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("command panicked", "type", env.Type, "panic", rec)
			s.ack(cc, env.ID, ackError(ErrInternal))
		}
	}()

	switch env.Type {
	case MsgCreateRoom:
		var p CreateRoomPayload
		if !decode(env.Payload, &p) {
			s.ack(cc, env.ID, Ack{Error: "invalid payload"})
			return
		}
		s.ack(cc, env.ID, s.svc.CreateRoom(cc.addr, p))

	case MsgJoinRoom:
		var p JoinRoomPayload
		if !decode(env.Payload, &p) {
			s.ack(cc, env.ID, Ack{Error: "invalid payload"})
			return
		}
		s.ack(cc, env.ID, s.svc.JoinRoom(cc.addr, p))

	case MsgProposeTeam:
		var p ProposeTeamPayload
		if decode(env.Payload, &p) {
			s.svc.ProposeTeam(cc.addr, p)
		}

	case MsgVoteTeam:
		var p VoteTeamPayload
		if decode(env.Payload, &p) {
			s.svc.VoteTeam(cc.addr, p)
		}

	case MsgMissionAction:
		var p MissionActionPayload
		if decode(env.Payload, &p) {
			s.svc.MissionAction(cc.addr, p)
		}

	case MsgRequestRole:
		s.svc.RequestRole(cc.addr)

	case MsgKickPlayer:
		var p KickPlayerPayload
		if !decode(env.Payload, &p) {
			s.ack(cc, env.ID, Ack{Error: "invalid payload"})
			return
		}
		s.ack(cc, env.ID, s.svc.KickPlayer(cc.addr, p))

	case MsgChangeLeader:
		var p ChangeLeaderPayload
		if !decode(env.Payload, &p) {
			s.ack(cc, env.ID, Ack{Error: "invalid payload"})
			return
		}
		s.ack(cc, env.ID, s.svc.ChangeLeader(cc.addr, p))

	case MsgStartGame:
		s.ack(cc, env.ID, s.svc.StartGame(cc.addr))

	case MsgRestartGame:
		s.ack(cc, env.ID, s.svc.RestartGame(cc.addr))

	case MsgReturnToLobby:
		s.ack(cc, env.ID, s.svc.ReturnToLobby(cc.addr))

	default:
		s.reply(cc, Envelope{Type: EvtError, Payload: mustJSON(MessagePayload{Message: "unknown message type"})})
	}
}

func (s *Server) ack(cc *ClientConn, id string, a Ack) {
	s.reply(cc, Envelope{Type: EvtAck, ID: id, Payload: mustJSON(a)})
}

func (s *Server) reply(cc *ClientConn, env Envelope) {
	s.hub.Send(cc.addr, env)
}

func decode(raw json.RawMessage, v any) bool {
	if len(raw) == 0 {
		return true
	}
	return json.Unmarshal(raw, v) == nil
}
