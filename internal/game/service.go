package game

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const maxNameLength = 32

// Transport delivers an envelope to one connection. Send must not block; it is
// called with a room lock held.
type Transport interface {
	Send(addr string, env Envelope)
}

type Config struct {
	ReconnectGrace time.Duration
}

// Service turns inbound commands into room mutations and fans the results out.
// Every command runs inside the room's mutex; the only other writer is the
// grace timer, which takes the same lock.
type Service struct {
	cfg   Config
	store *Store
	out   Transport
	rec   Recorder
	log   *slog.Logger
}

func NewService(cfg Config, store *Store, out Transport, rec Recorder, log *slog.Logger) *Service {
	if rec == nil {
		rec = nopRecorder{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{cfg: cfg, store: store, out: out, rec: rec, log: log}
}

func (s *Service) Store() *Store { return s.store }

type removeReason int

const (
	reasonLeft removeReason = iota
	reasonExpired
	reasonKicked
	reasonLobby
)

func (s *Service) CreateRoom(addr string, p CreateRoomPayload) Ack {
	name, err := cleanName(p.Name)
	if err != nil {
		return ackError(err)
	}
	if _, bound := s.store.SessionFor(addr); bound {
		return ackError(ErrAlreadyInRoom)
	}

	var sid string
	r, err := s.store.Create("", func(r *Room) {
		sid = r.addPlayerLocked(addr, name, "")
		r.creatorID = sid
	})
	if err != nil {
		s.log.Error("create room", "addr", addr, "err", err)
		return ackError(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s.log.Info("room created", "room", r.code, "session", sid)
	s.broadcastStateLocked(r)
	return Ack{OK: true, RoomCode: r.code, SessionID: sid}
}

// JoinRoom seats a new player, resumes a player inside their grace period, or
// moves a connected player to a new connection when the session id matches.
func (s *Service) JoinRoom(addr string, p JoinRoomPayload) Ack {
	code := strings.ToUpper(strings.TrimSpace(p.RoomCode))
	r, ok := s.store.Get(code)
	if !ok {
		return ackError(ErrRoomNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ackError(ErrRoomNotFound)
	}
	if b, bound := s.store.index.lookup(addr); bound && (b.code != code || b.sessionID != p.SessionID) {
		return ackError(ErrAlreadyInRoom)
	}

	if p.SessionID != "" {
		if pl, ok := r.reconnectLocked(p.SessionID, addr); ok {
			s.log.Info("player reconnected", "room", code, "session", pl.SessionID)
			s.broadcastLocked(r, EvtReconnected, PlayerEventPayload{
				PlayerID: pl.SessionID,
				Name:     pl.Name,
				Message:  fmt.Sprintf("%s reconnected", pl.Name),
			})
			s.broadcastStateLocked(r)
			s.sendRoleLocked(r, pl.SessionID)
			return Ack{OK: true, RoomCode: code, SessionID: pl.SessionID, Reconnected: true}
		}
		if pl := r.playerLocked(p.SessionID); pl != nil && pl.Connected {
			r.updateTransportLocked(pl.SessionID, addr)
			s.log.Info("session moved to new connection", "room", code, "session", pl.SessionID, "addr", addr)
			s.broadcastStateLocked(r)
			s.sendRoleLocked(r, pl.SessionID)
			return Ack{OK: true, RoomCode: code, SessionID: pl.SessionID, Reconnected: true}
		}
	}

	name, err := cleanName(p.Name)
	if err != nil {
		return ackError(err)
	}
	if err := r.canJoinLocked(); err != nil {
		if errors.Is(err, ErrInternal) {
			s.log.Error("join check", "room", code, "err", err)
		}
		return ackError(err)
	}

	sid := r.addPlayerLocked(addr, name, p.SessionID)
	s.log.Info("player joined", "room", code, "session", sid)
	s.broadcastStateLocked(r)
	return Ack{OK: true, RoomCode: code, SessionID: sid}
}

func (r *Room) canJoinLocked() error {
	if r.game == nil {
		if len(r.players) >= MaxPlayers {
			return ErrRoomFull
		}
		return nil
	}
	if r.game.MaxPlayers <= 0 {
		return fmt.Errorf("game without a player count: %w", ErrInternal)
	}
	if len(r.players) >= r.game.MaxPlayers {
		return ErrRoomFull
	}
	return ErrGameInProgress
}

func (s *Service) ProposeTeam(addr string, p ProposeTeamPayload) {
	_ = s.withActor(addr, func(r *Room, sid string) error {
		before := r.phaseLocked()
		if r.proposeTeamLocked(sid, p.TeamIDs) {
			s.afterChangeLocked(r, before)
		}
		return nil
	})
}

func (s *Service) VoteTeam(addr string, p VoteTeamPayload) {
	_ = s.withActor(addr, func(r *Room, sid string) error {
		before := r.phaseLocked()
		if r.voteTeamLocked(sid, p.Vote) {
			s.afterChangeLocked(r, before)
		}
		return nil
	})
}

func (s *Service) MissionAction(addr string, p MissionActionPayload) {
	_ = s.withActor(addr, func(r *Room, sid string) error {
		before := r.phaseLocked()
		if r.performMissionActionLocked(sid, p.Action) {
			s.afterChangeLocked(r, before)
		}
		return nil
	})
}

func (s *Service) RequestRole(addr string) {
	_ = s.withActor(addr, func(r *Room, sid string) error {
		s.sendRoleLocked(r, sid)
		return nil
	})
}

func (s *Service) KickPlayer(addr string, p KickPlayerPayload) Ack {
	return s.ackCommand(addr, func(r *Room, sid string) error {
		if err := r.checkKickLocked(sid, p.TargetPlayerID); err != nil {
			return err
		}
		if to, ok := r.transportLocked(p.TargetPlayerID); ok {
			s.out.Send(to, Envelope{
				Type:    EvtKicked,
				Payload: mustJSON(MessagePayload{Message: "you have been kicked from the room"}),
			})
		}
		s.removeLocked(r, p.TargetPlayerID, reasonKicked)
		return nil
	})
}

func (s *Service) ChangeLeader(addr string, p ChangeLeaderPayload) Ack {
	return s.ackCommand(addr, func(r *Room, sid string) error {
		if err := r.changeLeaderLocked(sid, p.NewLeaderIndex); err != nil {
			return err
		}
		s.broadcastStateLocked(r)
		return nil
	})
}

func (s *Service) StartGame(addr string) Ack {
	return s.ackCommand(addr, func(r *Room, sid string) error {
		if r.creatorID != sid {
			return ErrNotCreator
		}
		if r.game != nil {
			return ErrGameInProgress
		}
		if err := r.startLocked(r.lobbyLeader); err != nil {
			return err
		}
		s.log.Info("game started", "room", r.code, "players", len(r.players))
		s.broadcastStateLocked(r)
		s.sendRolesLocked(r)
		return nil
	})
}

func (s *Service) RestartGame(addr string) Ack {
	return s.ackCommand(addr, func(r *Room, sid string) error {
		if err := r.canEndGameLocked(sid); err != nil {
			return err
		}
		if err := r.restartLocked(); err != nil {
			return err
		}
		s.log.Info("game restarted", "room", r.code, "leader", r.game.LeaderIndex)
		s.broadcastStateLocked(r)
		s.sendRolesLocked(r)
		return nil
	})
}

func (s *Service) ReturnToLobby(addr string) Ack {
	return s.ackCommand(addr, func(r *Room, sid string) error {
		if r.game == nil {
			return nil
		}
		if err := r.canEndGameLocked(sid); err != nil {
			return err
		}
		r.returnToLobbyLocked()

		creator := r.creatorID
		var gone []string
		for _, p := range r.players {
			if !p.Connected {
				gone = append(gone, p.SessionID)
			}
		}
		for _, id := range gone {
			s.removeLocked(r, id, reasonLobby)
		}
		if r.closed {
			return nil
		}
		if r.creatorID != creator {
			s.announceCreatorLocked(r)
		}
		s.log.Info("room back in lobby", "room", r.code, "dropped", len(gone))
		s.broadcastStateLocked(r)
		return nil
	})
}

func (r *Room) canEndGameLocked(sid string) error {
	if r.game == nil {
		return ErrGameNotStarted
	}
	if r.creatorID != sid && r.game.Phase != PhaseReveal {
		return ErrCreatorOnlyBefore
	}
	return nil
}

// Disconnect is called once the connection behind addr is gone.
func (s *Service) Disconnect(addr string) {
	_ = s.withActor(addr, func(r *Room, sid string) error {
		if r.game == nil {
			s.removeLocked(r, sid, reasonLeft)
			return nil
		}

		code := r.code
		before := r.phaseLocked()
		if !r.markDisconnectedLocked(sid, s.cfg.ReconnectGrace, func(token int64) {
			s.expireGrace(code, sid, token)
		}) {
			return nil
		}
		p := r.playerLocked(sid)
		s.log.Info("player disconnected", "room", code, "session", sid, "grace", s.cfg.ReconnectGrace)
		s.broadcastLocked(r, EvtDisconnected, PlayerEventPayload{
			PlayerID:  sid,
			Name:      p.Name,
			Message:   fmt.Sprintf("%s disconnected", p.Name),
			Temporary: true,
		})

		r.settleLocked()
		s.afterChangeLocked(r, before)
		return nil
	})
}

func (s *Service) expireGrace(code, sid string, token int64) {
	r, ok := s.store.Get(code)
	if !ok {
		s.log.Debug("grace timer for a deleted room", "room", code, "session", sid)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.expireLocked(sid, token) {
		s.log.Debug("stale grace timer", "room", code, "session", sid)
		return
	}
	s.log.Info("grace period expired", "room", code, "session", sid)
	s.removeLocked(r, sid, reasonExpired)
}

// removeLocked is the single path for permanent removal.
func (s *Service) removeLocked(r *Room, sid string, reason removeReason) {
	before := r.phaseLocked()
	p, creatorChanged, ok := r.removePlayerLocked(sid)
	if !ok {
		return
	}

	if len(r.players) == 0 {
		r.closeLocked()
		s.store.Delete(r.code)
		s.rec.RoomClosed(r.code)
		s.log.Info("room closed", "room", r.code)
		return
	}

	switch reason {
	case reasonExpired:
		s.broadcastLocked(r, EvtRemoved, PlayerEventPayload{
			PlayerID: sid,
			Name:     p.Name,
			Message:  fmt.Sprintf("%s did not reconnect in time and was removed", p.Name),
		})
	case reasonKicked:
		s.log.Info("player kicked", "room", r.code, "session", sid)
	}
	if reason == reasonLobby {
		// the caller announces once every stale seat is gone
		return
	}
	if creatorChanged {
		s.announceCreatorLocked(r)
	}
	s.afterChangeLocked(r, before)
}

func (s *Service) announceCreatorLocked(r *Room) {
	next := r.playerLocked(r.creatorID)
	if next == nil {
		return
	}
	s.broadcastLocked(r, EvtCreatorChanged, CreatorChangedPayload{
		CreatorID: r.creatorID,
		Message:   fmt.Sprintf("%s is now the room creator", next.Name),
	})
}

// afterChangeLocked publishes a mutation. Crossing into reveal also hands
// everyone the spy list and records the game.
func (s *Service) afterChangeLocked(r *Room, before Phase) {
	s.broadcastStateLocked(r)
	if before == PhaseReveal || r.phaseLocked() != PhaseReveal {
		return
	}
	s.sendRolesLocked(r)
	if rec, ok := r.recordLocked(); ok {
		s.log.Info("game finished", "room", r.code, "winner", rec.Winner)
		s.rec.GameFinished(rec)
	}
}

// withActor resolves addr to its room and session and runs fn under the room lock.
func (s *Service) withActor(addr string, fn func(r *Room, sid string) error) error {
	r, ok := s.store.FindRoomByTransport(addr)
	if !ok {
		return ErrNotInRoom
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomNotFound
	}
	sid, ok := s.store.SessionFor(addr)
	if !ok {
		return ErrNotInRoom
	}
	if bound, ok := r.transportLocked(sid); !ok || bound != addr {
		return ErrNotInRoom
	}
	return fn(r, sid)
}

func (s *Service) ackCommand(addr string, fn func(r *Room, sid string) error) Ack {
	var code string
	err := s.withActor(addr, func(r *Room, sid string) error {
		code = r.code
		return fn(r, sid)
	})
	if err != nil {
		return ackError(err)
	}
	return Ack{OK: true, RoomCode: code}
}

func (s *Service) broadcastStateLocked(r *Room) {
	st := r.publicStateLocked()
	s.broadcastLocked(r, EvtRoomUpdate, st)
	s.rec.RoomUpdated(st)
}

func (s *Service) broadcastLocked(r *Room, typ string, payload any) {
	env := Envelope{Type: typ, Payload: mustJSON(payload)}
	for _, p := range r.players {
		if addr, ok := r.transportLocked(p.SessionID); ok {
			s.out.Send(addr, env)
		}
	}
}

func (s *Service) sendRoleLocked(r *Room, sid string) {
	role, ok := r.roleLocked(sid)
	if !ok {
		return
	}
	if addr, ok := r.transportLocked(sid); ok {
		s.out.Send(addr, Envelope{Type: EvtRole, Payload: mustJSON(role)})
	}
}

func (s *Service) sendRolesLocked(r *Room) {
	for _, p := range r.players {
		s.sendRoleLocked(r, p.SessionID)
	}
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	if rs := []rune(name); len(rs) > maxNameLength {
		name = string(rs[:maxNameLength])
	}
	return name, nil
}
