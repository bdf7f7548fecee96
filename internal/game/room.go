package game

import (
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Player is one seat in a room. SessionID is the only identity the engine uses;
// transport addresses never leave the identity layer.
type Player struct {
	SessionID      string
	Name           string
	Connected      bool
	DisconnectedAt time.Time // zero while connected
}

// DisconnectionRecord is taken when a player drops mid-game.
type DisconnectionRecord struct {
	SessionID      string
	Name           string
	WasSpy         bool
	DisconnectedAt time.Time
	Index          int
}

// Game is the in-game variant of a room's state. A room in the lobby has no Game,
// so MaxPlayers only exists once a game has been sized.
type Game struct {
	Phase                 Phase
	LeaderIndex           int
	MaxPlayers            int
	Spies                 []string
	CurrentRound          int
	TeamSizes             []int
	FailsRequired         []int
	ProposedTeam          []string
	TeamVotes             map[string]Vote
	MissionActions        map[string]MissionAction
	Results               []RoundResult
	ConsecutiveRejections int
	Voted                 []string
	Acted                 []string

	// leaderLeft marks that the leader's seat was vacated and LeaderIndex now
	// points at whoever moved into it, so the next rotation starts there.
	leaderLeft bool
}

type graceTimer struct {
	timer *time.Timer
	token int64
}

// Room is the aggregate root. Every method with the Locked suffix expects r.mu held.
type Room struct {
	code string
	mu   sync.Mutex

	// closed is set once the room is dropped from the store; anyone who was
	// waiting on mu must treat the room as gone.
	closed bool

	creatorID   string
	players     []*Player
	lobbyLeader int
	game        *Game

	transports map[string]string // sessionID -> transport addr
	pending    map[string]DisconnectionRecord
	timers     map[string]graceTimer
	timerToken int64

	index   *transportIndex
	shuffle func(n int, swap func(i, j int))
	now     func() time.Time
}

func newRoom(code, creatorID string, index *transportIndex) *Room {
	return &Room{
		code:       code,
		creatorID:  creatorID,
		transports: make(map[string]string),
		pending:    make(map[string]DisconnectionRecord),
		timers:     make(map[string]graceTimer),
		index:      index,
		shuffle:    rand.Shuffle,
		now:        time.Now,
	}
}

func (r *Room) Code() string { return r.code }

func (r *Room) phaseLocked() Phase {
	if r.game == nil {
		return PhaseLobby
	}
	return r.game.Phase
}

func (r *Room) leaderIndexLocked() int {
	if r.game == nil {
		return r.lobbyLeader
	}
	return r.game.LeaderIndex
}

func (r *Room) playerIndexLocked(sessionID string) int {
	return slices.IndexFunc(r.players, func(p *Player) bool { return p.SessionID == sessionID })
}

func (r *Room) playerLocked(sessionID string) *Player {
	if i := r.playerIndexLocked(sessionID); i >= 0 {
		return r.players[i]
	}
	return nil
}

func (r *Room) connectedCountLocked() int {
	n := 0
	for _, p := range r.players {
		if p.Connected {
			n++
		}
	}
	return n
}

func (r *Room) isSpyLocked(sessionID string) bool {
	return r.game != nil && slices.Contains(r.game.Spies, sessionID)
}

// addPlayerLocked appends a connected player and binds its transport.
// A requested sessionID is honoured only while no room seats it; otherwise,
// or when empty, a fresh one is minted.
func (r *Room) addPlayerLocked(addr, name, sessionID string) string {
	if sessionID == "" || !r.claimSessionLocked(sessionID) {
		sessionID = uuid.NewString()
		r.claimSessionLocked(sessionID)
	}
	r.players = append(r.players, &Player{
		SessionID: sessionID,
		Name:      name,
		Connected: true,
	})
	r.updateTransportLocked(sessionID, addr)
	return sessionID
}

func (r *Room) claimSessionLocked(sessionID string) bool {
	if r.playerLocked(sessionID) != nil {
		return false
	}
	if r.index == nil {
		return true
	}
	return r.index.claimMember(sessionID, r.code)
}

// updateTransportLocked rebinds sessionID to addr, dropping any previous address.
func (r *Room) updateTransportLocked(sessionID, addr string) {
	if old, ok := r.transports[sessionID]; ok && old != addr {
		r.unbindAddrLocked(sessionID)
	}
	r.transports[sessionID] = addr
	if r.index != nil {
		r.index.bind(addr, r.code, sessionID)
	}
}

func (r *Room) unbindAddrLocked(sessionID string) {
	addr, ok := r.transports[sessionID]
	if !ok {
		return
	}
	delete(r.transports, sessionID)
	if r.index != nil {
		r.index.unbind(addr, r.code)
	}
}

func (r *Room) transportLocked(sessionID string) (string, bool) {
	addr, ok := r.transports[sessionID]
	return addr, ok
}
