package game

import (
	"crypto/rand"
	"math/big"
	"sync"
)

const (
	RoomCodeLength = 5
	RoomCodeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	maxCodeAttempts = 64
)

// Store owns code -> *Room. It never takes a room lock; rooms may call into it
// (through the transport index or Delete) while holding their own.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	index   *transportIndex
	newCode func() string
}

func NewStore() *Store {
	return &Store{
		rooms:   make(map[string]*Room),
		index:   newTransportIndex(),
		newCode: generateRoomCode,
	}
}

// Create allocates a fresh code and registers a room owned by creatorID. init,
// when set, runs before the room becomes visible to Get.
func (s *Store) Create(creatorID string, init func(r *Room)) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for range maxCodeAttempts {
		code := s.newCode()
		if _, taken := s.rooms[code]; taken {
			continue
		}
		r := newRoom(code, creatorID, s.index)
		if init != nil {
			init(r)
		}
		s.rooms[code] = r
		return r, nil
	}
	return nil, ErrCodeSpaceExhausted
}

func (s *Store) Get(code string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[code]
	return r, ok
}

// Delete drops the room from the map. Callers hold r.mu and have already
// stopped the room's timers (see Room.closeLocked).
func (s *Store) Delete(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// FindByPlayerSessionID returns the room the session is seated in, connected or not.
func (s *Store) FindByPlayerSessionID(sessionID string) (*Room, bool) {
	code, ok := s.index.memberRoom(sessionID)
	if !ok {
		return nil, false
	}
	return s.Get(code)
}

// FindRoomByTransport resolves an inbound connection to its room.
func (s *Store) FindRoomByTransport(addr string) (*Room, bool) {
	b, ok := s.index.lookup(addr)
	if !ok {
		return nil, false
	}
	return s.Get(b.code)
}

// SessionFor returns the session currently bound to addr.
func (s *Store) SessionFor(addr string) (string, bool) {
	b, ok := s.index.lookup(addr)
	if !ok {
		return "", false
	}
	return b.sessionID, true
}

func generateRoomCode() string {
	code := make([]byte, RoomCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(RoomCodeChars))))
		if err != nil {
			panic("crypto/rand unavailable: " + err.Error())
		}
		code[i] = RoomCodeChars[n.Int64()]
	}
	return string(code)
}

type binding struct {
	code      string
	sessionID string
}

// transportIndex is the only structure shared by unrelated rooms besides the
// room map itself.
type transportIndex struct {
	mu      sync.RWMutex
	byAddr  map[string]binding
	members map[string]string // sessionID -> room code
}

func newTransportIndex() *transportIndex {
	return &transportIndex{
		byAddr:  make(map[string]binding),
		members: make(map[string]string),
	}
}

func (ix *transportIndex) bind(addr, code, sessionID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.byAddr[addr] = binding{code: code, sessionID: sessionID}
}

// unbind removes addr only while it still points at code, so a connection
// that already moved on is left alone.
func (ix *transportIndex) unbind(addr, code string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if b, ok := ix.byAddr[addr]; ok && b.code == code {
		delete(ix.byAddr, addr)
	}
}

func (ix *transportIndex) lookup(addr string) (binding, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	b, ok := ix.byAddr[addr]
	return b, ok
}

// claimMember seats sessionID in code unless it is already seated anywhere.
func (ix *transportIndex) claimMember(sessionID, code string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, taken := ix.members[sessionID]; taken {
		return false
	}
	ix.members[sessionID] = code
	return true
}

func (ix *transportIndex) removeMember(sessionID, code string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.members[sessionID] == code {
		delete(ix.members, sessionID)
	}
}

func (ix *transportIndex) memberRoom(sessionID string) (string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	code, ok := ix.members[sessionID]
	return code, ok
}
