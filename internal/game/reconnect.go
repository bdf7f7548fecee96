package game

import "time"

// markDisconnectedLocked keeps the seat of a player who dropped mid-game and
// arms a grace timer. onExpire runs on the timer goroutine with the token the
// timer was armed with; it must re-lock the room and call expireLocked.
func (r *Room) markDisconnectedLocked(sessionID string, grace time.Duration, onExpire func(token int64)) bool {
	idx := r.playerIndexLocked(sessionID)
	if idx < 0 {
		return false
	}
	p := r.players[idx]
	if !p.Connected {
		return false
	}

	p.Connected = false
	p.DisconnectedAt = r.now()
	r.unbindAddrLocked(sessionID)

	r.pending[sessionID] = DisconnectionRecord{
		SessionID:      sessionID,
		Name:           p.Name,
		WasSpy:         r.isSpyLocked(sessionID),
		DisconnectedAt: p.DisconnectedAt,
		Index:          idx,
	}

	r.cancelGraceLocked(sessionID)
	r.timerToken++
	token := r.timerToken
	r.timers[sessionID] = graceTimer{
		timer: time.AfterFunc(grace, func() { onExpire(token) }),
		token: token,
	}
	return true
}

// expireLocked reports whether a firing grace timer is still the live one.
// A reconnect, a newer disconnect or a removal all make older tokens stale.
func (r *Room) expireLocked(sessionID string, token int64) bool {
	if r.closed {
		return false
	}
	t, ok := r.timers[sessionID]
	if !ok || t.token != token {
		return false // старый таймер
	}
	delete(r.timers, sessionID)
	_, pending := r.pending[sessionID]
	return pending
}

// reconnectLocked restores a player still inside their grace period.
func (r *Room) reconnectLocked(sessionID, addr string) (*Player, bool) {
	if _, ok := r.pending[sessionID]; !ok {
		return nil, false
	}
	p := r.playerLocked(sessionID)
	if p == nil {
		delete(r.pending, sessionID)
		return nil, false
	}

	r.cancelGraceLocked(sessionID)
	delete(r.pending, sessionID)
	p.Connected = true
	p.DisconnectedAt = time.Time{}
	r.updateTransportLocked(sessionID, addr)
	return p, true
}

func (r *Room) pendingLocked(sessionID string) (DisconnectionRecord, bool) {
	rec, ok := r.pending[sessionID]
	return rec, ok
}

func (r *Room) cancelGraceLocked(sessionID string) {
	if t, ok := r.timers[sessionID]; ok {
		t.timer.Stop()
		delete(r.timers, sessionID)
	}
}

func (r *Room) stopTimersLocked() {
	for _, t := range r.timers {
		t.timer.Stop()
	}
	clear(r.timers)
}

// closeLocked marks the room dead. Timers that already fired will find
// closed set once they get the lock.
func (r *Room) closeLocked() {
	r.stopTimersLocked()
	clear(r.pending)
	for sid := range r.transports {
		r.unbindAddrLocked(sid)
	}
	if r.index != nil {
		for _, p := range r.players {
			r.index.removeMember(p.SessionID, r.code)
		}
	}
	r.closed = true
}
