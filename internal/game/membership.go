package game

import (
	"slices"
)

// removePlayerLocked takes a player out of the room for good: their id is purged
// from every round-scoped collection, any grace period is dropped, and seat based
// leadership and creator ownership are handed on.
func (r *Room) removePlayerLocked(sessionID string) (removed *Player, creatorChanged bool, ok bool) {
	idx := r.playerIndexLocked(sessionID)
	if idx < 0 {
		return nil, false, false
	}
	removed = r.players[idx]

	r.purgeLocked(sessionID)
	r.cancelGraceLocked(sessionID)
	delete(r.pending, sessionID)
	r.unbindAddrLocked(sessionID)
	if r.index != nil {
		r.index.removeMember(sessionID, r.code)
	}

	r.players = slices.Delete(r.players, idx, idx+1)
	r.handOffLeaderLocked(idx)

	if r.creatorID == sessionID && len(r.players) > 0 {
		r.creatorID = r.players[0].SessionID
		creatorChanged = true
	}

	r.settleLocked()
	return removed, creatorChanged, true
}

// purgeLocked removes sessionID from everything keyed by session in the game.
func (r *Room) purgeLocked(sessionID string) {
	g := r.game
	if g == nil {
		return
	}
	notID := func(id string) bool { return id == sessionID }

	g.Spies = slices.DeleteFunc(g.Spies, notID)
	g.ProposedTeam = slices.DeleteFunc(g.ProposedTeam, notID)
	g.Voted = slices.DeleteFunc(g.Voted, notID)
	g.Acted = slices.DeleteFunc(g.Acted, notID)
	delete(g.TeamVotes, sessionID)
	delete(g.MissionActions, sessionID)
}

// handOffLeaderLocked keeps the leader seat stable after the player at idx left.
// Whoever now sits at idx inherits it: no seat is skipped, none leads twice.
func (r *Room) handOffLeaderLocked(idx int) {
	n := len(r.players)
	if n == 0 {
		r.lobbyLeader = 0
		if r.game != nil {
			r.game.LeaderIndex = 0
		}
		return
	}

	if r.game == nil {
		switch {
		case idx < r.lobbyLeader:
			r.lobbyLeader--
		case idx == r.lobbyLeader:
			r.lobbyLeader = idx % n
		}
		return
	}

	g := r.game
	switch {
	case idx < g.LeaderIndex:
		g.LeaderIndex--
	case idx == g.LeaderIndex:
		if g.Phase == PhaseProposeTeam {
			g.LeaderIndex = r.nextConnectedLeaderLocked((idx - 1 + n) % n)
			g.leaderLeft = false
			return
		}
		g.LeaderIndex = idx % n
		g.leaderLeft = true
	}
}

// checkKickLocked validates a creator kick. The caller notifies the target
// before removing it, while its transport is still bound.
func (r *Room) checkKickLocked(actorID, targetID string) error {
	if r.creatorID != actorID {
		return ErrNotCreator
	}
	if targetID == actorID {
		return ErrKickSelf
	}
	if r.playerLocked(targetID) == nil {
		return ErrPlayerNotFound
	}
	return nil
}

func (r *Room) changeLeaderLocked(actorID string, newIndex int) error {
	if r.creatorID != actorID {
		return ErrNotCreator
	}
	if r.game != nil {
		return ErrNotInLobby
	}
	if newIndex < 0 || newIndex >= len(r.players) {
		return ErrInvalidLeader
	}
	r.lobbyLeader = newIndex
	return nil
}
