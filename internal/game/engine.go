package game

import (
	"slices"
)

// startLocked sizes a new game for the current roster and deals roles.
// It replaces any previous game wholesale.
func (r *Room) startLocked(leaderIndex int) error {
	n := len(r.players)
	if n < MinPlayers {
		return ErrNotEnoughPlayers
	}
	if n > MaxPlayers {
		return ErrTooManyPlayers
	}
	if leaderIndex < 0 || leaderIndex >= n {
		leaderIndex = 0
	}

	ids := make([]string, n)
	for i, p := range r.players {
		ids[i] = p.SessionID
	}
	r.shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	r.game = &Game{
		Phase:          PhaseProposeTeam,
		LeaderIndex:    leaderIndex,
		MaxPlayers:     n,
		Spies:          slices.Clone(ids[:NumSpies(n)]),
		TeamSizes:      TeamSizes(n),
		FailsRequired:  FailsRequired(n),
		TeamVotes:      make(map[string]Vote),
		MissionActions: make(map[string]MissionAction),
	}

	// a restart can happen while someone is still inside their grace period
	for sid, rec := range r.pending {
		rec.WasSpy = r.isSpyLocked(sid)
		r.pending[sid] = rec
	}
	return nil
}

// restartLocked deals a fresh game with the next seat as leader.
func (r *Room) restartLocked() error {
	if r.game == nil {
		return ErrGameNotStarted
	}
	if len(r.players) == 0 {
		return ErrInternal
	}
	next := r.game.LeaderIndex
	if !r.game.leaderLeft {
		next = (next + 1) % len(r.players)
	}
	return r.startLocked(next % len(r.players))
}

// returnToLobbyLocked drops the game and every grace-period record. Players who
// are still disconnected are left for the caller to remove.
func (r *Room) returnToLobbyLocked() {
	r.game = nil
	r.lobbyLeader = 0
	r.stopTimersLocked()
	clear(r.pending)
}

// proposeTeamLocked reports whether the room changed.
func (r *Room) proposeTeamLocked(leaderID string, team []string) bool {
	g := r.game
	if g == nil || g.Phase != PhaseProposeTeam || len(r.players) == 0 {
		return false
	}
	if g.LeaderIndex < 0 || g.LeaderIndex >= len(r.players) {
		g.LeaderIndex = 0
	}

	leader := r.players[g.LeaderIndex]
	if !leader.Connected {
		// never let a dropped leader stall the table; the proposal is not consumed
		next := r.nextConnectedLeaderLocked(g.LeaderIndex)
		changed := next != g.LeaderIndex
		g.LeaderIndex = next
		return changed
	}
	if leader.SessionID != leaderID {
		return false
	}
	if !r.validTeamLocked(team) {
		return false
	}

	g.ProposedTeam = slices.Clone(team)
	clear(g.TeamVotes)
	g.Voted = nil
	g.Phase = PhaseVoteTeam
	return true
}

func (r *Room) validTeamLocked(team []string) bool {
	g := r.game
	if g.CurrentRound >= len(g.TeamSizes) || len(team) != g.TeamSizes[g.CurrentRound] {
		return false
	}
	seen := make(map[string]struct{}, len(team))
	for _, id := range team {
		if _, dup := seen[id]; dup {
			return false
		}
		if r.playerLocked(id) == nil {
			return false
		}
		seen[id] = struct{}{}
	}
	return true
}

// voteTeamLocked records a vote; the last one before quorum wins.
func (r *Room) voteTeamLocked(sessionID string, vote Vote) bool {
	g := r.game
	if g == nil || g.Phase != PhaseVoteTeam {
		return false
	}
	if vote != VoteApprove && vote != VoteReject {
		return false
	}
	p := r.playerLocked(sessionID)
	if p == nil || !p.Connected {
		return false
	}

	g.TeamVotes[sessionID] = vote
	if !slices.Contains(g.Voted, sessionID) {
		g.Voted = append(g.Voted, sessionID)
	}
	r.resolveVoteLocked()
	return true
}

// resolveVoteLocked closes the vote once every connected player has voted.
// Disconnected players count neither as voters nor in the denominator.
func (r *Room) resolveVoteLocked() {
	g := r.game
	connected, approvals := 0, 0
	for _, p := range r.players {
		if !p.Connected {
			continue
		}
		connected++
		v, ok := g.TeamVotes[p.SessionID]
		if !ok {
			return
		}
		if v == VoteApprove {
			approvals++
		}
	}
	if connected == 0 {
		return
	}

	g.Voted = nil
	if approvals*2 > connected {
		clear(g.MissionActions)
		g.Acted = nil
		g.Phase = PhaseMission
		return
	}

	g.ConsecutiveRejections++
	g.ProposedTeam = nil
	clear(g.TeamVotes)
	if g.ConsecutiveRejections >= MaxConsecutiveRejections {
		g.Phase = PhaseReveal
		return
	}
	r.rotateLeaderLocked()
	g.Phase = PhaseProposeTeam
}

// performMissionActionLocked records a team member's card. A fail card from a
// non-spy is dropped silently.
func (r *Room) performMissionActionLocked(sessionID string, action MissionAction) bool {
	g := r.game
	if g == nil || g.Phase != PhaseMission {
		return false
	}
	if !slices.Contains(g.ProposedTeam, sessionID) {
		return false
	}
	p := r.playerLocked(sessionID)
	if p == nil || !p.Connected {
		return false
	}
	switch action {
	case ActionSuccess:
	case ActionFail:
		if !r.isSpyLocked(sessionID) {
			return false
		}
	default:
		return false
	}

	g.MissionActions[sessionID] = action
	if !slices.Contains(g.Acted, sessionID) {
		g.Acted = append(g.Acted, sessionID)
	}
	r.resolveMissionLocked()
	return true
}

func (r *Room) resolveMissionLocked() {
	g := r.game
	if len(g.ProposedTeam) == 0 {
		// everyone on the team was removed; the round is replayed
		clear(g.MissionActions)
		clear(g.TeamVotes)
		g.Acted = nil
		g.leaderLeft = false
		g.Phase = PhaseProposeTeam
		return
	}

	fails := 0
	for _, id := range g.ProposedTeam {
		a, ok := g.MissionActions[id]
		if !ok {
			return
		}
		if a == ActionFail {
			fails++
		}
	}

	g.Results = append(g.Results, RoundResult{
		Team:   slices.Clone(g.ProposedTeam),
		Fails:  fails,
		Passed: fails < g.FailsRequired[g.CurrentRound],
	})

	g.CurrentRound++
	g.ProposedTeam = nil
	clear(g.TeamVotes)
	clear(g.MissionActions)
	g.Voted = nil
	g.Acted = nil
	g.ConsecutiveRejections = 0

	passed, failed := g.tally()
	if passed >= WinsNeeded || failed >= WinsNeeded || g.CurrentRound >= Rounds {
		g.Phase = PhaseReveal
		return
	}
	r.rotateLeaderLocked()
	g.Phase = PhaseProposeTeam
}

// settleLocked re-evaluates the current step after the roster changed under it.
func (r *Room) settleLocked() {
	if r.game == nil {
		return
	}
	switch r.game.Phase {
	case PhaseVoteTeam:
		r.resolveVoteLocked()
	case PhaseMission:
		if r.connectedCountLocked() > 0 {
			r.resolveMissionLocked()
		}
	}
}

// rotateLeaderLocked passes leadership to the next connected seat. When the
// leader's seat was vacated mid-round its new occupant is first in line.
func (r *Room) rotateLeaderLocked() {
	g := r.game
	from := g.LeaderIndex
	if g.leaderLeft {
		n := len(r.players)
		if n > 0 {
			from = (from - 1 + n) % n
		}
		g.leaderLeft = false
	}
	g.LeaderIndex = r.nextConnectedLeaderLocked(from)
}

// nextConnectedLeaderLocked searches one lap from the seat after `from`.
// With nobody connected it returns 0.
func (r *Room) nextConnectedLeaderLocked(from int) int {
	n := len(r.players)
	if n == 0 || r.connectedCountLocked() == 0 {
		return 0
	}
	next := (from + 1) % n
	if next < 0 {
		next = 0
	}
	for attempts := 0; !r.players[next].Connected && attempts < n; attempts++ {
		next = (next + 1) % n
	}
	return next
}

func (g *Game) tally() (passed, failed int) {
	for _, res := range g.Results {
		if res.Passed {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}

// winner is only meaningful in reveal.
func (g *Game) winner() Side {
	if g.Phase != PhaseReveal {
		return ""
	}
	if passed, _ := g.tally(); passed >= WinsNeeded {
		return SideResistance
	}
	return SideSpies
}
