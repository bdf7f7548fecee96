package game

import "slices"

// publicStateLocked projects the room for broadcast. It never includes who the
// spies are; that only travels in RolePayload.
func (r *Room) publicStateLocked() PublicState {
	st := PublicState{
		Code:                  r.code,
		CreatorID:             r.creatorID,
		Players:               make([]PublicPlayer, 0, len(r.players)),
		Phase:                 r.phaseLocked(),
		LeaderIndex:           r.leaderIndexLocked(),
		TeamSizePerRound:      []int{},
		FailsRequiredPerRound: []int{},
		ProposedTeam:          []string{},
		Results:               []RoundResult{},
		Voted:                 []string{},
		Acted:                 []string{},
	}
	for _, p := range r.players {
		st.Players = append(st.Players, PublicPlayer{
			SessionID: p.SessionID,
			Name:      p.Name,
			Connected: p.Connected,
		})
	}

	g := r.game
	if g == nil {
		return st
	}

	st.MaxPlayers = g.MaxPlayers
	st.CurrentRound = g.CurrentRound
	st.TeamSizePerRound = append(st.TeamSizePerRound, g.TeamSizes...)
	st.FailsRequiredPerRound = append(st.FailsRequiredPerRound, g.FailsRequired...)
	st.ProposedTeam = append(st.ProposedTeam, g.ProposedTeam...)
	for _, res := range g.Results {
		res.Team = slices.Clone(res.Team)
		st.Results = append(st.Results, res)
	}
	st.ConsecutiveRejections = g.ConsecutiveRejections
	st.Voted = append(st.Voted, g.Voted...)
	st.Acted = append(st.Acted, g.Acted...)
	st.Winner = g.winner()
	return st
}

// roleLocked builds the private role message for one player.
func (r *Room) roleLocked(sessionID string) (RolePayload, bool) {
	g := r.game
	if g == nil || r.playerLocked(sessionID) == nil {
		return RolePayload{}, false
	}
	spy := r.isSpyLocked(sessionID)
	out := RolePayload{Role: RoleResistance}
	if spy {
		out.Role = RoleSpy
	}
	if spy || g.Phase == PhaseReveal {
		out.Spies = slices.Clone(g.Spies)
	}
	return out, true
}

// recordLocked summarises a revealed game for the archive.
func (r *Room) recordLocked() (GameRecord, bool) {
	g := r.game
	if g == nil || g.Phase != PhaseReveal {
		return GameRecord{}, false
	}
	passed, failed := g.tally()
	rec := GameRecord{
		RoomCode:              r.code,
		Winner:                g.winner(),
		PlayerCount:           g.MaxPlayers,
		RoundsPassed:          passed,
		RoundsFailed:          failed,
		ConsecutiveRejections: g.ConsecutiveRejections,
		Results:               make([]RoundResult, 0, len(g.Results)),
		FinishedAt:            r.now().UTC(),
	}
	for _, res := range g.Results {
		res.Team = r.namesLocked(res.Team)
		rec.Results = append(rec.Results, res)
	}
	rec.Spies = r.namesLocked(g.Spies)
	return rec, true
}

// namesLocked maps session ids to display names; ids are not stable outside a room.
func (r *Room) namesLocked(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if p := r.playerLocked(id); p != nil {
			out = append(out, p.Name)
		} else {
			out = append(out, id)
		}
	}
	return out
}
