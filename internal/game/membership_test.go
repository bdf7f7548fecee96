package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemovePlayer_LeaderHandoff(t *testing.T) {
	cases := []struct {
		name       string
		leader     int
		remove     string
		phase      Phase
		disconnect []int // seats to mark disconnected before removal
		wantLeader int
		wantSeat   string // session expected at the leader seat afterwards
	}{
		{name: "before the leader shifts it down", leader: 2, remove: "p-0", phase: PhaseProposeTeam, wantLeader: 1, wantSeat: "p-2"},
		{name: "after the leader leaves it alone", leader: 2, remove: "p-4", phase: PhaseProposeTeam, wantLeader: 2, wantSeat: "p-2"},
		{name: "leader removed while proposing passes to the next seat", leader: 2, remove: "p-2", phase: PhaseProposeTeam, wantLeader: 2, wantSeat: "p-3"},
		{name: "last seat leader wraps to the first", leader: 5, remove: "p-5", phase: PhaseProposeTeam, wantLeader: 0, wantSeat: "p-0"},
		{name: "next seat disconnected is skipped", leader: 1, remove: "p-1", phase: PhaseProposeTeam, disconnect: []int{2}, wantLeader: 2, wantSeat: "p-3"},
		{name: "leader removed mid-vote stays on the seat", leader: 2, remove: "p-2", phase: PhaseVoteTeam, wantLeader: 2, wantSeat: "p-3"},
		{name: "last seat leader removed mid-mission wraps", leader: 5, remove: "p-5", phase: PhaseMission, wantLeader: 0, wantSeat: "p-0"},
		{name: "leader removed after reveal stays on the seat", leader: 1, remove: "p-1", phase: PhaseReveal, wantLeader: 1, wantSeat: "p-2"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := startTestGame(t, 6)
			r.game.LeaderIndex = tc.leader
			r.game.Phase = tc.phase
			for _, i := range tc.disconnect {
				r.players[i].Connected = false
			}

			_, _, ok := r.removePlayerLocked(tc.remove)
			require.True(t, ok)
			assert.Equal(t, tc.wantLeader, r.game.LeaderIndex)
			assert.Equal(t, tc.wantSeat, r.players[r.game.LeaderIndex].SessionID)
		})
	}
}

func TestRemovePlayer_LeaderRemovedMidVoteRotatesToNextSeat(t *testing.T) {
	r := startTestGame(t, 5)
	r.game.LeaderIndex = 2
	require.True(t, r.proposeTeamLocked("p-2", ids(2, 4)))

	_, _, ok := r.removePlayerLocked("p-2")
	require.True(t, ok)
	voteAll(r, 0)

	// p-3 took seat 2 and leads next; nobody was skipped
	assert.Equal(t, PhaseProposeTeam, r.game.Phase)
	assert.Equal(t, "p-3", r.players[r.game.LeaderIndex].SessionID)
}

func TestRemovePlayer_WrappedLeaderRotatesToFirstSeat(t *testing.T) {
	r := startTestGame(t, 5)
	r.game.LeaderIndex = 4
	require.True(t, r.proposeTeamLocked("p-4", ids(2, 4)))
	voteAll(r, 5)
	require.Equal(t, PhaseMission, r.game.Phase)

	_, _, ok := r.removePlayerLocked("p-4")
	require.True(t, ok)
	assert.Equal(t, "p-0", r.players[r.game.LeaderIndex].SessionID)

	require.True(t, r.performMissionActionLocked("p-2", ActionSuccess))
	require.True(t, r.performMissionActionLocked("p-3", ActionSuccess))

	assert.Equal(t, PhaseProposeTeam, r.game.Phase)
	assert.Equal(t, 0, r.game.LeaderIndex)
}

func TestRemovePlayer_RestartAfterLeaderLeftDealsToTheSeat(t *testing.T) {
	r := startTestGame(t, 6)
	r.game.LeaderIndex = 2
	r.game.Phase = PhaseReveal

	_, _, ok := r.removePlayerLocked("p-2")
	require.True(t, ok)
	require.NoError(t, r.restartLocked())

	assert.Equal(t, "p-3", r.players[r.game.LeaderIndex].SessionID)
}

func TestRemovePlayer_CreatorHandoff(t *testing.T) {
	r := newTestRoom(3)

	_, changed, ok := r.removePlayerLocked("p-1")
	require.True(t, ok)
	assert.False(t, changed)
	assert.Equal(t, "p-0", r.creatorID)

	_, changed, ok = r.removePlayerLocked("p-0")
	require.True(t, ok)
	assert.True(t, changed)
	assert.Equal(t, "p-2", r.creatorID)

	_, _, ok = r.removePlayerLocked("p-0")
	assert.False(t, ok)
}

func TestRemovePlayer_PurgesRoundState(t *testing.T) {
	r := startTestGame(t, 5)
	require.True(t, r.proposeTeamLocked("p-0", ids(0, 2)))
	r.voteTeamLocked("p-1", VoteApprove)

	_, _, ok := r.removePlayerLocked("p-1")
	require.True(t, ok)

	g := r.game
	assert.Equal(t, []string{"p-0"}, g.Spies)
	assert.Equal(t, []string{"p-0"}, g.ProposedTeam)
	assert.Empty(t, g.Voted)
	assert.NotContains(t, g.TeamVotes, "p-1")
	_, bound := r.transportLocked("p-1")
	assert.False(t, bound)
}

func TestRemovePlayer_PurgesMissionState(t *testing.T) {
	r := startTestGame(t, 5)
	r.game.CurrentRound = 1
	require.True(t, r.proposeTeamLocked("p-0", ids(0, 3)))
	voteAll(r, 5)
	require.Equal(t, PhaseMission, r.game.Phase)
	require.True(t, r.performMissionActionLocked("p-1", ActionFail))
	require.True(t, r.performMissionActionLocked("p-2", ActionSuccess))

	_, _, ok := r.removePlayerLocked("p-1")
	require.True(t, ok)

	g := r.game
	assert.Equal(t, PhaseMission, g.Phase)
	assert.Equal(t, []string{"p-0", "p-2"}, g.ProposedTeam)
	assert.Equal(t, []string{"p-2"}, g.Acted)
	assert.NotContains(t, g.MissionActions, "p-1")
	assert.NotContains(t, g.Spies, "p-1")

	// the remaining card completes the mission without the removed fail
	require.True(t, r.performMissionActionLocked("p-0", ActionSuccess))
	require.Len(t, g.Results, 1)
	assert.Zero(t, g.Results[0].Fails)
	assert.True(t, g.Results[0].Passed)
}

func TestLobbyLeaderFollowsRemoval(t *testing.T) {
	r := newTestRoom(4)
	require.NoError(t, r.changeLeaderLocked("p-0", 3))

	_, _, ok := r.removePlayerLocked("p-1")
	require.True(t, ok)
	assert.Equal(t, 2, r.lobbyLeader)

	_, _, ok = r.removePlayerLocked("p-3")
	require.True(t, ok)
	assert.Equal(t, 0, r.lobbyLeader)
}

func TestCheckKick(t *testing.T) {
	r := newTestRoom(3)
	assert.ErrorIs(t, r.checkKickLocked("p-1", "p-2"), ErrNotCreator)
	assert.ErrorIs(t, r.checkKickLocked("p-0", "p-0"), ErrKickSelf)
	assert.ErrorIs(t, r.checkKickLocked("p-0", "p-9"), ErrPlayerNotFound)
	assert.NoError(t, r.checkKickLocked("p-0", "p-2"))
}
