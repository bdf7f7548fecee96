package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicState_Lobby(t *testing.T) {
	r := newTestRoom(2)
	st := r.publicStateLocked()

	assert.Equal(t, PhaseLobby, st.Phase)
	assert.Zero(t, st.MaxPlayers)
	assert.Empty(t, st.Winner)

	b, err := json.Marshal(st)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "null", "empty collections encode as []")
	assert.NotContains(t, string(b), "maxPlayers")
}

func TestPublicState_NeverLeaksSpies(t *testing.T) {
	r := startTestGame(t, 5)
	b, err := json.Marshal(r.publicStateLocked())
	require.NoError(t, err)
	assert.NotContains(t, string(b), "spies")
	assert.NotContains(t, string(b), "spy")
}

func TestPublicState_CopiesCollections(t *testing.T) {
	r := startTestGame(t, 5)
	require.True(t, r.proposeTeamLocked("p-0", ids(0, 2)))

	st := r.publicStateLocked()
	st.ProposedTeam[0] = "mutated"
	assert.Equal(t, "p-0", r.game.ProposedTeam[0])
	assert.Equal(t, 5, st.MaxPlayers)
	assert.Equal(t, []int{2, 3, 2, 3, 3}, st.TeamSizePerRound)
}

func TestRole(t *testing.T) {
	r := startTestGame(t, 5)

	spy, ok := r.roleLocked("p-0")
	require.True(t, ok)
	assert.Equal(t, RoleSpy, spy.Role)
	assert.ElementsMatch(t, []string{"p-0", "p-1"}, spy.Spies)

	res, ok := r.roleLocked("p-4")
	require.True(t, ok)
	assert.Equal(t, RoleResistance, res.Role)
	assert.Empty(t, res.Spies)

	r.game.Phase = PhaseReveal
	res, _ = r.roleLocked("p-4")
	assert.ElementsMatch(t, []string{"p-0", "p-1"}, res.Spies)

	_, ok = r.roleLocked("ghost")
	assert.False(t, ok)
}

func TestRecord(t *testing.T) {
	r := startTestGame(t, 5)
	_, ok := r.recordLocked()
	assert.False(t, ok, "only revealed games are recorded")

	r.game.Results = []RoundResult{
		{Team: []string{"p-3", "p-4"}, Passed: true},
		{Team: []string{"p-0", "p-2"}, Fails: 1},
	}
	r.game.Phase = PhaseReveal

	rec, ok := r.recordLocked()
	require.True(t, ok)
	assert.Equal(t, SideSpies, rec.Winner)
	assert.Equal(t, 1, rec.RoundsPassed)
	assert.Equal(t, 1, rec.RoundsFailed)
	assert.Equal(t, []string{"Player 3", "Player 4"}, rec.Results[0].Team)
	assert.Equal(t, []string{"Player 0", "Player 1"}, rec.Spies)
}
