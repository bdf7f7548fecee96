//go:build integration

package store

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"example.com/resistance/internal/migrate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL is not set")
	}
	require.NoError(t, migrate.Up(context.Background(), url, "../../db/migrations", nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE game_results`)
	require.NoError(t, err)
	return pool
}

func TestResultStore_InsertListStats(t *testing.T) {
	ctx := context.Background()
	s := NewResultStore(newTestPool(t))

	first := time.Now().UTC().Add(-time.Minute).Truncate(time.Millisecond)
	_, err := s.Insert(ctx, GameResult{
		RoomCode:     "ABCDE",
		Winner:       "resistance",
		PlayerCount:  5,
		RoundsPassed: 3,
		Spies:        []string{"Ann", "Bo"},
		Rounds:       json.RawMessage(`[{"team":["Cy","Di"],"fails":0,"passed":true}]`),
		FinishedAt:   first,
	})
	require.NoError(t, err)

	_, err = s.Insert(ctx, GameResult{
		RoomCode:              "ABCDE",
		Winner:                "spies",
		PlayerCount:           7,
		ConsecutiveRejections: 5,
		FinishedAt:            first.Add(30 * time.Second),
	})
	require.NoError(t, err)

	list, err := s.ListByRoom(ctx, "ABCDE", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "spies", list[0].Winner)
	require.Equal(t, []string{"Ann", "Bo"}, list[1].Spies)
	require.JSONEq(t, `[{"team":["Cy","Di"],"fails":0,"passed":true}]`, string(list[1].Rounds))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, Stats{Games: 2, ResistanceWins: 1, SpyWins: 1, AvgPlayers: 6, RejectionLosses: 1}, st)
}
