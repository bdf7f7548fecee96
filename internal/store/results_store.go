package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GameResult is one finished game as stored in the ledger.
type GameResult struct {
	ID                    int64           `json:"id"`
	RoomCode              string          `json:"roomCode"`
	Winner                string          `json:"winner"`
	PlayerCount           int             `json:"playerCount"`
	RoundsPassed          int             `json:"roundsPassed"`
	RoundsFailed          int             `json:"roundsFailed"`
	ConsecutiveRejections int             `json:"consecutiveRejections"`
	Spies                 []string        `json:"spies"`
	Rounds                json.RawMessage `json:"rounds"`
	FinishedAt            time.Time       `json:"finishedAt"`
}

// Stats aggregates the whole ledger.
type Stats struct {
	Games           int     `json:"games"`
	ResistanceWins  int     `json:"resistanceWins"`
	SpyWins         int     `json:"spyWins"`
	AvgPlayers      float64 `json:"avgPlayers"`
	RejectionLosses int     `json:"rejectionLosses"`
}

type ResultStore struct {
	db *pgxpool.Pool
}

func NewResultStore(db *pgxpool.Pool) *ResultStore {
	return &ResultStore{db: db}
}

func (s *ResultStore) Insert(ctx context.Context, res GameResult) (int64, error) {
	rounds := res.Rounds
	if len(rounds) == 0 {
		rounds = json.RawMessage("[]")
	}
	spies := res.Spies
	if spies == nil {
		spies = []string{}
	}

	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO game_results
			(room_code, winner, player_count, rounds_passed, rounds_failed, consecutive_rejections, spies, rounds, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, res.RoomCode, res.Winner, res.PlayerCount, res.RoundsPassed, res.RoundsFailed,
		res.ConsecutiveRejections, spies, string(rounds), res.FinishedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert game result: %w", err)
	}
	return id, nil
}

// ListByRoom returns the most recent games played under a room code, newest first.
func (s *ResultStore) ListByRoom(ctx context.Context, roomCode string, limit int) ([]GameResult, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, room_code, winner, player_count, rounds_passed, rounds_failed,
		       consecutive_rejections, spies, rounds, finished_at
		FROM game_results
		WHERE room_code = $1
		ORDER BY finished_at DESC, id DESC
		LIMIT $2
	`, roomCode, limit)
	if err != nil {
		return nil, fmt.Errorf("list game results: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (GameResult, error) {
		var (
			r      GameResult
			rounds []byte
		)
		err := row.Scan(&r.ID, &r.RoomCode, &r.Winner, &r.PlayerCount, &r.RoundsPassed, &r.RoundsFailed,
			&r.ConsecutiveRejections, &r.Spies, &rounds, &r.FinishedAt)
		r.Rounds = rounds
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan game results: %w", err)
	}
	return out, nil
}

func (s *ResultStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE winner = 'resistance'),
		       count(*) FILTER (WHERE winner = 'spies'),
		       coalesce(avg(player_count), 0)::float8,
		       count(*) FILTER (WHERE consecutive_rejections >= 5)
		FROM game_results
	`).Scan(&st.Games, &st.ResistanceWins, &st.SpyWins, &st.AvgPlayers, &st.RejectionLosses)
	if err != nil {
		return Stats{}, fmt.Errorf("game stats: %w", err)
	}
	return st, nil
}
