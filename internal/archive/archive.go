// Package archive moves room events off the room lock and into the state
// mirror and the results ledger.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"example.com/resistance/internal/game"
	"example.com/resistance/internal/store"
)

type StateStore interface {
	Save(ctx context.Context, st game.PublicState) error
	Delete(ctx context.Context, code string) error
}

type ResultStore interface {
	Insert(ctx context.Context, res store.GameResult) (int64, error)
}

type kind int

const (
	kindState kind = iota
	kindClosed
	kindFinished
)

type job struct {
	kind   kind
	state  game.PublicState
	code   string
	record game.GameRecord
}

// Archive implements game.Recorder. Enqueueing never blocks: when the queue is
// full the job is dropped and counted.
type Archive struct {
	jobs    chan job
	states  StateStore
	results ResultStore
	log     *slog.Logger
	timeout time.Duration

	dropped atomic.Int64
}

// New returns an archive over optional stores; a nil store skips its jobs.
func New(states StateStore, results ResultStore, queue int, log *slog.Logger) *Archive {
	if queue <= 0 {
		queue = 256
	}
	if log == nil {
		log = slog.Default()
	}
	return &Archive{
		jobs:    make(chan job, queue),
		states:  states,
		results: results,
		log:     log,
		timeout: 5 * time.Second,
	}
}

func (a *Archive) RoomUpdated(st game.PublicState) {
	if a.states != nil {
		a.enqueue(job{kind: kindState, state: st, code: st.Code})
	}
}

func (a *Archive) RoomClosed(code string) {
	if a.states != nil {
		a.enqueue(job{kind: kindClosed, code: code})
	}
}

func (a *Archive) GameFinished(rec game.GameRecord) {
	if a.results != nil {
		a.enqueue(job{kind: kindFinished, code: rec.RoomCode, record: rec})
	}
}

// Dropped reports how many jobs were discarded because the queue was full.
func (a *Archive) Dropped() int64 { return a.dropped.Load() }

func (a *Archive) enqueue(j job) {
	select {
	case a.jobs <- j:
	default:
		a.dropped.Add(1)
		a.log.Warn("archive queue full, job dropped", "room", j.code)
	}
}

// Run drains the queue until ctx is done, then flushes what is already queued.
func (a *Archive) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			a.flush()
			return nil
		case j := <-a.jobs:
			a.handle(ctx, j)
		}
	}
}

func (a *Archive) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	for {
		select {
		case j := <-a.jobs:
			a.handle(ctx, j)
		default:
			return
		}
	}
}

func (a *Archive) handle(ctx context.Context, j job) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var err error
	switch j.kind {
	case kindState:
		err = a.states.Save(ctx, j.state)
	case kindClosed:
		err = a.states.Delete(ctx, j.code)
	case kindFinished:
		var res store.GameResult
		res, err = toResult(j.record)
		if err == nil {
			var id int64
			id, err = a.results.Insert(ctx, res)
			if err == nil {
				a.log.Info("game archived", "room", j.code, "id", id, "winner", res.Winner)
			}
		}
	}
	if err != nil {
		a.log.Error("archive job failed", "room", j.code, "kind", j.kind, "err", err)
	}
}

func toResult(rec game.GameRecord) (store.GameResult, error) {
	rounds, err := json.Marshal(rec.Results)
	if err != nil {
		return store.GameResult{}, fmt.Errorf("encode rounds: %w", err)
	}
	return store.GameResult{
		RoomCode:              rec.RoomCode,
		Winner:                string(rec.Winner),
		PlayerCount:           rec.PlayerCount,
		RoundsPassed:          rec.RoundsPassed,
		RoundsFailed:          rec.RoundsFailed,
		ConsecutiveRejections: rec.ConsecutiveRejections,
		Spies:                 rec.Spies,
		Rounds:                rounds,
		FinishedAt:            rec.FinishedAt,
	}, nil
}

var _ game.Recorder = (*Archive)(nil)
