package game

import "time"

// Recorder observes room lifecycle events. Calls are made with the room lock
// held, so implementations must not block.
type Recorder interface {
	RoomUpdated(st PublicState)
	RoomClosed(code string)
	GameFinished(rec GameRecord)
}

// GameRecord is the durable summary of a finished game. Players are referred
// to by name.
type GameRecord struct {
	RoomCode              string        `json:"roomCode"`
	Winner                Side          `json:"winner"`
	PlayerCount           int           `json:"playerCount"`
	RoundsPassed          int           `json:"roundsPassed"`
	RoundsFailed          int           `json:"roundsFailed"`
	ConsecutiveRejections int           `json:"consecutiveRejections"`
	Spies                 []string      `json:"spies"`
	Results               []RoundResult `json:"results"`
	FinishedAt            time.Time     `json:"finishedAt"`
}

type nopRecorder struct{}

func (nopRecorder) RoomUpdated(PublicState) {}
func (nopRecorder) RoomClosed(string)       {}
func (nopRecorder) GameFinished(GameRecord) {}
