package game

import "encoding/json"

// Envelope WS envelope: {"type":"...","id":"...","payload":{...}}
// id is echoed back on the ack of commands that expect one.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// inbound
const (
	MsgCreateRoom    = "room:create"
	MsgJoinRoom      = "room:join"
	MsgChangeLeader  = "room:changeLeader"
	MsgProposeTeam   = "team:propose"
	MsgVoteTeam      = "team:vote"
	MsgMissionAction = "mission:act"
	MsgRequestRole   = "game:requestRole"
	MsgKickPlayer    = "player:kick"
	MsgStartGame     = "game:start"
	MsgRestartGame   = "game:restart"
	MsgReturnToLobby = "game:returnToLobby"
)

// outbound
const (
	EvtAck            = "ack"
	EvtRoomUpdate     = "room:update"
	EvtRole           = "game:role"
	EvtDisconnected   = "player:disconnected"
	EvtReconnected    = "player:reconnected"
	EvtRemoved        = "player:removed"
	EvtKicked         = "player:kicked"
	EvtCreatorChanged = "creator:changed"
	EvtError          = "error"
)

type Phase string

const (
	PhaseLobby       Phase = "lobby"
	PhaseProposeTeam Phase = "proposeTeam"
	PhaseVoteTeam    Phase = "voteTeam"
	PhaseMission     Phase = "mission"
	PhaseReveal      Phase = "reveal"
)

type Vote string

const (
	VoteApprove Vote = "approve"
	VoteReject  Vote = "reject"
)

type MissionAction string

const (
	ActionSuccess MissionAction = "success"
	ActionFail    MissionAction = "fail"
)

type Role string

const (
	RoleSpy        Role = "spy"
	RoleResistance Role = "resistance"
)

// Side names the winning team once a game is revealed.
type Side string

const (
	SideResistance Side = "resistance"
	SideSpies      Side = "spies"
)

// CreateRoomPayload входящие
type CreateRoomPayload struct {
	Name string `json:"name"`
}

type JoinRoomPayload struct {
	RoomCode  string `json:"roomCode"`
	Name      string `json:"name"`
	SessionID string `json:"sessionId,omitempty"`
}

type ProposeTeamPayload struct {
	TeamIDs []string `json:"teamIds"`
}

type VoteTeamPayload struct {
	Vote Vote `json:"vote"`
}

type MissionActionPayload struct {
	Action MissionAction `json:"action"`
}

type KickPlayerPayload struct {
	TargetPlayerID string `json:"targetPlayerId"`
}

type ChangeLeaderPayload struct {
	NewLeaderIndex int `json:"newLeaderIndex"`
}

// Ack is the reply to a command that expects one. Error is set iff !OK.
type Ack struct {
	OK          bool   `json:"ok"`
	RoomCode    string `json:"roomCode,omitempty"`
	SessionID   string `json:"sessionId,omitempty"`
	Reconnected bool   `json:"reconnected,omitempty"`
	Error       string `json:"error,omitempty"`
}

type RoundResult struct {
	Team   []string `json:"team"`
	Fails  int      `json:"fails"`
	Passed bool     `json:"passed"`
}

type PublicPlayer struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

// PublicState is the role-redacted view broadcast to every room member.
type PublicState struct {
	Code                  string         `json:"code"`
	CreatorID             string         `json:"creatorId"`
	Players               []PublicPlayer `json:"players"`
	Phase                 Phase          `json:"phase"`
	LeaderIndex           int            `json:"leaderIndex"`
	MaxPlayers            int            `json:"maxPlayers,omitempty"`
	CurrentRound          int            `json:"currentRound"`
	TeamSizePerRound      []int          `json:"teamSizePerRound"`
	FailsRequiredPerRound []int          `json:"failsRequiredPerRound"`
	ProposedTeam          []string       `json:"proposedTeam"`
	Results               []RoundResult  `json:"results"`
	ConsecutiveRejections int            `json:"consecutiveRejections"`
	Voted                 []string       `json:"voted"`
	Acted                 []string       `json:"acted"`
	Winner                Side           `json:"winner,omitempty"` // only in reveal
}

// RolePayload is sent privately. Spies is filled for spies, and for everyone in reveal.
type RolePayload struct {
	Role  Role     `json:"role"`
	Spies []string `json:"spies,omitempty"`
}

// PlayerEventPayload backs disconnected/reconnected/removed notifications.
type PlayerEventPayload struct {
	PlayerID  string `json:"playerId"`
	Name      string `json:"name,omitempty"`
	Message   string `json:"message"`
	Temporary bool   `json:"isTemporary,omitempty"`
}

type CreatorChangedPayload struct {
	CreatorID string `json:"creatorId"`
	Message   string `json:"message"`
}

type MessagePayload struct {
	Message string `json:"message"`
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
