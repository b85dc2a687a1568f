package engine

import (
	"errors"
	"fmt"
	"slices"
)

// RosterSize is the only supported table size.
const RosterSize = 8

var ErrValidation = errors.New("validation error")
var ErrInvalidRoster = fmt.Errorf("%w: roster must contain exactly %d distinct players", ErrValidation, RosterSize)
var ErrUnknownPlayer = fmt.Errorf("%w: player is not part of this game", ErrValidation)
var ErrInvalidRole = fmt.Errorf("%w: role has no night action", ErrValidation)
var ErrInvalidChannel = fmt.Errorf("%w: unknown chat channel", ErrValidation)
var ErrIllegalTransition = errors.New("illegal phase transition")

type Role string

const (
	RoleMafia   Role = "mafia"
	RoleCitizen Role = "citizen"
	RolePolice  Role = "police"
	RoleDoctor  Role = "doctor"
)

// HasNightAction reports whether the role submits a target at night.
func (r Role) HasNightAction() bool {
	return slices.Contains(NightRoles, r)
}

// ParseRole maps wire names ("mafia", "POLICE", ...) to a Role.
func ParseRole(s string) (Role, bool) {
	switch Role(lower(s)) {
	case RoleMafia:
		return RoleMafia, true
	case RoleCitizen:
		return RoleCitizen, true
	case RolePolice:
		return RolePolice, true
	case RoleDoctor:
		return RoleDoctor, true
	default:
		return "", false
	}
}

type Phase string

const (
	PhaseMorning Phase = "morning"
	PhaseDay     Phase = "day"
	PhaseNight   Phase = "night"
	PhaseEnded   Phase = "ended"
)

// Stage splits the day into the accusation round and the execute/spare round.
type Stage string

const (
	StageNone      Stage = ""
	StageFirstVote Stage = "first_vote"
	StageExecution Stage = "execution"
)

type Player struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Alive bool   `json:"alive"`
}

type Ballot struct {
	VoterID  string `json:"voterId"`
	TargetID string `json:"targetId"`
}

type ExecutionBallot struct {
	VoterID string `json:"voterId"`
	Execute bool   `json:"execute"`
}

type NightActions struct {
	MafiaTargets map[string]string `json:"mafiaTargets"`
	DoctorTarget string            `json:"doctorTarget,omitempty"`
	PoliceTarget string            `json:"policeTarget,omitempty"`
	Completed    map[Role]bool     `json:"completed"`
}

func newNightActions() NightActions {
	return NightActions{
		MafiaTargets: map[string]string{},
		Completed:    map[Role]bool{},
	}
}

// Session is the whole persisted state of one game in a room.
type Session struct {
	GameID  string   `json:"gameId"`
	RoomID  string   `json:"roomId"`
	Day     int      `json:"day"`
	Phase   Phase    `json:"phase"`
	Stage   Stage    `json:"stage,omitempty"`
	Players []Player `json:"players"`

	FirstVotes     []Ballot          `json:"firstVotes"`
	ExecutionVotes []ExecutionBallot `json:"executionVotes"`
	Accused        string            `json:"accused,omitempty"`

	Night                NightActions `json:"night"`
	NightResultProcessed bool         `json:"nightResultProcessed"`
	LastNight            *NightResult `json:"lastNight,omitempty"`

	Investigated   []string    `json:"investigated,omitempty"`
	LastInspection *Inspection `json:"lastInspection,omitempty"`
}

// Refusal is the reason a player action was not accepted. Refusals are
// answers to the acting player, not errors.
type Refusal string

const (
	RefusalNone                Refusal = ""
	RefusalWrongPhase          Refusal = "wrong_phase"
	RefusalSelfVote            Refusal = "self_vote"
	RefusalDuplicateVote       Refusal = "duplicate_vote"
	RefusalDeadVoter           Refusal = "dead_voter"
	RefusalDeadTarget          Refusal = "dead_target"
	RefusalDeadActor           Refusal = "dead_actor"
	RefusalNotYourRole         Refusal = "not_your_role"
	RefusalAlreadyInvestigated Refusal = "already_investigated"
	RefusalNotPolice           Refusal = "not_police"
	RefusalNoInspection        Refusal = "no_inspection"
	RefusalDeadSpeaker         Refusal = "dead_speaker"
	RefusalAliveSpeaker        Refusal = "alive_speaker"
)

// Ack is returned for every accepted or refused submission.
// Complete is set when the submission closed the round.
type Ack struct {
	Accepted bool    `json:"accepted"`
	Refusal  Refusal `json:"refusal,omitempty"`
	Complete bool    `json:"complete,omitempty"`
}

func refuse(r Refusal) Ack {
	return Ack{Refusal: r}
}

// NewSession validates the roster and deals roles. The session starts before
// day one; BeginDay opens the first day.
func NewSession(roomID, gameID string, roster []string, rng Rand) (Session, error) {
	if roomID == "" || gameID == "" {
		return Session{}, fmt.Errorf("%w: room id and game id are required", ErrValidation)
	}
	players, err := AssignRoles(roster, rng)
	if err != nil {
		return Session{}, err
	}
	return Session{
		GameID:  gameID,
		RoomID:  roomID,
		Day:     0,
		Phase:   PhaseMorning,
		Players: players,
		Night:   newNightActions(),
	}, nil
}

func (s *Session) player(id string) (*Player, bool) {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i], true
		}
	}
	return nil, false
}

// Player returns a copy of the player with the given id.
func (s *Session) Player(id string) (Player, bool) {
	p, ok := s.player(id)
	if !ok {
		return Player{}, false
	}
	return *p, true
}

func (s *Session) lookup(id string) (*Player, error) {
	p, ok := s.player(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlayer, id)
	}
	return p, nil
}
