package engine

import "time"

type EventType string

const (
	EvtRolesAssigned    EventType = "RolesAssigned"
	EvtPhaseChanged     EventType = "PhaseChanged"
	EvtBallotAccepted   EventType = "BallotAccepted"
	EvtVoteResolved     EventType = "VoteResolved"
	EvtNightActionTaken EventType = "NightActionTaken"
	EvtNightResolved    EventType = "NightResolved"
	EvtPoliceResult     EventType = "PoliceResult"
	EvtGameEnded        EventType = "GameEnded"
)

/*
	StartSession      -> RolesAssigned (one per player) -> PhaseChanged(day)
	first ballot      -> BallotAccepted [-> VoteResolved -> PhaseChanged(execution | night)]
	execution ballot  -> BallotAccepted [-> VoteResolved -> PhaseChanged(night) | GameEnded]
	night action      -> NightActionTaken [-> NightResolved -> PoliceResult -> PhaseChanged(morning) | GameEnded]
	timer expiry      -> same as the completing submission, without the ballot event
*/

// Event is a one-way notification from a room to its subscribers. Events
// with a Recipient are private to that player.
type Event struct {
	Type      EventType
	RoomID    string
	GameID    string
	Day       int
	Phase     Phase
	Stage     Stage
	Recipient string

	// PhaseChanged
	Duration time.Duration
	Accused  string

	// RolesAssigned, NightActionTaken
	Role     Role
	Partners []string

	// BallotAccepted
	Ballot *BallotNotice

	// VoteResolved
	FirstVote *FirstVoteResult
	Execution *ExecutionResult

	// NightResolved, PoliceResult
	Night  *NightResult
	Police *Inspection

	// GameEnded
	Final *FinalSnapshot
}

type BallotNotice struct {
	VoterID  string `json:"voterId"`
	TargetID string `json:"targetId,omitempty"`
	Execute  *bool  `json:"execute,omitempty"`
	Cast     int    `json:"cast"`
	Needed   int    `json:"needed"`
}
