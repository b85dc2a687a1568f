package engine

import "fmt"

type Step struct {
	Phase Phase
	Stage Stage
}

var Transitions = map[Step][]Step{
	{PhaseMorning, StageNone}: {
		{PhaseDay, StageFirstVote},
	},
	{PhaseDay, StageFirstVote}: {
		{PhaseDay, StageExecution}, // single most-voted player
		{PhaseNight, StageNone},    // tie
	},
	{PhaseDay, StageExecution}: {
		{PhaseNight, StageNone},
		{PhaseEnded, StageNone},
	},
	{PhaseNight, StageNone}: {
		{PhaseMorning, StageNone},
		{PhaseEnded, StageNone},
	},
}

// Timer labels, one per step that waits on players.
const (
	LabelMorning = "morning"
	LabelDay     = "day"
	LabelExecute = "execute"
	LabelNight   = "night"
)

func CanTransition(from, to Step) bool {
	for _, next := range Transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s *Session) Step() Step {
	return Step{Phase: s.Phase, Stage: s.Stage}
}

// TimerLabel names the countdown that guards the current step, or "" once
// the game has ended.
func (s *Session) TimerLabel() string {
	switch s.Step() {
	case Step{PhaseMorning, StageNone}:
		return LabelMorning
	case Step{PhaseDay, StageFirstVote}:
		return LabelDay
	case Step{PhaseDay, StageExecution}:
		return LabelExecute
	case Step{PhaseNight, StageNone}:
		return LabelNight
	default:
		return ""
	}
}

func (s *Session) moveTo(to Step) error {
	if !CanTransition(s.Step(), to) {
		return fmt.Errorf("%w: %s/%s -> %s/%s", ErrIllegalTransition, s.Phase, s.Stage, to.Phase, to.Stage)
	}
	s.Phase, s.Stage = to.Phase, to.Stage
	return nil
}

// BeginDay opens the next day's accusation round with empty ballots.
func (s *Session) BeginDay() error {
	if err := s.moveTo(Step{PhaseDay, StageFirstVote}); err != nil {
		return err
	}
	s.Day++
	s.FirstVotes = nil
	s.ExecutionVotes = nil
	s.Accused = ""
	return nil
}

// BeginExecution puts the accused player up for the execute/spare vote.
func (s *Session) BeginExecution(accused string) error {
	if _, err := s.lookup(accused); err != nil {
		return err
	}
	if err := s.moveTo(Step{PhaseDay, StageExecution}); err != nil {
		return err
	}
	s.ExecutionVotes = nil
	s.Accused = accused
	return nil
}

// BeginNight clears the previous night's actions and the resolution guard.
func (s *Session) BeginNight() error {
	if err := s.moveTo(Step{PhaseNight, StageNone}); err != nil {
		return err
	}
	s.Night = newNightActions()
	s.NightResultProcessed = false
	return nil
}

func (s *Session) BeginMorning() error {
	return s.moveTo(Step{PhaseMorning, StageNone})
}

func (s *Session) End() error {
	return s.moveTo(Step{PhaseEnded, StageNone})
}
