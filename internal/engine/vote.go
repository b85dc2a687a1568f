package engine

import (
	"slices"
	"sort"
)

type FirstVoteResult struct {
	WinnerID      string         `json:"winnerId,omitempty"`
	VoteCount     int            `json:"voteCount"`
	Tie           bool           `json:"tie"`
	TieCandidates []string       `json:"tieCandidates,omitempty"`
	Tally         map[string]int `json:"tally"`
}

type ExecutionResult struct {
	TargetID        string   `json:"targetId"`
	Executed        bool     `json:"executed"`
	Tie             bool     `json:"tie"`
	ExecuteCount    int      `json:"executeCount"`
	SpareCount      int      `json:"spareCount"`
	ExecuteVoterIDs []string `json:"executeVoterIds"`
	SpareVoterIDs   []string `json:"spareVoterIds"`
}

// SubmitFirstVote records an accusation. Refused ballots leave the session
// untouched.
func (s *Session) SubmitFirstVote(voterID, targetID string) (Ack, error) {
	if voterID == targetID {
		return refuse(RefusalSelfVote), nil
	}
	if s.Phase != PhaseDay || s.Stage != StageFirstVote {
		return refuse(RefusalWrongPhase), nil
	}
	voter, err := s.lookup(voterID)
	if err != nil {
		return Ack{}, err
	}
	target, err := s.lookup(targetID)
	if err != nil {
		return Ack{}, err
	}
	if !voter.Alive {
		return refuse(RefusalDeadVoter), nil
	}
	if !target.Alive {
		return refuse(RefusalDeadTarget), nil
	}
	if slices.ContainsFunc(s.FirstVotes, func(b Ballot) bool { return b.VoterID == voterID }) {
		return refuse(RefusalDuplicateVote), nil
	}

	s.FirstVotes = append(s.FirstVotes, Ballot{VoterID: voterID, TargetID: targetID})
	return Ack{Accepted: true, Complete: len(s.FirstVotes) >= s.AliveCount()}, nil
}

// ResolveFirstVote tallies the accusations. Only a unique maximum produces a
// winner; shared maxima and empty rounds are ties.
func (s *Session) ResolveFirstVote() FirstVoteResult {
	return TallyFirstVote(s.FirstVotes)
}

func TallyFirstVote(ballots []Ballot) FirstVoteResult {
	tally := make(map[string]int)
	for _, b := range ballots {
		tally[b.TargetID]++
	}

	maxVotes := 0
	var leaders []string
	for target, count := range tally {
		switch {
		case count > maxVotes:
			maxVotes = count
			leaders = []string{target}
		case count == maxVotes:
			leaders = append(leaders, target)
		}
	}
	sort.Strings(leaders)

	res := FirstVoteResult{VoteCount: maxVotes, Tally: tally}
	if len(leaders) == 1 {
		res.WinnerID = leaders[0]
		return res
	}
	res.Tie = true
	res.TieCandidates = leaders
	return res
}

// SubmitExecutionVote records an execute/spare ballot for the accused.
func (s *Session) SubmitExecutionVote(voterID string, execute bool) (Ack, error) {
	if s.Phase != PhaseDay || s.Stage != StageExecution {
		return refuse(RefusalWrongPhase), nil
	}
	voter, err := s.lookup(voterID)
	if err != nil {
		return Ack{}, err
	}
	if !voter.Alive {
		return refuse(RefusalDeadVoter), nil
	}
	if slices.ContainsFunc(s.ExecutionVotes, func(b ExecutionBallot) bool { return b.VoterID == voterID }) {
		return refuse(RefusalDuplicateVote), nil
	}

	s.ExecutionVotes = append(s.ExecutionVotes, ExecutionBallot{VoterID: voterID, Execute: execute})
	return Ack{Accepted: true, Complete: len(s.ExecutionVotes) >= s.AliveCount()}, nil
}

// ResolveExecutionVote applies the majority. An exact tie spares the accused.
func (s *Session) ResolveExecutionVote() ExecutionResult {
	res := ExecutionResult{
		TargetID:        s.Accused,
		ExecuteVoterIDs: []string{},
		SpareVoterIDs:   []string{},
	}
	for _, b := range s.ExecutionVotes {
		if b.Execute {
			res.ExecuteCount++
			res.ExecuteVoterIDs = append(res.ExecuteVoterIDs, b.VoterID)
		} else {
			res.SpareCount++
			res.SpareVoterIDs = append(res.SpareVoterIDs, b.VoterID)
		}
	}

	res.Tie = res.ExecuteCount == res.SpareCount
	res.Executed = res.ExecuteCount > res.SpareCount
	if res.Executed {
		if p, ok := s.player(s.Accused); ok {
			p.Alive = false
		}
	}
	return res
}
