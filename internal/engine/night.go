package engine

import (
	"fmt"
	"slices"
	"sort"
)

// Alignment is all the police learn about a player.
type Alignment string

const (
	AlignmentMafia   Alignment = "mafia"
	AlignmentCitizen Alignment = "citizen"
)

func AlignmentOf(role Role) Alignment {
	if role == RoleMafia {
		return AlignmentMafia
	}
	return AlignmentCitizen
}

type Inspection struct {
	Night    int       `json:"night"`
	TargetID string    `json:"targetUserId"`
	Result   Alignment `json:"role"`
}

type NightOutcome string

const (
	OutcomeKilled    NightOutcome = "killed"
	OutcomeProtected NightOutcome = "protected"
	OutcomeQuiet     NightOutcome = "quiet"
)

type NightResult struct {
	Night        int          `json:"night"`
	Outcome      NightOutcome `json:"outcome"`
	KilledUserID string       `json:"killedUserId,omitempty"`
	Details      string       `json:"details"`
	// Police is private to the police player and must not be broadcast.
	Police *Inspection `json:"-"`
}

// SubmitNightAction stores a role's target for tonight. Each mafia member
// keeps their own nomination; police and doctor hold a single slot.
func (s *Session) SubmitNightAction(role Role, actorID, targetID string) (Ack, error) {
	if !role.HasNightAction() {
		return Ack{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if s.Phase != PhaseNight || s.NightResultProcessed {
		return refuse(RefusalWrongPhase), nil
	}
	actor, err := s.lookup(actorID)
	if err != nil {
		return Ack{}, err
	}
	target, err := s.lookup(targetID)
	if err != nil {
		return Ack{}, err
	}
	if actor.Role != role {
		return refuse(RefusalNotYourRole), nil
	}
	if !actor.Alive {
		return refuse(RefusalDeadActor), nil
	}
	if !target.Alive {
		return refuse(RefusalDeadTarget), nil
	}

	switch role {
	case RoleMafia:
		s.Night.MafiaTargets[actorID] = targetID
	case RoleDoctor:
		s.Night.DoctorTarget = targetID
	case RolePolice:
		if slices.Contains(s.Investigated, targetID) {
			return refuse(RefusalAlreadyInvestigated), nil
		}
		s.Night.PoliceTarget = targetID
	}
	s.Night.Completed[role] = true

	return Ack{Accepted: true, Complete: s.NightComplete()}, nil
}

// NightComplete reports whether every night role has acted. A role with no
// living holder never blocks the night.
func (s *Session) NightComplete() bool {
	for _, role := range NightRoles {
		if s.Night.Completed[role] {
			continue
		}
		if s.aliveWithRole(role) > 0 {
			return false
		}
	}
	return true
}

// ResolveNight applies tonight's actions once. The second return is false
// when the night was already resolved and nothing changed.
func (s *Session) ResolveNight(rng Rand) (NightResult, bool) {
	if s.NightResultProcessed {
		return NightResult{}, false
	}
	s.NightResultProcessed = true

	res := NightResult{Night: s.Day, Outcome: OutcomeQuiet, Details: "nobody was attacked during the night"}

	if targets := s.distinctMafiaTargets(); len(targets) > 0 {
		chosen := targets[rng.IntN(len(targets))]
		if chosen == s.Night.DoctorTarget {
			res.Outcome = OutcomeProtected
			res.Details = "the mafia attacked, but the target was protected by the doctor"
		} else if p, ok := s.player(chosen); ok {
			p.Alive = false
			res.Outcome = OutcomeKilled
			res.KilledUserID = chosen
			res.Details = fmt.Sprintf("player %s was killed during the night", chosen)
		}
	}

	if target := s.Night.PoliceTarget; target != "" {
		if p, ok := s.player(target); ok {
			insp := Inspection{Night: s.Day, TargetID: target, Result: AlignmentOf(p.Role)}
			res.Police = &insp
			s.LastInspection = &insp
			s.Investigated = append(s.Investigated, target)
		}
	}

	s.LastNight = &res
	return res, true
}

// distinctMafiaTargets returns each nominated target once, so agreement
// between mafia members does not weight the pick.
func (s *Session) distinctMafiaTargets() []string {
	seen := make(map[string]bool, len(s.Night.MafiaTargets))
	var targets []string
	for _, target := range s.Night.MafiaTargets {
		if !seen[target] {
			seen[target] = true
			targets = append(targets, target)
		}
	}
	sort.Strings(targets)
	return targets
}

// PoliceResult answers a police player's request: tonight's pending
// inspection if one is chosen, otherwise the last resolved one.
func (s *Session) PoliceResult(requesterID string) (*Inspection, Refusal, error) {
	requester, err := s.lookup(requesterID)
	if err != nil {
		return nil, RefusalNone, err
	}
	if requester.Role != RolePolice {
		return nil, RefusalNotPolice, nil
	}
	if !requester.Alive {
		return nil, RefusalDeadActor, nil
	}
	if s.Phase == PhaseNight && !s.NightResultProcessed && s.Night.PoliceTarget != "" {
		if p, ok := s.player(s.Night.PoliceTarget); ok {
			return &Inspection{Night: s.Day, TargetID: p.ID, Result: AlignmentOf(p.Role)}, RefusalNone, nil
		}
	}
	if s.LastInspection != nil {
		insp := *s.LastInspection
		return &insp, RefusalNone, nil
	}
	return nil, RefusalNoInspection, nil
}
