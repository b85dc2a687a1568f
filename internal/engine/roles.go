package engine

import (
	"fmt"
	"slices"
)

// RolePool is dealt one slot per player.
var RolePool = []Role{
	RoleMafia,
	RoleMafia,
	RoleCitizen,
	RoleCitizen,
	RoleCitizen,
	RoleCitizen,
	RolePolice,
	RoleDoctor,
}

// NightRoles act at night, in the order their completion is checked.
var NightRoles = []Role{RoleMafia, RolePolice, RoleDoctor}

// AssignRoles deals a uniformly shuffled copy of RolePool to the roster.
func AssignRoles(roster []string, rng Rand) ([]Player, error) {
	if len(roster) != RosterSize {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidRoster, len(roster))
	}
	seen := make(map[string]bool, len(roster))
	for _, id := range roster {
		if id == "" {
			return nil, fmt.Errorf("%w: empty player id", ErrInvalidRoster)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate player %q", ErrInvalidRoster, id)
		}
		seen[id] = true
	}

	roles := slices.Clone(RolePool)
	rng.Shuffle(len(roles), func(i, j int) { roles[i], roles[j] = roles[j], roles[i] })

	players := make([]Player, len(roster))
	for i, id := range roster {
		players[i] = Player{ID: id, Role: roles[i], Alive: true}
	}
	return players, nil
}
