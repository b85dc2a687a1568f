package engine

import (
	"math/rand/v2"
	"strings"
)

// Rand is the randomness the engine needs. *rand.Rand from math/rand/v2
// satisfies it, so tests can pass a seeded source.
type Rand interface {
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

type globalRand struct{}

func (globalRand) IntN(n int) int                     { return rand.IntN(n) }
func (globalRand) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// DefaultRand uses the runtime-seeded global source, which is safe for
// concurrent use.
func DefaultRand() Rand { return globalRand{} }

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// AliveCount is the number of living players.
func (s *Session) AliveCount() int {
	n := 0
	for _, p := range s.Players {
		if p.Alive {
			n++
		}
	}
	return n
}

func (s *Session) aliveWithRole(role Role) int {
	n := 0
	for _, p := range s.Players {
		if p.Alive && p.Role == role {
			n++
		}
	}
	return n
}

// IDsWithRole lists players holding the role, dead or alive, in roster order.
func (s *Session) IDsWithRole(role Role) []string {
	var ids []string
	for _, p := range s.Players {
		if p.Role == role {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (s *Session) deadIDs() []string {
	var ids []string
	for _, p := range s.Players {
		if !p.Alive {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (s *Session) allIDs() []string {
	ids := make([]string, 0, len(s.Players))
	for _, p := range s.Players {
		ids = append(ids, p.ID)
	}
	return ids
}

// Event builds an event stamped with the session's current position.
func (s *Session) Event(t EventType) Event {
	return Event{
		Type:   t,
		RoomID: s.RoomID,
		GameID: s.GameID,
		Day:    s.Day,
		Phase:  s.Phase,
		Stage:  s.Stage,
	}
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
