package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/DoyleJ11/mafia-backend/internal/engine"
)

// SchemaVersion is written next to every encoded session. Bump it when the
// JSON shape of engine.Session changes incompatibly.
const SchemaVersion = 1

const (
	fieldSchema  = "schema"
	fieldSession = "session"
	fieldPhase   = "phase"
	fieldDay     = "day"
)

var ErrSchemaMismatch = errors.New("session schema mismatch")

// Encode flattens a session into hash fields. phase and day are mirrors for
// operators inspecting the store; Decode only reads schema and session.
func Encode(s engine.Session) (map[string]string, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	return map[string]string{
		fieldSchema:  strconv.Itoa(SchemaVersion),
		fieldSession: string(payload),
		fieldPhase:   string(s.Phase),
		fieldDay:     strconv.Itoa(s.Day),
	}, nil
}

func Decode(fields map[string]string) (engine.Session, error) {
	payload, ok := fields[fieldSession]
	if !ok {
		return engine.Session{}, ErrNotFound
	}
	if v := fields[fieldSchema]; v != strconv.Itoa(SchemaVersion) {
		return engine.Session{}, fmt.Errorf("%w: got %q, want %d", ErrSchemaMismatch, v, SchemaVersion)
	}

	var s engine.Session
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return engine.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	if s.Night.MafiaTargets == nil {
		s.Night.MafiaTargets = map[string]string{}
	}
	if s.Night.Completed == nil {
		s.Night.Completed = map[engine.Role]bool{}
	}
	return s, nil
}
