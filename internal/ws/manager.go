package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/DoyleJ11/mafia-backend/internal/types"
	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("player is not connected")

const outboxSize = 32

type client struct {
	out    chan []byte
	closed bool
}

// Manager tracks one connection per player per room and implements
// notify.Sink.
type Manager struct {
	mu     sync.Mutex
	rooms  map[string]map[string]*client
	logger *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		rooms:  make(map[string]map[string]*client),
		logger: logger.Named("ws"),
	}
}

// Join registers the player's connection and returns its outbox. A second
// connection for the same player replaces the first, whose outbox is closed.
// leave is safe to call more than once.
func (m *Manager) Join(roomID, playerID string) (<-chan []byte, func()) {
	c := &client{out: make(chan []byte, outboxSize)}

	m.mu.Lock()
	players := m.rooms[roomID]
	if players == nil {
		players = make(map[string]*client)
		m.rooms[roomID] = players
	}
	if old := players[playerID]; old != nil {
		m.closeLocked(old)
		m.logger.Debug("connection replaced", zap.String("room_id", roomID), zap.String("player_id", playerID))
	}
	players[playerID] = c
	m.mu.Unlock()

	leave := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.rooms[roomID][playerID] == c {
			m.removeLocked(roomID, playerID)
		}
		m.closeLocked(c)
	}
	return c.out, leave
}

func (m *Manager) Broadcast(_ context.Context, roomID, event string, payload any) error {
	msg, err := encode(event, payload)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.rooms[roomID] {
		m.sendLocked(roomID, id, c, msg)
	}
	return nil
}

func (m *Manager) Unicast(_ context.Context, roomID, playerID, event string, payload any) error {
	msg, err := encode(event, payload)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.rooms[roomID][playerID]
	if c == nil {
		return ErrNotConnected
	}
	m.sendLocked(roomID, playerID, c, msg)
	return nil
}

// Deliver sends to a subset of the room. Players who are not connected are
// skipped.
func (m *Manager) Deliver(_ context.Context, roomID string, playerIDs []string, event string, payload any) error {
	msg, err := encode(event, payload)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range playerIDs {
		if c := m.rooms[roomID][id]; c != nil {
			m.sendLocked(roomID, id, c, msg)
		}
	}
	return nil
}

func (m *Manager) Count(roomID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms[roomID])
}

func (m *Manager) sendLocked(roomID, playerID string, c *client, msg []byte) {
	select {
	case c.out <- msg:
	default:
		// Client is slow/full - drop them.
		m.logger.Warn("dropping slow client", zap.String("room_id", roomID), zap.String("player_id", playerID))
		m.removeLocked(roomID, playerID)
		m.closeLocked(c)
	}
}

func (m *Manager) removeLocked(roomID, playerID string) {
	players := m.rooms[roomID]
	delete(players, playerID)
	if len(players) == 0 {
		delete(m.rooms, roomID)
	}
}

func (m *Manager) closeLocked(c *client) {
	if !c.closed {
		c.closed = true
		close(c.out)
	}
}

func encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return json.Marshal(types.ServerMessage{Type: event, Data: data})
}
