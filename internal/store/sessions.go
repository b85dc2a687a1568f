package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/DoyleJ11/mafia-backend/internal/engine"
	"go.uber.org/zap"
)

func GameKey(roomID, gameID string) string {
	return fmt.Sprintf("room:%s:game:%s", roomID, gameID)
}

func CurrentGameKey(roomID string) string {
	return fmt.Sprintf("room:%s:currentGameId", roomID)
}

func gamePattern(roomID string) string {
	return fmt.Sprintf("room:%s:game:*", roomID)
}

// Sessions persists whole game sessions. Callers must serialize writes per
// room; the room actor does.
type Sessions struct {
	client HashClient
	logger *zap.Logger
}

func NewSessions(client HashClient, logger *zap.Logger) *Sessions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sessions{client: client, logger: logger.Named("store")}
}

// CurrentGameID reads the room's pointer. When the pointer is missing it
// scans for game hashes, repairs the pointer from the most advanced one and
// returns that id.
func (s *Sessions) CurrentGameID(ctx context.Context, roomID string) (string, error) {
	id, err := s.client.Get(ctx, CurrentGameKey(roomID))
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("read current game of room %s: %w", roomID, err)
	}

	keys, err := s.client.Keys(ctx, gamePattern(roomID))
	if err != nil {
		return "", fmt.Errorf("scan games of room %s: %w", roomID, err)
	}
	if len(keys) == 0 {
		return "", ErrNotFound
	}
	sort.Strings(keys)

	best, bestDay := "", -1
	for _, key := range keys {
		raw, err := s.client.HGet(ctx, key, fieldDay)
		if err != nil {
			continue
		}
		day, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		if day > bestDay {
			best, bestDay = key, day
		}
	}
	if best == "" {
		return "", ErrNotFound
	}

	gameID := best[len(GameKey(roomID, "")):]
	s.logger.Warn("current game pointer missing, recovered from scan",
		zap.String("room_id", roomID),
		zap.String("game_id", gameID),
		zap.Int("candidates", len(keys)),
	)
	if err := s.client.Set(ctx, CurrentGameKey(roomID), gameID); err != nil {
		s.logger.Error("repair current game pointer", zap.String("room_id", roomID), zap.Error(err))
	}
	return gameID, nil
}

// Load returns the room's current session or ErrNotFound.
func (s *Sessions) Load(ctx context.Context, roomID string) (engine.Session, error) {
	gameID, err := s.CurrentGameID(ctx, roomID)
	if err != nil {
		return engine.Session{}, err
	}
	return s.LoadGame(ctx, roomID, gameID)
}

func (s *Sessions) LoadGame(ctx context.Context, roomID, gameID string) (engine.Session, error) {
	fields, err := s.client.HGetAll(ctx, GameKey(roomID, gameID))
	if err != nil {
		return engine.Session{}, fmt.Errorf("load game %s: %w", gameID, err)
	}
	if len(fields) == 0 {
		return engine.Session{}, ErrNotFound
	}
	sess, err := Decode(fields)
	if err != nil {
		return engine.Session{}, fmt.Errorf("decode game %s: %w", gameID, err)
	}
	return sess, nil
}

// Save writes the session hash and points the room at it.
func (s *Sessions) Save(ctx context.Context, sess engine.Session) error {
	fields, err := Encode(sess)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, GameKey(sess.RoomID, sess.GameID), fields); err != nil {
		return fmt.Errorf("save game %s: %w", sess.GameID, err)
	}
	if err := s.client.Set(ctx, CurrentGameKey(sess.RoomID), sess.GameID); err != nil {
		return fmt.Errorf("point room %s at game %s: %w", sess.RoomID, sess.GameID, err)
	}
	return nil
}

// Delete removes the game hash and the room pointer.
func (s *Sessions) Delete(ctx context.Context, roomID, gameID string) error {
	if err := s.client.Del(ctx, GameKey(roomID, gameID), CurrentGameKey(roomID)); err != nil {
		return fmt.Errorf("delete game %s: %w", gameID, err)
	}
	return nil
}

func (s *Sessions) Close() error {
	return s.client.Close()
}
