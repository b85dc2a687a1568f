package hub

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/DoyleJ11/mafia-backend/internal/engine"
	"github.com/DoyleJ11/mafia-backend/internal/room"
	"github.com/DoyleJ11/mafia-backend/internal/store"
	"github.com/DoyleJ11/mafia-backend/internal/timer"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discard struct{}

func (discard) Publish(engine.Event) {}

type noShuffle struct{}

func (noShuffle) IntN(int) int                { return 0 }
func (noShuffle) Shuffle(int, func(i, j int)) {}

var roster = []string{"1", "2", "3", "4", "5", "6", "7", "8"}

func newHub(t *testing.T) *Hub {
	h, _ := newHubWithStore(t)
	return h
}

func newHubWithStore(t *testing.T) (*Hub, *store.Sessions) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := store.OpenRedis(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	sessions := store.NewSessions(client, nil)
	h := NewHub(context.Background(), room.Deps{
		Store:     sessions,
		Timers:    timer.New(nil),
		Events:    discard{},
		Rand:      noShuffle{},
		Durations: room.Durations{Morning: time.Minute, Day: time.Minute, Execute: time.Minute, Night: time.Minute},
	})
	t.Cleanup(func() { h.Shutdown(context.Background()) })
	return h, sessions
}

// nightWithOnlyMafiaActing leaves police and doctor dead so one mafia action
// ends the game.
func nightWithOnlyMafiaActing(t *testing.T, roomID string) engine.Session {
	t.Helper()
	s, err := engine.NewSession(roomID, "g1", roster, noShuffle{})
	require.NoError(t, err)
	require.NoError(t, s.BeginDay())
	require.NoError(t, s.BeginNight())
	for i := range s.Players {
		switch s.Players[i].ID {
		case "6", "7", "8":
			s.Players[i].Alive = false
		}
	}
	return s
}

func TestHub_Ensure_Get_SamePointer(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()

	r1, err := h.Room(ctx, "ZED123")
	require.NoError(t, err)
	r2, err := h.Room(ctx, "ZED123")
	require.NoError(t, err)
	assert.Same(t, r1, r2)

	r3, ok := h.Lookup(ctx, "ZED123")
	require.True(t, ok)
	assert.Same(t, r1, r3)

	_, ok = h.Lookup(ctx, "OTHER")
	assert.False(t, ok)
}

func TestHub_RejectsBadRoomID(t *testing.T) {
	h := newHub(t)
	_, err := h.Room(context.Background(), "no:colons")
	assert.True(t, errors.Is(err, room.ErrInvalidRoomID))

	reply := make(chan []string, 1)
	h.Inbox() <- ListRooms{Reply: reply}
	assert.Empty(t, <-reply)
}

func TestHub_RemoveClosesRoom(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()

	r, err := h.Room(ctx, "r1")
	require.NoError(t, err)

	h.Inbox() <- RemoveRoom{ID: "r1"}
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("room still running after remove")
	}

	_, ok := h.Lookup(ctx, "r1")
	assert.False(t, ok)
}

func TestHub_ShutdownClosesEveryRoom(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()

	a, err := h.Room(ctx, "a")
	require.NoError(t, err)
	b, err := h.Room(ctx, "b")
	require.NoError(t, err)

	h.Shutdown(ctx)
	for _, r := range []*room.Room{a, b} {
		select {
		case <-r.Done():
		case <-time.After(time.Second):
			t.Fatalf("room %s still running", r.ID())
		}
	}
}

func TestHub_ActiveNeedsAGame(t *testing.T) {
	h, sessions := newHubWithStore(t)
	ctx := context.Background()

	for i := range 50 {
		_, err := h.Active(ctx, fmt.Sprintf("empty%d", i))
		assert.True(t, errors.Is(err, store.ErrNotFound))
	}
	_, err := h.Active(ctx, "no:colons")
	assert.True(t, errors.Is(err, room.ErrInvalidRoomID))
	assert.Empty(t, h.Rooms(ctx))

	require.NoError(t, sessions.Save(ctx, nightWithOnlyMafiaActing(t, "live")))
	r, err := h.Active(ctx, "live")
	require.NoError(t, err)
	view, err := r.CurrentPhase(ctx)
	require.NoError(t, err)
	assert.Equal(t, engine.PhaseNight, view.Phase)
	assert.Equal(t, []string{"live"}, h.Rooms(ctx))
}

func TestHub_EvictsRoomAfterGameEnds(t *testing.T) {
	h, sessions := newHubWithStore(t)
	ctx := context.Background()

	require.NoError(t, sessions.Save(ctx, nightWithOnlyMafiaActing(t, "r1")))
	keep, err := h.Room(ctx, "r2")
	require.NoError(t, err)
	_, err = keep.StartSession(ctx, roster)
	require.NoError(t, err)

	r, err := h.Active(ctx, "r1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"r1", "r2"}, h.Rooms(ctx))

	ack, err := r.SubmitNightAction(ctx, engine.RoleMafia, "1", "3")
	require.NoError(t, err)
	require.True(t, ack.Accepted)

	assert.Eventually(t, func() bool {
		return slices.Equal(h.Rooms(ctx), []string{"r2"})
	}, 2*time.Second, 10*time.Millisecond)
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("finished room still running")
	}
}

func TestHub_EvictsRoomAfterFailedStart(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()

	r, err := h.Room(ctx, "r1")
	require.NoError(t, err)
	_, err = r.StartSession(ctx, roster[:3])
	require.True(t, errors.Is(err, engine.ErrInvalidRoster))

	assert.Eventually(t, func() bool { return len(h.Rooms(ctx)) == 0 }, 2*time.Second, 10*time.Millisecond)
}
