package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DoyleJ11/mafia-backend/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []engine.EventType
}

func (r *recorder) handle(_ context.Context, e engine.Event) {
	r.mu.Lock()
	r.events = append(r.events, e.Type)
	r.mu.Unlock()
}

func (r *recorder) seen() []engine.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]engine.EventType(nil), r.events...)
}

func TestBus_DeliversInOrderToEverySubscriber(t *testing.T) {
	b := New(context.Background(), nil)
	defer b.Close()

	var a, c recorder
	b.Subscribe(a.handle)
	b.Subscribe(c.handle)

	want := []engine.EventType{engine.EvtRolesAssigned, engine.EvtPhaseChanged, engine.EvtBallotAccepted}
	for _, typ := range want {
		b.Publish(engine.Event{Type: typ, RoomID: "r1"})
	}

	require.Eventually(t, func() bool { return len(c.seen()) == len(want) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, a.seen())
	assert.Equal(t, want, c.seen())
}

func TestBus_SurvivesPanickingHandler(t *testing.T) {
	b := New(context.Background(), nil)
	defer b.Close()

	var r recorder
	b.Subscribe(func(context.Context, engine.Event) { panic("boom") })
	b.Subscribe(r.handle)

	b.Publish(engine.Event{Type: engine.EvtGameEnded})
	b.Publish(engine.Event{Type: engine.EvtGameEnded})

	require.Eventually(t, func() bool { return len(r.seen()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestBus_CloseDrainsAndStopsAccepting(t *testing.T) {
	b := New(context.Background(), nil)
	var r recorder
	b.Subscribe(r.handle)

	b.Publish(engine.Event{Type: engine.EvtNightResolved})
	b.Close()
	assert.Equal(t, []engine.EventType{engine.EvtNightResolved}, r.seen())

	done := make(chan struct{})
	go func() {
		b.Publish(engine.Event{Type: engine.EvtGameEnded})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked after close")
	}
}
