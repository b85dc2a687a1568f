package eventbus

import (
	"context"
	"sync"

	"github.com/DoyleJ11/mafia-backend/internal/engine"
	"go.uber.org/zap"
)

const defaultBuffer = 1024

// Handler receives events in publish order. Handlers run on the bus
// goroutine, so a slow handler delays the ones after it.
type Handler func(ctx context.Context, e engine.Event)

// Bus fans domain events out to subscribers. Rooms publish and never hear
// back.
type Bus struct {
	inbox  chan engine.Event
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	logger *zap.Logger

	mu       sync.RWMutex
	handlers []Handler
}

func New(parent context.Context, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	b := &Bus{
		inbox:  make(chan engine.Event, defaultBuffer),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: logger.Named("eventbus"),
	}
	go b.loop()
	return b
}

func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
}

// Publish queues the event. It blocks only while the buffer is full and
// gives up once the bus is closed.
func (b *Bus) Publish(e engine.Event) {
	select {
	case b.inbox <- e:
	case <-b.ctx.Done():
		b.logger.Debug("dropping event after close", zap.String("type", string(e.Type)), zap.String("room_id", e.RoomID))
	}
}

// Close stops the loop after delivering what is already queued.
func (b *Bus) Close() {
	b.cancel()
	<-b.done
}

func (b *Bus) loop() {
	defer close(b.done)
	for {
		select {
		case e := <-b.inbox:
			b.dispatch(e)
		case <-b.ctx.Done():
			for {
				select {
				case e := <-b.inbox:
					b.dispatch(e)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(e engine.Event) {
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()

	for _, h := range handlers {
		b.call(h, e)
	}
}

func (b *Bus) call(h Handler, e engine.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("type", string(e.Type)),
				zap.String("room_id", e.RoomID),
				zap.Any("panic", r),
			)
		}
	}()
	// Handlers still get a live context while the queue drains on close.
	h(context.WithoutCancel(b.ctx), e)
}
