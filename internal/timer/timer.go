package timer

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrInvalidTimer = errors.New("timer needs a room and a label")

type key struct {
	room  string
	label string
}

type entry struct {
	id    uint64
	timer *time.Timer
}

// Coordinator holds at most one live single-shot timer per (room, label).
type Coordinator struct {
	mu     sync.Mutex
	timers map[key]entry
	nextID uint64
	logger *zap.Logger
}

func New(logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		timers: make(map[key]entry),
		logger: logger.Named("timer"),
	}
}

// Start arms onExpire to run once after d, replacing any timer already armed
// under the same room and label. onExpire runs on its own goroutine and must
// not assume the timer is still wanted by the time it runs.
func (c *Coordinator) Start(room, label string, d time.Duration, onExpire func()) error {
	if room == "" || label == "" {
		c.logger.Error("refusing to start timer", zap.String("room_id", room), zap.String("label", label), zap.Error(ErrInvalidTimer))
		return ErrInvalidTimer
	}
	k := key{room, label}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.timers[k]; ok {
		old.timer.Stop()
		c.logger.Warn("replacing live timer", zap.String("room_id", room), zap.String("label", label))
	}

	c.nextID++
	id := c.nextID
	t := time.AfterFunc(d, func() {
		c.mu.Lock()
		cur, ok := c.timers[k]
		if !ok || cur.id != id {
			c.mu.Unlock()
			return
		}
		delete(c.timers, k)
		c.mu.Unlock()

		c.logger.Debug("timer fired", zap.String("room_id", room), zap.String("label", label))
		onExpire()
	})
	c.timers[k] = entry{id: id, timer: t}

	c.logger.Debug("timer started", zap.String("room_id", room), zap.String("label", label), zap.Duration("after", d))
	return nil
}

// Cancel stops the timer if it has not fired. It reports whether a live
// timer was removed.
func (c *Coordinator) Cancel(room, label string) bool {
	k := key{room, label}

	c.mu.Lock()
	e, ok := c.timers[k]
	if ok {
		delete(c.timers, k)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("cancel of absent timer", zap.String("room_id", room), zap.String("label", label))
		return false
	}
	e.timer.Stop()
	return true
}

func (c *Coordinator) Has(room, label string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.timers[key{room, label}]
	return ok
}

// CancelRoom stops every timer of the room and returns how many it stopped.
func (c *Coordinator) CancelRoom(room string) int {
	c.mu.Lock()
	var stopped []*time.Timer
	for k, e := range c.timers {
		if k.room == room {
			stopped = append(stopped, e.timer)
			delete(c.timers, k)
		}
	}
	c.mu.Unlock()

	for _, t := range stopped {
		t.Stop()
	}
	if len(stopped) > 0 {
		c.logger.Debug("room timers cancelled", zap.String("room_id", room), zap.Int("count", len(stopped)))
	}
	return len(stopped)
}

// Len is the number of live timers across all rooms.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
