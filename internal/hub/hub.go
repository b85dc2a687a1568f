package hub

import (
	"context"
	"errors"

	"github.com/DoyleJ11/mafia-backend/internal/room"
	"go.uber.org/zap"
)

var ErrHubClosed = errors.New("hub closed")

type HubMsg interface{ isHubMsg() }

// RoomReply carries either the room or the reason it could not be built.
type RoomReply struct {
	Room *room.Room
	Err  error
}

type GetRoom struct {
	ID    string
	Reply chan *room.Room
}

// EnsureRoom returns the room, starting its actor on first use.
type EnsureRoom struct {
	ID    string
	Reply chan RoomReply
}

type RemoveRoom struct {
	ID string
}

// EvictRoom drops the room only if it still has no game when asked.
type EvictRoom struct {
	ID string
}

type ListRooms struct {
	Reply chan []string
}

type ShutdownHub struct {
	Done chan struct{}
}

func (GetRoom) isHubMsg()     {}
func (EnsureRoom) isHubMsg()  {}
func (RemoveRoom) isHubMsg()  {}
func (EvictRoom) isHubMsg()   {}
func (ListRooms) isHubMsg()   {}
func (ShutdownHub) isHubMsg() {}

// Hub is the registry of room actors. Every room shares the same deps.
type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*room.Room
	deps   room.Deps
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, deps room.Deps) *Hub {
	ctx, cancel := context.WithCancel(parent)
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*room.Room),
		deps:   deps,
		logger: logger.Named("hub"),
		ctx:    ctx,
		cancel: cancel,
	}
	h.deps.OnIdle = h.evict
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case GetRoom:
				msg.Reply <- h.rooms[msg.ID] // May be nil

			case EnsureRoom:
				if r := h.rooms[msg.ID]; r != nil {
					msg.Reply <- RoomReply{Room: r}
					break
				}
				r, err := room.New(h.ctx, msg.ID, h.deps)
				if err != nil {
					msg.Reply <- RoomReply{Err: err}
					break
				}
				h.rooms[msg.ID] = r
				h.logger.Debug("room opened", zap.String("room_id", msg.ID))
				msg.Reply <- RoomReply{Room: r}

			case RemoveRoom:
				if r := h.rooms[msg.ID]; r != nil {
					r.Close()
					delete(h.rooms, msg.ID)
				}

			case EvictRoom:
				if r := h.rooms[msg.ID]; r != nil && r.RetireIfIdle() {
					delete(h.rooms, msg.ID)
					h.logger.Debug("idle room evicted", zap.String("room_id", msg.ID))
				}

			case ListRooms:
				ids := make([]string, 0, len(h.rooms))
				for id := range h.rooms {
					ids = append(ids, id)
				}
				msg.Reply <- ids

			case ShutdownHub:
				h.closeAll()
				h.cancel()
				if msg.Done != nil {
					close(msg.Done)
				}
				return
			}
		}
	}
}

func (h *Hub) closeAll() {
	for _, r := range h.rooms {
		r.Close()
	}
	clear(h.rooms)
}

// Room is a blocking helper around EnsureRoom.
func (h *Hub) Room(ctx context.Context, id string) (*room.Room, error) {
	reply := make(chan RoomReply, 1)
	select {
	case h.inbox <- EnsureRoom{ID: id, Reply: reply}:
	case <-h.ctx.Done():
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case rep := <-reply:
		return rep.Room, rep.Err
	case <-h.ctx.Done():
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Active returns the room's actor when a game is running there, starting the
// actor if the game outlived a previous one. Rooms without a game get
// store.ErrNotFound and no actor.
func (h *Hub) Active(ctx context.Context, id string) (*room.Room, error) {
	if !room.ValidID(id) {
		return nil, room.ErrInvalidRoomID
	}
	if r, ok := h.Lookup(ctx, id); ok {
		return r, nil
	}
	if _, err := h.deps.Store.Load(ctx, id); err != nil {
		return nil, err
	}
	return h.Room(ctx, id)
}

// Rooms lists the ids of running room actors.
func (h *Hub) Rooms(ctx context.Context) []string {
	reply := make(chan []string, 1)
	select {
	case h.inbox <- ListRooms{Reply: reply}:
	case <-h.ctx.Done():
		return nil
	case <-ctx.Done():
		return nil
	}
	select {
	case ids := <-reply:
		return ids
	case <-h.ctx.Done():
		return nil
	case <-ctx.Done():
		return nil
	}
}

func (h *Hub) evict(id string) {
	select {
	case h.inbox <- EvictRoom{ID: id}:
	case <-h.ctx.Done():
	}
}

// Lookup returns the room only if its actor is already running.
func (h *Hub) Lookup(ctx context.Context, id string) (*room.Room, bool) {
	reply := make(chan *room.Room, 1)
	select {
	case h.inbox <- GetRoom{ID: id, Reply: reply}:
	case <-h.ctx.Done():
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
	select {
	case r := <-reply:
		return r, r != nil
	case <-h.ctx.Done():
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

// Shutdown closes every room and stops the hub.
func (h *Hub) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	select {
	case h.inbox <- ShutdownHub{Done: done}:
	case <-h.ctx.Done():
		return
	case <-ctx.Done():
		return
	}
	select {
	case <-done:
	case <-h.ctx.Done():
	case <-ctx.Done():
	}
}
