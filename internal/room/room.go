package room

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/DoyleJ11/mafia-backend/internal/engine"
	"github.com/DoyleJ11/mafia-backend/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSessionExists = fmt.Errorf("%w: room already has a live session", engine.ErrValidation)
	ErrInvalidRoomID = fmt.Errorf("%w: room id must be 1-64 letters, digits, '-' or '_'", engine.ErrValidation)
	ErrRoomClosed    = errors.New("room closed")
)

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidID reports whether id is safe to embed in store keys.
func ValidID(id string) bool {
	return roomIDPattern.MatchString(id)
}

// SessionStore is the persistence a room needs. *store.Sessions satisfies it.
type SessionStore interface {
	Load(ctx context.Context, roomID string) (engine.Session, error)
	Save(ctx context.Context, s engine.Session) error
	Delete(ctx context.Context, roomID, gameID string) error
}

// Timers is satisfied by *timer.Coordinator.
type Timers interface {
	Start(room, label string, d time.Duration, onExpire func()) error
	Cancel(room, label string) bool
	CancelRoom(room string) int
}

// Publisher is satisfied by *eventbus.Bus.
type Publisher interface {
	Publish(e engine.Event)
}

type Durations struct {
	Morning time.Duration
	Day     time.Duration
	Execute time.Duration
	Night   time.Duration
}

func (d Durations) For(label string) time.Duration {
	switch label {
	case engine.LabelMorning:
		return d.Morning
	case engine.LabelDay:
		return d.Day
	case engine.LabelExecute:
		return d.Execute
	case engine.LabelNight:
		return d.Night
	default:
		return 0
	}
}

type Deps struct {
	Store     SessionStore
	Timers    Timers
	Events    Publisher
	Rand      engine.Rand
	NewID     func() string
	Durations Durations
	Logger    *zap.Logger
	// OnIdle is called, off the loop, when the room finds it has no game.
	OnIdle func(roomID string)
}

type Msg interface{ isRoomMsg() }

type StartSession struct {
	Roster []string
	Reply  chan StartReply
}

type StartReply struct {
	GameID string
	Err    error
}

type FirstVote struct {
	VoterID  string
	TargetID string
	Reply    chan Result
}

type ExecutionVote struct {
	VoterID string
	Execute bool
	Reply   chan Result
}

type NightAction struct {
	Role     engine.Role
	ActorID  string
	TargetID string
	Reply    chan Result
}

type PoliceRequest struct {
	RequesterID string
	Reply       chan Result
}

// Result answers every player action. Err is set only for malformed or
// impossible requests; rule violations come back as a refused Ack.
type Result struct {
	Ack engine.Ack
	Err error
}

type Chat struct {
	SenderID string
	Channel  engine.Channel
	Reply    chan ChatReply
}

type ChatReply struct {
	Recipients []string
	Ack        engine.Ack
	Err        error
}

type GetPhase struct {
	Reply chan PhaseReply
}

type PhaseReply struct {
	View PhaseView
	Err  error
}

type PhaseView struct {
	GameID  string       `json:"gameId"`
	Day     int          `json:"day"`
	Phase   engine.Phase `json:"phase"`
	Stage   engine.Stage `json:"stage,omitempty"`
	Accused string       `json:"accused,omitempty"`
	Alive   int          `json:"alive"`
}

type Shutdown struct{}

// Retire stops the room if it still has no game. Reply reports whether it
// stopped.
type Retire struct {
	Reply chan bool
}

// timerFired is posted by the room's own timers. It names the step that
// armed it so late fires can be recognised.
type timerFired struct {
	Label  string
	GameID string
	Day    int
}

func (StartSession) isRoomMsg()  {}
func (FirstVote) isRoomMsg()     {}
func (ExecutionVote) isRoomMsg() {}
func (NightAction) isRoomMsg()   {}
func (PoliceRequest) isRoomMsg() {}
func (Chat) isRoomMsg()          {}
func (GetPhase) isRoomMsg()      {}
func (Shutdown) isRoomMsg()      {}
func (Retire) isRoomMsg()        {}
func (timerFired) isRoomMsg()    {}

// Room owns one room's game. Every read-modify-write of the stored session
// happens on the loop goroutine.
type Room struct {
	id     string
	inbox  chan Msg
	deps   Deps
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	idle   bool
}

func New(parent context.Context, id string, deps Deps) (*Room, error) {
	if !ValidID(id) {
		return nil, ErrInvalidRoomID
	}
	if deps.Store == nil || deps.Timers == nil || deps.Events == nil {
		return nil, errors.New("room needs a store, timers and a publisher")
	}
	if deps.Rand == nil {
		deps.Rand = engine.DefaultRand()
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		id:     id,
		inbox:  make(chan Msg, 64),
		deps:   deps,
		logger: deps.Logger.Named("room").With(zap.String("room_id", id)),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go r.loop()
	return r, nil
}

func (r *Room) ID() string { return r.id }

// Inbox exposes the loop so the hub and tests can post messages directly.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Done is closed once the loop has exited.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) loop() {
	defer close(r.done)
	r.resume()

	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case StartSession:
				id, err := r.start(msg.Roster)
				msg.Reply <- StartReply{GameID: id, Err: err}

			case FirstVote:
				ack, err := r.firstVote(msg.VoterID, msg.TargetID)
				msg.Reply <- Result{Ack: ack, Err: err}

			case ExecutionVote:
				ack, err := r.executionVote(msg.VoterID, msg.Execute)
				msg.Reply <- Result{Ack: ack, Err: err}

			case NightAction:
				ack, err := r.nightAction(msg.Role, msg.ActorID, msg.TargetID)
				msg.Reply <- Result{Ack: ack, Err: err}

			case PoliceRequest:
				ack, err := r.policeResult(msg.RequesterID)
				msg.Reply <- Result{Ack: ack, Err: err}

			case Chat:
				to, ack, err := r.chat(msg.SenderID, msg.Channel)
				msg.Reply <- ChatReply{Recipients: to, Ack: ack, Err: err}

			case GetPhase:
				view, err := r.phase()
				msg.Reply <- PhaseReply{View: view, Err: err}

			case timerFired:
				r.expire(msg)

			case Retire:
				if r.vacant() {
					r.shutdown()
					msg.Reply <- true
					return
				}
				msg.Reply <- false

			case Shutdown:
				r.shutdown()
				return
			}
			r.reportIdle()
		}
	}
}

// vacant reads the store directly so it never raises the idle flag itself.
func (r *Room) vacant() bool {
	_, err := r.deps.Store.Load(r.ctx, r.id)
	return errors.Is(err, store.ErrNotFound)
}

func (r *Room) reportIdle() {
	if !r.idle {
		return
	}
	r.idle = false
	if r.deps.OnIdle != nil {
		go r.deps.OnIdle(r.id)
	}
}

func (r *Room) shutdown() {
	n := r.deps.Timers.CancelRoom(r.id)
	r.logger.Debug("room shut down", zap.Int("timers_cancelled", n))
	r.cancel()
}

// post is used by timer callbacks; it never blocks a closed room.
func (r *Room) post(m Msg) {
	select {
	case r.inbox <- m:
	case <-r.ctx.Done():
	}
}

func (r *Room) send(ctx context.Context, m Msg) error {
	select {
	case r.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrRoomClosed
	}
}

func await[T any](ctx context.Context, r *Room, reply chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-r.done:
		return zero, ErrRoomClosed
	}
}

// StartSession deals roles to the roster and opens day one.
func (r *Room) StartSession(ctx context.Context, roster []string) (string, error) {
	reply := make(chan StartReply, 1)
	if err := r.send(ctx, StartSession{Roster: roster, Reply: reply}); err != nil {
		return "", err
	}
	rep, err := await(ctx, r, reply)
	if err != nil {
		return "", err
	}
	return rep.GameID, rep.Err
}

func (r *Room) SubmitFirstVote(ctx context.Context, voterID, targetID string) (engine.Ack, error) {
	reply := make(chan Result, 1)
	return r.act(ctx, FirstVote{VoterID: voterID, TargetID: targetID, Reply: reply}, reply)
}

func (r *Room) SubmitExecutionVote(ctx context.Context, voterID string, execute bool) (engine.Ack, error) {
	reply := make(chan Result, 1)
	return r.act(ctx, ExecutionVote{VoterID: voterID, Execute: execute, Reply: reply}, reply)
}

func (r *Room) SubmitNightAction(ctx context.Context, role engine.Role, actorID, targetID string) (engine.Ack, error) {
	reply := make(chan Result, 1)
	return r.act(ctx, NightAction{Role: role, ActorID: actorID, TargetID: targetID, Reply: reply}, reply)
}

// RequestPoliceResult re-sends the requester's inspection as a private
// PoliceResult event.
func (r *Room) RequestPoliceResult(ctx context.Context, requesterID string) (engine.Ack, error) {
	reply := make(chan Result, 1)
	return r.act(ctx, PoliceRequest{RequesterID: requesterID, Reply: reply}, reply)
}

func (r *Room) act(ctx context.Context, m Msg, reply chan Result) (engine.Ack, error) {
	if err := r.send(ctx, m); err != nil {
		return engine.Ack{}, err
	}
	res, err := await(ctx, r, reply)
	if err != nil {
		return engine.Ack{}, err
	}
	return res.Ack, res.Err
}

// Chat returns who should receive the sender's message on the channel.
func (r *Room) Chat(ctx context.Context, senderID string, ch engine.Channel) ([]string, engine.Ack, error) {
	reply := make(chan ChatReply, 1)
	if err := r.send(ctx, Chat{SenderID: senderID, Channel: ch, Reply: reply}); err != nil {
		return nil, engine.Ack{}, err
	}
	rep, err := await(ctx, r, reply)
	if err != nil {
		return nil, engine.Ack{}, err
	}
	return rep.Recipients, rep.Ack, rep.Err
}

func (r *Room) CurrentPhase(ctx context.Context) (PhaseView, error) {
	reply := make(chan PhaseReply, 1)
	if err := r.send(ctx, GetPhase{Reply: reply}); err != nil {
		return PhaseView{}, err
	}
	rep, err := await(ctx, r, reply)
	if err != nil {
		return PhaseView{}, err
	}
	return rep.View, rep.Err
}

// RetireIfIdle stops the room when it has no game and reports whether it did.
func (r *Room) RetireIfIdle() bool {
	reply := make(chan bool, 1)
	select {
	case r.inbox <- Retire{Reply: reply}:
	case <-r.done:
		return true
	}
	select {
	case ok := <-reply:
		return ok
	case <-r.done:
		return true
	}
}

// Close stops the loop and waits for it. Stored sessions are kept.
func (r *Room) Close() {
	select {
	case r.inbox <- Shutdown{}:
	case <-r.done:
	}
	<-r.done
}
