package notify

import (
	"context"
	"time"

	"github.com/DoyleJ11/mafia-backend/internal/engine"
	"go.uber.org/zap"
)

// Wire event names.
const (
	EventYourRole      = "yourRole"
	EventPhaseUpdated  = "PHASE_UPDATED"
	EventNightStart    = "ROOM:NIGHT_START"
	EventVoteUpdated   = "voteUpdated"
	EventVoteSurvival  = "VOTE:SURVIVAL"
	EventVoteFirstTie  = "VOTE:FIRST:TIE"
	EventVoteDead      = "VOTE:SECOND:DEAD"
	EventVoteSpared    = "VOTE:SECOND:SPARED"
	EventVoteSecondTie = "VOTE:SECOND:TIE"
	EventNightResult   = "ROOM:NIGHT_RESULT"
	EventPoliceResult  = "POLICE:RESULT"
	EventGameEnd       = "gameEnd"
	EventChatRoom      = "message"
	EventChatMafia     = "CHAT:MAFIA"
	EventChatDead      = "CHAT:DEAD"
)

// ActionEvent names the night-action notice for a role.
func ActionEvent(role engine.Role) string {
	switch role {
	case engine.RoleMafia:
		return "ACTION:MAFIA_TARGET"
	case engine.RolePolice:
		return "ACTION:POLICE_TARGET"
	case engine.RoleDoctor:
		return "ACTION:DOCTOR_TARGET"
	default:
		return ""
	}
}

func ChatEvent(ch engine.Channel) string {
	switch ch {
	case engine.ChannelMafia:
		return EventChatMafia
	case engine.ChannelDead:
		return EventChatDead
	default:
		return EventChatRoom
	}
}

// Sink delivers named payloads to players. Delivery is best effort.
type Sink interface {
	Broadcast(ctx context.Context, roomID, event string, payload any) error
	Unicast(ctx context.Context, roomID, playerID, event string, payload any) error
}

type RolePayload struct {
	Role     engine.Role `json:"role"`
	Partners []string    `json:"partners,omitempty"`
}

type PhasePayload struct {
	GameID     string       `json:"gameId"`
	Day        int          `json:"day"`
	Phase      engine.Phase `json:"phase"`
	Stage      engine.Stage `json:"stage,omitempty"`
	DurationMS int64        `json:"durationMs"`
	Accused    string       `json:"accused,omitempty"`
}

type FirstVotePayload struct {
	TargetID   string         `json:"targetId,omitempty"`
	VoteCount  int            `json:"voteCount"`
	Candidates []string       `json:"candidates,omitempty"`
	Tally      map[string]int `json:"tally"`
}

type ActionPayload struct {
	Role     engine.Role `json:"role"`
	Selected bool        `json:"selected"`
}

// NightResultPayload keeps killedUserId as null on a quiet or protected
// night.
type NightResultPayload struct {
	Night        int                 `json:"night"`
	Outcome      engine.NightOutcome `json:"outcome"`
	KilledUserID *string             `json:"killedUserId"`
	Details      string              `json:"details"`
}

type ChatPayload struct {
	SenderID string         `json:"senderId"`
	Channel  engine.Channel `json:"channel"`
	Message  string         `json:"message"`
	SentAt   time.Time      `json:"sentAt"`
}

// Notifier turns domain events into wire messages. Its Handle method is an
// event bus handler.
type Notifier struct {
	sink   Sink
	logger *zap.Logger
}

func New(sink Sink, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{sink: sink, logger: logger.Named("notify")}
}

func (n *Notifier) Handle(ctx context.Context, e engine.Event) {
	switch e.Type {
	case engine.EvtRolesAssigned:
		n.unicast(ctx, e, EventYourRole, RolePayload{Role: e.Role, Partners: e.Partners})

	case engine.EvtPhaseChanged:
		p := PhasePayload{
			GameID:     e.GameID,
			Day:        e.Day,
			Phase:      e.Phase,
			Stage:      e.Stage,
			DurationMS: e.Duration.Milliseconds(),
			Accused:    e.Accused,
		}
		n.broadcast(ctx, e, EventPhaseUpdated, p)
		if e.Phase == engine.PhaseNight {
			n.broadcast(ctx, e, EventNightStart, p)
		}

	case engine.EvtBallotAccepted:
		if e.Ballot != nil {
			n.broadcast(ctx, e, EventVoteUpdated, e.Ballot)
		}

	case engine.EvtVoteResolved:
		switch {
		case e.FirstVote != nil:
			n.firstVote(ctx, e)
		case e.Execution != nil:
			n.execution(ctx, e)
		}

	case engine.EvtNightActionTaken:
		if name := ActionEvent(e.Role); name != "" {
			n.broadcast(ctx, e, name, ActionPayload{Role: e.Role, Selected: true})
		}

	case engine.EvtNightResolved:
		if e.Night == nil {
			return
		}
		p := NightResultPayload{Night: e.Night.Night, Outcome: e.Night.Outcome, Details: e.Night.Details}
		if e.Night.KilledUserID != "" {
			killed := e.Night.KilledUserID
			p.KilledUserID = &killed
		}
		n.broadcast(ctx, e, EventNightResult, p)

	case engine.EvtPoliceResult:
		if e.Police != nil {
			n.unicast(ctx, e, EventPoliceResult, e.Police)
		}

	case engine.EvtGameEnded:
		if e.Final != nil {
			n.broadcast(ctx, e, EventGameEnd, e.Final)
		}
	}
}

func (n *Notifier) firstVote(ctx context.Context, e engine.Event) {
	res := e.FirstVote
	if res.Tie {
		n.broadcast(ctx, e, EventVoteFirstTie, FirstVotePayload{
			VoteCount:  res.VoteCount,
			Candidates: res.TieCandidates,
			Tally:      res.Tally,
		})
		return
	}
	n.broadcast(ctx, e, EventVoteSurvival, FirstVotePayload{
		TargetID:  res.WinnerID,
		VoteCount: res.VoteCount,
		Tally:     res.Tally,
	})
}

func (n *Notifier) execution(ctx context.Context, e engine.Event) {
	res := e.Execution
	switch {
	case res.Executed:
		n.broadcast(ctx, e, EventVoteDead, res)
	case res.Tie:
		n.broadcast(ctx, e, EventVoteSecondTie, res)
	default:
		n.broadcast(ctx, e, EventVoteSpared, res)
	}
}

func (n *Notifier) broadcast(ctx context.Context, e engine.Event, name string, payload any) {
	if err := n.sink.Broadcast(ctx, e.RoomID, name, payload); err != nil {
		n.logger.Warn("broadcast failed", zap.String("room_id", e.RoomID), zap.String("event", name), zap.Error(err))
	}
}

func (n *Notifier) unicast(ctx context.Context, e engine.Event, name string, payload any) {
	if err := n.sink.Unicast(ctx, e.RoomID, e.Recipient, name, payload); err != nil {
		n.logger.Debug("unicast failed",
			zap.String("room_id", e.RoomID),
			zap.String("player_id", e.Recipient),
			zap.String("event", name),
			zap.Error(err),
		)
	}
}
