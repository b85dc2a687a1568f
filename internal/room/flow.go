package room

import (
	"errors"
	"fmt"

	"github.com/DoyleJ11/mafia-backend/internal/engine"
	"github.com/DoyleJ11/mafia-backend/internal/store"
	"go.uber.org/zap"
)

func (r *Room) load() (engine.Session, error) {
	sess, err := r.deps.Store.Load(r.ctx, r.id)
	if errors.Is(err, store.ErrNotFound) {
		r.idle = true
	}
	return sess, err
}

func (r *Room) start(roster []string) (string, error) {
	_, err := r.deps.Store.Load(r.ctx, r.id)
	switch {
	case err == nil:
		return "", ErrSessionExists
	case !errors.Is(err, store.ErrNotFound):
		return "", err
	}

	sess, err := engine.NewSession(r.id, r.deps.NewID(), roster, r.deps.Rand)
	if err != nil {
		r.idle = true
		return "", err
	}

	mafia := sess.IDsWithRole(engine.RoleMafia)
	var events []engine.Event
	for _, p := range sess.Players {
		e := sess.Event(engine.EvtRolesAssigned)
		e.Recipient = p.ID
		e.Role = p.Role
		if p.Role == engine.RoleMafia {
			for _, id := range mafia {
				if id != p.ID {
					e.Partners = append(e.Partners, id)
				}
			}
		}
		events = append(events, e)
	}

	if err := sess.BeginDay(); err != nil {
		return "", err
	}
	events = append(events, r.phaseChanged(&sess))

	if err := r.commit("", &sess, events); err != nil {
		return "", err
	}
	r.logger.Info("session started", zap.String("game_id", sess.GameID))
	return sess.GameID, nil
}

func (r *Room) firstVote(voterID, targetID string) (engine.Ack, error) {
	sess, err := r.load()
	if err != nil {
		return engine.Ack{}, err
	}
	ack, err := sess.SubmitFirstVote(voterID, targetID)
	if err != nil || !ack.Accepted {
		r.refused("first vote", voterID, ack, err)
		return ack, err
	}

	prev := sess.TimerLabel()
	events := []engine.Event{r.ballotAccepted(&sess, engine.BallotNotice{
		VoterID:  voterID,
		TargetID: targetID,
		Cast:     len(sess.FirstVotes),
	})}
	if ack.Complete {
		if events, err = r.closeFirstVote(&sess, events); err != nil {
			return engine.Ack{}, err
		}
	}
	return ack, r.commit(prev, &sess, events)
}

func (r *Room) executionVote(voterID string, execute bool) (engine.Ack, error) {
	sess, err := r.load()
	if err != nil {
		return engine.Ack{}, err
	}
	ack, err := sess.SubmitExecutionVote(voterID, execute)
	if err != nil || !ack.Accepted {
		r.refused("execution vote", voterID, ack, err)
		return ack, err
	}

	prev := sess.TimerLabel()
	events := []engine.Event{r.ballotAccepted(&sess, engine.BallotNotice{
		VoterID:  voterID,
		TargetID: sess.Accused,
		Execute:  &execute,
		Cast:     len(sess.ExecutionVotes),
	})}
	if ack.Complete {
		if events, err = r.closeExecution(&sess, events); err != nil {
			return engine.Ack{}, err
		}
	}
	return ack, r.commit(prev, &sess, events)
}

func (r *Room) nightAction(role engine.Role, actorID, targetID string) (engine.Ack, error) {
	sess, err := r.load()
	if err != nil {
		return engine.Ack{}, err
	}
	ack, err := sess.SubmitNightAction(role, actorID, targetID)
	if err != nil || !ack.Accepted {
		r.refused("night action", actorID, ack, err)
		return ack, err
	}

	prev := sess.TimerLabel()
	taken := sess.Event(engine.EvtNightActionTaken)
	taken.Role = role
	events := []engine.Event{taken}
	if ack.Complete {
		if events, err = r.closeNight(&sess, events); err != nil {
			return engine.Ack{}, err
		}
	}
	return ack, r.commit(prev, &sess, events)
}

func (r *Room) policeResult(requesterID string) (engine.Ack, error) {
	sess, err := r.load()
	if err != nil {
		return engine.Ack{}, err
	}
	insp, refusal, err := sess.PoliceResult(requesterID)
	if err != nil {
		return engine.Ack{}, err
	}
	if refusal != engine.RefusalNone {
		return engine.Ack{Refusal: refusal}, nil
	}

	e := sess.Event(engine.EvtPoliceResult)
	e.Recipient = requesterID
	e.Police = insp
	r.deps.Events.Publish(e)
	return engine.Ack{Accepted: true}, nil
}

func (r *Room) chat(senderID string, ch engine.Channel) ([]string, engine.Ack, error) {
	sess, err := r.load()
	if err != nil {
		return nil, engine.Ack{}, err
	}
	to, refusal, err := sess.ChatRecipients(senderID, ch)
	if err != nil {
		return nil, engine.Ack{}, err
	}
	if refusal != engine.RefusalNone {
		return nil, engine.Ack{Refusal: refusal}, nil
	}
	return to, engine.Ack{Accepted: true}, nil
}

func (r *Room) phase() (PhaseView, error) {
	sess, err := r.load()
	if err != nil {
		return PhaseView{}, err
	}
	return PhaseView{
		GameID:  sess.GameID,
		Day:     sess.Day,
		Phase:   sess.Phase,
		Stage:   sess.Stage,
		Accused: sess.Accused,
		Alive:   sess.AliveCount(),
	}, nil
}

// expire runs the step a timer guarded, unless the room has moved on since
// the timer was armed.
func (r *Room) expire(fire timerFired) {
	sess, err := r.load()
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.logger.Error("load session on timer", zap.String("label", fire.Label), zap.Error(err))
		}
		return
	}
	if sess.GameID != fire.GameID || sess.Day != fire.Day || sess.TimerLabel() != fire.Label {
		r.logger.Debug("stale timer ignored",
			zap.String("label", fire.Label),
			zap.String("game_id", fire.GameID),
			zap.Int("day", fire.Day),
		)
		return
	}

	var events []engine.Event
	switch fire.Label {
	case engine.LabelMorning:
		events, err = r.openDay(&sess, events)
	case engine.LabelDay:
		events, err = r.closeFirstVote(&sess, events)
	case engine.LabelExecute:
		events, err = r.closeExecution(&sess, events)
	case engine.LabelNight:
		events, err = r.closeNight(&sess, events)
	}
	if err == nil {
		err = r.commit(fire.Label, &sess, events)
	}
	if err != nil {
		r.logger.Error("advance on timer", zap.String("label", fire.Label), zap.Error(err))
	}
}

// resume re-arms the current step's timer for a session that outlived a
// previous room actor.
func (r *Room) resume() {
	sess, err := r.deps.Store.Load(r.ctx, r.id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.logger.Warn("resume: load session", zap.Error(err))
		}
		return
	}
	r.arm(&sess)
	r.logger.Info("resumed session", zap.String("game_id", sess.GameID), zap.String("phase", string(sess.Phase)))
}

func (r *Room) closeFirstVote(sess *engine.Session, events []engine.Event) ([]engine.Event, error) {
	res := sess.ResolveFirstVote()
	resolved := sess.Event(engine.EvtVoteResolved)
	resolved.FirstVote = &res
	events = append(events, resolved)

	if res.Tie {
		return r.toNight(sess, events)
	}
	if err := sess.BeginExecution(res.WinnerID); err != nil {
		return nil, err
	}
	return append(events, r.phaseChanged(sess)), nil
}

func (r *Room) closeExecution(sess *engine.Session, events []engine.Event) ([]engine.Event, error) {
	res := sess.ResolveExecutionVote()
	resolved := sess.Event(engine.EvtVoteResolved)
	resolved.Execution = &res
	events = append(events, resolved)

	if win := sess.EvaluateWin(); win.Over {
		return r.conclude(sess, win, events)
	}
	return r.toNight(sess, events)
}

func (r *Room) toNight(sess *engine.Session, events []engine.Event) ([]engine.Event, error) {
	if err := sess.BeginNight(); err != nil {
		return nil, err
	}
	return append(events, r.phaseChanged(sess)), nil
}

func (r *Room) closeNight(sess *engine.Session, events []engine.Event) ([]engine.Event, error) {
	res, ok := sess.ResolveNight(r.deps.Rand)
	if !ok {
		return events, nil
	}
	resolved := sess.Event(engine.EvtNightResolved)
	resolved.Night = &res
	events = append(events, resolved)

	if res.Police != nil {
		for _, id := range sess.IDsWithRole(engine.RolePolice) {
			e := sess.Event(engine.EvtPoliceResult)
			e.Recipient = id
			e.Police = res.Police
			events = append(events, e)
		}
	}

	if win := sess.EvaluateWin(); win.Over {
		return r.conclude(sess, win, events)
	}
	if err := sess.BeginMorning(); err != nil {
		return nil, err
	}
	return append(events, r.phaseChanged(sess)), nil
}

func (r *Room) openDay(sess *engine.Session, events []engine.Event) ([]engine.Event, error) {
	if err := sess.BeginDay(); err != nil {
		return nil, err
	}
	return append(events, r.phaseChanged(sess)), nil
}

func (r *Room) conclude(sess *engine.Session, win engine.WinResult, events []engine.Event) ([]engine.Event, error) {
	if err := sess.End(); err != nil {
		return nil, err
	}
	final := sess.Final(win.Winner)
	ended := sess.Event(engine.EvtGameEnded)
	ended.Final = &final
	r.logger.Info("game ended",
		zap.String("game_id", sess.GameID),
		zap.String("winner", string(win.Winner)),
		zap.Int("day", sess.Day),
	)
	return append(events, ended), nil
}

// commit persists the session, moves the timer if the step changed and then
// publishes. A concluded game is deleted instead of saved.
func (r *Room) commit(prevLabel string, sess *engine.Session, events []engine.Event) error {
	if sess.Phase == engine.PhaseEnded {
		if err := r.deps.Store.Delete(r.ctx, sess.RoomID, sess.GameID); err != nil {
			return fmt.Errorf("delete finished game: %w", err)
		}
		r.deps.Timers.CancelRoom(r.id)
		r.idle = true
	} else {
		if err := r.deps.Store.Save(r.ctx, *sess); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		if label := sess.TimerLabel(); label != prevLabel {
			if prevLabel != "" {
				r.deps.Timers.Cancel(r.id, prevLabel)
			}
			r.arm(sess)
		}
	}

	for _, e := range events {
		r.deps.Events.Publish(e)
	}
	return nil
}

func (r *Room) arm(sess *engine.Session) {
	label := sess.TimerLabel()
	if label == "" {
		return
	}
	fire := timerFired{Label: label, GameID: sess.GameID, Day: sess.Day}
	if err := r.deps.Timers.Start(r.id, label, r.deps.Durations.For(label), func() { r.post(fire) }); err != nil {
		r.logger.Error("arm timer", zap.String("label", label), zap.Error(err))
	}
}

func (r *Room) phaseChanged(sess *engine.Session) engine.Event {
	e := sess.Event(engine.EvtPhaseChanged)
	e.Duration = r.deps.Durations.For(sess.TimerLabel())
	e.Accused = sess.Accused
	return e
}

func (r *Room) ballotAccepted(sess *engine.Session, notice engine.BallotNotice) engine.Event {
	notice.Needed = sess.AliveCount()
	e := sess.Event(engine.EvtBallotAccepted)
	e.Ballot = &notice
	return e
}

func (r *Room) refused(action, playerID string, ack engine.Ack, err error) {
	if err != nil {
		r.logger.Debug(action+" rejected", zap.String("player_id", playerID), zap.Error(err))
		return
	}
	r.logger.Debug(action+" refused", zap.String("player_id", playerID), zap.String("reason", string(ack.Refusal)))
}
