package room

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/DoyleJ11/mafia-backend/internal/engine"
	"github.com/DoyleJ11/mafia-backend/internal/store"
	"github.com/DoyleJ11/mafia-backend/internal/timer"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// With noShuffle the pool is dealt in order:
// 1,2 mafia; 3-6 citizen; 7 police; 8 doctor.
var roster = []string{"1", "2", "3", "4", "5", "6", "7", "8"}

type noShuffle struct{}

func (noShuffle) IntN(int) int                { return 0 }
func (noShuffle) Shuffle(int, func(i, j int)) {}

type chanPublisher chan engine.Event

func (p chanPublisher) Publish(e engine.Event) { p <- e }

var slow = Durations{Morning: time.Minute, Day: time.Minute, Execute: time.Minute, Night: time.Minute}

type fixture struct {
	room     *Room
	events   chanPublisher
	sessions *store.Sessions
	timers   *timer.Coordinator
	idle     chan string
}

// newFixture saves seed sessions before the room starts so the room resumes
// them.
func newFixture(t *testing.T, d Durations, seed ...engine.Session) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := store.OpenRedis(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	sessions := store.NewSessions(client, nil)
	t.Cleanup(func() { _ = sessions.Close() })

	for _, s := range seed {
		require.NoError(t, sessions.Save(context.Background(), s))
	}

	f := &fixture{
		events:   make(chanPublisher, 256),
		sessions: sessions,
		timers:   timer.New(nil),
		idle:     make(chan string, 16),
	}
	f.room, err = New(context.Background(), "r1", Deps{
		Store:     sessions,
		Timers:    f.timers,
		Events:    f.events,
		Rand:      noShuffle{},
		NewID:     func() string { return "g1" },
		Durations: d,
		OnIdle: func(id string) {
			select {
			case f.idle <- id:
			default:
			}
		},
	})
	require.NoError(t, err)
	t.Cleanup(f.room.Close)
	return f
}

// waitFor skips events until match returns true.
func waitFor(t *testing.T, ch <-chan engine.Event, match func(engine.Event) bool) engine.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-ch:
			if match(e) {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event")
			return engine.Event{}
		}
	}
}

func ofType(typ engine.EventType) func(engine.Event) bool {
	return func(e engine.Event) bool { return e.Type == typ }
}

func phaseIs(phase engine.Phase, stage engine.Stage, day int) func(engine.Event) bool {
	return func(e engine.Event) bool {
		return e.Type == engine.EvtPhaseChanged && e.Phase == phase && e.Stage == stage && e.Day == day
	}
}

func countOf(events []engine.Event, typ engine.EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func waitIdle(t *testing.T, f *fixture) {
	t.Helper()
	select {
	case id := <-f.idle:
		assert.Equal(t, "r1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("room never reported idle")
	}
}

func drain(ch <-chan engine.Event) []engine.Event {
	var out []engine.Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func nightSession(t *testing.T, dead ...string) engine.Session {
	t.Helper()
	s, err := engine.NewSession("r1", "g1", roster, noShuffle{})
	require.NoError(t, err)
	require.NoError(t, s.BeginDay())
	require.NoError(t, s.BeginNight())
	for i := range s.Players {
		if slices.Contains(dead, s.Players[i].ID) {
			s.Players[i].Alive = false
		}
	}
	return s
}

func vote(t *testing.T, r *Room, voter, target string) engine.Ack {
	t.Helper()
	ack, err := r.SubmitFirstVote(context.Background(), voter, target)
	require.NoError(t, err)
	require.True(t, ack.Accepted, "voter %s refused: %s", voter, ack.Refusal)
	return ack
}

func execute(t *testing.T, r *Room, voter string, yes bool) engine.Ack {
	t.Helper()
	ack, err := r.SubmitExecutionVote(context.Background(), voter, yes)
	require.NoError(t, err)
	require.True(t, ack.Accepted, "voter %s refused: %s", voter, ack.Refusal)
	return ack
}

func act(t *testing.T, r *Room, role engine.Role, actor, target string) engine.Ack {
	t.Helper()
	ack, err := r.SubmitNightAction(context.Background(), role, actor, target)
	require.NoError(t, err)
	require.True(t, ack.Accepted, "%s %s refused: %s", role, actor, ack.Refusal)
	return ack
}

func TestNew_RejectsBadRoomID(t *testing.T) {
	for _, id := range []string{"", "a:b", "room*", "a/b"} {
		_, err := New(context.Background(), id, Deps{})
		assert.True(t, errors.Is(err, ErrInvalidRoomID), "id %q", id)
		assert.True(t, errors.Is(err, engine.ErrValidation))
	}
}

func TestRoom_StartSession(t *testing.T) {
	f := newFixture(t, slow)
	ctx := context.Background()

	gameID, err := f.room.StartSession(ctx, roster)
	require.NoError(t, err)
	assert.Equal(t, "g1", gameID)

	roles := map[string]engine.Event{}
	for range roster {
		e := waitFor(t, f.events, ofType(engine.EvtRolesAssigned))
		roles[e.Recipient] = e
	}
	assert.Equal(t, engine.RoleMafia, roles["1"].Role)
	assert.Equal(t, []string{"2"}, roles["1"].Partners)
	assert.Equal(t, []string{"1"}, roles["2"].Partners)
	assert.Equal(t, engine.RolePolice, roles["7"].Role)
	assert.Empty(t, roles["7"].Partners)

	day := waitFor(t, f.events, ofType(engine.EvtPhaseChanged))
	assert.Equal(t, engine.PhaseDay, day.Phase)
	assert.Equal(t, engine.StageFirstVote, day.Stage)
	assert.Equal(t, 1, day.Day)
	assert.Equal(t, time.Minute, day.Duration)

	view, err := f.room.CurrentPhase(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhaseView{GameID: "g1", Day: 1, Phase: engine.PhaseDay, Stage: engine.StageFirstVote, Alive: 8}, view)
	assert.True(t, f.timers.Has("r1", engine.LabelDay))

	_, err = f.room.StartSession(ctx, roster)
	assert.True(t, errors.Is(err, ErrSessionExists))
}

func TestRoom_StartSession_InvalidRoster(t *testing.T) {
	f := newFixture(t, slow)

	_, err := f.room.StartSession(context.Background(), roster[:5])
	assert.True(t, errors.Is(err, engine.ErrInvalidRoster))

	_, err = f.room.CurrentPhase(context.Background())
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.Equal(t, 0, f.timers.Len())
	assert.Empty(t, drain(f.events))

	waitIdle(t, f)
	assert.True(t, f.room.RetireIfIdle())
	select {
	case <-f.room.Done():
	case <-time.After(time.Second):
		t.Fatal("retired room still running")
	}
}

func TestRoom_RetireKeepsLiveGame(t *testing.T) {
	f := newFixture(t, slow)
	_, err := f.room.StartSession(context.Background(), roster)
	require.NoError(t, err)

	assert.False(t, f.room.RetireIfIdle())
	view, err := f.room.CurrentPhase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.PhaseDay, view.Phase)
	assert.True(t, f.timers.Has("r1", engine.LabelDay))
}

func TestRoom_ConcurrentFirstVotesCloseOnce(t *testing.T) {
	f := newFixture(t, slow)
	_, err := f.room.StartSession(context.Background(), roster)
	require.NoError(t, err)
	drain(f.events)

	acks := make([]engine.Ack, len(roster))
	errs := make([]error, len(roster))
	var wg sync.WaitGroup
	for i, voter := range roster {
		target := "3"
		if voter == "3" {
			target = "4"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			acks[i], errs[i] = f.room.SubmitFirstVote(context.Background(), voter, target)
		}()
	}
	wg.Wait()

	complete := 0
	for i := range roster {
		require.NoError(t, errs[i])
		assert.True(t, acks[i].Accepted, "voter %s refused: %s", roster[i], acks[i].Refusal)
		if acks[i].Complete {
			complete++
		}
	}
	assert.Equal(t, 1, complete, "only the last ballot completes the round")

	events := drain(f.events)
	assert.Equal(t, 8, countOf(events, engine.EvtBallotAccepted))
	assert.Equal(t, 1, countOf(events, engine.EvtVoteResolved))
	assert.True(t, engine.ContainsEvent(events, engine.EvtPhaseChanged))

	view, err := f.room.CurrentPhase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.StageExecution, view.Stage)
	assert.Equal(t, "3", view.Accused)
}

func TestRoom_FirstVoteTieGoesToNight(t *testing.T) {
	f := newFixture(t, slow)
	_, err := f.room.StartSession(context.Background(), roster)
	require.NoError(t, err)

	for _, v := range []string{"1", "2", "4", "5"} {
		vote(t, f.room, v, "3")
	}
	for _, v := range []string{"3", "6", "7"} {
		vote(t, f.room, v, "4")
	}
	assert.True(t, vote(t, f.room, "8", "4").Complete)

	resolved := waitFor(t, f.events, ofType(engine.EvtVoteResolved))
	require.NotNil(t, resolved.FirstVote)
	assert.True(t, resolved.FirstVote.Tie)
	assert.Equal(t, []string{"3", "4"}, resolved.FirstVote.TieCandidates)

	waitFor(t, f.events, phaseIs(engine.PhaseNight, engine.StageNone, 1))
	assert.True(t, f.timers.Has("r1", engine.LabelNight))
	assert.False(t, f.timers.Has("r1", engine.LabelDay))
}

func TestRoom_Refusals(t *testing.T) {
	f := newFixture(t, slow)
	ctx := context.Background()
	_, err := f.room.StartSession(ctx, roster)
	require.NoError(t, err)
	drain(f.events)

	ack, err := f.room.SubmitFirstVote(ctx, "3", "3")
	require.NoError(t, err)
	assert.Equal(t, engine.RefusalSelfVote, ack.Refusal)

	ack, err = f.room.SubmitExecutionVote(ctx, "3", true)
	require.NoError(t, err)
	assert.Equal(t, engine.RefusalWrongPhase, ack.Refusal)

	ack, err = f.room.SubmitNightAction(ctx, engine.RoleMafia, "1", "3")
	require.NoError(t, err)
	assert.Equal(t, engine.RefusalWrongPhase, ack.Refusal)

	_, err = f.room.SubmitFirstVote(ctx, "3", "nobody")
	assert.True(t, errors.Is(err, engine.ErrUnknownPlayer))

	vote(t, f.room, "3", "4")
	ack, err = f.room.SubmitFirstVote(ctx, "3", "5")
	require.NoError(t, err)
	assert.Equal(t, engine.RefusalDuplicateVote, ack.Refusal)

	events := drain(f.events)
	require.Len(t, events, 1, "only the accepted ballot is announced")
	assert.Equal(t, engine.EvtBallotAccepted, events[0].Type)
	assert.Equal(t, &engine.BallotNotice{VoterID: "3", TargetID: "4", Cast: 1, Needed: 8}, events[0].Ballot)
}

func TestRoom_FullGame_CitizensWin(t *testing.T) {
	d := slow
	d.Morning = 20 * time.Millisecond
	f := newFixture(t, d)
	ctx := context.Background()

	_, err := f.room.StartSession(ctx, roster)
	require.NoError(t, err)

	// Day 1: player 1 is accused and executed.
	vote(t, f.room, "1", "2")
	for _, v := range roster[1:] {
		vote(t, f.room, v, "1")
	}
	accused := waitFor(t, f.events, phaseIs(engine.PhaseDay, engine.StageExecution, 1))
	assert.Equal(t, "1", accused.Accused)
	assert.True(t, f.timers.Has("r1", engine.LabelExecute))

	for _, v := range roster {
		execute(t, f.room, v, true)
	}
	resolved := waitFor(t, f.events, ofType(engine.EvtVoteResolved))
	require.NotNil(t, resolved.Execution)
	assert.True(t, resolved.Execution.Executed)
	assert.Equal(t, 8, resolved.Execution.ExecuteCount)
	waitFor(t, f.events, phaseIs(engine.PhaseNight, engine.StageNone, 1))

	// Night 1: the doctor saves the mafia's target; police find the mafia.
	act(t, f.room, engine.RoleMafia, "2", "3")
	act(t, f.room, engine.RolePolice, "7", "2")
	assert.True(t, act(t, f.room, engine.RoleDoctor, "8", "3").Complete)

	night := waitFor(t, f.events, ofType(engine.EvtNightResolved))
	assert.Equal(t, engine.OutcomeProtected, night.Night.Outcome)
	assert.Empty(t, night.Night.KilledUserID)

	police := waitFor(t, f.events, ofType(engine.EvtPoliceResult))
	assert.Equal(t, "7", police.Recipient)
	assert.Equal(t, engine.AlignmentMafia, police.Police.Result)

	waitFor(t, f.events, phaseIs(engine.PhaseMorning, engine.StageNone, 1))
	waitFor(t, f.events, phaseIs(engine.PhaseDay, engine.StageFirstVote, 2))

	// Day 2: the last mafia member is executed.
	vote(t, f.room, "2", "3")
	for _, v := range roster[2:] {
		vote(t, f.room, v, "2")
	}
	waitFor(t, f.events, phaseIs(engine.PhaseDay, engine.StageExecution, 2))
	for _, v := range roster[1:] {
		execute(t, f.room, v, true)
	}

	ended := waitFor(t, f.events, ofType(engine.EvtGameEnded))
	require.NotNil(t, ended.Final)
	assert.Equal(t, engine.WinnerCitizens, ended.Final.Winner)
	assert.Equal(t, 2, ended.Final.Days)
	assert.Len(t, ended.Final.Players, 8)

	_, err = f.room.CurrentPhase(ctx)
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.Equal(t, 0, f.timers.Len())
}

func TestRoom_MafiaWinAtNight(t *testing.T) {
	// Police and doctor are dead, so one mafia action completes the night.
	f := newFixture(t, slow, nightSession(t, "6", "7", "8"))
	_, err := f.room.CurrentPhase(context.Background())
	require.NoError(t, err)
	assert.True(t, f.timers.Has("r1", engine.LabelNight), "resumed session re-arms its timer")

	act(t, f.room, engine.RoleMafia, "1", "3")

	night := waitFor(t, f.events, ofType(engine.EvtNightResolved))
	assert.Equal(t, "3", night.Night.KilledUserID)

	ended := waitFor(t, f.events, ofType(engine.EvtGameEnded))
	assert.Equal(t, engine.WinnerMafia, ended.Final.Winner)

	_, err = f.sessions.Load(context.Background(), "r1")
	assert.True(t, errors.Is(err, store.ErrNotFound))
	waitIdle(t, f)
}

func TestRoom_NightTimerResolvesOnce(t *testing.T) {
	d := slow
	d.Night = 30 * time.Millisecond
	f := newFixture(t, d, nightSession(t))

	act(t, f.room, engine.RoleMafia, "1", "4")

	night := waitFor(t, f.events, ofType(engine.EvtNightResolved))
	assert.Equal(t, "4", night.Night.KilledUserID)
	waitFor(t, f.events, phaseIs(engine.PhaseMorning, engine.StageNone, 1))

	// A late fire for the night that already resolved changes nothing.
	f.room.Inbox() <- timerFired{Label: engine.LabelNight, GameID: "g1", Day: 1}
	view, err := f.room.CurrentPhase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.PhaseMorning, view.Phase)
	assert.Equal(t, 7, view.Alive)
	assert.Empty(t, drain(f.events))
}

func TestRoom_NightTimerAfterResolutionIsNoOp(t *testing.T) {
	seed := nightSession(t)
	seed.Night.MafiaTargets["1"] = "4"
	seed.NightResultProcessed = true
	f := newFixture(t, slow, seed)

	f.room.Inbox() <- timerFired{Label: engine.LabelNight, GameID: "g1", Day: 1}
	view, err := f.room.CurrentPhase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.PhaseNight, view.Phase)
	assert.Equal(t, 8, view.Alive)

	events := drain(f.events)
	assert.False(t, engine.ContainsEvent(events, engine.EvtNightResolved))
	assert.False(t, engine.ContainsEvent(events, engine.EvtPhaseChanged))
}

func TestRoom_StaleTimerIgnored(t *testing.T) {
	f := newFixture(t, slow)
	_, err := f.room.StartSession(context.Background(), roster)
	require.NoError(t, err)
	drain(f.events)

	f.room.Inbox() <- timerFired{Label: engine.LabelDay, GameID: "other-game", Day: 1}
	f.room.Inbox() <- timerFired{Label: engine.LabelExecute, GameID: "g1", Day: 1}
	f.room.Inbox() <- timerFired{Label: engine.LabelDay, GameID: "g1", Day: 0}

	view, err := f.room.CurrentPhase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.StageFirstVote, view.Stage)
	assert.Empty(t, drain(f.events))
}

func TestRoom_DayTimerWithoutBallotsGoesToNight(t *testing.T) {
	d := slow
	d.Day = 20 * time.Millisecond
	f := newFixture(t, d)
	_, err := f.room.StartSession(context.Background(), roster)
	require.NoError(t, err)

	resolved := waitFor(t, f.events, ofType(engine.EvtVoteResolved))
	assert.True(t, resolved.FirstVote.Tie)
	assert.Empty(t, resolved.FirstVote.TieCandidates)
	waitFor(t, f.events, phaseIs(engine.PhaseNight, engine.StageNone, 1))
}

func TestRoom_PoliceResultRequest(t *testing.T) {
	f := newFixture(t, slow, nightSession(t))
	ctx := context.Background()

	ack, err := f.room.RequestPoliceResult(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, engine.RefusalNotPolice, ack.Refusal)

	ack, err = f.room.RequestPoliceResult(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, engine.RefusalNoInspection, ack.Refusal)

	act(t, f.room, engine.RolePolice, "7", "5")
	ack, err = f.room.RequestPoliceResult(ctx, "7")
	require.NoError(t, err)
	assert.True(t, ack.Accepted)

	e := waitFor(t, f.events, ofType(engine.EvtPoliceResult))
	assert.Equal(t, "7", e.Recipient)
	assert.Equal(t, &engine.Inspection{Night: 1, TargetID: "5", Result: engine.AlignmentCitizen}, e.Police)
}

func TestRoom_Chat(t *testing.T) {
	f := newFixture(t, slow, nightSession(t, "5"))
	ctx := context.Background()

	to, ack, err := f.room.Chat(ctx, "2", engine.ChannelMafia)
	require.NoError(t, err)
	assert.True(t, ack.Accepted)
	assert.Equal(t, []string{"1", "2"}, to)

	to, _, err = f.room.Chat(ctx, "5", engine.ChannelDead)
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, to)

	_, ack, err = f.room.Chat(ctx, "5", engine.ChannelRoom)
	require.NoError(t, err)
	assert.Equal(t, engine.RefusalDeadSpeaker, ack.Refusal)
}

func TestRoom_ClosedRoom(t *testing.T) {
	f := newFixture(t, slow)
	_, err := f.room.StartSession(context.Background(), roster)
	require.NoError(t, err)

	f.room.Close()
	assert.Equal(t, 0, f.timers.Len())

	_, err = f.room.SubmitFirstVote(context.Background(), "1", "2")
	assert.True(t, errors.Is(err, ErrRoomClosed))

	_, err = f.sessions.Load(context.Background(), "r1")
	assert.NoError(t, err, "closing a room keeps its session")
}
