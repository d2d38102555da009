package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pharmaintel/approval"
	"github.com/hupe1980/pharmaintel/core"
	"github.com/hupe1980/pharmaintel/internal/testutil"
	"github.com/hupe1980/pharmaintel/orchestrator"
	"github.com/hupe1980/pharmaintel/registry"
	"github.com/hupe1980/pharmaintel/session"
)

type fixture struct {
	ctrl  *SessionController
	rec   *testutil.Recorder
	sink  *testutil.RecordingSink
	store *session.InMemoryStore
}

func newFixture(t *testing.T, failures map[string]error) *fixture {
	t.Helper()
	rec := testutil.NewRecorder()
	reg, _ := testutil.NewRecordingRegistry(rec, testutil.CanonicalOrder, failures)
	return newFixtureWith(t, reg, rec)
}

func newFixtureWith(t *testing.T, reg *registry.Registry, rec *testutil.Recorder) *fixture {
	t.Helper()
	sink := &testutil.RecordingSink{}
	f := newCustomFixture(t, reg, testutil.NewStubSynthesizer("Develop inhaled sildenafil formulation", 87), sink, sink)
	f.rec, f.sink = rec, sink
	return f
}

func newCustomFixture(t *testing.T, reg *registry.Registry, synth core.Synthesizer, proceeder core.Proceeder, regenerator core.Regenerator) *fixture {
	t.Helper()
	store := session.NewInMemoryStore()
	orch := orchestrator.New(reg, synth)
	gate := approval.New(func(o *approval.Options) {
		o.Proceeder = proceeder
		o.Regenerator = regenerator
	})
	ctrl := New(orch, gate, func(o *Options) {
		o.SessionStore = store
		o.Clock = stepClock()
	})
	return &fixture{ctrl: ctrl, store: store}
}

// stepClock returns strictly increasing timestamps.
func stepClock() func() time.Time {
	var (
		mu sync.Mutex
		t  = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func blockingRegistry(t *testing.T, rec *testutil.Recorder) (*registry.Registry, *testutil.BlockingAgent) {
	t.Helper()
	blocker := testutil.NewBlockingAgent(core.CategoryClinicalRationale)
	entries := []registry.Entry{{
		Identity: core.AgentIdentity{ID: "clinical", DisplayName: "Clinical", ExecutionOrder: 0},
		Agent:    blocker,
	}}
	for i, id := range testutil.CanonicalOrder[1:] {
		entries = append(entries, registry.Entry{
			Identity: core.AgentIdentity{ID: id, DisplayName: id, ExecutionOrder: i + 1},
			Agent:    &testutil.RecordingAgent{ID: id, Category: testutil.DefaultCategories[id], Recorder: rec},
		})
	}
	return registry.MustNew(entries...), blocker
}

func drain(h *Handle) []core.Event {
	var out []core.Event
	for ev := range h.Events() {
		out = append(out, ev)
	}
	return out
}

func TestController_EndToEndAwaitingApproval(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, core.SessionNotStarted, f.ctrl.CurrentState())

	h, err := f.ctrl.Submit(context.Background(), "sildenafil reformulation")
	require.NoError(t, err)
	require.NotEmpty(t, h.SessionID)

	snap, err := f.ctrl.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, core.SessionAwaitingApproval, snap.State)
	require.NotNil(t, snap.Result)
	assert.NotEmpty(t, snap.Result.Hypothesis)
	assert.Len(t, snap.Result.Rationale, 4)
	for _, c := range core.Categories() {
		assert.Contains(t, snap.Result.Rationale, c)
	}
	assert.GreaterOrEqual(t, snap.Result.Confidence, 0)
	assert.LessOrEqual(t, snap.Result.Confidence, 100)
	require.NotNil(t, snap.Decision)
	assert.Equal(t, core.DecisionPending, *snap.Decision)
	for _, a := range snap.Agents {
		assert.Equal(t, core.AgentComplete, a.State, a.ID)
	}
	assert.Equal(t, testutil.CanonicalOrder, f.rec.IDs())
}

func TestController_ApproveSignalsProceed(t *testing.T) {
	f := newFixture(t, nil)
	h, err := f.ctrl.Submit(context.Background(), "sildenafil reformulation")
	require.NoError(t, err)
	_, err = f.ctrl.Wait(waitCtx(t))
	require.NoError(t, err)

	require.NoError(t, f.ctrl.Decide(context.Background(), core.DecisionApproved))
	<-h.Done()

	assert.Equal(t, core.SessionApproved, f.ctrl.CurrentState())
	proceed, regen := f.sink.Counts()
	assert.Equal(t, 1, proceed)
	assert.Equal(t, 0, regen)

	err = f.ctrl.Decide(context.Background(), core.DecisionRejected)
	assert.ErrorIs(t, err, core.ErrAlreadyDecided)
	assert.Equal(t, core.SessionApproved, f.ctrl.CurrentState())

	events := drain(h)
	require.NotEmpty(t, events)
	assert.Equal(t, core.EventSessionStarted, events[0].Type)
	assert.Equal(t, core.EventSessionEnded, events[len(events)-1].Type)
	var sawProceed, sawReady bool
	for _, ev := range events {
		sawProceed = sawProceed || ev.Type == core.EventDecisionProceed
		sawReady = sawReady || ev.Type == core.EventResultReady
	}
	assert.True(t, sawProceed)
	assert.True(t, sawReady)

	archived, err := f.store.Get(context.Background(), h.SessionID)
	require.NoError(t, err)
	assert.Equal(t, core.SessionApproved, archived.State)
}

func TestController_RejectSignalsRegenerate(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.ctrl.Submit(context.Background(), "sildenafil reformulation")
	require.NoError(t, err)
	_, err = f.ctrl.Wait(waitCtx(t))
	require.NoError(t, err)

	require.NoError(t, f.ctrl.Decide(context.Background(), core.DecisionRejected))
	assert.Equal(t, core.SessionRejected, f.ctrl.CurrentState())
	proceed, regen := f.sink.Counts()
	assert.Equal(t, 0, proceed)
	assert.Equal(t, 1, regen)
}

func TestController_DecideWithoutPendingResult(t *testing.T) {
	f := newFixture(t, nil)
	assert.ErrorIs(t, f.ctrl.Decide(context.Background(), core.DecisionApproved), core.ErrNoPendingApproval)
}

func TestController_AgentFailureFailsSession(t *testing.T) {
	f := newFixture(t, map[string]error{"patent": errors.New("patent db unavailable")})
	h, err := f.ctrl.Submit(context.Background(), "sildenafil reformulation")
	require.NoError(t, err)

	snap, err := f.ctrl.Wait(waitCtx(t))
	require.NoError(t, err)
	<-h.Done()

	assert.Equal(t, core.SessionFailed, snap.State)
	assert.Nil(t, snap.Result)
	assert.Contains(t, snap.Error, "patent")
	assert.Equal(t, []string{"clinical", "patent"}, f.rec.IDs())

	patent, ok := snap.Agent("patent")
	require.True(t, ok)
	assert.Equal(t, core.AgentFailed, patent.State)
	for _, id := range testutil.CanonicalOrder[2:] {
		a, ok := snap.Agent(id)
		require.True(t, ok)
		assert.Equal(t, core.AgentIdle, a.State, id)
	}

	assert.ErrorIs(t, f.ctrl.Decide(context.Background(), core.DecisionApproved), core.ErrNoPendingApproval)
}

func TestController_RejectsConcurrentSubmit(t *testing.T) {
	rec := testutil.NewRecorder()
	reg, blocker := blockingRegistry(t, rec)
	f := newFixtureWith(t, reg, rec)

	_, err := f.ctrl.Submit(context.Background(), "first")
	require.NoError(t, err)
	<-blocker.Started

	_, err = f.ctrl.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, core.ErrSessionInProgress)

	close(blocker.Release)
	_, err = f.ctrl.Wait(waitCtx(t))
	require.NoError(t, err)

	_, err = f.ctrl.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, core.ErrSessionInProgress, "awaiting approval is still in flight")

	require.NoError(t, f.ctrl.Decide(context.Background(), core.DecisionApproved))

	h, err := f.ctrl.Submit(context.Background(), "second")
	require.NoError(t, err)
	snap, err := f.ctrl.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, h.SessionID, snap.SessionID)
	assert.Equal(t, "second", snap.Query)
	assert.Equal(t, core.SessionAwaitingApproval, snap.State)
}

func TestController_SubmitEmptyQuery(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.ctrl.Submit(context.Background(), "  ")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Equal(t, core.SessionNotStarted, f.ctrl.CurrentState())
}

func TestController_CancelRunningSession(t *testing.T) {
	rec := testutil.NewRecorder()
	reg, blocker := blockingRegistry(t, rec)
	f := newFixtureWith(t, reg, rec)

	h, err := f.ctrl.Submit(context.Background(), "sildenafil reformulation")
	require.NoError(t, err)
	<-blocker.Started

	require.NoError(t, f.ctrl.Cancel())
	close(blocker.Release)

	snap, err := f.ctrl.Wait(waitCtx(t))
	require.NoError(t, err)
	<-h.Done()
	assert.Equal(t, core.SessionCancelled, snap.State)
	assert.Nil(t, snap.Result)
	assert.Empty(t, rec.IDs(), "no agent after the cancellation point is dispatched")

	assert.ErrorIs(t, f.ctrl.Cancel(), ErrNoActiveSession)
}

func TestController_AbandonAwaitingApproval(t *testing.T) {
	f := newFixture(t, nil)
	h, err := f.ctrl.Submit(context.Background(), "sildenafil reformulation")
	require.NoError(t, err)
	_, err = f.ctrl.Wait(waitCtx(t))
	require.NoError(t, err)

	require.NoError(t, f.ctrl.Abandon())
	<-h.Done()

	snap := f.ctrl.Snapshot()
	assert.Equal(t, core.SessionCancelled, snap.State)
	require.NotNil(t, snap.Decision)
	assert.Equal(t, core.DecisionPending, *snap.Decision)

	assert.ErrorIs(t, f.ctrl.Decide(context.Background(), core.DecisionApproved), core.ErrNoPendingApproval)
	proceed, regen := f.sink.Counts()
	assert.Zero(t, proceed+regen)

	assert.ErrorIs(t, f.ctrl.Abandon(), ErrNoActiveSession)
}

func TestController_HistoryMostRecentFirst(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, q := range []string{"first", "second"} {
		_, err := f.ctrl.Submit(ctx, q)
		require.NoError(t, err)
		_, err = f.ctrl.Wait(waitCtx(t))
		require.NoError(t, err)
		require.NoError(t, f.ctrl.Decide(ctx, core.DecisionApproved))
	}

	hist, err := f.ctrl.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "second", hist[0].Query)
}

func TestController_SnapshotIsCopy(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.ctrl.Submit(context.Background(), "sildenafil reformulation")
	require.NoError(t, err)
	snap, err := f.ctrl.Wait(waitCtx(t))
	require.NoError(t, err)

	snap.Result.Hypothesis = "mutated"
	snap.Agents[0].State = core.AgentFailed

	fresh := f.ctrl.Snapshot()
	assert.NotEqual(t, "mutated", fresh.Result.Hypothesis)
	assert.Equal(t, core.AgentComplete, fresh.Agents[0].State)
}

func TestController_DecisionWinsOverAbandon(t *testing.T) {
	reg, _ := testutil.NewRecordingRegistry(testutil.NewRecorder(), testutil.CanonicalOrder, nil)
	sink := testutil.NewBlockingSink()
	f := newCustomFixture(t, reg, testutil.NewStubSynthesizer("Develop inhaled sildenafil formulation", 87), sink, sink)

	h, err := f.ctrl.Submit(context.Background(), "sildenafil reformulation")
	require.NoError(t, err)
	_, err = f.ctrl.Wait(waitCtx(t))
	require.NoError(t, err)

	decided := make(chan error, 1)
	go func() { decided <- f.ctrl.Decide(context.Background(), core.DecisionApproved) }()
	<-sink.Started

	// The proceed signal is still in flight.
	snap := f.ctrl.Snapshot()
	assert.Equal(t, core.SessionApproved, snap.State)
	require.NotNil(t, snap.Decision)
	assert.Equal(t, core.DecisionApproved, *snap.Decision)

	assert.ErrorIs(t, f.ctrl.Abandon(), core.ErrAlreadyDecided)
	assert.ErrorIs(t, f.ctrl.Cancel(), core.ErrAlreadyDecided)
	assert.ErrorIs(t, f.ctrl.Decide(context.Background(), core.DecisionRejected), core.ErrAlreadyDecided)

	close(sink.Release)
	require.NoError(t, <-decided)
	<-h.Done()

	snap = f.ctrl.Snapshot()
	assert.Equal(t, core.SessionApproved, snap.State)
	assert.Equal(t, core.DecisionApproved, *snap.Decision)

	archived, err := f.store.Get(context.Background(), h.SessionID)
	require.NoError(t, err)
	assert.Equal(t, core.SessionApproved, archived.State)
	require.NotNil(t, archived.Decision)
	assert.Equal(t, core.DecisionApproved, *archived.Decision)

	proceed, regen := sink.Counts()
	assert.Equal(t, 1, proceed)
	assert.Zero(t, regen)
}

func TestController_CancelDuringSynthesis(t *testing.T) {
	reg, _ := testutil.NewRecordingRegistry(testutil.NewRecorder(), testutil.CanonicalOrder, nil)
	synth := testutil.NewBlockingSynthesizer()
	sink := &testutil.RecordingSink{}
	f := newCustomFixture(t, reg, synth, sink, sink)

	h, err := f.ctrl.Submit(context.Background(), "sildenafil reformulation")
	require.NoError(t, err)
	<-synth.Started

	require.NoError(t, f.ctrl.Cancel())

	snap, err := f.ctrl.Wait(waitCtx(t))
	require.NoError(t, err)
	<-h.Done()

	assert.Equal(t, core.SessionCancelled, snap.State)
	assert.Nil(t, snap.Result)
	assert.Contains(t, snap.Error, core.ErrCancelled.Error())
	assert.NotContains(t, snap.Error, core.ErrSynthesisFailed.Error())
}
