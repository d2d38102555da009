package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pharmaintel/core"
	"github.com/hupe1980/pharmaintel/internal/testutil"
	"github.com/hupe1980/pharmaintel/registry"
)

func newTestOrchestrator(reg *registry.Registry, synth core.Synthesizer, timeout time.Duration) *Orchestrator {
	return New(reg, synth, func(o *Options) { o.AgentTimeout = timeout })
}

func TestRun_DispatchesStrictlyInOrder(t *testing.T) {
	rec := testutil.NewRecorder()
	reg, _ := testutil.NewRecordingRegistry(rec, testutil.CanonicalOrder, nil)
	o := newTestOrchestrator(reg, testutil.NewStubSynthesizer("inhaled sildenafil", 87), time.Second)

	var (
		mu     sync.Mutex
		states = map[string]core.AgentState{}
		orders = map[string]int{}
	)
	for _, id := range reg.ListAgents() {
		orders[id.ID] = id.ExecutionOrder
	}
	observer := func(s core.AgentStatus) {
		mu.Lock()
		defer mu.Unlock()
		if s.State == core.AgentActive {
			for id, st := range states {
				if orders[id] < s.Order {
					assert.Equal(t, core.AgentComplete, st, "%s must be complete before %s starts", id, s.ID)
				}
			}
			for id, order := range orders {
				if order > s.Order {
					_, seen := states[id]
					assert.False(t, seen, "%s observed before %s", id, s.ID)
				}
			}
		}
		states[s.ID] = s.State
	}

	res, err := o.Run(context.Background(), "  sildenafil reformulation ", WithObserver(observer))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, testutil.CanonicalOrder, rec.IDs())
	calls := rec.Calls()
	for i := 1; i < len(calls); i++ {
		assert.Greater(t, calls[i].Seq, calls[i-1].DoneSeq, "%s started before %s finished", calls[i].AgentID, calls[i-1].AgentID)
		assert.False(t, calls[i].Started.Before(calls[i-1].Finished))
	}
	for _, c := range calls {
		assert.Equal(t, "sildenafil reformulation", c.Query)
	}

	for _, s := range o.States() {
		assert.Equal(t, core.AgentComplete, s.State)
		require.NotNil(t, s.StartedAt)
		require.NotNil(t, s.FinishedAt)
	}
	assert.False(t, o.Running())
}

func TestRun_ResultHasEveryCategory(t *testing.T) {
	reg, _ := testutil.NewRecordingRegistry(nil, testutil.CanonicalOrder, nil)
	synth := testutil.NewStubSynthesizer("inhaled sildenafil", 87)
	synth.Synthesis.Reasoning = "localized delivery"
	o := newTestOrchestrator(reg, synth, time.Second)

	res, err := o.Run(context.Background(), "sildenafil reformulation")
	require.NoError(t, err)

	assert.Equal(t, "inhaled sildenafil", res.Hypothesis)
	assert.Equal(t, "localized delivery", res.Reasoning)
	assert.Equal(t, 87, res.Confidence)
	for _, c := range core.Categories() {
		assert.NotEmpty(t, res.Rationale[c], c)
	}
	assert.Equal(t,
		"clinical evidence for sildenafil reformulation\n\ninternal evidence for sildenafil reformulation",
		res.Rationale[core.CategoryClinicalRationale])

	ev := synth.Evidence()
	require.Len(t, ev, 1)
	assert.Len(t, ev[0].Contributions, 6)
	assert.Equal(t, "clinical", ev[0].Contributions[0].AgentID)
}

func TestRun_ClampsConfidence(t *testing.T) {
	for raw, want := range map[int]int{150: 100, -10: 0, 42: 42} {
		reg, _ := testutil.NewRecordingRegistry(nil, []string{"clinical", "patent", "web"}, nil)
		o := newTestOrchestrator(reg, testutil.NewStubSynthesizer("h", raw), time.Second)

		res, err := o.Run(context.Background(), "q")
		require.NoError(t, err)
		assert.Equal(t, want, res.Confidence, "raw %d", raw)
	}
}

func TestRun_AgentFailureStopsPipeline(t *testing.T) {
	rec := testutil.NewRecorder()
	boom := errors.New("patent database unavailable")
	reg, _ := testutil.NewRecordingRegistry(rec, testutil.CanonicalOrder, map[string]error{"patent": boom})
	synth := testutil.NewStubSynthesizer("h", 50)
	o := newTestOrchestrator(reg, synth, time.Second)

	var activated []string
	res, err := o.Run(context.Background(), "sildenafil reformulation", WithObserver(func(s core.AgentStatus) {
		if s.State == core.AgentActive {
			activated = append(activated, s.ID)
		}
	}))

	assert.Nil(t, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPipelineFailed)
	assert.ErrorIs(t, err, boom)

	var pf *core.PipelineFailedError
	require.True(t, errors.As(err, &pf))
	assert.Equal(t, "patent", pf.AgentID)

	assert.Equal(t, []string{"clinical", "patent"}, activated)
	assert.Equal(t, []string{"clinical", "patent"}, rec.IDs())
	assert.Empty(t, synth.Evidence())

	states := o.States()
	assert.Equal(t, core.AgentComplete, states[0].State)
	assert.Equal(t, core.AgentFailed, states[1].State)
	assert.Equal(t, boom.Error(), states[1].Error)
	for _, s := range states[2:] {
		assert.Equal(t, core.AgentIdle, s.State, s.ID)
		assert.Nil(t, s.StartedAt)
	}
}

func TestRun_EmptyQuery(t *testing.T) {
	reg, _ := testutil.NewRecordingRegistry(nil, []string{"clinical"}, nil)
	o := newTestOrchestrator(reg, testutil.NewStubSynthesizer("h", 1), time.Second)

	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := o.Run(context.Background(), q)
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	}
	assert.Empty(t, o.States())
}

func TestRun_RejectsConcurrentRun(t *testing.T) {
	blocker := testutil.NewBlockingAgent(core.CategoryPatentStatus)
	reg := registry.MustNew(registry.Entry{Identity: core.AgentIdentity{ID: "patent"}, Agent: blocker})
	o := newTestOrchestrator(reg, testutil.NewStubSynthesizer("h", 1), 0)

	errCh := make(chan error, 1)
	go func() {
		_, err := o.Run(context.Background(), "first")
		errCh <- err
	}()
	<-blocker.Started

	_, err := o.Run(context.Background(), "second")
	assert.ErrorIs(t, err, core.ErrSessionInProgress)
	assert.True(t, o.Running())

	close(blocker.Release)
	require.NoError(t, <-errCh)

	_, err = o.Run(context.Background(), "third")
	assert.NoError(t, err)
}

func TestRun_AgentTimeout(t *testing.T) {
	blocker := testutil.NewBlockingAgent(core.CategoryPatentStatus)
	rec := testutil.NewRecorder()
	reg := registry.MustNew(
		registry.Entry{Identity: core.AgentIdentity{ID: "patent", ExecutionOrder: 0}, Agent: blocker},
		registry.Entry{Identity: core.AgentIdentity{ID: "web", ExecutionOrder: 1}, Agent: &testutil.RecordingAgent{ID: "web", Category: core.CategoryRegulatoryPath, Recorder: rec}},
	)
	o := newTestOrchestrator(reg, testutil.NewStubSynthesizer("h", 1), 20*time.Millisecond)

	_, err := o.Run(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPipelineFailed)
	assert.ErrorIs(t, err, core.ErrTimeout)

	var te *core.TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "patent", te.AgentID)
	assert.Equal(t, 20*time.Millisecond, te.After)

	assert.Empty(t, rec.IDs())
	assert.Equal(t, core.AgentFailed, o.States()[0].State)
}

type sleepyAgent struct{ d time.Duration }

func (a sleepyAgent) Run(context.Context, core.Request) (core.Contribution, error) {
	time.Sleep(a.d)
	return core.Contribution{Category: core.CategoryPatentStatus, Text: "late"}, nil
}

func TestRun_TimeoutWhenAgentIgnoresContext(t *testing.T) {
	reg := registry.MustNew(registry.Entry{Identity: core.AgentIdentity{ID: "patent"}, Agent: sleepyAgent{d: 500 * time.Millisecond}})
	o := newTestOrchestrator(reg, testutil.NewStubSynthesizer("h", 1), 20*time.Millisecond)

	start := time.Now()
	_, err := o.Run(context.Background(), "q")
	assert.ErrorIs(t, err, core.ErrTimeout)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestRun_CooperativeCancellation(t *testing.T) {
	blocker := testutil.NewBlockingAgent(core.CategoryClinicalRationale)
	rec := testutil.NewRecorder()
	reg := registry.MustNew(
		registry.Entry{Identity: core.AgentIdentity{ID: "clinical", ExecutionOrder: 0}, Agent: blocker},
		registry.Entry{Identity: core.AgentIdentity{ID: "patent", ExecutionOrder: 1}, Agent: &testutil.RecordingAgent{ID: "patent", Category: core.CategoryPatentStatus, Recorder: rec}},
	)
	synth := testutil.NewStubSynthesizer("h", 1)
	o := newTestOrchestrator(reg, synth, 0)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := o.Run(ctx, "q")
		errCh <- err
	}()

	<-blocker.Started
	cancel()

	select {
	case err := <-errCh:
		t.Fatalf("cancellation must not interrupt an in-flight agent call, got %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(blocker.Release)
	err := <-errCh
	assert.ErrorIs(t, err, core.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)

	states := o.States()
	assert.Equal(t, core.AgentComplete, states[0].State)
	assert.Equal(t, core.AgentIdle, states[1].State)
	assert.Empty(t, rec.IDs())
	assert.Empty(t, synth.Evidence())
}

func TestRun_InvalidContribution(t *testing.T) {
	tests := map[string]core.Contribution{
		"unknown category": {Category: "reasoning", Text: "x"},
		"empty text":       {Category: core.CategoryPatentStatus, Text: "  "},
	}
	for name, c := range tests {
		t.Run(name, func(t *testing.T) {
			c := c
			agent := agentFunc(func(context.Context, core.Request) (core.Contribution, error) { return c, nil })
			reg := registry.MustNew(registry.Entry{Identity: core.AgentIdentity{ID: "patent"}, Agent: agent})
			o := newTestOrchestrator(reg, testutil.NewStubSynthesizer("h", 1), time.Second)

			_, err := o.Run(context.Background(), "q")
			assert.ErrorIs(t, err, core.ErrInvalidContribution)
			assert.ErrorIs(t, err, core.ErrPipelineFailed)
		})
	}
}

func TestRun_AgentPanicBecomesFailure(t *testing.T) {
	agent := agentFunc(func(context.Context, core.Request) (core.Contribution, error) { panic("kaboom") })
	reg := registry.MustNew(registry.Entry{Identity: core.AgentIdentity{ID: "web"}, Agent: agent})
	o := newTestOrchestrator(reg, testutil.NewStubSynthesizer("h", 1), time.Second)

	_, err := o.Run(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Equal(t, core.AgentFailed, o.States()[0].State)
	assert.False(t, o.Running())
}

func TestRun_SynthesisFailures(t *testing.T) {
	reg, _ := testutil.NewRecordingRegistry(nil, []string{"clinical"}, nil)

	failing := testutil.NewStubSynthesizer("", 0)
	failing.Err = errors.New("model offline")
	_, err := newTestOrchestrator(reg, failing, time.Second).Run(context.Background(), "q")
	assert.ErrorIs(t, err, core.ErrSynthesisFailed)
	assert.ErrorIs(t, err, core.ErrPipelineFailed)

	empty := testutil.NewStubSynthesizer("   ", 90)
	_, err = newTestOrchestrator(reg, empty, time.Second).Run(context.Background(), "q")
	assert.ErrorIs(t, err, core.ErrSynthesisFailed)
}

func TestRun_CancelDuringSynthesis(t *testing.T) {
	reg, _ := testutil.NewRecordingRegistry(nil, []string{"clinical"}, nil)
	synth := testutil.NewBlockingSynthesizer()
	o := newTestOrchestrator(reg, synth, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := o.Run(ctx, "q")
		errCh <- err
	}()

	<-synth.Started
	cancel()

	err := <-errCh
	assert.ErrorIs(t, err, core.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, core.ErrPipelineFailed)
	assert.NotErrorIs(t, err, core.ErrSynthesisFailed)
}

func TestMergeRationale(t *testing.T) {
	r := MergeRationale([]core.AgentEvidence{
		{AgentID: "iqvia", Contribution: core.Contribution{Category: core.CategoryMarketOpportunity, Text: "$2.3B"}},
		{AgentID: "exim", Contribution: core.Contribution{Category: core.CategoryMarketOpportunity, Text: " API imports rising "}},
	})

	assert.Len(t, r, 4)
	assert.Equal(t, "$2.3B\n\nAPI imports rising", r[core.CategoryMarketOpportunity])
	assert.Equal(t, "", r[core.CategoryPatentStatus])
}

type agentFunc func(context.Context, core.Request) (core.Contribution, error)

func (f agentFunc) Run(ctx context.Context, req core.Request) (core.Contribution, error) {
	return f(ctx, req)
}
