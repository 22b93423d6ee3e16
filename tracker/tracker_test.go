package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mohitkumar/txflow/config"
	"github.com/mohitkumar/txflow/ledger/simulated"
	"github.com/mohitkumar/txflow/model"
	"github.com/stretchr/testify/require"
)

func testConfig() config.TrackerConfig {
	return config.TrackerConfig{
		PollInterval:   2 * time.Millisecond,
		Timeout:        time.Second,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Overrides: map[string]config.TrackerOverride{
			string(model.KIND_REVEAL_PACK): {Timeout: 40 * time.Millisecond},
		},
	}
}

func st(p model.Phase) model.OperationStatus {
	return model.OperationStatus{Phase: p}
}

func collect(t *testing.T, s *Stream) []model.Phase {
	var phases []model.Phase
	timeout := time.After(5 * time.Second)
	for {
		select {
		case status, ok := <-s.C():
			if !ok {
				return phases
			}
			phases = append(phases, status.Phase)
		case <-timeout:
			t.Fatal("stream did not close")
			return phases
		}
	}
}

func dispatch(t *testing.T, l *simulated.Ledger, kind model.OperationKind, script simulated.Script) model.OperationHandle {
	l.Program(string(kind), script)
	h, err := l.Dispatch(context.Background(), model.OperationRequest{ProgramID: string(kind)})
	require.NoError(t, err)
	return h
}

func TestTracker(t *testing.T) {
	for scenario, fn := range map[string]func(
		t *testing.T, l *simulated.Ledger, tr *Tracker,
	){
		"stale phases are dropped":               testMonotonic,
		"unconfirmed operation expires":          testExpiry,
		"finalized operation waits for the seal": testFinalizedNotExpired,
		"unknown handle surfaces not found":      testNotFound,
		"transient errors are retried":           testTransientRetry,
		"cancellation closes the stream":         testCancel,
		"terminal failure is emitted once":       testTerminalFailure,
	} {
		t.Run(scenario, func(t *testing.T) {
			l := simulated.New()
			fn(t, l, New(l, testConfig()))
		})
	}
}

func testMonotonic(t *testing.T, l *simulated.Ledger, tr *Tracker) {
	h := dispatch(t, l, model.KIND_BUY_PACK, simulated.Statuses(
		st(model.PHASE_PENDING), st(model.PHASE_INCLUDED), st(model.PHASE_PENDING),
		st(model.PHASE_FINALIZED), st(model.PHASE_INCLUDED), st(model.PHASE_SEALED),
	))
	s := tr.Track(context.Background(), h, model.KIND_BUY_PACK)
	require.Equal(t, []model.Phase{
		model.PHASE_PENDING, model.PHASE_INCLUDED, model.PHASE_FINALIZED, model.PHASE_SEALED,
	}, collect(t, s))
	require.NoError(t, s.Err())
}

func testExpiry(t *testing.T, l *simulated.Ledger, tr *Tracker) {
	h := dispatch(t, l, model.KIND_REVEAL_PACK, simulated.Statuses(st(model.PHASE_PENDING)))
	s := tr.Track(context.Background(), h, model.KIND_REVEAL_PACK)
	require.Equal(t, []model.Phase{model.PHASE_PENDING, model.PHASE_EXPIRED}, collect(t, s))
	require.NoError(t, s.Err())
}

func testFinalizedNotExpired(t *testing.T, l *simulated.Ledger, tr *Tracker) {
	script := simulated.Statuses(st(model.PHASE_PENDING))
	for i := 0; i < 40; i++ {
		script = append(script, simulated.Step{Status: st(model.PHASE_FINALIZED)})
	}
	script = append(script, simulated.Step{Status: st(model.PHASE_SEALED)})
	h := dispatch(t, l, model.KIND_REVEAL_PACK, script)
	s := tr.Track(context.Background(), h, model.KIND_REVEAL_PACK)
	require.Equal(t, []model.Phase{model.PHASE_PENDING, model.PHASE_FINALIZED, model.PHASE_SEALED}, collect(t, s))
}

func testNotFound(t *testing.T, l *simulated.Ledger, tr *Tracker) {
	s := tr.Track(context.Background(), "missing", model.KIND_BUY_PACK)
	require.Empty(t, collect(t, s))
	var notFound *model.NotFoundError
	require.ErrorAs(t, s.Err(), &notFound)
}

func testTransientRetry(t *testing.T, l *simulated.Ledger, tr *Tracker) {
	flaky := errors.New("connection reset by peer")
	h := dispatch(t, l, model.KIND_BUY_PACK, simulated.Script{
		{Err: flaky}, {Err: flaky}, {Status: st(model.PHASE_PENDING)}, {Err: flaky}, {Status: st(model.PHASE_SEALED)},
	})
	s := tr.Track(context.Background(), h, model.KIND_BUY_PACK)
	require.Equal(t, []model.Phase{model.PHASE_PENDING, model.PHASE_SEALED}, collect(t, s))
	require.NoError(t, s.Err())
	require.Equal(t, 5, l.Queries(h))
}

func testCancel(t *testing.T, l *simulated.Ledger, tr *Tracker) {
	h := dispatch(t, l, model.KIND_BUY_PACK, simulated.Statuses(st(model.PHASE_PENDING)))
	ctx, cancel := context.WithCancel(context.Background())
	s := tr.Track(ctx, h, model.KIND_BUY_PACK)
	first := <-s.C()
	require.Equal(t, model.PHASE_PENDING, first.Phase)
	cancel()
	collect(t, s)
	require.ErrorIs(t, s.Err(), context.Canceled)
}

func testTerminalFailure(t *testing.T, l *simulated.Ledger, tr *Tracker) {
	h := dispatch(t, l, model.KIND_BUY_PACK, simulated.FailureScript("error: insufficient balance\n"))
	s := tr.Track(context.Background(), h, model.KIND_BUY_PACK)
	var statuses []model.OperationStatus
	for status := range s.C() {
		statuses = append(statuses, status)
	}
	require.Len(t, statuses, 2)
	require.Equal(t, 1, statuses[1].ExecutionCode)
	queries := l.Queries(h)
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, queries, l.Queries(h))
}
