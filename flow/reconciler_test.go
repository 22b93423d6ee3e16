package flow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mohitkumar/txflow/invalidation"
	"github.com/mohitkumar/txflow/model"
	"github.com/mohitkumar/txflow/tracker"
	"github.com/stretchr/testify/require"
)

func outcomeOf(t *testing.T, h *harness, handle model.OperationHandle) func() *model.Outcome {
	return func() *model.Outcome {
		rec, err := h.journal.Get(context.Background(), handle)
		require.NoError(t, err)
		return rec.Outcome
	}
}

func TestReconciler(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"reset operation is followed to success":  testReconcileReset,
		"journal sweep adopts earlier operations": testReconcileSweep,
		"unknown handle settles as failure":       testReconcileNotFound,
	} {
		t.Run(scenario, fn)
	}
}

func testReconcileReset(t *testing.T) {
	h := newHarness(stuckSource{})
	var wg sync.WaitGroup
	r := NewReconciler(tracker.New(h.ledger, trackerConfig()), h.journal, invalidation.NewContract(h.inv, nil), 0, &wg)
	r.Start()
	defer func() {
		r.Stop()
		wg.Wait()
	}()
	h.svc.Abandoned = r

	o, err := New("r1", packDefinition(nil), input(), h.svc)
	require.NoError(t, err)
	require.NoError(t, o.Start(context.Background()))
	require.Eventually(t, func() bool {
		return !o.Snapshot().ActiveHandle.IsZero()
	}, 5*time.Second, time.Millisecond)
	handle := o.Snapshot().ActiveHandle
	o.Reset()

	get := outcomeOf(t, h, handle)
	require.Eventually(t, func() bool { return get() != nil }, 5*time.Second, 2*time.Millisecond)
	require.Equal(t, model.OUTCOME_SUCCESS, get().Kind)
	rec, err := h.journal.Get(context.Background(), handle)
	require.NoError(t, err)
	require.True(t, rec.Abandoned)
	require.Equal(t, 1, h.inv.count("balance:"+address))
	require.Equal(t, model.FLOW_IDLE, o.Snapshot().Status)
}

func testReconcileSweep(t *testing.T) {
	h := newHarness(nil)
	handle, err := h.svc.Submitter.Submit(context.Background(), model.KIND_UPDATE_PROFILE,
		model.OperationRequest{ProgramID: string(model.KIND_UPDATE_PROFILE)})
	require.NoError(t, err)
	require.NoError(t, h.journal.MarkAbandoned(context.Background(), handle))

	var wg sync.WaitGroup
	r := NewReconciler(tracker.New(h.ledger, trackerConfig()), h.journal, invalidation.NewContract(h.inv, nil), 5*time.Millisecond, &wg)
	r.Start()
	defer func() {
		r.Stop()
		wg.Wait()
	}()

	get := outcomeOf(t, h, handle)
	require.Eventually(t, func() bool { return get() != nil }, 5*time.Second, 2*time.Millisecond)
	require.True(t, get().IsSuccess())
	require.Eventually(t, func() bool { return r.Pending() == 0 }, time.Second, time.Millisecond)
	require.Equal(t, 1, h.inv.count("user-profile:*"))

	abandoned, err := h.journal.Abandoned(context.Background())
	require.NoError(t, err)
	require.Empty(t, abandoned)
}

func testReconcileNotFound(t *testing.T) {
	h := newHarness(nil)
	handle := model.OperationHandle("deadbeef")
	require.NoError(t, h.journal.Record(context.Background(), model.OperationRecord{
		Handle: handle,
		Kind:   model.KIND_CHECK_IN,
	}))

	var wg sync.WaitGroup
	r := NewReconciler(tracker.New(h.ledger, trackerConfig()), h.journal, invalidation.NewContract(h.inv, nil), 0, &wg)
	r.Start()
	defer func() {
		r.Stop()
		wg.Wait()
	}()
	r.Abandon(AbandonedOperation{Handle: handle, Kind: model.KIND_CHECK_IN})

	get := outcomeOf(t, h, handle)
	require.Eventually(t, func() bool { return get() != nil }, 5*time.Second, 2*time.Millisecond)
	require.Equal(t, model.OUTCOME_FAILURE, get().Kind)
	require.Empty(t, h.inv.all())
}
