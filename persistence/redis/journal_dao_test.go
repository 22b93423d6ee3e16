package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mohitkumar/txflow/model"
	"github.com/mohitkumar/txflow/persistence"
	"github.com/mohitkumar/txflow/util"
	"github.com/stretchr/testify/require"
)

func TestJournalDao(t *testing.T) {
	for scenario, fn := range map[string]func(
		t *testing.T, dao *redisJournalDao,
	){
		"record and get":              testRecordGet,
		"missing record":              testMissingRecord,
		"abandoned until completed":   testAbandonedLifecycle,
		"phase updates are persisted": testUpdatePhase,
	} {
		t.Run(scenario, func(t *testing.T) {
			mr := miniredis.RunT(t)
			conf := Config{
				Addrs:     []string{mr.Addr()},
				Namespace: "test",
			}
			dao := NewRedisJournalDao(conf, util.NewJsonEncoderDecoder[model.OperationRecord]())
			defer dao.Close()
			fn(t, dao)
		})
	}
}

func newRecord(handle string) model.OperationRecord {
	return model.OperationRecord{
		Handle:      model.OperationHandle(handle),
		Kind:        model.KIND_BUY_PACK,
		ProgramID:   "buy-pack",
		FlowId:      "flow-1",
		Params:      map[string]string{"address": "0x01"},
		SubmittedAt: time.Now().Truncate(time.Second),
	}
}

func testRecordGet(t *testing.T, dao *redisJournalDao) {
	ctx := context.Background()
	require.NoError(t, dao.Record(ctx, newRecord("h1")))
	rec, err := dao.Get(ctx, "h1")
	require.NoError(t, err)
	require.Equal(t, model.KIND_BUY_PACK, rec.Kind)
	require.Equal(t, "0x01", rec.Params["address"])
	require.False(t, rec.Abandoned)
}

func testMissingRecord(t *testing.T, dao *redisJournalDao) {
	_, err := dao.Get(context.Background(), "nope")
	require.ErrorAs(t, err, &persistence.RecordNotFoundError{})
	err = dao.MarkAbandoned(context.Background(), "nope")
	require.Error(t, err)
}

func testAbandonedLifecycle(t *testing.T, dao *redisJournalDao) {
	ctx := context.Background()
	require.NoError(t, dao.Record(ctx, newRecord("h1")))
	require.NoError(t, dao.Record(ctx, newRecord("h2")))
	require.NoError(t, dao.MarkAbandoned(ctx, "h1"))

	abandoned, err := dao.Abandoned(ctx)
	require.NoError(t, err)
	require.Len(t, abandoned, 1)
	require.Equal(t, model.OperationHandle("h1"), abandoned[0].Handle)

	require.NoError(t, dao.Complete(ctx, "h1", model.Success(nil)))
	abandoned, err = dao.Abandoned(ctx)
	require.NoError(t, err)
	require.Empty(t, abandoned)

	rec, err := dao.Get(ctx, "h1")
	require.NoError(t, err)
	require.Equal(t, model.OUTCOME_SUCCESS, rec.Outcome.Kind)
}

func testUpdatePhase(t *testing.T, dao *redisJournalDao) {
	ctx := context.Background()
	require.NoError(t, dao.Record(ctx, newRecord("h1")))
	require.NoError(t, dao.UpdatePhase(ctx, "h1", model.PHASE_INCLUDED))
	rec, err := dao.Get(ctx, "h1")
	require.NoError(t, err)
	require.Equal(t, model.PHASE_INCLUDED, rec.LastPhase)
}
