package memory

import (
	"context"
	"testing"
	"time"

	"github.com/mohitkumar/txflow/model"
	"github.com/mohitkumar/txflow/persistence"
	"github.com/stretchr/testify/require"
)

func TestJournal(t *testing.T) {
	ctx := context.Background()
	j := NewJournal()
	now := time.Now()
	require.NoError(t, j.Record(ctx, model.OperationRecord{Handle: "b", Kind: model.KIND_REVEAL_PACK, SubmittedAt: now.Add(time.Second)}))
	require.NoError(t, j.Record(ctx, model.OperationRecord{Handle: "a", Kind: model.KIND_BUY_PACK, SubmittedAt: now}))
	require.NoError(t, j.MarkAbandoned(ctx, "a"))
	require.NoError(t, j.MarkAbandoned(ctx, "b"))

	abandoned, err := j.Abandoned(ctx)
	require.NoError(t, err)
	require.Len(t, abandoned, 2)
	require.Equal(t, model.OperationHandle("a"), abandoned[0].Handle)

	require.NoError(t, j.Complete(ctx, "a", model.Expired()))
	abandoned, err = j.Abandoned(ctx)
	require.NoError(t, err)
	require.Len(t, abandoned, 1)

	_, err = j.Get(ctx, "missing")
	require.ErrorAs(t, err, &persistence.RecordNotFoundError{})
}
