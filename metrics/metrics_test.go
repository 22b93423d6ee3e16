package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/mohitkumar/txflow/model"
	"github.com/stretchr/testify/require"
)

func TestRecordAndSnapshot(t *testing.T) {
	require.NoError(t, Register())
	ctx := context.Background()
	RecordSubmitted(ctx, model.KIND_BUY_PACK)
	RecordSubmitted(ctx, model.KIND_BUY_PACK)
	RecordOutcome(ctx, model.KIND_BUY_PACK, model.Success(nil), 2*time.Second)

	rows, err := Snapshot()
	require.NoError(t, err)

	var submitted, outcomes int64
	for _, r := range rows {
		if r.Tags["kind"] != string(model.KIND_BUY_PACK) {
			continue
		}
		switch r.View {
		case OperationsSubmitted.Name():
			submitted = r.Count
		case OperationOutcomes.Name():
			require.Equal(t, "SUCCESS", r.Tags["outcome"])
			outcomes = r.Count
		}
	}
	require.Equal(t, int64(2), submitted)
	require.Equal(t, int64(1), outcomes)
}
