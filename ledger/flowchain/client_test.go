package flowchain

import (
	"errors"
	"testing"

	"github.com/mohitkumar/txflow/model"
	"github.com/onflow/flow-go-sdk"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestMapResult(t *testing.T) {
	for scenario, tc := range map[string]struct {
		result   flow.TransactionResult
		expected model.OperationStatus
	}{
		"pending": {
			result:   flow.TransactionResult{Status: flow.TransactionStatusPending},
			expected: model.OperationStatus{Phase: model.PHASE_PENDING},
		},
		"finalized block is included": {
			result:   flow.TransactionResult{Status: flow.TransactionStatusFinalized},
			expected: model.OperationStatus{Phase: model.PHASE_INCLUDED},
		},
		"executed is finalized": {
			result:   flow.TransactionResult{Status: flow.TransactionStatusExecuted},
			expected: model.OperationStatus{Phase: model.PHASE_FINALIZED},
		},
		"sealed with error": {
			result: flow.TransactionResult{
				Status: flow.TransactionStatusSealed,
				Error:  errors.New("error: pre-condition failed: Event pass already used"),
			},
			expected: model.OperationStatus{
				Phase:         model.PHASE_SEALED,
				ExecutionCode: 1,
				RawErrorTrace: "error: pre-condition failed: Event pass already used",
			},
		},
		"expired": {
			result:   flow.TransactionResult{Status: flow.TransactionStatusExpired},
			expected: model.OperationStatus{Phase: model.PHASE_EXPIRED},
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			res := tc.result
			require.Equal(t, tc.expected, mapResult(&res))
		})
	}
}

func TestIsNotFound(t *testing.T) {
	require.True(t, isNotFound(status.Error(codes.NotFound, "transaction not found")))
	require.True(t, isNotFound(errors.New("Flow resource not found")))
	require.False(t, isNotFound(status.Error(codes.Unavailable, "connection refused")))
}
