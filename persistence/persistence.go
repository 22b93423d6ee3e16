package persistence

import (
	"context"
	"fmt"

	"github.com/mohitkumar/txflow/model"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

type RecordNotFoundError struct {
	Key string
}

func (e RecordNotFoundError) Error() string {
	return fmt.Sprintf("record %s not found", e.Key)
}

// OperationJournal keeps a record of every submitted operation until it is classified.
type OperationJournal interface {
	Record(ctx context.Context, rec model.OperationRecord) error
	Get(ctx context.Context, handle model.OperationHandle) (*model.OperationRecord, error)
	UpdatePhase(ctx context.Context, handle model.OperationHandle, phase model.Phase) error
	MarkAbandoned(ctx context.Context, handle model.OperationHandle) error
	Complete(ctx context.Context, handle model.OperationHandle, outcome model.Outcome) error
	// Abandoned lists abandoned operations that have no outcome yet.
	Abandoned(ctx context.Context) ([]model.OperationRecord, error)
}

// FlowDao stores the latest snapshot of each flow.
type FlowDao interface {
	SaveSnapshot(ctx context.Context, snapshot model.FlowSnapshot) error
	GetSnapshot(ctx context.Context, flowId string) (*model.FlowSnapshot, error)
	DeleteSnapshot(ctx context.Context, flowId string) error
}
