// Package ledger declares what the orchestration layer needs from a ledger:
// somewhere to dispatch signed requests and somewhere to read their status.
package ledger

import (
	"context"

	"github.com/mohitkumar/txflow/model"
)

type Dispatcher interface {
	// Dispatch returns once the ledger accepted the request for propagation.
	Dispatch(ctx context.Context, req model.OperationRequest) (model.OperationHandle, error)
}

type StatusSource interface {
	// Status returns the latest known status. A handle unknown to the ledger
	// yields *model.NotFoundError, anything else is considered transient.
	Status(ctx context.Context, handle model.OperationHandle) (model.OperationStatus, error)
}

type Ledger interface {
	Dispatcher
	StatusSource
}
