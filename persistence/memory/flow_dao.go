package memory

import (
	"context"
	"sync"

	"github.com/mohitkumar/txflow/model"
	"github.com/mohitkumar/txflow/persistence"
)

var _ persistence.FlowDao = new(FlowDao)

type FlowDao struct {
	mu        sync.RWMutex
	snapshots map[string]model.FlowSnapshot
}

func NewFlowDao() *FlowDao {
	return &FlowDao{snapshots: make(map[string]model.FlowSnapshot)}
}

func (f *FlowDao) SaveSnapshot(ctx context.Context, snapshot model.FlowSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[snapshot.ID] = snapshot
	return nil
}

func (f *FlowDao) GetSnapshot(ctx context.Context, flowId string) (*model.FlowSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	snap, ok := f.snapshots[flowId]
	if !ok {
		return nil, persistence.RecordNotFoundError{Key: flowId}
	}
	return &snap, nil
}

func (f *FlowDao) DeleteSnapshot(ctx context.Context, flowId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.snapshots, flowId)
	return nil
}
