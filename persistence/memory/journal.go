package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mohitkumar/txflow/model"
	"github.com/mohitkumar/txflow/persistence"
)

var _ persistence.OperationJournal = new(Journal)

type Journal struct {
	mu      sync.RWMutex
	records map[model.OperationHandle]model.OperationRecord
}

func NewJournal() *Journal {
	return &Journal{records: make(map[model.OperationHandle]model.OperationRecord)}
}

func (j *Journal) Record(ctx context.Context, rec model.OperationRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records[rec.Handle] = rec
	return nil
}

func (j *Journal) Get(ctx context.Context, handle model.OperationHandle) (*model.OperationRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	rec, ok := j.records[handle]
	if !ok {
		return nil, persistence.RecordNotFoundError{Key: handle.String()}
	}
	return &rec, nil
}

func (j *Journal) UpdatePhase(ctx context.Context, handle model.OperationHandle, phase model.Phase) error {
	return j.update(handle, func(rec *model.OperationRecord) {
		rec.LastPhase = phase
	})
}

func (j *Journal) MarkAbandoned(ctx context.Context, handle model.OperationHandle) error {
	return j.update(handle, func(rec *model.OperationRecord) {
		rec.Abandoned = true
	})
}

func (j *Journal) Complete(ctx context.Context, handle model.OperationHandle, outcome model.Outcome) error {
	return j.update(handle, func(rec *model.OperationRecord) {
		rec.Outcome = &outcome
	})
}

func (j *Journal) Abandoned(ctx context.Context) ([]model.OperationRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var res []model.OperationRecord
	for _, rec := range j.records {
		if rec.Abandoned && rec.Outcome == nil {
			res = append(res, rec)
		}
	}
	sort.Slice(res, func(a, b int) bool {
		return res[a].SubmittedAt.Before(res[b].SubmittedAt)
	})
	return res, nil
}

func (j *Journal) update(handle model.OperationHandle, fn func(rec *model.OperationRecord)) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec, ok := j.records[handle]
	if !ok {
		return persistence.RecordNotFoundError{Key: handle.String()}
	}
	fn(&rec)
	rec.UpdatedAt = time.Now()
	j.records[handle] = rec
	return nil
}
