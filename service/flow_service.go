package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/mohitkumar/txflow/flow"
	"github.com/mohitkumar/txflow/flows"
	"github.com/mohitkumar/txflow/logger"
	"github.com/mohitkumar/txflow/model"
	"github.com/mohitkumar/txflow/persistence"
	"go.uber.org/zap"
)

var ErrFlowNotFound = errors.New("flow not found")

// FlowService owns the live flows of this process and mirrors their snapshots into storage.
type FlowService struct {
	catalog *flows.Catalog
	dao     persistence.FlowDao
	wg      *sync.WaitGroup

	mu       sync.RWMutex
	flows    map[string]*flow.Orchestrator
	stoppers map[string]func()
	stopped  bool
}

func NewFlowService(catalog *flows.Catalog, dao persistence.FlowDao, wg *sync.WaitGroup) *FlowService {
	return &FlowService{
		catalog:  catalog,
		dao:      dao,
		wg:       wg,
		flows:    make(map[string]*flow.Orchestrator),
		stoppers: make(map[string]func()),
	}
}

// Create builds an idle flow. It does not submit anything until Start.
func (s *FlowService) Create(ctx context.Context, name string, input map[string]any) (model.FlowSnapshot, error) {
	id := uuid.New().String()
	o, err := s.catalog.Build(id, name, input)
	if err != nil {
		return model.FlowSnapshot{}, err
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return model.FlowSnapshot{}, errors.New("flow service is stopped")
	}
	s.flows[id] = o
	s.mu.Unlock()

	snap := o.Snapshot()
	if err := s.dao.SaveSnapshot(ctx, snap); err != nil {
		logger.Error("error in saving flow snapshot", zap.String("flowId", id), zap.Error(err))
	}
	s.watch(o)
	logger.Info("flow created", zap.String("flow", name), zap.String("flowId", id))
	return snap, nil
}

// Get returns the live snapshot, or the stored one for flows of an earlier process.
func (s *FlowService) Get(ctx context.Context, id string) (model.FlowSnapshot, error) {
	if o, ok := s.lookup(id); ok {
		return o.Snapshot(), nil
	}
	snap, err := s.dao.GetSnapshot(ctx, id)
	if err != nil {
		var notFound persistence.RecordNotFoundError
		if errors.As(err, &notFound) {
			return model.FlowSnapshot{}, ErrFlowNotFound
		}
		return model.FlowSnapshot{}, err
	}
	return *snap, nil
}

func (s *FlowService) Start(ctx context.Context, id string) (model.FlowSnapshot, error) {
	return s.apply(id, func(o *flow.Orchestrator) error { return o.Start(ctx) })
}

func (s *FlowService) Continue(ctx context.Context, id string) (model.FlowSnapshot, error) {
	return s.apply(id, func(o *flow.Orchestrator) error { return o.Continue(ctx) })
}

func (s *FlowService) Retry(ctx context.Context, id string) (model.FlowSnapshot, error) {
	return s.apply(id, func(o *flow.Orchestrator) error { return o.Retry(ctx) })
}

func (s *FlowService) Reset(ctx context.Context, id string) (model.FlowSnapshot, error) {
	return s.apply(id, func(o *flow.Orchestrator) error {
		o.Reset()
		return nil
	})
}

// Wait blocks until the flow stops running.
func (s *FlowService) Wait(ctx context.Context, id string) (model.FlowSnapshot, error) {
	o, ok := s.lookup(id)
	if !ok {
		return s.Get(ctx, id)
	}
	return o.Wait(ctx)
}

// Delete discards the flow. A live operation is handed over to the reconciler.
func (s *FlowService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	o, ok := s.flows[id]
	stop := s.stoppers[id]
	delete(s.flows, id)
	delete(s.stoppers, id)
	s.mu.Unlock()
	if ok {
		if stop != nil {
			stop()
		}
		o.Close()
	}
	if err := s.dao.DeleteSnapshot(ctx, id); err != nil {
		return err
	}
	if !ok {
		logger.Debug("deleted stored flow without live instance", zap.String("flowId", id))
	}
	return nil
}

// Stop closes every live flow. The last snapshot of each is kept in storage, and
// operations still in flight are abandoned so the reconciler, here or in the next
// process, settles them.
func (s *FlowService) Stop() error {
	s.mu.Lock()
	s.stopped = true
	live := s.flows
	stoppers := s.stoppers
	s.flows = make(map[string]*flow.Orchestrator)
	s.stoppers = make(map[string]func())
	s.mu.Unlock()
	for id, o := range live {
		if stop := stoppers[id]; stop != nil {
			stop()
		}
		if err := s.dao.SaveSnapshot(context.Background(), o.Snapshot()); err != nil {
			logger.Error("error in saving flow snapshot", zap.String("flowId", id), zap.Error(err))
		}
		o.Close()
	}
	logger.Info("flow service stopped", zap.Int("flows", len(live)))
	return nil
}

func (s *FlowService) apply(id string, fn func(o *flow.Orchestrator) error) (model.FlowSnapshot, error) {
	o, ok := s.lookup(id)
	if !ok {
		return model.FlowSnapshot{}, ErrFlowNotFound
	}
	if err := fn(o); err != nil {
		return o.Snapshot(), err
	}
	return o.Snapshot(), nil
}

func (s *FlowService) lookup(id string) (*flow.Orchestrator, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.flows[id]
	return o, ok
}

func (s *FlowService) watch(o *flow.Orchestrator) {
	ch, unsubscribe := o.Subscribe()
	done := make(chan struct{})
	s.mu.Lock()
	s.stoppers[o.ID()] = func() {
		unsubscribe()
		<-done
	}
	s.mu.Unlock()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		for snap := range ch {
			if _, live := s.lookup(snap.ID); !live {
				continue
			}
			if err := s.dao.SaveSnapshot(context.Background(), snap); err != nil {
				logger.Error("error in saving flow snapshot", zap.String("flowId", snap.ID), zap.Error(err))
			}
		}
	}()
}
