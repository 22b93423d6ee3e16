package flow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mohitkumar/txflow/logger"
	"github.com/mohitkumar/txflow/metrics"
	"github.com/mohitkumar/txflow/model"
	"github.com/mohitkumar/txflow/outcome"
	"github.com/mohitkumar/txflow/persistence"
	"github.com/mohitkumar/txflow/util"
	"go.uber.org/zap"
)

const reconcileQueueSize = 64

// Reconciler keeps following operations whose flow was reset, so that a late
// success still reaches the journal and the cache.
type Reconciler struct {
	tracker  StatusTracker
	journal  persistence.OperationJournal
	outcomes OutcomeHandler
	worker   *util.Worker[AbandonedOperation]
	sweeper  *util.TickWorker
	wg       *sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc

	mu       sync.Mutex
	inflight map[model.OperationHandle]bool
}

var _ AbandonHandler = new(Reconciler)

// NewReconciler creates a reconciler. When sweepInterval is positive the journal
// is scanned periodically for abandoned operations left by an earlier process.
func NewReconciler(tracker StatusTracker, journal persistence.OperationJournal, outcomes OutcomeHandler, sweepInterval time.Duration, wg *sync.WaitGroup) *Reconciler {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Reconciler{
		tracker:  tracker,
		journal:  journal,
		outcomes: outcomes,
		wg:       wg,
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[model.OperationHandle]bool),
	}
	r.worker = util.NewWorker[AbandonedOperation]("abandoned-operations", wg, r.adopt, reconcileQueueSize)
	if sweepInterval > 0 {
		r.sweeper = util.NewTickWorker("abandoned-sweeper", sweepInterval, r.sweep, wg)
	}
	return r
}

func (r *Reconciler) Start() {
	r.worker.Start()
	if r.sweeper != nil {
		r.sweeper.Start()
	}
}

func (r *Reconciler) Stop() {
	if r.sweeper != nil {
		r.sweeper.Stop()
	}
	r.worker.Stop()
	r.cancel()
}

// Abandon queues op. It never blocks the caller, a full queue is picked up by the next sweep.
func (r *Reconciler) Abandon(op AbandonedOperation) {
	if err := r.journal.MarkAbandoned(r.ctx, op.Handle); err != nil {
		logger.Error("error in marking operation abandoned", zap.String("handle", op.Handle.String()), zap.Error(err))
	}
	select {
	case r.worker.Sender() <- op:
	default:
		logger.Warn("abandoned operation queue full", zap.String("handle", op.Handle.String()))
	}
}

// Pending returns how many abandoned operations are still being followed.
func (r *Reconciler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight)
}

func (r *Reconciler) sweep() {
	records, err := r.journal.Abandoned(r.ctx)
	if err != nil {
		logger.Error("error in listing abandoned operations", zap.Error(err))
		return
	}
	for _, rec := range records {
		op := AbandonedOperation{Handle: rec.Handle, Kind: rec.Kind, FlowId: rec.FlowId, Params: rec.Params}
		select {
		case r.worker.Sender() <- op:
		default:
			return
		}
	}
}

func (r *Reconciler) adopt(op AbandonedOperation) error {
	if rec, err := r.journal.Get(r.ctx, op.Handle); err == nil && rec.Outcome != nil {
		return nil
	}
	r.mu.Lock()
	if r.inflight[op.Handle] {
		r.mu.Unlock()
		return nil
	}
	r.inflight[op.Handle] = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.inflight, op.Handle)
			r.mu.Unlock()
		}()
		r.follow(op)
	}()
	return nil
}

func (r *Reconciler) follow(op AbandonedOperation) {
	start := time.Now()
	stream := r.tracker.Track(r.ctx, op.Handle, op.Kind)
	for status := range stream.C() {
		if err := r.journal.UpdatePhase(r.ctx, op.Handle, status.Phase); err != nil {
			logger.Debug("error in updating journal phase", zap.String("handle", op.Handle.String()), zap.Error(err))
		}
		res, terminal := outcome.Classify(status)
		if !terminal {
			continue
		}
		r.complete(op, res, time.Since(start))
		return
	}
	err := stream.Err()
	var notFound *model.NotFoundError
	if errors.As(err, &notFound) {
		r.complete(op, model.Failure(notFound.Error()), time.Since(start))
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("error in following abandoned operation", zap.String("handle", op.Handle.String()), zap.Error(err))
	}
}

func (r *Reconciler) complete(op AbandonedOperation, res model.Outcome, elapsed time.Duration) {
	ctx := context.WithoutCancel(r.ctx)
	metrics.RecordOutcome(ctx, op.Kind, res, elapsed)
	if err := r.journal.Complete(ctx, op.Handle, res); err != nil {
		logger.Error("error in completing journal entry", zap.String("handle", op.Handle.String()), zap.Error(err))
	}
	if res.IsSuccess() && r.outcomes != nil {
		if err := r.outcomes.OnOutcome(ctx, op.Kind, res, op.Params); err != nil {
			logger.Error("error in applying outcome", zap.String("handle", op.Handle.String()), zap.Error(err))
		}
	}
	logger.Info("abandoned operation settled", zap.String("handle", op.Handle.String()), zap.String("flowId", op.FlowId), zap.Stringer("outcome", res.Kind))
}
