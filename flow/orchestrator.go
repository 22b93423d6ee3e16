// Package flow sequences multi step operations. Each step waits for the terminal
// outcome of the previous one before it is submitted.
package flow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mohitkumar/txflow/logger"
	"github.com/mohitkumar/txflow/metrics"
	"github.com/mohitkumar/txflow/model"
	"github.com/mohitkumar/txflow/outcome"
	"github.com/mohitkumar/txflow/persistence"
	"github.com/mohitkumar/txflow/submitter"
	"github.com/mohitkumar/txflow/tracker"
	"github.com/mohitkumar/txflow/util"
	"go.uber.org/zap"
)

const subscriberBuffer = 16

type Submitter interface {
	Submit(ctx context.Context, kind model.OperationKind, req model.OperationRequest, opts ...submitter.SubmitOption) (model.OperationHandle, error)
}

type StatusTracker interface {
	Track(ctx context.Context, handle model.OperationHandle, kind model.OperationKind) *tracker.Stream
}

type OutcomeHandler interface {
	OnOutcome(ctx context.Context, kind model.OperationKind, outcome model.Outcome, params map[string]string) error
}

// AbandonHandler receives operations that were still live when their flow was reset.
type AbandonHandler interface {
	Abandon(op AbandonedOperation)
}

type AbandonedOperation struct {
	Handle model.OperationHandle
	Kind   model.OperationKind
	FlowId string
	Params map[string]string
}

type Services struct {
	Submitter Submitter
	Tracker   StatusTracker
	Outcomes  OutcomeHandler
	Journal   persistence.OperationJournal
	Abandoned AbandonHandler
}

type Orchestrator struct {
	id    string
	def   Definition
	svc   Services
	input map[string]any

	mu           sync.Mutex
	status       model.FlowStatus
	current      int
	active       model.OperationHandle
	activeKind   model.OperationKind
	activeParams map[string]string
	lastPhase    model.Phase
	lastOutcome  *model.Outcome
	errMsg       string
	data         map[string]any
	generation   int
	cancel       context.CancelFunc
	changed      chan struct{}
	subscribers  map[int]chan model.FlowSnapshot
	nextSub      int
}

func New(id string, def Definition, input map[string]any, svc Services) (*Orchestrator, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{
		id:          id,
		def:         def,
		svc:         svc,
		input:       copyData(input),
		status:      model.FLOW_IDLE,
		data:        newData(input),
		changed:     make(chan struct{}),
		subscribers: make(map[int]chan model.FlowSnapshot),
	}, nil
}

func (o *Orchestrator) ID() string {
	return o.id
}

func (o *Orchestrator) Name() string {
	return o.def.Name
}

// Start submits the first step. It is only valid from Idle.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status != model.FLOW_IDLE {
		return &model.FlowStateError{Op: "start", Status: o.status}
	}
	o.current = 0
	o.launchLocked(ctx, 0)
	logger.Info("flow started", zap.String("flow", o.def.Name), zap.String("id", o.id))
	return nil
}

// Continue submits a manual step the flow is waiting on.
func (o *Orchestrator) Continue(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status != model.FLOW_AWAITING_USER {
		return &model.FlowStateError{Op: "continue", Status: o.status}
	}
	o.launchLocked(ctx, o.current)
	return nil
}

// Retry re-submits the step that failed or expired.
func (o *Orchestrator) Retry(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status != model.FLOW_FAILED && o.status != model.FLOW_EXPIRED {
		return &model.FlowStateError{Op: "retry", Status: o.status}
	}
	logger.Info("retrying flow step", zap.String("flow", o.def.Name), zap.String("id", o.id), zap.Int("step", o.current))
	o.launchLocked(ctx, o.current)
	return nil
}

// Reset returns the flow to Idle from any state. A live operation is not
// cancelled on the ledger, it is handed over to the abandon handler.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.generation++
	o.stopLocked()
	var abandoned *AbandonedOperation
	if !o.active.IsZero() {
		abandoned = &AbandonedOperation{
			Handle: o.active,
			Kind:   o.activeKind,
			FlowId: o.id,
			Params: o.activeParams,
		}
	}
	o.clearActiveLocked()
	o.status = model.FLOW_IDLE
	o.current = 0
	o.lastPhase = model.PHASE_UNKNOWN
	o.lastOutcome = nil
	o.errMsg = ""
	o.data = newData(o.input)
	o.publishLocked()
	o.mu.Unlock()

	if abandoned != nil {
		logger.Info("flow reset with live operation", zap.String("flow", o.def.Name), zap.String("id", o.id), zap.String("handle", abandoned.Handle.String()))
		if o.svc.Abandoned != nil {
			o.svc.Abandoned.Abandon(*abandoned)
		}
	}
}

// Close resets the flow and closes every subscription.
func (o *Orchestrator) Close() {
	o.Reset()
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, ch := range o.subscribers {
		delete(o.subscribers, id)
		close(ch)
	}
}

func (o *Orchestrator) Snapshot() model.FlowSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Wait blocks until the flow is no longer running.
func (o *Orchestrator) Wait(ctx context.Context) (model.FlowSnapshot, error) {
	for {
		o.mu.Lock()
		if o.status != model.FLOW_RUNNING {
			snap := o.snapshotLocked()
			o.mu.Unlock()
			return snap, nil
		}
		ch := o.changed
		o.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return o.Snapshot(), ctx.Err()
		}
	}
}

// Subscribe returns a channel of snapshots, starting with the current one. When
// the reader falls behind older snapshots are dropped in favour of newer ones.
func (o *Orchestrator) Subscribe() (<-chan model.FlowSnapshot, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ch := make(chan model.FlowSnapshot, subscriberBuffer)
	id := o.nextSub
	o.nextSub++
	o.subscribers[id] = ch
	ch <- o.snapshotLocked()
	return ch, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if c, ok := o.subscribers[id]; ok {
			delete(o.subscribers, id)
			close(c)
		}
	}
}

func (o *Orchestrator) launchLocked(ctx context.Context, i int) {
	o.stopLocked()
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.cancel = cancel
	o.status = model.FLOW_RUNNING
	o.errMsg = ""
	o.lastPhase = model.PHASE_UNKNOWN
	gen := o.generation
	o.publishLocked()
	go o.runStep(runCtx, gen, i)
}

func (o *Orchestrator) runStep(ctx context.Context, gen int, i int) {
	step := o.def.Steps[i]
	data := o.dataCopy()

	if step.Prepare != nil {
		vars, err := step.Prepare(ctx, data)
		if err != nil {
			o.fail(gen, fmt.Sprintf("prepare %s: %v", step.Name, err))
			return
		}
		if !o.update(gen, func() { mergeSection(o.data, DATA_VARS, vars) }) {
			return
		}
		mergeSection(data, DATA_VARS, vars)
	}

	if step.IsPseudo() {
		out, err := step.Exec(ctx, data)
		if err != nil {
			o.fail(gen, err.Error())
			return
		}
		o.succeed(ctx, gen, i, out)
		return
	}

	req, err := step.resolveRequest(data)
	if err != nil {
		o.fail(gen, fmt.Sprintf("resolve %s: %v", step.Name, err))
		return
	}
	params := util.ResolveParams(data, step.Params)
	handle, err := o.svc.Submitter.Submit(ctx, step.Kind, req, submitter.WithFlow(o.id), submitter.WithParams(params))
	submittedAt := time.Now()

	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		if err == nil && o.svc.Abandoned != nil {
			o.svc.Abandoned.Abandon(AbandonedOperation{Handle: handle, Kind: step.Kind, FlowId: o.id, Params: params})
		}
		return
	}
	if err != nil {
		o.failLocked(err.Error())
		o.mu.Unlock()
		logger.Error("step submission failed", zap.String("flow", o.def.Name), zap.String("id", o.id), zap.String("step", step.Name), zap.Error(err))
		return
	}
	o.active = handle
	o.activeKind = step.Kind
	o.activeParams = params
	o.publishLocked()
	o.mu.Unlock()

	stream := o.svc.Tracker.Track(ctx, handle, step.Kind)
	for status := range stream.C() {
		phase := status.Phase
		res, terminal := outcome.Classify(status)
		// a terminal handle leaves active in the same critical section, so a
		// concurrent Reset can not hand it to the reconciler as well
		if !o.update(gen, func() {
			o.lastPhase = phase
			if terminal {
				o.clearActiveLocked()
			}
		}) {
			return
		}
		o.journalPhase(ctx, handle, phase)
		if terminal {
			o.finish(ctx, gen, i, handle, params, res, time.Since(submittedAt))
			return
		}
	}
	if ctx.Err() != nil {
		return
	}
	err = stream.Err()
	if err == nil {
		err = fmt.Errorf("tracking stopped")
	}
	logger.Error("tracking failed", zap.String("flow", o.def.Name), zap.String("id", o.id), zap.String("handle", handle.String()), zap.Error(err))
	o.fail(gen, err.Error())
}

// finish applies a terminal outcome. The cache is invalidated exactly once per
// successful ledger step, before the flow moves on. The handle is owned by this
// flow once it left active, so the outcome is applied even if the flow was reset
// in the meantime.
func (o *Orchestrator) finish(ctx context.Context, gen int, i int, handle model.OperationHandle, params map[string]string, res model.Outcome, elapsed time.Duration) {
	step := o.def.Steps[i]
	stored := res
	o.update(gen, func() { o.lastOutcome = &stored })

	detached := context.WithoutCancel(ctx)
	metrics.RecordOutcome(detached, step.Kind, res, elapsed)
	if o.svc.Journal != nil {
		if err := o.svc.Journal.Complete(detached, handle, res); err != nil {
			logger.Error("error in completing journal entry", zap.String("handle", handle.String()), zap.Error(err))
		}
	}
	if res.IsSuccess() && o.svc.Outcomes != nil {
		if err := o.svc.Outcomes.OnOutcome(detached, step.Kind, res, params); err != nil {
			logger.Error("error in applying outcome", zap.String("kind", string(step.Kind)), zap.Error(err))
		}
	}

	switch res.Kind {
	case model.OUTCOME_SUCCESS:
		o.succeed(ctx, gen, i, step.output(handle, res))
	case model.OUTCOME_FAILURE:
		o.update(gen, func() {
			o.stopLocked()
			o.status = model.FLOW_FAILED
			o.errMsg = res.UserMessage
		})
		logger.Info("flow step failed", zap.String("flow", o.def.Name), zap.String("id", o.id), zap.String("step", step.Name), zap.String("reason", res.UserMessage))
	case model.OUTCOME_EXPIRED:
		o.update(gen, func() {
			o.stopLocked()
			o.status = model.FLOW_EXPIRED
			o.errMsg = "operation expired before confirmation"
		})
		logger.Info("flow step expired", zap.String("flow", o.def.Name), zap.String("id", o.id), zap.String("step", step.Name))
	}
}

func (o *Orchestrator) succeed(ctx context.Context, gen int, i int, out map[string]any) {
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return
	}
	setSection(o.data, DATA_STEPS, o.def.Steps[i].Name, out)
	if i == len(o.def.Steps)-1 {
		o.stopLocked()
		o.status = model.FLOW_COMPLETED
		o.publishLocked()
		snap := o.snapshotLocked()
		o.mu.Unlock()
		logger.Info("flow completed", zap.String("flow", o.def.Name), zap.String("id", o.id))
		if o.def.OnComplete != nil {
			o.def.OnComplete(snap)
		}
		return
	}
	next := i + 1
	o.current = next
	if o.def.Steps[next].Manual {
		o.stopLocked()
		o.status = model.FLOW_AWAITING_USER
		o.publishLocked()
		o.mu.Unlock()
		logger.Info("flow waiting for user", zap.String("flow", o.def.Name), zap.String("id", o.id), zap.String("step", o.def.Steps[next].Name))
		return
	}
	o.launchLocked(ctx, next)
	o.mu.Unlock()
}

func (o *Orchestrator) fail(gen int, msg string) {
	o.update(gen, func() { o.failLocked(msg) })
}

func (o *Orchestrator) failLocked(msg string) {
	o.stopLocked()
	o.clearActiveLocked()
	failure := model.Failure(msg)
	o.lastOutcome = &failure
	o.status = model.FLOW_FAILED
	o.errMsg = msg
	o.publishLocked()
}

// update runs fn under the lock unless the flow was reset since gen was taken.
func (o *Orchestrator) update(gen int, fn func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation {
		return false
	}
	fn()
	o.publishLocked()
	return true
}

func (o *Orchestrator) stopLocked() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

func (o *Orchestrator) clearActiveLocked() {
	o.active = ""
	o.activeKind = ""
	o.activeParams = nil
}

func (o *Orchestrator) journalPhase(ctx context.Context, handle model.OperationHandle, phase model.Phase) {
	if o.svc.Journal == nil {
		return
	}
	if err := o.svc.Journal.UpdatePhase(ctx, handle, phase); err != nil {
		logger.Debug("error in updating journal phase", zap.String("handle", handle.String()), zap.Error(err))
	}
}

func (o *Orchestrator) dataCopy() map[string]any {
	o.mu.Lock()
	defer o.mu.Unlock()
	return copyData(o.data)
}

func (o *Orchestrator) snapshotLocked() model.FlowSnapshot {
	snap := model.FlowSnapshot{
		ID:           o.id,
		Name:         o.def.Name,
		Status:       o.status,
		CurrentStep:  o.current,
		StepName:     o.def.Steps[o.current].Name,
		StepCount:    len(o.def.Steps),
		ActiveHandle: o.active,
		LastPhase:    o.lastPhase,
		Error:        o.errMsg,
		Output:       copyData(o.data),
		Generation:   o.generation,
	}
	if o.lastOutcome != nil {
		res := *o.lastOutcome
		snap.LastOutcome = &res
	}
	return snap
}

func (o *Orchestrator) publishLocked() {
	close(o.changed)
	o.changed = make(chan struct{})
	if len(o.subscribers) == 0 {
		return
	}
	snap := o.snapshotLocked()
	for _, ch := range o.subscribers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
