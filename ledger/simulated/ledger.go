// Package simulated is an in-process ledger that replays scripted status
// sequences. It backs demos and tests.
package simulated

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mohitkumar/txflow/ledger"
	"github.com/mohitkumar/txflow/logger"
	"github.com/mohitkumar/txflow/model"
	"go.uber.org/zap"
)

// Step is what one status query returns.
type Step struct {
	Status model.OperationStatus
	Err    error
}

// Script is the sequence of answers for one operation. Once exhausted the last step repeats.
type Script []Step

// Statuses builds a script without errors.
func Statuses(statuses ...model.OperationStatus) Script {
	script := make(Script, 0, len(statuses))
	for _, s := range statuses {
		script = append(script, Step{Status: s})
	}
	return script
}

// Phases builds a script that walks through phases and ends sealed with code 0.
func Phases(phases ...model.Phase) Script {
	script := make(Script, 0, len(phases))
	for _, p := range phases {
		script = append(script, Step{Status: model.OperationStatus{Phase: p}})
	}
	return script
}

// SuccessScript is the script used for programs without an explicit one.
func SuccessScript(events ...model.Event) Script {
	return Statuses(
		model.OperationStatus{Phase: model.PHASE_PENDING},
		model.OperationStatus{Phase: model.PHASE_INCLUDED},
		model.OperationStatus{Phase: model.PHASE_FINALIZED},
		model.OperationStatus{Phase: model.PHASE_SEALED, Events: events},
	)
}

// FailureScript ends sealed with a non zero code and the given trace.
func FailureScript(trace string) Script {
	return Statuses(
		model.OperationStatus{Phase: model.PHASE_PENDING},
		model.OperationStatus{Phase: model.PHASE_SEALED, ExecutionCode: 1, RawErrorTrace: trace},
	)
}

type operation struct {
	req     model.OperationRequest
	script  Script
	pos     int
	queries int
}

type Ledger struct {
	mu          sync.Mutex
	programs    map[string][]Script
	rejections  map[string][]error
	defaultStep Script
	ops         map[model.OperationHandle]*operation
	order       []model.OperationHandle
	receipts    map[string]bool
}

var _ ledger.Ledger = new(Ledger)

func New() *Ledger {
	return &Ledger{
		programs:    make(map[string][]Script),
		rejections:  make(map[string][]error),
		defaultStep: SuccessScript(),
		ops:         make(map[model.OperationHandle]*operation),
		receipts:    make(map[string]bool),
	}
}

// Program queues scripts for programID. Each dispatch consumes one script, the last one is reused.
func (l *Ledger) Program(programID string, scripts ...Script) *Ledger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.programs[programID] = append(l.programs[programID], scripts...)
	return l
}

// RejectNext makes the next dispatch of programID fail with err.
func (l *Ledger) RejectNext(programID string, err error) *Ledger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rejections[programID] = append(l.rejections[programID], err)
	return l
}

func (l *Ledger) Dispatch(ctx context.Context, req model.OperationRequest) (model.OperationHandle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if errs := l.rejections[req.ProgramID]; len(errs) > 0 {
		l.rejections[req.ProgramID] = errs[1:]
		return "", errs[0]
	}
	script := l.defaultStep
	if scripts := l.programs[req.ProgramID]; len(scripts) > 0 {
		script = scripts[0]
		if len(scripts) > 1 {
			l.programs[req.ProgramID] = scripts[1:]
		}
	}
	handle := model.OperationHandle(strings.ReplaceAll(uuid.New().String(), "-", ""))
	l.ops[handle] = &operation{req: req, script: script}
	l.order = append(l.order, handle)
	logger.Debug("simulated dispatch", zap.String("program", req.ProgramID), zap.String("handle", handle.String()))
	return handle, nil
}

func (l *Ledger) Status(ctx context.Context, handle model.OperationHandle) (model.OperationStatus, error) {
	if err := ctx.Err(); err != nil {
		return model.OperationStatus{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	op, ok := l.ops[handle]
	if !ok {
		return model.OperationStatus{}, &model.NotFoundError{Handle: handle}
	}
	op.queries++
	if len(op.script) == 0 {
		return model.OperationStatus{Phase: model.PHASE_UNKNOWN}, nil
	}
	step := op.script[op.pos]
	if op.pos < len(op.script)-1 {
		op.pos++
	}
	if step.Err != nil {
		return model.OperationStatus{}, step.Err
	}
	return step.Status, nil
}

// Requests returns the dispatched requests in dispatch order.
func (l *Ledger) Requests() []model.OperationRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	res := make([]model.OperationRequest, 0, len(l.order))
	for _, h := range l.order {
		res = append(res, l.ops[h].req)
	}
	return res
}

// Handles returns the dispatched handles in dispatch order.
func (l *Ledger) Handles() []model.OperationHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.OperationHandle(nil), l.order...)
}

// Queries returns how many status queries were served for handle.
func (l *Ledger) Queries(handle model.OperationHandle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if op, ok := l.ops[handle]; ok {
		return op.queries
	}
	return 0
}

// SetReceipt sets what HasReceipt answers for address.
func (l *Ledger) SetReceipt(address string, has bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.receipts[address] = has
}

func (l *Ledger) HasReceipt(ctx context.Context, address string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.receipts[address], nil
}
