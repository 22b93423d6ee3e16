// Package submitter sends operation requests to the ledger after local validation.
package submitter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohitkumar/txflow/config"
	"github.com/mohitkumar/txflow/ledger"
	"github.com/mohitkumar/txflow/logger"
	"github.com/mohitkumar/txflow/metrics"
	"github.com/mohitkumar/txflow/model"
	"github.com/mohitkumar/txflow/persistence"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type submitOptions struct {
	flowId string
	params map[string]string
}

type SubmitOption func(*submitOptions)

// WithFlow tags the journal entry with the flow that owns the operation.
func WithFlow(flowId string) SubmitOption {
	return func(o *submitOptions) {
		o.flowId = flowId
	}
}

// WithParams stores the params needed later to invalidate the cache for this operation.
func WithParams(params map[string]string) SubmitOption {
	return func(o *submitOptions) {
		o.params = params
	}
}

type Submitter struct {
	dispatcher ledger.Dispatcher
	journal    persistence.OperationJournal
	limiter    *rate.Limiter
}

func New(dispatcher ledger.Dispatcher, journal persistence.OperationJournal, cfg config.RateLimitConfig) *Submitter {
	s := &Submitter{
		dispatcher: dispatcher,
		journal:    journal,
	}
	if cfg.PerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.PerSecond), burst)
	}
	return s
}

// Submit validates req, dispatches it and returns as soon as the ledger accepted it.
// Every failure before a handle exists is a *model.SubmissionError. Nothing is retried here.
func (s *Submitter) Submit(ctx context.Context, kind model.OperationKind, req model.OperationRequest, opts ...SubmitOption) (model.OperationHandle, error) {
	options := &submitOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if err := Validate(req); err != nil {
		metrics.RecordRejected(ctx, kind)
		return "", err
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			metrics.RecordRejected(ctx, kind)
			return "", &model.SubmissionError{ProgramID: req.ProgramID, Reason: "rate limited", Err: err}
		}
	}
	handle, err := s.dispatcher.Dispatch(ctx, req)
	if err != nil {
		metrics.RecordRejected(ctx, kind)
		var subErr *model.SubmissionError
		if errors.As(err, &subErr) {
			return "", err
		}
		return "", &model.SubmissionError{ProgramID: req.ProgramID, Reason: "dispatch failed", Err: err}
	}
	metrics.RecordSubmitted(ctx, kind)
	logger.Info("operation submitted", zap.String("kind", string(kind)), zap.String("handle", handle.String()), zap.String("flowId", options.flowId))

	rec := model.OperationRecord{
		Handle:      handle,
		Kind:        kind,
		ProgramID:   req.ProgramID,
		FlowId:      options.flowId,
		Params:      options.params,
		SubmittedAt: time.Now(),
		LastPhase:   model.PHASE_UNKNOWN,
	}
	if err := s.journal.Record(ctx, rec); err != nil {
		logger.Error("error in journaling operation", zap.String("handle", handle.String()), zap.Error(err))
	}
	return handle, nil
}

// Validate runs the pre-flight checks of a request.
func Validate(req model.OperationRequest) error {
	if strings.TrimSpace(req.ProgramID) == "" {
		return &model.SubmissionError{Reason: "empty program id"}
	}
	for i, arg := range req.Arguments {
		if !arg.Type.Known() {
			return &model.SubmissionError{ProgramID: req.ProgramID, Reason: fmt.Sprintf("argument %d (%s) has unknown type %q", i, arg.Name, arg.Type)}
		}
		if arg.Value == nil && !arg.Optional {
			return &model.SubmissionError{ProgramID: req.ProgramID, Reason: fmt.Sprintf("argument %d (%s) is required", i, arg.Name)}
		}
		if s, ok := arg.Value.(string); ok && strings.Contains(s, "{$") {
			return &model.SubmissionError{ProgramID: req.ProgramID, Reason: fmt.Sprintf("argument %d (%s) has unresolved reference %s", i, arg.Name, s)}
		}
	}
	return nil
}
