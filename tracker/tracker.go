// Package tracker follows an operation through its confirmation phases.
package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mohitkumar/txflow/config"
	"github.com/mohitkumar/txflow/ledger"
	"github.com/mohitkumar/txflow/logger"
	"github.com/mohitkumar/txflow/metrics"
	"github.com/mohitkumar/txflow/model"
	"go.uber.org/zap"
)

const streamBuffer = 8

type Tracker struct {
	source ledger.StatusSource
	cfg    config.TrackerConfig
}

func New(source ledger.StatusSource, cfg config.TrackerConfig) *Tracker {
	return &Tracker{
		source: source,
		cfg:    cfg,
	}
}

// Stream delivers the statuses of one handle. C is closed after a terminal
// status, a permanent error or context cancellation. Err is valid once C is closed.
type Stream struct {
	ch   chan model.OperationStatus
	done chan struct{}
	err  error
}

func (s *Stream) C() <-chan model.OperationStatus {
	return s.ch
}

func (s *Stream) Done() <-chan struct{} {
	return s.done
}

func (s *Stream) Err() error {
	<-s.done
	return s.err
}

// Track starts polling handle. Only statuses whose phase ranks above everything
// emitted so far are delivered, so the sequence seen by the consumer never goes back.
func (t *Tracker) Track(ctx context.Context, handle model.OperationHandle, kind model.OperationKind) *Stream {
	s := &Stream{
		ch:   make(chan model.OperationStatus, streamBuffer),
		done: make(chan struct{}),
	}
	go t.run(ctx, handle, kind, s)
	return s
}

func (t *Tracker) run(ctx context.Context, handle model.OperationHandle, kind model.OperationKind, s *Stream) {
	defer func() {
		close(s.done)
		close(s.ch)
	}()
	poll, timeout := t.cfg.For(string(kind))
	if poll <= 0 {
		poll = time.Second
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = t.cfg.InitialBackoff
	bo.MaxInterval = t.cfg.MaxBackoff
	bo.MaxElapsedTime = 0
	bo.Reset()

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	highest := -1
	confirmed := false
	wait := time.Duration(0)
	timer := time.NewTimer(wait)
	defer timer.Stop()

	emit := func(st model.OperationStatus) bool {
		select {
		case s.ch <- st:
			return true
		case <-ctx.Done():
			s.err = ctx.Err()
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			s.err = ctx.Err()
			return
		case <-timer.C:
		}

		if !confirmed && !deadline.IsZero() && !time.Now().Before(deadline) {
			logger.Info("operation expired before confirmation", zap.String("handle", handle.String()), zap.String("kind", string(kind)), zap.Duration("timeout", timeout))
			emit(model.OperationStatus{Phase: model.PHASE_EXPIRED})
			return
		}

		st, err := t.source.Status(ctx, handle)
		if err != nil {
			var notFound *model.NotFoundError
			if errors.As(err, &notFound) {
				s.err = err
				return
			}
			if ctx.Err() != nil {
				s.err = ctx.Err()
				return
			}
			metrics.RecordTrackerRetry(ctx, kind)
			wait = bo.NextBackOff()
			logger.Debug("transient status error", zap.String("handle", handle.String()), zap.Duration("retryIn", wait), zap.Error(err))
			timer.Reset(t.bounded(wait, confirmed, deadline))
			continue
		}
		bo.Reset()

		if st.Phase.Rank() > highest {
			highest = st.Phase.Rank()
			if st.Phase >= model.PHASE_FINALIZED {
				confirmed = true
			}
			if !emit(st) {
				return
			}
			if st.Phase.IsTerminal() {
				return
			}
		}
		timer.Reset(t.bounded(poll, confirmed, deadline))
	}
}

// bounded shortens wait so an unconfirmed operation is expired on time.
func (t *Tracker) bounded(wait time.Duration, confirmed bool, deadline time.Time) time.Duration {
	if confirmed || deadline.IsZero() {
		return wait
	}
	if left := time.Until(deadline); left < wait {
		if left < 0 {
			return 0
		}
		return left
	}
	return wait
}
