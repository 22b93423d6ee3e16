package util

import (
	"sync"

	"github.com/mohitkumar/txflow/logger"
	"go.uber.org/zap"
)

// Worker drains a buffered channel of jobs on a single goroutine.
type Worker[T any] struct {
	name    string
	stop    chan struct{}
	wg      *sync.WaitGroup
	handler func(T) error
	jobs    chan T
}

func NewWorker[T any](name string, wg *sync.WaitGroup, handler func(T) error, capacity int) *Worker[T] {
	return &Worker[T]{
		jobs:    make(chan T, capacity),
		name:    name,
		wg:      wg,
		stop:    make(chan struct{}),
		handler: handler,
	}
}

func (w *Worker[T]) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case job := <-w.jobs:
				if err := w.handler(job); err != nil {
					logger.Error("error in executing job in worker", zap.String("worker", w.name), zap.Any("job", job), zap.Error(err))
				}
			case <-w.stop:
				logger.Info("stopping worker", zap.String("worker", w.name))
				return
			}
		}
	}()
}

func (w *Worker[T]) Sender() chan<- T {
	return w.jobs
}

func (w *Worker[T]) Stop() {
	close(w.stop)
}
