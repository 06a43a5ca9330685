package worker

import (
	"context"
	"sync"

	"github.com/tyemirov/taskmaster/internal/queue"
)

const (
	orderedExecutorNameConstant = "ordered-0"
)

// OrderedExecutor is the single consumer of the ordered lane. Running
// exactly one consumer gives ordering-required tasks a strict global
// execution order matching their arrival into the lane, independent of
// any activity on the default lane.
type OrderedExecutor struct {
	dependencies Dependencies
	waitGroup    sync.WaitGroup
}

// NewOrderedExecutor constructs the ordered lane executor.
func NewOrderedExecutor(dependencies Dependencies) (*OrderedExecutor, error) {
	if validationError := dependencies.validate(); validationError != nil {
		return nil, validationError
	}
	return &OrderedExecutor{dependencies: dependencies}, nil
}

// Start registers the single ordered consumer. The executor stops when the
// context is cancelled or the broker closes.
func (executor *OrderedExecutor) Start(executionContext context.Context) error {
	deliveries, consumeError := executor.dependencies.Broker.Consume(executionContext, queue.LaneOrdered)
	if consumeError != nil {
		return consumeError
	}

	consumer := newLaneConsumer(orderedExecutorNameConstant, executor.dependencies)
	executor.waitGroup.Add(1)
	go func() {
		defer executor.waitGroup.Done()
		consumer.run(executionContext, deliveries)
	}()
	return nil
}

// Wait blocks until the ordered consumer has drained its delivery channel.
func (executor *OrderedExecutor) Wait() {
	executor.waitGroup.Wait()
}
