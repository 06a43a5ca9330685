package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/tyemirov/taskmaster/internal/queue"
)

const (
	defaultWorkerCountConstant       = 2
	poolExecutorNameTemplateConstant = "default-%d"
)

// Pool runs a fixed number of competing executors on the default lane.
// Each executor holds at most one unacknowledged message at a time;
// concurrency across tasks comes from running several executors.
type Pool struct {
	dependencies Dependencies
	workerCount  int
	waitGroup    sync.WaitGroup
}

// NewPool constructs a Pool. A non-positive worker count falls back to the
// default of two executors.
func NewPool(dependencies Dependencies, workerCount int) (*Pool, error) {
	if validationError := dependencies.validate(); validationError != nil {
		return nil, validationError
	}
	if workerCount <= 0 {
		workerCount = defaultWorkerCountConstant
	}
	return &Pool{dependencies: dependencies, workerCount: workerCount}, nil
}

// Start registers one consumer per executor on the default lane. Executors
// stop when the context is cancelled or the broker closes.
func (pool *Pool) Start(executionContext context.Context) error {
	for executorIndex := 0; executorIndex < pool.workerCount; executorIndex++ {
		executorName := fmt.Sprintf(poolExecutorNameTemplateConstant, executorIndex)
		deliveries, consumeError := pool.dependencies.Broker.Consume(executionContext, queue.LaneDefault)
		if consumeError != nil {
			return consumeError
		}

		consumer := newLaneConsumer(executorName, pool.dependencies)
		pool.waitGroup.Add(1)
		go func() {
			defer pool.waitGroup.Done()
			consumer.run(executionContext, deliveries)
		}()
	}
	return nil
}

// Wait blocks until every executor has drained its delivery channel.
func (pool *Pool) Wait() {
	pool.waitGroup.Wait()
}
