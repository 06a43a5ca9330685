package queue

import (
	"context"
	"sync"
)

// MemoryBroker is a process-local Broker with durable-queue delivery
// semantics: per-consumer prefetch of one, acknowledge or requeue per
// message, and redelivery of messages abandoned by a cancelled consumer.
//
// It backs tests and single-process deployments where an external broker
// is unavailable.
type MemoryBroker struct {
	mutex       sync.Mutex
	lanesByName map[Lane]*memoryLane
	closed      bool
}

// NewMemoryBroker constructs a broker with the default and ordered lanes declared.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		lanesByName: map[Lane]*memoryLane{
			LaneDefault: newMemoryLane(),
			LaneOrdered: newMemoryLane(),
		},
	}
}

// Publish appends the task identifier to the lane.
func (broker *MemoryBroker) Publish(executionContext context.Context, lane Lane, taskID string) error {
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}
	laneState, laneLookupError := broker.laneFor(lane)
	if laneLookupError != nil {
		return laneLookupError
	}
	return laneState.publish(taskID)
}

// Consume registers a single consumer on the lane. The returned channel
// yields at most one unsettled delivery at a time and closes when the
// context is cancelled or the broker shuts down.
func (broker *MemoryBroker) Consume(executionContext context.Context, lane Lane) (<-chan Delivery, error) {
	laneState, laneLookupError := broker.laneFor(lane)
	if laneLookupError != nil {
		return nil, laneLookupError
	}

	deliveries := make(chan Delivery)
	go func() {
		defer close(deliveries)
		for {
			taskIdentifier, messageAvailable := laneState.next(executionContext)
			if !messageAvailable {
				return
			}

			currentDelivery := newMemoryDelivery(taskIdentifier, laneState)
			select {
			case deliveries <- currentDelivery:
			case <-executionContext.Done():
				laneState.requeueFront(taskIdentifier)
				return
			}

			select {
			case <-currentDelivery.settled:
			case <-executionContext.Done():
				// The consumer vanished holding an unacknowledged message;
				// return it to the lane for redelivery.
				_ = currentDelivery.Requeue()
				return
			}
		}
	}()
	return deliveries, nil
}

// Close shuts down every lane and unblocks pending consumers.
func (broker *MemoryBroker) Close() error {
	broker.mutex.Lock()
	defer broker.mutex.Unlock()
	if broker.closed {
		return nil
	}
	broker.closed = true
	for _, laneState := range broker.lanesByName {
		laneState.close()
	}
	return nil
}

// Depth reports the number of messages currently waiting on the lane.
func (broker *MemoryBroker) Depth(lane Lane) int {
	laneState, laneLookupError := broker.laneFor(lane)
	if laneLookupError != nil {
		return 0
	}
	return laneState.depth()
}

func (broker *MemoryBroker) laneFor(lane Lane) (*memoryLane, error) {
	broker.mutex.Lock()
	defer broker.mutex.Unlock()
	if broker.closed {
		return nil, ErrBrokerClosed
	}
	laneState, laneDeclared := broker.lanesByName[lane]
	if !laneDeclared {
		return nil, ErrUnknownLane
	}
	return laneState, nil
}

type memoryLane struct {
	mutex    sync.Mutex
	arrivals *sync.Cond
	pending  []string
	closed   bool
}

func newMemoryLane() *memoryLane {
	laneState := &memoryLane{}
	laneState.arrivals = sync.NewCond(&laneState.mutex)
	return laneState
}

func (laneState *memoryLane) publish(taskIdentifier string) error {
	laneState.mutex.Lock()
	defer laneState.mutex.Unlock()
	if laneState.closed {
		return ErrBrokerClosed
	}
	laneState.pending = append(laneState.pending, taskIdentifier)
	laneState.arrivals.Signal()
	return nil
}

// requeueFront restores a redelivered message ahead of newer arrivals so
// the ordered lane keeps its arrival order across redeliveries.
func (laneState *memoryLane) requeueFront(taskIdentifier string) {
	laneState.mutex.Lock()
	defer laneState.mutex.Unlock()
	if laneState.closed {
		return
	}
	laneState.pending = append([]string{taskIdentifier}, laneState.pending...)
	laneState.arrivals.Signal()
}

func (laneState *memoryLane) next(executionContext context.Context) (string, bool) {
	cancelWatcher := context.AfterFunc(executionContext, func() {
		laneState.mutex.Lock()
		laneState.arrivals.Broadcast()
		laneState.mutex.Unlock()
	})
	defer cancelWatcher()

	laneState.mutex.Lock()
	defer laneState.mutex.Unlock()
	for len(laneState.pending) == 0 && !laneState.closed && executionContext.Err() == nil {
		laneState.arrivals.Wait()
	}
	if laneState.closed || executionContext.Err() != nil {
		return "", false
	}

	taskIdentifier := laneState.pending[0]
	laneState.pending = laneState.pending[1:]
	return taskIdentifier, true
}

func (laneState *memoryLane) depth() int {
	laneState.mutex.Lock()
	defer laneState.mutex.Unlock()
	return len(laneState.pending)
}

func (laneState *memoryLane) close() {
	laneState.mutex.Lock()
	defer laneState.mutex.Unlock()
	laneState.closed = true
	laneState.arrivals.Broadcast()
}

type memoryDelivery struct {
	taskIdentifier string
	laneState      *memoryLane
	settleOnce     sync.Once
	settled        chan struct{}
}

func newMemoryDelivery(taskIdentifier string, laneState *memoryLane) *memoryDelivery {
	return &memoryDelivery{
		taskIdentifier: taskIdentifier,
		laneState:      laneState,
		settled:        make(chan struct{}),
	}
}

// TaskID returns the task identifier carried by the message.
func (delivery *memoryDelivery) TaskID() string {
	return delivery.taskIdentifier
}

// Ack removes the message from the lane permanently.
func (delivery *memoryDelivery) Ack() error {
	delivery.settleOnce.Do(func() {
		close(delivery.settled)
	})
	return nil
}

// Requeue returns the message to the front of the lane for redelivery.
func (delivery *memoryDelivery) Requeue() error {
	delivery.settleOnce.Do(func() {
		delivery.laneState.requeueFront(delivery.taskIdentifier)
		close(delivery.settled)
	})
	return nil
}
