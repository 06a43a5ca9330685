// Package queue defines the durable queue boundary used to hand eligible
// tasks to executors. Lanes carry task identifiers only; task content is
// always read back from the registry by the consumer.
package queue

import (
	"context"
	"errors"
)

const (
	brokerClosedMessageConstant = "queue broker is closed"
	unknownLaneTemplateConstant = "unknown queue lane"
)

// Lane names a delivery channel within the durable queue.
type Lane string

const (
	// LaneDefault carries tasks drained by the competing worker pool.
	LaneDefault Lane = "default"
	// LaneOrdered carries tasks drained by the single ordered executor.
	LaneOrdered Lane = "ordered"
)

// ErrBrokerClosed indicates an operation against a broker that has shut down.
var ErrBrokerClosed = errors.New(brokerClosedMessageConstant)

// ErrUnknownLane indicates a publish or consume request for an undeclared lane.
var ErrUnknownLane = errors.New(unknownLaneTemplateConstant)

// Delivery represents a single unacknowledged message held by a consumer.
//
// Exactly one of Ack or Requeue must be called; the broker withholds the
// consumer's next message until the current delivery settles.
type Delivery interface {
	TaskID() string
	Ack() error
	Requeue() error
}

// Broker abstracts the durable at-least-once queue substrate.
//
// Each Consume registration represents one executor with an in-flight limit
// of exactly one message. Messages abandoned without acknowledgement are
// redelivered on the same lane.
type Broker interface {
	Publish(executionContext context.Context, lane Lane, taskID string) error
	Consume(executionContext context.Context, lane Lane) (<-chan Delivery, error)
	Close() error
}
