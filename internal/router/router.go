// Package router assigns eligible tasks to their execution lane and hands
// them to the durable queue.
package router

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tyemirov/taskmaster/internal/queue"
	"github.com/tyemirov/taskmaster/internal/registry"
)

const (
	routingFailureTemplateConstant = "unable to enqueue task %s on lane %s"
	taskRoutedLogMessageConstant   = "task routed"
	taskIdentifierLogFieldConstant = "task_id"
	laneLogFieldConstant           = "lane"
)

// RoutingError indicates the durable queue rejected an enqueue request.
type RoutingError struct {
	TaskID string
	Lane   queue.Lane
	Cause  error
}

// Error describes the failed enqueue.
func (routingError RoutingError) Error() string {
	return fmt.Sprintf(routingFailureTemplateConstant, routingError.TaskID, routingError.Lane)
}

// Unwrap exposes the underlying queue failure.
func (routingError RoutingError) Unwrap() error {
	return routingError.Cause
}

// LaneFor selects the execution lane for a task. Lane assignment is a pure
// function of the immutable RequiresOrdering flag, so it never changes over
// a task's lifetime.
func LaneFor(task registry.Task) queue.Lane {
	if task.RequiresOrdering {
		return queue.LaneOrdered
	}
	return queue.LaneDefault
}

// Router publishes task references onto durable queue lanes.
type Router struct {
	broker queue.Broker
	logger *zap.Logger
}

// NewRouter constructs a Router over the provided broker.
func NewRouter(broker queue.Broker, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{broker: broker, logger: logger}
}

// Route enqueues a reference to the task on its lane. Only the identifier
// crosses the queue boundary; consumers read task content back from the
// registry.
func (taskRouter *Router) Route(executionContext context.Context, task registry.Task) error {
	selectedLane := LaneFor(task)
	if publishError := taskRouter.broker.Publish(executionContext, selectedLane, task.ID); publishError != nil {
		return RoutingError{TaskID: task.ID, Lane: selectedLane, Cause: publishError}
	}

	taskRouter.logger.Debug(
		taskRoutedLogMessageConstant,
		zap.String(taskIdentifierLogFieldConstant, task.ID),
		zap.String(laneLogFieldConstant, string(selectedLane)),
	)
	return nil
}
