// Package worker drains durable queue lanes and runs the per-task
// execution protocol: claim the record, execute the opaque work, record
// the terminal status, acknowledge the message, and notify the resolver.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tyemirov/taskmaster/internal/registry"
)

const (
	simulatedExecutionStartedLogConstant  = "executing task"
	simulatedExecutionFinishedLogConstant = "task execution finished"
	simulatedTaskMessageLogFieldConstant  = "message"
)

// ExecuteFunc performs the opaque work carried by a task. The returned
// error is the only execution signal the orchestration core consumes.
type ExecuteFunc func(executionContext context.Context, task registry.Task) error

// DependencyNotifier re-evaluates waiting dependents after a task reaches
// a terminal status.
type DependencyNotifier interface {
	ResolveDependents(executionContext context.Context, settledTaskID string)
}

// NewSimulatedExecutor returns an ExecuteFunc that logs the task payload
// and sleeps for the configured delay. It stands in for a real execution
// backend in the serve command and in examples.
func NewSimulatedExecutor(executionDelay time.Duration, logger *zap.Logger) ExecuteFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(executionContext context.Context, task registry.Task) error {
		logger.Info(
			simulatedExecutionStartedLogConstant,
			zap.String(taskIdentifierLogFieldConstant, task.ID),
			zap.String(simulatedTaskMessageLogFieldConstant, task.Message),
		)
		select {
		case <-time.After(executionDelay):
		case <-executionContext.Done():
			return executionContext.Err()
		}
		logger.Info(simulatedExecutionFinishedLogConstant, zap.String(taskIdentifierLogFieldConstant, task.ID))
		return nil
	}
}
