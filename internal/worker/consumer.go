package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/tyemirov/taskmaster/internal/queue"
	"github.com/tyemirov/taskmaster/internal/registry"
)

const (
	missingStoreMessageConstant         = "worker requires a task store"
	missingBrokerMessageConstant        = "worker requires a queue broker"
	missingNotifierMessageConstant      = "worker requires a dependency notifier"
	missingExecuteFuncMessageConstant   = "worker requires an execute function"
	unknownTaskDroppedLogConstant       = "dropping delivery for unknown task"
	staleDeliveryDroppedLogConstant     = "dropping stale delivery"
	claimTransitionFailedLogConstant    = "unable to claim task for processing"
	terminalTransitionFailedLogConstant = "unable to record terminal task status"
	acknowledgeFailedLogConstant        = "unable to acknowledge delivery"
	taskExecutionFailedLogConstant      = "task execution failed"
	redeliveryTakeoverLogConstant       = "taking over redelivered in-flight task"
	taskIdentifierLogFieldConstant      = "task_id"
	executorNameLogFieldConstant        = "executor"
	taskStatusLogFieldConstant          = "task_status"
	executorStartedLogMessageConstant   = "executor started"
	executorStoppedLogMessageConstant   = "executor stopped"
)

// Dependencies configures the collaborators shared by all executors.
type Dependencies struct {
	Store    registry.Store
	Broker   queue.Broker
	Notifier DependencyNotifier
	Execute  ExecuteFunc
	Logger   *zap.Logger
}

func (dependencies Dependencies) validate() error {
	if dependencies.Store == nil {
		return errors.New(missingStoreMessageConstant)
	}
	if dependencies.Broker == nil {
		return errors.New(missingBrokerMessageConstant)
	}
	if dependencies.Notifier == nil {
		return errors.New(missingNotifierMessageConstant)
	}
	if dependencies.Execute == nil {
		return errors.New(missingExecuteFuncMessageConstant)
	}
	return nil
}

func (dependencies Dependencies) resolvedLogger() *zap.Logger {
	if dependencies.Logger == nil {
		return zap.NewNop()
	}
	return dependencies.Logger
}

// laneConsumer runs the per-task execution protocol for one registered
// consumer. The broker withholds the next delivery until the current one
// settles, so a consumer never holds two unacknowledged messages.
type laneConsumer struct {
	executorName string
	dependencies Dependencies
	logger       *zap.Logger
}

func newLaneConsumer(executorName string, dependencies Dependencies) *laneConsumer {
	return &laneConsumer{
		executorName: executorName,
		dependencies: dependencies,
		logger:       dependencies.resolvedLogger().With(zap.String(executorNameLogFieldConstant, executorName)),
	}
}

func (consumer *laneConsumer) run(executionContext context.Context, deliveries <-chan queue.Delivery) {
	consumer.logger.Debug(executorStartedLogMessageConstant)
	for currentDelivery := range deliveries {
		consumer.processDelivery(executionContext, currentDelivery)
	}
	consumer.logger.Debug(executorStoppedLogMessageConstant)
}

func (consumer *laneConsumer) processDelivery(executionContext context.Context, currentDelivery queue.Delivery) {
	taskIdentifier := currentDelivery.TaskID()

	claimedTask, lookupError := consumer.dependencies.Store.Get(taskIdentifier)
	if lookupError != nil {
		// The registry is volatile; a redelivered message can outlive the
		// record it references. Acknowledge so it cannot loop forever.
		consumer.logger.Warn(unknownTaskDroppedLogConstant, zap.String(taskIdentifierLogFieldConstant, taskIdentifier), zap.Error(lookupError))
		consumer.acknowledge(currentDelivery, taskIdentifier)
		return
	}

	if !consumer.claimTask(claimedTask, currentDelivery) {
		return
	}

	executionError := consumer.dependencies.Execute(executionContext, claimedTask)

	terminalStatus := registry.TaskStatusCompleted
	if executionError != nil {
		terminalStatus = registry.TaskStatusFailed
		consumer.logger.Warn(taskExecutionFailedLogConstant, zap.String(taskIdentifierLogFieldConstant, taskIdentifier), zap.Error(executionError))
	}

	if _, transitionError := consumer.dependencies.Store.CompareAndSetStatus(taskIdentifier, registry.TaskStatusProcessing, terminalStatus); transitionError != nil {
		consumer.logger.Error(terminalTransitionFailedLogConstant, zap.String(taskIdentifierLogFieldConstant, taskIdentifier), zap.Error(transitionError))
	}

	// Application-level failures are acknowledged too: redelivering work
	// that deterministically fails would loop forever.
	consumer.acknowledge(currentDelivery, taskIdentifier)
	consumer.dependencies.Notifier.ResolveDependents(executionContext, taskIdentifier)
}

// claimTask moves the task from queued to processing. It reports whether
// the caller now owns execution of the task.
func (consumer *laneConsumer) claimTask(claimedTask registry.Task, currentDelivery queue.Delivery) bool {
	swapped, transitionError := consumer.dependencies.Store.CompareAndSetStatus(claimedTask.ID, registry.TaskStatusQueued, registry.TaskStatusProcessing)
	if transitionError != nil {
		consumer.logger.Error(claimTransitionFailedLogConstant, zap.String(taskIdentifierLogFieldConstant, claimedTask.ID), zap.Error(transitionError))
		consumer.acknowledge(currentDelivery, claimedTask.ID)
		return false
	}
	if swapped {
		return true
	}

	currentTask, lookupError := consumer.dependencies.Store.Get(claimedTask.ID)
	if lookupError == nil && currentTask.Status == registry.TaskStatusProcessing {
		// The previous holder crashed between claiming and acknowledging;
		// the broker redelivered the message and this consumer takes over.
		consumer.logger.Warn(redeliveryTakeoverLogConstant, zap.String(taskIdentifierLogFieldConstant, claimedTask.ID))
		return true
	}

	statusField := zap.Skip()
	if lookupError == nil {
		statusField = zap.String(taskStatusLogFieldConstant, string(currentTask.Status))
	}
	consumer.logger.Warn(staleDeliveryDroppedLogConstant, zap.String(taskIdentifierLogFieldConstant, claimedTask.ID), statusField)
	consumer.acknowledge(currentDelivery, claimedTask.ID)
	return false
}

func (consumer *laneConsumer) acknowledge(currentDelivery queue.Delivery, taskIdentifier string) {
	if acknowledgeError := currentDelivery.Ack(); acknowledgeError != nil {
		consumer.logger.Error(acknowledgeFailedLogConstant, zap.String(taskIdentifierLogFieldConstant, taskIdentifier), zap.Error(acknowledgeError))
	}
}
