// Package resolver decides when tasks become eligible for execution.
//
// A task is eligible once every dependency has completed. Eligibility is
// re-evaluated only when an executor reports a terminal outcome; the
// resolver never polls. The registry's compare-and-set primitive makes the
// re-evaluation idempotent: when two dependencies complete concurrently and
// both trigger a scan, exactly one scan wins the waiting-to-queued swap.
package resolver

import (
	"context"

	"go.uber.org/zap"

	"github.com/tyemirov/taskmaster/internal/registry"
)

const (
	taskDispatchedLogMessageConstant      = "task dispatched"
	dependentDispatchFailedLogConstant    = "unable to dispatch dependent task"
	dependentLookupFailedLogConstant      = "unable to load dependent task"
	taskIdentifierLogFieldConstant        = "task_id"
	settledTaskIdentifierLogFieldConstant = "settled_task_id"
)

// TaskRouter hands an eligible task to the durable queue.
type TaskRouter interface {
	Route(executionContext context.Context, task registry.Task) error
}

// Resolver owns the waiting-to-queued transition.
type Resolver struct {
	store      registry.Store
	taskRouter TaskRouter
	logger     *zap.Logger
}

// NewResolver constructs a Resolver over the registry and router.
func NewResolver(store registry.Store, taskRouter TaskRouter, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, taskRouter: taskRouter, logger: logger}
}

// DispatchIfEligible transitions the task to queued and routes it when all
// of its dependencies have completed. It reports whether this call performed
// the dispatch. When the durable queue rejects the enqueue the status
// reverts to waiting and the routing error propagates, so the task is never
// silently dropped in the queued state.
func (dependencyResolver *Resolver) DispatchIfEligible(executionContext context.Context, taskID string) (bool, error) {
	candidateTask, lookupError := dependencyResolver.store.Get(taskID)
	if lookupError != nil {
		return false, lookupError
	}
	if !dependencyResolver.dependenciesSatisfied(candidateTask) {
		return false, nil
	}

	swapped, transitionError := dependencyResolver.store.CompareAndSetStatus(taskID, registry.TaskStatusWaiting, registry.TaskStatusQueued)
	if transitionError != nil {
		return false, transitionError
	}
	if !swapped {
		// A concurrent scan already queued the task.
		return false, nil
	}

	if routingError := dependencyResolver.taskRouter.Route(executionContext, candidateTask); routingError != nil {
		if _, revertError := dependencyResolver.store.CompareAndSetStatus(taskID, registry.TaskStatusQueued, registry.TaskStatusWaiting); revertError != nil {
			dependencyResolver.logger.Error(dependentDispatchFailedLogConstant, zap.String(taskIdentifierLogFieldConstant, taskID), zap.Error(revertError))
		}
		return false, routingError
	}

	dependencyResolver.logger.Debug(taskDispatchedLogMessageConstant, zap.String(taskIdentifierLogFieldConstant, taskID))
	return true, nil
}

// ResolveDependents re-evaluates every task whose dependency set contains
// the settled task. Dependents of a failed task stay waiting: a dependency
// set is satisfied only by completion, so the scan leaves them untouched.
func (dependencyResolver *Resolver) ResolveDependents(executionContext context.Context, settledTaskID string) {
	for _, dependentIdentifier := range dependencyResolver.store.Dependents(settledTaskID) {
		if _, dispatchError := dependencyResolver.DispatchIfEligible(executionContext, dependentIdentifier); dispatchError != nil {
			dependencyResolver.logger.Error(
				dependentDispatchFailedLogConstant,
				zap.String(taskIdentifierLogFieldConstant, dependentIdentifier),
				zap.String(settledTaskIdentifierLogFieldConstant, settledTaskID),
				zap.Error(dispatchError),
			)
		}
	}
}

func (dependencyResolver *Resolver) dependenciesSatisfied(candidateTask registry.Task) bool {
	for _, dependencyIdentifier := range candidateTask.Dependencies {
		dependencyTask, lookupError := dependencyResolver.store.Get(dependencyIdentifier)
		if lookupError != nil {
			dependencyResolver.logger.Error(
				dependentLookupFailedLogConstant,
				zap.String(taskIdentifierLogFieldConstant, dependencyIdentifier),
				zap.Error(lookupError),
			)
			return false
		}
		if dependencyTask.Status != registry.TaskStatusCompleted {
			return false
		}
	}
	return true
}
