// Package orchestrator assembles the task orchestration core: the registry,
// the dependency resolver, the queue router, the worker pool, and the
// ordered executor, connected through the durable queue broker.
package orchestrator

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/tyemirov/taskmaster/internal/queue"
	"github.com/tyemirov/taskmaster/internal/registry"
	"github.com/tyemirov/taskmaster/internal/resolver"
	"github.com/tyemirov/taskmaster/internal/router"
	"github.com/tyemirov/taskmaster/internal/worker"
)

const (
	missingExecuteFuncMessageConstant   = "orchestrator requires an execute function"
	submissionDispatchFailedLogConstant = "unable to dispatch submitted task"
	taskSubmittedLogMessageConstant     = "task submitted"
	taskIdentifierLogFieldConstant      = "task_id"
	requiresOrderingLogFieldConstant    = "requires_ordering"
	dependencyCountLogFieldConstant     = "dependency_count"
)

// Dependencies configures the orchestration core. Store and Broker default
// to in-memory implementations; Execute is mandatory.
type Dependencies struct {
	Store       registry.Store
	Broker      queue.Broker
	Execute     worker.ExecuteFunc
	Logger      *zap.Logger
	WorkerCount int
}

// Orchestrator owns the submission path and the executor lifecycles.
type Orchestrator struct {
	store              registry.Store
	broker             queue.Broker
	dependencyResolver *resolver.Resolver
	workerPool         *worker.Pool
	orderedExecutor    *worker.OrderedExecutor
	logger             *zap.Logger
}

// New wires the orchestration core from the provided dependencies.
func New(dependencies Dependencies) (*Orchestrator, error) {
	if dependencies.Execute == nil {
		return nil, errors.New(missingExecuteFuncMessageConstant)
	}

	store := dependencies.Store
	if store == nil {
		store = registry.NewInMemoryStore()
	}
	broker := dependencies.Broker
	if broker == nil {
		broker = queue.NewMemoryBroker()
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	taskRouter := router.NewRouter(broker, logger)
	dependencyResolver := resolver.NewResolver(store, taskRouter, logger)

	executorDependencies := worker.Dependencies{
		Store:    store,
		Broker:   broker,
		Notifier: dependencyResolver,
		Execute:  dependencies.Execute,
		Logger:   logger,
	}

	workerPool, poolCreationError := worker.NewPool(executorDependencies, dependencies.WorkerCount)
	if poolCreationError != nil {
		return nil, poolCreationError
	}
	orderedExecutor, executorCreationError := worker.NewOrderedExecutor(executorDependencies)
	if executorCreationError != nil {
		return nil, executorCreationError
	}

	return &Orchestrator{
		store:              store,
		broker:             broker,
		dependencyResolver: dependencyResolver,
		workerPool:         workerPool,
		orderedExecutor:    orderedExecutor,
		logger:             logger,
	}, nil
}

// Start launches the worker pool and the ordered executor. Executors run
// until the context is cancelled or the broker closes.
func (core *Orchestrator) Start(executionContext context.Context) error {
	if startError := core.workerPool.Start(executionContext); startError != nil {
		return startError
	}
	return core.orderedExecutor.Start(executionContext)
}

// Wait blocks until every executor has stopped.
func (core *Orchestrator) Wait() {
	core.workerPool.Wait()
	core.orderedExecutor.Wait()
}

// SubmitTask validates and stores a task, then dispatches it immediately
// when its dependency set is already satisfied. Submission is
// fire-and-forget: the task is accepted as soon as the record exists. A
// routing failure leaves the accepted task waiting and is returned
// alongside the created task so the transport can report it.
func (core *Orchestrator) SubmitTask(executionContext context.Context, message string, dependencies []string, requiresOrdering bool) (registry.Task, error) {
	createdTask, creationError := core.store.Create(message, dependencies, requiresOrdering)
	if creationError != nil {
		return registry.Task{}, creationError
	}

	core.logger.Info(
		taskSubmittedLogMessageConstant,
		zap.String(taskIdentifierLogFieldConstant, createdTask.ID),
		zap.Bool(requiresOrderingLogFieldConstant, createdTask.RequiresOrdering),
		zap.Int(dependencyCountLogFieldConstant, len(createdTask.Dependencies)),
	)

	if _, dispatchError := core.dependencyResolver.DispatchIfEligible(executionContext, createdTask.ID); dispatchError != nil {
		core.logger.Error(submissionDispatchFailedLogConstant, zap.String(taskIdentifierLogFieldConstant, createdTask.ID), zap.Error(dispatchError))
		return createdTask, dispatchError
	}

	currentTask, lookupError := core.store.Get(createdTask.ID)
	if lookupError != nil {
		return createdTask, nil
	}
	return currentTask, nil
}

// TaskByID returns the current task record.
func (core *Orchestrator) TaskByID(taskID string) (registry.Task, error) {
	return core.store.Get(taskID)
}

// ListTasks returns every task record in creation order.
func (core *Orchestrator) ListTasks() []registry.Task {
	return core.store.List()
}
