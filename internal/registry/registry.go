// Package registry stores task records and owns every status mutation.
//
// The registry is the single shared mutable structure in the orchestration
// core: executors and the dependency resolver coordinate exclusively through
// its compare-and-set primitive. State is volatile and resets on restart.
package registry

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

const (
	taskIdentifierByteLengthConstant = 4
)

// Store describes the narrow registry contract consumed by the resolver, router, and executors.
type Store interface {
	Create(message string, dependencies []string, requiresOrdering bool) (Task, error)
	Get(taskID string) (Task, error)
	List() []Task
	CompareAndSetStatus(taskID string, expectedStatus TaskStatus, nextStatus TaskStatus) (bool, error)
	Dependents(taskID string) []string
}

// IdentifierGenerator produces unique task identifiers.
type IdentifierGenerator func() (string, error)

// InMemoryStore keeps task records in process memory guarded by a mutex.
//
// Records are append-only for the lifetime of the process; completed and
// failed tasks remain listable until restart.
type InMemoryStore struct {
	mutex               sync.Mutex
	tasksByIdentifier   map[string]*Task
	insertionOrder      []string
	dependentsByTask    map[string][]string
	identifierGenerator IdentifierGenerator
	clock               func() time.Time
}

// NewInMemoryStore constructs an empty registry with default identifier generation.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tasksByIdentifier:   map[string]*Task{},
		dependentsByTask:    map[string][]string{},
		identifierGenerator: generateTaskIdentifier,
		clock:               time.Now,
	}
}

// generateTaskIdentifier returns an eight character hexadecimal identifier.
func generateTaskIdentifier() (string, error) {
	identifierBytes := make([]byte, taskIdentifierByteLengthConstant)
	if _, readError := rand.Read(identifierBytes); readError != nil {
		return "", fmt.Errorf(identifierGenerationFailureConstant, readError)
	}
	return hex.EncodeToString(identifierBytes), nil
}

// Create validates dependency references and inserts the task record atomically.
// A task referencing an unknown dependency is never partially created.
func (store *InMemoryStore) Create(message string, dependencies []string, requiresOrdering bool) (Task, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	for _, dependencyIdentifier := range dependencies {
		if _, dependencyExists := store.tasksByIdentifier[dependencyIdentifier]; !dependencyExists {
			return Task{}, UnknownDependencyError{DependencyID: dependencyIdentifier}
		}
	}

	taskIdentifier, generationError := store.nextIdentifierLocked()
	if generationError != nil {
		return Task{}, generationError
	}

	storedDependencies := make([]string, len(dependencies))
	copy(storedDependencies, dependencies)

	taskRecord := &Task{
		ID:               taskIdentifier,
		Message:          message,
		Dependencies:     storedDependencies,
		RequiresOrdering: requiresOrdering,
		Status:           TaskStatusWaiting,
		CreatedAt:        store.clock(),
	}

	store.tasksByIdentifier[taskIdentifier] = taskRecord
	store.insertionOrder = append(store.insertionOrder, taskIdentifier)
	for _, dependencyIdentifier := range storedDependencies {
		store.dependentsByTask[dependencyIdentifier] = append(store.dependentsByTask[dependencyIdentifier], taskIdentifier)
	}

	return copyTask(taskRecord), nil
}

func (store *InMemoryStore) nextIdentifierLocked() (string, error) {
	for {
		candidateIdentifier, generationError := store.identifierGenerator()
		if generationError != nil {
			return "", generationError
		}
		if _, identifierTaken := store.tasksByIdentifier[candidateIdentifier]; !identifierTaken {
			return candidateIdentifier, nil
		}
	}
}

// Get returns a snapshot of the task record or ErrTaskNotFound.
func (store *InMemoryStore) Get(taskID string) (Task, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	taskRecord, taskExists := store.tasksByIdentifier[taskID]
	if !taskExists {
		return Task{}, ErrTaskNotFound
	}
	return copyTask(taskRecord), nil
}

// List returns snapshots of every task record in creation order.
func (store *InMemoryStore) List() []Task {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	taskSnapshots := make([]Task, 0, len(store.insertionOrder))
	for _, taskIdentifier := range store.insertionOrder {
		taskSnapshots = append(taskSnapshots, copyTask(store.tasksByIdentifier[taskIdentifier]))
	}
	return taskSnapshots
}

// CompareAndSetStatus atomically replaces the task status when the current
// status matches the expectation. It returns false without error when the
// expectation does not hold, so concurrent resolvers and executors can race
// safely: exactly one caller observes a successful swap.
func (store *InMemoryStore) CompareAndSetStatus(taskID string, expectedStatus TaskStatus, nextStatus TaskStatus) (bool, error) {
	if !expectedStatus.CanTransitionTo(nextStatus) {
		return false, InvalidTransitionError{TaskID: taskID, CurrentStatus: expectedStatus, RequestedState: nextStatus}
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()

	taskRecord, taskExists := store.tasksByIdentifier[taskID]
	if !taskExists {
		return false, ErrTaskNotFound
	}
	if taskRecord.Status != expectedStatus {
		return false, nil
	}

	taskRecord.Status = nextStatus
	return true, nil
}

// Dependents returns the identifiers of tasks whose dependency set contains the given task.
func (store *InMemoryStore) Dependents(taskID string) []string {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	registeredDependents := store.dependentsByTask[taskID]
	dependentIdentifiers := make([]string, len(registeredDependents))
	copy(dependentIdentifiers, registeredDependents)
	return dependentIdentifiers
}

func copyTask(taskRecord *Task) Task {
	taskCopy := *taskRecord
	taskCopy.Dependencies = make([]string, len(taskRecord.Dependencies))
	copy(taskCopy.Dependencies, taskRecord.Dependencies)
	return taskCopy
}
