package registry

import (
	"errors"
	"fmt"
)

const (
	taskNotFoundMessageConstant         = "task not found"
	unknownDependencyTemplateConstant   = "dependency %s not found"
	invalidTransitionTemplateConstant   = "task %s cannot transition from %s to %s"
	identifierGenerationFailureConstant = "unable to generate task identifier: %w"
)

// ErrTaskNotFound indicates a lookup for an identifier absent from the registry.
var ErrTaskNotFound = errors.New(taskNotFoundMessageConstant)

// UnknownDependencyError indicates a submission referencing a dependency identifier that does not exist.
type UnknownDependencyError struct {
	DependencyID string
}

// Error describes the unknown dependency reference.
func (validationError UnknownDependencyError) Error() string {
	return fmt.Sprintf(unknownDependencyTemplateConstant, validationError.DependencyID)
}

// InvalidTransitionError indicates an attempt to move a task along an edge absent from the state machine.
type InvalidTransitionError struct {
	TaskID         string
	CurrentStatus  TaskStatus
	RequestedState TaskStatus
}

// Error describes the rejected status transition.
func (transitionError InvalidTransitionError) Error() string {
	return fmt.Sprintf(invalidTransitionTemplateConstant, transitionError.TaskID, transitionError.CurrentStatus, transitionError.RequestedState)
}
