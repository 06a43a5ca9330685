package orchestrator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/taskmaster/internal/orchestrator"
	"github.com/tyemirov/taskmaster/internal/registry"
)

const (
	testSubmitMessageConstant      = "orchestrated task"
	testFailingMessageConstant     = "doomed task"
	testDependentMessageConstant   = "dependent task"
	testUnknownDependencyConstant  = "xyz"
	testSettlementTimeoutConstant  = 3 * time.Second
	testStatusPollIntervalConstant = 10 * time.Millisecond
)

func failDoomedMessages(_ context.Context, task registry.Task) error {
	if task.Message == testFailingMessageConstant {
		return errors.New("execution rejected payload")
	}
	return nil
}

func startOrchestrator(testInstance *testing.T) *orchestrator.Orchestrator {
	testInstance.Helper()

	core, creationError := orchestrator.New(orchestrator.Dependencies{Execute: failDoomedMessages})
	require.NoError(testInstance, creationError)

	executionContext, cancelExecution := context.WithCancel(context.Background())
	testInstance.Cleanup(cancelExecution)
	require.NoError(testInstance, core.Start(executionContext))
	return core
}

func awaitTaskStatus(testInstance *testing.T, core *orchestrator.Orchestrator, taskID string, expectedStatus registry.TaskStatus) {
	testInstance.Helper()
	require.Eventually(testInstance, func() bool {
		currentTask, lookupError := core.TaskByID(taskID)
		return lookupError == nil && currentTask.Status == expectedStatus
	}, testSettlementTimeoutConstant, testStatusPollIntervalConstant)
}

func TestOrchestratorCompletesDependencyFreeSubmission(testInstance *testing.T) {
	core := startOrchestrator(testInstance)

	submittedTask, submissionError := core.SubmitTask(context.Background(), testSubmitMessageConstant, nil, false)
	require.NoError(testInstance, submissionError)
	require.NotEmpty(testInstance, submittedTask.ID)

	awaitTaskStatus(testInstance, core, submittedTask.ID, registry.TaskStatusCompleted)
}

func TestOrchestratorHoldsDependentUntilDependencyCompletes(testInstance *testing.T) {
	core := startOrchestrator(testInstance)

	dependencyTask, dependencySubmissionError := core.SubmitTask(context.Background(), testSubmitMessageConstant, nil, false)
	require.NoError(testInstance, dependencySubmissionError)

	dependentTask, dependentSubmissionError := core.SubmitTask(context.Background(), testDependentMessageConstant, []string{dependencyTask.ID}, false)
	require.NoError(testInstance, dependentSubmissionError)
	require.Equal(testInstance, registry.TaskStatusWaiting, dependentTask.Status)

	awaitTaskStatus(testInstance, core, dependencyTask.ID, registry.TaskStatusCompleted)
	awaitTaskStatus(testInstance, core, dependentTask.ID, registry.TaskStatusCompleted)
}

func TestOrchestratorLeavesDependentsOfFailedTaskWaiting(testInstance *testing.T) {
	core := startOrchestrator(testInstance)

	doomedTask, doomedSubmissionError := core.SubmitTask(context.Background(), testFailingMessageConstant, nil, false)
	require.NoError(testInstance, doomedSubmissionError)

	dependentTask, dependentSubmissionError := core.SubmitTask(context.Background(), testDependentMessageConstant, []string{doomedTask.ID}, false)
	require.NoError(testInstance, dependentSubmissionError)

	awaitTaskStatus(testInstance, core, doomedTask.ID, registry.TaskStatusFailed)

	require.Never(testInstance, func() bool {
		currentTask, lookupError := core.TaskByID(dependentTask.ID)
		return lookupError == nil && currentTask.Status != registry.TaskStatusWaiting
	}, 300*time.Millisecond, testStatusPollIntervalConstant)
}

func TestOrchestratorRejectsUnknownDependencyWithoutCreatingRecord(testInstance *testing.T) {
	core := startOrchestrator(testInstance)

	_, submissionError := core.SubmitTask(context.Background(), testSubmitMessageConstant, []string{testUnknownDependencyConstant}, false)
	require.Error(testInstance, submissionError)

	var unknownDependencyError registry.UnknownDependencyError
	require.ErrorAs(testInstance, submissionError, &unknownDependencyError)
	require.Empty(testInstance, core.ListTasks())
}

func TestOrchestratorCompletesOrderingRequiredSubmission(testInstance *testing.T) {
	core := startOrchestrator(testInstance)

	orderedTask, submissionError := core.SubmitTask(context.Background(), testSubmitMessageConstant, nil, true)
	require.NoError(testInstance, submissionError)

	awaitTaskStatus(testInstance, core, orderedTask.ID, registry.TaskStatusCompleted)
}

func TestOrchestratorRequiresExecuteFunction(testInstance *testing.T) {
	_, creationError := orchestrator.New(orchestrator.Dependencies{})
	require.Error(testInstance, creationError)
}

func TestOrchestratorListReflectsCreationOrder(testInstance *testing.T) {
	core := startOrchestrator(testInstance)

	firstTask, firstSubmissionError := core.SubmitTask(context.Background(), testSubmitMessageConstant, nil, false)
	require.NoError(testInstance, firstSubmissionError)
	secondTask, secondSubmissionError := core.SubmitTask(context.Background(), testSubmitMessageConstant, nil, true)
	require.NoError(testInstance, secondSubmissionError)

	listedTasks := core.ListTasks()
	require.Len(testInstance, listedTasks, 2)
	require.Equal(testInstance, firstTask.ID, listedTasks[0].ID)
	require.Equal(testInstance, secondTask.ID, listedTasks[1].ID)
}
