package httpapi_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/taskmaster/internal/httpapi"
	"github.com/tyemirov/taskmaster/internal/registry"
)

const (
	testSubmitRouteConstant           = "/api/tasks"
	testSubmittedIdentifierConstant   = "ab12cd34"
	testUnknownIdentifierConstant     = "ffffffff"
	testSubmitPayloadConstant         = `{"message":"build artifact","dependencies":[],"requires_ordering":true}`
	testMissingMessagePayloadConstant = `{"dependencies":["ab12cd34"]}`
	testUnknownDependencyPayload      = `{"message":"publish","dependencies":["missing01"]}`
	testNDJSONContentTypeConstant     = "application/x-ndjson"
)

type stubTaskService struct {
	submittedMessages         []string
	submittedDependencies     [][]string
	submittedOrderingRequests []bool
	tasksByIdentifier         map[string]registry.Task
	listedTasks               []registry.Task
	submissionFailure         error
}

func (service *stubTaskService) SubmitTask(_ context.Context, message string, dependencies []string, requiresOrdering bool) (registry.Task, error) {
	if service.submissionFailure != nil {
		return registry.Task{}, service.submissionFailure
	}
	service.submittedMessages = append(service.submittedMessages, message)
	service.submittedDependencies = append(service.submittedDependencies, dependencies)
	service.submittedOrderingRequests = append(service.submittedOrderingRequests, requiresOrdering)
	return registry.Task{ID: testSubmittedIdentifierConstant, Message: message, Status: registry.TaskStatusQueued}, nil
}

func (service *stubTaskService) TaskByID(taskID string) (registry.Task, error) {
	storedTask, taskExists := service.tasksByIdentifier[taskID]
	if !taskExists {
		return registry.Task{}, registry.ErrTaskNotFound
	}
	return storedTask, nil
}

func (service *stubTaskService) ListTasks() []registry.Task {
	return service.listedTasks
}

func newTestServer(testInstance *testing.T, service *stubTaskService) *httptest.Server {
	testInstance.Helper()
	server, serverCreationError := httpapi.NewServer(service, nil)
	require.NoError(testInstance, serverCreationError)
	testServer := httptest.NewServer(server.Handler())
	testInstance.Cleanup(testServer.Close)
	return testServer
}

func TestServerAcceptsSubmissionAndReturnsIdentifier(testInstance *testing.T) {
	service := &stubTaskService{}
	testServer := newTestServer(testInstance, service)

	response, requestError := http.Post(testServer.URL+testSubmitRouteConstant, "application/json", strings.NewReader(testSubmitPayloadConstant))
	require.NoError(testInstance, requestError)
	defer func() {
		require.NoError(testInstance, response.Body.Close())
	}()

	require.Equal(testInstance, http.StatusAccepted, response.StatusCode)

	var responseBody map[string]string
	require.NoError(testInstance, json.NewDecoder(response.Body).Decode(&responseBody))
	require.Equal(testInstance, testSubmittedIdentifierConstant, responseBody["id"])

	require.Equal(testInstance, []string{"build artifact"}, service.submittedMessages)
	require.Equal(testInstance, []bool{true}, service.submittedOrderingRequests)
}

func TestServerRejectsPayloadWithoutMessage(testInstance *testing.T) {
	service := &stubTaskService{}
	testServer := newTestServer(testInstance, service)

	response, requestError := http.Post(testServer.URL+testSubmitRouteConstant, "application/json", strings.NewReader(testMissingMessagePayloadConstant))
	require.NoError(testInstance, requestError)
	defer func() {
		require.NoError(testInstance, response.Body.Close())
	}()

	require.Equal(testInstance, http.StatusBadRequest, response.StatusCode)
	require.Empty(testInstance, service.submittedMessages)
}

func TestServerRejectsUnknownDependencyReference(testInstance *testing.T) {
	service := &stubTaskService{submissionFailure: registry.UnknownDependencyError{DependencyID: "missing01"}}
	testServer := newTestServer(testInstance, service)

	response, requestError := http.Post(testServer.URL+testSubmitRouteConstant, "application/json", strings.NewReader(testUnknownDependencyPayload))
	require.NoError(testInstance, requestError)
	defer func() {
		require.NoError(testInstance, response.Body.Close())
	}()

	require.Equal(testInstance, http.StatusBadRequest, response.StatusCode)

	var responseBody map[string]string
	require.NoError(testInstance, json.NewDecoder(response.Body).Decode(&responseBody))
	require.Contains(testInstance, responseBody["error"], "missing01")
}

func TestServerReturnsTaskStatusByIdentifier(testInstance *testing.T) {
	storedTask := registry.Task{
		ID:        testSubmittedIdentifierConstant,
		Message:   "build artifact",
		Status:    registry.TaskStatusProcessing,
		CreatedAt: time.Now(),
	}
	service := &stubTaskService{tasksByIdentifier: map[string]registry.Task{storedTask.ID: storedTask}}
	testServer := newTestServer(testInstance, service)

	response, requestError := http.Get(testServer.URL + testSubmitRouteConstant + "/" + storedTask.ID)
	require.NoError(testInstance, requestError)
	defer func() {
		require.NoError(testInstance, response.Body.Close())
	}()

	require.Equal(testInstance, http.StatusOK, response.StatusCode)

	var returnedTask registry.Task
	require.NoError(testInstance, json.NewDecoder(response.Body).Decode(&returnedTask))
	require.Equal(testInstance, storedTask.ID, returnedTask.ID)
	require.Equal(testInstance, registry.TaskStatusProcessing, returnedTask.Status)
}

func TestServerReturnsNotFoundForUnknownTask(testInstance *testing.T) {
	service := &stubTaskService{}
	testServer := newTestServer(testInstance, service)

	response, requestError := http.Get(testServer.URL + testSubmitRouteConstant + "/" + testUnknownIdentifierConstant)
	require.NoError(testInstance, requestError)
	defer func() {
		require.NoError(testInstance, response.Body.Close())
	}()

	require.Equal(testInstance, http.StatusNotFound, response.StatusCode)
}

func TestServerListsTasksAsNewlineDelimitedJSON(testInstance *testing.T) {
	service := &stubTaskService{
		listedTasks: []registry.Task{
			{ID: "task0001", Message: "first", Status: registry.TaskStatusCompleted},
			{ID: "task0002", Message: "second", Status: registry.TaskStatusWaiting},
		},
	}
	testServer := newTestServer(testInstance, service)

	response, requestError := http.Get(testServer.URL + testSubmitRouteConstant)
	require.NoError(testInstance, requestError)
	defer func() {
		require.NoError(testInstance, response.Body.Close())
	}()

	require.Equal(testInstance, http.StatusOK, response.StatusCode)
	require.Equal(testInstance, testNDJSONContentTypeConstant, response.Header.Get("Content-Type"))

	responseBody, readError := io.ReadAll(response.Body)
	require.NoError(testInstance, readError)

	documentLines := strings.Split(strings.TrimSpace(string(responseBody)), "\n")
	require.Len(testInstance, documentLines, 2)

	var firstListedTask registry.Task
	require.NoError(testInstance, json.Unmarshal([]byte(documentLines[0]), &firstListedTask))
	require.Equal(testInstance, "task0001", firstListedTask.ID)

	var secondListedTask registry.Task
	require.NoError(testInstance, json.Unmarshal([]byte(documentLines[1]), &secondListedTask))
	require.Equal(testInstance, registry.TaskStatusWaiting, secondListedTask.Status)
}

func TestServerRootReportsServiceRunning(testInstance *testing.T) {
	service := &stubTaskService{}
	testServer := newTestServer(testInstance, service)

	response, requestError := http.Get(testServer.URL + "/")
	require.NoError(testInstance, requestError)
	defer func() {
		require.NoError(testInstance, response.Body.Close())
	}()

	require.Equal(testInstance, http.StatusOK, response.StatusCode)

	var responseBody map[string]string
	require.NoError(testInstance, json.NewDecoder(response.Body).Decode(&responseBody))
	require.Equal(testInstance, "taskmaster API is running", responseBody["message"])
}
