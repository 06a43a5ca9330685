// Package httpapi exposes the task orchestration core over HTTP: task
// submission, status lookup, and listing. Submission is fire-and-forget;
// execution outcomes are observed by polling the status endpoint.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tyemirov/taskmaster/internal/registry"
)

const (
	submitTaskRouteConstant          = "/api/tasks"
	taskStatusRouteConstant          = "/api/tasks/:task_id"
	taskListRouteConstant            = "/api/tasks"
	rootRouteConstant                = "/"
	taskIdentifierParameterConstant  = "task_id"
	ndjsonContentTypeConstant        = "application/x-ndjson"
	serviceRunningMessageConstant    = "taskmaster API is running"
	missingServiceMessageConstant    = "http server requires a task service"
	malformedPayloadMessageConstant  = "malformed task payload"
	taskNotFoundMessageConstant      = "task not found"
	responseErrorFieldConstant       = "error"
	responseMessageFieldConstant     = "message"
	responseIdentifierFieldConstant  = "id"
	requestHandledLogMessageConstant = "http request handled"
	listEncodingFailedLogConstant    = "unable to encode task listing"
	httpMethodLogFieldConstant       = "http_method"
	httpPathLogFieldConstant         = "http_path"
	httpStatusLogFieldConstant       = "http_status"
	taskIdentifierLogFieldConstant   = "task_id"
	routingDeferredLogConstant       = "task accepted without immediate dispatch"
)

// TaskService is the orchestration boundary consumed by the transport layer.
type TaskService interface {
	SubmitTask(executionContext context.Context, message string, dependencies []string, requiresOrdering bool) (registry.Task, error)
	TaskByID(taskID string) (registry.Task, error)
	ListTasks() []registry.Task
}

// taskSubmissionRequest is the submission payload accepted by the API.
type taskSubmissionRequest struct {
	Message          string   `json:"message" binding:"required"`
	Dependencies     []string `json:"dependencies"`
	RequiresOrdering bool     `json:"requires_ordering"`
}

// Server adapts the TaskService to HTTP using gin.
type Server struct {
	engine  *gin.Engine
	service TaskService
	logger  *zap.Logger
}

// NewServer constructs the HTTP server and registers all routes.
func NewServer(service TaskService, logger *zap.Logger) (*Server, error) {
	if service == nil {
		return nil, errors.New(missingServiceMessageConstant)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	server := &Server{engine: engine, service: service, logger: logger}
	engine.Use(server.logRequests)
	engine.POST(submitTaskRouteConstant, server.handleSubmitTask)
	engine.GET(taskStatusRouteConstant, server.handleTaskStatus)
	engine.GET(taskListRouteConstant, server.handleTaskList)
	engine.GET(rootRouteConstant, server.handleRoot)
	return server, nil
}

// Handler exposes the underlying HTTP handler for mounting into an http.Server.
func (server *Server) Handler() http.Handler {
	return server.engine
}

func (server *Server) logRequests(requestContext *gin.Context) {
	requestContext.Next()
	server.logger.Debug(
		requestHandledLogMessageConstant,
		zap.String(httpMethodLogFieldConstant, requestContext.Request.Method),
		zap.String(httpPathLogFieldConstant, requestContext.Request.URL.Path),
		zap.Int(httpStatusLogFieldConstant, requestContext.Writer.Status()),
	)
}

func (server *Server) handleSubmitTask(requestContext *gin.Context) {
	var submissionRequest taskSubmissionRequest
	if bindingError := requestContext.ShouldBindJSON(&submissionRequest); bindingError != nil {
		requestContext.JSON(http.StatusBadRequest, gin.H{responseErrorFieldConstant: malformedPayloadMessageConstant})
		return
	}

	submittedTask, submissionError := server.service.SubmitTask(
		requestContext.Request.Context(),
		submissionRequest.Message,
		submissionRequest.Dependencies,
		submissionRequest.RequiresOrdering,
	)
	if submissionError != nil {
		var unknownDependencyError registry.UnknownDependencyError
		if errors.As(submissionError, &unknownDependencyError) {
			requestContext.JSON(http.StatusBadRequest, gin.H{responseErrorFieldConstant: unknownDependencyError.Error()})
			return
		}
		if submittedTask.ID == "" {
			requestContext.JSON(http.StatusInternalServerError, gin.H{responseErrorFieldConstant: submissionError.Error()})
			return
		}
		// The record exists; it simply could not be dispatched yet. The
		// submission is still accepted, matching fire-and-forget semantics.
		server.logger.Warn(routingDeferredLogConstant, zap.String(taskIdentifierLogFieldConstant, submittedTask.ID), zap.Error(submissionError))
	}

	requestContext.JSON(http.StatusAccepted, gin.H{responseIdentifierFieldConstant: submittedTask.ID})
}

func (server *Server) handleTaskStatus(requestContext *gin.Context) {
	taskIdentifier := requestContext.Param(taskIdentifierParameterConstant)
	currentTask, lookupError := server.service.TaskByID(taskIdentifier)
	if lookupError != nil {
		requestContext.JSON(http.StatusNotFound, gin.H{responseErrorFieldConstant: taskNotFoundMessageConstant})
		return
	}
	requestContext.JSON(http.StatusOK, currentTask)
}

// handleTaskList streams every task as newline-delimited JSON in creation order.
func (server *Server) handleTaskList(requestContext *gin.Context) {
	requestContext.Header("Content-Type", ndjsonContentTypeConstant)
	requestContext.Status(http.StatusOK)
	for _, listedTask := range server.service.ListTasks() {
		encodedTask, encodingError := json.Marshal(listedTask)
		if encodingError != nil {
			server.logger.Error(listEncodingFailedLogConstant, zap.String(taskIdentifierLogFieldConstant, listedTask.ID), zap.Error(encodingError))
			continue
		}
		_, _ = requestContext.Writer.Write(append(encodedTask, '\n'))
	}
}

func (server *Server) handleRoot(requestContext *gin.Context) {
	requestContext.JSON(http.StatusOK, gin.H{responseMessageFieldConstant: serviceRunningMessageConstant})
}
