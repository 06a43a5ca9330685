// Package serve builds the command that runs the taskmaster orchestration
// service: the HTTP API, the worker pool, and the ordered executor.
package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/taskmaster/internal/httpapi"
	"github.com/tyemirov/taskmaster/internal/orchestrator"
	"github.com/tyemirov/taskmaster/internal/queue"
	"github.com/tyemirov/taskmaster/internal/worker"
)

const (
	commandUseConstant                = "serve"
	commandShortDescriptionConstant   = "Run the taskmaster orchestration service"
	commandLongDescriptionConstant    = "serve starts the HTTP API together with the worker pool and the ordered executor, connected through the configured durable queue."
	flagAddressNameConstant           = "address"
	flagAddressDescriptionConstant    = "Listen address for the HTTP API."
	flagWorkersNameConstant           = "workers"
	flagWorkersDescriptionConstant    = "Number of concurrent executors on the default lane."
	queueDriverMemoryConstant         = "memory"
	queueDriverAMQPConstant           = "amqp"
	unsupportedDriverTemplateConstant = "unsupported queue driver %q"
	serverStartedLogMessageConstant   = "taskmaster service listening"
	serverStoppedLogMessageConstant   = "taskmaster service stopped"
	serverAddressLogFieldConstant     = "address"
	queueDriverLogFieldConstant       = "queue_driver"
	workerCountLogFieldConstant       = "worker_count"
	shutdownFailedLogMessageConstant  = "unable to shut down http server cleanly"
)

// CommandConfiguration captures the effective serve settings.
type CommandConfiguration struct {
	ServerAddress  string
	QueueDriver    string
	BrokerURL      string
	WorkerCount    int
	ExecutionDelay time.Duration
	ShutdownGrace  time.Duration
}

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// BrokerFactory constructs the durable queue broker for the service.
type BrokerFactory func(configuration CommandConfiguration, logger *zap.Logger) (queue.Broker, error)

// CommandBuilder assembles the serve Cobra command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider func() CommandConfiguration
	BrokerFactory         BrokerFactory
	ExecuteOverride       worker.ExecuteFunc
}

// Build constructs the serve command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}
	command.Flags().String(flagAddressNameConstant, "", flagAddressDescriptionConstant)
	command.Flags().Int(flagWorkersNameConstant, 0, flagWorkersDescriptionConstant)
	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, _ []string) error {
	configuration := builder.resolveConfiguration(command)
	logger := builder.resolveLogger()

	broker, brokerCreationError := builder.resolveBroker(configuration, logger)
	if brokerCreationError != nil {
		return brokerCreationError
	}
	defer func() {
		_ = broker.Close()
	}()

	executeFunction := builder.ExecuteOverride
	if executeFunction == nil {
		executeFunction = worker.NewSimulatedExecutor(configuration.ExecutionDelay, logger)
	}

	core, coreCreationError := orchestrator.New(orchestrator.Dependencies{
		Broker:      broker,
		Execute:     executeFunction,
		Logger:      logger,
		WorkerCount: configuration.WorkerCount,
	})
	if coreCreationError != nil {
		return coreCreationError
	}

	executionContext, stopSignalListener := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignalListener()

	if startError := core.Start(executionContext); startError != nil {
		return startError
	}

	apiServer, serverCreationError := httpapi.NewServer(core, logger)
	if serverCreationError != nil {
		return serverCreationError
	}

	httpServer := &http.Server{Addr: configuration.ServerAddress, Handler: apiServer.Handler()}
	go func() {
		<-executionContext.Done()
		shutdownContext, cancelShutdown := context.WithTimeout(context.Background(), configuration.ShutdownGrace)
		defer cancelShutdown()
		if shutdownError := httpServer.Shutdown(shutdownContext); shutdownError != nil {
			logger.Warn(shutdownFailedLogMessageConstant, zap.Error(shutdownError))
		}
	}()

	logger.Info(
		serverStartedLogMessageConstant,
		zap.String(serverAddressLogFieldConstant, configuration.ServerAddress),
		zap.String(queueDriverLogFieldConstant, configuration.QueueDriver),
		zap.Int(workerCountLogFieldConstant, configuration.WorkerCount),
	)

	serveError := httpServer.ListenAndServe()
	if serveError != nil && !errors.Is(serveError, http.ErrServerClosed) {
		return serveError
	}

	stopSignalListener()
	_ = broker.Close()
	core.Wait()
	logger.Info(serverStoppedLogMessageConstant)
	return nil
}

func (builder *CommandBuilder) resolveConfiguration(command *cobra.Command) CommandConfiguration {
	configuration := CommandConfiguration{}
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}

	if command != nil {
		if command.Flags().Changed(flagAddressNameConstant) {
			if addressValue, flagError := command.Flags().GetString(flagAddressNameConstant); flagError == nil {
				configuration.ServerAddress = addressValue
			}
		}
		if command.Flags().Changed(flagWorkersNameConstant) {
			if workersValue, flagError := command.Flags().GetInt(flagWorkersNameConstant); flagError == nil {
				configuration.WorkerCount = workersValue
			}
		}
	}
	return configuration
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveBroker(configuration CommandConfiguration, logger *zap.Logger) (queue.Broker, error) {
	if builder.BrokerFactory != nil {
		return builder.BrokerFactory(configuration, logger)
	}
	switch configuration.QueueDriver {
	case queueDriverMemoryConstant, "":
		return queue.NewMemoryBroker(), nil
	case queueDriverAMQPConstant:
		return queue.NewAMQPBroker(configuration.BrokerURL, logger)
	default:
		return nil, fmt.Errorf(unsupportedDriverTemplateConstant, configuration.QueueDriver)
	}
}
