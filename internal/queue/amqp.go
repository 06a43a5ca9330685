package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	defaultLaneQueueNameConstant      = "taskmaster.tasks.regular"
	orderedLaneQueueNameConstant      = "taskmaster.tasks.ordered"
	consumerPrefetchCountConstant     = 1
	messageContentTypeConstant        = "application/json"
	brokerDialErrorTemplateConstant   = "unable to connect to queue broker: %w"
	channelErrorTemplateConstant      = "unable to open broker channel: %w"
	queueDeclareErrorTemplateConstant = "unable to declare queue %s: %w"
	publishErrorTemplateConstant      = "unable to publish to queue %s: %w"
	qosErrorTemplateConstant          = "unable to apply consumer prefetch: %w"
	consumeErrorTemplateConstant      = "unable to consume queue %s: %w"
	malformedMessageLogConstant       = "discarding malformed queue message"
	queueNameLogFieldConstant         = "queue_name"
)

// queuedTaskReference is the wire envelope for a task handed to the durable queue.
type queuedTaskReference struct {
	TaskID string `json:"task_id"`
}

// AMQPBroker binds the Broker contract to a RabbitMQ server.
//
// Both lanes are declared as durable queues and every message is published
// with persistent delivery, so a broker restart does not lose in-flight work.
type AMQPBroker struct {
	connection       *amqp.Connection
	publishChannel   *amqp.Channel
	publishMutex     sync.Mutex
	queueNamesByLane map[Lane]string
	logger           *zap.Logger
}

// NewAMQPBroker dials the broker and declares the default and ordered lanes.
func NewAMQPBroker(brokerURL string, logger *zap.Logger) (*AMQPBroker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	connection, dialError := amqp.Dial(brokerURL)
	if dialError != nil {
		return nil, fmt.Errorf(brokerDialErrorTemplateConstant, dialError)
	}

	publishChannel, channelError := connection.Channel()
	if channelError != nil {
		_ = connection.Close()
		return nil, fmt.Errorf(channelErrorTemplateConstant, channelError)
	}

	queueNamesByLane := map[Lane]string{
		LaneDefault: defaultLaneQueueNameConstant,
		LaneOrdered: orderedLaneQueueNameConstant,
	}
	for _, queueName := range queueNamesByLane {
		if _, declareError := publishChannel.QueueDeclare(queueName, true, false, false, false, nil); declareError != nil {
			_ = connection.Close()
			return nil, fmt.Errorf(queueDeclareErrorTemplateConstant, queueName, declareError)
		}
	}

	return &AMQPBroker{
		connection:       connection,
		publishChannel:   publishChannel,
		queueNamesByLane: queueNamesByLane,
		logger:           logger,
	}, nil
}

// Publish enqueues the task identifier on the lane with persistent delivery.
func (broker *AMQPBroker) Publish(executionContext context.Context, lane Lane, taskID string) error {
	queueName, laneDeclared := broker.queueNamesByLane[lane]
	if !laneDeclared {
		return ErrUnknownLane
	}

	messageBody, marshalError := json.Marshal(queuedTaskReference{TaskID: taskID})
	if marshalError != nil {
		return marshalError
	}

	broker.publishMutex.Lock()
	defer broker.publishMutex.Unlock()

	publishError := broker.publishChannel.PublishWithContext(
		executionContext,
		"",
		queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  messageContentTypeConstant,
			DeliveryMode: amqp.Persistent,
			Body:         messageBody,
		},
	)
	if publishError != nil {
		return fmt.Errorf(publishErrorTemplateConstant, queueName, publishError)
	}
	return nil
}

// Consume opens a dedicated channel with a prefetch of one and adapts the
// server deliveries to the Delivery contract. Unparseable messages are
// acknowledged and discarded so they cannot loop through redelivery.
func (broker *AMQPBroker) Consume(executionContext context.Context, lane Lane) (<-chan Delivery, error) {
	queueName, laneDeclared := broker.queueNamesByLane[lane]
	if !laneDeclared {
		return nil, ErrUnknownLane
	}

	consumerChannel, channelError := broker.connection.Channel()
	if channelError != nil {
		return nil, fmt.Errorf(channelErrorTemplateConstant, channelError)
	}
	if qosError := consumerChannel.Qos(consumerPrefetchCountConstant, 0, false); qosError != nil {
		_ = consumerChannel.Close()
		return nil, fmt.Errorf(qosErrorTemplateConstant, qosError)
	}

	serverDeliveries, consumeError := consumerChannel.ConsumeWithContext(executionContext, queueName, "", false, false, false, false, nil)
	if consumeError != nil {
		_ = consumerChannel.Close()
		return nil, fmt.Errorf(consumeErrorTemplateConstant, queueName, consumeError)
	}

	deliveries := make(chan Delivery)
	go func() {
		defer close(deliveries)
		defer func() {
			_ = consumerChannel.Close()
		}()
		for serverDelivery := range serverDeliveries {
			var taskReference queuedTaskReference
			if unmarshalError := json.Unmarshal(serverDelivery.Body, &taskReference); unmarshalError != nil {
				broker.logger.Warn(malformedMessageLogConstant, zap.String(queueNameLogFieldConstant, queueName), zap.Error(unmarshalError))
				_ = serverDelivery.Ack(false)
				continue
			}

			select {
			case deliveries <- &amqpDelivery{taskIdentifier: taskReference.TaskID, serverDelivery: serverDelivery}:
			case <-executionContext.Done():
				_ = serverDelivery.Nack(false, true)
				return
			}
		}
	}()
	return deliveries, nil
}

// Close releases the broker connection and all consumer channels.
func (broker *AMQPBroker) Close() error {
	return broker.connection.Close()
}

type amqpDelivery struct {
	taskIdentifier string
	serverDelivery amqp.Delivery
}

// TaskID returns the task identifier carried by the message.
func (delivery *amqpDelivery) TaskID() string {
	return delivery.taskIdentifier
}

// Ack removes the message from the queue permanently.
func (delivery *amqpDelivery) Ack() error {
	return delivery.serverDelivery.Ack(false)
}

// Requeue rejects the message and asks the broker to redeliver it.
func (delivery *amqpDelivery) Requeue() error {
	return delivery.serverDelivery.Nack(false, true)
}
