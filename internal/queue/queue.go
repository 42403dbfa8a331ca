package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kiwi/graphsum/internal/util"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	retrySuffix = "_retry"
	dlqSuffix   = "_dlq"
	retryTTL    = int32(10000)
)

// Dial connects to RabbitMQ, retrying while the broker starts up.
func Dial(ctx context.Context, url string) (*amqp.Connection, error) {
	conn, err := util.RetryWithContext(ctx, 5, time.Second, func(context.Context) (*amqp.Connection, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn("[Queue] RabbitMQ not reachable yet", "err", err)
		}
		return conn, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// SetupQueues declares every work queue with a dead letter queue and a
// retry queue whose messages return to the work queue after a delay.
// Result queues are declared without retry handling.
func SetupQueues(ch *amqp.Channel, work []string, results ...string) error {
	for _, name := range work {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("QueueDeclare %s failed: %w", name, err)
		}
		if _, err := ch.QueueDeclare(name+dlqSuffix, true, false, false, false, nil); err != nil {
			return fmt.Errorf("QueueDeclare %s failed: %w", name+dlqSuffix, err)
		}
		_, err := ch.QueueDeclare(
			name+retrySuffix,
			true,
			false,
			false,
			false,
			amqp.Table{
				"x-message-ttl":             retryTTL,
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("QueueDeclare %s failed: %w", name+retrySuffix, err)
		}
	}
	for _, name := range results {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("QueueDeclare %s failed: %w", name, err)
		}
	}
	return nil
}

// Publisher sends a message body to a queue on the default exchange.
type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte, headers amqp.Table) error
}

// ChannelPublisher publishes persistent JSON messages on a channel.
type ChannelPublisher struct {
	ch *amqp.Channel
}

func NewChannelPublisher(ch *amqp.Channel) *ChannelPublisher {
	return &ChannelPublisher{ch: ch}
}

func (p *ChannelPublisher) Publish(ctx context.Context, queue string, body []byte, headers amqp.Table) error {
	return util.RetryErrWithContext(ctx, 3, 200*time.Millisecond, func(ctx context.Context) error {
		return p.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			Headers:      headers,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	})
}
