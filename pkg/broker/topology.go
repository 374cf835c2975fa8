// Package broker owns the message-broker topology and the publish/consume
// wrapper used by every pipeline stage (§4.1 backpressure/retries, §4.4,
// §6). It never leaks the broker wire protocol into callers — they speak
// in apitypes.MessageType and []byte bodies.
package broker

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/imagevault/imagevault/pkg/apitypes"
)

const (
	ExchangeName      = "imageviewer.exchange"
	DLQName           = "dlq"
	MessageTypeHeader = "MessageType"
	RedeliveredHeader = "x-redelivered-from-dlq"
)

// SetupTopology declares the topic exchange, one durable queue per pipeline
// stage (TTL + DLX pointing at dlq), and the dlq queue itself (§6). It is
// idempotent: redeclaring an already-correct queue is a no-op, and AMQP
// itself surfaces a channel-level error if arguments mismatch an existing
// queue, which callers should treat as a startup configuration error.
func SetupTopology(ch *amqp.Channel, messageTTLMs int64) error {
	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeName, err)
	}

	if _, err := ch.QueueDeclare(DLQName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", DLQName, err)
	}
	if err := ch.QueueBind(DLQName, DLQName, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", DLQName, err)
	}

	for _, mt := range apitypes.StageQueues {
		name := string(mt)
		args := amqp.Table{
			"x-message-ttl":             messageTTLMs,
			"x-dead-letter-exchange":    ExchangeName,
			"x-dead-letter-routing-key": DLQName,
		}
		if _, err := ch.QueueDeclare(name, true, false, false, false, args); err != nil {
			return fmt.Errorf("declare queue %s: %w", name, err)
		}
		if err := ch.QueueBind(name, name, ExchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", name, err)
		}
	}
	return nil
}
