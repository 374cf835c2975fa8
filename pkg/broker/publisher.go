package broker

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/imagevault/imagevault/pkg/apitypes"
)

// Publisher publishes pipeline messages onto the topic exchange, routed by
// queue name (§6 "Queue names equal routing keys").
type Publisher interface {
	Publish(ctx context.Context, msgType apitypes.MessageType, body any) error
}

type publisher struct {
	ch *amqp.Channel
}

func NewPublisher(ch *amqp.Channel) Publisher {
	return &publisher{ch: ch}
}

func (p *publisher) Publish(ctx context.Context, msgType apitypes.MessageType, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", msgType, err)
	}
	msg := amqp.Publishing{
		ContentType: "application/json",
		Body:        data,
		Headers: amqp.Table{
			MessageTypeHeader: string(msgType),
		},
		DeliveryMode: amqp.Persistent,
	}
	if err := p.ch.PublishWithContext(ctx, ExchangeName, string(msgType), false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", msgType, err)
	}
	return nil
}
