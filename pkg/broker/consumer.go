package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/containers/common/pkg/retry"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/common"
	"github.com/imagevault/imagevault/pkg/log"
)

const deliveryAttemptHeader = "x-delivery-attempt"

// fastRetry bounds the handler's in-process retry for a transient error
// before the delivery is requeued through the slower, persisted
// attempt-header mechanism below. Mirrors the teacher's
// retry.IfNecessary(ctx, fn, opts) wrapping around its own flaky network
// calls (pkg/mirror/mirror.go), here wrapping a handler's store/cache/
// broker I/O instead of an image copy.
var fastRetry = &retry.Options{MaxRetry: 2, Delay: 200 * time.Millisecond}

// Handler processes one message body and returns an error classified via
// common.Kind (§7). The consumer loop decides ack/retry/dlq from that
// classification — handlers never touch the channel directly.
type Handler func(ctx context.Context, body []byte) error

// Consumer drains one queue with cross-message parallelism bounded by
// poolSize, acknowledging a message only after its handler's aggregate
// mutation has succeeded (§4.1 "per-message acknowledgement").
type Consumer struct {
	ch        *amqp.Channel
	pub       Publisher
	log       log.PluggableLoggerInterface
	retryMax  int
	queueName string
	msgType   apitypes.MessageType
}

func NewConsumer(ch *amqp.Channel, pub Publisher, logger log.PluggableLoggerInterface, queueName string, msgType apitypes.MessageType, retryMax int) *Consumer {
	return &Consumer{ch: ch, pub: pub, log: logger, retryMax: retryMax, queueName: queueName, msgType: msgType}
}

// Run consumes poolSize deliveries concurrently until ctx is cancelled.
// Cancellation rejects the in-flight delivery with requeue so the next
// boot resumes the work (§5 "Cancellation and timeouts").
func (c *Consumer) Run(ctx context.Context, poolSize int, handler Handler) error {
	deliveries, err := c.ch.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queueName, err)
	}

	sem := make(chan struct{}, poolSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			sem <- struct{}{}
			go func(d amqp.Delivery) {
				defer func() { <-sem }()
				c.handle(ctx, d, handler)
			}(d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery, handler Handler) {
	if ctx.Err() != nil {
		_ = d.Reject(true)
		return
	}

	err := c.invoke(ctx, d, handler)
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			c.log.Error("ack %s failed: %s", c.queueName, ackErr.Error())
		}
		return
	}

	switch common.KindOf(err) {
	case common.KindCancelled:
		_ = d.Reject(true)
	case common.KindDataCorruption, common.KindValidation, common.KindNotFound, common.KindConflict:
		c.log.Error("%s: non-retryable error, acknowledging: %s", c.queueName, err.Error())
		_ = d.Ack(false)
	default:
		c.retryOrDeadLetter(ctx, d, err)
	}
}

// invoke runs handler once and, for a transient error only, hands it to
// retry.IfNecessary, which runs it again and repeats up to
// fastRetry.MaxRetry more times with a short delay while the library judges
// the error retryable (network- and syscall-level causes). Whatever error
// remains goes on to retryOrDeadLetter's requeue-and-count escalation. This
// absorbs a momentary store/cache/broker hiccup without paying the cost of
// a full requeue round-trip.
func (c *Consumer) invoke(ctx context.Context, d amqp.Delivery, handler Handler) error {
	err := handler(ctx, d.Body)
	if err == nil || common.KindOf(err) != common.KindTransientIO {
		return err
	}
	c.log.Warn("%s: transient error, retrying in-process: %s", c.queueName, err.Error())
	return retry.IfNecessary(ctx, func() error {
		return handler(ctx, d.Body)
	}, fastRetry)
}

func (c *Consumer) retryOrDeadLetter(ctx context.Context, d amqp.Delivery, cause error) {
	attempt := attemptFromHeaders(d.Headers)
	if attempt < c.retryMax {
		headers := cloneHeaders(d.Headers)
		headers[deliveryAttemptHeader] = attempt + 1
		headers[MessageTypeHeader] = string(c.msgType)
		if pubErr := c.republish(ctx, c.queueName, d.Body, headers); pubErr != nil {
			c.log.Error("%s: requeue republish failed: %s", c.queueName, pubErr.Error())
			_ = d.Reject(true)
			return
		}
		_ = d.Ack(false)
		return
	}

	c.log.Error("%s: retry cap exceeded, routing to dlq: %s", c.queueName, cause.Error())
	headers := cloneHeaders(d.Headers)
	headers[MessageTypeHeader] = string(c.msgType)
	headers["x-original-queue"] = c.queueName
	if pubErr := c.republish(ctx, DLQName, d.Body, headers); pubErr != nil {
		c.log.Error("%s: dlq publish failed: %s", c.queueName, pubErr.Error())
		_ = d.Reject(true)
		return
	}
	_ = d.Ack(false)
}

func (c *Consumer) republish(ctx context.Context, routingKey string, body []byte, headers amqp.Table) error {
	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		Headers:      headers,
		DeliveryMode: amqp.Persistent,
	}
	if err := c.ch.PublishWithContext(ctx, ExchangeName, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("republish to %s: %w", routingKey, err)
	}
	return nil
}

func attemptFromHeaders(h amqp.Table) int {
	if h == nil {
		return 0
	}
	switch v := h[deliveryAttemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func cloneHeaders(h amqp.Table) amqp.Table {
	out := amqp.Table{}
	for k, v := range h {
		out[k] = v
	}
	return out
}

// DecodeBody is a small helper so handlers don't each re-implement the
// json.Unmarshal-plus-wrap boilerplate.
func DecodeBody[T any](body []byte) (T, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return v, common.NewError(common.KindValidation, "DecodeBody", err)
	}
	return v, nil
}
