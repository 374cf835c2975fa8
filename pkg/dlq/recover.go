// Package dlq implements the dead-letter recovery routine of §4.4: drain
// the dlq queue and republish each message to the original queue its
// MessageType header names, so TTL expiry and exceeded-retry routing never
// lose work permanently. Modeled on the teacher's pkg/batch retry loop
// (read-classify-act over a bounded queue of work items) but walking a
// broker queue instead of an in-memory slice.
package dlq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/broker"
	"github.com/imagevault/imagevault/pkg/log"
)

// Result tallies one recovery pass (§6 "DLQ recover → counts per original
// queue").
type Result struct {
	RepublishedByQueue map[string]int
	Invalid            int
}

var validQueues = buildValidQueues()

func buildValidQueues() map[string]bool {
	out := make(map[string]bool, len(apitypes.StageQueues))
	for _, q := range apitypes.StageQueues {
		out[string(q)] = true
	}
	return out
}

// Recoverer drains the dlq queue against a single AMQP channel.
type Recoverer struct {
	ch  *amqp.Channel
	log log.PluggableLoggerInterface
}

func NewRecoverer(ch *amqp.Channel, logger log.PluggableLoggerInterface) *Recoverer {
	return &Recoverer{ch: ch, log: logger}
}

// Run drains every message currently sitting in dlq, in one pass: the pass
// inspects the queue depth once up front and performs exactly that many
// Gets. A message that cannot be republished (invalid header, failed
// republish) is held unacknowledged until the pass ends, so later Gets
// move past it, and is then requeued: it is seen at most once this pass
// and left on dlq for the next pass rather than looped on (§4.4 "left in
// place and counted").
func (r *Recoverer) Run(ctx context.Context) (Result, error) {
	res := Result{RepublishedByQueue: map[string]int{}}

	q, err := r.ch.QueueInspect(broker.DLQName)
	if err != nil {
		return res, fmt.Errorf("inspect %s: %w", broker.DLQName, err)
	}

	var leftInPlace []amqp.Delivery
	for i := 0; i < q.Messages; i++ {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		d, ok, err := r.ch.Get(broker.DLQName, false)
		if err != nil {
			return res, fmt.Errorf("get from %s: %w", broker.DLQName, err)
		}
		if !ok {
			break
		}

		queue, valid := originalQueue(d.Headers)
		if !valid {
			r.log.Warn("dlq: message missing valid MessageType header, leaving in place")
			leftInPlace = append(leftInPlace, d)
			res.Invalid++
			continue
		}

		if err := r.republish(ctx, queue, d); err != nil {
			r.log.Error("dlq: republish to %s failed: %s", queue, err.Error())
			leftInPlace = append(leftInPlace, d)
			continue
		}
		if err := d.Ack(false); err != nil {
			return res, fmt.Errorf("ack recovered dlq message: %w", err)
		}
		res.RepublishedByQueue[queue]++
	}
	for _, d := range leftInPlace {
		if err := d.Reject(true); err != nil {
			return res, fmt.Errorf("requeue dlq message: %w", err)
		}
	}
	return res, nil
}

// originalQueue reads the MessageType header and reports whether it names
// one of the five known stage queues (§4.4 "table lookup").
func originalQueue(headers amqp.Table) (string, bool) {
	if headers == nil {
		return "", false
	}
	mt, ok := headers[broker.MessageTypeHeader].(string)
	if !ok || !validQueues[mt] {
		return "", false
	}
	return mt, true
}

func (r *Recoverer) republish(ctx context.Context, queue string, d amqp.Delivery) error {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[broker.RedeliveredHeader] = true

	msg := amqp.Publishing{
		ContentType:  d.ContentType,
		Body:         d.Body,
		Headers:      headers,
		DeliveryMode: amqp.Persistent,
	}
	if err := r.ch.PublishWithContext(ctx, broker.ExchangeName, queue, false, false, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	return nil
}
