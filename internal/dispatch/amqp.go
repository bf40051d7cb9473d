// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/noticewala/notice-engine/pkg/types"
)

// defaultExchange is the topic exchange match events publish to.
const defaultExchange = "notice.match"

// matchPayload is the wire format of one match event.
type matchPayload struct {
	Event        types.MatchEvent   `json:"event"`
	Announcement types.Announcement `json:"announcement"`
}

// AMQPEmitter publishes match events to a RabbitMQ topic exchange. The
// routing key is "match.<category>" (first category, or "uncategorized"), so
// consumers can bind to the slices they care about.
type AMQPEmitter struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewAMQPEmitter connects to the broker and declares the exchange.
func NewAMQPEmitter(cfg types.DispatchConfig) (*AMQPEmitter, error) {
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = defaultExchange
	}

	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to AMQP broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening AMQP channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declaring exchange %s: %w", exchange, err)
	}

	return &AMQPEmitter{conn: conn, channel: ch, exchange: exchange}, nil
}

// Emit publishes one match event.
func (e *AMQPEmitter) Emit(ctx context.Context, event types.MatchEvent, ann types.Announcement) error {
	body, err := json.Marshal(matchPayload{Event: event, Announcement: ann})
	if err != nil {
		return fmt.Errorf("marshaling match event %s: %w", event.ID, err)
	}

	err = e.channel.PublishWithContext(ctx, e.exchange, routingKey(ann), false, false,
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   event.ID,
			Timestamp:   event.MatchedAt,
			Body:        body,
		})
	if err != nil {
		return fmt.Errorf("publishing match event %s: %w", event.ID, err)
	}
	return nil
}

// Close releases the channel and connection.
func (e *AMQPEmitter) Close() error {
	if err := e.channel.Close(); err != nil {
		e.conn.Close()
		return err
	}
	return e.conn.Close()
}

func routingKey(ann types.Announcement) string {
	if len(ann.Categories) > 0 {
		return "match." + ann.Categories[0]
	}
	return "match.uncategorized"
}
