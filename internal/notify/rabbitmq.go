package notify

import (
	"context"
	"encoding/json"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sameermankotia/AptosAI/internal/config"
	xerrors "github.com/sameermankotia/AptosAI/internal/errors"
)

const defaultRabbitExchange = "aptosai.events"

// RabbitNotifier publishes events to a fanout exchange. Messages are routed
// by event kind so consumers can bind selectively.
type RabbitNotifier struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NewRabbitNotifier dials the broker and declares the exchange.
func NewRabbitNotifier(cfg config.RabbitMQNotify) (*RabbitNotifier, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "rabbitmq url must not be empty")
	}
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = defaultRabbitExchange
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeNotifyFailure, err, "dial rabbitmq")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, xerrors.Wrap(xerrors.CodeNotifyFailure, err, "open rabbitmq channel")
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, xerrors.Wrap(xerrors.CodeNotifyFailure, err, "declare rabbitmq exchange")
	}
	return &RabbitNotifier{conn: conn, ch: ch, exchange: exchange}, nil
}

func (*RabbitNotifier) Name() string { return "rabbitmq" }

// Notify publishes the event keyed by its kind.
func (n *RabbitNotifier) Notify(ctx context.Context, event Event) error {
	if n == nil || n.ch == nil {
		return xerrors.New(xerrors.CodeNotifyFailure, "rabbitmq notifier is not initialised")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeNotifyFailure, err, "encode event")
	}
	err = n.ch.PublishWithContext(ctx, n.exchange, event.Kind, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   event.ID,
		Body:        payload,
	})
	if err != nil {
		return xerrors.Wrap(xerrors.CodeNotifyFailure, err, "publish event to rabbitmq")
	}
	return nil
}

// Close tears down the channel and connection.
func (n *RabbitNotifier) Close() error {
	if n == nil {
		return nil
	}
	if n.ch != nil {
		n.ch.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
