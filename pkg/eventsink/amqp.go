package eventsink

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RoutingKeyPrefix 路由键前缀，完整路由键为 roomcast.<event type>
const RoutingKeyPrefix = "roomcast."

// channel *amqp.Channel 中被使用的部分
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPSink 发布到 RabbitMQ topic exchange
type AMQPSink struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
}

// NewAMQPSink 连接并声明持久化 topic exchange
func NewAMQPSink(cfg AMQPConfig) (*AMQPSink, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, ErrConnect.WithError(err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, ErrConnect.WithError(err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, ErrConnect.WithError(err)
	}

	s := newAMQPSink(ch, cfg.Exchange)
	s.conn = conn
	return s, nil
}

func newAMQPSink(ch channel, exchange string) *AMQPSink {
	return &AMQPSink{ch: ch, exchange: exchange}
}

func (s *AMQPSink) Publish(ctx context.Context, r Record) error {
	body, err := r.encode()
	if err != nil {
		return ErrPublish.WithError(err)
	}

	err = s.ch.PublishWithContext(ctx, s.exchange, RoutingKeyPrefix+r.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    r.MessageID,
		Timestamp:    r.Time,
		Type:         r.Type,
		Body:         body,
	})
	if err != nil {
		return ErrPublish.WithError(err)
	}
	return nil
}

func (s *AMQPSink) Close() error {
	err := s.ch.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
