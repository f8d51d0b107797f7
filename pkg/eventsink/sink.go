package eventsink

import (
	"context"

	"github.com/tokmz/roomcast/pkg/logger"
)

// Sink 事件导出目标
type Sink interface {
	Publish(ctx context.Context, r Record) error
	Close() error
}

// Driver 导出驱动
type Driver string

const (
	DriverNone  Driver = "none"
	DriverLog   Driver = "log"
	DriverKafka Driver = "kafka"
	DriverAMQP  Driver = "amqp"
)

// Config 事件导出配置
type Config struct {
	Driver Driver      `mapstructure:"driver"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
	AMQP   AMQPConfig  `mapstructure:"amqp"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	ClientID string   `mapstructure:"client_id"`
}

// AMQPConfig RabbitMQ 配置
type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// Validate 验证配置
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverNone, DriverLog, "":
	case DriverKafka:
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			return ErrInvalidConfig.WithMessage("eventsink: kafka requires brokers and topic")
		}
	case DriverAMQP:
		if c.AMQP.URL == "" || c.AMQP.Exchange == "" {
			return ErrInvalidConfig.WithMessage("eventsink: amqp requires url and exchange")
		}
	default:
		return ErrInvalidConfig.WithMessage("eventsink: unknown driver " + string(c.Driver))
	}
	return nil
}

// New 按配置创建 Sink；driver 为 none 时返回 nil
func New(cfg Config, log logger.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case DriverLog:
		return NewLogSink(log), nil
	case DriverKafka:
		return NewKafkaSink(cfg.Kafka)
	case DriverAMQP:
		return NewAMQPSink(cfg.AMQP)
	}
	return nil, nil
}
