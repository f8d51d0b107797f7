package eventsink

import (
	"context"
	"time"

	"github.com/IBM/sarama"
)

// KafkaSink 同步写入 Kafka，房间 ID 作为消息键
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaConfig 返回 sink 使用的 sarama 配置
func NewKafkaConfig(clientID string) *sarama.Config {
	conf := sarama.NewConfig()
	if clientID != "" {
		conf.ClientID = clientID
	}
	conf.Producer.Return.Successes = true
	conf.Producer.RequiredAcks = sarama.WaitForLocal
	conf.Producer.Retry.Max = 3
	conf.Producer.Timeout = 5 * time.Second
	conf.Producer.Partitioner = sarama.NewHashPartitioner
	return conf
}

// NewKafkaSink 连接 broker 创建 Sink
func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewKafkaConfig(cfg.ClientID))
	if err != nil {
		return nil, ErrConnect.WithError(err)
	}
	return NewKafkaSinkWithProducer(producer, cfg.Topic), nil
}

// NewKafkaSinkWithProducer 使用已有 producer 创建 Sink
func NewKafkaSinkWithProducer(p sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

func (s *KafkaSink) Publish(ctx context.Context, r Record) error {
	if err := ctx.Err(); err != nil {
		return ErrPublish.WithError(err)
	}
	body, err := r.encode()
	if err != nil {
		return ErrPublish.WithError(err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     s.topic,
		Key:       sarama.StringEncoder(r.Key()),
		Value:     sarama.ByteEncoder(body),
		Timestamp: r.Time,
		Headers: []sarama.RecordHeader{
			{Key: []byte("type"), Value: []byte(r.Type)},
		},
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		return ErrPublish.WithError(err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
