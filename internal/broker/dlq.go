package broker

import (
	"context"
	"log/slog"
	"time"

	"github.com/IliaW/page-capture/config"
	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/kafka-go"
)

type DeadLetterQueue interface {
	SendUrlToDLQ(value string, err error)
}

type DeadLetter struct {
	Value     string `json:"value"`
	Error     string `json:"error"`
	Service   string `json:"service"`
	Timestamp int64  `json:"timestamp"` // unix millis
}

type KafkaDLQClient struct {
	serviceName string
	kafkaWriter *kafka.Writer
}

func NewKafkaDLQ(serviceName string, cfg *config.ProducerConfig) *KafkaDLQClient {
	return &KafkaDLQClient{
		serviceName: serviceName,
		kafkaWriter: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Addr...),
			Topic:        cfg.DeadLetterTopicName,
			Balancer:     &kafka.LeastBytes{},
			MaxAttempts:  cfg.MaxAttempts,
			WriteTimeout: cfg.WriteTimeout,
			RequiredAcks: kafka.RequiredAcks(cfg.RequiredAsks),
		},
	}
}

// SendUrlToDLQ writes the failed task and its error to the dead letter topic.
// Write errors are logged only.
func (d *KafkaDLQClient) SendUrlToDLQ(value string, err error) {
	body, mErr := jsoniter.Marshal(newDeadLetter(d.serviceName, value, err))
	if mErr != nil {
		slog.Error("marshaling error.", slog.String("err", mErr.Error()))
		return
	}
	wErr := d.kafkaWriter.WriteMessages(context.Background(), kafka.Message{Value: body})
	if wErr != nil {
		slog.Error("failed to send message to dlq.", slog.String("value", value),
			slog.String("err", wErr.Error()))
		return
	}
	slog.Debug("message sent to dlq.", slog.String("value", value))
}

func (d *KafkaDLQClient) Close() {
	if err := d.kafkaWriter.Close(); err != nil {
		slog.Error("failed to close dlq writer.", slog.String("err", err.Error()))
	}
}

func newDeadLetter(service, value string, err error) *DeadLetter {
	dl := &DeadLetter{
		Value:     value,
		Service:   service,
		Timestamp: time.Now().UnixMilli(),
	}
	if err != nil {
		dl.Error = err.Error()
	}
	return dl
}
