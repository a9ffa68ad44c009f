package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-labeling/internal/logger"
)

// StatusEvent is the message published on every order or print job
// status transition. Consumers key on subject_type to route.
type StatusEvent struct {
	SubjectType string                 `json:"subject_type"`
	SubjectID   string                 `json:"subject_id"`
	NewStatus   string                 `json:"new_status"`
	Timestamp   time.Time              `json:"timestamp"`
	Context     map[string]interface{} `json:"context,omitempty"`
}

type Producer struct {
	writer *kafka.Writer
	log    *logger.Logger
}

func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
		log: log,
	}
}

func (p *Producer) PublishOrderStatus(orderID int64, status string, ctx map[string]interface{}) error {
	return p.publish("order", fmt.Sprintf("%d", orderID), status, ctx)
}

func (p *Producer) PublishJobStatus(jobID, status string, ctx map[string]interface{}) error {
	return p.publish("print_job", jobID, status, ctx)
}

func (p *Producer) publish(subjectType, subjectID, status string, evCtx map[string]interface{}) error {
	event := StatusEvent{
		SubjectType: subjectType,
		SubjectID:   subjectID,
		NewStatus:   status,
		Timestamp:   time.Now().UTC(),
		Context:     evCtx,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(subjectType + ":" + subjectID),
		Value: payload,
	})
	if err != nil {
		p.log.LogKafka("PUBLISH_FAILED", subjectType+":"+subjectID, err.Error())
		return fmt.Errorf("write status event: %w", err)
	}

	p.log.LogKafka("PUBLISHED", subjectType+":"+subjectID, "status "+status)
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// NoopNotifier satisfies the notifier interfaces when Kafka is disabled.
type NoopNotifier struct{}

func (NoopNotifier) PublishOrderStatus(int64, string, map[string]interface{}) error { return nil }
func (NoopNotifier) PublishJobStatus(string, string, map[string]interface{}) error  { return nil }
