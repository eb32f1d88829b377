package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Sink publishes events
type Sink interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// MessageWriter is the part of kafka.Writer used by KafkaSink
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events as JSON messages keyed by subject
type KafkaSink struct {
	writer MessageWriter
	logger *logrus.Logger
}

// NewKafkaWriter creates a writer for the events topic
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaSink creates a new kafka sink
func NewKafkaSink(writer MessageWriter, logger *logrus.Logger) *KafkaSink {
	return &KafkaSink{writer: writer, logger: logger}
}

// Publish writes one event
func (s *KafkaSink) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.SubjectID),
		Value: value,
		Time:  time.UnixMilli(event.Time),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
			{Key: "kind", Value: []byte(event.Kind)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write event %s: %w", event.ID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"component": "notify",
		"event_id":  event.ID,
		"subject":   event.SubjectID,
		"kind":      event.Kind,
	}).Debug("Published trip event")
	return nil
}

// Close flushes and closes the writer
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// LogSink writes events to the log, used when no brokers are configured
type LogSink struct {
	logger *logrus.Logger
}

// NewLogSink creates a new log sink
func NewLogSink(logger *logrus.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Publish logs one event
func (s *LogSink) Publish(_ context.Context, event Event) error {
	s.logger.WithFields(logrus.Fields{
		"component": "notify",
		"event_id":  event.ID,
		"subject":   event.SubjectID,
		"kind":      event.Kind,
		"time":      event.Time,
	}).Info(event.Text)
	return nil
}

func (s *LogSink) Close() error {
	return nil
}
