// Package notification hands user-facing messages to a delivery channel.
package notification

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Kilat-Parking/service-parking/pkg/events"
	"github.com/Kilat-Parking/service-parking/pkg/kafka"
)

// Drivers selectable through NOTIFICATION_DRIVER.
const (
	DriverKafka = "kafka"
	DriverLog   = "log"
)

// Publisher publishes CloudEvents to a topic.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// KafkaNotifier publishes email requests for the notification service to deliver.
type KafkaNotifier struct {
	publisher Publisher
	source    string
}

// NewKafkaNotifier creates a new KafkaNotifier.
func NewKafkaNotifier(publisher Publisher, source string) *KafkaNotifier {
	return &KafkaNotifier{publisher: publisher, source: source}
}

// Notify publishes an email request for recipient.
func (n *KafkaNotifier) Notify(ctx context.Context, recipient, subject, body string) error {
	evt := events.EmailRequestedEvent{
		Recipient:  recipient,
		Subject:    subject,
		Body:       body,
		OccurredAt: time.Now().UTC(),
	}
	cloudEvent, err := kafka.NewCloudEvent(n.source, events.NotificationEmailRequested, evt)
	if err != nil {
		return fmt.Errorf("failed to build notification event: %w", err)
	}
	return n.publisher.PublishEvent(ctx, events.TopicNotificationEvents, cloudEvent.WithSubject(recipient))
}

// LogNotifier writes notifications to the log instead of delivering them.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the message.
func (n *LogNotifier) Notify(_ context.Context, recipient, subject, body string) error {
	n.logger.Info("notification",
		zap.String("recipient", recipient),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}
