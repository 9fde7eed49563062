package events

import (
	"context"
	"errors"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Kilat-Parking/service-parking/pkg/domain"
	"github.com/Kilat-Parking/service-parking/pkg/events"
	"github.com/Kilat-Parking/service-parking/pkg/kafka"
)

// PaymentProcessor applies payment outcomes to bookings.
type PaymentProcessor interface {
	ConfirmPayment(ctx context.Context, bookingID uuid.UUID, paymentID string) error
	FailPayment(ctx context.Context, bookingID uuid.UUID) error
}

// PaymentEventConsumer listens to payment events and confirms or expires bookings.
type PaymentEventConsumer struct {
	consumer  *kafka.Consumer
	processor PaymentProcessor
	logger    *zap.Logger
}

// NewPaymentEventConsumer creates a new PaymentEventConsumer.
func NewPaymentEventConsumer(
	brokers []string,
	groupID string,
	processor PaymentProcessor,
	logger *zap.Logger,
) *PaymentEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, events.TopicPaymentEvents, logger)
	return &PaymentEventConsumer{
		consumer:  consumer,
		processor: processor,
		logger:    logger,
	}
}

// Start begins consuming payment events. This blocks until the context is cancelled.
func (c *PaymentEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.HandleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *PaymentEventConsumer) Close() error {
	return c.consumer.Close()
}

// HandleMessage processes one message from the payment topic. Only unexpected failures
// are returned; the consumer retries those on the same message before committing it.
func (c *PaymentEventConsumer) HandleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from payment topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case events.PaymentSucceeded:
		return c.handlePaymentSucceeded(ctx, cloudEvent)
	case events.PaymentFailed:
		return c.handlePaymentFailed(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled payment event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *PaymentEventConsumer) handlePaymentSucceeded(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt events.PaymentSucceededEvent
	if err := cloudEvent.ParseData(&evt); err != nil || evt.BookingID == uuid.Nil || evt.PaymentID == "" {
		c.logger.Error("failed to parse PaymentSucceededEvent data",
			zap.String("event_id", cloudEvent.ID),
			zap.Error(err),
		)
		return nil // Don't retry malformed data
	}

	c.logger.Info("processing payment succeeded event",
		zap.String("booking_id", evt.BookingID.String()),
		zap.String("payment_id", evt.PaymentID),
	)

	return c.settle(evt.BookingID, c.processor.ConfirmPayment(ctx, evt.BookingID, evt.PaymentID), "confirm")
}

func (c *PaymentEventConsumer) handlePaymentFailed(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt events.PaymentFailedEvent
	if err := cloudEvent.ParseData(&evt); err != nil || evt.BookingID == uuid.Nil {
		c.logger.Error("failed to parse PaymentFailedEvent data",
			zap.String("event_id", cloudEvent.ID),
			zap.Error(err),
		)
		return nil
	}

	c.logger.Info("processing payment failed event",
		zap.String("booking_id", evt.BookingID.String()),
		zap.String("reason", evt.Reason),
	)

	return c.settle(evt.BookingID, c.processor.FailPayment(ctx, evt.BookingID), "expire")
}

// settle logs the outcome of applying a payment event. Domain errors cannot succeed on
// a retry and are dropped.
func (c *PaymentEventConsumer) settle(bookingID uuid.UUID, err error, action string) error {
	if err == nil {
		c.logger.Info("payment event applied",
			zap.String("booking_id", bookingID.String()),
			zap.String("action", action),
		)
		return nil
	}

	var de *domain.Error
	if errors.As(err, &de) {
		c.logger.Warn("payment event rejected",
			zap.String("booking_id", bookingID.String()),
			zap.String("action", action),
			zap.Error(err),
		)
		return nil
	}

	c.logger.Error("failed to apply payment event",
		zap.String("booking_id", bookingID.String()),
		zap.String("action", action),
		zap.Error(err),
	)
	return err
}
