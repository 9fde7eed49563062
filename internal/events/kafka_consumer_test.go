package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kilat-Parking/service-parking/pkg/domain"
	"github.com/Kilat-Parking/service-parking/pkg/events"
	"github.com/Kilat-Parking/service-parking/pkg/kafka"
)

type fakeProcessor struct {
	confirmed []string
	failed    []uuid.UUID
	err       error
}

func (p *fakeProcessor) ConfirmPayment(_ context.Context, bookingID uuid.UUID, paymentID string) error {
	p.confirmed = append(p.confirmed, bookingID.String()+"/"+paymentID)
	return p.err
}

func (p *fakeProcessor) FailPayment(_ context.Context, bookingID uuid.UUID) error {
	p.failed = append(p.failed, bookingID)
	return p.err
}

func message(t *testing.T, eventType string, data interface{}) kafkago.Message {
	t.Helper()
	ce, err := kafka.NewCloudEvent("service-payment", eventType, data)
	require.NoError(t, err)
	value, err := json.Marshal(ce)
	require.NoError(t, err)
	return kafkago.Message{Value: value}
}

func newTestConsumer(p PaymentProcessor) *PaymentEventConsumer {
	return &PaymentEventConsumer{processor: p, logger: zap.NewNop()}
}

func TestHandleMessage_Dispatch(t *testing.T) {
	bookingID := uuid.New()

	tests := []struct {
		name          string
		msg           func(t *testing.T) kafkago.Message
		wantConfirmed int
		wantFailed    int
	}{
		{
			name: "payment succeeded confirms",
			msg: func(t *testing.T) kafkago.Message {
				return message(t, events.PaymentSucceeded, events.PaymentSucceededEvent{PaymentID: "pay_1", BookingID: bookingID, Amount: 20, OccurredAt: time.Now()})
			},
			wantConfirmed: 1,
		},
		{
			name: "payment failed expires",
			msg: func(t *testing.T) kafkago.Message {
				return message(t, events.PaymentFailed, events.PaymentFailedEvent{PaymentID: "pay_2", BookingID: bookingID, Reason: "card declined"})
			},
			wantFailed: 1,
		},
		{
			name: "unrelated type is ignored",
			msg: func(t *testing.T) kafkago.Message {
				return message(t, "payment.refunded", map[string]string{"booking_id": bookingID.String()})
			},
		},
		{
			name: "malformed envelope is dropped",
			msg: func(t *testing.T) kafkago.Message {
				return kafkago.Message{Value: []byte("{not json")}
			},
		},
		{
			name: "missing payment id is dropped",
			msg: func(t *testing.T) kafkago.Message {
				return message(t, events.PaymentSucceeded, events.PaymentSucceededEvent{BookingID: bookingID})
			},
		},
		{
			name: "missing booking id is dropped",
			msg: func(t *testing.T) kafkago.Message {
				return message(t, events.PaymentFailed, events.PaymentFailedEvent{Reason: "timeout"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProcessor{}
			err := newTestConsumer(p).HandleMessage(context.Background(), tt.msg(t))
			require.NoError(t, err)
			assert.Len(t, p.confirmed, tt.wantConfirmed)
			assert.Len(t, p.failed, tt.wantFailed)
		})
	}
}

func TestHandleMessage_ErrorHandling(t *testing.T) {
	bookingID := uuid.New()
	msg := message(t, events.PaymentSucceeded, events.PaymentSucceededEvent{PaymentID: "pay_3", BookingID: bookingID})

	p := &fakeProcessor{err: domain.NewInvalidStateError("cancelled", "confirmed")}
	assert.NoError(t, newTestConsumer(p).HandleMessage(context.Background(), msg), "domain rejections are not retried")

	p = &fakeProcessor{err: domain.NewNotFoundError("Booking", bookingID.String())}
	assert.NoError(t, newTestConsumer(p).HandleMessage(context.Background(), msg))

	dbDown := errors.New("connection refused")
	p = &fakeProcessor{err: dbDown}
	err := newTestConsumer(p).HandleMessage(context.Background(), msg)
	assert.ErrorIs(t, err, dbDown)
	assert.Equal(t, []string{bookingID.String() + "/pay_3"}, p.confirmed)
}
