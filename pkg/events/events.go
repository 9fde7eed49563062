package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics.
const (
	TopicBookingEvents      = "booking.events"
	TopicPaymentEvents      = "payment.events"
	TopicNotificationEvents = "notification.events"
)

// Booking event types.
const (
	BookingCreated       = "booking.created"
	BookingConfirmed     = "booking.confirmed"
	BookingCancelled     = "booking.cancelled"
	BookingCheckedIn     = "booking.checked_in"
	BookingCompleted     = "booking.completed"
	BookingExpired       = "booking.expired"
	BookingNoShow        = "booking.no_show"
	BookingStatusChanged = "booking.status_changed"
)

// Payment event types consumed by the parking service.
const (
	PaymentSucceeded = "payment.succeeded"
	PaymentFailed    = "payment.failed"
)

// Notification event types.
const (
	NotificationEmailRequested = "notification.email_requested"
)

// BookingCreatedEvent is published after a booking is committed.
type BookingCreatedEvent struct {
	BookingID     uuid.UUID  `json:"booking_id"`
	BookingNumber string     `json:"booking_number"`
	UserID        uuid.UUID  `json:"user_id"`
	ParkingLotID  uuid.UUID  `json:"parking_lot_id"`
	ParkingSpotID *uuid.UUID `json:"parking_spot_id,omitempty"`
	Status        string     `json:"status"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	ExpectedCost  float64    `json:"expected_cost"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// BookingStatusChangedEvent is published after any lifecycle transition.
type BookingStatusChangedEvent struct {
	BookingID     uuid.UUID  `json:"booking_id"`
	BookingNumber string     `json:"booking_number"`
	UserID        uuid.UUID  `json:"user_id"`
	ParkingLotID  uuid.UUID  `json:"parking_lot_id"`
	ParkingSpotID *uuid.UUID `json:"parking_spot_id,omitempty"`
	FromStatus    string     `json:"from_status"`
	ToStatus      string     `json:"to_status"`
	ActualCost    *float64   `json:"actual_cost,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// PaymentSucceededEvent confirms a booking awaiting payment.
type PaymentSucceededEvent struct {
	PaymentID  string    `json:"payment_id"`
	BookingID  uuid.UUID `json:"booking_id"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PaymentFailedEvent expires a booking awaiting payment.
type PaymentFailedEvent struct {
	PaymentID  string    `json:"payment_id"`
	BookingID  uuid.UUID `json:"booking_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EmailRequestedEvent asks the notification service to deliver an email.
type EmailRequestedEvent struct {
	Recipient  string    `json:"recipient"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	OccurredAt time.Time `json:"occurred_at"`
}
