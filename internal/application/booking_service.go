package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Parking/service-parking/internal/domain/access"
	bookingDomain "github.com/Kilat-Parking/service-parking/internal/domain/booking"
	"github.com/Kilat-Parking/service-parking/internal/domain/parking"
	"github.com/Kilat-Parking/service-parking/internal/domain/store"
	"github.com/Kilat-Parking/service-parking/pkg/cache"
	"github.com/Kilat-Parking/service-parking/pkg/domain"
	"github.com/Kilat-Parking/service-parking/pkg/events"
	"github.com/Kilat-Parking/service-parking/pkg/kafka"
)

const eventSource = "service-parking"

// exportLimit caps the rows of a single booking export.
const exportLimit = 10000

// EventPublisher publishes CloudEvents to a topic.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// Notifier delivers a message to a user. Delivery failures never affect the booking.
type Notifier interface {
	Notify(ctx context.Context, recipient, subject, body string) error
}

// BookingConfig controls how bookings are created and expired.
type BookingConfig struct {
	// RequirePayment creates bookings in pending_payment until a payment event confirms them.
	RequirePayment bool
	// PaymentTimeout is how long a booking may wait for payment before it expires.
	PaymentTimeout time.Duration
}

// CreateBookingRequest holds the data needed to create a new booking.
type CreateBookingRequest struct {
	ParkingLotID  uuid.UUID  `json:"parking_lot_id" binding:"required"`
	ParkingSpotID *uuid.UUID `json:"parking_spot_id"`
	VehicleID     *uuid.UUID `json:"vehicle_id"`
	StartTime     time.Time  `json:"start_time" binding:"required"`
	EndTime       time.Time  `json:"end_time" binding:"required"`
}

// UpdateBookingStatusRequest is the admin override payload.
type UpdateBookingStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// BookingListQuery narrows the admin booking listing.
type BookingListQuery struct {
	UserID       *uuid.UUID
	ParkingLotID *uuid.UUID
	Status       string
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID                 uuid.UUID  `json:"id"`
	BookingNumber      string     `json:"booking_number"`
	UserID             uuid.UUID  `json:"user_id"`
	ParkingLotID       uuid.UUID  `json:"parking_lot_id"`
	ParkingSpotID      *uuid.UUID `json:"parking_spot_id,omitempty"`
	VehicleID          *uuid.UUID `json:"vehicle_id,omitempty"`
	Status             string     `json:"status"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            time.Time  `json:"end_time"`
	ExpectedCost       float64    `json:"expected_cost"`
	ActualCost         *float64   `json:"actual_cost,omitempty"`
	Currency           string     `json:"currency"`
	ActualCheckInTime  *time.Time `json:"actual_check_in_time,omitempty"`
	ActualCheckOutTime *time.Time `json:"actual_check_out_time,omitempty"`
	PaymentID          *string    `json:"payment_id,omitempty"`
	Version            int64      `json:"version"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// BookingStatsDTO holds aggregate booking statistics.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// BookingService is the application service orchestrating booking use cases.
type BookingService struct {
	uow       store.UnitOfWork
	repos     store.Repositories
	publisher EventPublisher
	notifier  Notifier
	cache     cache.Cache
	cfg       BookingConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	uow store.UnitOfWork,
	repos store.Repositories,
	publisher EventPublisher,
	notifier Notifier,
	lotCache cache.Cache,
	cfg BookingConfig,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		uow:       uow,
		repos:     repos,
		publisher: publisher,
		notifier:  notifier,
		cache:     lotCache,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateBooking reserves a spot in a lot for the caller.
func (s *BookingService) CreateBooking(ctx context.Context, principal access.Principal, req CreateBookingRequest) (*BookingDTO, error) {
	if err := access.Authorize(principal, access.Unowned(access.ResourceBooking), access.ActionCreate); err != nil {
		return nil, err
	}
	if err := bookingDomain.ValidateWindow(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	initial := bookingDomain.StatusConfirmed
	if s.cfg.RequirePayment {
		initial = bookingDomain.StatusPendingPayment
	}

	var bk *bookingDomain.Booking
	err := s.uow.Do(ctx, func(ctx context.Context, repos store.Repositories) error {
		lot, err := repos.Lots.FindByIDForUpdate(ctx, req.ParkingLotID)
		if err != nil {
			return err
		}
		if !lot.Status().AcceptsBookings() {
			return domain.NewStateError(fmt.Sprintf("parking lot is %s", lot.Status()))
		}
		if lot.Status() == parking.LotFull && req.ParkingSpotID == nil {
			return domain.NewStateError("no spot available: parking lot is full, choose a specific spot")
		}

		if req.VehicleID != nil {
			v, err := repos.Vehicles.FindByID(ctx, *req.VehicleID)
			if err != nil {
				return err
			}
			if !v.IsOwnedBy(principal.ID) {
				return domain.NewForbiddenError("vehicle does not belong to you")
			}
		}

		spot, err := allocateSpot(ctx, repos, lot, req.ParkingSpotID, req.StartTime, req.EndTime)
		if err != nil {
			return err
		}

		cost, err := bookingDomain.ExpectedCost(req.StartTime, req.EndTime, lot.HourlyRate())
		if err != nil {
			return err
		}

		spotID := spot.ID()
		bk, err = bookingDomain.NewBooking(principal.ID, lot.ID(), &spotID, req.VehicleID, req.StartTime, req.EndTime, cost, initial)
		if err != nil {
			return err
		}
		if err := repos.Bookings.Save(ctx, bk); err != nil {
			return err
		}
		return syncBookingSpot(ctx, repos, lot, bk, "")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		zap.String("booking_id", bk.ID().String()),
		zap.String("booking_number", bk.BookingNumber()),
		zap.String("status", string(bk.Status())),
	)
	s.invalidateLot(ctx, bk.ParkingLotID())
	s.publishBookingCreated(ctx, bk)

	result := toBookingDTO(bk)
	return &result, nil
}

// GetBooking retrieves a booking visible to the caller.
func (s *BookingService) GetBooking(ctx context.Context, principal access.Principal, id uuid.UUID) (*BookingDTO, error) {
	bk, err := s.repos.Bookings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(principal, access.Owned(access.ResourceBooking, bk.UserID()), access.ActionRead); err != nil {
		return nil, err
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// ListMyBookings returns the caller's bookings. status and upcoming are optional.
func (s *BookingService) ListMyBookings(ctx context.Context, principal access.Principal, status string, upcoming *bool, page, limit int) ([]BookingDTO, int64, error) {
	if err := access.Authorize(principal, access.Owned(access.ResourceBooking, principal.ID), access.ActionList); err != nil {
		return nil, 0, err
	}
	filter := bookingDomain.ListFilter{UserID: &principal.ID, Upcoming: upcoming, Now: s.now()}
	if status != "" {
		st, err := parseStatusFilter(status)
		if err != nil {
			return nil, 0, err
		}
		filter.Status = &st
	}
	return s.list(ctx, filter, page, limit)
}

// ListAllBookings returns a paginated list of all bookings (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, principal access.Principal, query BookingListQuery, page, limit int) ([]BookingDTO, int64, error) {
	if err := access.Authorize(principal, access.Unowned(access.ResourceBooking), access.ActionList); err != nil {
		return nil, 0, err
	}
	filter, err := s.adminFilter(query)
	if err != nil {
		return nil, 0, err
	}
	return s.list(ctx, filter, page, limit)
}

// ExportBookings returns every booking matching query for the spreadsheet export (admin).
func (s *BookingService) ExportBookings(ctx context.Context, principal access.Principal, query BookingListQuery) ([]BookingDTO, error) {
	if err := access.Authorize(principal, access.Unowned(access.ResourceBooking), access.ActionExport); err != nil {
		return nil, err
	}
	filter, err := s.adminFilter(query)
	if err != nil {
		return nil, err
	}
	dtos, _, err := s.list(ctx, filter, 1, exportLimit)
	return dtos, err
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context, principal access.Principal) (*BookingStatsDTO, error) {
	if err := access.Authorize(principal, access.Unowned(access.ResourceBooking), access.ActionList); err != nil {
		return nil, err
	}
	counts, err := s.repos.Bookings.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	return &BookingStatsDTO{
		TotalBookings: total,
		ByStatus:      counts,
	}, nil
}

// CancelBooking cancels a confirmed booking at least an hour before it starts.
func (s *BookingService) CancelBooking(ctx context.Context, principal access.Principal, id uuid.UUID) (*BookingDTO, error) {
	now := s.now()
	return s.transitionAndPublish(ctx, id, events.BookingCancelled, func(bk *bookingDomain.Booking, _ *parking.Lot) (bool, error) {
		if err := access.Authorize(principal, access.Owned(access.ResourceBooking, bk.UserID()), access.ActionCancel); err != nil {
			return false, err
		}
		return true, bk.Cancel(now)
	})
}

// CheckIn records the arrival of the vehicle and occupies the spot.
func (s *BookingService) CheckIn(ctx context.Context, principal access.Principal, id uuid.UUID) (*BookingDTO, error) {
	now := s.now()
	return s.transitionAndPublish(ctx, id, events.BookingCheckedIn, func(bk *bookingDomain.Booking, _ *parking.Lot) (bool, error) {
		if err := access.Authorize(principal, access.Owned(access.ResourceBooking, bk.UserID()), access.ActionCheckIn); err != nil {
			return false, err
		}
		return true, bk.CheckIn(now)
	})
}

// CheckOut records the departure, bills the stay and releases the spot. Checking out a
// completed booking returns it unchanged.
func (s *BookingService) CheckOut(ctx context.Context, principal access.Principal, id uuid.UUID) (*BookingDTO, error) {
	now := s.now()
	bk, from, changed, err := s.transition(ctx, id, func(bk *bookingDomain.Booking, lot *parking.Lot) (bool, error) {
		if err := access.Authorize(principal, access.Owned(access.ResourceBooking, bk.UserID()), access.ActionCheckOut); err != nil {
			return false, err
		}
		return bk.CheckOut(now, lot.HourlyRate())
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.afterTransition(ctx, bk, from, events.BookingCompleted)
		s.sendExitSummary(ctx, bk)
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// OverrideStatus forces a booking into a new status (admin).
func (s *BookingService) OverrideStatus(ctx context.Context, principal access.Principal, id uuid.UUID, status string) (*BookingDTO, error) {
	target, err := bookingDomain.ParseBookingStatus(status)
	if err != nil {
		return nil, domain.NewFieldValidationError(domain.FieldError{Field: "status", Message: err.Error()})
	}

	now := s.now()
	return s.transitionAndPublish(ctx, id, events.BookingStatusChanged, func(bk *bookingDomain.Booking, lot *parking.Lot) (bool, error) {
		if err := access.Authorize(principal, access.Owned(access.ResourceBooking, bk.UserID()), access.ActionOverrideStatus); err != nil {
			return false, err
		}
		return true, bk.OverrideStatus(target, now, lot.HourlyRate())
	})
}

// ConfirmPayment confirms a booking awaiting payment. Redelivered confirmations for the same
// payment are ignored.
func (s *BookingService) ConfirmPayment(ctx context.Context, bookingID uuid.UUID, paymentID string) error {
	now := s.now()
	_, err := s.transitionAndPublish(ctx, bookingID, events.BookingConfirmed, func(bk *bookingDomain.Booking, _ *parking.Lot) (bool, error) {
		if bk.Status() == bookingDomain.StatusConfirmed && bk.PaymentID() != nil && *bk.PaymentID() == paymentID {
			return false, nil
		}
		return true, bk.ConfirmPayment(paymentID, now)
	})
	return err
}

// FailPayment expires a booking whose payment failed. Bookings no longer awaiting payment are left alone.
func (s *BookingService) FailPayment(ctx context.Context, bookingID uuid.UUID) error {
	now := s.now()
	_, err := s.transitionAndPublish(ctx, bookingID, events.BookingExpired, func(bk *bookingDomain.Booking, _ *parking.Lot) (bool, error) {
		if bk.Status() != bookingDomain.StatusPendingPayment {
			s.logger.Warn("ignoring payment failure",
				zap.String("booking_id", bk.ID().String()),
				zap.String("status", string(bk.Status())),
			)
			return false, nil
		}
		return true, bk.Expire(now)
	})
	return err
}

// ExpireUnpaid expires a pending_payment booking created before cutoff. It reports whether
// the booking changed.
func (s *BookingService) ExpireUnpaid(ctx context.Context, bookingID uuid.UUID, cutoff, now time.Time) (bool, error) {
	bk, from, changed, err := s.transition(ctx, bookingID, func(bk *bookingDomain.Booking, _ *parking.Lot) (bool, error) {
		if bk.Status() != bookingDomain.StatusPendingPayment || !bk.CreatedAt().Before(cutoff) {
			return false, nil
		}
		return true, bk.Expire(now)
	})
	if err != nil || !changed {
		return false, err
	}
	s.afterTransition(ctx, bk, from, events.BookingExpired)
	return true, nil
}

// MarkNoShow closes a confirmed booking whose window ended before now without a check-in.
func (s *BookingService) MarkNoShow(ctx context.Context, bookingID uuid.UUID, now time.Time) (bool, error) {
	bk, from, changed, err := s.transition(ctx, bookingID, func(bk *bookingDomain.Booking, _ *parking.Lot) (bool, error) {
		if bk.Status() != bookingDomain.StatusConfirmed || !bk.EndTime().Before(now) {
			return false, nil
		}
		return true, bk.MarkNoShow(now)
	})
	if err != nil || !changed {
		return false, err
	}
	s.afterTransition(ctx, bk, from, events.BookingNoShow)
	return true, nil
}

// --- Helpers ---

type transitionFunc func(bk *bookingDomain.Booking, lot *parking.Lot) (bool, error)

// transition locks the booking and its lot, applies fn and, when fn reports a change,
// persists the booking and the spot side effects. Locks are taken booking, lot, spot.
func (s *BookingService) transition(ctx context.Context, id uuid.UUID, fn transitionFunc) (*bookingDomain.Booking, bookingDomain.BookingStatus, bool, error) {
	var (
		bk      *bookingDomain.Booking
		from    bookingDomain.BookingStatus
		changed bool
	)
	err := s.uow.Do(ctx, func(ctx context.Context, repos store.Repositories) error {
		var err error
		bk, err = repos.Bookings.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		lot, err := repos.Lots.FindByIDForUpdate(ctx, bk.ParkingLotID())
		if err != nil {
			return err
		}

		from = bk.Status()
		changed, err = fn(bk, lot)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		bk.IncrementVersion()
		if err := repos.Bookings.Update(ctx, bk); err != nil {
			return err
		}
		return syncBookingSpot(ctx, repos, lot, bk, from)
	})
	if err != nil {
		return nil, "", false, err
	}
	return bk, from, changed, nil
}

func (s *BookingService) transitionAndPublish(ctx context.Context, id uuid.UUID, eventType string, fn transitionFunc) (*BookingDTO, error) {
	bk, from, changed, err := s.transition(ctx, id, fn)
	if err != nil {
		return nil, err
	}
	if changed {
		s.afterTransition(ctx, bk, from, eventType)
	}
	result := toBookingDTO(bk)
	return &result, nil
}

func (s *BookingService) afterTransition(ctx context.Context, bk *bookingDomain.Booking, from bookingDomain.BookingStatus, eventType string) {
	s.logger.Info("booking status changed",
		zap.String("booking_id", bk.ID().String()),
		zap.String("from", string(from)),
		zap.String("to", string(bk.Status())),
	)
	s.invalidateLot(ctx, bk.ParkingLotID())

	evt := events.BookingStatusChangedEvent{
		BookingID:     bk.ID(),
		BookingNumber: bk.BookingNumber(),
		UserID:        bk.UserID(),
		ParkingLotID:  bk.ParkingLotID(),
		ParkingSpotID: bk.ParkingSpotID(),
		FromStatus:    string(from),
		ToStatus:      string(bk.Status()),
		ActualCost:    bk.ActualCost(),
		OccurredAt:    s.now(),
	}
	s.publishEvent(ctx, eventType, bk.ID(), evt)
}

func (s *BookingService) list(ctx context.Context, filter bookingDomain.ListFilter, page, limit int) ([]BookingDTO, int64, error) {
	bookings, total, err := s.repos.Bookings.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	return dtos, total, nil
}

func (s *BookingService) adminFilter(query BookingListQuery) (bookingDomain.ListFilter, error) {
	filter := bookingDomain.ListFilter{UserID: query.UserID, ParkingLotID: query.ParkingLotID, Now: s.now()}
	if query.Status != "" {
		st, err := parseStatusFilter(query.Status)
		if err != nil {
			return filter, err
		}
		filter.Status = &st
	}
	return filter, nil
}

func parseStatusFilter(status string) (bookingDomain.BookingStatus, error) {
	st, err := bookingDomain.ParseBookingStatus(status)
	if err != nil {
		return "", domain.NewFieldValidationError(domain.FieldError{Field: "status", Message: err.Error()})
	}
	return st, nil
}

// sendExitSummary notifies the user of a completed stay. Failures are only logged.
func (s *BookingService) sendExitSummary(ctx context.Context, bk *bookingDomain.Booking) {
	if s.notifier == nil {
		return
	}
	u, err := s.repos.Users.FindByID(ctx, bk.UserID())
	if err != nil {
		s.logger.Error("failed to load user for exit summary", zap.String("booking_id", bk.ID().String()), zap.Error(err))
		return
	}

	plate := "-"
	if bk.VehicleID() != nil {
		if v, err := s.repos.Vehicles.FindByID(ctx, *bk.VehicleID()); err == nil {
			plate = v.LicensePlate()
		}
	}

	var (
		entry, exit string
		hours       int64
		amount      float64
	)
	if in := bk.ActualCheckInTime(); in != nil {
		entry = in.Format(time.RFC3339)
		if out := bk.ActualCheckOutTime(); out != nil {
			hours = bookingDomain.BillableHours(out.Sub(*in).Milliseconds())
		}
	}
	if out := bk.ActualCheckOutTime(); out != nil {
		exit = out.Format(time.RFC3339)
	}
	if bk.ActualCost() != nil {
		amount = *bk.ActualCost()
	}

	subject := fmt.Sprintf("Parking receipt %s", bk.BookingNumber())
	body := fmt.Sprintf(
		"Vehicle: %s\nEntry: %s\nExit: %s\nHours: %d\nAmount: %.2f %s\n",
		plate, entry, exit, hours, amount, domain.CurrencyUSD,
	)
	if err := s.notifier.Notify(ctx, u.Email(), subject, body); err != nil {
		s.logger.Error("failed to send exit summary",
			zap.String("booking_id", bk.ID().String()),
			zap.Error(err),
		)
	}
}

func (s *BookingService) invalidateLot(ctx context.Context, lotID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, lotCacheKey(lotID)); err != nil {
		s.logger.Warn("failed to invalidate parking lot cache", zap.String("parking_lot_id", lotID.String()), zap.Error(err))
	}
}

func (s *BookingService) publishBookingCreated(ctx context.Context, bk *bookingDomain.Booking) {
	evt := events.BookingCreatedEvent{
		BookingID:     bk.ID(),
		BookingNumber: bk.BookingNumber(),
		UserID:        bk.UserID(),
		ParkingLotID:  bk.ParkingLotID(),
		ParkingSpotID: bk.ParkingSpotID(),
		Status:        string(bk.Status()),
		StartTime:     bk.StartTime(),
		EndTime:       bk.EndTime(),
		ExpectedCost:  bk.ExpectedCost(),
		OccurredAt:    s.now(),
	}
	s.publishEvent(ctx, events.BookingCreated, bk.ID(), evt)
}

func (s *BookingService) publishEvent(ctx context.Context, eventType string, bookingID uuid.UUID, data interface{}) {
	if s.publisher == nil {
		return
	}
	cloudEvent, err := kafka.NewCloudEvent(eventSource, eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	if err := s.publisher.PublishEvent(ctx, events.TopicBookingEvents, cloudEvent.WithSubject(bookingID.String())); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", events.TopicBookingEvents),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	return BookingDTO{
		ID:                 bk.ID(),
		BookingNumber:      bk.BookingNumber(),
		UserID:             bk.UserID(),
		ParkingLotID:       bk.ParkingLotID(),
		ParkingSpotID:      bk.ParkingSpotID(),
		VehicleID:          bk.VehicleID(),
		Status:             string(bk.Status()),
		StartTime:          bk.StartTime(),
		EndTime:            bk.EndTime(),
		ExpectedCost:       bk.ExpectedCost(),
		ActualCost:         bk.ActualCost(),
		Currency:           domain.CurrencyUSD,
		ActualCheckInTime:  bk.ActualCheckInTime(),
		ActualCheckOutTime: bk.ActualCheckOutTime(),
		PaymentID:          bk.PaymentID(),
		Version:            bk.Version(),
		CreatedAt:          bk.CreatedAt(),
		UpdatedAt:          bk.UpdatedAt(),
	}
}
