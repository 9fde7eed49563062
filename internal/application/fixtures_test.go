package application

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/Kilat-Parking/service-parking/internal/domain/access"
	"github.com/Kilat-Parking/service-parking/internal/domain/store"
	"github.com/Kilat-Parking/service-parking/internal/domain/user"
	"github.com/Kilat-Parking/service-parking/internal/repository"
	"github.com/Kilat-Parking/service-parking/internal/repository/sqlitetest"
	"github.com/Kilat-Parking/service-parking/pkg/auth"
	"github.com/Kilat-Parking/service-parking/pkg/cache"
	"github.com/Kilat-Parking/service-parking/pkg/kafka"
)

// baseTime is the fixed clock of the booking service in these tests.
var baseTime = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.CloudEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, _ string, event kafka.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type notification struct {
	recipient, subject, body string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, recipient, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{recipient: recipient, subject: subject, body: body})
	return n.err
}

type testEnv struct {
	db        *gorm.DB
	repos     store.Repositories
	uow       store.UnitOfWork
	cache     *cache.MemoryCache
	publisher *recordingPublisher
	notifier  *recordingNotifier
	parking   *ParkingService
	bookings  *BookingService
	vehicles  *VehicleService
	clock     time.Time
}

func newTestEnv(t *testing.T, cfg BookingConfig) *testEnv {
	t.Helper()
	db := sqlitetest.Open(t)
	logger := zaptest.NewLogger(t)

	env := &testEnv{
		db:        db,
		repos:     repository.NewRepositories(db),
		uow:       repository.NewGormUnitOfWork(db),
		cache:     cache.NewMemoryCache(),
		publisher: &recordingPublisher{},
		notifier:  &recordingNotifier{},
		clock:     baseTime,
	}
	env.parking = NewParkingService(env.uow, env.repos, env.cache, time.Minute, logger)
	env.bookings = NewBookingService(env.uow, env.repos, env.publisher, env.notifier, env.cache, cfg, logger)
	env.bookings.now = func() time.Time { return env.clock }
	env.vehicles = NewVehicleService(env.uow, env.repos, logger)
	return env
}

func (e *testEnv) principal(t *testing.T, role string) access.Principal {
	t.Helper()
	u, err := user.NewUser("Test "+role, fmt.Sprintf("%s-%s@example.com", role, uuid.NewString()[:8]), "hash", role)
	require.NoError(t, err)
	require.NoError(t, e.repos.Users.Save(context.Background(), u))
	return access.Principal{ID: u.ID(), Role: u.Role()}
}

func (e *testEnv) admin(t *testing.T) access.Principal {
	return e.principal(t, auth.RoleAdmin)
}

func (e *testEnv) driver(t *testing.T) access.Principal {
	return e.principal(t, auth.RoleUser)
}

// seedLot creates a lot sized to spotNumbers, each spot available.
func (e *testEnv) seedLot(t *testing.T, rate float64, spotNumbers ...string) (*LotDTO, []SpotDTO) {
	t.Helper()
	ctx := context.Background()
	admin := e.admin(t)

	lot, err := e.parking.CreateLot(ctx, admin, CreateLotRequest{
		Name:       "Central Garage",
		Address:    "1 Main Street",
		City:       "Springfield",
		TotalSpots: len(spotNumbers),
		HourlyRate: rate,
	})
	require.NoError(t, err)

	spots := make([]SpotDTO, len(spotNumbers))
	for i, n := range spotNumbers {
		spot, err := e.parking.CreateSpot(ctx, admin, lot.ID, CreateSpotRequest{SpotNumber: n})
		require.NoError(t, err)
		spots[i] = *spot
	}
	return e.lot(t, lot.ID), spots
}

// lot reads the lot row directly, bypassing the cache.
func (e *testEnv) lot(t *testing.T, id uuid.UUID) *LotDTO {
	t.Helper()
	l, err := e.repos.Lots.FindByID(context.Background(), id)
	require.NoError(t, err)
	dto := toLotDTO(l)
	return &dto
}

func (e *testEnv) spotStatus(t *testing.T, id uuid.UUID) string {
	t.Helper()
	s, err := e.repos.Spots.FindByID(context.Background(), id)
	require.NoError(t, err)
	return string(s.Status())
}

// assertLedger checks that the lot counter matches a live count of available spots.
func (e *testEnv) assertLedger(t *testing.T, lotID uuid.UUID) {
	t.Helper()
	live, err := e.repos.Spots.CountAvailableByLot(context.Background(), lotID)
	require.NoError(t, err)
	require.Equal(t, int(live), e.lot(t, lotID).AvailableSpots, "availableSpots out of step with spot rows")
}

func window(startOffset, length time.Duration) (time.Time, time.Time) {
	start := baseTime.Add(startOffset)
	return start, start.Add(length)
}
