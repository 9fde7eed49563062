//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/Kilat-Parking/service-parking/internal/application"
	"github.com/Kilat-Parking/service-parking/internal/domain/access"
	parkingEvents "github.com/Kilat-Parking/service-parking/internal/events"
	"github.com/Kilat-Parking/service-parking/internal/notification"
	"github.com/Kilat-Parking/service-parking/internal/repository"
	"github.com/Kilat-Parking/service-parking/pkg/auth"
	"github.com/Kilat-Parking/service-parking/pkg/cache"
	"github.com/Kilat-Parking/service-parking/pkg/database"
	"github.com/Kilat-Parking/service-parking/pkg/events"
	"github.com/Kilat-Parking/service-parking/pkg/kafka"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// parkingStack holds wired-up parking service components.
type parkingStack struct {
	Parking         *application.ParkingService
	Bookings        *application.BookingService
	Vehicles        *application.VehicleService
	Auth            *application.AuthService
	Consumer        *parkingEvents.PaymentEventConsumer
	CleanupProducer func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a migrated GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_parking",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dbConfig := database.PostgresConfig{
		Host:     pgHost,
		Port:     pgPort.Port(),
		User:     "test",
		Password: "test",
		DBName:   "test_parking",
		SSLMode:  "disable",
	}

	db, err := database.Connect(dbConfig, logger)
	require.NoError(t, err, "PostgreSQL not ready for connections")
	require.NoError(t, database.RunMigrations(dbConfig.DatabaseURL(), "migrations", logger))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, events.TopicBookingEvents, events.TopicPaymentEvents, events.TopicNotificationEvents)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupParkingStack wires up the services against db and brokers.
func setupParkingStack(t *testing.T, db *gorm.DB, brokers []string, cfg application.BookingConfig) *parkingStack {
	t.Helper()
	logger := zap.NewNop()

	uow := repository.NewGormUnitOfWork(db)
	repos := repository.NewRepositories(db)
	lotCache := cache.NewMemoryCache()
	producer := kafka.NewProducer(brokers, logger)
	notifier := notification.NewKafkaNotifier(producer, "service-parking")

	bookingSvc := application.NewBookingService(uow, repos, producer, notifier, lotCache, cfg, logger)

	groupID := fmt.Sprintf("test-parking-%s", uuid.New().String()[:8])
	consumer := parkingEvents.NewPaymentEventConsumer(brokers, groupID, bookingSvc, logger)

	return &parkingStack{
		Parking:         application.NewParkingService(uow, repos, lotCache, time.Minute, logger),
		Bookings:        bookingSvc,
		Vehicles:        application.NewVehicleService(uow, repos, logger),
		Auth:            application.NewAuthService(repos, auth.NewJWTManager("test-secret", time.Minute, time.Hour), logger),
		Consumer:        consumer,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// registerPrincipal creates an account through the auth service and returns it as a principal.
func registerPrincipal(t *testing.T, stack *parkingStack, role string) access.Principal {
	t.Helper()
	ctx := context.Background()
	email := fmt.Sprintf("%s-%s@example.com", role, uuid.New().String()[:8])

	if role == auth.RoleAdmin {
		require.NoError(t, stack.Auth.EnsureAdmin(ctx, "Admin", email, "password123"))
		res, err := stack.Auth.Login(ctx, application.LoginRequest{Email: email, Password: "password123"})
		require.NoError(t, err)
		return access.Principal{ID: res.User.ID, Role: res.User.Role}
	}

	res, err := stack.Auth.Register(ctx, application.RegisterRequest{Name: "Driver", Email: email, Password: "password123"})
	require.NoError(t, err)
	return access.Principal{ID: res.User.ID, Role: res.User.Role}
}

// seedLot creates a lot with the given spot numbers, all available.
func seedLot(t *testing.T, stack *parkingStack, admin access.Principal, rate float64, spotNumbers ...string) *application.LotDTO {
	t.Helper()
	ctx := context.Background()

	lot, err := stack.Parking.CreateLot(ctx, admin, application.CreateLotRequest{
		Name:       "Integration Lot",
		Address:    "1 Test Street",
		City:       "Testville",
		TotalSpots: len(spotNumbers),
		HourlyRate: rate,
	})
	require.NoError(t, err)

	for _, n := range spotNumbers {
		_, err := stack.Parking.CreateSpot(ctx, admin, lot.ID, application.CreateSpotRequest{SpotNumber: n})
		require.NoError(t, err)
	}

	lot, err = stack.Parking.GetLot(ctx, lot.ID)
	require.NoError(t, err)
	return lot
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForBookingStatus polls the bookings table until the status matches.
func waitForBookingStatus(t *testing.T, db *gorm.DB, bookingID uuid.UUID, expectedStatus string, timeout time.Duration) repository.BookingModel {
	t.Helper()
	var result repository.BookingModel
	require.Eventually(t, func() bool {
		var model repository.BookingModel
		if err := db.Where("id = ?", bookingID).First(&model).Error; err != nil {
			return false
		}
		if model.Status == expectedStatus {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "booking did not transition to %s", expectedStatus)
	return result
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	require.NoError(t, controllerConn.CreateTopics(topicConfigs...), "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
