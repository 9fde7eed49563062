package config

import (
	"time"

	"github.com/Kilat-Parking/service-parking/pkg/config"
)

// BookingConfig holds booking lifecycle settings.
type BookingConfig struct {
	RequirePayment bool
	PaymentTimeout time.Duration
	SweepInterval  time.Duration
}

// AdminConfig seeds an administrator account at startup. An empty Email disables it.
type AdminConfig struct {
	Name     string
	Email    string
	Password string
}

// ServiceConfig holds all configuration for the parking service.
type ServiceConfig struct {
	Port               string
	AppEnv             string
	DBConfig           config.DatabaseConfig
	JWTConfig          config.JWTConfig
	KafkaConfig        config.KafkaConfig
	RedisConfig        config.RedisConfig
	Booking            BookingConfig
	NotificationDriver string
	Admin              AdminConfig
}

// Load reads configuration from environment variables prefixed with PARKING_.
func Load() (*ServiceConfig, error) {
	v, err := config.Load("PARKING")
	if err != nil {
		return nil, err
	}

	return &ServiceConfig{
		Port:        v.ServicePort("SERVICE_PORT", "8080"),
		AppEnv:      v.AppEnv(),
		DBConfig:    v.Database("parking"),
		JWTConfig:   v.JWT(),
		KafkaConfig: v.Kafka(),
		RedisConfig: v.Redis(),
		Booking: BookingConfig{
			RequirePayment: v.Bool("BOOKING_REQUIRE_PAYMENT", false),
			PaymentTimeout: v.Duration("BOOKING_PAYMENT_TIMEOUT", 15*time.Minute),
			SweepInterval:  v.Duration("BOOKING_SWEEP_INTERVAL", time.Minute),
		},
		NotificationDriver: v.String("NOTIFICATION_DRIVER", "kafka"),
		Admin: AdminConfig{
			Name:     v.String("ADMIN_NAME", "Administrator"),
			Email:    v.String("ADMIN_EMAIL", ""),
			Password: v.String("ADMIN_PASSWORD", ""),
		},
	}, nil
}
