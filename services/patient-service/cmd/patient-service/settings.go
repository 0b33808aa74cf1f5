package main

import (
	"time"

	"github.com/pm/patient-management/libs/config"
	"github.com/pm/patient-management/services/patient-service/internal/events"
	"github.com/pm/patient-management/services/patient-service/internal/patient"
)

type settings struct {
	port               string
	storeDriver        string
	databaseURL        string
	migrateOnStart     bool
	billingAddr        string
	billingTimeout     time.Duration
	billingMode        patient.BillingMode
	kafkaBrokers       string
	eventsTopic        string
	publishTimeout     time.Duration
	publishBatchWait   time.Duration
	redisAddr          string
	rateLimitPerMinute int
	intentPollEvery    time.Duration
	intentBatchSize    int
	intentMaxBackoff   time.Duration
}

func loadSettings() (settings, error) {
	var s settings
	var err error

	if s.port, err = config.Port("PORT", "8080"); err != nil {
		return s, err
	}
	s.storeDriver = config.String("STORE_DRIVER", "postgres")
	s.databaseURL = config.String("DATABASE_URL", "")
	s.migrateOnStart = config.Bool("MIGRATE_ON_START", false)
	s.billingAddr = config.String("BILLING_GRPC_ADDR", "")
	if s.billingTimeout, err = config.Duration("BILLING_TIMEOUT", 3*time.Second); err != nil {
		return s, err
	}
	s.billingMode = patient.BillingMode(config.String("BILLING_MODE", string(patient.BillingModeSync)))
	s.kafkaBrokers = config.String("KAFKA_BROKERS", "")
	s.eventsTopic = config.String("PATIENT_EVENTS_TOPIC", patient.EventsTopic)
	if s.publishTimeout, err = config.Duration("PUBLISH_TIMEOUT", 3*time.Second); err != nil {
		return s, err
	}
	if s.publishBatchWait, err = config.Duration("PUBLISH_BATCH_TIMEOUT", events.DefaultBatchTimeout); err != nil {
		return s, err
	}
	s.redisAddr = config.String("REDIS_ADDR", "")
	if s.rateLimitPerMinute, err = config.Int("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return s, err
	}
	if s.intentPollEvery, err = config.Duration("INTENT_POLL_EVERY", 2*time.Second); err != nil {
		return s, err
	}
	if s.intentBatchSize, err = config.Int("INTENT_BATCH_SIZE", 20); err != nil {
		return s, err
	}
	if s.intentMaxBackoff, err = config.Duration("INTENT_MAX_BACKOFF", 5*time.Minute); err != nil {
		return s, err
	}
	return s, nil
}
