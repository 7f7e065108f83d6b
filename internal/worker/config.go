// Package worker stores trip history entries delivered over Pub/Sub.
package worker

import (
	"time"
)

// Config holds configuration for the history worker.
type Config struct {
	// ProjectID is the Google Cloud project hosting the subscription.
	ProjectID string

	// SubscriptionName is the subscription receiving trip_recorded messages.
	SubscriptionName string

	// MaxOutstandingMessages bounds concurrent deliveries.
	// Default: 10
	MaxOutstandingMessages int

	// StoreTimeout bounds each repository write.
	// Default: 10 seconds
	StoreTimeout time.Duration
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		SubscriptionName:       "trip-history-worker",
		MaxOutstandingMessages: 10,
		StoreTimeout:           10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SubscriptionName == "" {
		c.SubscriptionName = d.SubscriptionName
	}
	if c.MaxOutstandingMessages <= 0 {
		c.MaxOutstandingMessages = d.MaxOutstandingMessages
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = d.StoreTimeout
	}
	return c
}
