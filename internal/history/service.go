package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// MessageType is the Pub/Sub "type" attribute of a recorded trip.
const MessageType = "trip_recorded"

// RecordedMessage is the payload published for an asynchronously stored entry.
type RecordedMessage struct {
	Type  string `json:"type"`
	Entry Entry  `json:"entry"`
}

// Publisher sends an encoded message to the history topic.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) error
}

// TopicPublisher publishes through a Pub/Sub topic and waits for the server
// acknowledgement.
type TopicPublisher struct {
	publisher *pubsub.Publisher
}

// NewTopicPublisher wraps a Pub/Sub publisher obtained from client.Publisher(topic).
func NewTopicPublisher(p *pubsub.Publisher) *TopicPublisher {
	return &TopicPublisher{publisher: p}
}

// Publish implements Publisher.
func (t *TopicPublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) error {
	res := t.publisher.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	_, err := res.Get(ctx)
	return err
}

// Stop flushes pending messages.
func (t *TopicPublisher) Stop() {
	t.publisher.Stop()
}

// ServiceConfig holds configuration for the history service.
type ServiceConfig struct {
	Repository Repository

	// Publisher, when set, hands new entries to the worker instead of
	// writing them directly.
	Publisher Publisher

	Logger zerolog.Logger

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// Service records and reads trip history.
type Service struct {
	repo      Repository
	publisher Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService creates a new history service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		repo:      cfg.Repository,
		publisher: cfg.Publisher,
		logger:    cfg.Logger.With().Str("component", "history_service").Logger(),
		now:       cfg.Now,
	}
}

// Record stores the inputs of a trip. Callers treat failures as non-fatal.
func (s *Service) Record(ctx context.Context, start, pickup, dropoff string, cycleUsed float64) (*Entry, error) {
	entry := NewEntry(start, pickup, dropoff, cycleUsed, s.now())

	if s.publisher == nil {
		if err := s.repo.Create(ctx, &entry); err != nil {
			return nil, fmt.Errorf("store history entry: %w", err)
		}
		return &entry, nil
	}

	data, err := json.Marshal(RecordedMessage{Type: MessageType, Entry: entry})
	if err != nil {
		return nil, fmt.Errorf("encode history entry: %w", err)
	}
	if err := s.publisher.Publish(ctx, data, map[string]string{"type": MessageType}); err != nil {
		return nil, fmt.Errorf("publish history entry: %w", err)
	}

	s.logger.Debug().Str("history_id", entry.ID).Msg("history entry published")
	return &entry, nil
}

// Store writes an entry delivered by the worker.
func (s *Service) Store(ctx context.Context, e *Entry) error {
	return s.repo.Create(ctx, e)
}

// List returns up to limit entries, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	return s.repo.List(ctx, limit)
}

// Get retrieves one entry.
func (s *Service) Get(ctx context.Context, id string) (*Entry, error) {
	return s.repo.Get(ctx, id)
}

// Delete removes one entry.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// DeleteAll clears the history.
func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("deleted", n).Msg("history cleared")
	return n, nil
}
