package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/haulplan/haulplan/internal/history"
)

// ErrMalformedMessage marks a message that can never be processed. Such
// messages are acked so they are not redelivered.
var ErrMalformedMessage = errors.New("malformed message")

// health_check messages verify the pipeline end to end without writing.
const messageTypeHealthCheck = "health_check"

// Store persists a delivered history entry.
type Store interface {
	Store(ctx context.Context, e *history.Entry) error
}

// JobStats is a snapshot of message processing statistics.
type JobStats struct {
	Received      int64
	Stored        int64
	Failed        int64
	Malformed     int64
	HealthChecks  int64
	LastStoredAt  time.Time
	TotalDuration time.Duration
}

type jobMetrics struct {
	mu sync.RWMutex
	JobStats
}

// HistoryJob turns trip_recorded messages into repository writes.
type HistoryJob struct {
	store   Store
	timeout time.Duration
	logger  zerolog.Logger
	metrics *jobMetrics
}

// HistoryJobConfig holds configuration for creating a HistoryJob.
type HistoryJobConfig struct {
	Store   Store
	Timeout time.Duration
	Logger  zerolog.Logger
}

// NewHistoryJob creates a new history job processor.
func NewHistoryJob(cfg HistoryJobConfig) *HistoryJob {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().StoreTimeout
	}
	return &HistoryJob{
		store:   cfg.Store,
		timeout: timeout,
		logger:  cfg.Logger,
		metrics: &jobMetrics{},
	}
}

// Handle processes one message body. A returned error wrapping
// ErrMalformedMessage should be acked; any other error is retryable.
func (j *HistoryJob) Handle(ctx context.Context, data []byte) error {
	start := time.Now()
	j.count(func(m *JobStats) { m.Received++ })

	var msg history.RecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		j.count(func(m *JobStats) { m.Malformed++ })
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch msg.Type {
	case history.MessageType:
	case messageTypeHealthCheck:
		j.count(func(m *JobStats) { m.HealthChecks++ })
		j.logger.Debug().Msg("health check message received")
		return nil
	default:
		j.count(func(m *JobStats) { m.Malformed++ })
		return fmt.Errorf("%w: unknown message type %q", ErrMalformedMessage, msg.Type)
	}

	if err := validate(&msg.Entry); err != nil {
		j.count(func(m *JobStats) { m.Malformed++ })
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	if err := j.store.Store(ctx, &msg.Entry); err != nil {
		j.count(func(m *JobStats) { m.Failed++ })
		return fmt.Errorf("store entry %s: %w", msg.Entry.ID, err)
	}

	j.count(func(m *JobStats) {
		m.Stored++
		m.LastStoredAt = time.Now()
		m.TotalDuration += time.Since(start)
	})
	j.logger.Debug().Str("history_id", msg.Entry.ID).Msg("history entry stored")
	return nil
}

// Stats returns a snapshot of the processing counters.
func (j *HistoryJob) Stats() JobStats {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()
	return j.metrics.JobStats
}

func (j *HistoryJob) count(update func(*JobStats)) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()
	update(&j.metrics.JobStats)
}

func validate(e *history.Entry) error {
	var missing []string
	if !strings.HasPrefix(e.ID, history.IDPrefix) {
		missing = append(missing, "id")
	}
	if e.Start == "" {
		missing = append(missing, "start")
	}
	if e.Pickup == "" {
		missing = append(missing, "pickup")
	}
	if e.Dropoff == "" {
		missing = append(missing, "dropoff")
	}
	if len(missing) > 0 {
		return fmt.Errorf("invalid entry: missing %s", strings.Join(missing, ", "))
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return nil
}
