package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haulplan/haulplan/internal/history"
	"github.com/haulplan/haulplan/internal/worker"
)

type failingStore struct {
	err error
}

func (s failingStore) Store(context.Context, *history.Entry) error {
	return s.err
}

type deadlineStore struct {
	deadline time.Time
	ok       bool
}

func (s *deadlineStore) Store(ctx context.Context, _ *history.Entry) error {
	s.deadline, s.ok = ctx.Deadline()
	return nil
}

func encode(t *testing.T, msg history.RecordedMessage) []byte {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return data
}

func newEntry() history.Entry {
	return history.NewEntry("Dallas, TX", "Houston, TX", "Austin, TX", 10, time.Now())
}

func TestDefaultConfig(t *testing.T) {
	cfg := worker.DefaultConfig()

	assert.Equal(t, "trip-history-worker", cfg.SubscriptionName)
	assert.Equal(t, 10, cfg.MaxOutstandingMessages)
	assert.Equal(t, 10*time.Second, cfg.StoreTimeout)
}

func TestHistoryJob_StoresEntry(t *testing.T) {
	repo := history.NewInMemoryRepository()
	svc := history.NewService(history.ServiceConfig{Repository: repo, Logger: zerolog.Nop()})
	job := worker.NewHistoryJob(worker.HistoryJobConfig{Store: svc, Logger: zerolog.Nop()})

	entry := newEntry()
	err := job.Handle(context.Background(), encode(t, history.RecordedMessage{Type: history.MessageType, Entry: entry}))
	require.NoError(t, err)

	got, err := repo.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "Houston, TX", got.Pickup)

	stats := job.Stats()
	assert.Equal(t, int64(1), stats.Received)
	assert.Equal(t, int64(1), stats.Stored)
	assert.False(t, stats.LastStoredAt.IsZero())
}

func TestHistoryJob_RedeliveryIsHarmless(t *testing.T) {
	repo := history.NewInMemoryRepository()
	svc := history.NewService(history.ServiceConfig{Repository: repo, Logger: zerolog.Nop()})
	job := worker.NewHistoryJob(worker.HistoryJobConfig{Store: svc, Logger: zerolog.Nop()})

	data := encode(t, history.RecordedMessage{Type: history.MessageType, Entry: newEntry()})
	require.NoError(t, job.Handle(context.Background(), data))
	require.NoError(t, job.Handle(context.Background(), data))

	entries, err := repo.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestHistoryJob_MalformedMessages(t *testing.T) {
	valid := newEntry()
	noPickup := valid
	noPickup.Pickup = ""
	badID := valid
	badID.ID = "123"

	tests := []struct {
		name string
		data []byte
	}{
		{"not json", []byte("{oops")},
		{"unknown type", encode(t, history.RecordedMessage{Type: "provider_refresh", Entry: valid})},
		{"missing pickup", encode(t, history.RecordedMessage{Type: history.MessageType, Entry: noPickup})},
		{"foreign id", encode(t, history.RecordedMessage{Type: history.MessageType, Entry: badID})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := worker.NewHistoryJob(worker.HistoryJobConfig{
				Store:  failingStore{err: errors.New("must not be called")},
				Logger: zerolog.Nop(),
			})

			err := job.Handle(context.Background(), tt.data)
			assert.ErrorIs(t, err, worker.ErrMalformedMessage)
			assert.Equal(t, int64(1), job.Stats().Malformed)
		})
	}
}

func TestHistoryJob_StoreFailureIsRetryable(t *testing.T) {
	storeErr := errors.New("connection refused")
	job := worker.NewHistoryJob(worker.HistoryJobConfig{Store: failingStore{err: storeErr}, Logger: zerolog.Nop()})

	err := job.Handle(context.Background(), encode(t, history.RecordedMessage{Type: history.MessageType, Entry: newEntry()}))
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, worker.ErrMalformedMessage)
	assert.Equal(t, int64(1), job.Stats().Failed)
}

func TestHistoryJob_HealthCheck(t *testing.T) {
	job := worker.NewHistoryJob(worker.HistoryJobConfig{
		Store:  failingStore{err: errors.New("must not be called")},
		Logger: zerolog.Nop(),
	})

	err := job.Handle(context.Background(), []byte(`{"type":"health_check"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), job.Stats().HealthChecks)
}

func TestHistoryJob_StoreTimeout(t *testing.T) {
	store := &deadlineStore{}
	job := worker.NewHistoryJob(worker.HistoryJobConfig{Store: store, Timeout: 2 * time.Second, Logger: zerolog.Nop()})

	before := time.Now()
	err := job.Handle(context.Background(), encode(t, history.RecordedMessage{Type: history.MessageType, Entry: newEntry()}))
	require.NoError(t, err)

	require.True(t, store.ok)
	assert.WithinDuration(t, before.Add(2*time.Second), store.deadline, time.Second)
}
