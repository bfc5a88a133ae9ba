package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cassiomorais/tripcheckout/internal/domain/outbox"
	"github.com/cassiomorais/tripcheckout/internal/testutil"
	"github.com/google/uuid"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []uuid.UUID
	failFor   map[uuid.UUID]bool
}

func (p *recordingPublisher) Publish(ctx context.Context, entry *outbox.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor[entry.ID] {
		return errors.New("stream unavailable")
	}
	p.published = append(p.published, entry.ID)
	return nil
}

func seedOutbox(t *testing.T, repo *testutil.MockOutboxRepository, n int) []*outbox.Entry {
	t.Helper()
	var entries []*outbox.Entry
	for i := 0; i < n; i++ {
		e := outbox.NewEntry(outbox.AggregateTrip, uuid.New(), outbox.EventTripCreated, map[string]any{"owner_id": "user-1"})
		require.NoError(t, repo.Insert(context.Background(), e))
		entries = append(entries, e)
	}
	return entries
}

func TestOutboxRelay_PublishesPendingEntries(t *testing.T) {
	repo := &testutil.MockOutboxRepository{}
	entries := seedOutbox(t, repo, 3)
	pub := &recordingPublisher{}
	metrics := testutil.NewMetrics()
	relay := NewOutboxRelay(testutil.NewMockTransactionManager(), repo, pub, 10, testutil.NopLogger(), metrics)

	n, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, pub.published, 3)
	for _, e := range entries {
		assert.Equal(t, outbox.StatusPublished, e.Status)
		assert.NotNil(t, e.PublishedAt)
	}
	assert.Equal(t, float64(3), promtest.ToFloat64(metrics.WorkerMessagesProcessed.WithLabelValues("outbox", "published")))

	n, err = relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOutboxRelay_RespectsBatchSize(t *testing.T) {
	repo := &testutil.MockOutboxRepository{}
	seedOutbox(t, repo, 5)
	relay := NewOutboxRelay(testutil.NewMockTransactionManager(), repo, &recordingPublisher{}, 2, testutil.NopLogger(), nil)

	n, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestOutboxRelay_FailedPublishCountsRetry(t *testing.T) {
	repo := &testutil.MockOutboxRepository{}
	entries := seedOutbox(t, repo, 2)
	pub := &recordingPublisher{failFor: map[uuid.UUID]bool{entries[0].ID: true}}
	metrics := testutil.NewMetrics()
	relay := NewOutboxRelay(testutil.NewMockTransactionManager(), repo, pub, 10, testutil.NopLogger(), metrics)

	n, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, entries[0].RetryCount)
	assert.Equal(t, outbox.StatusPending, entries[0].Status)
	assert.Equal(t, outbox.StatusPublished, entries[1].Status)
	assert.Equal(t, float64(1), promtest.ToFloat64(metrics.WorkerMessagesProcessed.WithLabelValues("outbox", "failed")))
}

func TestOutboxRelay_GivesUpAfterMaxRetries(t *testing.T) {
	repo := &testutil.MockOutboxRepository{}
	entries := seedOutbox(t, repo, 1)
	entries[0].MaxRetries = 2
	pub := &recordingPublisher{failFor: map[uuid.UUID]bool{entries[0].ID: true}}
	relay := NewOutboxRelay(testutil.NewMockTransactionManager(), repo, pub, 10, testutil.NopLogger(), nil)

	for i := 0; i < 3; i++ {
		_, err := relay.RunOnce(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, outbox.StatusFailed, entries[0].Status)
	assert.Equal(t, 2, entries[0].RetryCount)
}

func TestOutboxRelay_GetPendingError(t *testing.T) {
	repo := &testutil.MockOutboxRepository{
		GetPendingFunc: func(ctx context.Context, limit int) ([]*outbox.Entry, error) {
			return nil, errors.New("connection refused")
		},
	}
	relay := NewOutboxRelay(testutil.NewMockTransactionManager(), repo, &recordingPublisher{}, 0, testutil.NopLogger(), nil)

	_, err := relay.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get pending outbox entries")
	assert.Equal(t, 10, relay.batchSize)
}
