package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunpeak/console-api/internal/model"
	"github.com/sunpeak/console-api/pkg/logger"
	"github.com/sunpeak/console-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("worker_test")

type fakeOutboxRepo struct {
	pending   []*model.OutboxEvent
	processed []uuid.UUID
	failed    map[uuid.UUID]string
	deleted   int64
}

func (r *fakeOutboxRepo) GetPendingWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	if limit < len(r.pending) {
		return r.pending[:limit], nil
	}
	return r.pending, nil
}

func (r *fakeOutboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	r.processed = append(r.processed, id)
	return nil
}

func (r *fakeOutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	if r.failed == nil {
		r.failed = make(map[uuid.UUID]string)
	}
	r.failed[id] = errMsg
	return nil
}

func (r *fakeOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	return r.deleted, nil
}

type recordingBroker struct {
	published map[string][][]byte
	failures  int
}

func (b *recordingBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	if b.failures > 0 {
		b.failures--
		return errors.New("broker unavailable")
	}
	if b.published == nil {
		b.published = make(map[string][][]byte)
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *recordingBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, errors.New("not implemented")
}

func (b *recordingBroker) Close() error { return nil }

func event(payload string) *model.OutboxEvent {
	return &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: model.PushChannel,
		Payload:   []byte(payload),
		Status:    model.OutboxStatusPending,
	}
}

func newProcessor(repo *fakeOutboxRepo, broker *recordingBroker, attempts int) *OutboxProcessor {
	return NewOutboxProcessor(repo, broker, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Millisecond,
		RetryAttempts: attempts,
		RetryDelay:    time.Millisecond,
	}, logger.NewLogger(nil), testMetrics)
}

func TestProcessEventsPublishesAndMarksProcessed(t *testing.T) {
	first := event(`{"user_id":1}`)
	second := event(`{"user_id":2}`)
	repo := &fakeOutboxRepo{pending: []*model.OutboxEvent{first, second}}
	broker := &recordingBroker{}

	p := newProcessor(repo, broker, 3)
	require.NoError(t, p.processEvents(context.Background()))

	assert.Len(t, broker.published[model.PushChannel], 2)
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, repo.processed)
	assert.Empty(t, repo.failed)
}

func TestProcessEventRetriesTransientPublishFailure(t *testing.T) {
	ev := event(`{"user_id":1}`)
	repo := &fakeOutboxRepo{pending: []*model.OutboxEvent{ev}}
	broker := &recordingBroker{failures: 2}

	p := newProcessor(repo, broker, 3)
	require.NoError(t, p.processEvents(context.Background()))

	assert.Len(t, broker.published[model.PushChannel], 1)
	assert.Equal(t, []uuid.UUID{ev.ID}, repo.processed)
}

func TestProcessEventMarksFailedAfterExhaustion(t *testing.T) {
	ev := event(`{"user_id":1}`)
	repo := &fakeOutboxRepo{pending: []*model.OutboxEvent{ev}}
	broker := &recordingBroker{failures: 100}

	p := newProcessor(repo, broker, 2)
	require.NoError(t, p.processEvents(context.Background()))

	assert.Empty(t, repo.processed)
	assert.Contains(t, repo.failed[ev.ID], "broker unavailable")
}

func TestNewOutboxProcessorValidatesConfig(t *testing.T) {
	repo := &fakeOutboxRepo{}
	broker := &recordingBroker{}

	assert.Panics(t, func() {
		NewOutboxProcessor(repo, broker, OutboxProcessorConfig{
			BatchSize: 0, PollInterval: time.Second, RetryAttempts: 1,
		}, logger.NewLogger(nil), testMetrics)
	})
}
