package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/lottrace/internal/domain/models"
)

type MockJournal struct {
	mock.Mock
}

func (m *MockJournal) AppendEvents(ctx context.Context, events ...models.Event) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, event models.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

var stamp = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func fixedBus(journal Journal, notifiers ...Notifier) *Bus {
	b := NewBus(journal, nil, notifiers...)
	b.now = func() time.Time { return stamp }
	b.newID = func() string { return "evt-1" }
	return b
}

func TestRecordJournalsWholeBatch(t *testing.T) {
	ctx := context.Background()
	want := []models.Event{
		{ID: "evt-1", Type: models.EventReceptionRecorded, LotID: "L1", Actor: "plant", OccurredAt: stamp, Payload: map[string]any{"finalWeightReceived": int64(96)}},
		{ID: "evt-1", Type: models.EventAuditEvaluated, LotID: "L1", Actor: "plant", OccurredAt: stamp},
	}

	journal := new(MockJournal)
	journal.On("AppendEvents", ctx, want).Return(nil).Once()

	got, err := fixedBus(journal).Record(ctx,
		Draft{Type: models.EventReceptionRecorded, LotID: "L1", Actor: "plant", Payload: map[string]any{"finalWeightReceived": int64(96)}},
		Draft{Type: models.EventAuditEvaluated, LotID: "L1", Actor: "plant"},
	)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	journal.AssertExpectations(t)
}

func TestRecordFailsWhenJournalFails(t *testing.T) {
	ctx := context.Background()
	journal := new(MockJournal)
	journal.On("AppendEvents", ctx, mock.Anything).Return(errors.New("disk full"))
	notifier := new(MockNotifier)

	evts, err := fixedBus(journal, notifier).Record(ctx, Draft{Type: models.EventAuditEvaluated, LotID: "L1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Nil(t, evts)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestPublishSwallowsNotifierFailures(t *testing.T) {
	ctx := context.Background()
	event := models.Event{ID: "evt-9", Type: models.EventLotRegistered, LotID: "L1"}

	failing := new(MockNotifier)
	failing.On("Notify", ctx, event).Return(errors.New("webhook down")).Once()
	healthy := new(MockNotifier)
	healthy.On("Notify", ctx, event).Return(nil).Once()

	fixedBus(nil, failing, healthy).Publish(ctx, event)

	failing.AssertExpectations(t)
	healthy.AssertExpectations(t)
}

func TestRecordWithoutJournal(t *testing.T) {
	evts, err := fixedBus(nil).Record(context.Background(), Draft{Type: models.EventThresholdsUpdated, Actor: "admin"})
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, "admin", evts[0].Actor)
}
