package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/lottrace/internal/domain/models"
	"github.com/mamadbah2/lottrace/internal/repository"
)

var _ repository.Store = (*Store)(nil)

func TestStoreLotLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	lot := models.Lot{LotID: "L1", Variety: "hass", InitialWeight: models.Int64(100)}
	require.NoError(t, s.CreateLot(ctx, lot))
	assert.ErrorIs(t, s.CreateLot(ctx, models.Lot{LotID: "L1", Variety: "fuerte"}), models.ErrDuplicateLot)

	got, err := s.GetLot(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, "hass", got.Variety)

	*got.InitialWeight = 5
	again, err := s.GetLot(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), *again.InitialWeight, "stored lot must not alias returned copies")

	_, err = s.GetLot(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrLotNotFound)
	assert.ErrorIs(t, s.SaveLot(ctx, models.Lot{LotID: "missing"}), models.ErrLotNotFound)
}

func TestStoreListLotsFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateLot(ctx, models.Lot{LotID: "B", RegisteredBy: "alice", RegistrationTimestamp: base.Add(time.Hour)}))
	require.NoError(t, s.CreateLot(ctx, models.Lot{LotID: "A", RegisteredBy: "bob", RegistrationTimestamp: base}))
	require.NoError(t, s.CreateLot(ctx, models.Lot{LotID: "C", RegisteredBy: "alice", RegistrationTimestamp: base.Add(2 * time.Hour)}))

	all, err := s.ListLots(ctx, models.LotFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{all[0].LotID, all[1].LotID, all[2].LotID})

	alice, err := s.ListLots(ctx, models.LotFilter{RegisteredBy: "alice", To: base.Add(time.Hour)})
	require.NoError(t, err)
	require.Len(t, alice, 1)
	assert.Equal(t, "B", alice[0].LotID)
}

func TestStoreThresholdsAndEvents(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, found, err := s.LoadThresholds(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	state := models.ThresholdState{Thresholds: models.Thresholds{MaxTransportTempC100: 800}, Version: 2}
	require.NoError(t, s.SaveThresholds(ctx, state))
	got, found, err := s.LoadThresholds(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, state, got)

	require.NoError(t, s.AppendEvents(ctx, models.Event{ID: "1", LotID: "L1"}, models.Event{ID: "2", LotID: "L2"}))
	require.NoError(t, s.AppendEvents(ctx, models.Event{ID: "3", LotID: "L1"}))
	require.NoError(t, s.AppendEvents(ctx))

	events, err := s.ListEvents(ctx, "L1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "1", events[0].ID)
	assert.Equal(t, "3", events[1].ID)

	everything, err := s.ListEvents(ctx, "")
	require.NoError(t, err)
	assert.Len(t, everything, 3)
}
