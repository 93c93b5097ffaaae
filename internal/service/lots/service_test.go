package lots

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/lottrace/internal/domain/models"
	"github.com/mamadbah2/lottrace/internal/repository/memory"
	"github.com/mamadbah2/lottrace/internal/service/audit"
	"github.com/mamadbah2/lottrace/internal/service/classifier"
	"github.com/mamadbah2/lottrace/internal/service/events"
	"github.com/mamadbah2/lottrace/internal/service/thresholds"
)

type fixture struct {
	svc      *Service
	store    *memory.Store
	registry *thresholds.Registry
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.NewStore()
	bus := events.NewBus(store, nil)
	registry := thresholds.NewRegistry("admin", models.Thresholds{
		MaxTransportTempC100:  800,
		MaxWeightDeviationPct: 5,
		MinDryMatterPct:       21,
	}, store, bus, nil)

	svc := NewService(store, store, registry, classifier.New(nil, nil), bus, nil)
	svc.now = func() time.Time { return time.Date(2024, 4, 2, 9, 30, 0, 0, time.UTC) }
	svc.newRef = func() string { return "0xplaceholder" }
	return fixture{svc: svc, store: store, registry: registry}
}

func TestLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	lot, err := f.svc.Register(ctx, RegisterRequest{LotID: "L1", Variety: "hass", InitialWeight: 100}, "coop-7")
	require.NoError(t, err)
	assert.Equal(t, models.StageRegistered, lot.Stage)
	assert.False(t, lot.Audit.Compliant)
	assert.Equal(t, models.AuditPending, lot.Audit.Reason.Kind)
	assert.Equal(t, "Pending audit", lot.Audit.Reason.Detail)

	lot, err = f.svc.RecordTransport(ctx, "L1", 750, "trucker")
	require.NoError(t, err)
	assert.Equal(t, models.StageTransportRecorded, lot.Stage)
	assert.Equal(t, models.AuditPending, lot.Audit.Reason.Kind, "transport alone does not audit")

	lot, err = f.svc.RecordReception(ctx, "L1", 96, "plant")
	require.NoError(t, err)
	assert.True(t, lot.Audit.Compliant)
	assert.Equal(t, models.AuditCompliant, lot.Audit.Reason.Kind)
	assert.Equal(t, models.StageAudited, lot.Stage)

	lot, err = f.svc.RecordReception(ctx, "L1", 90, "plant")
	require.NoError(t, err)
	assert.False(t, lot.Audit.Compliant)
	assert.Equal(t, models.AuditWeightDeviationExceeded, lot.Audit.Reason.Kind)

	stored, err := f.svc.GetLot(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, lot, stored)

	evts, err := f.svc.ListEvents(ctx, "L1")
	require.NoError(t, err)
	types := make([]models.EventType, 0, len(evts))
	for _, e := range evts {
		types = append(types, e.Type)
	}
	assert.Equal(t, []models.EventType{
		models.EventLotRegistered,
		models.EventTransportRecorded,
		models.EventReceptionRecorded,
		models.EventAuditEvaluated,
		models.EventReceptionRecorded,
		models.EventAuditEvaluated,
	}, types)
	assert.Equal(t, false, evts[5].Payload["compliant"])
	assert.Equal(t, string(models.AuditWeightDeviationExceeded), evts[5].Payload["kind"])
}

func TestRegisterDuplicateKeepsOriginal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Register(ctx, RegisterRequest{LotID: "L1", Variety: "hass", InitialWeight: 100}, "coop-7")
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, RegisterRequest{LotID: "L1", Variety: "fuerte", InitialWeight: 5}, "intruder")
	assert.ErrorIs(t, err, models.ErrDuplicateLot)

	lot, err := f.svc.GetLot(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, "hass", lot.Variety)
	assert.Equal(t, int64(100), *lot.InitialWeight)
	assert.Equal(t, "coop-7", lot.RegisteredBy)
}

func TestRegisterValidatesInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(context.Background(), RegisterRequest{LotID: "  "}, "coop-7")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = f.svc.Register(context.Background(), RegisterRequest{LotID: "L9", InitialWeight: -1}, "coop-7")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestOperationsOnUnknownLot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.RecordTransport(ctx, "nope", 700, "")
	assert.ErrorIs(t, err, models.ErrLotNotFound)
	_, err = f.svc.RecordReception(ctx, "nope", 10, "")
	assert.ErrorIs(t, err, models.ErrLotNotFound)
	_, err = f.svc.Evaluate(ctx, "nope", audit.Input{}, "")
	assert.ErrorIs(t, err, models.ErrLotNotFound)
	_, err = f.svc.TransferOwnership(ctx, "nope", TransferRequest{NewOwner: "buyer"}, "")
	assert.ErrorIs(t, err, models.ErrLotNotFound)
	_, err = f.svc.ListEvents(ctx, "nope")
	assert.ErrorIs(t, err, models.ErrLotNotFound)
}

func TestTemperatureExceedanceWinsOverWeight(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Register(ctx, RegisterRequest{LotID: "L2", InitialWeight: 100}, "coop-7")
	require.NoError(t, err)
	_, err = f.svc.RecordTransport(ctx, "L2", 810, "trucker")
	require.NoError(t, err)

	lot, err := f.svc.RecordReception(ctx, "L2", 50, "plant")
	require.NoError(t, err)
	assert.Equal(t, models.AuditTemperatureExceeded, lot.Audit.Reason.Kind)
}

func TestEvaluateStoresOverridesAndUsesStoredValues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Register(ctx, RegisterRequest{LotID: "L3", InitialWeight: 100}, "coop-7")
	require.NoError(t, err)
	_, err = f.svc.RecordReception(ctx, "L3", 98, "plant")
	require.NoError(t, err)

	lot, err := f.svc.Evaluate(ctx, "L3", audit.Input{DryMatterPct: models.Int64(19)}, "lab")
	require.NoError(t, err)
	assert.Equal(t, models.AuditDryMatterInsufficient, lot.Audit.Reason.Kind)
	assert.Equal(t, int64(19), *lot.FinalDryMatterPct)

	lot, err = f.svc.Evaluate(ctx, "L3", audit.Input{}, "lab")
	require.NoError(t, err)
	assert.Equal(t, models.AuditDryMatterInsufficient, lot.Audit.Reason.Kind, "stored dry matter is reused")

	lot, err = f.svc.RecordPackaging(ctx, "L3", 24, "packer")
	require.NoError(t, err)
	assert.True(t, lot.Audit.Compliant)
}

func TestAuditUsesCurrentThresholds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Register(ctx, RegisterRequest{LotID: "L4", InitialWeight: 100}, "coop-7")
	require.NoError(t, err)
	_, err = f.svc.RecordTransport(ctx, "L4", 750, "trucker")
	require.NoError(t, err)

	_, err = f.registry.Update(ctx, models.Thresholds{MaxTransportTempC100: 700, MaxWeightDeviationPct: 5, MinDryMatterPct: 21}, "admin")
	require.NoError(t, err)

	lot, err := f.svc.RecordReception(ctx, "L4", 99, "plant")
	require.NoError(t, err)
	assert.Equal(t, models.AuditTemperatureExceeded, lot.Audit.Reason.Kind)
}

func TestTransferIsNotGatedByAudit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Register(ctx, RegisterRequest{LotID: "L5", InitialWeight: 100}, "coop-7")
	require.NoError(t, err)
	_, err = f.svc.RecordReception(ctx, "L5", 10, "plant")
	require.NoError(t, err)

	lot, err := f.svc.TransferOwnership(ctx, "L5", TransferRequest{NewOwner: "exporter", AmountUSD: 1500}, "coop-7")
	require.NoError(t, err)
	assert.False(t, lot.Audit.Compliant)
	assert.Equal(t, models.AuditWeightDeviationExceeded, lot.Audit.Reason.Kind)
	assert.Equal(t, models.StageTransferred, lot.Stage)
	assert.Equal(t, "exporter", lot.Owner)
	require.Len(t, lot.Transfers, 1)
	assert.Equal(t, models.Transfer{
		From:       "coop-7",
		To:         "exporter",
		AmountUSD:  1500,
		Reference:  "0xplaceholder",
		OccurredAt: time.Date(2024, 4, 2, 9, 30, 0, 0, time.UTC),
	}, lot.Transfers[0])

	lot, err = f.svc.RecordReception(ctx, "L5", 99, "plant")
	require.NoError(t, err)
	assert.Equal(t, models.StageTransferred, lot.Stage, "stage never moves backward")

	_, err = f.svc.TransferOwnership(ctx, "L5", TransferRequest{NewOwner: " "}, "coop-7")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestIngestInspection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Register(ctx, RegisterRequest{LotID: "L6", InitialWeight: 100}, "coop-7")
	require.NoError(t, err)

	lot, err := f.svc.IngestInspection(ctx, "L6", []models.UnitRecord{{Status: "ok"}, {Status: "descarte"}}, "inspector")
	require.NoError(t, err)
	require.NotNil(t, lot.Quality)
	assert.Equal(t, 2, lot.Quality.Total)
	assert.Equal(t, 50.0, lot.Quality.NotAdmittedPct())
	assert.Equal(t, models.AuditPending, lot.Audit.Reason.Kind, "classification does not touch the threshold audit")

	lot, err = f.svc.IngestInspection(ctx, "L6", nil, "inspector")
	require.NoError(t, err)
	assert.Equal(t, 1, lot.Quality.Total)
	assert.Equal(t, 1, lot.Quality.Conformant)
}

func TestConcurrentTransportAndReceptionKeepBothFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const n = 20
	for i := 0; i < n; i++ {
		_, err := f.svc.Register(ctx, RegisterRequest{LotID: fmt.Sprintf("C%d", i), InitialWeight: 100}, "coop-7")
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("C%d", i)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.svc.RecordTransport(ctx, id, 700, "trucker")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := f.svc.RecordReception(ctx, id, 97, "plant")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		lot, err := f.svc.GetLot(ctx, fmt.Sprintf("C%d", i))
		require.NoError(t, err)
		require.NotNil(t, lot.AvgTransportTemperatureC)
		require.NotNil(t, lot.FinalWeightReceived)
		assert.Equal(t, int64(700), *lot.AvgTransportTemperatureC)
		assert.Equal(t, int64(97), *lot.FinalWeightReceived)
	}
	assert.Empty(t, f.svc.locks.locks, "idle lot locks are released")
}

func TestListLotsByRequester(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Register(ctx, RegisterRequest{LotID: "A1"}, "alice")
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, RegisterRequest{LotID: "B1"}, "bob")
	require.NoError(t, err)

	lots, err := f.svc.ListLots(ctx, models.LotFilter{RegisteredBy: "bob"})
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, "B1", lots[0].LotID)
}

func TestRecordPackagingAuditsDryMatter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Register(ctx, RegisterRequest{LotID: "L9", InitialWeight: 40}, "coop-7")
	require.NoError(t, err)

	_, err = f.svc.RecordPackaging(ctx, "L9", -1, "packer")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	lot, err := f.svc.RecordPackaging(ctx, "L9", 20, "packer")
	require.NoError(t, err)
	assert.Equal(t, models.AuditDryMatterInsufficient, lot.Audit.Reason.Kind)
	assert.Equal(t, "Dry matter 20% below minimum 21%", lot.Audit.Reason.Detail)
	assert.Equal(t, models.StageAudited, lot.Stage)

	evts, err := f.svc.ListEvents(ctx, "L9")
	require.NoError(t, err)
	require.Len(t, evts, 3)
	assert.Equal(t, models.EventPackagingRecorded, evts[1].Type)
	assert.Equal(t, models.EventAuditEvaluated, evts[2].Type)
}

type switchableJournal struct {
	events.Journal
	mu  sync.Mutex
	err error
}

func (j *switchableJournal) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.err = err
}

func (j *switchableJournal) AppendEvents(ctx context.Context, evts ...models.Event) error {
	j.mu.Lock()
	err := j.err
	j.mu.Unlock()
	if err != nil {
		return err
	}
	return j.Journal.AppendEvents(ctx, evts...)
}

func newFixtureWithJournal(t *testing.T) (fixture, *switchableJournal) {
	t.Helper()
	f := newFixture(t)
	journal := &switchableJournal{Journal: f.store}
	f.svc.emitter = events.NewBus(journal, nil)
	return f, journal
}

func TestRegisterIsRetryableAfterJournalFailure(t *testing.T) {
	ctx := context.Background()
	f, journal := newFixtureWithJournal(t)

	journal.fail(fmt.Errorf("journal down"))
	_, err := f.svc.Register(ctx, RegisterRequest{LotID: "L1", InitialWeight: 100}, "coop-7")
	require.ErrorContains(t, err, "journal down")

	_, err = f.svc.GetLot(ctx, "L1")
	assert.ErrorIs(t, err, models.ErrLotNotFound, "nothing is stored when the journal fails")

	journal.fail(nil)
	lot, err := f.svc.Register(ctx, RegisterRequest{LotID: "L1", InitialWeight: 100}, "coop-7")
	require.NoError(t, err)
	assert.Equal(t, "coop-7", lot.Owner)

	evts, err := f.svc.ListEvents(ctx, "L1")
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, models.EventLotRegistered, evts[0].Type)
}

func TestMutationLeavesLotUntouchedWhenJournalFails(t *testing.T) {
	ctx := context.Background()
	f, journal := newFixtureWithJournal(t)

	_, err := f.svc.Register(ctx, RegisterRequest{LotID: "L1", InitialWeight: 100}, "coop-7")
	require.NoError(t, err)

	journal.fail(fmt.Errorf("journal down"))
	_, err = f.svc.RecordReception(ctx, "L1", 90, "plant")
	require.ErrorContains(t, err, "journal down")
	_, err = f.svc.TransferOwnership(ctx, "L1", TransferRequest{NewOwner: "exporter"}, "coop-7")
	require.ErrorContains(t, err, "journal down")

	stored, err := f.svc.GetLot(ctx, "L1")
	require.NoError(t, err)
	assert.Nil(t, stored.FinalWeightReceived)
	assert.Equal(t, models.AuditPending, stored.Audit.Reason.Kind)
	assert.Equal(t, models.StageRegistered, stored.Stage)
	assert.Equal(t, "coop-7", stored.Owner)
	assert.Empty(t, stored.Transfers)

	journal.fail(nil)
	lot, err := f.svc.RecordReception(ctx, "L1", 90, "plant")
	require.NoError(t, err)
	assert.Equal(t, models.AuditWeightDeviationExceeded, lot.Audit.Reason.Kind)

	evts, err := f.svc.ListEvents(ctx, "L1")
	require.NoError(t, err)
	require.Len(t, evts, 3)
	assert.Equal(t, models.EventReceptionRecorded, evts[1].Type)
	assert.Equal(t, models.EventAuditEvaluated, evts[2].Type)
}
