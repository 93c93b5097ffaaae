package lots

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/lottrace/internal/domain/models"
	"github.com/mamadbah2/lottrace/internal/repository"
	"github.com/mamadbah2/lottrace/internal/service/audit"
	"github.com/mamadbah2/lottrace/internal/service/events"
)

// ThresholdSource supplies the thresholds injected into every audit.
type ThresholdSource interface {
	Current() models.Thresholds
}

// Classifier converts inspection records into a breakdown.
type Classifier interface {
	ClassifyWithFallback(records []models.UnitRecord) (models.QualityBreakdown, bool, error)
}

// EventLister reads the event journal.
type EventLister interface {
	ListEvents(ctx context.Context, lotID string) ([]models.Event, error)
}

// RegisterRequest is the payload of a lot registration.
type RegisterRequest struct {
	LotID         string `json:"lotId" binding:"required"`
	Variety       string `json:"variety"`
	InitialWeight int64  `json:"initialWeight"`
}

// TransferRequest is the payload of an ownership transfer.
type TransferRequest struct {
	NewOwner  string `json:"newOwner" binding:"required"`
	AmountUSD int64  `json:"amountUsd"`
}

// Service drives lots through registration, transport, reception, audit and transfer.
// Every mutation of a lot runs under that lot's lock.
type Service struct {
	repo       repository.LotRepository
	journal    EventLister
	thresholds ThresholdSource
	classifier Classifier
	emitter    events.Emitter
	logger     *zap.Logger
	locks      *keyedMutex
	now        func() time.Time
	newRef     func() string
}

// NewService wires the lifecycle service.
func NewService(repo repository.LotRepository, journal EventLister, thresholds ThresholdSource, classifier Classifier, emitter events.Emitter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:       repo,
		journal:    journal,
		thresholds: thresholds,
		classifier: classifier,
		emitter:    emitter,
		logger:     logger,
		locks:      newKeyedMutex(),
		now:        time.Now,
		newRef:     placeholderReference,
	}
}

// Register creates a lot. Re-registering an id fails with ErrDuplicateLot and leaves the first lot untouched.
func (s *Service) Register(ctx context.Context, req RegisterRequest, actor string) (models.Lot, error) {
	lotID := strings.TrimSpace(req.LotID)
	if lotID == "" {
		return models.Lot{}, fmt.Errorf("lot id is required: %w", models.ErrInvalidInput)
	}
	if req.InitialWeight < 0 {
		return models.Lot{}, fmt.Errorf("initial weight %d is negative: %w", req.InitialWeight, models.ErrInvalidInput)
	}

	unlock := s.locks.Lock(lotID)
	defer unlock()

	_, err := s.repo.GetLot(ctx, lotID)
	switch {
	case err == nil:
		return models.Lot{}, fmt.Errorf("register lot %s: %w", lotID, models.ErrDuplicateLot)
	case !errors.Is(err, models.ErrLotNotFound):
		return models.Lot{}, fmt.Errorf("register lot %s: %w", lotID, err)
	}

	now := s.now().UTC()
	lot := models.Lot{
		LotID:                 lotID,
		Variety:               req.Variety,
		RegisteredBy:          actor,
		RegistrationTimestamp: now,
		Owner:                 actor,
		InitialWeight:         models.Int64(req.InitialWeight),
		Audit:                 models.PendingAudit(now),
		Stage:                 models.StageRegistered,
		UpdatedAt:             now,
	}

	recorded, err := s.record(ctx, draft(models.EventLotRegistered, lot, actor, map[string]any{
		"variety":       lot.Variety,
		"initialWeight": req.InitialWeight,
	}))
	if err != nil {
		return models.Lot{}, fmt.Errorf("register lot %s: %w", lotID, err)
	}

	if err := s.repo.CreateLot(ctx, lot); err != nil {
		return models.Lot{}, fmt.Errorf("register lot %s: %w", lotID, err)
	}

	s.logger.Info("lot registered", zap.String("lot_id", lotID), zap.String("variety", req.Variety), zap.String("actor", actor))
	s.publish(ctx, recorded)
	return lot, nil
}

// RecordTransport stores the average transport temperature. It does not re-run the audit.
func (s *Service) RecordTransport(ctx context.Context, lotID string, tempC100 int64, actor string) (models.Lot, error) {
	return s.mutate(ctx, lotID, func(lot *models.Lot) error {
		lot.AvgTransportTemperatureC = models.Int64(tempC100)
		lot.Stage = lot.Stage.Advance(models.StageTransportRecorded)
		return nil
	}, func(lot models.Lot) []events.Draft {
		return []events.Draft{draft(models.EventTransportRecorded, lot, actor, map[string]any{
			"avgTransportTemperatureC100": tempC100,
		})}
	})
}

// RecordReception stores the received weight and re-evaluates the audit.
func (s *Service) RecordReception(ctx context.Context, lotID string, finalWeight int64, actor string) (models.Lot, error) {
	if finalWeight < 0 {
		return models.Lot{}, fmt.Errorf("final weight %d is negative: %w", finalWeight, models.ErrInvalidInput)
	}
	return s.mutate(ctx, lotID, func(lot *models.Lot) error {
		lot.FinalWeightReceived = models.Int64(finalWeight)
		lot.Stage = lot.Stage.Advance(models.StageReceptionRecorded)
		s.evaluate(lot)
		return nil
	}, func(lot models.Lot) []events.Draft {
		return []events.Draft{
			draft(models.EventReceptionRecorded, lot, actor, map[string]any{
				"finalWeightReceived": finalWeight,
			}),
			auditDraft(lot, actor),
		}
	})
}

// RecordPackaging stores the final dry matter and re-evaluates the audit.
func (s *Service) RecordPackaging(ctx context.Context, lotID string, dryMatterPct int64, actor string) (models.Lot, error) {
	if dryMatterPct < 0 {
		return models.Lot{}, fmt.Errorf("dry matter %d is negative: %w", dryMatterPct, models.ErrInvalidInput)
	}
	return s.mutate(ctx, lotID, func(lot *models.Lot) error {
		lot.FinalDryMatterPct = models.Int64(dryMatterPct)
		s.evaluate(lot)
		return nil
	}, func(lot models.Lot) []events.Draft {
		return []events.Draft{
			draft(models.EventPackagingRecorded, lot, actor, map[string]any{
				"finalDryMatterPct": dryMatterPct,
			}),
			auditDraft(lot, actor),
		}
	})
}

// Evaluate runs the audit with optional overrides. Supplied values are stored
// on the lot first; unset ones fall back to the stored measurements.
func (s *Service) Evaluate(ctx context.Context, lotID string, in audit.Input, actor string) (models.Lot, error) {
	return s.mutate(ctx, lotID, func(lot *models.Lot) error {
		if in.TemperatureC100 != nil {
			lot.AvgTransportTemperatureC = models.Int64(*in.TemperatureC100)
		}
		if in.FinalWeight != nil {
			lot.FinalWeightReceived = models.Int64(*in.FinalWeight)
		}
		if in.DryMatterPct != nil {
			lot.FinalDryMatterPct = models.Int64(*in.DryMatterPct)
		}
		s.evaluate(lot)
		return nil
	}, func(lot models.Lot) []events.Draft {
		return []events.Draft{auditDraft(lot, actor)}
	})
}

// IngestInspection classifies per-unit records and stores the breakdown on the lot.
// An empty batch is replaced by one synthetic conformant unit.
func (s *Service) IngestInspection(ctx context.Context, lotID string, records []models.UnitRecord, actor string) (models.Lot, error) {
	var fellBack bool
	return s.mutate(ctx, lotID, func(lot *models.Lot) error {
		breakdown, fb, err := s.classifier.ClassifyWithFallback(records)
		if err != nil {
			return err
		}
		if fb {
			s.logger.Warn("inspection batch was empty", zap.String("lot_id", lot.LotID))
		}
		fellBack = fb
		lot.Quality = &breakdown
		return nil
	}, func(lot models.Lot) []events.Draft {
		return []events.Draft{draft(models.EventInspectionIngested, lot, actor, map[string]any{
			"total":         lot.Quality.Total,
			"conformant":    lot.Quality.Conformant,
			"minorFindings": lot.Quality.MinorFindings,
			"notAdmitted":   lot.Quality.NotAdmitted,
			"fallback":      fellBack,
		})}
	})
}

// TransferOwnership records a value transfer. The audit verdict does not gate it.
func (s *Service) TransferOwnership(ctx context.Context, lotID string, req TransferRequest, actor string) (models.Lot, error) {
	newOwner := strings.TrimSpace(req.NewOwner)
	if newOwner == "" {
		return models.Lot{}, fmt.Errorf("new owner is required: %w", models.ErrInvalidInput)
	}
	if req.AmountUSD < 0 {
		return models.Lot{}, fmt.Errorf("amount %d is negative: %w", req.AmountUSD, models.ErrInvalidInput)
	}

	var transfer models.Transfer
	return s.mutate(ctx, lotID, func(lot *models.Lot) error {
		if !lot.Audit.Compliant {
			s.logger.Warn("transferring non-compliant lot", zap.String("lot_id", lot.LotID), zap.String("reason", string(lot.Audit.Reason.Kind)))
		}
		transfer = models.Transfer{
			From:       lot.Owner,
			To:         newOwner,
			AmountUSD:  req.AmountUSD,
			Reference:  s.newRef(),
			OccurredAt: s.now().UTC(),
		}
		lot.Transfers = append(lot.Transfers, transfer)
		lot.Owner = newOwner
		lot.Stage = lot.Stage.Advance(models.StageTransferred)
		return nil
	}, func(lot models.Lot) []events.Draft {
		return []events.Draft{draft(models.EventOwnershipTransferred, lot, actor, map[string]any{
			"from":      transfer.From,
			"to":        transfer.To,
			"amountUsd": transfer.AmountUSD,
			"reference": transfer.Reference,
		})}
	})
}

// GetLot loads one lot.
func (s *Service) GetLot(ctx context.Context, lotID string) (models.Lot, error) {
	lot, err := s.repo.GetLot(ctx, lotID)
	if err != nil {
		return models.Lot{}, fmt.Errorf("get lot %s: %w", lotID, err)
	}
	return lot, nil
}

// ListLots returns lots matching filter.
func (s *Service) ListLots(ctx context.Context, filter models.LotFilter) ([]models.Lot, error) {
	lots, err := s.repo.ListLots(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	return lots, nil
}

// ListEvents returns the journal entries of an existing lot.
func (s *Service) ListEvents(ctx context.Context, lotID string) ([]models.Event, error) {
	if _, err := s.GetLot(ctx, lotID); err != nil {
		return nil, err
	}
	evts, err := s.journal.ListEvents(ctx, lotID)
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", lotID, err)
	}
	return evts, nil
}

// mutate loads and changes a lot under its lock, journals the events built
// from the changed lot, then saves it. When journaling fails the stored lot
// is left as it was, so the call can be retried.
func (s *Service) mutate(ctx context.Context, lotID string, change func(*models.Lot) error, drafts func(models.Lot) []events.Draft) (models.Lot, error) {
	unlock := s.locks.Lock(lotID)
	defer unlock()

	lot, err := s.repo.GetLot(ctx, lotID)
	if err != nil {
		return models.Lot{}, fmt.Errorf("load lot %s: %w", lotID, err)
	}

	if err := change(&lot); err != nil {
		return models.Lot{}, fmt.Errorf("update lot %s: %w", lotID, err)
	}
	lot.UpdatedAt = s.now().UTC()

	recorded, err := s.record(ctx, drafts(lot)...)
	if err != nil {
		return models.Lot{}, fmt.Errorf("update lot %s: %w", lotID, err)
	}

	if err := s.repo.SaveLot(ctx, lot); err != nil {
		return models.Lot{}, fmt.Errorf("save lot %s: %w", lotID, err)
	}

	s.publish(ctx, recorded)
	return lot, nil
}

func (s *Service) evaluate(lot *models.Lot) {
	result := audit.Evaluate(audit.Resolve(*lot, audit.Input{}), s.thresholds.Current(), s.now().UTC())
	lot.Audit = result
	lot.Stage = lot.Stage.Advance(models.StageAudited)

	s.logger.Info("lot audited",
		zap.String("lot_id", lot.LotID),
		zap.Bool("compliant", result.Compliant),
		zap.String("reason", string(result.Reason.Kind)))
}

func (s *Service) record(ctx context.Context, drafts ...events.Draft) ([]models.Event, error) {
	if s.emitter == nil {
		return nil, nil
	}
	return s.emitter.Record(ctx, drafts...)
}

func (s *Service) publish(ctx context.Context, recorded []models.Event) {
	if s.emitter != nil && len(recorded) > 0 {
		s.emitter.Publish(ctx, recorded...)
	}
}

func draft(eventType models.EventType, lot models.Lot, actor string, payload map[string]any) events.Draft {
	return events.Draft{Type: eventType, LotID: lot.LotID, Actor: actor, Payload: payload}
}

func auditDraft(lot models.Lot, actor string) events.Draft {
	return draft(models.EventAuditEvaluated, lot, actor, map[string]any{
		"compliant": lot.Audit.Compliant,
		"kind":      string(lot.Audit.Reason.Kind),
		"reason":    lot.Audit.Reason.Detail,
	})
}

// placeholderReference stands in for a settlement hash; nothing is settled.
func placeholderReference() string {
	id := uuid.New()
	return "0x" + strings.ReplaceAll(id.String(), "-", "")
}
