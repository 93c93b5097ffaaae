package thresholds

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/lottrace/internal/domain/models"
	"github.com/mamadbah2/lottrace/internal/service/events"
)

// Store persists registry snapshots.
type Store interface {
	LoadThresholds(ctx context.Context) (models.ThresholdState, bool, error)
	SaveThresholds(ctx context.Context, state models.ThresholdState) error
}

// Registry holds the current audit thresholds. Only the owner may replace them,
// and all three values always change together.
type Registry struct {
	mu      sync.RWMutex
	state   models.ThresholdState
	owner   string
	store   Store
	emitter events.Emitter
	logger  *zap.Logger
	now     func() time.Time
}

// NewRegistry initializes the registry with the supplied values at version 1.
// store and emitter may be nil.
func NewRegistry(owner string, initial models.Thresholds, store Store, emitter events.Emitter, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		owner:   owner,
		store:   store,
		emitter: emitter,
		logger:  logger,
		now:     time.Now,
	}
	r.state = models.ThresholdState{
		Thresholds: initial,
		Version:    1,
		UpdatedBy:  owner,
		UpdatedAt:  r.now().UTC(),
	}
	return r
}

// Open restores the last persisted snapshot, or seeds the store with initial
// when nothing was persisted yet.
func Open(ctx context.Context, owner string, initial models.Thresholds, store Store, emitter events.Emitter, logger *zap.Logger) (*Registry, error) {
	r := NewRegistry(owner, initial, store, emitter, logger)
	if store == nil {
		return r, nil
	}

	state, found, err := store.LoadThresholds(ctx)
	if err != nil {
		return nil, fmt.Errorf("load thresholds: %w", err)
	}
	if found {
		r.state = state
		r.logger.Info("thresholds restored", zap.Int64("version", state.Version), zap.String("updated_by", state.UpdatedBy))
		return r, nil
	}

	if err := store.SaveThresholds(ctx, r.state); err != nil {
		return nil, fmt.Errorf("seed thresholds: %w", err)
	}
	return r, nil
}

// Owner returns the identity allowed to update thresholds.
func (r *Registry) Owner() string { return r.owner }

// Current returns a consistent copy of the active thresholds.
func (r *Registry) Current() models.Thresholds {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Thresholds
}

// Snapshot returns the thresholds with their version metadata.
func (r *Registry) Snapshot() models.ThresholdState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Update replaces all thresholds atomically. Non-owners get ErrPermissionDenied.
func (r *Registry) Update(ctx context.Context, next models.Thresholds, actor string) (models.ThresholdState, error) {
	if actor == "" || actor != r.owner {
		r.logger.Warn("threshold update rejected", zap.String("actor", actor))
		return models.ThresholdState{}, fmt.Errorf("update thresholds as %q: %w", actor, models.ErrPermissionDenied)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	state := models.ThresholdState{
		Thresholds: next,
		Version:    r.state.Version + 1,
		UpdatedBy:  actor,
		UpdatedAt:  r.now().UTC(),
	}

	var recorded []models.Event
	if r.emitter != nil {
		var err error
		recorded, err = r.emitter.Record(ctx, events.Draft{
			Type:  models.EventThresholdsUpdated,
			Actor: actor,
			Payload: map[string]any{
				"maxTransportTempC100":  next.MaxTransportTempC100,
				"maxWeightDeviationPct": next.MaxWeightDeviationPct,
				"minDryMatterPct":       next.MinDryMatterPct,
				"version":               state.Version,
			},
		})
		if err != nil {
			return models.ThresholdState{}, fmt.Errorf("record thresholds update: %w", err)
		}
	}

	if r.store != nil {
		if err := r.store.SaveThresholds(ctx, state); err != nil {
			return models.ThresholdState{}, fmt.Errorf("persist thresholds: %w", err)
		}
	}
	r.state = state

	if r.emitter != nil {
		r.emitter.Publish(ctx, recorded...)
	}

	r.logger.Info("thresholds updated",
		zap.String("actor", actor),
		zap.Int64("version", state.Version),
		zap.Int64("max_transport_temp_c100", next.MaxTransportTempC100),
		zap.Int64("max_weight_deviation_pct", next.MaxWeightDeviationPct),
		zap.Int64("min_dry_matter_pct", next.MinDryMatterPct))

	return state, nil
}
