package repository

import (
	"context"

	"github.com/mamadbah2/lottrace/internal/domain/models"
)

// LotRepository persists lots keyed by lot id.
type LotRepository interface {
	// CreateLot stores a new lot and fails with ErrDuplicateLot if the id exists.
	CreateLot(ctx context.Context, lot models.Lot) error
	// GetLot fails with ErrLotNotFound for unknown ids.
	GetLot(ctx context.Context, lotID string) (models.Lot, error)
	// SaveLot replaces an existing lot and fails with ErrLotNotFound if absent.
	SaveLot(ctx context.Context, lot models.Lot) error
	ListLots(ctx context.Context, filter models.LotFilter) ([]models.Lot, error)
}

// ThresholdRepository persists the threshold registry snapshot.
type ThresholdRepository interface {
	// LoadThresholds returns found=false when nothing was stored yet.
	LoadThresholds(ctx context.Context) (state models.ThresholdState, found bool, err error)
	SaveThresholds(ctx context.Context, state models.ThresholdState) error
}

// EventStore is an append-only journal of domain events.
type EventStore interface {
	// AppendEvents stores the batch in order; it fails without storing any of it.
	AppendEvents(ctx context.Context, events ...models.Event) error
	ListEvents(ctx context.Context, lotID string) ([]models.Event, error)
}

// Store bundles every persistence concern of the service.
type Store interface {
	LotRepository
	ThresholdRepository
	EventStore
	Close(ctx context.Context) error
}
