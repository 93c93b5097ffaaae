package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mamadbah2/lottrace/internal/domain/models"
)

// Store is an in-memory implementation of repository.Store.
// Lots are deep-copied on the way in and out so callers never share state.
type Store struct {
	mu         sync.RWMutex
	lots       map[string]models.Lot
	thresholds *models.ThresholdState
	events     []models.Event
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{lots: map[string]models.Lot{}}
}

func (s *Store) CreateLot(_ context.Context, lot models.Lot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.lots[lot.LotID]; exists {
		return models.ErrDuplicateLot
	}
	s.lots[lot.LotID] = cloneLot(lot)
	return nil
}

func (s *Store) GetLot(_ context.Context, lotID string) (models.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lot, ok := s.lots[lotID]
	if !ok {
		return models.Lot{}, models.ErrLotNotFound
	}
	return cloneLot(lot), nil
}

func (s *Store) SaveLot(_ context.Context, lot models.Lot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lots[lot.LotID]; !ok {
		return models.ErrLotNotFound
	}
	s.lots[lot.LotID] = cloneLot(lot)
	return nil
}

// ListLots returns matching lots ordered by registration time, then id.
func (s *Store) ListLots(_ context.Context, filter models.LotFilter) ([]models.Lot, error) {
	s.mu.RLock()
	out := make([]models.Lot, 0, len(s.lots))
	for _, lot := range s.lots {
		if filter.Matches(lot) {
			out = append(out, cloneLot(lot))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].RegistrationTimestamp.Equal(out[j].RegistrationTimestamp) {
			return out[i].LotID < out[j].LotID
		}
		return out[i].RegistrationTimestamp.Before(out[j].RegistrationTimestamp)
	})
	return out, nil
}

func (s *Store) LoadThresholds(_ context.Context) (models.ThresholdState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.thresholds == nil {
		return models.ThresholdState{}, false, nil
	}
	return *s.thresholds, true, nil
}

func (s *Store) SaveThresholds(_ context.Context, state models.ThresholdState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.thresholds = &state
	return nil
}

func (s *Store) AppendEvents(_ context.Context, events ...models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, events...)
	return nil
}

// ListEvents returns the events for lotID in append order. An empty id returns every event.
func (s *Store) ListEvents(_ context.Context, lotID string) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Event, 0)
	for _, event := range s.events {
		if lotID == "" || event.LotID == lotID {
			out = append(out, event)
		}
	}
	return out, nil
}

func (s *Store) Close(context.Context) error { return nil }

func cloneLot(lot models.Lot) models.Lot {
	out := lot
	out.InitialWeight = cloneInt(lot.InitialWeight)
	out.FinalWeightReceived = cloneInt(lot.FinalWeightReceived)
	out.AvgTransportTemperatureC = cloneInt(lot.AvgTransportTemperatureC)
	out.FinalDryMatterPct = cloneInt(lot.FinalDryMatterPct)
	if lot.Quality != nil {
		q := *lot.Quality
		q.Defects = append([]models.Defect(nil), lot.Quality.Defects...)
		out.Quality = &q
	}
	if lot.Transfers != nil {
		out.Transfers = append([]models.Transfer(nil), lot.Transfers...)
	}
	return out
}

func cloneInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
