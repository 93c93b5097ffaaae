package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/lottrace/internal/domain/models"
)

// Journal durably records events. AppendEvents stores the whole batch or fails.
type Journal interface {
	AppendEvents(ctx context.Context, events ...models.Event) error
}

// Notifier receives events on a best-effort basis.
type Notifier interface {
	Notify(ctx context.Context, event models.Event) error
}

// Draft is an event before it is stamped with an id and time.
type Draft struct {
	Type    models.EventType
	LotID   string
	Actor   string
	Payload map[string]any
}

// Emitter is the dependency domain services use to publish events. Services
// Record before persisting a change and Publish once the change is stored.
type Emitter interface {
	Record(ctx context.Context, drafts ...Draft) ([]models.Event, error)
	Publish(ctx context.Context, events ...models.Event)
}

// Bus stamps events, journals them and fans them out to notifiers.
type Bus struct {
	journal   Journal
	notifiers []Notifier
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// NewBus wires a bus. journal may be nil when events need not be stored.
func NewBus(journal Journal, logger *zap.Logger, notifiers ...Notifier) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		journal:   journal,
		notifiers: notifiers,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Record stamps the drafts and appends them to the journal in one batch.
// On error nothing was recorded and the caller must not apply its change.
func (b *Bus) Record(ctx context.Context, drafts ...Draft) ([]models.Event, error) {
	at := b.now().UTC()
	evts := make([]models.Event, 0, len(drafts))
	for _, d := range drafts {
		evts = append(evts, models.Event{
			ID:         b.newID(),
			Type:       d.Type,
			LotID:      d.LotID,
			Actor:      d.Actor,
			OccurredAt: at,
			Payload:    d.Payload,
		})
	}
	if len(evts) == 0 || b.journal == nil {
		return evts, nil
	}

	if err := b.journal.AppendEvents(ctx, evts...); err != nil {
		return nil, fmt.Errorf("journal %s: %w", evts[0].Type, err)
	}
	return evts, nil
}

// Publish hands recorded events to every notifier. Failures are logged only.
func (b *Bus) Publish(ctx context.Context, evts ...models.Event) {
	for _, event := range evts {
		for _, n := range b.notifiers {
			if err := n.Notify(ctx, event); err != nil {
				b.logger.Warn("event notification failed",
					zap.String("type", string(event.Type)),
					zap.String("event_id", event.ID),
					zap.Error(err))
			}
		}
		b.logger.Debug("event published", zap.String("type", string(event.Type)), zap.String("lot_id", event.LotID))
	}
}
