package models

import "time"

// EventType names a domain event.
type EventType string

const (
	EventLotRegistered        EventType = "lot.registered"
	EventTransportRecorded    EventType = "lot.transport_recorded"
	EventReceptionRecorded    EventType = "lot.reception_recorded"
	EventPackagingRecorded    EventType = "lot.packaging_recorded"
	EventInspectionIngested   EventType = "lot.inspection_ingested"
	EventAuditEvaluated       EventType = "lot.audit_evaluated"
	EventOwnershipTransferred EventType = "lot.ownership_transferred"
	EventThresholdsUpdated    EventType = "thresholds.updated"
)

// Event is emitted by every state-changing operation.
type Event struct {
	ID         string         `bson:"_id" json:"id"`
	Type       EventType      `bson:"type" json:"type"`
	LotID      string         `bson:"lot_id,omitempty" json:"lotId,omitempty"`
	Actor      string         `bson:"actor,omitempty" json:"actor,omitempty"`
	OccurredAt time.Time      `bson:"occurred_at" json:"occurredAt"`
	Payload    map[string]any `bson:"payload,omitempty" json:"payload,omitempty"`
}
