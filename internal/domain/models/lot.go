package models

import "time"

// Stage enumerates the lifecycle positions of a lot. Values are ordered.
type Stage int

const (
	StageRegistered Stage = iota + 1
	StageTransportRecorded
	StageReceptionRecorded
	StageAudited
	StageTransferred
)

var stageNames = map[Stage]string{
	StageRegistered:        "registered",
	StageTransportRecorded: "transport_recorded",
	StageReceptionRecorded: "reception_recorded",
	StageAudited:           "audited",
	StageTransferred:       "transferred",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseStage resolves a stage name; ok is false for unknown names.
func ParseStage(name string) (Stage, bool) {
	for stage, n := range stageNames {
		if n == name {
			return stage, true
		}
	}
	return 0, false
}

// Advance returns the later of the current and the next stage.
func (s Stage) Advance(next Stage) Stage {
	if next > s {
		return next
	}
	return s
}

// MarshalText encodes the stage by name.
func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a stage name.
func (s *Stage) UnmarshalText(b []byte) error {
	stage, ok := ParseStage(string(b))
	if !ok {
		return ErrInvalidInput
	}
	*s = stage
	return nil
}

// AuditKind is the category of an audit verdict.
type AuditKind string

const (
	AuditPending                 AuditKind = "pending"
	AuditCompliant               AuditKind = "compliant"
	AuditTemperatureExceeded     AuditKind = "temperature_exceeded"
	AuditWeightDeviationExceeded AuditKind = "weight_deviation_exceeded"
	AuditDryMatterInsufficient   AuditKind = "dry_matter_insufficient"
)

// AuditReason pairs a branchable kind with a human readable detail.
type AuditReason struct {
	Kind   AuditKind `bson:"kind" json:"kind"`
	Detail string    `bson:"detail" json:"detail"`
}

// AuditResult is the threshold verdict for a lot. It is always replaced whole.
type AuditResult struct {
	Compliant   bool        `bson:"compliant" json:"compliant"`
	Reason      AuditReason `bson:"reason" json:"reason"`
	EvaluatedAt time.Time   `bson:"evaluated_at" json:"evaluatedAt"`
}

// PendingAudit is the verdict assigned at registration.
func PendingAudit(at time.Time) AuditResult {
	return AuditResult{
		Compliant:   false,
		Reason:      AuditReason{Kind: AuditPending, Detail: "Pending audit"},
		EvaluatedAt: at,
	}
}

// Transfer records an ownership/value transfer. Reference is a placeholder, not a ledger hash.
type Transfer struct {
	From       string    `bson:"from" json:"from"`
	To         string    `bson:"to" json:"to"`
	AmountUSD  int64     `bson:"amount_usd" json:"amountUsd"`
	Reference  string    `bson:"reference" json:"reference"`
	OccurredAt time.Time `bson:"occurred_at" json:"occurredAt"`
}

// Lot is one harvested batch of produce tracked end-to-end.
type Lot struct {
	LotID                 string    `bson:"_id" json:"lotId"`
	Variety               string    `bson:"variety" json:"variety"`
	RegisteredBy          string    `bson:"registered_by" json:"registeredBy"`
	RegistrationTimestamp time.Time `bson:"registration_timestamp" json:"registrationTimestamp"`
	Owner                 string    `bson:"owner" json:"owner"`

	InitialWeight            *int64 `bson:"initial_weight,omitempty" json:"initialWeight,omitempty"`
	FinalWeightReceived      *int64 `bson:"final_weight_received,omitempty" json:"finalWeightReceived,omitempty"`
	AvgTransportTemperatureC *int64 `bson:"avg_transport_temperature_c100,omitempty" json:"avgTransportTemperatureC100,omitempty"` // °C x100
	FinalDryMatterPct        *int64 `bson:"final_dry_matter_pct,omitempty" json:"finalDryMatterPct,omitempty"`

	Quality   *QualityBreakdown `bson:"quality,omitempty" json:"quality,omitempty"`
	Audit     AuditResult       `bson:"audit" json:"audit"`
	Stage     Stage             `bson:"stage" json:"stage"`
	Transfers []Transfer        `bson:"transfers,omitempty" json:"transfers,omitempty"`
	UpdatedAt time.Time         `bson:"updated_at" json:"updatedAt"`
}

// LotFilter narrows lot listings. Zero fields do not filter.
type LotFilter struct {
	RegisteredBy string
	Variety      string
	Stage        Stage
	From         time.Time
	To           time.Time
}

// Matches reports whether the lot satisfies the filter.
func (f LotFilter) Matches(lot Lot) bool {
	if f.RegisteredBy != "" && lot.RegisteredBy != f.RegisteredBy {
		return false
	}
	if f.Variety != "" && lot.Variety != f.Variety {
		return false
	}
	if f.Stage != 0 && lot.Stage != f.Stage {
		return false
	}
	if !f.From.IsZero() && lot.RegistrationTimestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && lot.RegistrationTimestamp.After(f.To) {
		return false
	}
	return true
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }
