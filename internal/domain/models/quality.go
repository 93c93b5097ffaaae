package models

import "math"

// UnitRecord is one inspected unit as delivered by the ingestion collaborator.
type UnitRecord struct {
	UnitID string `json:"unitId,omitempty"`
	Status string `json:"status"`
	Defect string `json:"defect,omitempty"`
}

// QualityCategory groups inspection statuses.
type QualityCategory string

const (
	CategoryConformant   QualityCategory = "conformant"
	CategoryMinorFinding QualityCategory = "minor_finding"
	CategoryNotAdmitted  QualityCategory = "not_admitted"
)

// Severity of a defect entry.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityCritical Severity = "critical"
)

// Defect summarizes one non-conformant category of a breakdown.
type Defect struct {
	Name              string   `bson:"name" json:"name"`
	Count             int      `bson:"count" json:"count"`
	Severity          Severity `bson:"severity" json:"severity"`
	PercentageOfTotal float64  `bson:"percentage_of_total" json:"percentageOfTotal"`
}

// QualityBreakdown aggregates per-unit inspection statuses for one lot.
// Only the counts are stored; percentages are derived on demand.
type QualityBreakdown struct {
	Total         int      `bson:"total" json:"total"`
	Conformant    int      `bson:"conformant" json:"conformant"`
	MinorFindings int      `bson:"minor_findings" json:"minorFindings"`
	NotAdmitted   int      `bson:"not_admitted" json:"notAdmitted"`
	Defects       []Defect `bson:"defects" json:"defects"`
}

// ConformantPct returns the conformant share of the batch.
func (q QualityBreakdown) ConformantPct() float64 { return Percentage(q.Conformant, q.Total) }

// MinorFindingsPct returns the minor-finding share of the batch.
func (q QualityBreakdown) MinorFindingsPct() float64 { return Percentage(q.MinorFindings, q.Total) }

// NotAdmittedPct returns the not-admitted share of the batch.
func (q QualityBreakdown) NotAdmittedPct() float64 { return Percentage(q.NotAdmitted, q.Total) }

// Percentage computes count/total*100 rounded half-up to two decimals.
// The rounding is done in integer hundredths so results are exact.
func Percentage(count, total int) float64 {
	if total <= 0 || count <= 0 {
		return 0
	}
	hundredths := (int64(count)*20000 + int64(total)) / (2 * int64(total))
	return float64(hundredths) / 100
}

// Round2 rounds v half-up to two decimals.
func Round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
