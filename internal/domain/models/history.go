package models

// QualityStatus is the classifier-derived status of a lot, independent of the threshold audit.
type QualityStatus string

const (
	QualityPending   QualityStatus = "pending"
	QualityCompliant QualityStatus = "conforme"
	QualityFinding   QualityStatus = "hallazgo"
	QualityDiscard   QualityStatus = "descarte"
)

// TrendPoint is the mean conformity of lots registered on one day.
type TrendPoint struct {
	Date             string  `json:"date"`
	AvgConformityPct float64 `json:"avgConformityPct"`
	Lots             int     `json:"lots"`
}

// BreakdownCounts counts lots per classifier status.
type BreakdownCounts struct {
	Descarte int `json:"descarte"`
	Hallazgo int `json:"hallazgo"`
	Conforme int `json:"conforme"`
}

// HistorySummary is a reporting artifact recomputed on every query.
type HistorySummary struct {
	AvgConformityPct float64         `json:"avgConformityPct"`
	RejectedCount    int             `json:"rejectedCount"`
	TotalAudited     int             `json:"totalAudited"`
	PendingCount     int             `json:"pendingCount"`
	TrendSeries      []TrendPoint    `json:"trendSeries"`
	BreakdownCounts  BreakdownCounts `json:"breakdownCounts"`
}
