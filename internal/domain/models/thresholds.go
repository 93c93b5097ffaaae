package models

import "time"

// Thresholds is the full set of audit limits. Zero values are literal limits.
type Thresholds struct {
	MaxTransportTempC100  int64 `bson:"max_transport_temp_c100" json:"maxTransportTempC100"`
	MaxWeightDeviationPct int64 `bson:"max_weight_deviation_pct" json:"maxWeightDeviationPct"`
	MinDryMatterPct       int64 `bson:"min_dry_matter_pct" json:"minDryMatterPct"`
}

// ThresholdState is the persisted registry snapshot.
type ThresholdState struct {
	Thresholds Thresholds `bson:"thresholds" json:"thresholds"`
	Version    int64      `bson:"version" json:"version"`
	UpdatedBy  string     `bson:"updated_by" json:"updatedBy"`
	UpdatedAt  time.Time  `bson:"updated_at" json:"updatedAt"`
}
