package audit

import (
	"fmt"
	"math"
	"math/bits"
	"time"

	"github.com/mamadbah2/lottrace/internal/domain/models"
)

// CompliantDetail is the reason detail of a passing audit.
const CompliantDetail = "Lot compliant. Meets all thresholds."

// Input carries optional measurements for one evaluation. A nil field falls
// back to the value stored on the lot.
type Input struct {
	TemperatureC100 *int64 `json:"avgTransportTemperatureC100,omitempty"`
	FinalWeight     *int64 `json:"finalWeight,omitempty"`
	DryMatterPct    *int64 `json:"dryMatterPct,omitempty"`
}

// Measurements are the values an evaluation actually checks.
type Measurements struct {
	TemperatureC100 *int64
	InitialWeight   int64
	FinalWeight     int64
	DryMatterPct    int64
}

// Resolve merges the input over the lot's stored measurements.
func Resolve(lot models.Lot, in Input) Measurements {
	m := Measurements{
		TemperatureC100: pick(in.TemperatureC100, lot.AvgTransportTemperatureC),
		InitialWeight:   valueOf(lot.InitialWeight),
		FinalWeight:     valueOf(pick(in.FinalWeight, lot.FinalWeightReceived)),
		DryMatterPct:    valueOf(pick(in.DryMatterPct, lot.FinalDryMatterPct)),
	}
	return m
}

// Evaluate checks the measurements against the thresholds. The first failing
// check decides the verdict; checks lacking data are skipped.
func Evaluate(m Measurements, t models.Thresholds, at time.Time) models.AuditResult {
	result := models.AuditResult{EvaluatedAt: at}

	if m.TemperatureC100 != nil && *m.TemperatureC100 > t.MaxTransportTempC100 {
		result.Reason = models.AuditReason{
			Kind: models.AuditTemperatureExceeded,
			Detail: fmt.Sprintf("Transport temperature %s°C exceeds maximum %s°C",
				formatHundredths(*m.TemperatureC100), formatHundredths(t.MaxTransportTempC100)),
		}
		return result
	}

	if m.InitialWeight > 0 && m.FinalWeight > 0 {
		deviation := DeviationHundredths(m.InitialWeight, m.FinalWeight)
		if deviation > limitHundredths(t.MaxWeightDeviationPct) {
			result.Reason = models.AuditReason{
				Kind: models.AuditWeightDeviationExceeded,
				Detail: fmt.Sprintf("Weight deviation %s%% exceeds maximum %d%%",
					formatHundredths(deviation), t.MaxWeightDeviationPct),
			}
			return result
		}
	}

	if m.DryMatterPct > 0 && m.DryMatterPct < t.MinDryMatterPct {
		result.Reason = models.AuditReason{
			Kind:   models.AuditDryMatterInsufficient,
			Detail: fmt.Sprintf("Dry matter %d%% below minimum %d%%", m.DryMatterPct, t.MinDryMatterPct),
		}
		return result
	}

	result.Compliant = true
	result.Reason = models.AuditReason{Kind: models.AuditCompliant, Detail: CompliantDetail}
	return result
}

// DeviationHundredths returns |initial-final|/initial*100 in hundredths of a
// percent, truncated and capped at math.MaxInt64. A non-positive initial weight
// yields 0.
func DeviationHundredths(initial, final int64) int64 {
	if initial <= 0 {
		return 0
	}
	var diff uint64
	if final <= initial {
		diff = uint64(initial) - uint64(final)
	} else {
		diff = uint64(final) - uint64(initial)
	}
	hi, lo := bits.Mul64(diff, 10000)
	if hi >= uint64(initial) {
		return math.MaxInt64
	}
	q, _ := bits.Div64(hi, lo, uint64(initial))
	if q > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(q)
}

// limitHundredths converts a whole-percent limit to hundredths, saturating.
func limitHundredths(pct int64) int64 {
	switch {
	case pct > math.MaxInt64/100:
		return math.MaxInt64
	case pct < math.MinInt64/100:
		return math.MinInt64
	default:
		return pct * 100
	}
}

func formatHundredths(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func pick(in, stored *int64) *int64 {
	if in != nil {
		return in
	}
	return stored
}

func valueOf(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
