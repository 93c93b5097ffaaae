package classifier

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/lottrace/internal/domain/models"
)

var statusCategories = map[string]models.QualityCategory{
	"OK":          models.CategoryConformant,
	"CONFORME":    models.CategoryConformant,
	"ALERTA":      models.CategoryMinorFinding,
	"HALLAZGO":    models.CategoryMinorFinding,
	"DESCARTE":    models.CategoryNotAdmitted,
	"NO_ADMITIDA": models.CategoryNotAdmitted,
	"RECHAZADO":   models.CategoryNotAdmitted,
}

// UnrecognizedObserver is notified for every status that falls back to conformant.
type UnrecognizedObserver interface {
	ObserveUnrecognizedStatus(status string)
}

// Classifier turns per-unit inspection records into a QualityBreakdown.
type Classifier struct {
	logger   *zap.Logger
	observer UnrecognizedObserver
}

// New constructs a classifier. observer may be nil.
func New(logger *zap.Logger, observer UnrecognizedObserver) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{logger: logger, observer: observer}
}

// Categorize maps a raw status to its category. Unknown statuses are conformant and ok is false.
func Categorize(status string) (category models.QualityCategory, ok bool) {
	normalized := strings.ToUpper(strings.TrimSpace(status))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	if category, ok := statusCategories[normalized]; ok {
		return category, true
	}
	return models.CategoryConformant, false
}

// Classify aggregates the records. It fails with ErrEmptyBatch on an empty input.
func (c *Classifier) Classify(records []models.UnitRecord) (models.QualityBreakdown, error) {
	if len(records) == 0 {
		return models.QualityBreakdown{}, models.ErrEmptyBatch
	}

	breakdown := models.QualityBreakdown{Total: len(records)}
	for _, record := range records {
		category, ok := Categorize(record.Status)
		if !ok {
			c.logger.Warn("unrecognized unit status, counted as conformant",
				zap.String("status", record.Status),
				zap.String("unit_id", record.UnitID))
			if c.observer != nil {
				c.observer.ObserveUnrecognizedStatus(record.Status)
			}
		}

		switch category {
		case models.CategoryMinorFinding:
			breakdown.MinorFindings++
		case models.CategoryNotAdmitted:
			breakdown.NotAdmitted++
		default:
			breakdown.Conformant++
		}
	}

	breakdown.Defects = defects(breakdown)
	return breakdown, nil
}

// ClassifyWithFallback classifies records, substituting a single synthetic
// conformant unit when the batch is empty. fellBack reports the substitution.
func (c *Classifier) ClassifyWithFallback(records []models.UnitRecord) (breakdown models.QualityBreakdown, fellBack bool, err error) {
	breakdown, err = c.Classify(records)
	if err == nil {
		return breakdown, false, nil
	}
	if !errors.Is(err, models.ErrEmptyBatch) {
		return models.QualityBreakdown{}, false, fmt.Errorf("classify batch: %w", err)
	}

	c.logger.Warn("empty inspection batch, substituting one conformant unit")
	breakdown, err = c.Classify([]models.UnitRecord{{UnitID: "synthetic", Status: "CONFORME"}})
	return breakdown, true, err
}

func defects(b models.QualityBreakdown) []models.Defect {
	out := make([]models.Defect, 0, 2)
	if b.MinorFindings > 0 {
		out = append(out, models.Defect{
			Name:              "hallazgo",
			Count:             b.MinorFindings,
			Severity:          models.SeverityMinor,
			PercentageOfTotal: b.MinorFindingsPct(),
		})
	}
	if b.NotAdmitted > 0 {
		out = append(out, models.Defect{
			Name:              "no_admitida",
			Count:             b.NotAdmitted,
			Severity:          models.SeverityCritical,
			PercentageOfTotal: b.NotAdmittedPct(),
		})
	}
	return out
}
