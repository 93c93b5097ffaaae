package history

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/mamadbah2/lottrace/internal/domain/models"
)

const (
	dayLayout = "2006-01-02"

	// discardThresholdPct is the not-admitted share above which a lot is discarded.
	discardThresholdPct = 15.0
)

// LotLister reads lots for aggregation.
type LotLister interface {
	ListLots(ctx context.Context, filter models.LotFilter) ([]models.Lot, error)
}

// Service computes history summaries from the lot corpus.
type Service struct {
	lots   LotLister
	logger *zap.Logger
}

// NewService wires the aggregator.
func NewService(lots LotLister, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{lots: lots, logger: logger}
}

// GetHistorySummary recomputes the summary for lots matching filter.
func (s *Service) GetHistorySummary(ctx context.Context, filter models.LotFilter) (models.HistorySummary, error) {
	lots, err := s.lots.ListLots(ctx, filter)
	if err != nil {
		return models.HistorySummary{}, fmt.Errorf("load lots for history: %w", err)
	}

	summary := Summarize(lots)
	s.logger.Debug("history summary computed",
		zap.Int("lots", len(lots)),
		zap.Int("audited", summary.TotalAudited),
		zap.Int("rejected", summary.RejectedCount))
	return summary, nil
}

// StatusOf derives the classifier status of a lot. It ignores the threshold audit.
func StatusOf(lot models.Lot) models.QualityStatus {
	if lot.Quality == nil || lot.Quality.Total == 0 {
		return models.QualityPending
	}
	q := lot.Quality
	switch {
	case q.NotAdmittedPct() > discardThresholdPct:
		return models.QualityDiscard
	case q.NotAdmittedPct() > 0 || q.MinorFindingsPct() > 0:
		return models.QualityFinding
	default:
		return models.QualityCompliant
	}
}

// Summarize aggregates lots with classifier output. Pending lots are only counted.
func Summarize(lots []models.Lot) models.HistorySummary {
	summary := models.HistorySummary{TrendSeries: []models.TrendPoint{}}

	type bucket struct {
		sum   float64
		count int
	}
	buckets := map[string]*bucket{}

	var total float64
	for _, lot := range lots {
		status := StatusOf(lot)
		switch status {
		case models.QualityPending:
			summary.PendingCount++
			continue
		case models.QualityDiscard:
			summary.BreakdownCounts.Descarte++
			summary.RejectedCount++
		case models.QualityFinding:
			summary.BreakdownCounts.Hallazgo++
		case models.QualityCompliant:
			summary.BreakdownCounts.Conforme++
		}

		pct := lot.Quality.ConformantPct()
		total += pct
		summary.TotalAudited++

		day := lot.RegistrationTimestamp.UTC().Format(dayLayout)
		b, ok := buckets[day]
		if !ok {
			b = &bucket{}
			buckets[day] = b
		}
		b.sum += pct
		b.count++
	}

	if summary.TotalAudited > 0 {
		summary.AvgConformityPct = models.Round2(total / float64(summary.TotalAudited))
	}

	for day, b := range buckets {
		summary.TrendSeries = append(summary.TrendSeries, models.TrendPoint{
			Date:             day,
			AvgConformityPct: models.Round2(b.sum / float64(b.count)),
			Lots:             b.count,
		})
	}
	sort.Slice(summary.TrendSeries, func(i, j int) bool {
		return summary.TrendSeries[i].Date < summary.TrendSeries[j].Date
	})

	return summary
}
