package reporting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/lottrace/internal/domain/models"
	repo "github.com/mamadbah2/lottrace/internal/repository/sheets"
)

const (
	dateLayout        = "2006-01-02"
	historySheet      = "History"
	historyWriteRange = "History!A:H"
	historyDaysRange  = "History!A:A"
)

var historyHeader = []interface{}{
	"day", "total_audited", "avg_conformity_pct", "rejected", "conforme", "hallazgo", "descarte", "pending",
}

// SummaryProvider computes history summaries.
type SummaryProvider interface {
	GetHistorySummary(ctx context.Context, filter models.LotFilter) (models.HistorySummary, error)
}

// Service exports daily history snapshots. A nil sheet repository turns
// exports into log-only snapshots.
type Service struct {
	repo     repo.Repository
	history  SummaryProvider
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time

	mu         sync.Mutex
	sheetReady bool
}

// NewService wires a new reporting service instance.
func NewService(repository repo.Repository, history SummaryProvider, location *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &Service{
		repo:     repository,
		history:  history,
		location: location,
		logger:   logger,
		now:      time.Now,
	}
}

// ExportDailySnapshot appends today's summary row unless today was already exported.
func (s *Service) ExportDailySnapshot(ctx context.Context) (bool, error) {
	summary, err := s.history.GetHistorySummary(ctx, models.LotFilter{})
	if err != nil {
		return false, fmt.Errorf("compute history snapshot: %w", err)
	}

	day := s.now().In(s.location).Format(dateLayout)
	s.logger.Info("history snapshot", zap.String("day", day), zap.String("summary", FormatSummary(summary)))

	if s.repo == nil {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sheetReady {
		if err := s.repo.EnsureSheet(ctx, historySheet, historyHeader); err != nil {
			return false, fmt.Errorf("prepare history sheet: %w", err)
		}
		s.sheetReady = true
	}

	rows, err := s.repo.ReadRange(ctx, historyDaysRange)
	if err != nil {
		return false, fmt.Errorf("load exported days: %w", err)
	}
	for _, row := range rows {
		if len(row) > 0 && fmt.Sprint(row[0]) == day {
			s.logger.Debug("snapshot already exported", zap.String("day", day))
			return false, nil
		}
	}

	values := []interface{}{
		day,
		summary.TotalAudited,
		summary.AvgConformityPct,
		summary.RejectedCount,
		summary.BreakdownCounts.Conforme,
		summary.BreakdownCounts.Hallazgo,
		summary.BreakdownCounts.Descarte,
		summary.PendingCount,
	}
	if err := s.repo.WriteRow(ctx, historyWriteRange, values); err != nil {
		return false, fmt.Errorf("export snapshot for %s: %w", day, err)
	}
	return true, nil
}

// FormatSummary renders a one-line description of a summary.
func FormatSummary(summary models.HistorySummary) string {
	if summary.TotalAudited == 0 {
		return fmt.Sprintf("History: no classified lots yet (%d pending).", summary.PendingCount)
	}
	return fmt.Sprintf("History: %d lots, avg conformity %.2f%%, %d rejected (conforme %d, hallazgo %d, descarte %d), %d pending.",
		summary.TotalAudited,
		summary.AvgConformityPct,
		summary.RejectedCount,
		summary.BreakdownCounts.Conforme,
		summary.BreakdownCounts.Hallazgo,
		summary.BreakdownCounts.Descarte,
		summary.PendingCount)
}
