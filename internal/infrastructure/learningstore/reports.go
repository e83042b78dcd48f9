package learningstore

import (
	"slices"

	"github.com/meatlens/backend/internal/domain"
)

const defaultReportLimit = 20

// newestReports filters reports by site and orders them newest first. Reports
// generated at the same instant keep the later one first.
func newestReports(reports []domain.LearningReport, site string, limit int) []domain.LearningReport {
	if limit <= 0 {
		limit = defaultReportLimit
	}

	out := make([]domain.LearningReport, 0, len(reports))
	for i := len(reports) - 1; i >= 0; i-- {
		if site == "" || reports[i].Site == site {
			out = append(out, reports[i])
		}
	}
	slices.SortStableFunc(out, func(a, b domain.LearningReport) int {
		return b.GeneratedAt.Compare(a.GeneratedAt)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
