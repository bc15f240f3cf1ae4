package repository

import (
	"context"

	"itsec-data/internal/domain"
)

// StatisticsFilters filters statistics listings. All fields optional.
type StatisticsFilters struct {
	Type      string
	StartDate string // date-only, inclusive
	EndDate   string // date-only, inclusive
}

// StatisticsRepository stores alert-statistics documents. Upserts are keyed by
// document id so regenerating a period is idempotent.
type StatisticsRepository interface {
	UpsertStatistics(ctx context.Context, doc *domain.AlertStatisticsDocument) error
	ListStatistics(ctx context.Context, filters StatisticsFilters, page, size int) ([]*domain.AlertStatisticsDocument, int, error)
}
