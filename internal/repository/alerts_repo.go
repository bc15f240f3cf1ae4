package repository

import (
	"context"
	"time"

	"itsec-data/internal/domain"
)

// AlertFilters filters alert listings. All fields optional.
type AlertFilters struct {
	Severity        []string
	Status          string
	Category        string
	DetectionSource string
	SearchKeyword   string // case-insensitive substring on title
	From            *time.Time
	To              *time.Time
}

// AlertsRepository reads alert documents for the API surface and exposes the
// time-windowed aggregates the statistics calculator is built on.
type AlertsRepository interface {
	ListAlerts(ctx context.Context, filters AlertFilters, page, size int) ([]*domain.Alert, int, error)
	GetAlert(ctx context.Context, alertID string) (*domain.Alert, error)
	UpdateAlertStatus(ctx context.Context, alertID, status string) error

	// SearchAlerts runs a full-text query over title, category and threat
	// family name.
	SearchAlerts(ctx context.Context, query string, page, size int) ([]*domain.Alert, int, error)

	// Period aggregates. Each returns the buckets plus the total number of
	// alerts in the window.
	CountByDetectionSource(ctx context.Context, start, end time.Time) ([]domain.NamedCount, int, error)
	TopUsers(ctx context.Context, start, end time.Time, limit int) ([]domain.NamedCount, int, error)
	TopSourceIPs(ctx context.Context, start, end time.Time, limit int) ([]domain.NamedCount, int, error)
	CountByCategory(ctx context.Context, start, end time.Time) ([]domain.NamedCount, int, error)
	CountDistinctUsers(ctx context.Context, start, end time.Time) (int, error)
	CountDistinctSourceIPs(ctx context.Context, start, end time.Time) (int, error)

	// LatestAlertTime returns the newest creation time in the window, or nil
	// when the window is empty.
	LatestAlertTime(ctx context.Context, start, end time.Time) (*time.Time, error)
}
