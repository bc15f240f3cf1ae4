package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"itsec-data/internal/domain"
	"itsec-data/internal/repository"
)

// fakeAlertsRepo returns canned aggregates; the non-aggregate methods are
// unused by the calculator.
type fakeAlertsRepo struct {
	sources    []domain.NamedCount
	topUsers   []domain.NamedCount
	topIPs     []domain.NamedCount
	categories []domain.NamedCount
	total      int
	uniqUsers  int
	uniqIPs    int
	latest     *time.Time

	aggErr error

	gotStart time.Time
	gotEnd   time.Time
	gotLimit int
}

func (f *fakeAlertsRepo) ListAlerts(ctx context.Context, filters repository.AlertFilters, page, size int) ([]*domain.Alert, int, error) {
	return nil, 0, nil
}

func (f *fakeAlertsRepo) GetAlert(ctx context.Context, alertID string) (*domain.Alert, error) {
	return nil, nil
}

func (f *fakeAlertsRepo) UpdateAlertStatus(ctx context.Context, alertID, status string) error {
	return nil
}

func (f *fakeAlertsRepo) SearchAlerts(ctx context.Context, query string, page, size int) ([]*domain.Alert, int, error) {
	return nil, 0, nil
}

func (f *fakeAlertsRepo) CountByDetectionSource(ctx context.Context, start, end time.Time) ([]domain.NamedCount, int, error) {
	f.gotStart, f.gotEnd = start, end
	return f.sources, f.total, f.aggErr
}

func (f *fakeAlertsRepo) TopUsers(ctx context.Context, start, end time.Time, limit int) ([]domain.NamedCount, int, error) {
	f.gotLimit = limit
	return f.topUsers, f.total, f.aggErr
}

func (f *fakeAlertsRepo) TopSourceIPs(ctx context.Context, start, end time.Time, limit int) ([]domain.NamedCount, int, error) {
	return f.topIPs, f.total, f.aggErr
}

func (f *fakeAlertsRepo) CountByCategory(ctx context.Context, start, end time.Time) ([]domain.NamedCount, int, error) {
	return f.categories, f.total, f.aggErr
}

func (f *fakeAlertsRepo) CountDistinctUsers(ctx context.Context, start, end time.Time) (int, error) {
	return f.uniqUsers, f.aggErr
}

func (f *fakeAlertsRepo) CountDistinctSourceIPs(ctx context.Context, start, end time.Time) (int, error) {
	return f.uniqIPs, f.aggErr
}

func (f *fakeAlertsRepo) LatestAlertTime(ctx context.Context, start, end time.Time) (*time.Time, error) {
	return f.latest, nil
}

func testPeriod() domain.StatisticsPeriod {
	return domain.StatisticsPeriod{
		StartDate:  "2026-08-01T00:00:00Z",
		EndDate:    "2026-08-30T12:00:00Z",
		PeriodType: domain.PeriodCustom,
	}
}

func TestGenerateForPeriodProducesAllFourTypes(t *testing.T) {
	latest := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	repo := &fakeAlertsRepo{
		sources:    []domain.NamedCount{{Name: "windowsDefenderAtp", Count: 7}},
		topUsers:   []domain.NamedCount{{Name: "alice@example.com", Count: 4}},
		topIPs:     []domain.NamedCount{{Name: "10.0.0.9", Count: 3}},
		categories: []domain.NamedCount{{Name: "Malware", Count: 6}},
		total:      12,
		uniqUsers:  5,
		uniqIPs:    4,
		latest:     &latest,
	}
	calc := NewAlertStatsCalculator(repo, zap.NewNop())

	results, err := calc.GenerateForPeriod(context.Background(), testPeriod(), true)
	require.NoError(t, err)
	require.Len(t, results, 4)

	byType := map[string]*domain.AlertStatisticsDocument{}
	for _, r := range results {
		byType[r.Document.Type] = r.Document
		assert.Equal(t, 12, r.AlertsProcessed)
	}

	ds := byType[domain.StatTypeDetectionSource]
	require.NotNil(t, ds)
	assert.Equal(t, "detectionSource_2026-08-01_2026-08-30", ds.ID)
	assert.Equal(t, "2026-08-01", ds.PeriodStartDate)
	require.NotNil(t, ds.DetectionSource)
	assert.Equal(t, 12, ds.DetectionSource.TotalAlerts)
	assert.Nil(t, ds.UserImpact)
	assert.Nil(t, ds.IPThreats)
	assert.Nil(t, ds.AttackTypes)
	assert.True(t, ds.ProcessingInfo.IsInitialRun)
	require.NotNil(t, ds.ProcessingInfo.LastProcessedAlertDate)
	assert.Equal(t, latest, *ds.ProcessingInfo.LastProcessedAlertDate)

	ui := byType[domain.StatTypeUserImpact]
	require.NotNil(t, ui)
	require.NotNil(t, ui.UserImpact)
	assert.Equal(t, 5, ui.UserImpact.UniqueUsers)
	assert.Equal(t, repo.topUsers, ui.UserImpact.TopUsers)

	ip := byType[domain.StatTypeIPThreats]
	require.NotNil(t, ip)
	require.NotNil(t, ip.IPThreats)
	assert.Equal(t, 4, ip.IPThreats.UniqueIPs)

	at := byType[domain.StatTypeAttackTypes]
	require.NotNil(t, at)
	require.NotNil(t, at.AttackTypes)
	assert.Equal(t, repo.categories, at.AttackTypes.Categories)

	// The top lists are bounded.
	assert.Equal(t, statsTopN, repo.gotLimit)
	assert.Equal(t, "2026-08-01T00:00:00Z", repo.gotStart.Format(time.RFC3339))
}

func TestGenerateForPeriodRejectsBadDates(t *testing.T) {
	calc := NewAlertStatsCalculator(&fakeAlertsRepo{}, zap.NewNop())

	_, err := calc.GenerateForPeriod(context.Background(), domain.StatisticsPeriod{
		StartDate: "not-a-date",
		EndDate:   "2026-08-30T12:00:00Z",
	}, false)

	assert.Error(t, err)
}

func TestGenerateForPeriodPropagatesAggregateErrors(t *testing.T) {
	repo := &fakeAlertsRepo{aggErr: errors.New("query failed")}
	calc := NewAlertStatsCalculator(repo, zap.NewNop())

	_, err := calc.GenerateForPeriod(context.Background(), testPeriod(), false)

	assert.Error(t, err)
}
