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

type fakeStatsRepo struct {
	listItems []*domain.AlertStatisticsDocument
	listErr   error
	upsertErr error
	upserted  []*domain.AlertStatisticsDocument
}

func (f *fakeStatsRepo) UpsertStatistics(ctx context.Context, doc *domain.AlertStatisticsDocument) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, doc)
	return nil
}

func (f *fakeStatsRepo) ListStatistics(ctx context.Context, filters repository.StatisticsFilters, page, size int) ([]*domain.AlertStatisticsDocument, int, error) {
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	return f.listItems, len(f.listItems), nil
}

type fakeCalculator struct {
	results []StatisticsTypeResult
	err     error
	panics  bool

	gotPeriod     domain.StatisticsPeriod
	gotInitialRun bool
}

func (f *fakeCalculator) GenerateForPeriod(ctx context.Context, period domain.StatisticsPeriod, isInitialRun bool) ([]StatisticsTypeResult, error) {
	f.gotPeriod = period
	f.gotInitialRun = isInitialRun
	if f.panics {
		panic("calculator exploded")
	}
	return f.results, f.err
}

func fixedNow() time.Time {
	return time.Date(2026, 8, 30, 15, 30, 0, 0, time.UTC)
}

func newTestStatsService(repo *fakeStatsRepo, calc *fakeCalculator) *StatisticsService {
	s := NewStatisticsService(repo, calc, zap.NewNop())
	s.now = fixedNow
	return s
}

func calcResult(statType string, processed int) StatisticsTypeResult {
	start := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	end := fixedNow()
	return StatisticsTypeResult{
		Document: &domain.AlertStatisticsDocument{
			ID:   domain.StatisticsDocumentID(statType, start, end),
			Type: statType,
		},
		AlertsProcessed:  processed,
		ProcessingTimeMs: 5,
	}
}

func TestResolvePeriodInitialWhenEmpty(t *testing.T) {
	svc := newTestStatsService(&fakeStatsRepo{}, &fakeCalculator{})

	res := svc.ResolvePeriod(context.Background())

	assert.True(t, res.IsInitialRun)
	assert.Equal(t, domain.PeriodCustom, res.Period.PeriodType)
	assert.Equal(t, "2020-01-01T00:00:00Z", res.Period.StartDate)
	assert.Equal(t, "2026-08-30T15:30:00Z", res.Period.EndDate)
}

func TestResolvePeriodInitialWhenProbeFails(t *testing.T) {
	svc := newTestStatsService(&fakeStatsRepo{listErr: errors.New("probe failed")}, &fakeCalculator{})

	res := svc.ResolvePeriod(context.Background())

	// A failed probe falls back to the initial run: reprocessing is
	// idempotent, skipping history is not.
	assert.True(t, res.IsInitialRun)
	assert.Equal(t, domain.PeriodCustom, res.Period.PeriodType)
}

func TestResolvePeriodDailyWhenDocumentsExist(t *testing.T) {
	repo := &fakeStatsRepo{listItems: []*domain.AlertStatisticsDocument{{ID: "existing"}}}
	svc := newTestStatsService(repo, &fakeCalculator{})

	res := svc.ResolvePeriod(context.Background())

	assert.False(t, res.IsInitialRun)
	assert.Equal(t, domain.PeriodDaily, res.Period.PeriodType)
	assert.Equal(t, "2026-08-30T00:00:00Z", res.Period.StartDate)
	assert.Equal(t, "2026-08-30T15:30:00Z", res.Period.EndDate)
}

func TestRunGeneratesAndPersistsAllTypes(t *testing.T) {
	calc := &fakeCalculator{results: []StatisticsTypeResult{
		calcResult(domain.StatTypeDetectionSource, 10),
		calcResult(domain.StatTypeUserImpact, 10),
		calcResult(domain.StatTypeIPThreats, 10),
		calcResult(domain.StatTypeAttackTypes, 10),
	}}
	repo := &fakeStatsRepo{}
	svc := newTestStatsService(repo, calc)

	res := svc.Run(context.Background())

	require.True(t, res.Success)
	assert.True(t, res.IsInitialRun)
	assert.True(t, calc.gotInitialRun)
	assert.Equal(t, domain.StatisticsTypes, res.TypesGenerated)
	assert.Equal(t, 40, res.TotalAlertsProcessed)
	assert.Equal(t, int64(20), res.TotalProcessingTimeMs)
	require.Len(t, res.Results, 4)
	assert.Equal(t, "detectionSource_2026-08-30_2026-08-30", res.Results[0].ID)
	assert.Len(t, repo.upserted, 4)
}

func TestRunCalculatorErrorBecomesFailureResult(t *testing.T) {
	calc := &fakeCalculator{err: errors.New("aggregation failed")}
	svc := newTestStatsService(&fakeStatsRepo{}, calc)

	res := svc.Run(context.Background())

	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, "aggregation failed", res.Error)
	assert.Zero(t, res.TotalAlertsProcessed)
	assert.Equal(t, domain.PeriodCustom, res.Period.PeriodType)
	assert.Empty(t, res.Period.StartDate)
	assert.Empty(t, res.Period.EndDate)
}

func TestRunUpsertErrorBecomesFailureResult(t *testing.T) {
	calc := &fakeCalculator{results: []StatisticsTypeResult{calcResult(domain.StatTypeDetectionSource, 3)}}
	repo := &fakeStatsRepo{upsertErr: errors.New("write failed")}
	svc := newTestStatsService(repo, calc)

	res := svc.Run(context.Background())

	assert.False(t, res.Success)
	assert.Equal(t, "write failed", res.Error)
}

func TestRunRecoversFromPanic(t *testing.T) {
	calc := &fakeCalculator{panics: true}
	svc := newTestStatsService(&fakeStatsRepo{}, calc)

	res := svc.Run(context.Background())

	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "calculator exploded")
}
