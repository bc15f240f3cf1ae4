package service

import (
	"context"
	"fmt"
	"time"

	"itsec-data/internal/domain"
	"itsec-data/internal/repository"

	"go.uber.org/zap"
)

// statisticsFloorDate is the historical floor an initial run reaches back to.
var statisticsFloorDate = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// StatisticsTypeResult is what the calculator returns for one statistics type.
type StatisticsTypeResult struct {
	Document         *domain.AlertStatisticsDocument
	AlertsProcessed  int
	ProcessingTimeMs int64
}

// StatisticsCalculator computes the statistics documents for a period, one
// per type, in a single invocation.
type StatisticsCalculator interface {
	GenerateForPeriod(ctx context.Context, period domain.StatisticsPeriod, isInitialRun bool) ([]StatisticsTypeResult, error)
}

// PeriodResolution is the outcome of deciding what window a run covers.
type PeriodResolution struct {
	IsInitialRun bool
	Period       domain.StatisticsPeriod
}

// StatisticsRunItem is the per-type summary in a generation result.
type StatisticsRunItem struct {
	Type             string `json:"type"`
	AlertsProcessed  int    `json:"alerts_processed"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
	ID               string `json:"id"`
}

// StatisticsGenerationResult is the outcome of one generation run. Run never
// returns an error to its trigger; failures are carried in Error.
type StatisticsGenerationResult struct {
	Success               bool                    `json:"success"`
	IsInitialRun          bool                    `json:"is_initial_run"`
	Period                domain.StatisticsPeriod `json:"period"`
	TypesGenerated        []string                `json:"types_generated"`
	TotalAlertsProcessed  int                     `json:"total_alerts_processed"`
	TotalProcessingTimeMs int64                   `json:"total_processing_time_ms"`
	Results               []StatisticsRunItem     `json:"results"`
	Error                 string                  `json:"error,omitempty"`
}

// StatisticsService resolves the run period and drives statistics generation.
type StatisticsService struct {
	statsRepo  repository.StatisticsRepository
	calculator StatisticsCalculator
	logger     *zap.Logger
	now        func() time.Time
}

func NewStatisticsService(statsRepo repository.StatisticsRepository, calculator StatisticsCalculator, logger *zap.Logger) *StatisticsService {
	return &StatisticsService{
		statsRepo:  statsRepo,
		calculator: calculator,
		logger:     logger,
		now:        time.Now,
	}
}

// ResolvePeriod decides whether this run is the historical initial run or a
// daily incremental one, by probing whether any statistics document exists.
// A probe failure conservatively means initial run: reprocessing history is
// safe (upserts are idempotent), silently skipping it is not.
func (s *StatisticsService) ResolvePeriod(ctx context.Context) PeriodResolution {
	now := s.now().UTC()

	items, _, err := s.statsRepo.ListStatistics(ctx, repository.StatisticsFilters{}, 1, 1)
	if err != nil {
		s.logger.Warn("Statistics existence probe failed, assuming initial run", zap.Error(err))
	}
	if err != nil || len(items) == 0 {
		return PeriodResolution{
			IsInitialRun: true,
			Period: domain.StatisticsPeriod{
				StartDate:  statisticsFloorDate.Format(time.RFC3339),
				EndDate:    now.Format(time.RFC3339),
				PeriodType: domain.PeriodCustom,
			},
		}
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return PeriodResolution{
		IsInitialRun: false,
		Period: domain.StatisticsPeriod{
			StartDate:  dayStart.Format(time.RFC3339),
			EndDate:    now.Format(time.RFC3339),
			PeriodType: domain.PeriodDaily,
		},
	}
}

// Run resolves the period, generates all statistics types and persists each
// document. The trigger (timer or HTTP) always gets a result, never an error.
func (s *StatisticsService) Run(ctx context.Context) (result *StatisticsGenerationResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Statistics run failed unexpectedly", zap.Any("panic", r))
			result = s.failureResult(fmt.Errorf("unexpected error: %v", r))
		}
	}()

	resolution := s.ResolvePeriod(ctx)

	items, err := s.calculator.GenerateForPeriod(ctx, resolution.Period, resolution.IsInitialRun)
	if err != nil {
		s.logger.Error("Statistics calculation failed",
			zap.Bool("is_initial_run", resolution.IsInitialRun), zap.Error(err))
		return s.failureResult(err)
	}

	result = &StatisticsGenerationResult{
		Success:      true,
		IsInitialRun: resolution.IsInitialRun,
		Period:       resolution.Period,
		Results:      []StatisticsRunItem{},
	}

	for _, it := range items {
		if err := s.statsRepo.UpsertStatistics(ctx, it.Document); err != nil {
			s.logger.Error("Failed to persist statistics document",
				zap.String("id", it.Document.ID), zap.Error(err))
			return s.failureResult(err)
		}
		result.TypesGenerated = append(result.TypesGenerated, it.Document.Type)
		result.TotalAlertsProcessed += it.AlertsProcessed
		result.TotalProcessingTimeMs += it.ProcessingTimeMs
		result.Results = append(result.Results, StatisticsRunItem{
			Type:             it.Document.Type,
			AlertsProcessed:  it.AlertsProcessed,
			ProcessingTimeMs: it.ProcessingTimeMs,
			ID:               it.Document.ID,
		})
	}

	s.logger.Info("Statistics generation finished",
		zap.Bool("is_initial_run", result.IsInitialRun),
		zap.Strings("types_generated", result.TypesGenerated),
		zap.Int("total_alerts_processed", result.TotalAlertsProcessed),
		zap.Int64("total_processing_time_ms", result.TotalProcessingTimeMs),
	)
	return result
}

func (s *StatisticsService) failureResult(err error) *StatisticsGenerationResult {
	return &StatisticsGenerationResult{
		Success: false,
		Period:  domain.StatisticsPeriod{PeriodType: domain.PeriodCustom},
		Results: []StatisticsRunItem{},
		Error:   err.Error(),
	}
}
