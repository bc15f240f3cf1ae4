package service

import (
	"context"
	"fmt"
	"time"

	"itsec-data/internal/domain"
	"itsec-data/internal/repository"

	"go.uber.org/zap"
)

// statsTopN bounds the top-users and top-IPs lists.
const statsTopN = 10

// AlertStatsCalculator computes the four statistics document types from the
// alerts stored in the database.
type AlertStatsCalculator struct {
	alerts repository.AlertsRepository
	logger *zap.Logger
}

func NewAlertStatsCalculator(alerts repository.AlertsRepository, logger *zap.Logger) *AlertStatsCalculator {
	return &AlertStatsCalculator{alerts: alerts, logger: logger}
}

// GenerateForPeriod computes one document per statistics type over the period.
func (c *AlertStatsCalculator) GenerateForPeriod(ctx context.Context, period domain.StatisticsPeriod, isInitialRun bool) ([]StatisticsTypeResult, error) {
	start, err := time.Parse(time.RFC3339, period.StartDate)
	if err != nil {
		return nil, fmt.Errorf("invalid period start date %q: %w", period.StartDate, err)
	}
	end, err := time.Parse(time.RFC3339, period.EndDate)
	if err != nil {
		return nil, fmt.Errorf("invalid period end date %q: %w", period.EndDate, err)
	}

	lastAlert, err := c.alerts.LatestAlertTime(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest alert time: %w", err)
	}

	results := make([]StatisticsTypeResult, 0, len(domain.StatisticsTypes))
	for _, statType := range domain.StatisticsTypes {
		t0 := time.Now()

		doc := &domain.AlertStatisticsDocument{
			ID:              domain.StatisticsDocumentID(statType, start, end),
			Type:            statType,
			PeriodStartDate: start.UTC().Format("2006-01-02"),
			Period:          period,
			GeneratedAt:     time.Now().UTC(),
		}

		var processed int
		switch statType {
		case domain.StatTypeDetectionSource:
			sources, total, err := c.alerts.CountByDetectionSource(ctx, start, end)
			if err != nil {
				return nil, fmt.Errorf("failed to aggregate detection sources: %w", err)
			}
			doc.DetectionSource = &domain.DetectionSourceStats{Sources: sources, TotalAlerts: total}
			processed = total

		case domain.StatTypeUserImpact:
			top, total, err := c.alerts.TopUsers(ctx, start, end, statsTopN)
			if err != nil {
				return nil, fmt.Errorf("failed to aggregate impacted users: %w", err)
			}
			unique, err := c.alerts.CountDistinctUsers(ctx, start, end)
			if err != nil {
				return nil, fmt.Errorf("failed to count distinct users: %w", err)
			}
			doc.UserImpact = &domain.UserImpactStats{TopUsers: top, UniqueUsers: unique}
			processed = total

		case domain.StatTypeIPThreats:
			top, total, err := c.alerts.TopSourceIPs(ctx, start, end, statsTopN)
			if err != nil {
				return nil, fmt.Errorf("failed to aggregate source IPs: %w", err)
			}
			unique, err := c.alerts.CountDistinctSourceIPs(ctx, start, end)
			if err != nil {
				return nil, fmt.Errorf("failed to count distinct IPs: %w", err)
			}
			doc.IPThreats = &domain.IPThreatStats{TopSourceIPs: top, UniqueIPs: unique}
			processed = total

		case domain.StatTypeAttackTypes:
			categories, total, err := c.alerts.CountByCategory(ctx, start, end)
			if err != nil {
				return nil, fmt.Errorf("failed to aggregate categories: %w", err)
			}
			doc.AttackTypes = &domain.AttackTypeStats{Categories: categories, TotalAlerts: total}
			processed = total
		}

		ms := time.Since(t0).Milliseconds()
		doc.ProcessingInfo = domain.ProcessingInfo{
			TotalAlertsProcessed:   processed,
			ProcessingTimeMs:       ms,
			IsInitialRun:           isInitialRun,
			LastProcessedAlertDate: lastAlert,
		}

		results = append(results, StatisticsTypeResult{
			Document:         doc,
			AlertsProcessed:  processed,
			ProcessingTimeMs: ms,
		})

		c.logger.Debug("Computed statistics document",
			zap.String("type", statType),
			zap.String("id", doc.ID),
			zap.Int("alerts_processed", processed),
		)
	}

	return results, nil
}
