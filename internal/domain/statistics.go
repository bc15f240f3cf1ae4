package domain

import (
	"fmt"
	"time"
)

// Statistics document types.
const (
	StatTypeDetectionSource = "detectionSource"
	StatTypeUserImpact      = "userImpact"
	StatTypeIPThreats       = "ipThreats"
	StatTypeAttackTypes     = "attackTypes"
)

// StatisticsTypes lists every document type a generation run produces.
var StatisticsTypes = []string{
	StatTypeDetectionSource,
	StatTypeUserImpact,
	StatTypeIPThreats,
	StatTypeAttackTypes,
}

// Period types.
const (
	PeriodHourly  = "hourly"
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
	PeriodCustom  = "custom"
)

// StatisticsPeriod is the time window of one statistics run. Dates are RFC3339
// strings. Value object; never mutated after construction.
type StatisticsPeriod struct {
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	PeriodType string `json:"period_type"`
}

// NamedCount is one aggregate bucket (a source, user, IP or category).
type NamedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DetectionSourceStats aggregates alerts by detection source.
type DetectionSourceStats struct {
	Sources     []NamedCount `json:"sources"`
	TotalAlerts int          `json:"total_alerts"`
}

// UserImpactStats aggregates alerts by impacted user.
type UserImpactStats struct {
	TopUsers    []NamedCount `json:"top_users"`
	UniqueUsers int          `json:"unique_users"`
}

// IPThreatStats aggregates alerts by source IP.
type IPThreatStats struct {
	TopSourceIPs []NamedCount `json:"top_source_ips"`
	UniqueIPs    int          `json:"unique_ips"`
}

// AttackTypeStats aggregates alerts by category.
type AttackTypeStats struct {
	Categories  []NamedCount `json:"categories"`
	TotalAlerts int          `json:"total_alerts"`
}

// ProcessingInfo records how one statistics document was produced.
type ProcessingInfo struct {
	TotalAlertsProcessed   int        `json:"total_alerts_processed"`
	ProcessingTimeMs       int64      `json:"processing_time_ms"`
	IsInitialRun           bool       `json:"is_initial_run"`
	LastProcessedAlertDate *time.Time `json:"last_processed_alert_date,omitempty"`
}

// AlertStatisticsDocument is one aggregate-statistics document, one per
// (type, period start date). Exactly one of the four nested blocks is set,
// matching Type. Documents are never updated in place: each run upserts by ID,
// which is derived from type and period dates, so reruns over the same period
// are idempotent.
type AlertStatisticsDocument struct {
	ID              string           `json:"id"`
	Type            string           `json:"type"`
	PeriodStartDate string           `json:"period_start_date"` // date-only, partition key
	Period          StatisticsPeriod `json:"period"`

	DetectionSource *DetectionSourceStats `json:"detection_source,omitempty"`
	UserImpact      *UserImpactStats      `json:"user_impact,omitempty"`
	IPThreats       *IPThreatStats        `json:"ip_threats,omitempty"`
	AttackTypes     *AttackTypeStats      `json:"attack_types,omitempty"`

	ProcessingInfo ProcessingInfo `json:"processing_info"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

// StatisticsDocumentID derives the document id for a type and period.
func StatisticsDocumentID(statType string, start, end time.Time) string {
	return fmt.Sprintf("%s_%s_%s", statType, start.UTC().Format("2006-01-02"), end.UTC().Format("2006-01-02"))
}
