package repository

import (
	"context"

	"itsec-data/internal/domain"
)

// RiskDetectionFilters filters risk-detection listings. All fields optional.
type RiskDetectionFilters struct {
	RiskLevel     string
	RiskState     string
	SearchKeyword string // case-insensitive substring on user principal name
}

// RiskDetectionsRepository reads identity-protection risk detections.
type RiskDetectionsRepository interface {
	ListRiskDetections(ctx context.Context, filters RiskDetectionFilters, page, size int) ([]*domain.RiskDetection, int, error)
	GetRiskDetection(ctx context.Context, detectionID string) (*domain.RiskDetection, error)
}
