package repository

import (
	"context"

	"itsec-data/internal/domain"
)

// VulnerabilityFilters filters vulnerability listings. All fields optional.
type VulnerabilityFilters struct {
	Severity      string
	MinCVSS       float64
	PublicExploit *bool
	SearchKeyword string // case-insensitive substring on CVE id or name
}

// VulnerabilitiesRepository reads CVE records.
type VulnerabilitiesRepository interface {
	ListVulnerabilities(ctx context.Context, filters VulnerabilityFilters, page, size int) ([]*domain.Vulnerability, int, error)
	GetVulnerability(ctx context.Context, cveID string) (*domain.Vulnerability, error)
}
