package domain

import (
	"database/sql"
	"time"
)

// Vulnerability is a CVE record from the Defender vulnerability management API
// (vulnerabilities table).
type Vulnerability struct {
	CVEID           string         `db:"cve_id"`
	Name            string         `db:"name"`
	Description     sql.NullString `db:"description"`
	Severity        string         `db:"severity"` // Low|Medium|High|Critical
	CVSSScore       float64        `db:"cvss_score"`
	ExposedMachines int            `db:"exposed_machines"`
	PublishedOn     time.Time      `db:"published_on"`
	UpdatedOn       sql.NullTime   `db:"updated_on"`
	PublicExploit   bool           `db:"public_exploit"`
}

// ToJSON converts the vulnerability for HTTP responses.
func (v *Vulnerability) ToJSON() map[string]any {
	m := map[string]any{
		"cve_id":           v.CVEID,
		"name":             v.Name,
		"severity":         v.Severity,
		"cvss_score":       v.CVSSScore,
		"exposed_machines": v.ExposedMachines,
		"published_on":     v.PublishedOn,
		"public_exploit":   v.PublicExploit,
	}
	if v.Description.Valid {
		m["description"] = v.Description.String
	}
	if v.UpdatedOn.Valid {
		m["updated_on"] = v.UpdatedOn.Time
	}
	return m
}
