package domain

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Alert is a security alert as surfaced by the Defender API (alerts table).
// The typed columns are the fields the API filters and the statistics
// calculator aggregate on; Payload keeps the full source document.
type Alert struct {
	AlertID           string         `db:"alert_id"`
	Title             string         `db:"title"`
	Severity          string         `db:"severity"` // informational|low|medium|high
	Status            string         `db:"status"`   // new|inProgress|resolved
	Category          string         `db:"category"`
	DetectionSource   string         `db:"detection_source"`
	ThreatFamilyName  sql.NullString `db:"threat_family_name"`
	UserPrincipalName sql.NullString `db:"user_principal_name"`
	SourceIP          sql.NullString `db:"source_ip"`
	MachineID         sql.NullString `db:"machine_id"`
	CreationTime      time.Time      `db:"creation_time"`
	ResolvedTime      sql.NullTime   `db:"resolved_time"`
	Payload           sql.NullString `db:"payload"` // JSONB
}

// ToJSON converts the alert for HTTP responses.
func (a *Alert) ToJSON() map[string]any {
	m := map[string]any{
		"alert_id":         a.AlertID,
		"title":            a.Title,
		"severity":         a.Severity,
		"status":           a.Status,
		"category":         a.Category,
		"detection_source": a.DetectionSource,
		"creation_time":    a.CreationTime,
	}
	if a.ThreatFamilyName.Valid {
		m["threat_family_name"] = a.ThreatFamilyName.String
	}
	if a.UserPrincipalName.Valid {
		m["user_principal_name"] = a.UserPrincipalName.String
	}
	if a.SourceIP.Valid {
		m["source_ip"] = a.SourceIP.String
	}
	if a.MachineID.Valid {
		m["machine_id"] = a.MachineID.String
	}
	if a.ResolvedTime.Valid {
		m["resolved_time"] = a.ResolvedTime.Time
	}
	if a.Payload.Valid {
		var payload any
		if err := json.Unmarshal([]byte(a.Payload.String), &payload); err == nil {
			m["payload"] = payload
		}
	}
	return m
}
