package domain

import (
	"database/sql"
	"time"
)

// RiskDetection is an identity-protection risk detection (risk_detections table).
type RiskDetection struct {
	DetectionID       string         `db:"detection_id"`
	RiskEventType     string         `db:"risk_event_type"`
	RiskLevel         string         `db:"risk_level"` // low|medium|high|hidden
	RiskState         string         `db:"risk_state"`
	UserPrincipalName sql.NullString `db:"user_principal_name"`
	IPAddress         sql.NullString `db:"ip_address"`
	Location          sql.NullString `db:"location"`
	DetectedDateTime  time.Time      `db:"detected_date_time"`
	Payload           sql.NullString `db:"payload"` // JSONB
}

// ToJSON converts the detection for HTTP responses.
func (d *RiskDetection) ToJSON() map[string]any {
	m := map[string]any{
		"detection_id":       d.DetectionID,
		"risk_event_type":    d.RiskEventType,
		"risk_level":         d.RiskLevel,
		"risk_state":         d.RiskState,
		"detected_date_time": d.DetectedDateTime,
	}
	if d.UserPrincipalName.Valid {
		m["user_principal_name"] = d.UserPrincipalName.String
	}
	if d.IPAddress.Valid {
		m["ip_address"] = d.IPAddress.String
	}
	if d.Location.Valid {
		m["location"] = d.Location.String
	}
	return m
}
