package domain

import (
	"encoding/json"
	"time"
)

// DeviceRecord is the unit the sync pipeline moves: the source-native id and
// display name plus the unmodified source document. The pipeline never edits
// the payload, it only copies it in and upserts it.
type DeviceRecord struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Raw  json.RawMessage `json:"raw"`
}

// DeviceDoc is a stored device document (either source) as read back from the
// database for the API surface.
type DeviceDoc struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Payload  json.RawMessage `json:"payload"`
	SyncedAt time.Time       `json:"synced_at"`
}

// ManagedDevice is the typed projection of an Intune managed device payload,
// used where individual fields are needed (filters, Excel export).
type ManagedDevice struct {
	ID                string `json:"id"`
	DeviceName        string `json:"deviceName"`
	OperatingSystem   string `json:"operatingSystem"`
	OSVersion         string `json:"osVersion"`
	ComplianceState   string `json:"complianceState"`
	ManagementAgent   string `json:"managementAgent"`
	UserPrincipalName string `json:"userPrincipalName"`
	SerialNumber      string `json:"serialNumber"`
	EnrolledDateTime  string `json:"enrolledDateTime"`
	LastSyncDateTime  string `json:"lastSyncDateTime"`
}

// DefenderDevice is the typed projection of a Defender machine payload.
type DefenderDevice struct {
	ID              string `json:"id"`
	ComputerDNSName string `json:"computerDnsName"`
	OSPlatform      string `json:"osPlatform"`
	OSVersion       string `json:"version"`
	HealthStatus    string `json:"healthStatus"`
	RiskScore       string `json:"riskScore"`
	ExposureLevel   string `json:"exposureLevel"`
	LastIPAddress   string `json:"lastIpAddress"`
	FirstSeen       string `json:"firstSeen"`
	LastSeen        string `json:"lastSeen"`
}
