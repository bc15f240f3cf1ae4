// Package msapi holds the Microsoft Graph and Defender REST clients the sync
// pipeline fetches device inventories through.
package msapi

import (
	"encoding/json"
	"strings"

	"itsec-data/internal/domain"
)

// FetchMetrics are the side-channel counters a full inventory fetch reports:
// HTTP calls made, pages consumed and cumulative request latency.
type FetchMetrics struct {
	APICalls      int
	Pages         int
	RequestTimeMs int64
}

// deviceEnvelope extracts the source-native id and display name from a raw
// device document. Graph uses deviceName, Defender uses computerDnsName.
type deviceEnvelope struct {
	ID              string `json:"id"`
	DeviceName      string `json:"deviceName"`
	ComputerDNSName string `json:"computerDnsName"`
}

func toDeviceRecords(items []json.RawMessage) []domain.DeviceRecord {
	records := make([]domain.DeviceRecord, 0, len(items))
	for _, item := range items {
		var env deviceEnvelope
		if err := json.Unmarshal(item, &env); err != nil || env.ID == "" {
			// A document with no id cannot be upserted; skip it rather than
			// failing the whole page.
			continue
		}
		name := env.DeviceName
		if name == "" {
			name = env.ComputerDNSName
		}
		records = append(records, domain.DeviceRecord{
			ID:   strings.TrimSpace(env.ID),
			Name: name,
			Raw:  item,
		})
	}
	return records
}
