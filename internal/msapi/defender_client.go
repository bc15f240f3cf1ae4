package msapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"itsec-data/internal/config"
	"itsec-data/internal/domain"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// defenderPage is one page of a Defender collection. Defender paginates with
// $skip/$top; a page shorter than the requested size is the last one.
type defenderPage struct {
	Value []json.RawMessage `json:"value"`
}

// DefenderClient fetches machines from the Microsoft Defender for Endpoint API.
type DefenderClient struct {
	http     *resty.Client
	tokens   *tokenSource
	baseURL  string
	pageSize int
	logger   *zap.Logger
}

func NewDefenderClient(cfg *config.DefenderConfig, logger *zap.Logger) *DefenderClient {
	client := resty.New().
		SetTimeout(120 * time.Second). // pages of up to 10k machines take a while
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetHeader("Accept", "application/json")

	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > 10000 {
		pageSize = 10000
	}

	return &DefenderClient{
		http:     client,
		tokens:   newTokenSource(cfg.TokenURL(), cfg.ClientID, cfg.ClientSecret, cfg.Scope),
		baseURL:  cfg.BaseURL,
		pageSize: pageSize,
		logger:   logger,
	}
}

// FetchAllMachines exhausts the machines collection with $skip/$top paging.
// Any page failure aborts the whole fetch.
func (c *DefenderClient) FetchAllMachines(ctx context.Context) ([]domain.DeviceRecord, FetchMetrics, error) {
	var metrics FetchMetrics

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, metrics, fmt.Errorf("failed to get Defender access token: %w", err)
	}

	records := []domain.DeviceRecord{}
	skip := 0

	for {
		url := fmt.Sprintf("%s/api/machines?$top=%d&$skip=%d", c.baseURL, c.pageSize, skip)

		var page defenderPage

		start := time.Now()
		resp, err := c.http.R().
			SetContext(ctx).
			SetHeader("Authorization", "Bearer "+token).
			SetResult(&page).
			Get(url)
		metrics.APICalls++
		metrics.RequestTimeMs += time.Since(start).Milliseconds()

		if err != nil {
			return nil, metrics, fmt.Errorf("failed to fetch machines page at offset %d: %w", skip, err)
		}
		if resp.IsError() {
			return nil, metrics, fmt.Errorf("machines request returned %d: %s", resp.StatusCode(), resp.String())
		}

		metrics.Pages++
		records = append(records, toDeviceRecords(page.Value)...)

		c.logger.Debug("Fetched machines page",
			zap.Int("page", metrics.Pages),
			zap.Int("page_items", len(page.Value)),
			zap.Int("total_so_far", len(records)),
		)

		if len(page.Value) < c.pageSize {
			break
		}
		skip += c.pageSize
	}

	c.logger.Info("Fetched machines from Defender",
		zap.Int("devices", len(records)),
		zap.Int("pages", metrics.Pages),
		zap.Int64("request_time_ms", metrics.RequestTimeMs),
	)

	return records, metrics, nil
}
