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

// graphPage is one page of a Graph collection. NextLink is an absolute URL
// carrying the continuation cursor; empty on the last page.
type graphPage struct {
	NextLink string            `json:"@odata.nextLink"`
	Value    []json.RawMessage `json:"value"`
}

// GraphClient fetches Intune managed devices from Microsoft Graph.
type GraphClient struct {
	http     *resty.Client
	tokens   *tokenSource
	baseURL  string
	pageSize int
	logger   *zap.Logger
}

func NewGraphClient(cfg *config.GraphConfig, logger *zap.Logger) *GraphClient {
	client := resty.New().
		SetTimeout(60 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetHeader("Accept", "application/json")

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}

	return &GraphClient{
		http:     client,
		tokens:   newTokenSource(cfg.TokenURL(), cfg.ClientID, cfg.ClientSecret, cfg.Scope),
		baseURL:  cfg.BaseURL,
		pageSize: pageSize,
		logger:   logger,
	}
}

// FetchAllManagedDevices exhausts the managed-devices collection by following
// @odata.nextLink. Any page failure aborts the whole fetch; the partial pages
// read so far are discarded.
func (c *GraphClient) FetchAllManagedDevices(ctx context.Context) ([]domain.DeviceRecord, FetchMetrics, error) {
	var metrics FetchMetrics

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, metrics, fmt.Errorf("failed to get Graph access token: %w", err)
	}

	url := fmt.Sprintf("%s/deviceManagement/managedDevices?$top=%d", c.baseURL, c.pageSize)
	records := []domain.DeviceRecord{}

	for url != "" {
		var page graphPage

		start := time.Now()
		resp, err := c.http.R().
			SetContext(ctx).
			SetHeader("Authorization", "Bearer "+token).
			SetResult(&page).
			Get(url)
		metrics.APICalls++
		metrics.RequestTimeMs += time.Since(start).Milliseconds()

		if err != nil {
			return nil, metrics, fmt.Errorf("failed to fetch managed devices page: %w", err)
		}
		if resp.IsError() {
			return nil, metrics, fmt.Errorf("managed devices request returned %d: %s", resp.StatusCode(), resp.String())
		}

		metrics.Pages++
		records = append(records, toDeviceRecords(page.Value)...)

		c.logger.Debug("Fetched managed devices page",
			zap.Int("page", metrics.Pages),
			zap.Int("page_items", len(page.Value)),
			zap.Int("total_so_far", len(records)),
		)

		url = page.NextLink
	}

	c.logger.Info("Fetched managed devices from Graph",
		zap.Int("devices", len(records)),
		zap.Int("pages", metrics.Pages),
		zap.Int64("request_time_ms", metrics.RequestTimeMs),
	)

	return records, metrics, nil
}
