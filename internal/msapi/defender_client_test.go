package msapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDefenderClient(serverURL string, pageSize int) *DefenderClient {
	return &DefenderClient{
		http:     resty.New().SetHeader("Accept", "application/json"),
		tokens:   newTokenSource(serverURL+"/token", "client", "secret", "scope"),
		baseURL:  serverURL,
		pageSize: pageSize,
		logger:   zap.NewNop(),
	}
}

func TestFetchAllMachinesPagesWithSkip(t *testing.T) {
	// 5 machines served in pages of 2; the short last page ends the loop.
	var skips []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			writeToken(w)
		case "/api/machines":
			require.Equal(t, "2", r.URL.Query().Get("$top"))
			skip, _ := strconv.Atoi(r.URL.Query().Get("$skip"))
			skips = append(skips, skip)

			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"value":[`)
			for i := skip; i < skip+2 && i < 5; i++ {
				if i > skip {
					fmt.Fprint(w, ",")
				}
				fmt.Fprintf(w, `{"id":"m%d","computerDnsName":"host%d.corp"}`, i, i)
			}
			fmt.Fprint(w, `]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := newTestDefenderClient(server.URL, 2)
	records, metrics, err := c.FetchAllMachines(context.Background())

	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, "m0", records[0].ID)
	assert.Equal(t, "host0.corp", records[0].Name)
	assert.Equal(t, []int{0, 2, 4}, skips)
	assert.Equal(t, 3, metrics.APICalls)
	assert.Equal(t, 3, metrics.Pages)
}

func TestFetchAllMachinesStopsOnExactBoundary(t *testing.T) {
	// 4 machines, page size 2: the third page is empty and ends the loop.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			writeToken(w)
			return
		}
		skip, _ := strconv.Atoi(r.URL.Query().Get("$skip"))
		w.Header().Set("Content-Type", "application/json")
		if skip >= 4 {
			fmt.Fprint(w, `{"value":[]}`)
			return
		}
		fmt.Fprintf(w, `{"value":[{"id":"m%d"},{"id":"m%d"}]}`, skip, skip+1)
	}))
	defer server.Close()

	c := newTestDefenderClient(server.URL, 2)
	records, metrics, err := c.FetchAllMachines(context.Background())

	require.NoError(t, err)
	assert.Len(t, records, 4)
	assert.Equal(t, 3, metrics.Pages)
}

func TestFetchAllMachinesAbortsOnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			writeToken(w)
			return
		}
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	c := newTestDefenderClient(server.URL, 2)
	records, _, err := c.FetchAllMachines(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Nil(t, records)
}
