package msapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// expirySlack renews tokens this long before they actually expire.
const expirySlack = 60 * time.Second

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// tokenSource fetches and caches an OAuth2 client-credentials token for one
// resource scope. Safe for concurrent use.
type tokenSource struct {
	client       *resty.Client
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string

	mu     sync.Mutex
	token  string
	expiry time.Time
	now    func() time.Time
}

func newTokenSource(tokenURL, clientID, clientSecret, scope string) *tokenSource {
	client := resty.New().
		SetTimeout(15 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second)

	return &tokenSource{
		client:       client,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		scope:        scope,
		now:          time.Now,
	}
}

// AccessToken returns the cached token, fetching a new one when missing or
// within the expiry slack.
func (t *tokenSource) AccessToken(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && t.now().Add(expirySlack).Before(t.expiry) {
		return t.token, nil
	}

	var tok tokenResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     t.clientID,
			"client_secret": t.clientSecret,
			"scope":         t.scope,
		}).
		SetResult(&tok).
		Post(t.tokenURL)
	if err != nil {
		return "", fmt.Errorf("failed to request access token: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode(), resp.String())
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned an empty access token")
	}

	t.token = tok.AccessToken
	t.expiry = t.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return t.token, nil
}
