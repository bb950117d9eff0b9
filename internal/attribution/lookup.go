package attribution

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/StevenVC-P/autographreader/internal/config"
)

const lookupUserAgent = "Mozilla/5.0"

// LookupClient queries a Wikidata-style entity-search endpoint
// (wbsearchentities) and takes the first result's label as canonical.
type LookupClient struct {
	endpoint string
	language string
	client   *http.Client
}

// NewLookupClient builds a client with the configured endpoint and a bounded
// request timeout.
func NewLookupClient(cfg config.LookupConfig) *LookupClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LookupClient{
		endpoint: cfg.Endpoint,
		language: cfg.Language,
		client:   &http.Client{Timeout: timeout},
	}
}

type searchResponse struct {
	Search []struct {
		Label string `json:"label"`
	} `json:"search"`
}

// Search looks the raw query up and returns the first result's label.
// found is false when the endpoint answered with no usable results.
func (c *LookupClient) Search(ctx context.Context, query string) (label string, found bool, err error) {
	params := url.Values{}
	params.Set("action", "wbsearchentities")
	params.Set("format", "json")
	params.Set("language", c.language)
	params.Set("search", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", false, fmt.Errorf("build lookup request: %w", err)
	}
	req.Header.Set("User-Agent", lookupUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("entity search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("entity search: unexpected status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", false, fmt.Errorf("decode lookup response: %w", err)
	}

	if len(body.Search) == 0 {
		return "", false, nil
	}
	label = strings.TrimSpace(body.Search[0].Label)
	if label == "" {
		return "", false, nil
	}
	return label, true, nil
}
