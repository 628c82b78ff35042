// Package extract is the client for the external browser-driven
// extractor service. All scraping heuristics live on the other side of
// this boundary; the client only fetches pages and hands over
// structured listings with the raw payload preserved.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"jobmatch-engine/internal/domain"
)

type Config struct {
	BaseURL        string
	RequestsPerSec float64
	Burst          int
	Timeout        time.Duration
}

type Client struct {
	cfg     Config
	hc      *http.Client
	limiter *HostLimiter
}

func New(cfg Config) *Client {
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:     cfg,
		hc:      &http.Client{Timeout: cfg.Timeout},
		limiter: NewHostLimiter(cfg.RequestsPerSec, cfg.Burst),
	}
}

func (c *Client) Name() string { return "extractor" }

// pageListing is the extractor's wire format for one listing.
type pageListing struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Salary      string `json:"salary"`
	Description string `json:"description"`
	PostedAt    string `json:"posted_at"`
}

// FetchPage asks the extractor for one result page of a search term.
func (c *Client) FetchPage(ctx context.Context, term string, page int) ([]domain.Listing, error) {
	endpoint := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/search?" + url.Values{
		"q":    {term},
		"page": {strconv.Itoa(page)},
	}.Encode()

	if err := c.limiter.WaitURL(ctx, endpoint); err != nil {
		return nil, err
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	req.Header.Set("User-Agent", "jobmatch-engine/1.0 (+local)")
	req.Header.Set("Accept", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extractor get page: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("extractor page status %d", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("extractor read page: %w", err)
	}

	// keep every listing's original payload byte-for-byte
	var rawItems []json.RawMessage
	if err := json.Unmarshal(body, &rawItems); err != nil {
		return nil, fmt.Errorf("extractor parse page: %w", err)
	}

	out := make([]domain.Listing, 0, len(rawItems))
	for _, raw := range rawItems {
		var p pageListing
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("extractor parse listing: %w", err)
		}
		l := domain.Listing{
			URL:         strings.TrimSpace(p.URL),
			Title:       strings.TrimSpace(p.Title),
			Company:     strings.TrimSpace(p.Company),
			Location:    strings.TrimSpace(p.Location),
			Salary:      strings.TrimSpace(p.Salary),
			Description: p.Description,
			Raw:         raw,
		}
		if ts, err := time.Parse(time.RFC3339, p.PostedAt); err == nil {
			l.PostedAt = &ts
		}
		out = append(out, l)
	}
	return out, nil
}
