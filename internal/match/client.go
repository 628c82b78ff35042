package match

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"jobmatch-engine/internal/domain"
)

// Client calls the external evaluator over HTTP. The API key comes from
// the OS keychain (internal/secrets), never from config.
type Client struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: 90 * time.Second},
	}
}

type evaluateRequest struct {
	CVSummary string          `json:"cv_summary"`
	Job       json.RawMessage `json:"job"`
}

// Evaluate submits one listing. 429 and 5xx map to ErrTransient so the
// recorder retries them; 4xx are permanent for this item.
func (c *Client) Evaluate(ctx context.Context, cvSummary string, l domain.Listing) (domain.Evaluation, error) {
	raw := l.Raw
	if raw == nil {
		b, err := json.Marshal(map[string]string{
			"url": l.URL, "title": l.Title, "company": l.Company, "description": l.Description,
		})
		if err != nil {
			return domain.Evaluation{}, fmt.Errorf("evaluator encode job: %w", err)
		}
		raw = b
	}

	body, err := json.Marshal(evaluateRequest{CVSummary: cvSummary, Job: raw})
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("evaluator encode request: %w", err)
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/evaluate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500:
		return domain.Evaluation{}, fmt.Errorf("%w: evaluator status %d", ErrTransient, res.StatusCode)
	case res.StatusCode >= 400:
		return domain.Evaluation{}, fmt.Errorf("evaluator status %d", res.StatusCode)
	}

	var eval domain.Evaluation
	if err := json.NewDecoder(res.Body).Decode(&eval); err != nil {
		return domain.Evaluation{}, fmt.Errorf("evaluator decode response: %w", err)
	}
	return eval, nil
}
