package warehance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Client issues paginated requests against the Warehance REST API. It retries
// transient failures (network errors, 5xx, 429) a bounded number of times with
// increasing backoff; everything else surfaces immediately as *APIError.
type Client struct {
	baseURL    string
	apiKey     string
	apiKeyHdr  string
	http       *http.Client
	maxRetries int
	retryDelay time.Duration
}

// ClientConfig zero values fall back to env (WAREHANCE_API_BASE_URL,
// WAREHANCE_API_KEY_HEADER, WAREHANCE_MAX_RETRIES) and then to defaults.
type ClientConfig struct {
	BaseURL      string
	APIKey       string
	APIKeyHeader string
	Timeout      time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
}

func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = strings.TrimSpace(os.Getenv("WAREHANCE_API_BASE_URL"))
	}
	if baseURL == "" {
		baseURL = "https://api.warehance.com/v1"
	}
	apiKeyHeader := strings.TrimSpace(cfg.APIKeyHeader)
	if apiKeyHeader == "" {
		apiKeyHeader = strings.TrimSpace(os.Getenv("WAREHANCE_API_KEY_HEADER"))
	}
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-KEY"
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("WAREHANCE_API_KEY"))
	}
	if apiKey == "" {
		return nil, fmt.Errorf("warehance api key is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
		if v := strings.TrimSpace(os.Getenv("WAREHANCE_MAX_RETRIES")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				maxRetries = n
			}
		}
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiKeyHdr:  apiKeyHeader,
		http:       &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}, nil
}

// FetchReturns fetches one page of GET /returns?limit&offset and returns the
// page plus the upstream-reported total count.
func (c *Client) FetchReturns(ctx context.Context, offset int, limit int) (*ReturnsPage, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	var envelope listEnvelope
	if err := c.getJSON(ctx, "/returns", params, &envelope); err != nil {
		return nil, err
	}
	if envelope.Status != statusSuccess {
		return nil, &APIError{Status: envelope.Status, Message: nonEmpty(envelope.Message, "non-success payload status")}
	}
	return &ReturnsPage{
		Returns:    envelope.Data.Returns,
		TotalCount: envelope.Data.TotalCount,
	}, nil
}

// FetchOrder fetches GET /orders/{id} for the customer-name enrichment pass.
func (c *Client) FetchOrder(ctx context.Context, orderID int64) (*OrderDetail, error) {
	var envelope orderEnvelope
	if err := c.getJSON(ctx, "/orders/"+strconv.FormatInt(orderID, 10), nil, &envelope); err != nil {
		return nil, err
	}
	if envelope.Status != statusSuccess {
		return nil, &APIError{Status: envelope.Status, Message: nonEmpty(envelope.Message, "non-success payload status")}
	}
	return &envelope.Data, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries+1; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return &TransientError{Attempts: attempt - 1, Err: ctx.Err()}
			case <-time.After(c.retryDelay * time.Duration(attempt-1)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set(c.apiKeyHdr, c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("http %d: %s", resp.StatusCode, truncateBody(body))
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &APIError{StatusCode: resp.StatusCode, Message: truncateBody(body)}
		}
		if err := json.Unmarshal(body, out); err != nil {
			return &APIError{StatusCode: resp.StatusCode, Message: "malformed response: " + err.Error()}
		}
		return nil
	}
	return &TransientError{Attempts: c.maxRetries + 1, Err: lastErr}
}

func truncateBody(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) > 500 {
		body = body[:500]
	}
	return string(body)
}

func nonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
