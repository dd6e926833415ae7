package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
)

const maxResponseSizeBytes = 2 << 20

// ErrEmptyResponse is returned when an endpoint that must carry a payload answers
// with an empty 2xx body.
var ErrEmptyResponse = errors.New("data source returned an empty response")

type Config struct {
	URL     string        `envconfig:"URL" split_words:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	Latency time.Duration `envconfig:"LATENCY" split_words:"true" default:"0s"`
}

// Remote reports whether the config points at a real data gateway.
func (c Config) Remote() bool {
	return strings.TrimSpace(c.URL) != ""
}

type ClientOption func(*Client)

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// Client talks to a data gateway that fronts the company registry, routing, market,
// telephony and carrier safety providers.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var (
	_ contractx.ExternalDataSource = (*Client)(nil)
	_ contractx.HealthChecker      = (*Client)(nil)
)

func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("data source url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid data source url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL: baseURL,
		token:   strings.TrimSpace(cfg.Token),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *Client) Check(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil)
}

func (c *Client) FetchCompany(ctx context.Context, name string) (contractx.CompanyProfile, error) {
	var out contractx.CompanyProfile
	err := c.do(ctx, http.MethodGet, "/companies/"+url.PathEscape(strings.TrimSpace(name)), nil, nil, &out)
	return out, err
}

func (c *Client) RouteDistance(ctx context.Context, origin, destination string) (float64, error) {
	var out struct {
		Miles float64 `json:"miles"`
	}
	q := url.Values{}
	q.Set("origin", strings.TrimSpace(origin))
	q.Set("destination", strings.TrimSpace(destination))
	if err := c.do(ctx, http.MethodGet, "/routes/distance", q, nil, &out); err != nil {
		return 0, err
	}
	return out.Miles, nil
}

func (c *Client) FetchMarket(ctx context.Context, sector string) (contractx.MarketData, error) {
	var out contractx.MarketData
	err := c.do(ctx, http.MethodGet, "/markets/"+url.PathEscape(strings.TrimSpace(sector)), nil, nil, &out)
	return out, err
}

func (c *Client) PlaceCall(ctx context.Context, target, campaign string) (contractx.CallOutcome, error) {
	var out struct {
		Outcome contractx.CallOutcome `json:"outcome"`
	}
	body := map[string]string{"target": target, "campaign": campaign}
	if err := c.do(ctx, http.MethodPost, "/calls", nil, body, &out); err != nil {
		return "", err
	}
	if !out.Outcome.Valid() {
		return "", fmt.Errorf("%w: unknown call outcome %q", contractx.ErrTaskFailed, out.Outcome)
	}
	return out.Outcome, nil
}

func (c *Client) ResolveInquiry(ctx context.Context, sessionID string) (bool, error) {
	var out struct {
		Resolved bool `json:"resolved"`
	}
	path := "/inquiries/" + url.PathEscape(strings.TrimSpace(sessionID)) + "/resolution"
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &out); err != nil {
		return false, err
	}
	return out.Resolved, nil
}

func (c *Client) FetchCarrier(ctx context.Context, carrierID string) (contractx.CarrierRecord, error) {
	var out contractx.CarrierRecord
	err := c.do(ctx, http.MethodGet, "/carriers/"+url.PathEscape(strings.TrimSpace(carrierID)), nil, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if c == nil {
		return errors.New("nil data source client")
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute %s request: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("data source http status=%d path=%s body=%s", resp.StatusCode, path, string(raw))
	}
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("%w: path=%s", ErrEmptyResponse, path)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
