// Package apiclient is a Go client for the country info HTTP API. It mirrors
// what the browser front end does, including the population name fallback.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"country_info_backend/models"
	"country_info_backend/population"

	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for the API rooted at baseURL, e.g. http://localhost:5000.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Countries fetches the full country list.
func (c *Client) Countries(ctx context.Context) ([]models.CountrySummary, error) {
	var countries []models.CountrySummary
	if err := c.do(ctx, http.MethodGet, "/api/countries", nil, &countries); err != nil {
		return nil, err
	}
	return countries, nil
}

// Country fetches one country with its flag and borders.
func (c *Client) Country(ctx context.Context, code string) (*models.CountryDetail, error) {
	var detail models.CountryDetail
	if err := c.do(ctx, http.MethodGet, "/api/country/"+url.PathEscape(code), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Population performs one population lookup and returns the raw payload. It
// satisfies population.Lookup.
func (c *Client) Population(ctx context.Context, country string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/api/country/population", models.PopulationRequest{Country: country}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// CountryPage is everything the detail view renders.
type CountryPage struct {
	Country    *models.CountryDetail
	Population population.Result
}

// HasPopulation distinguishes "resolved" from "no population data available".
func (p *CountryPage) HasPopulation() bool {
	return p.Population.State == population.Resolved && len(p.Population.Series) > 0
}

// CountryPage loads a country and then its population series, retrying the
// lookup with the common name when the official name is not recognised. Only
// the country fetch can fail the call.
func (c *Client) CountryPage(ctx context.Context, code string) (*CountryPage, error) {
	detail, err := c.Country(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("fetch country %s: %w", code, err)
	}

	res := population.NewResolver(c, c.logger).Resolve(ctx, detail.OfficialName, detail.CommonName)
	return &CountryPage{Country: detail, Population: res}, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, target any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody models.ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&errBody)
		return &APIError{StatusCode: resp.StatusCode, Message: errBody.Message}
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
