package upstream

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

	"country_info_backend/config"
	"country_info_backend/metrics"
	"country_info_backend/models"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	ProviderCountries   = "countries"
	ProviderCountryInfo = "country_info"
	ProviderFlags       = "flags"
	ProviderPopulation  = "population"

	maxBodyBytes    = 8 << 20
	maxMessageBytes = 256
)

// CountryRecord is one row of the countries catalog.
type CountryRecord struct {
	CountryCode string `json:"countryCode"`
	Name        string `json:"name"`
}

// FlagRecord is one row of the flags catalog.
type FlagRecord struct {
	Name string `json:"name"`
	Flag string `json:"flag"`
	ISO2 string `json:"iso2"`
	ISO3 string `json:"iso3"`
}

// Client talks to the four data providers. It performs exactly one HTTP call
// per operation and never retries.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics

	countriesURL   string
	countryInfoURL string
	populationURL  string
	flagsURL       string
}

type Option func(*Client)

// WithHTTPClient replaces the default client. Its Timeout is left as given.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func NewClient(cfg *config.Config, opts ...Option) *Client {
	c := &Client{
		httpClient:     &http.Client{Timeout: cfg.UpstreamTimeout},
		logger:         zap.NewNop(),
		countriesURL:   cfg.CountriesURL,
		countryInfoURL: cfg.CountryInfoURL,
		populationURL:  cfg.PopulationURL,
		flagsURL:       cfg.FlagsURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchCountries returns the full countries catalog.
func (c *Client) FetchCountries(ctx context.Context) ([]CountryRecord, error) {
	body, err := c.do(ctx, ProviderCountries, http.MethodGet, c.countriesURL, nil)
	if err != nil {
		return nil, err
	}

	var countries []CountryRecord
	if err := json.Unmarshal(body, &countries); err != nil {
		return nil, c.malformed(ProviderCountries, fmt.Errorf("failed to decode response: %w", err))
	}
	if countries == nil {
		return nil, c.malformed(ProviderCountries, fmt.Errorf("expected a JSON array"))
	}
	return countries, nil
}

// FetchCountryInfo returns the provider's record for code. The code is
// appended to the configured base URL as-is (after path escaping).
func (c *Client) FetchCountryInfo(ctx context.Context, code string) (*models.CountryDetail, error) {
	body, err := c.do(ctx, ProviderCountryInfo, http.MethodGet, c.countryInfoURL+url.PathEscape(code), nil)
	if err != nil {
		return nil, err
	}

	var detail models.CountryDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, c.malformed(ProviderCountryInfo, fmt.Errorf("failed to decode response: %w", err))
	}
	if detail.CountryCode == "" && detail.CommonName == "" {
		return nil, c.malformed(ProviderCountryInfo, fmt.Errorf("missing countryCode and commonName for %q", code))
	}
	return &detail, nil
}

// FetchFlags returns the flags catalog, unwrapped from its {"data": [...]} envelope.
func (c *Client) FetchFlags(ctx context.Context) ([]FlagRecord, error) {
	body, err := c.do(ctx, ProviderFlags, http.MethodGet, c.flagsURL, nil)
	if err != nil {
		return nil, err
	}

	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return nil, c.malformed(ProviderFlags, fmt.Errorf("missing 'data' array"))
	}

	var flags []FlagRecord
	if err := json.Unmarshal([]byte(data.Raw), &flags); err != nil {
		return nil, c.malformed(ProviderFlags, fmt.Errorf("failed to decode flags: %w", err))
	}
	return flags, nil
}

// FetchPopulation posts {"country": country} and returns the provider payload
// unchanged.
func (c *Client) FetchPopulation(ctx context.Context, country string) (json.RawMessage, error) {
	body, err := c.do(ctx, ProviderPopulation, http.MethodPost, c.populationURL, map[string]string{"country": country})
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, c.malformed(ProviderPopulation, fmt.Errorf("response is not valid JSON"))
	}
	return json.RawMessage(body), nil
}

func (c *Client) do(ctx context.Context, provider, method, target string, payload any) (body []byte, err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = KindUnavailable.String()
			if upErr, ok := err.(*Error); ok {
				outcome = upErr.Kind.String()
			}
		}
		if c.metrics != nil {
			c.metrics.RecordUpstream(provider, outcome, time.Since(start))
		}
		c.logger.Debug("upstream call",
			zap.String("provider", provider),
			zap.String("method", method),
			zap.String("url", target),
			zap.String("outcome", outcome),
			zap.Duration("latency", time.Since(start)),
		)
	}()

	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, &Error{Provider: provider, Kind: KindUnavailable, Err: fmt.Errorf("failed to marshal request body: %w", err)}
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, &Error{Provider: provider, Kind: KindUnavailable, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Provider: provider, Kind: KindUnavailable, Err: fmt.Errorf("failed to execute request: %w", err)}
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &Error{Provider: provider, Kind: KindUnavailable, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Provider:   provider,
			Kind:       KindUnavailable,
			StatusCode: resp.StatusCode,
			Message:    providerMessage(body),
		}
	}
	if len(body) > maxBodyBytes {
		return nil, &Error{Provider: provider, Kind: KindMalformed, StatusCode: resp.StatusCode, Err: fmt.Errorf("response exceeds %d bytes", maxBodyBytes)}
	}
	return body, nil
}

func (c *Client) malformed(provider string, err error) *Error {
	return &Error{Provider: provider, Kind: KindMalformed, Err: err}
}

// providerMessage pulls a human readable message out of an error body. Both
// {"msg": ...} and {"message": ...} shapes show up across the providers.
func providerMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		for _, key := range []string{"msg", "message", "title"} {
			if v := gjson.GetBytes(body, key); v.Type == gjson.String && v.Str != "" {
				return v.Str
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxMessageBytes {
		msg = msg[:maxMessageBytes] + "...(truncated)"
	}
	return msg
}
