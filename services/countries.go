package services

import (
	"context"
	"encoding/json"
	"fmt"

	"country_info_backend/metrics"
	"country_info_backend/models"
	"country_info_backend/upstream"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CountryClient is the set of provider calls the service composes.
type CountryClient interface {
	FetchCountries(ctx context.Context) ([]upstream.CountryRecord, error)
	FetchCountryInfo(ctx context.Context, code string) (*models.CountryDetail, error)
	FetchFlags(ctx context.Context) ([]upstream.FlagRecord, error)
	FetchPopulation(ctx context.Context, country string) (json.RawMessage, error)
}

// CountryService defines the operations behind the HTTP facade.
type CountryService interface {
	ListCountriesWithFlags(ctx context.Context) ([]models.CountrySummary, error)
	GetCountryDetail(ctx context.Context, code string) (*models.CountryDetail, error)
	GetPopulation(ctx context.Context, country string) (json.RawMessage, error)
}

type countryService struct {
	client  CountryClient
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewCountryService builds the service. logger and m may be nil.
func NewCountryService(client CountryClient, logger *zap.Logger, m *metrics.Metrics) CountryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &countryService{
		client:  client,
		logger:  logger,
		metrics: m,
	}
}

// ListCountriesWithFlags returns every catalog country, in catalog order, with
// its flag URL or nil when the flags catalog has no entry for it.
func (s *countryService) ListCountriesWithFlags(ctx context.Context) ([]models.CountrySummary, error) {
	var (
		countries []upstream.CountryRecord
		flags     []upstream.FlagRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if countries, err = s.client.FetchCountries(gctx); err != nil {
			return fmt.Errorf("fetch countries: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if flags, err = s.client.FetchFlags(gctx); err != nil {
			return fmt.Errorf("fetch flags: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	index := flagIndex(flags)
	summaries := make([]models.CountrySummary, 0, len(countries))
	misses := 0
	for _, c := range countries {
		summary := models.CountrySummary{CountryCode: c.CountryCode, Name: c.Name}
		if flag, ok := index[c.CountryCode]; ok {
			summary.Flag = &flag
		} else {
			misses++
		}
		summaries = append(summaries, summary)
	}
	s.recordFlagMisses(misses)

	return summaries, nil
}

// GetCountryDetail returns the provider's record for code with flagUrl merged
// in. Only the country-info call is fatal; a flags failure degrades to a nil
// flagUrl.
func (s *countryService) GetCountryDetail(ctx context.Context, code string) (*models.CountryDetail, error) {
	var (
		detail   *models.CountryDetail
		flags    []upstream.FlagRecord
		flagsErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if detail, err = s.client.FetchCountryInfo(gctx, code); err != nil {
			return fmt.Errorf("fetch country info %s: %w", code, err)
		}
		return nil
	})
	g.Go(func() error {
		flags, flagsErr = s.client.FetchFlags(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if flagsErr != nil {
		s.logger.Warn("flags unavailable, serving country without flag",
			zap.String("code", code), zap.Error(flagsErr))
	}

	detail.FlagURL = nil
	if flag, ok := flagIndex(flags)[code]; ok {
		detail.FlagURL = &flag
	} else {
		s.recordFlagMisses(1)
	}
	if detail.Borders == nil {
		detail.Borders = []models.Border{}
	}
	return detail, nil
}

// GetPopulation performs one lookup for the exact name given. Choosing an
// alternate name is the caller's business (see package population).
func (s *countryService) GetPopulation(ctx context.Context, country string) (json.RawMessage, error) {
	raw, err := s.client.FetchPopulation(ctx, country)
	if err != nil {
		return nil, fmt.Errorf("fetch population %q: %w", country, err)
	}
	return raw, nil
}

func (s *countryService) recordFlagMisses(n int) {
	if s.metrics != nil {
		s.metrics.RecordFlagMisses(n)
	}
}

// flagIndex maps iso2 to flag URL. When the catalog repeats a code the first
// record wins, matching a front-to-back scan.
func flagIndex(flags []upstream.FlagRecord) map[string]string {
	index := make(map[string]string, len(flags))
	for _, f := range flags {
		if _, seen := index[f.ISO2]; !seen {
			index[f.ISO2] = f.Flag
		}
	}
	return index
}
