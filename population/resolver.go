// Package population resolves a country's population series when the provider
// only knows some of the names a country goes by.
//
// The resolver tries the official name, then the common name, and stops. It
// never returns an error: two misses resolve to an empty series.
package population

import (
	"context"
	"encoding/json"
	"sort"

	"country_info_backend/models"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// seriesPath locates the series inside a provider payload.
const seriesPath = "data.populationCounts"

// State is a step of the resolution.
type State int

const (
	NotTried State = iota
	TriedOfficial
	TriedCommon
	Resolved
	Empty
)

func (s State) String() string {
	switch s {
	case NotTried:
		return "not_tried"
	case TriedOfficial:
		return "tried_official"
	case TriedCommon:
		return "tried_common"
	case Resolved:
		return "resolved"
	case Empty:
		return "empty"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further attempt follows s.
func (s State) Terminal() bool {
	return s == Resolved || s == Empty
}

// Lookup performs one name-keyed population call.
type Lookup interface {
	Population(ctx context.Context, country string) (json.RawMessage, error)
}

// LookupFunc adapts a plain function to Lookup.
type LookupFunc func(ctx context.Context, country string) (json.RawMessage, error)

func (f LookupFunc) Population(ctx context.Context, country string) (json.RawMessage, error) {
	return f(ctx, country)
}

// Result is the outcome of Resolve. Series is never nil.
type Result struct {
	State    State
	Series   []models.PopulationCount
	Name     string // the name that produced Series; empty when State is Empty
	Attempts int
}

type Resolver struct {
	lookup Lookup
	logger *zap.Logger
}

func NewResolver(lookup Lookup, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{lookup: lookup, logger: logger}
}

// Resolve runs NotTried -> TriedOfficial -> TriedCommon and ends in Resolved or
// Empty. The common name is only tried when the official attempt failed or
// returned no usable series, and never when it would repeat the official name.
func (r *Resolver) Resolve(ctx context.Context, officialName, commonName string) Result {
	res := Result{State: NotTried}

	for !res.State.Terminal() {
		switch res.State {
		case NotTried:
			if officialName == "" {
				res.State = TriedOfficial
				continue
			}
			if series, ok := r.attempt(ctx, &res, officialName); ok {
				res.State, res.Series, res.Name = Resolved, series, officialName
				continue
			}
			res.State = TriedOfficial

		case TriedOfficial:
			if commonName == "" || commonName == officialName || ctx.Err() != nil {
				res.State = Empty
				continue
			}
			if series, ok := r.attempt(ctx, &res, commonName); ok {
				res.State, res.Series, res.Name = Resolved, series, commonName
				continue
			}
			res.State = TriedCommon

		case TriedCommon:
			res.State = Empty
		}
	}

	if res.State == Empty {
		res.Series = []models.PopulationCount{}
		r.logger.Info("no population data available",
			zap.String("officialName", officialName),
			zap.String("commonName", commonName),
			zap.Int("attempts", res.Attempts))
	}
	return res
}

func (r *Resolver) attempt(ctx context.Context, res *Result, name string) ([]models.PopulationCount, bool) {
	res.Attempts++
	raw, err := r.lookup.Population(ctx, name)
	if err != nil {
		r.logger.Warn("population lookup failed", zap.String("country", name), zap.Error(err))
		return nil, false
	}
	series, ok := ExtractSeries(raw)
	if !ok {
		r.logger.Warn("population payload has no series", zap.String("country", name))
		return nil, false
	}
	return series, true
}

// ExtractSeries reads data.populationCounts from a provider payload, sorted by
// year ascending. ok is false when the field is absent or not an array.
func ExtractSeries(raw []byte) (series []models.PopulationCount, ok bool) {
	if !gjson.ValidBytes(raw) {
		return nil, false
	}
	counts := gjson.GetBytes(raw, seriesPath)
	if !counts.IsArray() {
		return nil, false
	}

	series = []models.PopulationCount{}
	for _, entry := range counts.Array() {
		if !entry.IsObject() {
			continue
		}
		series = append(series, models.PopulationCount{
			Year:  int(entry.Get("year").Int()),
			Value: entry.Get("value").Int(),
		})
	}
	sort.SliceStable(series, func(i, j int) bool { return series[i].Year < series[j].Year })
	return series, true
}
