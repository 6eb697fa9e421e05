package models

import (
	"encoding/json"
	"fmt"
)

// CountrySummary is one entry of the country list with its flag attached.
type CountrySummary struct {
	CountryCode string  `json:"countryCode"`
	Name        string  `json:"name"`
	Flag        *string `json:"flag"`
}

// Border is a neighbouring country as reported by the country-info provider.
type Border struct {
	CountryCode  string `json:"countryCode"`
	CommonName   string `json:"commonName"`
	OfficialName string `json:"officialName,omitempty"`
	Region       string `json:"region,omitempty"`
}

// CountryDetail is the per-country payload. Fields unknown to this type are
// kept verbatim in Extra and written back out on marshal, so the provider's
// record passes through untouched apart from flagUrl and borders.
type CountryDetail struct {
	CommonName   string
	OfficialName string
	CountryCode  string
	Borders      []Border
	FlagURL      *string

	Extra map[string]json.RawMessage
}

var detailKnownKeys = map[string]struct{}{
	"commonName":   {},
	"officialName": {},
	"countryCode":  {},
	"borders":      {},
	"flagUrl":      {},
}

func (d *CountryDetail) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("country detail must be a JSON object")
	}

	var known struct {
		CommonName   string   `json:"commonName"`
		OfficialName string   `json:"officialName"`
		CountryCode  string   `json:"countryCode"`
		Borders      []Border `json:"borders"`
		FlagURL      *string  `json:"flagUrl"`
	}
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	d.CommonName = known.CommonName
	d.OfficialName = known.OfficialName
	d.CountryCode = known.CountryCode
	d.Borders = known.Borders
	d.FlagURL = known.FlagURL
	d.Extra = make(map[string]json.RawMessage)
	for k, v := range raw {
		if _, ok := detailKnownKeys[k]; !ok {
			d.Extra[k] = v
		}
	}
	return nil
}

func (d CountryDetail) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Extra)+len(detailKnownKeys))
	for k, v := range d.Extra {
		out[k] = v
	}
	borders := d.Borders
	if borders == nil {
		borders = []Border{}
	}
	out["commonName"] = d.CommonName
	out["officialName"] = d.OfficialName
	out["countryCode"] = d.CountryCode
	out["borders"] = borders
	out["flagUrl"] = d.FlagURL

	return json.Marshal(out)
}

// PopulationCount is one point of a population series.
type PopulationCount struct {
	Year  int   `json:"year"`
	Value int64 `json:"value"`
}

type PopulationRequest struct {
	Country string `json:"country" binding:"required"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}
