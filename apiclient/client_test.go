package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"country_info_backend/config"
	"country_info_backend/handlers"
	"country_info_backend/models"
	"country_info_backend/population"
	"country_info_backend/routes"
	"country_info_backend/services"
	"country_info_backend/upstream"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProviders stands in for all four upstream providers. Population only
// knows the names listed in known.
type fakeProviders struct {
	mu              sync.Mutex
	populationCalls []string
	known           map[string]string
}

func (f *fakeProviders) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/countries":
		fmt.Fprint(w, `[{"countryCode":"VE","name":"Venezuela"},{"countryCode":"CL","name":"Chile"}]`)
	case "/flags":
		fmt.Fprint(w, `{"error":false,"data":[{"name":"Chile","flag":"http://x/cl.png","iso2":"CL","iso3":"CHL"}]}`)
	case "/info/VE":
		fmt.Fprint(w, `{"commonName":"Venezuela","officialName":"Bolivarian Republic of Venezuela","countryCode":"VE",
			"region":"Americas","borders":[{"commonName":"Colombia","officialName":"Republic of Colombia","countryCode":"CO","region":"Americas","borders":null}]}`)
	case "/info/CL":
		fmt.Fprint(w, `{"commonName":"Chile","officialName":"Republic of Chile","countryCode":"CL","region":"Americas","borders":[]}`)
	case "/population":
		var req struct {
			Country string `json:"country"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.populationCalls = append(f.populationCalls, req.Country)
		f.mu.Unlock()
		if payload, ok := f.known[req.Country]; ok {
			fmt.Fprint(w, payload)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":true,"msg":"country not found"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeProviders) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.populationCalls...)
}

// newStack starts fake providers and the real API in front of them.
func newStack(t *testing.T, known map[string]string) (*Client, *fakeProviders) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	providers := &fakeProviders{known: known}
	providerSrv := httptest.NewServer(providers)
	t.Cleanup(providerSrv.Close)

	cfg := &config.Config{
		CountriesURL:    providerSrv.URL + "/countries",
		CountryInfoURL:  providerSrv.URL + "/info/",
		PopulationURL:   providerSrv.URL + "/population",
		FlagsURL:        providerSrv.URL + "/flags",
		UpstreamTimeout: 2 * time.Second,
		ErrorStatusMode: config.StatusModeCompat,
	}
	svc := services.NewCountryService(upstream.NewClient(cfg), nil, nil)
	r := gin.New()
	routes.SetupRoutes(r, handlers.NewCountryHandler(svc, nil, cfg.ErrorStatusMode), handlers.NewHealthHandler(), nil)

	apiSrv := httptest.NewServer(r)
	t.Cleanup(apiSrv.Close)

	return New(apiSrv.URL + "/"), providers
}

const venezuelaPayload = `{"error":false,"msg":"ok","data":{"country":"Venezuela","populationCounts":[{"year":2020,"value":28000000}]}}`

func TestCountries(t *testing.T) {
	client, _ := newStack(t, nil)

	countries, err := client.Countries(context.Background())

	require.NoError(t, err)
	require.Len(t, countries, 2)
	assert.Equal(t, "VE", countries[0].CountryCode)
	assert.Nil(t, countries[0].Flag)
	require.NotNil(t, countries[1].Flag)
	assert.Equal(t, "http://x/cl.png", *countries[1].Flag)
}

func TestCountry_UnknownCode(t *testing.T) {
	client, _ := newStack(t, nil)

	_, err := client.Country(context.Background(), "ZZ")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "Error fetching info for country: ZZ", apiErr.Message)
}

func TestCountryPage_FallsBackToCommonName(t *testing.T) {
	client, providers := newStack(t, map[string]string{"Venezuela": venezuelaPayload})

	page, err := client.CountryPage(context.Background(), "VE")

	require.NoError(t, err)
	assert.Equal(t, "Venezuela", page.Country.CommonName)
	assert.Nil(t, page.Country.FlagURL)
	assert.Equal(t, []models.Border{{CountryCode: "CO", CommonName: "Colombia", OfficialName: "Republic of Colombia", Region: "Americas"}}, page.Country.Borders)

	assert.Equal(t, population.Resolved, page.Population.State)
	assert.Equal(t, []models.PopulationCount{{Year: 2020, Value: 28000000}}, page.Population.Series)
	assert.True(t, page.HasPopulation())
	assert.Equal(t, []string{"Bolivarian Republic of Venezuela", "Venezuela"}, providers.calls())
}

func TestCountryPage_OfficialNameAcceptedSkipsFallback(t *testing.T) {
	client, providers := newStack(t, map[string]string{
		"Republic of Chile": `{"data":{"populationCounts":[{"year":2018,"value":18729160}]}}`,
	})

	page, err := client.CountryPage(context.Background(), "CL")

	require.NoError(t, err)
	assert.Equal(t, population.Resolved, page.Population.State)
	assert.Equal(t, 1, page.Population.Attempts)
	assert.Equal(t, []string{"Republic of Chile"}, providers.calls())
	require.NotNil(t, page.Country.FlagURL)
	assert.Equal(t, "http://x/cl.png", *page.Country.FlagURL)
}

func TestCountryPage_NoPopulationData(t *testing.T) {
	client, providers := newStack(t, nil)

	page, err := client.CountryPage(context.Background(), "VE")

	require.NoError(t, err)
	assert.Equal(t, population.Empty, page.Population.State)
	assert.Empty(t, page.Population.Series)
	assert.False(t, page.HasPopulation())
	assert.Len(t, providers.calls(), 2)
}

func TestCountryPage_CountryFailure(t *testing.T) {
	client, providers := newStack(t, nil)

	_, err := client.CountryPage(context.Background(), "ZZ")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch country ZZ")
	assert.Empty(t, providers.calls())
}

func TestPopulation_RawPayload(t *testing.T) {
	client, _ := newStack(t, map[string]string{"Venezuela": venezuelaPayload})

	raw, err := client.Population(context.Background(), "Venezuela")
	require.NoError(t, err)
	assert.JSONEq(t, venezuelaPayload, string(raw))

	_, err = client.Population(context.Background(), "Bolivarian Republic of Venezuela")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Error fetching population data for country: Bolivarian Republic of Venezuela", apiErr.Message)
}

func TestAPIError_Message(t *testing.T) {
	assert.Equal(t, "api returned status 502", (&APIError{StatusCode: 502}).Error())
	assert.Equal(t, "api returned status 500: boom", (&APIError{StatusCode: 500, Message: "boom"}).Error())
}
