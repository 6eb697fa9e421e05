package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"country_info_backend/config"
	"country_info_backend/metrics"
	"country_info_backend/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T, providerURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Environment:     "development",
		ServerPort:      freePort(t),
		CountriesURL:    providerURL + "/countries",
		CountryInfoURL:  providerURL + "/info/",
		PopulationURL:   providerURL + "/population",
		FlagsURL:        providerURL + "/flags",
		UpstreamTimeout: time.Second,
		ShutdownTimeout: 5 * time.Second,
		AllowedOrigins:  "http://localhost:3000",
		ErrorStatusMode: config.StatusModeCompat,
	}
}

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return strconv.Itoa(l.Addr().(*net.TCPAddr).Port)
}

func newProviders(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/countries":
			fmt.Fprint(w, `[{"countryCode":"CL","name":"Chile"}]`)
		case "/flags":
			fmt.Fprint(w, `{"error":false,"data":[{"iso2":"CL","flag":"http://x/cl.png"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewRouter_Endpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	providers := newProviders(t)
	r := newRouter(testConfig(t, providers.URL), zap.NewNop(), metrics.New())

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/countries", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{"countryCode":"CL","name":"Chile","flag":"http://x/cl.png"}]`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/country/ZZ", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"message":"Error fetching info for country: ZZ"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "API is running...", rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `country_info_http_requests_total{method="GET",path="/api/countries",status="200"} 1`)
	assert.Contains(t, rr.Body.String(), `country_info_upstream_requests_total{outcome="ok",provider="flags"}`)
}

func TestNewRouter_RequestIDPropagated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := newRouter(testConfig(t, newProviders(t).URL), zap.NewNop(), metrics.New())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "req-123", rr.Header().Get(middleware.RequestIDHeader))
}

func TestNewRouter_CORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := newRouter(testConfig(t, newProviders(t).URL), zap.NewNop(), metrics.New())

	req := httptest.NewRequest(http.MethodOptions, "/api/country/population", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/countries", nil)
	req.Header.Set("Origin", "http://evil.test")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRun_GracefulShutdown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t, newProviders(t).URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)

	var runErr error
	go func() {
		defer wg.Done()
		runErr = run(ctx, cfg, zap.NewNop())
	}()

	serverIsReady := false
	for i := 0; i < 20; i++ {
		resp, err := http.Get("http://127.0.0.1:" + cfg.ServerPort + "/")
		if err == nil {
			resp.Body.Close()
			serverIsReady = true
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	require.True(t, serverIsReady, "Server did not start in time")

	cancel()
	wg.Wait()

	assert.NoError(t, runErr, "Expected a clean shutdown")
}
