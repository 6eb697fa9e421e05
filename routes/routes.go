package routes

import (
	"country_info_backend/handlers"
	"country_info_backend/metrics"

	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all the routes for the application
func SetupRoutes(r *gin.Engine, countryHandler *handlers.CountryHandler, healthHandler *handlers.HealthHandler, m *metrics.Metrics) {
	// Liveness and ops
	r.GET("/", healthHandler.Root)
	r.GET("/healthz", healthHandler.HealthCheck)
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	api := r.Group("/api")
	{
		// Country routes
		api.GET("/countries", countryHandler.GetCountries)
		api.GET("/country/:code", countryHandler.GetCountryInfo)
		api.POST("/country/population", countryHandler.GetPopulation)
	}
}
