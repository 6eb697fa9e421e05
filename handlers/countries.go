package handlers

import (
	"errors"
	"net/http"

	"country_info_backend/config"
	"country_info_backend/models"
	"country_info_backend/services"
	"country_info_backend/upstream"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CountryHandler struct {
	service    services.CountryService
	logger     *zap.Logger
	statusMode string
}

func NewCountryHandler(s services.CountryService, logger *zap.Logger, statusMode string) *CountryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CountryHandler{service: s, logger: logger, statusMode: statusMode}
}

// GetCountries handles GET /api/countries
func (h *CountryHandler) GetCountries(c *gin.Context) {
	countries, err := h.service.ListCountriesWithFlags(c.Request.Context())
	if err != nil {
		h.logger.Error("Error fetching countries", zap.Error(err))
		c.JSON(h.failureStatus(err), models.ErrorResponse{Message: "Error fetching countries"})
		return
	}

	c.JSON(http.StatusOK, countries)
}

// GetCountryInfo handles GET /api/country/:code
func (h *CountryHandler) GetCountryInfo(c *gin.Context) {
	code := c.Param("code")

	detail, err := h.service.GetCountryDetail(c.Request.Context(), code)
	if err != nil {
		h.logger.Error("Error fetching country info", zap.String("code", code), zap.Error(err))
		c.JSON(h.failureStatus(err), models.ErrorResponse{Message: "Error fetching info for country: " + code})
		return
	}

	c.JSON(http.StatusOK, detail)
}

// GetPopulation handles POST /api/country/population. The provider payload is
// relayed as-is.
func (h *CountryHandler) GetPopulation(c *gin.Context) {
	var req models.PopulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Message: "Error fetching population data for country: " + req.Country,
		})
		return
	}

	raw, err := h.service.GetPopulation(c.Request.Context(), req.Country)
	if err != nil {
		fields := []zap.Field{zap.String("country", req.Country), zap.Error(err)}
		var upErr *upstream.Error
		if errors.As(err, &upErr) && upErr.Message != "" {
			fields = append(fields, zap.String("response", upErr.Message))
		}
		h.logger.Error("Error fetching population data", fields...)
		c.JSON(h.failureStatus(err), models.ErrorResponse{
			Message: "Error fetching population data for country: " + req.Country,
		})
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// failureStatus picks the response status for a service error. In compat mode
// every failure is a 500, which is what existing clients expect.
func (h *CountryHandler) failureStatus(err error) int {
	if h.statusMode != config.StatusModeDetailed {
		return http.StatusInternalServerError
	}

	switch {
	case upstream.IsNotFound(err):
		return http.StatusNotFound
	case upstream.IsTimeout(err):
		return http.StatusGatewayTimeout
	}
	var upErr *upstream.Error
	if errors.As(err, &upErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
