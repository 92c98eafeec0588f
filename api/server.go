// Package api exposes the thin serving surface: health, latest rates and
// metrics. Full routing and validation layers live in the serving services,
// not here.
package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/krwave/ratefeed/internal/reader"
)

// NewRouter builds the gin engine serving the read path.
func NewRouter(rateReader *reader.Reader, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.GET("/rates/latest", latestRatesHandler(rateReader, logger))

	return router
}

// latestRatesHandler serves GET /api/v1/rates/latest?currencies=USD,JPY&base=KRW.
func latestRatesHandler(rateReader *reader.Reader, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var currencies []string
		if raw := c.Query("currencies"); raw != "" {
			for _, code := range strings.Split(raw, ",") {
				code = strings.ToUpper(strings.TrimSpace(code))
				if code != "" {
					currencies = append(currencies, code)
				}
			}
		}

		snapshot := rateReader.GetLatestRates(c.Request.Context(), currencies, c.Query("base"))
		if len(snapshot.Rates) == 0 {
			logger.Warn("no rates resolved for request",
				zap.Strings("currencies", currencies))
		}

		c.JSON(http.StatusOK, snapshot)
	}
}
