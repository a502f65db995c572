// SPDX-License-Identifier: GPL-3.0-only

package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"whoistel/commons"
	"whoistel/handlers"
	"whoistel/metrics"
	"whoistel/middlewares"
)

type Options struct {
	// CSRF protects the HTML forms.
	CSRF bool
	// ReportRate is the number of reports allowed per second and client IP. 0 disables the limit.
	ReportRate float64
	PublicDir  string
}

// OptionsFromEnv reads CSRF_ENABLED and REPORT_RATE_LIMIT.
func OptionsFromEnv() Options {
	return Options{
		CSRF:       commons.GetEnvBool("CSRF_ENABLED", true),
		ReportRate: float64(commons.GetEnvInt("REPORT_RATE_LIMIT", 1)) / 60,
		PublicDir:  commons.GetEnv("PUBLIC_DIR", "public"),
	}
}

func csrfProtection(enabled bool) echo.MiddlewareFunc {
	if !enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "form:csrf_token",
		CookieName:     "whoistel_csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
	})
}

func reportLimiter(perSecond float64) echo.MiddlewareFunc {
	if perSecond <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:  rate.Limit(perSecond),
			Burst: 5,
		}),
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return &echo.HTTPError{
				Code:    http.StatusTooManyRequests,
				Message: "Trop de signalements, veuillez réessayer plus tard.",
			}
		},
	})
}

func RegisterRoutes(e *echo.Echo, h *handlers.Handler, opts Options) {
	limiter := reportLimiter(opts.ReportRate)

	csrf := csrfProtection(opts.CSRF)

	commons.Logger.Debug("Registering web routes")
	e.GET("/", h.IndexHandler, csrf)
	e.POST("/check", h.CheckHandler, csrf)
	e.GET("/view/:number", h.ViewHandler, middlewares.CanonicalNumberMiddleware(true), csrf)
	e.POST("/report", h.ReportHandler, csrf, limiter)
	e.GET("/history", h.HistoryHandler, csrf)

	e.GET("/static/*", handlers.StaticHandler(opts.PublicDir))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	commons.Logger.Debug("Registering v1 routes")
	api_v1 := e.Group("/v1")
	api_v1.GET("/numbers/:number", h.GetNumberHandler, middlewares.CanonicalNumberMiddleware(false))
	api_v1.GET("/numbers/:number/reports", h.GetNumberReportsHandler, middlewares.CanonicalNumberMiddleware(false))
	api_v1.POST("/numbers/:number/reports", h.CreateReportHandler, middlewares.CanonicalNumberMiddleware(false), limiter)
	api_v1.GET("/reports", h.GetRecentReportsHandler)
	commons.Logger.Info("Routes registered successfully")
}
