// SPDX-License-Identifier: GPL-3.0-only

package middlewares

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"whoistel/phone"
)

// NumberContextKey holds the canonical phone.Number of the :number path parameter.
const NumberContextKey = "number"

// CanonicalNumberMiddleware canonicalizes the :number path parameter.
// Invalid numbers are rejected with 400. When redirect is set, a
// non-canonical spelling is redirected to the canonical URL; otherwise
// the request continues with the canonical number.
func CanonicalNumberMiddleware(redirect bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			logger := c.Logger()

			raw, err := url.PathUnescape(c.Param("number"))
			if err != nil {
				raw = c.Param("number")
			}

			number, err := phone.Canonicalize(raw)
			if err != nil {
				logger.Debugf("Rejected number %q: %v", raw, err)
				var rejection *phone.Rejection
				if errors.As(err, &rejection) {
					return &echo.HTTPError{
						Code:     http.StatusBadRequest,
						Message:  rejection.Error(),
						Internal: rejection,
					}
				}
				return echo.ErrBadRequest
			}

			if redirect && string(number) != raw {
				target := strings.Replace(c.Path(), ":number", string(number), 1)
				return c.Redirect(http.StatusMovedPermanently, target)
			}

			c.Set(NumberContextKey, number)
			return next(c)
		}
	}
}

// Number returns the number stored by CanonicalNumberMiddleware.
func Number(c echo.Context) (phone.Number, bool) {
	n, ok := c.Get(NumberContextKey).(phone.Number)
	return n, ok
}
