// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"whoistel/commons"
)

const (
	flashCookie     = "whoistel_flash"
	flashContextKey = "flashes"
	flashLifetime   = 5 * time.Minute

	FlashError   = "error"
	FlashInfo    = "info"
	FlashSuccess = "success"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

type flashClaims struct {
	Flashes []Flash `json:"fl"`
	jwt.RegisteredClaims
}

func flashSecret() []byte {
	return []byte(commons.GetEnv("SECRET_KEY", "default_very_secret_key"))
}

// addFlash queues a message for the next page. Messages travel in a
// signed cookie so they survive the redirect.
func addFlash(c echo.Context, category, message string) {
	pending, _ := c.Get(flashContextKey).([]Flash)
	pending = append(pending, Flash{Category: category, Message: message})
	c.Set(flashContextKey, pending)

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, flashClaims{
		Flashes: pending,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(flashLifetime)),
		},
	})
	tokenString, err := token.SignedString(flashSecret())
	if err != nil {
		c.Logger().Error("Failed to sign flash messages: ", err)
		return
	}
	c.SetCookie(&http.Cookie{
		Name:     flashCookie,
		Value:    tokenString,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlashes returns the messages carried by the request and clears the cookie.
func popFlashes(c echo.Context) []Flash {
	cookie, err := c.Cookie(flashCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	c.SetCookie(&http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
	})

	claims := &flashClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return flashSecret(), nil
	})
	if err != nil || !token.Valid {
		c.Logger().Debug("Discarding flash cookie: ", err)
		return nil
	}
	return claims.Flashes
}
