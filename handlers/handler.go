// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"whoistel/lookup"
	"whoistel/models"
	"whoistel/phone"
)

type Lookuper interface {
	Lookup(ctx context.Context, raw string) (lookup.Result, error)
	Resolve(ctx context.Context, n phone.Number) (lookup.Result, error)
}

type ReportStore interface {
	Add(ctx context.Context, r *models.Report) error
	SpamCount(ctx context.Context, number phone.Number) (int64, error)
	Recent(ctx context.Context, limit int) ([]models.Report, error)
	ForNumber(ctx context.Context, number phone.Number, limit int) ([]models.Report, error)
}

type ReportPublisher interface {
	PublishReport(ctx context.Context, r *models.Report) error
}

// Handler serves the web UI and the JSON API.
type Handler struct {
	Lookup  Lookuper
	Reports ReportStore
	// Events is optional.
	Events ReportPublisher
}

const (
	publishTimeout = 5 * time.Second
	reportsPerPage = 20
)

var errStoreUnavailable = &echo.HTTPError{
	Code:    http.StatusInternalServerError,
	Message: "Erreur de base de données",
}

func storeError(err error) *echo.HTTPError {
	return errStoreUnavailable.WithInternal(err)
}

// publish sends the report event without failing the request.
func (h *Handler) publish(c echo.Context, r *models.Report) {
	if h.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), publishTimeout)
	defer cancel()
	if err := h.Events.PublishReport(ctx, r); err != nil {
		c.Logger().Warn("Failed to publish report event: ", err)
	}
}
