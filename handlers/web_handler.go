// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"whoistel/history"
	"whoistel/lookup"
	"whoistel/middlewares"
	"whoistel/models"
	"whoistel/phone"
)

type pageData struct {
	Title      string
	CSRFToken  string
	Flashes    []Flash
	Message    string
	Number     string
	View       *lookup.View
	SpamCount  int64
	Reports    []models.Report
	MaxComment int
}

func newPage(c echo.Context, title string) pageData {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return pageData{
		Title:      title,
		CSRFToken:  token,
		Flashes:    popFlashes(c),
		MaxComment: history.MaxCommentLength,
	}
}

func viewURL(n phone.Number) string {
	return "/view/" + url.PathEscape(string(n))
}

func (h *Handler) IndexHandler(c echo.Context) error {
	return c.Render(http.StatusOK, "index", newPage(c, ""))
}

func (h *Handler) CheckHandler(c echo.Context) error {
	raw := strings.TrimSpace(c.FormValue("number"))
	if raw == "" {
		addFlash(c, FlashError, "Veuillez saisir un numéro.")
		return c.Redirect(http.StatusSeeOther, "/")
	}

	number, err := phone.Canonicalize(raw)
	if err != nil {
		addFlash(c, FlashError, err.Error())
		return c.Redirect(http.StatusSeeOther, "/")
	}
	return c.Redirect(http.StatusSeeOther, viewURL(number))
}

func (h *Handler) ViewHandler(c echo.Context) error {
	logger := c.Logger()
	ctx := c.Request().Context()

	number, ok := middlewares.Number(c)
	if !ok {
		logger.Error("Canonical number missing from context.")
		return echo.ErrInternalServerError
	}

	result, err := h.Lookup.Resolve(ctx, number)
	if err != nil {
		logger.Error("Lookup failed: ", err)
		return storeError(err)
	}

	spamCount, err := h.Reports.SpamCount(ctx, number)
	if err != nil {
		logger.Error("Failed to count spam reports: ", err)
		return storeError(err)
	}
	reports, err := h.Reports.ForNumber(ctx, number, reportsPerPage)
	if err != nil {
		logger.Error("Failed to fetch reports: ", err)
		return storeError(err)
	}

	view := lookup.Present(result)
	page := newPage(c, view.Display)
	page.Number = string(number)
	page.View = &view
	page.SpamCount = spamCount
	page.Reports = reports
	return c.Render(http.StatusOK, "result", page)
}

func (h *Handler) ReportHandler(c echo.Context) error {
	logger := c.Logger()

	raw := strings.TrimSpace(c.FormValue("number"))
	if raw == "" {
		addFlash(c, FlashError, "Veuillez saisir un numéro.")
		return c.Redirect(http.StatusSeeOther, "/")
	}
	number, err := phone.Canonicalize(raw)
	if err != nil {
		addFlash(c, FlashError, "Erreur interne : Numéro de téléphone invalide lors du signalement.")
		return c.Redirect(http.StatusSeeOther, "/")
	}

	report, truncated, err := history.NewReport(number, history.Draft{
		Date:    c.FormValue("date"),
		IsSpam:  c.FormValue("is_spam") == "on",
		Comment: c.FormValue("comment"),
	})
	if truncated {
		addFlash(c, FlashInfo, fmt.Sprintf("Votre commentaire a été tronqué à %d caractères.", history.MaxCommentLength))
	}
	if err != nil {
		if !history.ValidationError(err) {
			logger.Error("Unexpected report validation error: ", err)
		}
		addFlash(c, FlashError, err.Error())
		return c.Redirect(http.StatusSeeOther, viewURL(number))
	}

	if err := h.Reports.Add(c.Request().Context(), report); err != nil {
		logger.Error("Failed to store report: ", err)
		return storeError(err)
	}
	h.publish(c, report)

	addFlash(c, FlashSuccess, "Signalement enregistré.")
	return c.Redirect(http.StatusSeeOther, viewURL(number))
}

func (h *Handler) HistoryHandler(c echo.Context) error {
	reports, err := h.Reports.Recent(c.Request().Context(), history.DefaultRecentLimit)
	if err != nil {
		c.Logger().Error("Failed to fetch recent reports: ", err)
		return storeError(err)
	}
	page := newPage(c, "Derniers signalements")
	page.Reports = reports
	return c.Render(http.StatusOK, "history", page)
}

// HTTPErrorHandler renders HTML error pages for the web UI and keeps
// echo's JSON errors for the API.
func HTTPErrorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if !errors.As(err, &he) {
			he = echo.ErrInternalServerError.WithInternal(err)
		}

		path := c.Request().URL.Path
		if strings.HasPrefix(path, "/v1/") || strings.HasPrefix(path, "/static/") || path == "/metrics" || e.Renderer == nil {
			e.DefaultHTTPErrorHandler(err, c)
			return
		}

		message := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			message = m
		}

		page := newPage(c, "Erreur")
		page.Message = message
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(he.Code)
		} else {
			err = c.Render(he.Code, "error", page)
		}
		if err != nil {
			c.Logger().Error(err)
		}
	}
}
