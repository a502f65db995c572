// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"whoistel/history"
	"whoistel/middlewares"
	"whoistel/phone"
)

func parseLimit(c echo.Context) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return history.DefaultRecentLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, &echo.HTTPError{
			Code:    http.StatusBadRequest,
			Message: "limit must be a positive integer",
		}
	}
	return min(limit, history.MaxRecentLimit), nil
}

func numberParam(c echo.Context) (phone.Number, error) {
	number, ok := middlewares.Number(c)
	if !ok {
		c.Logger().Error("Canonical number missing from context.")
		return "", echo.ErrInternalServerError
	}
	return number, nil
}

// GetNumberHandler godoc
// @Summary      Look up a phone number
// @Description  Resolves a French number to its ARCEP range, operator and locality, with the community spam count.
// @Tags         numbers
// @Produce      json
// @Param        number  path  string  true  "Phone number, any common French spelling"
// @Success      200 {object} LookupResponse "Lookup result, found or not"
// @Failure      400 {object} echo.HTTPError  "Invalid phone number"
// @Failure      500 {object} echo.HTTPError  "Snapshot or report database unavailable"
// @Router       /v1/numbers/{number} [get]
func (h *Handler) GetNumberHandler(c echo.Context) error {
	logger := c.Logger()
	ctx := c.Request().Context()

	number, err := numberParam(c)
	if err != nil {
		return err
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

	return c.JSON(http.StatusOK, LookupResponse{
		Result:    result,
		Display:   phone.Format(number),
		SpamCount: spamCount,
	})
}

// GetNumberReportsHandler godoc
// @Summary      List reports for a number
// @Tags         reports
// @Produce      json
// @Param        number  path   string  true   "Phone number"
// @Param        limit   query  int     false  "Maximum number of reports (default 50, max 500)"
// @Success      200 {object} ReportsResponse
// @Failure      400 {object} echo.HTTPError  "Invalid phone number or limit"
// @Failure      500 {object} echo.HTTPError  "Report database unavailable"
// @Router       /v1/numbers/{number}/reports [get]
func (h *Handler) GetNumberReportsHandler(c echo.Context) error {
	number, err := numberParam(c)
	if err != nil {
		return err
	}
	limit, err := parseLimit(c)
	if err != nil {
		return err
	}

	reports, err := h.Reports.ForNumber(c.Request().Context(), number, limit)
	if err != nil {
		c.Logger().Error("Failed to fetch reports: ", err)
		return storeError(err)
	}
	return c.JSON(http.StatusOK, ReportsResponse{Reports: reports, Count: len(reports)})
}

// CreateReportHandler godoc
// @Summary      Report a number
// @Description  Stores a community report. At least one of is_spam, comment or date is required.
// @Tags         reports
// @Accept       json
// @Produce      json
// @Param        number               path  string               true  "Phone number"
// @Param        createReportRequest  body  CreateReportRequest  true  "Report payload"
// @Success      201 {object} CreateReportResponse
// @Failure      400 {object} echo.HTTPError  "Invalid number, date or empty report"
// @Failure      429 {object} echo.HTTPError  "Too many reports"
// @Failure      500 {object} echo.HTTPError  "Report database unavailable"
// @Router       /v1/numbers/{number}/reports [post]
func (h *Handler) CreateReportHandler(c echo.Context) error {
	logger := c.Logger()

	number, err := numberParam(c)
	if err != nil {
		return err
	}

	var req CreateReportRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Invalid report payload: ", err)
		return &echo.HTTPError{
			Code:    http.StatusBadRequest,
			Message: "Invalid request payload, please ensure it is well-formed and has content-type application/json header",
		}
	}

	report, truncated, err := history.NewReport(number, history.Draft{
		Date:    req.Date,
		IsSpam:  req.IsSpam,
		Comment: req.Comment,
	})
	if err != nil {
		return &echo.HTTPError{
			Code:    http.StatusBadRequest,
			Message: err.Error(),
		}
	}

	if err := h.Reports.Add(c.Request().Context(), report); err != nil {
		logger.Error("Failed to store report: ", err)
		return storeError(err)
	}
	h.publish(c, report)

	return c.JSON(http.StatusCreated, CreateReportResponse{
		Report:    *report,
		Truncated: truncated,
		Message:   "Signalement enregistré.",
	})
}

// GetRecentReportsHandler godoc
// @Summary      Recent reports
// @Tags         reports
// @Produce      json
// @Param        limit  query  int  false  "Maximum number of reports (default 50, max 500)"
// @Success      200 {object} ReportsResponse
// @Failure      400 {object} echo.HTTPError  "Invalid limit"
// @Failure      500 {object} echo.HTTPError  "Report database unavailable"
// @Router       /v1/reports [get]
func (h *Handler) GetRecentReportsHandler(c echo.Context) error {
	limit, err := parseLimit(c)
	if err != nil {
		return err
	}
	reports, err := h.Reports.Recent(c.Request().Context(), limit)
	if err != nil {
		c.Logger().Error("Failed to fetch recent reports: ", err)
		return storeError(err)
	}
	return c.JSON(http.StatusOK, ReportsResponse{Reports: reports, Count: len(reports)})
}
