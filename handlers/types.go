// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"whoistel/lookup"
	"whoistel/models"
)

// swagger:model LookupResponse
type LookupResponse struct {
	// Lookup result for the canonical number
	Result lookup.Result `json:"result"`
	// National display form of the number
	Display string `json:"display" example:"06 12 34 56 78"`
	// Number of community spam reports
	SpamCount int64 `json:"spam_count" example:"3"`
}

// swagger:model CreateReportRequest
type CreateReportRequest struct {
	// Date of the call, AAAA-MM-JJ
	Date string `json:"date" example:"2026-10-18"`
	// Whether the call was spam
	IsSpam bool `json:"is_spam" example:"true"`
	// Free text, truncated to 1024 characters
	Comment string `json:"comment" example:"Démarchage pour une isolation à 1 euro"`
}

// swagger:model CreateReportResponse
type CreateReportResponse struct {
	// Stored report
	Report models.Report `json:"report"`
	// Whether the comment was truncated
	Truncated bool `json:"truncated" example:"false"`
	// Message indicating successful creation
	Message string `json:"message" example:"Signalement enregistré."`
}

// swagger:model ReportsResponse
type ReportsResponse struct {
	Reports []models.Report `json:"reports"`
	Count   int             `json:"count" example:"1"`
}
