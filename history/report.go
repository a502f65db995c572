// SPDX-License-Identifier: GPL-3.0-only

// Package history stores community reports about phone numbers.
package history

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"whoistel/models"
	"whoistel/phone"
)

const MaxCommentLength = 1024

var ErrEmptyReport = errors.New("Veuillez cocher la case spam, ajouter un commentaire ou une date.")

type InvalidDateError struct {
	Date string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("Le format de la date '%s' est invalide (attendu: AAAA-MM-JJ).", e.Date)
}

// Draft is a report as submitted by a user, before validation.
type Draft struct {
	Date    string
	IsSpam  bool
	Comment string
}

// NewReport validates d for number. Truncated reports the comment was
// longer than MaxCommentLength runes and has been cut.
func NewReport(number phone.Number, d Draft) (report *models.Report, truncated bool, err error) {
	comment := strings.TrimSpace(d.Comment)
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		comment = string([]rune(comment)[:MaxCommentLength])
		truncated = true
	}

	date := strings.TrimSpace(d.Date)
	if date != "" {
		if _, err := time.Parse(models.DateLayout, date); err != nil {
			return nil, false, &InvalidDateError{Date: date}
		}
	}

	if !d.IsSpam && comment == "" && date == "" {
		return nil, false, ErrEmptyReport
	}

	report = &models.Report{
		PhoneNumber: string(number),
		IsSpam:      d.IsSpam,
	}
	if date != "" {
		report.ReportDate = &date
	}
	if comment != "" {
		report.Comment = &comment
	}
	return report, truncated, nil
}

// Kind is "spam" for spam reports and "comment" otherwise.
func Kind(r *models.Report) string {
	if r.IsSpam {
		return "spam"
	}
	return "comment"
}

// ValidationError reports whether err comes from NewReport validation.
func ValidationError(err error) bool {
	var dateErr *InvalidDateError
	return errors.Is(err, ErrEmptyReport) || errors.As(err, &dateErr)
}

func wrap(op string, err error) error {
	return fmt.Errorf("history %s: %w", op, err)
}
