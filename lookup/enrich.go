// SPDX-License-Identifier: GPL-3.0-only

package lookup

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"golang.org/x/net/idna"

	"whoistel/phone"
)

const (
	NotFoundMessage = "Numéro inconnu dans la base ARCEP (pas d'opérateur assigné trouvé)."
	Caveat          = "Certains numéros récents ou portés peuvent ne pas figurer dans le fichier public Open Data."
)

var regionHints = map[string]string{
	"01": "Île-de-France",
	"02": "Nord-Ouest",
	"03": "Nord-Est",
	"04": "Sud-Est",
	"05": "Sud-Ouest",
}

// RegionHint returns the macro-region of a geographic number, if any.
func RegionHint(n phone.Number) (string, bool) {
	if len(n) < 2 {
		return "", false
	}
	region, ok := regionHints[string(n[:2])]
	return region, ok
}

type Operator struct {
	Code    string `json:"code"`
	Name    string `json:"name,omitempty"`
	Type    string `json:"type,omitempty"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`
	// Known is false when the code has no row in the operator registry.
	Known bool `json:"known"`
}

type Commune struct {
	Code       string   `json:"code"`
	Name       string   `json:"name"`
	PostalCode string   `json:"postal_code,omitempty"`
	Department string   `json:"department,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
}

// Location holds either a commune or a region hint, never both.
type Location struct {
	Commune *Commune `json:"commune,omitempty"`
	Region  string   `json:"region,omitempty"`
}

// Result is the outcome of a lookup. Input rejections and unknown numbers
// are ordinary results, not errors.
type Result struct {
	Number       string    `json:"number"`
	Found        bool      `json:"found"`
	Kind         Kind      `json:"kind,omitempty"`
	Prefix       string    `json:"prefix,omitempty"`
	OperatorCode string    `json:"operator_code,omitempty"`
	Operator     *Operator `json:"operator,omitempty"`
	Location     *Location `json:"location,omitempty"`
	Error        string    `json:"error,omitempty"`

	Invalid bool         `json:"invalid,omitempty"`
	Reason  phone.Reason `json:"reason,omitempty"`
}

// NotFound is the result for a well-formed number that matches no range.
func NotFound(n phone.Number) Result {
	return Result{Number: string(n), Error: NotFoundMessage}
}

// Rejected is the result for input that did not canonicalize.
func Rejected(raw string, rejection *phone.Rejection) Result {
	number := rejection.Cleaned
	if number == "" {
		number = raw
	}
	return Result{
		Number:  number,
		Error:   rejection.Error(),
		Invalid: true,
		Reason:  rejection.Reason,
	}
}

// Enrich joins the operator and, for geographic numbers, the commune of m.
func Enrich(ctx context.Context, tables Tables, n phone.Number, m Match) (Result, error) {
	result := Result{
		Number:       string(n),
		Found:        true,
		Kind:         m.Kind,
		Prefix:       m.Prefix,
		OperatorCode: m.OperatorCode,
	}

	op, err := joinOperator(ctx, tables, m.OperatorCode)
	if err != nil {
		return Result{}, err
	}
	result.Operator = op

	if m.Kind != Geographic {
		return result, nil
	}

	if hasCommuneCode(m.CommuneCode) {
		row, ok, err := tables.Commune(ctx, m.CommuneCode)
		if err != nil {
			return Result{}, fmt.Errorf("commune %s: %w", m.CommuneCode, err)
		}
		if ok {
			result.Location = &Location{Commune: &Commune{
				Code:       row.Code,
				Name:       row.Name,
				PostalCode: row.PostalCode,
				Department: row.Department,
				Latitude:   row.Latitude,
				Longitude:  row.Longitude,
			}}
			return result, nil
		}
	}

	if region, ok := RegionHint(n); ok {
		result.Location = &Location{Region: region}
	}
	return result, nil
}

func joinOperator(ctx context.Context, tables Tables, code string) (*Operator, error) {
	if code == "" {
		return &Operator{}, nil
	}
	row, ok, err := tables.Operator(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("operator %s: %w", code, err)
	}
	if !ok {
		return &Operator{Code: code}, nil
	}
	return &Operator{
		Code:    code,
		Name:    row.Name,
		Type:    row.Type,
		Email:   SanitizeEmail(row.Email),
		Website: SanitizeWebsite(row.Website),
		Known:   true,
	}, nil
}

// hasCommuneCode rejects the empty and all-zero placeholders used by the
// range file for blocks without a commune.
func hasCommuneCode(code string) bool {
	code = strings.TrimSpace(code)
	return code != "" && strings.Trim(code, "0") != ""
}

// SanitizeEmail returns s when it is a bare address with a valid domain, "" otherwise.
func SanitizeEmail(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Name != "" || addr.Address != s {
		return ""
	}
	at := strings.LastIndexByte(s, '@')
	if at <= 0 {
		return ""
	}
	domain, err := idna.Lookup.ToASCII(s[at+1:])
	if err != nil || !strings.Contains(domain, ".") || strings.HasSuffix(domain, ".") {
		return ""
	}
	return s
}

// SanitizeWebsite returns s when it is an absolute http(s) URL with a host, "" otherwise.
func SanitizeWebsite(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Hostname() == "" {
		return ""
	}
	return s
}
