// SPDX-License-Identifier: GPL-3.0-only

// Package phone turns user-entered French telephone numbers into the
// canonical 10-digit national form used as the lookup and report key.
package phone

import (
	"fmt"
	"strings"
	"unicode"
)

// Length is the number of digits of a canonical national number.
const Length = 10

// Number is a canonical national number: exactly 10 ASCII digits starting with 0.
type Number string

func (n Number) String() string { return string(n) }

type Reason string

const (
	ReasonMissing    Reason = "missing_number"
	ReasonNonNumeric Reason = "non_numeric"
	ReasonLength     Reason = "invalid_length"
	ReasonTrunk      Reason = "missing_trunk_prefix"
)

// Rejection is returned by Canonicalize when the input cannot be turned into a Number.
type Rejection struct {
	Reason  Reason
	Input   string
	Cleaned string
}

func (r *Rejection) Error() string {
	switch r.Reason {
	case ReasonMissing:
		return "Veuillez saisir un numéro."
	case ReasonNonNumeric:
		return fmt.Sprintf("Le numéro «%s» contient des caractères non numériques.", r.Input)
	case ReasonTrunk:
		return fmt.Sprintf("Le numéro «%s» doit commencer par 0 (ou +33).", r.Input)
	default:
		if r.Cleaned != "" && r.Cleaned != r.Input {
			return fmt.Sprintf("Le numéro «%s» est invalide après normalisation («%s»). Il doit contenir exactement 10 chiffres.", r.Input, r.Cleaned)
		}
		return fmt.Sprintf("Le numéro «%s» est invalide. Il doit contenir exactement 10 chiffres.", r.Input)
	}
}

// international prefixes, longest first: "+33(0)" is "+330" once parentheses are gone.
var internationalPrefixes = []string{"+330", "+33", "0033"}

// Clean removes separators and rewrites international prefixes to the
// national trunk prefix. It does not validate the result.
func Clean(raw string) string {
	tel := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		switch r {
		case '.', '-', '(', ')':
			return -1
		}
		return r
	}, raw)

	for _, prefix := range internationalPrefixes {
		if rest, ok := strings.CutPrefix(tel, prefix); ok {
			return "0" + rest
		}
	}
	return tel
}

// Canonicalize cleans raw and checks it is a 10-digit national number.
// Errors are always of type *Rejection.
func Canonicalize(raw string) (Number, error) {
	cleaned := Clean(raw)
	if cleaned == "" {
		return "", &Rejection{Reason: ReasonMissing, Input: raw}
	}
	for i := 0; i < len(cleaned); i++ {
		if cleaned[i] < '0' || cleaned[i] > '9' {
			return "", &Rejection{Reason: ReasonNonNumeric, Input: raw, Cleaned: cleaned}
		}
	}
	if len(cleaned) != Length {
		return "", &Rejection{Reason: ReasonLength, Input: raw, Cleaned: cleaned}
	}
	if cleaned[0] != '0' {
		return "", &Rejection{Reason: ReasonTrunk, Input: raw, Cleaned: cleaned}
	}
	return Number(cleaned), nil
}

// IsCanonical reports whether s is already in canonical form.
func IsCanonical(s string) bool {
	n, err := Canonicalize(s)
	return err == nil && string(n) == s
}
