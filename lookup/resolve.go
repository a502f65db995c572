// SPDX-License-Identifier: GPL-3.0-only

// Package lookup resolves canonical French numbers against the ARCEP
// numbering-plan tables and joins the operator and commune registries.
package lookup

import (
	"context"
	"fmt"

	"whoistel/models"
	"whoistel/phone"
)

type Kind string

const (
	Geographic    Kind = "geographic"
	NonGeographic Kind = "non-geographic"
)

// Label is the French wording shown to users.
func (k Kind) Label() string {
	switch k {
	case Geographic:
		return "Géographique"
	case NonGeographic:
		return "Non-géographique"
	}
	return ""
}

const (
	maxPrefixLen = phone.Length - 1
	minPrefixLen = 2
)

// Tables gives exact-match access to the four snapshot relations.
// A miss is reported with ok == false and a nil error; errors are
// reserved for the backing store being unusable.
type Tables interface {
	GeographicRange(ctx context.Context, prefix string) (models.GeographicRange, bool, error)
	NonGeographicRange(ctx context.Context, prefix string) (models.NonGeographicRange, bool, error)
	Operator(ctx context.Context, code string) (models.Operator, bool, error)
	Commune(ctx context.Context, code string) (models.Commune, bool, error)
}

// Classify depends on the first two digits only.
func Classify(n phone.Number) Kind {
	if len(n) >= 2 && n[0] == '0' && n[1] >= '1' && n[1] <= '5' {
		return Geographic
	}
	return NonGeographic
}

// Match is the longest range found for a number.
type Match struct {
	Kind         Kind
	Prefix       string
	OperatorCode string
	// CommuneCode is empty for non-geographic ranges and for geographic
	// ranges without a commune.
	CommuneCode string
}

// Resolve probes prefixes of n from 9 digits down to 2 in the table
// selected by Classify and returns the first hit. There is no fallback
// to the other table.
func Resolve(ctx context.Context, tables Tables, n phone.Number) (Match, bool, error) {
	kind := Classify(n)
	longest := min(maxPrefixLen, len(n))

	for l := longest; l >= minPrefixLen; l-- {
		prefix := string(n[:l])

		if kind == Geographic {
			row, ok, err := tables.GeographicRange(ctx, prefix)
			if err != nil {
				return Match{}, false, fmt.Errorf("geographic range %s: %w", prefix, err)
			}
			if ok {
				m := Match{Kind: kind, Prefix: row.Prefix, OperatorCode: row.OperatorCode}
				if row.CommuneCode != nil {
					m.CommuneCode = *row.CommuneCode
				}
				return m, true, nil
			}
			continue
		}

		row, ok, err := tables.NonGeographicRange(ctx, prefix)
		if err != nil {
			return Match{}, false, fmt.Errorf("non-geographic range %s: %w", prefix, err)
		}
		if ok {
			return Match{Kind: kind, Prefix: row.Prefix, OperatorCode: row.OperatorCode}, true, nil
		}
	}
	return Match{}, false, nil
}
