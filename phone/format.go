// SPDX-License-Identifier: GPL-3.0-only

package phone

import (
	"github.com/nyaruka/phonenumbers"
)

const regionFR = "FR"

// Format renders n with the French national digit grouping ("01 23 45 67 89").
// Numbers the metadata does not know are returned unchanged.
func Format(n Number) string {
	parsed, err := phonenumbers.Parse(string(n), regionFR)
	if err != nil {
		return string(n)
	}
	return phonenumbers.Format(parsed, phonenumbers.NATIONAL)
}

// E164 renders n in international E.164 form ("+33123456789").
func E164(n Number) string {
	parsed, err := phonenumbers.Parse(string(n), regionFR)
	if err != nil {
		return "+33" + string(n)[1:]
	}
	return phonenumbers.Format(parsed, phonenumbers.E164)
}
