// SPDX-License-Identifier: GPL-3.0-only

package lookup

import (
	"fmt"
	"strconv"
	"strings"

	"whoistel/phone"
)

// Field is one labelled line of a view section.
type Field struct {
	Label string
	Value string
	// Link is set when Value is a sanitized website or email.
	Link string
}

type Section struct {
	Title  string
	Fields []Field
}

// View is the display form of a Result, shared by the CLI and the HTML templates.
type View struct {
	Number  string
	Display string
	Found   bool
	Message string
	Caveat  string
	Summary []Field

	Operator Section
	// Location is nil when the result carries no location.
	Location *Section
}

// Present builds the view of r without any further lookup.
func Present(r Result) View {
	v := View{
		Number:  r.Number,
		Display: r.Number,
		Found:   r.Found,
	}
	if phone.IsCanonical(r.Number) {
		v.Display = phone.Format(phone.Number(r.Number))
	}

	if !r.Found {
		v.Message = r.Error
		if v.Message == "" {
			v.Message = NotFoundMessage
		}
		if !r.Invalid {
			v.Caveat = Caveat
		}
		return v
	}

	v.Summary = []Field{
		{Label: "Type détecté", Value: r.Kind.Label()},
		{Label: "Préfixe identifié", Value: r.Prefix},
	}
	v.Operator = presentOperator(r)

	if r.Location != nil {
		loc := presentLocation(*r.Location)
		v.Location = &loc
	}
	return v
}

func presentOperator(r Result) Section {
	op := r.Operator
	if op == nil || !op.Known {
		code := strings.TrimSpace(r.OperatorCode)
		if code == "" {
			code = "inconnu"
		}
		return Section{
			Title:  "Opérateur",
			Fields: []Field{{Label: "Opérateur", Value: fmt.Sprintf("Code %s (Détails non trouvés)", code)}},
		}
	}

	s := Section{Title: "Opérateur"}
	s.Fields = append(s.Fields,
		Field{Label: "Nom", Value: op.Name},
		Field{Label: "Code ARCEP", Value: op.Code},
	)
	if op.Type != "" {
		s.Fields = append(s.Fields, Field{Label: "Type", Value: op.Type})
	}
	if op.Website != "" {
		s.Fields = append(s.Fields, Field{Label: "Site Web", Value: op.Website, Link: op.Website})
	}
	if op.Email != "" {
		s.Fields = append(s.Fields, Field{Label: "Email", Value: op.Email, Link: "mailto:" + op.Email})
	}
	return s
}

func presentLocation(loc Location) Section {
	s := Section{Title: "Localisation (Estimation)"}
	if loc.Commune == nil {
		s.Fields = append(s.Fields, Field{Label: "Région", Value: loc.Region + " (Détail commune non disponible)"})
		return s
	}

	c := loc.Commune
	s.Fields = append(s.Fields,
		Field{Label: "Commune", Value: c.Name},
		Field{Label: "Département", Value: c.Department},
		Field{Label: "Code Postal", Value: c.PostalCode},
	)
	if c.Latitude != nil && c.Longitude != nil {
		s.Fields = append(s.Fields, Field{Label: "GPS", Value: formatCoord(*c.Latitude) + ", " + formatCoord(*c.Longitude)})
	}
	return s
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Text renders the view as the CLI prints it.
func (v View) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Numéro : %s\n", v.Display)

	if !v.Found {
		fmt.Fprintf(&b, "Résultat : %s\n", v.Message)
		if v.Caveat != "" {
			fmt.Fprintf(&b, "Note : %s\n", v.Caveat)
		}
		return b.String()
	}

	for _, f := range v.Summary {
		fmt.Fprintf(&b, "%s : %s\n", f.Label, f.Value)
	}
	writeSection(&b, v.Operator)
	if v.Location != nil {
		writeSection(&b, *v.Location)
	}
	return b.String()
}

func writeSection(b *strings.Builder, s Section) {
	if len(s.Fields) == 1 && s.Fields[0].Label == s.Title {
		fmt.Fprintf(b, "\n%s : %s\n", s.Title, s.Fields[0].Value)
		return
	}
	fmt.Fprintf(b, "\n--- %s ---\n", s.Title)
	for _, f := range s.Fields {
		fmt.Fprintf(b, "%s : %s\n", f.Label, f.Value)
	}
}
