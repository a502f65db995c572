// SPDX-License-Identifier: GPL-3.0-only

package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normalizeHeader lowercases and strips accents so "Mnémo", "MNEMO" and
// a mis-decoded "Mn\xe9mo" all compare equal.
func normalizeHeader(s string) string {
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s = strings.TrimPrefix(strings.TrimSpace(s), "\ufeff")
	result, _, err := transform.String(stripAccents, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return result
}

// table is a decoded ARCEP extract: a ';' separated cp1252 file with a header row.
type table struct {
	name    string
	columns map[string]int
	reader  *csv.Reader
	closer  io.Closer
	line    int
}

func openTable(path string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(transform.NewReader(f, charmap.Windows1252.NewDecoder()))
	r.Comma = ';'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: failed to read header: %w", path, err)
	}

	t := &table{name: path, columns: map[string]int{}, reader: r, closer: f, line: 1}
	for i, name := range header {
		t.columns[normalizeHeader(name)] = i
	}
	return t, nil
}

// require checks that every column exists, by normalized name.
func (t *table) require(columns ...string) error {
	var missing []string
	for _, c := range columns {
		if _, ok := t.columns[normalizeHeader(c)]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: missing columns %s", t.name, strings.Join(missing, ", "))
	}
	return nil
}

// next returns the following record, or io.EOF.
func (t *table) next() (record, error) {
	fields, err := t.reader.Read()
	t.line++
	if err != nil {
		if errors.Is(err, io.EOF) {
			return record{}, io.EOF
		}
		return record{}, fmt.Errorf("%s:%d: %w", t.name, t.line, err)
	}
	return record{table: t, fields: fields}, nil
}

func (t *table) Close() error {
	return t.closer.Close()
}

type record struct {
	table  *table
	fields []string
}

// get returns the trimmed value of column, or "" when absent.
func (r record) get(column string) string {
	i, ok := r.table.columns[normalizeHeader(column)]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}
