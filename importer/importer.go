// SPDX-License-Identifier: GPL-3.0-only

// Package importer builds the lookup snapshot from the ARCEP and INSEE
// open-data extracts.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"whoistel/commons"
	"whoistel/db"
	"whoistel/models"
)

const (
	OperatorsFile = "identifiants_ce.csv"
	RangesFile    = "majournums.csv"
	CommunesFile  = "insee.csv"

	defaultBatchSize = 500
	codeWidth        = 5
)

type Options struct {
	// Dir holds the three extracts.
	Dir string
	// Out is the snapshot path. It is replaced only once the import succeeds.
	Out       string
	BatchSize int
}

type Stats struct {
	Operators           int
	GeographicRanges    int
	NonGeographicRanges int
	Communes            int
	Skipped             int
}

// Run imports the extracts of opts.Dir into a new sqlite file and renames
// it over opts.Out. Readers of the previous file keep their handle.
func Run(ctx context.Context, opts Options) (Stats, error) {
	var stats Stats
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	rangesPath := filepath.Join(opts.Dir, RangesFile)
	if _, err := os.Stat(rangesPath); err != nil {
		return stats, fmt.Errorf("ranges file is required: %w", err)
	}

	if dir := filepath.Dir(opts.Out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return stats, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tmp := opts.Out + ".tmp-" + uuid.New().String()
	conn, err := gorm.Open(sqlite.Open(tmp), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return stats, fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	committed := false
	defer func() {
		if !committed {
			db.Close(conn)
			os.Remove(tmp)
		}
	}()

	if err := conn.AutoMigrate(models.SnapshotModels...); err != nil {
		return stats, fmt.Errorf("failed to create snapshot schema: %w", err)
	}

	w := &writer{ctx: ctx, conn: conn, batch: opts.BatchSize, stats: &stats}

	if err := optional(w.operators(filepath.Join(opts.Dir, OperatorsFile))); err != nil {
		return stats, err
	}
	if err := w.ranges(rangesPath); err != nil {
		return stats, err
	}
	if err := optional(w.communes(filepath.Join(opts.Dir, CommunesFile))); err != nil {
		return stats, err
	}

	db.Close(conn)
	committed = true
	if err := os.Rename(tmp, opts.Out); err != nil {
		os.Remove(tmp)
		return stats, fmt.Errorf("failed to replace %s: %w", opts.Out, err)
	}

	return stats, nil
}

func optional(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		commons.Logger.Warn("Optional extract not found, table left empty: ", err)
		return nil
	}
	return err
}

type writer struct {
	ctx   context.Context
	conn  *gorm.DB
	batch int
	stats *Stats
}

func (w *writer) operators(path string) error {
	t, err := openTable(path)
	if err != nil {
		return err
	}
	defer t.Close()
	if err := t.require("CODE_OPERATEUR", "IDENTITE_OPERATEUR"); err != nil {
		return err
	}

	var rows []models.Operator
	for {
		rec, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		code := rec.get("CODE_OPERATEUR")
		if code == "" {
			w.stats.Skipped++
			continue
		}
		rows = append(rows, models.Operator{
			Code:    code,
			Name:    rec.get("IDENTITE_OPERATEUR"),
			Type:    rec.get("TYPE_OPERATEUR"),
			Email:   rec.get("MAIL_OPERATEUR"),
			Website: rec.get("SITE_OPERATEUR"),
		})
		w.stats.Operators++
		if len(rows) >= w.batch {
			if err := flush(w, &rows); err != nil {
				return err
			}
		}
	}
	return flush(w, &rows)
}

func (w *writer) ranges(path string) error {
	t, err := openTable(path)
	if err != nil {
		return err
	}
	defer t.Close()
	if err := t.require("EZABPQM", "Mnémo"); err != nil {
		return err
	}

	var geo []models.GeographicRange
	var other []models.NonGeographicRange
	for {
		rec, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		prefix := rec.get("EZABPQM")
		operator := rec.get("Mnémo")
		if len(prefix) < 2 || !isDigits(prefix) || operator == "" {
			w.stats.Skipped++
			continue
		}

		if prefix[0] == '0' && prefix[1] >= '1' && prefix[1] <= '5' {
			row := models.GeographicRange{Prefix: prefix, OperatorCode: operator}
			if code := padCode(rec.get("CODE_INSEE")); code != "" {
				row.CommuneCode = &code
			}
			geo = append(geo, row)
			w.stats.GeographicRanges++
			if len(geo) >= w.batch {
				if err := flush(w, &geo); err != nil {
					return err
				}
			}
			continue
		}

		other = append(other, models.NonGeographicRange{Prefix: prefix, OperatorCode: operator})
		w.stats.NonGeographicRanges++
		if len(other) >= w.batch {
			if err := flush(w, &other); err != nil {
				return err
			}
		}
	}
	if err := flush(w, &geo); err != nil {
		return err
	}
	return flush(w, &other)
}

func (w *writer) communes(path string) error {
	t, err := openTable(path)
	if err != nil {
		return err
	}
	defer t.Close()
	if err := t.require("INSEE", "Commune", "Codepos", "Departement"); err != nil {
		return err
	}

	var rows []models.Commune
	for {
		rec, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		c := models.Commune{
			Code:       padCode(rec.get("INSEE")),
			Name:       rec.get("Commune"),
			PostalCode: padCode(rec.get("Codepos")),
			Department: rec.get("Departement"),
			Latitude:   parseCoord(rec.get("Latitude")),
			Longitude:  parseCoord(rec.get("Longitude")),
		}
		if c.Code == "" || c.Name == "" || c.PostalCode == "" || c.Department == "" {
			commons.Logger.Debugf("%s:%d: incomplete row skipped", t.name, t.line)
			w.stats.Skipped++
			continue
		}
		rows = append(rows, c)
		w.stats.Communes++
		if len(rows) >= w.batch {
			if err := flush(w, &rows); err != nil {
				return err
			}
		}
	}
	return flush(w, &rows)
}

func flush[T any](w *writer, rows *[]T) error {
	if len(*rows) == 0 {
		return nil
	}
	if err := w.conn.WithContext(w.ctx).CreateInBatches(rows, w.batch).Error; err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	*rows = (*rows)[:0]
	return nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// padCode restores leading zeros lost by spreadsheet exports ("1001" is
// commune "01001"). Corsican codes such as "2A004" are kept as is.
func padCode(code string) string {
	if code == "" || !isDigits(code) || len(code) >= codeWidth {
		return code
	}
	return strings.Repeat("0", codeWidth-len(code)) + code
}

func parseCoord(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return nil
	}
	return &f
}
