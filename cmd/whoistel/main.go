// SPDX-License-Identifier: GPL-3.0-only

// Command whoistel prints the carrier and location of a French phone number.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"gorm.io/gorm"

	"whoistel/commons"
	"whoistel/db"
	"whoistel/history"
	"whoistel/lookup"
	"whoistel/models"
	"whoistel/phone"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type output struct {
	lookup.Result
	SpamCount *int64          `json:"spam_count,omitempty"`
	Reports   []models.Report `json:"reports,omitempty"`
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("whoistel", flag.ContinueOnError)
	flags.SetOutput(stderr)
	asJSON := flags.Bool("json", false, "Print the result as JSON")
	withHistory := flags.Bool("history", false, "Include community reports")
	path := flags.String("db", db.SnapshotPath(), "Snapshot database")
	flags.String("env-file", "", "Environment file")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	commons.InitLogger()

	if flags.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: whoistel [-json] [-history] [-db path] <numero>")
		return 1
	}

	n, err := phone.Canonicalize(flags.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, "Erreur:", err)
		return 1
	}

	ctx := context.Background()
	var out output
	err = db.WithSnapshot(nil, *path, func(s *db.Snapshot) error {
		out.Result, err = lookup.NewService(s).Resolve(ctx, n)
		return err
	})
	if err != nil {
		if errors.Is(err, db.ErrSnapshotMissing) {
			fmt.Fprintf(stderr, "Erreur: La base de données '%s' est absente. Veuillez exécuter 'generatedb' pour la générer.\n", *path)
		} else {
			fmt.Fprintln(stderr, "Erreur:", err)
		}
		return 1
	}

	if *withHistory {
		err := db.WithHistory(nil, func(conn *gorm.DB) error {
			store := history.NewStore(conn)
			count, err := store.SpamCount(ctx, n)
			if err != nil {
				return err
			}
			out.SpamCount = &count
			out.Reports, err = store.ForNumber(ctx, n, history.DefaultRecentLimit)
			return err
		})
		if err != nil {
			fmt.Fprintln(stderr, "Erreur:", err)
			return 1
		}
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintln(stderr, "Erreur:", err)
			return 1
		}
	} else {
		fmt.Fprint(stdout, lookup.Present(out.Result).Text())
		if out.SpamCount != nil {
			printHistory(stdout, *out.SpamCount, out.Reports)
		}
	}

	if !out.Found {
		return 1
	}
	return 0
}

func printHistory(w io.Writer, spamCount int64, reports []models.Report) {
	fmt.Fprintln(w, "\n--- Signalements ---")
	fmt.Fprintf(w, "Signalé comme spam : %d fois\n", spamCount)
	for _, r := range reports {
		spam := "NON"
		if r.IsSpam {
			spam = "OUI"
		}
		line := fmt.Sprintf("%s  spam: %s", r.CreatedAt.Format("2006-01-02 15:04"), spam)
		if r.ReportDate != nil {
			line += "  date: " + *r.ReportDate
		}
		if r.Comment != nil {
			line += "  " + *r.Comment
		}
		fmt.Fprintln(w, line)
	}
}
