// SPDX-License-Identifier: GPL-3.0-only

package models

import (
	"testing"
)

func TestReportBeforeCreateAssignsID(t *testing.T) {
	r := &Report{PhoneNumber: "0612345678", IsSpam: true}
	if err := r.BeforeCreate(nil); err != nil {
		t.Fatalf("BeforeCreate failed: %v", err)
	}
	if len(r.RID) != 36 {
		t.Errorf("Expected a UUID report ID, got %q", r.RID)
	}

	rid := r.RID
	if err := r.BeforeCreate(nil); err != nil {
		t.Fatalf("BeforeCreate failed: %v", err)
	}
	if r.RID != rid {
		t.Errorf("Expected existing report ID %s to be kept, got %s", rid, r.RID)
	}
}

func TestReportAfterFindTrimsTimestampDates(t *testing.T) {
	date := "2026-10-01T00:00:00Z"
	r := &Report{ReportDate: &date}
	if err := r.AfterFind(nil); err != nil {
		t.Fatalf("AfterFind failed: %v", err)
	}
	if *r.ReportDate != "2026-10-01" {
		t.Errorf("Expected 2026-10-01, got %s", *r.ReportDate)
	}
}

func TestCommuneHasCoordinates(t *testing.T) {
	lat := 48.85
	if (Commune{Latitude: &lat}).HasCoordinates() {
		t.Error("Expected a commune with only a latitude to have no coordinates")
	}
	lon := 2.35
	if !(Commune{Latitude: &lat, Longitude: &lon}).HasCoordinates() {
		t.Error("Expected a commune with both coordinates")
	}
}

func TestModelRegistries(t *testing.T) {
	if len(AllModels) != 1 {
		t.Errorf("Expected only the report table in the history database, got %d models", len(AllModels))
	}
	if len(SnapshotModels) != 4 {
		t.Errorf("Expected 4 snapshot tables, got %d", len(SnapshotModels))
	}
}
