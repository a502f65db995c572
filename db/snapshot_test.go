// SPDX-License-Identifier: GPL-3.0-only

package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"whoistel/lookup"
	"whoistel/models"
)

func writeSnapshot(t *testing.T, path string, ranges ...models.NonGeographicRange) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("Failed to create snapshot: %v", err)
	}
	defer Close(conn)
	if err := conn.AutoMigrate(models.SnapshotModels...); err != nil {
		t.Fatalf("Failed to migrate snapshot: %v", err)
	}
	for _, r := range ranges {
		if err := conn.Create(&r).Error; err != nil {
			t.Fatalf("Failed to insert range: %v", err)
		}
	}
}

func TestOpenSnapshotMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.sqlite3")
	_, err := OpenSnapshot(path)
	if !errors.Is(err, ErrSnapshotMissing) {
		t.Errorf("Expected ErrSnapshotMissing, got %v", err)
	}
}

func TestOpenSnapshotInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.sqlite3")
	if err := os.WriteFile(path, []byte("definitely not sqlite"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := OpenSnapshot(path)
	if !errors.Is(err, ErrSnapshotInvalid) {
		t.Errorf("Expected ErrSnapshotInvalid, got %v", err)
	}
}

func TestSnapshotLoadsLazily(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whoistel.sqlite3")
	s := NewSnapshot(path)
	defer s.Close()
	ctx := context.Background()

	if _, _, err := s.NonGeographicRange(ctx, "06"); !errors.Is(err, ErrSnapshotMissing) {
		t.Fatalf("Expected ErrSnapshotMissing before the file exists, got %v", err)
	}

	writeSnapshot(t, path, models.NonGeographicRange{Prefix: "06", OperatorCode: "OP1"})

	row, ok, err := s.NonGeographicRange(ctx, "06")
	if err != nil || !ok {
		t.Fatalf("Expected a row once the file exists, got ok=%v err=%v", ok, err)
	}
	if row.OperatorCode != "OP1" {
		t.Errorf("Expected OP1, got %s", row.OperatorCode)
	}

	_, ok, err = s.NonGeographicRange(ctx, "07")
	if err != nil || ok {
		t.Errorf("Expected a clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestSnapshotReloadSwapsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "whoistel.sqlite3")
	writeSnapshot(t, path, models.NonGeographicRange{Prefix: "06", OperatorCode: "OLD"})

	s, err := OpenSnapshot(path)
	if err != nil {
		t.Fatalf("OpenSnapshot failed: %v", err)
	}
	defer s.Close()
	before := s.Version()

	next := filepath.Join(dir, "next.sqlite3")
	writeSnapshot(t, next, models.NonGeographicRange{Prefix: "06", OperatorCode: "NEW"})
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(next, later, later); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(next, path); err != nil {
		t.Fatal(err)
	}

	if err := s.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if s.Version() == before {
		t.Error("Expected version to change after reload")
	}

	row, _, err := s.NonGeographicRange(context.Background(), "06")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if row.OperatorCode != "NEW" {
		t.Errorf("Expected NEW, got %s", row.OperatorCode)
	}
}

func TestReloadFailureKeepsCurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whoistel.sqlite3")
	writeSnapshot(t, path, models.NonGeographicRange{Prefix: "06", OperatorCode: "OP1"})

	s, err := OpenSnapshot(path)
	if err != nil {
		t.Fatalf("OpenSnapshot failed: %v", err)
	}
	defer s.Close()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(); !errors.Is(err, ErrSnapshotMissing) {
		t.Errorf("Expected ErrSnapshotMissing, got %v", err)
	}

	_, ok, err := s.NonGeographicRange(context.Background(), "06")
	if err != nil || !ok {
		t.Errorf("Expected previous handle to keep serving, got ok=%v err=%v", ok, err)
	}
}

func TestWithSnapshotClosesOwnHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whoistel.sqlite3")
	writeSnapshot(t, path)

	var opened *Snapshot
	err := WithSnapshot(nil, path, func(s *Snapshot) error {
		opened = s
		if s.Version() == "" {
			t.Error("Expected a loaded snapshot")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithSnapshot failed: %v", err)
	}
	if opened.Version() != "" {
		t.Error("Expected snapshot to be closed after WithSnapshot")
	}

	if err := WithSnapshot(nil, filepath.Join(t.TempDir(), "none"), func(*Snapshot) error { return nil }); !errors.Is(err, ErrSnapshotMissing) {
		t.Errorf("Expected ErrSnapshotMissing, got %v", err)
	}
}

func TestPinnedViewSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whoistel.sqlite3")
	writeSnapshot(t, path, models.NonGeographicRange{Prefix: "06", OperatorCode: "OP1"})

	s, err := OpenSnapshot(path)
	if err != nil {
		t.Fatalf("OpenSnapshot failed: %v", err)
	}
	defer s.Close()

	tables, release, err := s.Pin()
	if err != nil {
		t.Fatalf("Pin failed: %v", err)
	}
	pinned := s.current.Load()

	if err := s.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if _, ok, err := tables.NonGeographicRange(context.Background(), "06"); err != nil || !ok {
		t.Fatalf("Expected the pinned view to keep serving after reload, got ok=%v err=%v", ok, err)
	}

	release()
	release()
	sqlDB, err := pinned.conn.DB()
	if err != nil {
		t.Fatal(err)
	}
	if err := sqlDB.Ping(); err == nil {
		t.Error("Expected the retired handle to be closed once released")
	}
	if _, ok, err := s.NonGeographicRange(context.Background(), "06"); err != nil || !ok {
		t.Errorf("Expected the new handle to serve, got ok=%v err=%v", ok, err)
	}
}

func TestLookupsDuringReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whoistel.sqlite3")
	writeSnapshot(t, path, models.NonGeographicRange{Prefix: "0612", OperatorCode: "OP1"})

	s, err := OpenSnapshot(path)
	if err != nil {
		t.Fatalf("OpenSnapshot failed: %v", err)
	}
	defer s.Close()
	svc := lookup.NewService(s)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		stop     atomic.Bool
		lookups  atomic.Int64
		failures atomic.Int64
		firstErr atomic.Value
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !stop.Load() {
				result, err := svc.Lookup(ctx, "0612345678")
				lookups.Add(1)
				if err != nil || !result.Found {
					failures.Add(1)
					firstErr.CompareAndSwap(nil, fmt.Sprint(err))
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		if err := s.Reload(); err != nil {
			t.Errorf("Reload failed: %v", err)
			break
		}
	}
	stop.Store(true)
	wg.Wait()

	if failures.Load() != 0 {
		t.Errorf("Expected no failed lookups across reloads, got %d of %d (first: %v)",
			failures.Load(), lookups.Load(), firstErr.Load())
	}
}

func TestReadOnlyDSNEscapesPath(t *testing.T) {
	got := readOnlyDSN("/srv/a?b#c%d.sqlite3")
	want := "file:/srv/a%3Fb%23c%25d.sqlite3?mode=ro"
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
	if got := readOnlyDSN("whoistel.sqlite3"); got != "file:whoistel.sqlite3?mode=ro" {
		t.Errorf("Expected relative path kept, got %s", got)
	}
}

func TestOpenSnapshotWithReservedCharacters(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.sqlite3")
	writeSnapshot(t, plain, models.NonGeographicRange{Prefix: "06", OperatorCode: "OP1"})
	path := filepath.Join(dir, "who?is#tel%41.sqlite3")
	if err := os.Rename(plain, path); err != nil {
		t.Fatal(err)
	}

	s, err := OpenSnapshot(path)
	if err != nil {
		t.Fatalf("OpenSnapshot failed: %v", err)
	}
	defer s.Close()
	if _, ok, err := s.NonGeographicRange(context.Background(), "06"); err != nil || !ok {
		t.Errorf("Expected a row, got ok=%v err=%v", ok, err)
	}
}
