// SPDX-License-Identifier: GPL-3.0-only

package db

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"whoistel/commons"
	"whoistel/lookup"
	"whoistel/metrics"
	"whoistel/models"
)

const DefaultSnapshotPath = "whoistel.sqlite3"

var (
	ErrSnapshotMissing = errors.New("snapshot database is missing")
	ErrSnapshotInvalid = errors.New("snapshot database is unreadable")
)

// SnapshotPath returns the configured snapshot location.
func SnapshotPath() string {
	return commons.GetEnv("WHOISTEL_DB", DefaultSnapshotPath)
}

// snapshotHandle is one opened snapshot file. It is closed once it has
// been retired and its last user released it.
type snapshotHandle struct {
	conn    *gorm.DB
	version string

	mu      sync.Mutex
	users   int
	retired bool
}

func (h *snapshotHandle) acquire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.retired {
		return false
	}
	h.users++
	return true
}

func (h *snapshotHandle) release() {
	h.mu.Lock()
	h.users--
	idle := h.retired && h.users == 0
	h.mu.Unlock()
	if idle {
		Close(h.conn)
	}
}

func (h *snapshotHandle) retire() {
	h.mu.Lock()
	h.retired = true
	idle := h.users == 0
	h.mu.Unlock()
	if idle {
		Close(h.conn)
	}
}

// Snapshot is a read-only view of the ARCEP tables produced by generatedb.
// The underlying file can be replaced at any time; Reload switches to it.
type Snapshot struct {
	path    string
	reload  sync.Mutex
	current atomic.Pointer[snapshotHandle]
}

// NewSnapshot returns a snapshot that opens path on first use.
func NewSnapshot(path string) *Snapshot {
	return &Snapshot{path: path}
}

// OpenSnapshot opens path immediately and fails if it is missing or unreadable.
func OpenSnapshot(path string) (*Snapshot, error) {
	s := NewSnapshot(path)
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Snapshot) Path() string {
	return s.path
}

// Reload opens the file currently at the snapshot path and swaps it in.
// The previous handle is closed after its pending queries and pinned
// views are done; on failure it is kept.
func (s *Snapshot) Reload() error {
	s.reload.Lock()
	defer s.reload.Unlock()
	return s.reloadLocked()
}

func (s *Snapshot) reloadLocked() error {
	h, err := openSnapshot(s.path)
	if err != nil {
		metrics.SnapshotReloadsTotal.WithLabelValues("failed").Inc()
		return err
	}
	old := s.current.Swap(h)
	metrics.SnapshotReloadsTotal.WithLabelValues("ok").Inc()
	commons.Logger.Infof("Snapshot loaded from %s (version %s)", s.path, h.version)

	if old != nil {
		old.retire()
	}
	return nil
}

// Version identifies the loaded file. It is empty before the first load.
func (s *Snapshot) Version() string {
	if h := s.current.Load(); h != nil {
		return h.version
	}
	return ""
}

func (s *Snapshot) Close() {
	s.reload.Lock()
	defer s.reload.Unlock()
	if old := s.current.Swap(nil); old != nil {
		old.retire()
	}
}

func (s *Snapshot) handle() (*snapshotHandle, error) {
	if h := s.current.Load(); h != nil {
		return h, nil
	}

	s.reload.Lock()
	defer s.reload.Unlock()
	if h := s.current.Load(); h != nil {
		return h, nil
	}
	if err := s.reloadLocked(); err != nil {
		return nil, err
	}
	return s.current.Load(), nil
}

// acquire returns the current handle with one more user.
func (s *Snapshot) acquire() (*snapshotHandle, error) {
	for {
		h, err := s.handle()
		if err != nil {
			return nil, err
		}
		if h.acquire() {
			return h, nil
		}
	}
}

// Pin returns tables bound to the currently loaded file until release is
// called, so that a multi-query lookup never spans two files.
func (s *Snapshot) Pin() (tables lookup.Tables, release func(), err error) {
	h, err := s.acquire()
	if err != nil {
		return nil, nil, err
	}
	return snapshotView{h: h}, sync.OnceFunc(h.release), nil
}

func openSnapshot(path string) (*snapshotHandle, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSnapshotInvalid, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrSnapshotInvalid, path)
	}

	conn, err := gorm.Open(sqlite.Open(readOnlyDSN(path)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSnapshotInvalid, path, err)
	}

	for _, model := range models.SnapshotModels {
		if !conn.Migrator().HasTable(model) {
			Close(conn)
			return nil, fmt.Errorf("%w: %s: missing table for %T", ErrSnapshotInvalid, path, model)
		}
	}

	version := strconv.FormatInt(info.ModTime().UnixNano(), 36) + "-" + strconv.FormatInt(info.Size(), 36)
	return &snapshotHandle{conn: conn, version: version}, nil
}

// readOnlyDSN builds a sqlite URI for path; reserved characters in the
// path are escaped.
func readOnlyDSN(path string) string {
	u := url.URL{Scheme: "file", OmitHost: true, Path: filepath.ToSlash(path), RawQuery: "mode=ro"}
	return u.String()
}

// takeLast returns the last written row whose column equals value.
func takeLast[T any](ctx context.Context, h *snapshotHandle, column, value string) (T, bool, error) {
	var row T
	err := h.conn.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Name: column}, Value: value}).
		Order("rowid DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, false, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return row, false, err
		}
		return row, false, fmt.Errorf("%w: %w", ErrSnapshotInvalid, err)
	}
	return row, true, nil
}

// takeCurrent runs takeLast against the current handle.
func takeCurrent[T any](ctx context.Context, s *Snapshot, column, value string) (T, bool, error) {
	h, err := s.acquire()
	if err != nil {
		var row T
		return row, false, err
	}
	defer h.release()
	return takeLast[T](ctx, h, column, value)
}

func (s *Snapshot) GeographicRange(ctx context.Context, prefix string) (models.GeographicRange, bool, error) {
	return takeCurrent[models.GeographicRange](ctx, s, "PlageTel", prefix)
}

func (s *Snapshot) NonGeographicRange(ctx context.Context, prefix string) (models.NonGeographicRange, bool, error) {
	return takeCurrent[models.NonGeographicRange](ctx, s, "PlageTel", prefix)
}

func (s *Snapshot) Operator(ctx context.Context, code string) (models.Operator, bool, error) {
	return takeCurrent[models.Operator](ctx, s, "CodeOperateur", code)
}

func (s *Snapshot) Commune(ctx context.Context, code string) (models.Commune, bool, error) {
	return takeCurrent[models.Commune](ctx, s, "CodeInsee", code)
}

// snapshotView queries one handle for as long as it is pinned.
type snapshotView struct {
	h *snapshotHandle
}

func (v snapshotView) Version() string {
	return v.h.version
}

func (v snapshotView) GeographicRange(ctx context.Context, prefix string) (models.GeographicRange, bool, error) {
	return takeLast[models.GeographicRange](ctx, v.h, "PlageTel", prefix)
}

func (v snapshotView) NonGeographicRange(ctx context.Context, prefix string) (models.NonGeographicRange, bool, error) {
	return takeLast[models.NonGeographicRange](ctx, v.h, "PlageTel", prefix)
}

func (v snapshotView) Operator(ctx context.Context, code string) (models.Operator, bool, error) {
	return takeLast[models.Operator](ctx, v.h, "CodeOperateur", code)
}

func (v snapshotView) Commune(ctx context.Context, code string) (models.Commune, bool, error) {
	return takeLast[models.Commune](ctx, v.h, "CodeInsee", code)
}

// WithSnapshot runs fn with s, or with a snapshot opened from path that is
// closed when fn returns.
func WithSnapshot(s *Snapshot, path string, fn func(*Snapshot) error) error {
	if s != nil {
		return fn(s)
	}
	s, err := OpenSnapshot(path)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
