// SPDX-License-Identifier: GPL-3.0-only

package lookup

import (
	"context"
	"sync"
	"sync/atomic"

	"whoistel/models"
)

// MemoryTables is an in-memory Tables, used for fixtures and small
// embedded datasets.
type MemoryTables struct {
	mu            sync.RWMutex
	geographic    map[string]models.GeographicRange
	nonGeographic map[string]models.NonGeographicRange
	operators     map[string]models.Operator
	communes      map[string]models.Commune

	// Err, when set, is returned by every accessor.
	Err      error
	Revision string

	probes atomic.Int64
}

func NewMemoryTables() *MemoryTables {
	return &MemoryTables{
		geographic:    map[string]models.GeographicRange{},
		nonGeographic: map[string]models.NonGeographicRange{},
		operators:     map[string]models.Operator{},
		communes:      map[string]models.Commune{},
	}
}

// AddGeographic registers a geographic range. An empty commune code is stored as NULL.
func (t *MemoryTables) AddGeographic(prefix, operatorCode, communeCode string) *MemoryTables {
	row := models.GeographicRange{Prefix: prefix, OperatorCode: operatorCode}
	if communeCode != "" {
		row.CommuneCode = &communeCode
	}
	t.mu.Lock()
	t.geographic[prefix] = row
	t.mu.Unlock()
	return t
}

func (t *MemoryTables) AddNonGeographic(prefix, operatorCode string) *MemoryTables {
	t.mu.Lock()
	t.nonGeographic[prefix] = models.NonGeographicRange{Prefix: prefix, OperatorCode: operatorCode}
	t.mu.Unlock()
	return t
}

func (t *MemoryTables) AddOperator(op models.Operator) *MemoryTables {
	t.mu.Lock()
	t.operators[op.Code] = op
	t.mu.Unlock()
	return t
}

func (t *MemoryTables) AddCommune(c models.Commune) *MemoryTables {
	t.mu.Lock()
	t.communes[c.Code] = c
	t.mu.Unlock()
	return t
}

// Probes counts range-table accesses since creation.
func (t *MemoryTables) Probes() int {
	return int(t.probes.Load())
}

func (t *MemoryTables) Version() string {
	return t.Revision
}

func (t *MemoryTables) GeographicRange(ctx context.Context, prefix string) (models.GeographicRange, bool, error) {
	t.probes.Add(1)
	if err := t.check(ctx); err != nil {
		return models.GeographicRange{}, false, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	row, ok := t.geographic[prefix]
	return row, ok, nil
}

func (t *MemoryTables) NonGeographicRange(ctx context.Context, prefix string) (models.NonGeographicRange, bool, error) {
	t.probes.Add(1)
	if err := t.check(ctx); err != nil {
		return models.NonGeographicRange{}, false, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	row, ok := t.nonGeographic[prefix]
	return row, ok, nil
}

func (t *MemoryTables) Operator(ctx context.Context, code string) (models.Operator, bool, error) {
	if err := t.check(ctx); err != nil {
		return models.Operator{}, false, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	row, ok := t.operators[code]
	return row, ok, nil
}

func (t *MemoryTables) Commune(ctx context.Context, code string) (models.Commune, bool, error) {
	if err := t.check(ctx); err != nil {
		return models.Commune{}, false, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	row, ok := t.communes[code]
	return row, ok, nil
}

func (t *MemoryTables) check(ctx context.Context) error {
	if t.Err != nil {
		return t.Err
	}
	return ctx.Err()
}
