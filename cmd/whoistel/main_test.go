// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"whoistel/db"
	"whoistel/models"
)

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "whoistel.sqlite3")
	conn, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	defer db.Close(conn)
	require.NoError(t, conn.AutoMigrate(models.SnapshotModels...))

	commune := "75056"
	lat, lon := 48.8566, 2.3522
	require.NoError(t, conn.Create(&models.GeographicRange{Prefix: "01234", OperatorCode: "OP1", CommuneCode: &commune}).Error)
	require.NoError(t, conn.Create(&models.NonGeographicRange{Prefix: "09876", OperatorCode: "OP2"}).Error)
	require.NoError(t, conn.Create(&models.Operator{Code: "OP1", Name: "Operator One", Website: "https://op1.example"}).Error)
	require.NoError(t, conn.Create(&models.Commune{
		Code: commune, Name: "Paris", PostalCode: "75001", Department: "Paris",
		Latitude: &lat, Longitude: &lon,
	}).Error)
	return path
}

func TestRunFound(t *testing.T) {
	path := writeSnapshot(t)
	var stdout, stderr bytes.Buffer

	code := run([]string{"-db", path, "01 23 45 67 89"}, &stdout, &stderr)
	assert.Equal(t, 0, code, stderr.String())
	out := stdout.String()
	assert.Contains(t, out, "01 23 45 67 89")
	assert.Contains(t, out, "Operator One")
	assert.Contains(t, out, "Paris")
	assert.Contains(t, out, "https://op1.example")
}

func TestRunJSON(t *testing.T) {
	path := writeSnapshot(t)
	var stdout, stderr bytes.Buffer

	code := run([]string{"-json", "-db", path, "0987654321"}, &stdout, &stderr)
	assert.Equal(t, 0, code, stderr.String())

	var got map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &got))
	assert.Equal(t, true, got["found"])
	assert.Equal(t, "09876", got["prefix"])
	assert.NotContains(t, got, "location")
}

func TestRunNotFound(t *testing.T) {
	path := writeSnapshot(t)
	var stdout, stderr bytes.Buffer

	code := run([]string{"-db", path, "0799999999"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "Numéro inconnu dans la base ARCEP")
	assert.Contains(t, stdout.String(), "Open Data")
}

func TestRunInvalidNumber(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run([]string{"-db", "unused.sqlite3", "0123"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "10 chiffres")
}

func TestRunMissingSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.sqlite3")
	var stdout, stderr bytes.Buffer

	code := run([]string{"-db", path, "0123456789"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.True(t, strings.HasPrefix(stderr.String(), "Erreur: La base de données '"+path+"' est absente."))
	assert.Contains(t, stderr.String(), "generatedb")
}

func TestRunWithHistory(t *testing.T) {
	path := writeSnapshot(t)
	t.Setenv("DB_DIALECT", "sqlite")
	t.Setenv("HISTORY_DB_FILE", filepath.Join(t.TempDir(), "history.sqlite3"))
	var stdout, stderr bytes.Buffer

	code := run([]string{"-history", "-db", path, "0123456789"}, &stdout, &stderr)
	assert.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "Signalé comme spam : 0 fois")
}
