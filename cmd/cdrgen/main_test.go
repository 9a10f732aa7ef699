package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shiimaxx/cdrgen/internal/models"
	"github.com/shiimaxx/cdrgen/internal/subscriberdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunEndToEndSmallPopulation(t *testing.T) {
	dir := t.TempDir()
	rc := run([]string{
		"--subs", "50",
		"--start", "2025-01-01",
		"--days", "1",
		"--seed", "42",
		"--workers", "2",
		"--out", dir,
	})
	require.Equal(t, exitOK, rc)

	dayDir := filepath.Join(dir, "2025-01-01")
	data, err := os.ReadFile(filepath.Join(dayDir, "summary.json"))
	require.NoError(t, err)

	var summary struct {
		Day    string `json:"day"`
		Shards int    `json:"shards"`
		Events struct {
			Call int `json:"CALL"`
			SMS  int `json:"SMS"`
			Data int `json:"DATA"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, "2025-01-01", summary.Day)
	assert.Equal(t, 2, summary.Shards)
	assert.Greater(t, summary.Events.Call, 0)
	assert.Greater(t, summary.Events.SMS, 0)
	assert.Greater(t, summary.Events.Data, 0)

	_, err = os.Stat(filepath.Join(dir, "cells.csv"))
	assert.NoError(t, err)
	_, err = os.Stat(dayDir + ".tar.gz")
	assert.NoError(t, err)
}

func TestRunZeroDaysExitsCleanly(t *testing.T) {
	dir := t.TempDir()
	rc := run([]string{
		"--subs", "10",
		"--start", "2025-01-01",
		"--days", "0",
		"--out", dir,
	})
	assert.Equal(t, exitOK, rc)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, "2025-01-01", e.Name())
	}
}

func TestGenerateThenValidateDB(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "db.csv")

	rc := run([]string{
		"--generate-db", dbPath,
		"--db-size", "100",
		"--db-history-days", "30",
		"--start", "2025-01-01",
		"--seed", "1",
		"--out", dir,
	})
	require.Equal(t, exitOK, rc)

	rc = run([]string{
		"--subscriber-db", dbPath,
		"--validate-db",
		"--out", dir,
	})
	assert.Equal(t, exitOK, rc)
}

func TestValidateDBWithoutPathIsConfigError(t *testing.T) {
	dir := t.TempDir()
	rc := run([]string{"--validate-db", "--out", dir})
	assert.Equal(t, exitConfigError, rc)
}

func TestResummarizeRebuildsSummaryFromShardStats(t *testing.T) {
	dir := t.TempDir()
	rc := run([]string{
		"--subs", "30",
		"--start", "2025-02-01",
		"--days", "1",
		"--seed", "7",
		"--workers", "2",
		"--out", dir,
	})
	require.Equal(t, exitOK, rc)

	dayDir := filepath.Join(dir, "2025-02-01")
	summaryPath := filepath.Join(dayDir, "summary.json")
	require.NoError(t, os.Remove(summaryPath))

	rc = run([]string{"--resummarize", "2025-02-01", "--out", dir})
	assert.Equal(t, exitOK, rc)

	data, err := os.ReadFile(summaryPath)
	require.NoError(t, err)

	var summary struct {
		Day    string `json:"day"`
		Shards int    `json:"shards"`
	}
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, "2025-02-01", summary.Day)
	assert.Equal(t, 2, summary.Shards)
}

func TestValidateDBRejectsMSISDNOutsideConfiguredPrefixes(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "db.csv")

	evts := []models.HistoryEvent{
		{
			TimestampMs: 1000,
			Kind:        models.KindNewSubscriber,
			IMSI:        "204089999999999",
			MSISDN:      "99912345678",
			IMEI:        "490154203237518",
			MCCMNC:      "20408",
		},
	}
	require.NoError(t, subscriberdb.SaveCSV(dbPath, evts))

	rc := run([]string{
		"--subscriber-db", dbPath,
		"--validate-db",
		"--out", dir,
	})
	assert.Equal(t, exitValidationErr, rc)
}
