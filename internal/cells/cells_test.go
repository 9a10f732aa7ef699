package cells

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/shiimaxx/cdrgen/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371.0
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

func TestGenerateStaysWithinRadius(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	weights := []RATWeight{{models.RATLTE, 1}, {models.RATNR, 1}}
	cellList := Generate(rng, 500, 52.37, 4.90, 50, weights)
	require.Len(t, cellList, 500)
	for _, c := range cellList {
		d := haversineKm(52.37, 4.90, c.Lat, c.Lon)
		assert.LessOrEqual(t, d, 50.5)
	}
}

func TestGenerateAssignsOnlyConfiguredRATs(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	weights := []RATWeight{{models.RATWCDMA, 1}}
	cellList := Generate(rng, 50, 52.37, 4.90, 10, weights)
	for _, c := range cellList {
		assert.Equal(t, models.RATWCDMA, c.RAT)
	}
}

func TestEnsureCatalogIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cells.csv")
	rng := rand.New(rand.NewSource(3))
	weights := []RATWeight{{models.RATLTE, 1}}

	first, err := EnsureCatalog(path, rng, 20, 52.37, 4.90, 10, weights)
	require.NoError(t, err)

	// A second call with a *different* rng must still return the
	// persisted catalog rather than regenerating it.
	rng2 := rand.New(rand.NewSource(999))
	second, err := EnsureCatalog(path, rng2, 20, 52.37, 4.90, 10, weights)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSaveAndLoadCatalogRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cells.csv")
	cellList := []models.Cell{
		{ID: "cell-000000", Lat: 52.37, Lon: 4.90, RAT: models.RATNR},
	}
	require.NoError(t, SaveCatalog(path, cellList))
	loaded, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, cellList[0], loaded[0])
}

func TestLoadCatalogMissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
