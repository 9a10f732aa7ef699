// Package cells generates and persists the radio cell catalog: cells
// drawn uniformly inside a disk around a configured center coordinate,
// each assigned a RAT by weighted choice.
package cells

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"

	"github.com/shiimaxx/cdrgen/internal/models"
)

// kmPerDegreeLat is the approximate number of kilometers per degree of
// latitude, used to convert a radius in km into degree offsets.
const kmPerDegreeLat = 111.32

// RATWeight pairs a RAT with its selection weight (weights need not
// sum to 1; Generate normalizes via sequential threshold comparison).
type RATWeight struct {
	RAT    models.RAT
	Weight float64
}

// Generate draws n cells uniformly inside a disk of radiusKm around
// (centerLat, centerLon), assigning each a RAT via weighted choice.
// Coordinates are rounded to 6 decimal places.
func Generate(rng *rand.Rand, n int, centerLat, centerLon, radiusKm float64, ratWeights []RATWeight) []models.Cell {
	var totalWeight float64
	for _, rw := range ratWeights {
		totalWeight += rw.Weight
	}
	cells := make([]models.Cell, n)
	kmPerDegreeLon := kmPerDegreeLat * math.Cos(centerLat*math.Pi/180.0)
	for i := 0; i < n; i++ {
		// Uniform-in-disk: radius scales with sqrt(u) to avoid
		// oversampling the center.
		r := radiusKm * math.Sqrt(rng.Float64())
		theta := rng.Float64() * 2 * math.Pi
		dLat := (r * math.Sin(theta)) / kmPerDegreeLat
		dLon := (r * math.Cos(theta)) / kmPerDegreeLon

		lat := round6(centerLat + dLat)
		lon := round6(centerLon + dLon)

		draw := rng.Float64() * totalWeight
		var chosen models.RAT
		var cum float64
		for _, rw := range ratWeights {
			cum += rw.Weight
			if draw <= cum {
				chosen = rw.RAT
				break
			}
		}
		if chosen == "" && len(ratWeights) > 0 {
			chosen = ratWeights[len(ratWeights)-1].RAT
		}

		cells[i] = models.Cell{
			ID:  fmt.Sprintf("cell-%06d", i),
			Lat: lat,
			Lon: lon,
			RAT: chosen,
		}
	}
	return cells
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// EnsureCatalog writes the cell catalog to path unless it already
// exists, keeping catalog generation idempotent across runs sharing a
// seed (same seed => identical catalog, generated at most once).
func EnsureCatalog(path string, rng *rand.Rand, n int, centerLat, centerLon, radiusKm float64, ratWeights []RATWeight) ([]models.Cell, error) {
	if _, err := os.Stat(path); err == nil {
		return LoadCatalog(path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("cells: stat catalog: %w", err)
	}
	cellList := Generate(rng, n, centerLat, centerLon, radiusKm, ratWeights)
	if err := SaveCatalog(path, cellList); err != nil {
		return nil, err
	}
	return cellList, nil
}

// SaveCatalog writes the catalog as cell_id,lat,lon,rat CSV.
func SaveCatalog(path string, cellList []models.Cell) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cells: create catalog: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"cell_id", "lat", "lon", "rat"}); err != nil {
		return fmt.Errorf("cells: write header: %w", err)
	}
	for _, c := range cellList {
		row := []string{
			c.ID,
			strconv.FormatFloat(c.Lat, 'f', 6, 64),
			strconv.FormatFloat(c.Lon, 'f', 6, 64),
			string(c.RAT),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("cells: write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// LoadCatalog reads a previously written cell catalog.
func LoadCatalog(path string) ([]models.Cell, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cells: open catalog: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("cells: read catalog: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	out := make([]models.Cell, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) != 4 {
			return nil, fmt.Errorf("cells: malformed row %v", row)
		}
		lat, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("cells: parse lat: %w", err)
		}
		lon, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("cells: parse lon: %w", err)
		}
		out = append(out, models.Cell{ID: row[0], Lat: lat, Lon: lon, RAT: models.RAT(row[3])})
	}
	return out, nil
}
