// Command genexport reads a CSV of site centers and writes a site export
// document that can be posted to the import endpoint. Each row becomes a
// square boundary around its center.
//
// Usage:
//
//	go run ./cmd/genexport \
//	  -csv data/sites.csv \
//	  -out data/mock/sites-export.json
//
// The CSV needs a header with name, lat, lon and optionally description and
// half_width (degrees, default 0.01).
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/mapshield-weather/internal/domain"
	"github.com/jonboulle/clockwork"
)

const defaultHalfWidth = 0.01

var exportDate = time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvPath := flag.String("csv", "", "CSV file with site centers")
	out := flag.String("out", "", "output path for the export document")
	flag.Parse()

	if *csvPath == "" || *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -csv, -out")
	}

	// Fixed clock for reproducible export dates.
	domain.SetClock(clockwork.NewFakeClockAt(exportDate))
	defer domain.SetClock(nil)

	f, err := os.Open(*csvPath)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	sites, err := readSites(f)
	if err != nil {
		return fmt.Errorf("processing %s: %w", *csvPath, err)
	}
	log.Printf("total: %d sites", len(sites))

	if err := writeJSON(*out, domain.ExportSites(sites)); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	log.Printf("wrote export: %s", *out)
	return nil
}

// readSites parses CSV rows into validated sites.
func readSites(r io.Reader) ([]domain.Site, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("no data rows")
	}

	colIdx := map[string]int{}
	for i, h := range rows[0] {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range []string{"name", "lat", "lon"} {
		if _, ok := colIdx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	sites := make([]domain.Site, 0, len(rows)-1)
	for n, row := range rows[1:] {
		line := n + 2
		lat, err := strconv.ParseFloat(get(row, colIdx, "lat"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: lat: %w", line, err)
		}
		lon, err := strconv.ParseFloat(get(row, colIdx, "lon"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: lon: %w", line, err)
		}
		half := defaultHalfWidth
		if raw := get(row, colIdx, "half_width"); raw != "" {
			if half, err = strconv.ParseFloat(raw, 64); err != nil || half <= 0 {
				return nil, fmt.Errorf("line %d: half_width must be a positive number", line)
			}
		}

		site := domain.Site{
			Name:        get(row, colIdx, "name"),
			Description: get(row, colIdx, "description"),
			Polygon:     square(lat, lon, half),
			CreatedAt:   domain.Now(),
		}
		if err := domain.ValidateSite(site); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		sites = append(sites, site)
	}
	return sites, nil
}

func square(lat, lon, half float64) domain.Polygon {
	return domain.NewPolygon(
		domain.Position{lon - half, lat - half},
		domain.Position{lon + half, lat - half},
		domain.Position{lon + half, lat + half},
		domain.Position{lon - half, lat + half},
	)
}

func get(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
