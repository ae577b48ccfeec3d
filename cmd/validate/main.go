// Command validate checks a site export document before it is imported. It
// verifies the document version, each site's name and boundary, and reports
// sites that the importer would skip as duplicates.
//
// Usage:
//
//	go run ./cmd/validate -export data/mock/sites-export.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/mapshield-weather/internal/domain"
)

func main() {
	path := flag.String("export", "", "path to the site export JSON")
	flag.Parse()

	if *path == "" {
		flag.Usage()
		os.Exit(2)
	}

	f, err := os.Open(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	r, err := check(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse: %v\n", err)
		os.Exit(1)
	}
	r.print(os.Stdout)
	if !r.ok() {
		os.Exit(1)
	}
}

// report collects the outcome of every check.
type report struct {
	sites      int
	valid      int
	duplicates []string
	failures   []string
}

func (r *report) fail(format string, args ...any) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

func (r *report) ok() bool { return len(r.failures) == 0 }

func (r *report) print(w io.Writer) {
	fmt.Fprintf(w, "sites:      %d\n", r.sites)
	fmt.Fprintf(w, "valid:      %d\n", r.valid)
	fmt.Fprintf(w, "duplicates: %d\n", len(r.duplicates))
	for _, d := range r.duplicates {
		fmt.Fprintf(w, "  SKIP %s\n", d)
	}
	for _, f := range r.failures {
		fmt.Fprintf(w, "  FAIL %s\n", f)
	}
	if r.ok() {
		fmt.Fprintln(w, "PASS")
	} else {
		fmt.Fprintf(w, "FAIL (%d issues)\n", len(r.failures))
	}
}

func check(in io.Reader) (*report, error) {
	var doc domain.SiteExport
	if err := json.NewDecoder(in).Decode(&doc); err != nil {
		return nil, err
	}

	r := &report{sites: len(doc.Sites)}
	if doc.Version != domain.ExportVersion {
		r.fail("version %q, want %q", doc.Version, domain.ExportVersion)
	}
	if doc.Sites == nil {
		r.fail("sites array missing")
	}

	// Sites accepted so far, as the importer would see them.
	var seen []domain.Site
	for i, es := range doc.Sites {
		site := domain.Site{Name: es.Name, Description: es.Description, Polygon: es.Polygon}
		if err := domain.ValidateSite(site); err != nil {
			r.fail("site %d (%q): %v", i, es.Name, err)
			continue
		}
		if domain.IsDuplicateSite(seen, es) {
			r.duplicates = append(r.duplicates, fmt.Sprintf("site %d (%q)", i, es.Name))
			continue
		}
		seen = append(seen, site)
		r.valid++
	}
	return r, nil
}
