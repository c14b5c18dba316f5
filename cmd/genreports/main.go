// Command genreports generates deterministic mock submission fixtures for
// the test suites. It runs the real validation pipeline over synthetic
// submissions so the fixtures match actual engine behavior.
//
// Usage:
//
//	go run ./cmd/genreports \
//	  -sites data/sites.json \
//	  -count 50 \
//	  -raw-out data/mock/submissions.json \
//	  -out data/mock/reports.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/parkcheck/conditions-engine/internal/domain"
)

var baseTime = time.Date(2025, time.May, 14, 8, 0, 0, 0, time.UTC)

var statuses = []string{"dry", "partially_wet", "wet", "", "dry", "wet"}

var reporters = []string{"alice", "bob", "carol", "dave", "", "erin"}

var hazardPool = [][]string{
	nil,
	{"glass"},
	{"debris", "crowded"},
	{"ice"},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	sitesPath := flag.String("sites", "", "path to the JSON site catalog")
	count := flag.Int("count", 50, "number of submissions to generate")
	rawOut := flag.String("raw-out", "", "output path for raw submission fixtures")
	out := flag.String("out", "", "output path for validated report fixtures")
	flag.Parse()

	if *sitesPath == "" || *rawOut == "" || *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -sites, -raw-out, -out")
	}

	sites, err := loadSites(*sitesPath)
	if err != nil {
		return fmt.Errorf("load sites: %w", err)
	}
	slugs := make(map[string]bool, len(sites))
	for _, s := range sites {
		slugs[s.Slug] = true
	}

	// Fixed seed for reproducible fixtures.
	rng := rand.New(rand.NewSource(42))

	subs := make([]domain.Submission, 0, *count)
	reports := make([]domain.Report, 0, *count)
	for i := 0; i < *count; i++ {
		site := sites[rng.Intn(len(sites))]
		sub := domain.Submission{
			Park:       site.Slug,
			Status:     statuses[rng.Intn(len(statuses))],
			Surface:    rng.Intn(6), // 0 means left blank
			Crowd:      rng.Intn(6),
			ReporterID: reporters[rng.Intn(len(reporters))],
			Verified:   rng.Intn(4) == 0,
			Hazards:    hazardPool[rng.Intn(len(hazardPool))],
			Timestamp:  baseTime.Add(time.Duration(i) * 7 * time.Minute),
		}
		subs = append(subs, sub)

		report, err := domain.ValidateSubmission(sub, func(slug string) bool { return slugs[slug] })
		if err != nil {
			return fmt.Errorf("generated invalid submission %d: %w", i, err)
		}
		reports = append(reports, report)
	}

	if err := writeJSON(*rawOut, subs); err != nil {
		return fmt.Errorf("write raw fixtures: %w", err)
	}
	log.Printf("wrote %d raw submissions: %s", len(subs), *rawOut)

	if err := writeJSON(*out, reports); err != nil {
		return fmt.Errorf("write report fixtures: %w", err)
	}
	log.Printf("wrote %d validated reports: %s", len(reports), *out)

	printStats(reports)
	return nil
}

func loadSites(path string) ([]domain.Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sites []domain.Site
	if err := json.Unmarshal(data, &sites); err != nil {
		return nil, err
	}
	if len(sites) == 0 {
		return nil, fmt.Errorf("site catalog is empty")
	}
	return sites, nil
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

func printStats(reports []domain.Report) {
	statusCounts := map[string]int{}
	anonymous := 0
	withHazards := 0
	for _, r := range reports {
		if r.Status != nil {
			statusCounts[string(*r.Status)]++
		} else {
			statusCounts["null"]++
		}
		if r.ReporterID == domain.AnonymousReporter {
			anonymous++
		}
		if len(r.Hazards) > 0 {
			withHazards++
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d\n", len(reports))
	fmt.Printf("By status: dry=%d, partially_wet=%d, wet=%d, null=%d\n",
		statusCounts["dry"], statusCounts["partially_wet"], statusCounts["wet"], statusCounts["null"])
	fmt.Printf("Anonymous: %d\n", anonymous)
	fmt.Printf("With hazards: %d\n", withHazards)
}
