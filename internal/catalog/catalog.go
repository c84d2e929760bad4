// Package catalog loads textbook problems, concepts and their links from a
// YAML seed file.
package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dasida/tutor/internal/store"
)

// Load reads and validates a seed file.
func Load(path string) (*store.Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals a seed document and checks its references.
func Parse(data []byte) (*store.Seed, error) {
	var seed store.Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	for i := range seed.Problems {
		seed.Problems[i].NumInPage = strings.TrimSpace(seed.Problems[i].NumInPage)
	}
	if err := validate(&seed); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Importer writes seeds into the catalog tables.
type Importer interface {
	Upsert(ctx context.Context, seed store.Seed) error
}

// Apply loads path and upserts it.
func Apply(ctx context.Context, imp Importer, path string) (*store.Seed, error) {
	seed, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := imp.Upsert(ctx, *seed); err != nil {
		return nil, fmt.Errorf("catalog: import %s: %w", path, err)
	}
	return seed, nil
}

func validate(s *store.Seed) error {
	var errs []string
	problems := make(map[uint]bool, len(s.Problems))
	for i, p := range s.Problems {
		if p.ID == 0 {
			errs = append(errs, fmt.Sprintf("problems[%d].p_id is required", i))
			continue
		}
		if problems[p.ID] {
			errs = append(errs, fmt.Sprintf("problems[%d]: duplicate p_id %d", i, p.ID))
		}
		problems[p.ID] = true
	}
	concepts := make(map[uint]bool, len(s.Concepts))
	for i, c := range s.Concepts {
		if c.ID == 0 {
			errs = append(errs, fmt.Sprintf("concepts[%d].con_id is required", i))
			continue
		}
		concepts[c.ID] = true
	}
	for i, l := range s.Links {
		if !problems[l.ProblemID] {
			errs = append(errs, fmt.Sprintf("problem_concepts[%d]: unknown p_id %d", i, l.ProblemID))
		}
		if !concepts[l.ConceptID] {
			errs = append(errs, fmt.Sprintf("problem_concepts[%d]: unknown con_id %d", i, l.ConceptID))
		}
	}
	for i, sim := range s.Similarities {
		if !problems[sim.ProblemID] || !problems[sim.SimilarID] {
			errs = append(errs, fmt.Sprintf("similar_problems[%d]: unknown problem %d -> %d", i, sim.ProblemID, sim.SimilarID))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("catalog: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
