package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dasida/tutor/internal/store"
)

func TestLoadTestdata(t *testing.T) {
	seed, err := Load("testdata/catalog.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if len(seed.Problems) != 2 || len(seed.Concepts) != 2 || len(seed.Links) != 2 || len(seed.Similarities) != 1 {
		t.Fatalf("unexpected seed sizes: %+v", seed)
	}
	p := seed.Problems[0]
	if p.Page != 12 || p.NumInPage != "3" || p.Answer != "x = 5" {
		t.Errorf("problem decoded as %+v", p)
	}
	if seed.Similarities[0].Rank != 1 || seed.Similarities[0].SimilarID != 2 {
		t.Errorf("similarity decoded as %+v", seed.Similarities[0])
	}
}

func TestParseRejectsDanglingReferences(t *testing.T) {
	_, err := Parse([]byte(`
problems:
  - p_id: 1
  - p_id: 1
  - p_name: "no id"
problem_concepts:
  - p_id: 1
    con_id: 99
similar_problems:
  - p_id: 1
    sim_p_id: 7
`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"duplicate p_id 1", "problems[2].p_id is required", "unknown con_id 99", "unknown problem 1 -> 7"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestParseNumericProblemNumber(t *testing.T) {
	seed, err := Parse([]byte("problems:\n  - p_id: 5\n    num_in_page: 7\n"))
	if err != nil {
		t.Fatal(err)
	}
	if seed.Problems[0].NumInPage != "7" {
		t.Fatalf("num_in_page = %q", seed.Problems[0].NumInPage)
	}
}

type recordingImporter struct {
	got store.Seed
	err error
}

func (r *recordingImporter) Upsert(_ context.Context, seed store.Seed) error {
	r.got = seed
	return r.err
}

func TestApply(t *testing.T) {
	imp := &recordingImporter{}
	if _, err := Apply(t.Context(), imp, "testdata/catalog.yaml"); err != nil {
		t.Fatal(err)
	}
	if len(imp.got.Problems) != 2 {
		t.Fatalf("importer got %d problems", len(imp.got.Problems))
	}

	imp.err = errors.New("db down")
	if _, err := Apply(t.Context(), imp, "testdata/catalog.yaml"); !errors.Is(err, imp.err) {
		t.Fatalf("err = %v", err)
	}
}
