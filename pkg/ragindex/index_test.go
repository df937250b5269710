package ragindex

import (
	"fmt"
	"sync"
	"testing"
)

func seededIndex() *Index {
	idx := New()
	idx.Add(DefaultCorpus().Documents...)
	return idx
}

func TestQueryReturnsAtMostK(t *testing.T) {
	idx := seededIndex()

	results := idx.Query("headache", 3)
	if len(results) > 3 {
		t.Fatalf("expected at most 3 results, got %d", len(results))
	}
	if len(results) == 0 {
		t.Fatal("expected results from seeded index")
	}
}

func TestQueryOrderedByDescendingSimilarity(t *testing.T) {
	idx := seededIndex()

	results := idx.Query("severe chest pain with shortness of breath", 6)
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatalf("results not in descending score order at %d: %f > %f", i, results[i].Score, results[i-1].Score)
		}
	}
	if results[0].DocID != "guideline-chest-pain" && results[0].DocID != "guideline-dyspnea" {
		t.Fatalf("expected a cardiorespiratory guideline first, got %s", results[0].DocID)
	}
}

func TestQueryDeterministicOnUnchangedIndex(t *testing.T) {
	idx := seededIndex()

	first := idx.Query("fever and confusion", 4)
	second := idx.Query("fever and confusion", 4)
	if len(first) != len(second) {
		t.Fatalf("result count changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].DocID != second[i].DocID || first[i].Score != second[i].Score {
			t.Fatalf("query not deterministic at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestTieBreakByDocumentID(t *testing.T) {
	idx := New()
	// Identical texts produce identical scores; ordering must fall back to id.
	idx.Add(
		Document{ID: "doc-b", Text: "identical reference text", Citation: "b"},
		Document{ID: "doc-a", Text: "identical reference text", Citation: "a"},
	)

	results := idx.Query("identical reference text", 2)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].DocID != "doc-a" || results[1].DocID != "doc-b" {
		t.Fatalf("tie not broken by id: %s, %s", results[0].DocID, results[1].DocID)
	}
}

func TestIncrementalAddVisibleToQueries(t *testing.T) {
	idx := seededIndex()
	before := idx.Len()

	idx.Add(Document{ID: "guideline-extra", Text: "zebra stripe dermatology reference", Citation: "extra"})
	if idx.Len() != before+1 {
		t.Fatalf("expected %d documents, got %d", before+1, idx.Len())
	}

	results := idx.Query("zebra stripe dermatology", 1)
	if len(results) != 1 || results[0].DocID != "guideline-extra" {
		t.Fatalf("appended document not retrievable: %+v", results)
	}
}

func TestMissingIDGetsStableContentID(t *testing.T) {
	idx := New()
	idx.Add(Document{Text: "some anonymous reference text", Citation: "anon"})

	first := idx.Query("anonymous reference", 1)
	if len(first) != 1 || first[0].DocID == "" {
		t.Fatal("expected generated document id")
	}

	other := New()
	other.Add(Document{Text: "some anonymous reference text", Citation: "anon"})
	second := other.Query("anonymous reference", 1)
	if first[0].DocID != second[0].DocID {
		t.Fatalf("content-derived ids not stable: %s vs %s", first[0].DocID, second[0].DocID)
	}
}

func TestConcurrentQueriesAndAppends(t *testing.T) {
	idx := seededIndex()
	base := idx.Len()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			idx.Add(Document{ID: fmt.Sprintf("doc-concurrent-%d", n), Text: "concurrent append test document", Citation: "c"})
		}(i)

		wg.Add(1)
		go func() {
			defer wg.Done()
			results := idx.Query("chest pain", 100)
			// A query must see a complete set: never fewer than the seed
			// documents, and every entry fully populated.
			if len(results) < base {
				t.Errorf("query saw partial index: %d < %d", len(results), base)
			}
			for _, r := range results {
				if r.DocID == "" {
					t.Error("query observed partially-added document")
				}
			}
		}()
	}
	wg.Wait()

	if idx.Len() != base+8 {
		t.Fatalf("expected %d documents after appends, got %d", base+8, idx.Len())
	}
}

func TestLoadCorpusDefaultsOnEmptyPath(t *testing.T) {
	corpus, err := LoadCorpus("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(corpus.Documents) == 0 {
		t.Fatal("expected default corpus")
	}
}
