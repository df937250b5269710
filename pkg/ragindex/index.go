package ragindex

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/caremesh-ai/triage/pkg/common/models"
)

const excerptLimit = 240

// Index is a read-mostly similarity index over reference documents using
// term-frequency vectors and cosine similarity. Appends swap in a new
// document slice under the write lock, so queries always observe a complete
// document set and never a partially-added document.
type Index struct {
	mu   sync.RWMutex
	docs []indexedDocument
}

type indexedDocument struct {
	doc    Document
	vector map[string]float64
}

func New() *Index {
	return &Index{}
}

// Add appends documents without a full rebuild. Documents with no id get a
// stable content-derived one so repeated seeding stays deterministic.
func (i *Index) Add(docs ...Document) {
	if len(docs) == 0 {
		return
	}

	indexed := make([]indexedDocument, 0, len(docs))
	for _, doc := range docs {
		if doc.ID == "" {
			doc.ID = contentID(doc.Text)
		}
		indexed = append(indexed, indexedDocument{doc: doc, vector: termFrequency(doc.Text)})
	}

	i.mu.Lock()
	next := make([]indexedDocument, 0, len(i.docs)+len(indexed))
	next = append(next, i.docs...)
	next = append(next, indexed...)
	i.docs = next
	i.mu.Unlock()
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.docs)
}

// Query returns the k most similar documents, descending by score, ties
// broken by document id. Re-querying identical text against an unchanged
// index returns an identical ordered result.
func (i *Index) Query(text string, k int) []models.RetrievedDocument {
	if k <= 0 {
		k = 1
	}

	i.mu.RLock()
	snapshot := i.docs
	i.mu.RUnlock()

	queryVector := termFrequency(text)

	type scored struct {
		doc   Document
		score float64
	}
	results := make([]scored, 0, len(snapshot))
	for _, entry := range snapshot {
		results = append(results, scored{doc: entry.doc, score: cosine(queryVector, entry.vector)})
	}

	sort.Slice(results, func(a, b int) bool {
		if results[a].score != results[b].score {
			return results[a].score > results[b].score
		}
		return results[a].doc.ID < results[b].doc.ID
	})

	if len(results) > k {
		results = results[:k]
	}

	retrieved := make([]models.RetrievedDocument, 0, len(results))
	for _, r := range results {
		retrieved = append(retrieved, models.RetrievedDocument{
			DocID:    r.doc.ID,
			Excerpt:  excerpt(r.doc.Text),
			Score:    r.score,
			Citation: r.doc.Citation,
		})
	}
	return retrieved
}

func termFrequency(text string) map[string]float64 {
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return map[string]float64{}
	}

	counts := make(map[string]int, len(tokens))
	for _, token := range tokens {
		token = strings.Trim(token, ".,;:!?()[]\"'")
		if token == "" {
			continue
		}
		counts[token]++
	}

	total := float64(len(tokens))
	vector := make(map[string]float64, len(counts))
	for token, count := range counts {
		vector[token] = float64(count) / total
	}
	return vector
}

func cosine(a, b map[string]float64) float64 {
	var num float64
	for token, weight := range a {
		if other, ok := b[token]; ok {
			num += weight * other
		}
	}
	if num == 0 {
		return 0
	}

	var da, db float64
	for _, v := range a {
		da += v * v
	}
	for _, v := range b {
		db += v * v
	}
	if da == 0 || db == 0 {
		return 0
	}
	return num / (math.Sqrt(da) * math.Sqrt(db))
}

func excerpt(text string) string {
	if len(text) <= excerptLimit {
		return text
	}
	cut := text[:excerptLimit]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "…"
}

func contentID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "doc-" + hex.EncodeToString(sum[:6])
}
