package retrieval

// #region imports
import (
	"math"
	"sort"

	"github.com/kdowney/storewise/internal/corpus"
)

// #endregion

// #region index

// Index is an immutable BM25 inverted index over the documentation corpus.
// Built once at startup; safe for concurrent readers.
type Index struct {
	config Config
	chunks []corpus.Chunk

	postings  map[string][]posting // term → (chunk, tf) pairs in chunk order
	docLen    []int                // token count per chunk
	nameToken [][]string           // unique clean-name tokens per chunk
	avgDocLen float64
}

type posting struct {
	chunk int
	tf    int
}

// NewIndex tokenizes every chunk and builds the inverted index.
func NewIndex(chunks []corpus.Chunk, config Config) *Index {
	idx := &Index{
		config:    config,
		chunks:    chunks,
		postings:  make(map[string][]posting),
		docLen:    make([]int, len(chunks)),
		nameToken: make([][]string, len(chunks)),
	}

	total := 0
	for i, c := range chunks {
		tokens := tokenize(c.Text)
		idx.docLen[i] = len(tokens)
		total += len(tokens)
		idx.nameToken[i] = uniqueTokens(c.CleanName)

		tf := make(map[string]int)
		for _, t := range tokens {
			tf[t]++
		}
		// Insert per-term postings in chunk order; iteration over the tf
		// map is unordered but each posting list stays ordered by chunk
		// because chunks are processed sequentially.
		for t, n := range tf {
			idx.postings[t] = append(idx.postings[t], posting{chunk: i, tf: n})
		}
	}
	if len(chunks) > 0 {
		idx.avgDocLen = float64(total) / float64(len(chunks))
	}
	return idx
}

// Len returns the number of indexed chunks.
func (idx *Index) Len() int { return len(idx.chunks) }

// #endregion index

// #region search

// Search ranks chunks against the query and returns at most TopK results
// whose score exceeds MinRelevance. Identical query text over an identical
// corpus always yields an identical result sequence: ties are broken by
// ascending chunk ID. An empty result is not an error.
func (idx *Index) Search(query string) []ScoredChunk {
	terms := uniqueTokens(query)
	if len(terms) == 0 || len(idx.chunks) == 0 {
		return nil
	}

	n := float64(len(idx.chunks))
	scores := make([]float64, len(idx.chunks))

	for _, term := range terms {
		plist, ok := idx.postings[term]
		if !ok {
			continue
		}
		df := float64(len(plist))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for _, p := range plist {
			tf := float64(p.tf)
			norm := 1 - idx.config.B + idx.config.B*float64(idx.docLen[p.chunk])/idx.avgDocLen
			scores[p.chunk] += idf * tf * (idx.config.K1 + 1) / (tf + idx.config.K1*norm)
		}
	}

	// Document-name boosting: a query that names its document outranks
	// chunks that merely share vocabulary.
	if idx.config.NameBoost > 0 {
		termSet := make(map[string]bool, len(terms))
		for _, t := range terms {
			termSet[t] = true
		}
		for i, nameTokens := range idx.nameToken {
			matches := 0
			for _, t := range nameTokens {
				if termSet[t] {
					matches++
				}
			}
			if matches > 0 {
				scores[i] += float64(matches) * idx.config.NameBoost
			}
		}
	}

	var ranked []ScoredChunk
	for i, s := range scores {
		if s > idx.config.MinRelevance {
			ranked = append(ranked, ScoredChunk{Chunk: idx.chunks[i], Score: s})
		}
	}

	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].Score != ranked[b].Score {
			return ranked[a].Score > ranked[b].Score
		}
		return ranked[a].Chunk.ID < ranked[b].Chunk.ID
	})

	if len(ranked) > idx.config.TopK {
		ranked = ranked[:idx.config.TopK]
	}
	return ranked
}

// #endregion search
