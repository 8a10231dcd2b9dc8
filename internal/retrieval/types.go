package retrieval

// #region imports
import "github.com/kdowney/storewise/internal/corpus"

// #endregion

// #region config

// Config holds the BM25 parameters and result limits for the lexical index.
type Config struct {
	K1           float64 // term-frequency saturation
	B            float64 // length normalization, 0 = off, 1 = full
	TopK         int     // max chunks returned per query
	MinRelevance float64 // minimum score; results at or below are dropped
	NameBoost    float64 // per-token boost when query tokens match the document name
}

// DefaultConfig returns sensible defaults for retail documentation corpora.
func DefaultConfig() Config {
	return Config{
		K1:           1.5,
		B:            0.75,
		TopK:         3,
		MinRelevance: 0.0,
		NameBoost:    5.0,
	}
}

// #endregion config

// #region scored-chunk

// ScoredChunk pairs a corpus chunk with its relevance score for one query.
type ScoredChunk struct {
	Chunk corpus.Chunk
	Score float64
}

// #endregion scored-chunk
