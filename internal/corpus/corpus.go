package corpus

// #region imports
import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// #endregion

// #region chunk

// Chunk is one retrievable piece of documentation. The corpus is immutable
// after Load; chunk IDs are stable across restarts for an unchanged directory.
type Chunk struct {
	ID        string // "<filename>::chunk<N>"
	Document  string // source filename, e.g. "product_policy.md"
	CleanName string // filename without extension, underscores as spaces
	Text      string
}

// #endregion

// #region load

// Load reads every *.md file under dir and splits each into chunks.
// Files are processed in sorted name order so chunk numbering is stable.
// An empty or missing directory is an error: the agent cannot start without
// its documentation corpus.
func Load(dir string) ([]Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	if len(names) == 0 {
		return nil, fmt.Errorf("corpus dir %s contains no .md files", dir)
	}

	var chunks []Chunk
	counter := 0
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		clean := strings.ReplaceAll(strings.TrimSuffix(name, ".md"), "_", " ")

		for _, raw := range split(string(data)) {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			chunks = append(chunks, Chunk{
				ID:        fmt.Sprintf("%s::chunk%d", name, counter),
				Document:  name,
				CleanName: clean,
				// The source name is folded into the text so lexical
				// retrieval can match on it.
				Text: fmt.Sprintf("Source: %s\nContent: %s", clean, raw),
			})
			counter++
		}
	}
	return chunks, nil
}

// #endregion

// #region split

// split breaks a document on markdown headers when any are present,
// keeping each section intact. Header-less documents split on blank lines.
func split(content string) []string {
	if strings.Contains(content, "#") {
		parts := strings.Split(content, "\n#")
		for i := 1; i < len(parts); i++ {
			parts[i] = "#" + parts[i]
		}
		return parts
	}
	return strings.Split(content, "\n\n")
}

// #endregion
