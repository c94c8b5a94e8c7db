package export

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/polydoc/polydoc/internal/store"
)

// chunkSeparator joins consecutive chunks in the assembled document.
const chunkSeparator = "\n\n"

// BuildLanguageTexts assembles one output document per requested
// language from the project's chunks. Chunks without a translation for
// a language are skipped, so a partially translated project still
// exports what it has. A language with no translations at all maps to
// an empty string.
func BuildLanguageTexts(ctx context.Context, chunks store.ChunkStore, projectID string, langs []string) (map[string]string, error) {
	list, err := chunks.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ChunkIndex < list[j].ChunkIndex
	})

	out := make(map[string]string, len(langs))
	for _, lang := range langs {
		var parts []string
		for _, c := range list {
			if text := c.Translations[lang]; text != "" {
				parts = append(parts, text)
			}
		}
		out[lang] = strings.Join(parts, chunkSeparator)
	}
	return out, nil
}
