// Package topics lists the distinct source/title/topic labels present in the
// knowledge base.
package topics

import (
	"context"
	"fmt"
	"sort"

	"github.com/54b3r/sushi-rag/internal/render"
)

// labelKeys are consulted in order; the first non-empty value labels a chunk.
var labelKeys = []string{"source", "title", "topic"}

// MetadataScanner returns the metadata of every stored chunk.
type MetadataScanner interface {
	Metadata(ctx context.Context) ([]map[string]any, error)
}

// List scans all chunk metadata once and returns the sorted distinct labels,
// truncated to limit. Total counts labels before truncation.
func List(ctx context.Context, scanner MetadataScanner, limit int) (render.TopicReport, error) {
	metas, err := scanner.Metadata(ctx)
	if err != nil {
		return render.TopicReport{}, fmt.Errorf("topics: metadata scan failed: %w", err)
	}

	seen := make(map[string]struct{})
	for _, m := range metas {
		if l := label(m); l != "" {
			seen[l] = struct{}{}
		}
	}

	all := make([]string, 0, len(seen))
	for l := range seen {
		all = append(all, l)
	}
	sort.Strings(all)

	returned := all
	if limit >= 0 && len(returned) > limit {
		returned = returned[:limit]
	}
	return render.TopicReport{Total: len(all), Returned: len(returned), Topics: returned}, nil
}

func label(meta map[string]any) string {
	for _, k := range labelKeys {
		v, ok := meta[k]
		if !ok || v == nil {
			continue
		}
		if s := fmt.Sprint(v); s != "" {
			return s
		}
	}
	return ""
}
