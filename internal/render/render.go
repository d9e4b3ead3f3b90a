// Package render formats tool results as markdown or JSON text.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/54b3r/sushi-rag/internal/params"
	"github.com/54b3r/sushi-rag/internal/rag"
)

// sourcePreviewRunes is how much of each source chunk the markdown answer shows.
const sourcePreviewRunes = 300

type answerJSON struct {
	Question string       `json:"question"`
	Answer   string       `json:"answer"`
	Sources  []sourceJSON `json:"sources"`
}

type sourceJSON struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

type searchResultJSON struct {
	Rank     int            `json:"rank"`
	Score    float64        `json:"score"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// Answer renders a generated answer, optionally followed by the chunks
// retrieved for it.
func Answer(question, answer string, sources []rag.Chunk, includeSources bool, format params.Format) (string, error) {
	if format == params.FormatJSON {
		out := answerJSON{Question: question, Answer: answer, Sources: []sourceJSON{}}
		if includeSources {
			for _, s := range sources {
				out.Sources = append(out.Sources, sourceJSON{Content: s.Content, Metadata: nonNil(s.Metadata)})
			}
		}
		return marshal(out)
	}

	var b strings.Builder
	b.WriteString("**Answer:**\n\n")
	b.WriteString(answer)
	if includeSources && len(sources) > 0 {
		lines := []string{"\n\n---\n**Sources retrieved:**"}
		for i, s := range sources {
			label := labelFor(s.Metadata, fmt.Sprintf("Document %d", i+1))
			lines = append(lines, fmt.Sprintf("\n**%d. %s**\n%s…", i+1, label, truncateRunes(s.Content, sourcePreviewRunes)))
		}
		b.WriteString(strings.Join(lines, "\n"))
	}
	return b.String(), nil
}

// Search renders ranked search results. An empty result set renders the same
// sentence in both formats.
func Search(query string, results []rag.ScoredChunk, format params.Format) (string, error) {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for query: '%s'", query), nil
	}

	if format == params.FormatJSON {
		out := make([]searchResultJSON, len(results))
		for i, r := range results {
			out[i] = searchResultJSON{
				Rank:     i + 1,
				Score:    math.Round(r.Score*1e4) / 1e4,
				Content:  r.Content,
				Metadata: nonNil(r.Metadata),
			}
		}
		return marshal(out)
	}

	lines := []string{fmt.Sprintf("**Semantic search results for:** `%s`\n", query)}
	for i, r := range results {
		label := labelFor(r.Metadata, "Unknown source")
		lines = append(lines, fmt.Sprintf("**%d. %s** _(score: %.3f)_\n%s\n", i+1, label, r.Score, r.Content))
	}
	return strings.Join(lines, "\n"), nil
}

// TopicReport is the sushi_list_topics result.
type TopicReport struct {
	// Total is the number of distinct labels before truncation.
	Total int `json:"total_unique_topics"`
	// Returned is len(Topics).
	Returned int `json:"returned"`
	// Topics are the sorted, truncated labels.
	Topics []string `json:"topics"`
}

// Topics renders a topic report as JSON.
func Topics(r TopicReport) (string, error) {
	if r.Topics == nil {
		r.Topics = []string{}
	}
	return marshal(r)
}

// Stats is the knowledge-base stats resource body.
type Stats struct {
	// Collection is the vector store collection name.
	Collection string `json:"collection"`
	// Host is the vector store host.
	Host string `json:"host"`
	// Port is the vector store port.
	Port int `json:"port"`
	// DocumentChunks is the number of stored chunks.
	DocumentChunks uint64 `json:"document_chunks"`
}

// StatsJSON renders stats.
func StatsJSON(s Stats) (string, error) {
	return marshal(s)
}

// StatsError renders a failed stats lookup as {"error": msg}.
func StatsError(err error) string {
	out, mErr := marshal(struct {
		Error string `json:"error"`
	}{Error: err.Error()})
	if mErr != nil {
		return `{"error": "unavailable"}`
	}
	return out
}

// labelFor returns the source, then title metadata value, else fallback.
// Presence decides, not emptiness.
func labelFor(meta map[string]any, fallback string) string {
	for _, key := range []string{"source", "title"} {
		if v, ok := meta[key]; ok {
			return fmt.Sprint(v)
		}
	}
	return fallback
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// marshal encodes v as 2-space indented JSON without HTML escaping.
func marshal(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("render: encode: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
