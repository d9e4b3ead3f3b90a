package ingestion

import (
	"bufio"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"unicode"
)

// InferredMetadata holds the labels stored alongside every chunk of a
// document. Explicit values from the caller take precedence; these are the
// best-effort fallback.
type InferredMetadata struct {
	// Title is the document's first markdown heading, or its humanized name.
	Title string
	// Topic is the grouping the document belongs to, taken from its parent
	// directory or URL path segment. Empty when the document sits at a root.
	Topic string
}

// InferMetadata derives a title and topic for source. source is either a file
// path or an HTTP(S) URL; text is the already-loaded content.
//
//	menu/nigiri/salmon.md         -> topic "nigiri", title from "# ..." or "Salmon"
//	https://example.com/rice/vinegar -> topic "rice", title "Vinegar"
func InferMetadata(source, text string) InferredMetadata {
	var m InferredMetadata

	if u, ok := parseHTTPURL(source); ok {
		segments := trimSegments(u.Path)
		if n := len(segments); n > 0 {
			m.Title = humanize(segments[n-1])
			if n > 1 {
				m.Topic = normalizeTopic(segments[n-2])
			}
		} else {
			m.Title = u.Hostname()
		}
	} else {
		m.Title = humanize(filepath.Base(source))
		if dir := filepath.Base(filepath.Dir(source)); dir != "." && dir != string(filepath.Separator) {
			m.Topic = normalizeTopic(dir)
		}
	}

	if h := firstHeading(text); h != "" {
		m.Title = h
	}
	return m
}

// firstHeading returns the text of the first level-one markdown heading.
func firstHeading(text string) string {
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if rest, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// humanize turns "salmon_nigiri.md" into "Salmon Nigiri".
func humanize(name string) string {
	name = strings.TrimSuffix(name, path.Ext(name))
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_' || unicode.IsSpace(r)
	})
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// normalizeTopic lowercases a directory or path segment and unifies separators.
func normalizeTopic(seg string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(seg)), "_", "-")
}

// parseHTTPURL reports whether raw is an absolute http or https URL.
func parseHTTPURL(raw string) (*url.URL, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	return u, true
}

// trimSegments splits a URL path into non-empty segments.
func trimSegments(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
