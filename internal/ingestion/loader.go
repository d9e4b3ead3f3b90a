package ingestion

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MaxFileSizeBytes bounds the size of a single local or fetched document.
const MaxFileSizeBytes = 4 << 20

// markdownExts are loaded and split as markdown; textExts as plain text.
var (
	markdownExts = map[string]bool{".md": true, ".markdown": true}
	textExts     = map[string]bool{".txt": true}
)

// Document is a loaded source ready to be chunked.
type Document struct {
	// Source is the file path or URL the text came from. It keys the
	// manifest entry and seeds the chunk ids.
	Source string

	// Text is the normalised document body.
	Text string

	// Markdown selects the heading-aware splitter.
	Markdown bool

	// Title and Topic override the inferred metadata when non-empty.
	Title string
	Topic string
}

// LoadPath loads a single file, or every supported file beneath a directory,
// in lexical path order. Hidden files and directories are skipped.
func LoadPath(root string) ([]Document, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("ingestion: stat %s: %w", root, err)
	}
	if !info.IsDir() {
		if !supported(root) {
			return nil, fmt.Errorf("ingestion: unsupported file type %q (want .md, .markdown or .txt)", filepath.Ext(root))
		}
		doc, err := loadFile(root)
		if err != nil {
			return nil, err
		}
		return []Document{doc}, nil
	}

	var paths []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && supported(p) {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingestion: walk %s: %w", root, err)
	}
	sort.Strings(paths)

	docs := make([]Document, 0, len(paths))
	for _, p := range paths {
		doc, err := loadFile(p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func supported(p string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	return markdownExts[ext] || textExts[ext]
}

// loadFile reads a file with a size guard and normalises line endings.
func loadFile(p string) (Document, error) {
	f, err := os.Open(p)
	if err != nil {
		return Document{}, fmt.Errorf("ingestion: open %s: %w", p, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxFileSizeBytes+1))
	if err != nil {
		return Document{}, fmt.Errorf("ingestion: read %s: %w", p, err)
	}
	if len(data) > MaxFileSizeBytes {
		return Document{}, fmt.Errorf("ingestion: %s exceeds maximum size of %d bytes", p, MaxFileSizeBytes)
	}

	return Document{
		Source:   p,
		Text:     normalizeText(string(data)),
		Markdown: markdownExts[strings.ToLower(filepath.Ext(p))],
	}, nil
}

// normalizeText converts CRLF and CR line endings to LF and trims the result.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}
