package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

// skippedElements never contribute text when flattening an HTML page.
var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Template: true,
	atom.Title:    true,
}

// blockElements start a new paragraph in the flattened text.
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.Li: true, atom.Tr: true, atom.Br: true, atom.Pre: true, atom.Blockquote: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
}

// FetchURL retrieves a document over HTTP. HTML pages are decoded to UTF-8
// and flattened to text with the page <title> as the document title;
// markdown and plain text bodies are kept as-is.
func (p *Pipeline) FetchURL(ctx context.Context, rawURL string) (Document, error) {
	if _, ok := parseHTTPURL(rawURL); !ok {
		return Document{}, fmt.Errorf("ingestion: %q is not an http(s) URL", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Document{}, fmt.Errorf("ingestion: creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "text/markdown, text/plain, text/html")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("ingestion: http get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("ingestion: unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxFileSizeBytes+1))
	if err != nil {
		return Document{}, fmt.Errorf("ingestion: reading body of %s: %w", rawURL, err)
	}
	if len(data) > MaxFileSizeBytes {
		return Document{}, fmt.Errorf("ingestion: %s exceeds maximum size of %d bytes", rawURL, MaxFileSizeBytes)
	}
	contentType := resp.Header.Get("Content-Type")
	text, err := decodeText(data, contentType)
	if err != nil {
		return Document{}, fmt.Errorf("ingestion: decoding %s: %w", rawURL, err)
	}

	doc := Document{Source: rawURL}
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		title, body, err := htmlText(text)
		if err != nil {
			return Document{}, fmt.Errorf("ingestion: parsing html from %s: %w", rawURL, err)
		}
		doc.Title, doc.Text = title, body
	default:
		doc.Text = normalizeText(text)
		doc.Markdown = mediaType == "text/markdown" || markdownExts[strings.ToLower(path.Ext(req.URL.Path))]
	}
	return doc, nil
}

// decodeText returns data as UTF-8. Valid UTF-8 passes through untouched;
// anything else is transcoded from the declared or sniffed charset.
func decodeText(data []byte, contentType string) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	_, name, _ := charset.DetermineEncoding(data, contentType)
	r, err := charset.NewReaderLabel(name, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("transcode from %s: %w", name, err)
	}
	return string(decoded), nil
}

// htmlText returns the page title and the visible body text of an HTML
// document, one paragraph per block element.
func htmlText(src string) (string, string, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return "", "", err
	}

	var (
		title string
		b     strings.Builder
	)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.DataAtom == atom.Title && title == "" && n.FirstChild != nil {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			if skippedElements[n.DataAtom] {
				return
			}
			if blockElements[n.DataAtom] {
				b.WriteString("\n\n")
			}
		}
		if n.Type == html.TextNode {
			if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
				b.WriteString(t)
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return title, collapseBlankLines(b.String()), nil
}

// collapseBlankLines trims each line and keeps at most one blank line between
// paragraphs.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, l)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
