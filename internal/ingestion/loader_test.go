package ingestion

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadPath_Directory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "rice", "vinegar.txt"), "Rice vinegar\r\nratios.")
	writeFile(t, filepath.Join(root, "nigiri.md"), "# Nigiri\n\nHand-pressed.")
	writeFile(t, filepath.Join(root, ".drafts", "secret.md"), "# Draft")
	writeFile(t, filepath.Join(root, ".notes.md"), "hidden")
	writeFile(t, filepath.Join(root, "menu.pdf"), "%PDF")

	docs, err := LoadPath(root)
	if err != nil {
		t.Fatalf("LoadPath: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d: %+v", len(docs), docs)
	}

	if docs[0].Source != filepath.Join(root, "nigiri.md") || !docs[0].Markdown {
		t.Errorf("doc 0: unexpected %+v", docs[0])
	}
	if docs[1].Source != filepath.Join(root, "rice", "vinegar.txt") || docs[1].Markdown {
		t.Errorf("doc 1: unexpected %+v", docs[1])
	}
	if docs[1].Text != "Rice vinegar\nratios." {
		t.Errorf("line endings not normalised: %q", docs[1].Text)
	}
}

func TestLoadPath_SingleFile(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "Omakase.MARKDOWN")
	writeFile(t, p, "  # Omakase\n\nChef's choice.  \n")

	docs, err := LoadPath(p)
	if err != nil {
		t.Fatalf("LoadPath: %v", err)
	}
	if len(docs) != 1 || !docs[0].Markdown || docs[0].Text != "# Omakase\n\nChef's choice." {
		t.Errorf("unexpected documents: %+v", docs)
	}
}

func TestLoadPath_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pdf := filepath.Join(dir, "menu.pdf")
	writeFile(t, pdf, "%PDF")
	big := filepath.Join(dir, "big.txt")
	writeFile(t, big, strings.Repeat("x", MaxFileSizeBytes+1))

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "missing", path: filepath.Join(dir, "nope.md"), want: "stat"},
		{name: "unsupported", path: pdf, want: "unsupported file type"},
		{name: "too large", path: big, want: "exceeds maximum size"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadPath(tc.path)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
