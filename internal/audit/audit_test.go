package audit

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestSanitiseKey_Secret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("OPENAI_API_KEY", "sk-abc123"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := SanitiseKey("OPENAI_API_KEY", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseKey_NonSecret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("MODEL_PROVIDER", "azure"); got != "azure" {
		t.Errorf("expected 'azure', got %q", got)
	}
	if got := SanitiseKey("MODEL_PROVIDER", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseKey_ServerKey(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("SUSHI_API_KEY", "bearer-token"); got != "set" {
		t.Errorf("SUSHI_API_KEY must be redacted, got %q", got)
	}
}

func TestLogCommandStart_RedactsSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-live-123")
	t.Setenv("QDRANT_COLLECTION", "sushi_menu")

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	LogCommandStart(context.Background(), log, "serve", "", []string{".env"})

	out := buf.String()
	if strings.Contains(out, "sk-live-123") {
		t.Fatalf("secret leaked into audit log: %s", out)
	}
	for _, want := range []string{`"command":"serve"`, `"OPENAI_API_KEY":"set"`, `"QDRANT_COLLECTION":"sushi_menu"`, `"config_file":"none"`, `"dotenv_files":1`} {
		if !strings.Contains(out, want) {
			t.Errorf("audit log missing %s: %s", want, out)
		}
	}
}

func TestPresence(t *testing.T) {
	t.Parallel()
	if got := presence("something"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := presence(""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("expected 'none', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("expected '/tmp/config.yaml', got %q", got)
	}
	home, err := os.UserHomeDir()
	if err == nil {
		p := home + "/.sushi-rag/config.yaml"
		if got := sanitiseConfigPath(p); got != "~/.sushi-rag/config.yaml" {
			t.Errorf("expected '~/.sushi-rag/config.yaml', got %q", got)
		}
	}
}
