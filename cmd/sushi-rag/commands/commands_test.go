package commands

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cmd := NewVersionCmd()
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)

	if !strings.HasPrefix(out.String(), "sushi-rag dev (commit: ") {
		t.Errorf("unexpected version output %q", out.String())
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	for _, name := range []string{"serve", "ingest", "version"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("subcommand %q not registered (err=%v)", name, err)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil || root.PersistentFlags().Lookup("env-file") == nil {
		t.Error("expected --config and --env-file persistent flags")
	}
}

func TestServeCmd_Defaults(t *testing.T) {
	t.Parallel()

	flags := NewServeCmd().Flags()
	for flag, want := range map[string]string{"http": "false", "host": "0.0.0.0", "port": "8000"} {
		if got := flags.Lookup(flag).DefValue; got != want {
			t.Errorf("--%s default: expected %q, got %q", flag, want, got)
		}
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("SUSHI_RATE_BURST", "40")
	t.Setenv("SUSHI_RATE_LIMIT", "2.5")
	t.Setenv("INGEST_CHUNK_SIZE", "nope")

	if got := getEnvInt("SUSHI_RATE_BURST", 0); got != 40 {
		t.Errorf("getEnvInt: got %d", got)
	}
	if got := getEnvFloat("SUSHI_RATE_LIMIT", 0); got != 2.5 {
		t.Errorf("getEnvFloat: got %v", got)
	}
	if got := getEnvInt("INGEST_CHUNK_SIZE", 1000); got != 1000 {
		t.Errorf("getEnvInt fallback: got %d", got)
	}
}

func TestOpenManifest(t *testing.T) {
	log := slog.New(slog.DiscardHandler)

	t.Setenv("SUSHI_MANIFEST_DB", manifestDisabled)
	if m := openManifest(log, ""); m != nil {
		t.Error("expected nil manifest when disabled")
	}

	path := filepath.Join(t.TempDir(), "manifest.db")
	m := openManifest(log, path)
	if m == nil {
		t.Fatal("expected manifest at explicit path")
	}
	if err := m.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}
