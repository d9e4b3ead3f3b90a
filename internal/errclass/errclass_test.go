package errclass

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/54b3r/sushi-rag/internal/rag"
)

func TestClassifier_Message(t *testing.T) {
	t.Parallel()

	c := &Classifier{Collection: "sushi_menu"}
	credMsg := "Error: OPENAI_API_KEY is not set. Export it before starting the server."
	missingMsg := "Error: collection not found. Run the ingestion step to populate 'sushi_menu' first."

	tests := []struct {
		name string
		err  error
		want string
		kind Kind
	}{
		{
			name: "typed credential error",
			err:  fmt.Errorf("rag: embedding query failed: %w", &rag.CredentialError{EnvVar: "OPENAI_API_KEY", Component: "embedder"}),
			want: credMsg,
			kind: KindCredential,
		},
		{
			name: "credential var named in text",
			err:  errors.New("The api_key client option must be set either by passing api_key to the client or by setting the OPENAI_API_KEY environment variable"),
			want: credMsg,
			kind: KindCredential,
		},
		{
			name: "typed missing collection",
			err:  fmt.Errorf("rag: vector search failed: %w", rag.ErrCollectionNotFound),
			want: missingMsg,
			kind: KindMissingCollection,
		},
		{
			name: "no such in text",
			err:  errors.New("no such table: embeddings"),
			want: missingMsg,
			kind: KindMissingCollection,
		},
		{
			name: "doesn't exist, mixed case",
			err:  errors.New("Collection `sushi_menu` Doesn't Exist!"),
			want: missingMsg,
			kind: KindMissingCollection,
		},
		{
			name: "generic error",
			err:  errors.New("boom"),
			want: "Error: UnknownError: boom",
			kind: KindUnknown,
		},
		{
			name: "grpc status names the kind",
			err:  fmt.Errorf("qdrant: search failed: %w", status.Error(codes.Unavailable, "connection refused")),
			want: "Error: Unavailable: qdrant: search failed: rpc error: code = Unavailable desc = connection refused",
			kind: KindUnknown,
		},
		{
			name: "deadline",
			err:  fmt.Errorf("pipeline: %w", context.DeadlineExceeded),
			want: "Error: DeadlineExceeded: pipeline: context deadline exceeded",
			kind: KindUnknown,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := c.Classify(tc.err)
			if got.Kind != tc.kind {
				t.Errorf("Kind: expected %q, got %q", tc.kind, got.Kind)
			}
			if msg := c.Message(tc.err); msg != tc.want {
				t.Errorf("Message:\n  expected %q\n  got      %q", tc.want, msg)
			}
		})
	}
}

func TestClassifier_CustomCredentialVars(t *testing.T) {
	t.Parallel()

	c := &Classifier{Collection: "x", CredentialVars: []string{"SUSHI_TOKEN"}}
	got := c.Classify(errors.New("SUSHI_TOKEN missing"))
	if got.Kind != KindCredential || got.EnvVar != "SUSHI_TOKEN" {
		t.Errorf("unexpected classification: %+v", got)
	}
	if c.Classify(errors.New("OPENAI_API_KEY missing")).Kind != KindUnknown {
		t.Error("default vars must not apply when CredentialVars is set")
	}
}

func TestLabel_ConcreteType(t *testing.T) {
	t.Parallel()

	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}
	if got := label(fmt.Errorf("wrap: %w", opErr)); got != "OpError" {
		t.Errorf("label: expected OpError, got %q", got)
	}
	if got := label(&net.DNSError{Err: "no host", Name: "qdrant"}); got != "DNSError" {
		t.Errorf("label: expected DNSError, got %q", got)
	}
}

func TestLabel_SkipsWrappers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: "UnknownError"},
		{name: "plain", err: errors.New("boom"), want: "UnknownError"},
		{name: "fmt chain", err: fmt.Errorf("rag: embedding query failed: %w", errors.New("refused")), want: "UnknownError"},
		{name: "unexported wrapper", err: &wasabiErr{cause: errors.New("too hot")}, want: "UnknownError"},
		{name: "unexported over exported", err: &wasabiErr{cause: &net.DNSError{Err: "no host", Name: "qdrant"}}, want: "DNSError"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := label(tc.err); got != tc.want {
				t.Errorf("label: expected %q, got %q", tc.want, got)
			}
		})
	}
}

type wasabiErr struct{ cause error }

func (e *wasabiErr) Error() string { return "wasabi: " + e.cause.Error() }
func (e *wasabiErr) Unwrap() error { return e.cause }

func TestError_Unwrap(t *testing.T) {
	t.Parallel()

	c := &Classifier{Collection: "sushi_menu"}
	base := errors.New("boom")
	if !errors.Is(c.Classify(base), base) {
		t.Error("classified error must unwrap to the original")
	}
}
