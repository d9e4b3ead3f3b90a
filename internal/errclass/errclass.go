// Package errclass turns failures raised while answering a tool call into
// the single-line, user-facing messages returned to the MCP client.
package errclass

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"reflect"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/54b3r/sushi-rag/internal/rag"
)

// Kind is the category a failure was classified into.
type Kind string

const (
	// KindCredential is a missing provider credential.
	KindCredential Kind = "credential"
	// KindMissingCollection is an absent vector store collection.
	KindMissingCollection Kind = "missing_collection"
	// KindUnknown is everything else.
	KindUnknown Kind = "unknown"
)

// DefaultCredentialVars are the API-key variables recognised in error text
// when a failure carries no typed credential error.
var DefaultCredentialVars = []string{
	"OPENAI_API_KEY",
	"AZURE_OPENAI_API_KEY",
	"EMBEDDING_API_KEY",
	"GOOGLE_API_KEY",
}

// missingMarkers are lowercase fragments that indicate a missing resource.
var missingMarkers = []string{"does not exist", "doesn't exist", "no such"}

// Error is a classified failure.
type Error struct {
	// Kind is the category.
	Kind Kind
	// EnvVar names the credential variable for KindCredential.
	EnvVar string
	// Label is the short error type name used in unknown-kind messages.
	Label string
	// Collection is the collection the missing-collection message refers to.
	Collection string
	// Err is the underlying failure.
	Err error
}

// Error implements error.
func (e *Error) Error() string { return e.Message() }

// Unwrap returns the underlying failure.
func (e *Error) Unwrap() error { return e.Err }

// Message renders the user-facing text.
func (e *Error) Message() string {
	switch e.Kind {
	case KindCredential:
		return fmt.Sprintf("Error: %s is not set. Export it before starting the server.", e.EnvVar)
	case KindMissingCollection:
		return fmt.Sprintf("Error: collection not found. Run the ingestion step to populate '%s' first.", e.Collection)
	default:
		msg := ""
		if e.Err != nil {
			msg = e.Err.Error()
		}
		return fmt.Sprintf("Error: %s: %s", e.Label, msg)
	}
}

// Classifier maps errors onto Kinds.
type Classifier struct {
	// Collection is quoted in missing-collection messages.
	Collection string
	// CredentialVars are matched against error text. Nil means
	// DefaultCredentialVars.
	CredentialVars []string
}

// Classify inspects err, typed errors first and message heuristics second.
func (c *Classifier) Classify(err error) *Error {
	out := &Error{Kind: KindUnknown, Collection: c.Collection, Err: err, Label: label(err)}
	if err == nil {
		return out
	}

	var credErr *rag.CredentialError
	if errors.As(err, &credErr) {
		out.Kind, out.EnvVar = KindCredential, credErr.EnvVar
		return out
	}
	if errors.Is(err, rag.ErrCollectionNotFound) {
		out.Kind = KindMissingCollection
		return out
	}

	msg := err.Error()
	for _, v := range c.credentialVars() {
		if strings.Contains(msg, v) {
			out.Kind, out.EnvVar = KindCredential, v
			return out
		}
	}
	lower := strings.ToLower(msg)
	for _, m := range missingMarkers {
		if strings.Contains(lower, m) {
			out.Kind = KindMissingCollection
			return out
		}
	}
	return out
}

// Message classifies err and renders its message.
func (c *Classifier) Message(err error) string {
	return c.Classify(err).Message()
}

func (c *Classifier) credentialVars() []string {
	if c.CredentialVars != nil {
		return c.CredentialVars
	}
	return DefaultCredentialVars
}

// fallbackLabel names failures that carry no more specific type.
const fallbackLabel = "UnknownError"

// label names the failure for unknown-kind messages: the gRPC status code
// when there is one, the context error, or the outermost exported error type
// that is not a plain errors/fmt wrapper or an eino internal.
func label(err error) string {
	if err == nil {
		return fallbackLabel
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "DeadlineExceeded"
	case errors.Is(err, context.Canceled):
		return "Canceled"
	}
	if s, ok := status.FromError(err); ok && s.Code() != codes.OK && s.Code() != codes.Unknown {
		return s.Code().String()
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		t := reflect.TypeOf(e)
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if genericPkg(t.PkgPath()) || !token.IsExported(t.Name()) {
			continue
		}
		return t.Name()
	}
	return fallbackLabel
}

func genericPkg(path string) bool {
	return path == "errors" || path == "fmt" || strings.HasPrefix(path, "github.com/cloudwego/eino/")
}
