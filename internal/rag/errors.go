package rag

import (
	"errors"
	"fmt"
)

// ErrCollectionNotFound is wrapped by store operations when the configured
// collection does not exist in the vector store.
var ErrCollectionNotFound = errors.New("collection does not exist")

// CredentialError reports that a provider credential is missing.
// EnvVar names the environment variable the operator must set.
type CredentialError struct {
	// EnvVar is the environment variable holding the credential (e.g. OPENAI_API_KEY).
	EnvVar string

	// Component identifies who needed the credential ("embedder", "provider").
	Component string
}

// Error implements error.
func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s: %s is not set", e.Component, e.EnvVar)
}
