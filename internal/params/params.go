// Package params defines the argument structs of each knowledge-base tool,
// their published JSON Schemas and the strict decoder that turns raw tool
// arguments into validated values.
package params

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Format selects how a tool renders its result.
type Format string

const (
	// FormatMarkdown renders human-readable markdown.
	FormatMarkdown Format = "markdown"
	// FormatJSON renders pretty-printed JSON.
	FormatJSON Format = "json"
)

// Bounds shared by the structs and their schemas.
const (
	QuestionMinLen = 3
	QuestionMaxLen = 500
	QueryMinLen    = 2
	QueryMaxLen    = 300

	// DefaultKDocs is the default retrieval width of sushi_rag_query.
	DefaultKDocs = 4
	// MaxKDocs bounds k_docs and k.
	MaxKDocs = 10
	// DefaultSearchK is the default result count of sushi_semantic_search.
	DefaultSearchK = 5

	DefaultTopicsLimit = 20
	MaxTopicsLimit     = 100
)

// QueryInput is the argument set of sushi_rag_query.
type QueryInput struct {
	// Question is the natural-language question, trimmed.
	Question string `json:"question" validate:"required,min=3,max=500"`
	// KDocs is the number of chunks retrieved as context.
	KDocs int `json:"k_docs" validate:"gte=1,lte=10"`
	// IncludeSources appends the retrieved chunks to the answer.
	IncludeSources bool `json:"include_sources"`
	// ResponseFormat selects markdown or json output.
	ResponseFormat Format `json:"response_format" validate:"oneof=markdown json"`
}

// SearchInput is the argument set of sushi_semantic_search.
type SearchInput struct {
	// Query is the search text, trimmed.
	Query string `json:"query" validate:"required,min=2,max=300"`
	// K is the maximum number of results.
	K int `json:"k" validate:"gte=1,lte=10"`
	// ScoreThreshold drops results scoring below it when set.
	ScoreThreshold *float64 `json:"score_threshold" validate:"omitnil,gte=0,lte=1"`
	// ResponseFormat selects markdown or json output.
	ResponseFormat Format `json:"response_format" validate:"oneof=markdown json"`
}

// TopicsInput is the argument set of sushi_list_topics.
type TopicsInput struct {
	// Limit caps the number of labels returned.
	Limit int `json:"limit" validate:"gte=1,lte=100"`
}

// input is implemented by pointers to the tool argument structs.
type input interface {
	setDefaults()
	trim()
}

func (in *QueryInput) setDefaults() {
	*in = QueryInput{KDocs: DefaultKDocs, IncludeSources: true, ResponseFormat: FormatMarkdown}
}

func (in *QueryInput) trim() { in.Question = strings.TrimSpace(in.Question) }

func (in *SearchInput) setDefaults() {
	*in = SearchInput{K: DefaultSearchK, ResponseFormat: FormatMarkdown}
}

func (in *SearchInput) trim() { in.Query = strings.TrimSpace(in.Query) }

func (in *TopicsInput) setDefaults() { *in = TopicsInput{Limit: DefaultTopicsLimit} }

func (in *TopicsInput) trim() {}

// Decode builds a T from raw tool arguments: defaults first, then the raw
// object decoded over them with unknown fields rejected, then text fields
// trimmed, then bounds validated. Empty or null arguments yield the defaults,
// which still fail validation when a required text field is absent.
func Decode[T any, P interface {
	*T
	input
}](raw json.RawMessage) (T, error) {
	var v T
	P(&v).setDefaults()

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&v); err != nil {
			return v, &ValidationError{Problems: []string{decodeProblem(err)}}
		}
		if _, err := dec.Token(); !errors.Is(err, io.EOF) {
			return v, &ValidationError{Problems: []string{"arguments must be a single JSON object"}}
		}
	}

	P(&v).trim()

	if err := validate().Struct(&v); err != nil {
		return v, fromValidator(err)
	}
	return v, nil
}

// ValidationError lists every argument that violated its bounds.
type ValidationError struct {
	// Problems holds one human-readable line per violation.
	Problems []string
}

// Error implements error.
func (e *ValidationError) Error() string {
	return "invalid arguments: " + strings.Join(e.Problems, "; ")
}

var (
	validateOnce sync.Once
	validateInst *validator.Validate
)

// validate returns the shared validator, reporting fields by JSON name.
func validate() *validator.Validate {
	validateOnce.Do(func() {
		validateInst = validator.New(validator.WithRequiredStructEnabled())
		validateInst.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validateInst
}

func fromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Problems: []string{err.Error()}}
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Problems = append(out.Problems, describe(fe))
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

func decodeProblem(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s must be of type %s", typeErr.Field, typeErr.Type)
	}
	if msg, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return "unexpected argument " + msg
	}
	return "malformed arguments: " + err.Error()
}
