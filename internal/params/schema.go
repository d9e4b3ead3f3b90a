package params

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// QuerySchema is the published input schema of sushi_rag_query.
func QuerySchema() *jsonschema.Schema {
	return object(map[string]*jsonschema.Schema{
		"question": {
			Type:        "string",
			Description: "Natural-language question about sushi, e.g. 'What is the difference between nigiri and sashimi?'",
			MinLength:   intPtr(QuestionMinLen),
			MaxLength:   intPtr(QuestionMaxLen),
		},
		"k_docs": {
			Type:        "integer",
			Description: "Number of knowledge-base chunks to retrieve as context",
			Minimum:     floatPtr(1),
			Maximum:     floatPtr(MaxKDocs),
			Default:     raw(DefaultKDocs),
		},
		"include_sources": {
			Type:        "boolean",
			Description: "Append the retrieved source chunks to the answer",
			Default:     raw(true),
		},
		"response_format": formatSchema(),
	}, "question")
}

// SearchSchema is the published input schema of sushi_semantic_search.
func SearchSchema() *jsonschema.Schema {
	return object(map[string]*jsonschema.Schema{
		"query": {
			Type:        "string",
			Description: "Search text, e.g. 'fatty tuna'",
			MinLength:   intPtr(QueryMinLen),
			MaxLength:   intPtr(QueryMaxLen),
		},
		"k": {
			Type:        "integer",
			Description: "Maximum number of results",
			Minimum:     floatPtr(1),
			Maximum:     floatPtr(MaxKDocs),
			Default:     raw(DefaultSearchK),
		},
		"score_threshold": {
			Types:       []string{"number", "null"},
			Description: "Minimum relevance score in [0, 1]; lower-scoring results are dropped",
			Minimum:     floatPtr(0),
			Maximum:     floatPtr(1),
		},
		"response_format": formatSchema(),
	}, "query")
}

// TopicsSchema is the published input schema of sushi_list_topics.
func TopicsSchema() *jsonschema.Schema {
	return object(map[string]*jsonschema.Schema{
		"limit": {
			Type:        "integer",
			Description: "Maximum number of topic labels to return",
			Minimum:     floatPtr(1),
			Maximum:     floatPtr(MaxTopicsLimit),
			Default:     raw(DefaultTopicsLimit),
		},
	})
}

func formatSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Description: "Output format",
		Enum:        []any{string(FormatMarkdown), string(FormatJSON)},
		Default:     raw(string(FormatMarkdown)),
	}
}

// object wraps properties in a closed object schema.
func object(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}
}

func raw(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
