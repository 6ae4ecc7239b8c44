package agents

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// Response schemas sent to the model, in the service's OpenAPI subset.
var (
	reportResponseSchema = map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"summary":   map[string]any{"type": "STRING"},
			"risks":     map[string]any{"type": "ARRAY", "items": map[string]any{"type": "STRING"}},
			"nextSteps": map[string]any{"type": "ARRAY", "items": map[string]any{"type": "STRING"}},
			"kpis": map[string]any{
				"type": "ARRAY",
				"items": map[string]any{
					"type": "OBJECT",
					"properties": map[string]any{
						"label": map[string]any{"type": "STRING"},
						"value": map[string]any{"type": "STRING"},
						"trend": map[string]any{"type": "STRING", "enum": []string{"up", "down", "neutral"}},
					},
				},
			},
			"chartData": map[string]any{
				"type": "ARRAY",
				"items": map[string]any{
					"type": "OBJECT",
					"properties": map[string]any{
						"name":     map[string]any{"type": "STRING"},
						"progress": map[string]any{"type": "NUMBER"},
						"assignee": map[string]any{"type": "STRING"},
					},
				},
			},
		},
	}

	scoreResponseSchema = map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"impactScore":    map[string]any{"type": "NUMBER"},
			"effortScore":    map[string]any{"type": "NUMBER"},
			"strategicTheme": map[string]any{"type": "STRING"},
			"aiRationale":    map[string]any{"type": "STRING"},
		},
	}
)

// JSON Schemas the answers are validated against before use.
const (
	reportSchemaURL = "report.json"
	reportSchema    = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["summary", "risks", "nextSteps", "kpis", "chartData"],
  "properties": {
    "summary": {"type": "string"},
    "risks": {"type": "array", "items": {"type": "string"}},
    "nextSteps": {"type": "array", "items": {"type": "string"}},
    "kpis": {
      "type": "array",
      "maxItems": 3,
      "items": {
        "type": "object",
        "required": ["label", "value", "trend"],
        "properties": {
          "label": {"type": "string"},
          "value": {"type": "string"},
          "trend": {"enum": ["up", "down", "neutral"]}
        }
      }
    },
    "chartData": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "progress", "assignee"],
        "properties": {
          "name": {"type": "string"},
          "progress": {"type": "number", "minimum": 0, "maximum": 100},
          "assignee": {"type": "string"}
        }
      }
    }
  }
}`

	scoreSchemaURL = "score.json"
	scoreSchema    = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["impactScore", "effortScore", "strategicTheme", "aiRationale"],
  "properties": {
    "impactScore": {"type": "number", "minimum": 0, "maximum": 100},
    "effortScore": {"type": "number", "minimum": 1, "maximum": 10},
    "strategicTheme": {"type": "string"},
    "aiRationale": {"type": "string"}
  }
}`
)

// compileSchema compiles an in-memory JSON Schema document.
func compileSchema(url, doc string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource(url, strings.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", url, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", url, err)
	}
	return schema, nil
}

// cleanJSON strips markdown code fences the model sometimes wraps its answer in.
func cleanJSON(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// decodeValidated parses text, checks it against schema, then decodes it into out.
func decodeValidated(text string, schema *jsonschema.Schema, out any) error {
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return &AnalysisError{Reason: "Pas de réponse texte de l'IA"}
	}

	var doc any
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return &AnalysisError{Reason: "réponse JSON invalide", Err: err}
	}
	if err := schema.Validate(doc); err != nil {
		return &AnalysisError{Reason: "réponse hors schéma", Err: firstSchemaCause(err)}
	}
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return &AnalysisError{Reason: "réponse JSON invalide", Err: err}
	}
	return nil
}

// firstSchemaCause reduces a validation tree to its first leaf, which names the
// offending location.
func firstSchemaCause(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return fmt.Errorf("%s: %s", ve.InstanceLocation, ve.Message)
}
