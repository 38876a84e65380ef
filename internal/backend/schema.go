package backend

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// analyzeResponseSchema describes every JSON body /api/analyze may return,
// success or failure. Unknown fields are allowed.
const analyzeResponseSchema = `{
	"type": "object",
	"properties": {
		"job_id":          {"type": ["string", "null"]},
		"status":          {"type": ["string", "null"]},
		"processed_files": {"type": ["array", "null"]},
		"skipped_files": {
			"type": ["array", "null"],
			"items": {
				"type": "object",
				"properties": {
					"filename": {"type": "string"},
					"reason":   {"type": "string"}
				},
				"required": ["filename"]
			}
		},
		"total_files": {"type": ["integer", "null"], "minimum": 0},
		"error":       {"type": ["string", "null"]}
	}
}`

var compileAnalyzeSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("analyze_response.json", strings.NewReader(analyzeResponseSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("analyze_response.json")
})

// validateAnalyzeResponse checks raw against the response schema.
func validateAnalyzeResponse(raw []byte) error {
	schema, err := compileAnalyzeSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("response does not match schema: %w", err)
	}
	return nil
}
