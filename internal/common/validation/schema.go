// Package validation wraps JSON-schema validation for inbound payloads.
package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Validate checks a decoded JSON document against a schema expressed as a Go
// map. Returns nil when the document conforms; otherwise an error listing
// every violation.
func Validate(schemaMap, document map[string]interface{}) error {
	if len(schemaMap) == 0 {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(schemaMap)
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("payload validation failed: %v", errs)
	}

	return nil
}
