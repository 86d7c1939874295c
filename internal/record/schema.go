package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	_ "embed"
)

//go:embed payload-schema.json
var payloadSchema []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("payload-v1.schema.json", bytes.NewReader(payloadSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("payload-v1.schema.json")
	})
	return schema, schemaErr
}

// ValidatePayload checks a raw decoded payload against the embedded JSON
// schema. Callers on the decode path treat a validation error as "no
// metadata found" rather than a hard failure.
func ValidatePayload(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := s.Validate(instance); err != nil {
		return fmt.Errorf("payload schema: %w", err)
	}
	return nil
}
