package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/quailyquaily/llmask/llm"
)

const chatSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["model_id", "messages", "max_tokens"],
  "additionalProperties": false,
  "properties": {
    "model_id": {"type": "string", "minLength": 1},
    "max_tokens": {"type": "integer", "minimum": 1},
    "messages": {
      "type": "array",
      "minItems": 1,
      "maxItems": 1,
      "items": {
        "type": "object",
        "required": ["role", "content"],
        "additionalProperties": false,
        "properties": {
          "role": {"const": "user"},
          "content": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

const completionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["model", "prompt", "stream"],
  "additionalProperties": false,
  "properties": {
    "model": {"type": "string", "minLength": 1},
    "prompt": {"type": "string", "minLength": 1},
    "stream": {"const": false}
  }
}`

var (
	schemaOnce sync.Once
	schemas    map[llm.Dialect]*jsonschema.Schema
	schemaErr  error
)

func compiledSchemas() (map[llm.Dialect]*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		sources := map[llm.Dialect]string{
			llm.DialectChat:       chatSchema,
			llm.DialectCompletion: completionSchema,
		}
		out := make(map[llm.Dialect]*jsonschema.Schema, len(sources))
		for dialect, src := range sources {
			name := string(dialect) + ".schema.json"
			compiler := jsonschema.NewCompiler()
			if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
				schemaErr = fmt.Errorf("add %s: %w", name, err)
				return
			}
			compiled, err := compiler.Compile(name)
			if err != nil {
				schemaErr = fmt.Errorf("compile %s: %w", name, err)
				return
			}
			out[dialect] = compiled
		}
		schemas = out
	})
	return schemas, schemaErr
}

// Encode marshals body and checks it against the dialect's wire schema.
func Encode(dialect llm.Dialect, body any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	if err := Validate(dialect, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Validate checks an encoded request body against the dialect's schema.
func Validate(dialect llm.Dialect, raw []byte) error {
	all, err := compiledSchemas()
	if err != nil {
		return err
	}
	schema, ok := all[dialect]
	if !ok {
		return fmt.Errorf("no schema for dialect %q", dialect)
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("invalid %s payload: %w", dialect, err)
	}
	return nil
}
