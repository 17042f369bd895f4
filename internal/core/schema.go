package core

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/sical-tracker/internal/entity"
)

// recordSchema is the JSON shape of a committed record. Amounts marshal as
// decimal strings.
var recordSchema = map[string]any{
	"$schema":  "http://json-schema.org/draft-07/schema#",
	"type":     "object",
	"required": []any{"timestamp", "image_file"},
	"properties": map[string]any{
		"timestamp":                map[string]any{"type": "string", "format": "date-time"},
		"image_file":               map[string]any{"type": "string", "minLength": 1},
		"year":                     map[string]any{"type": []any{"integer", "null"}, "minimum": 1900, "maximum": 2999},
		"concept":                  map[string]any{"type": []any{"string", "null"}, "pattern": `^[0-9]+$`},
		"concept_description":      map[string]any{"type": []any{"string", "null"}, "minLength": 1, "maxLength": 255},
		"saldo_inicial_deudor":     amountSchema,
		"saldo_inicial_acreedor":   amountSchema,
		"total_haber":              amountSchema,
		"total_debe":               amountSchema,
		"propuestas_mp":            amountSchema,
		"saldo_pendiente_acreedor": amountSchema,
		"saldo_pendiente_deudor":   amountSchema,
	},
}

var amountSchema = map[string]any{"type": []any{"string", "null"}, "pattern": `^-?[0-9]+(\.[0-9]+)?$`}

// RecordValidator checks records against the record schema before they are committed.
type RecordValidator struct {
	schema *jsonschema.Schema
}

func NewRecordValidator() (*RecordValidator, error) {
	b, err := json.Marshal(recordSchema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource("record.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("record.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &RecordValidator{schema: schema}, nil
}

// Validate reports the first schema violation of rec.
func (v *RecordValidator) Validate(rec *entity.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("record does not match schema: %w", err)
	}
	return nil
}
