package llm

import (
	"github.com/mlindqvist/product-enricher/internal/entity"
)

// BuildProductJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map describing the expected extraction response. We pass this to
// the model as a structured-output constraint and also use it locally to
// validate what comes back.
func BuildProductJSONSchema(properties []entity.PropertyField) map[string]any {
	propSchemas := map[string]any{}
	for _, p := range properties {
		propSchemas[p.Name] = propertyValueSchema()
	}

	productSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"article_number": map[string]any{"type": "string"},
			"product_name":   map[string]any{"type": "string", "minLength": 1},
			"properties": map[string]any{
				"type":                 "object",
				"properties":           propSchemas,
				"additionalProperties": false,
			},
		},
		"required":             []string{"product_name", "properties"},
		"additionalProperties": false,
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"products": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items":    productSchema,
			},
		},
		"required":             []string{"products"},
		"additionalProperties": false,
	}
}

func propertyValueSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"value":      map[string]any{"type": "string"},
			"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"sources": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"url":   map[string]any{"type": "string"},
						"label": map[string]any{"type": "string"},
					},
					"additionalProperties": false,
				},
			},
			"is_consistent": map[string]any{"type": "boolean"},
		},
		"required":             []string{"value"},
		"additionalProperties": false,
	}
}
