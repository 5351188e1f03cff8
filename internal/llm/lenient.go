package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mlindqvist/product-enricher/internal/entity"
)

// SanitizeResponseJSON removes or normalizes parts of a model response that
// don't meet the strict schema so the overall document can still validate.
// We only touch per-property payloads, never the product identity fields.
// Returns the cleaned document and the list of adjustments made.
func SanitizeResponseJSON(doc []byte, properties []entity.PropertyField) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}

	known := make(map[string]struct{}, len(properties))
	for _, p := range properties {
		known[p.Name] = struct{}{}
	}

	var changed []string

	products, _ := m["products"].([]any)
	for pi, pv := range products {
		product, ok := pv.(map[string]any)
		if !ok {
			continue
		}
		props, ok := product["properties"].(map[string]any)
		if !ok {
			continue
		}
		for name, raw := range props {
			if _, ok := known[name]; !ok {
				delete(props, name)
				changed = append(changed, fmt.Sprintf("products[%d].%s(unknown)", pi, name))
				continue
			}
			entry, ok := raw.(map[string]any)
			if !ok {
				// model returned a bare scalar; wrap it
				props[name] = map[string]any{"value": fmt.Sprintf("%v", raw)}
				changed = append(changed, fmt.Sprintf("products[%d].%s(wrapped)", pi, name))
				continue
			}
			sanitizePropertyEntry(entry, fmt.Sprintf("products[%d].%s", pi, name), &changed)
			if _, ok := entry["value"]; !ok {
				delete(props, name)
				changed = append(changed, fmt.Sprintf("products[%d].%s(no value)", pi, name))
			}
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, changed, err
	}
	return out, changed, nil
}

func sanitizePropertyEntry(entry map[string]any, path string, changed *[]string) {
	// value: coerce numbers/bools to strings, drop null/empty
	switch v := entry["value"].(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" || strings.EqualFold(s, "null") {
			delete(entry, "value")
			*changed = append(*changed, path+".value(empty)")
		} else {
			entry["value"] = s
		}
	case float64:
		entry["value"] = trimFloat(v)
		*changed = append(*changed, path+".value(number)")
	case bool:
		entry["value"] = fmt.Sprintf("%t", v)
		*changed = append(*changed, path+".value(bool)")
	case nil:
		delete(entry, "value")
		*changed = append(*changed, path+".value(null)")
	}

	// confidence: clamp into [0,1], drop non-numbers
	if c, ok := entry["confidence"]; ok {
		if f, ok := c.(float64); ok {
			switch {
			case f < 0:
				entry["confidence"] = 0.0
				*changed = append(*changed, path+".confidence(clamped)")
			case f > 1:
				entry["confidence"] = 1.0
				*changed = append(*changed, path+".confidence(clamped)")
			}
		} else {
			delete(entry, "confidence")
			*changed = append(*changed, path+".confidence(type)")
		}
	}

	// drop anything outside the property-value schema
	for k := range entry {
		switch k {
		case "value", "confidence", "sources", "is_consistent":
		default:
			delete(entry, k)
			*changed = append(*changed, path+"."+k+"(unknown)")
		}
	}
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%f", f)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}
