package llm

import (
	"encoding/json"
	"testing"

	"github.com/mlindqvist/product-enricher/internal/entity"
)

var testProperties = []entity.PropertyField{
	{Name: "color"},
	{Name: "weight", Description: "net weight", ExpectedFormat: "number with unit"},
}

func decodeProps(t *testing.T, doc []byte) map[string]any {
	t.Helper()
	var m struct {
		Products []struct {
			Properties map[string]any `json:"properties"`
		} `json:"products"`
	}
	if err := json.Unmarshal(doc, &m); err != nil {
		t.Fatalf("sanitized document is not JSON: %v", err)
	}
	if len(m.Products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(m.Products))
	}
	return m.Products[0].Properties
}

func TestSanitizeResponseDropsUnknownProperties(t *testing.T) {
	doc := []byte(`{"products":[{"product_name":"Widget","properties":{
		"color":{"value":"black"},
		"made_up":{"value":"nonsense"}}}]}`)

	out, changed, err := SanitizeResponseJSON(doc, testProperties)
	if err != nil {
		t.Fatal(err)
	}
	props := decodeProps(t, out)
	if _, ok := props["made_up"]; ok {
		t.Error("unknown property survived")
	}
	if _, ok := props["color"]; !ok {
		t.Error("known property was dropped")
	}
	if len(changed) == 0 {
		t.Error("no adjustment recorded")
	}
}

func TestSanitizeResponseWrapsBareScalars(t *testing.T) {
	doc := []byte(`{"products":[{"product_name":"Widget","properties":{"color":"black"}}]}`)

	out, _, err := SanitizeResponseJSON(doc, testProperties)
	if err != nil {
		t.Fatal(err)
	}
	props := decodeProps(t, out)
	entry, ok := props["color"].(map[string]any)
	if !ok {
		t.Fatalf("scalar not wrapped: %T", props["color"])
	}
	if entry["value"] != "black" {
		t.Errorf("wrapped value = %v", entry["value"])
	}
}

func TestSanitizeResponseCoercesValueTypes(t *testing.T) {
	doc := []byte(`{"products":[{"product_name":"Widget","properties":{
		"weight":{"value":2.50},
		"color":{"value":true}}}]}`)

	out, _, err := SanitizeResponseJSON(doc, testProperties)
	if err != nil {
		t.Fatal(err)
	}
	props := decodeProps(t, out)
	if v := props["weight"].(map[string]any)["value"]; v != "2.5" {
		t.Errorf("number coerced to %v, want \"2.5\"", v)
	}
	if v := props["color"].(map[string]any)["value"]; v != "true" {
		t.Errorf("bool coerced to %v, want \"true\"", v)
	}
}

func TestSanitizeResponseDropsEntriesWithoutValue(t *testing.T) {
	doc := []byte(`{"products":[{"product_name":"Widget","properties":{
		"color":{"value":null},
		"weight":{"value":"  "}}}]}`)

	out, _, err := SanitizeResponseJSON(doc, testProperties)
	if err != nil {
		t.Fatal(err)
	}
	props := decodeProps(t, out)
	if len(props) != 0 {
		t.Errorf("valueless entries survived: %v", props)
	}
}

func TestSanitizeResponseClampsConfidence(t *testing.T) {
	doc := []byte(`{"products":[{"product_name":"Widget","properties":{
		"color":{"value":"black","confidence":1.7},
		"weight":{"value":"2 kg","confidence":"high"}}}]}`)

	out, _, err := SanitizeResponseJSON(doc, testProperties)
	if err != nil {
		t.Fatal(err)
	}
	props := decodeProps(t, out)
	if c := props["color"].(map[string]any)["confidence"]; c != 1.0 {
		t.Errorf("confidence = %v, want 1", c)
	}
	if _, ok := props["weight"].(map[string]any)["confidence"]; ok {
		t.Error("non-numeric confidence survived")
	}
}

func TestSanitizeResponseDropsUnknownEntryKeys(t *testing.T) {
	doc := []byte(`{"products":[{"product_name":"Widget","properties":{
		"color":{"value":"black","reasoning":"it looked dark"}}}]}`)

	out, _, err := SanitizeResponseJSON(doc, testProperties)
	if err != nil {
		t.Fatal(err)
	}
	props := decodeProps(t, out)
	if _, ok := props["color"].(map[string]any)["reasoning"]; ok {
		t.Error("unknown entry key survived")
	}
}

func TestSanitizedResponseValidatesAgainstSchema(t *testing.T) {
	schema := BuildProductJSONSchema(testProperties)

	messy := []byte(`{"products":[{"article_number":"ART-001","product_name":"Widget","properties":{
		"color":"black",
		"weight":{"value":2.5,"confidence":1.3,"reasoning":"guess"},
		"made_up":{"value":"x"}}}]}`)

	if err := ValidateJSONAgainstSchema(schema, messy); err == nil {
		t.Fatal("messy document unexpectedly passed strict validation")
	}

	cleaned, _, err := SanitizeResponseJSON(messy, testProperties)
	if err != nil {
		t.Fatal(err)
	}
	if err := ValidateJSONAgainstSchema(schema, cleaned); err != nil {
		t.Errorf("sanitized document still invalid: %v", err)
	}
}

func TestValidateJSONAgainstSchemaAcceptsWellFormed(t *testing.T) {
	schema := BuildProductJSONSchema(testProperties)
	doc := []byte(`{"products":[{"article_number":"ART-001","product_name":"Widget","properties":{
		"color":{"value":"black","confidence":0.9,"sources":[{"url":"https://example.com","label":"web"}],"is_consistent":true}}}]}`)

	if err := ValidateJSONAgainstSchema(schema, doc); err != nil {
		t.Errorf("well-formed document rejected: %v", err)
	}
}

func TestValidateJSONAgainstSchemaRejectsMissingProducts(t *testing.T) {
	schema := BuildProductJSONSchema(testProperties)
	if err := ValidateJSONAgainstSchema(schema, []byte(`{"products":[]}`)); err == nil {
		t.Error("empty products array passed validation")
	}
}
