package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mlindqvist/product-enricher/internal/entity"
	"github.com/mlindqvist/product-enricher/internal/llm"
)

// wire shapes for the extraction response
type extractionResponse struct {
	Products []wireProduct `json:"products"`
}

type wireProduct struct {
	ArticleNumber string                      `json:"article_number"`
	ProductName   string                      `json:"product_name"`
	Properties    map[string]wirePropertyItem `json:"properties"`
}

type wirePropertyItem struct {
	Value        string             `json:"value"`
	Confidence   float32            `json:"confidence,omitempty"`
	Sources      []entity.SourceRef `json:"sources,omitempty"`
	IsConsistent *bool              `json:"is_consistent,omitempty"`
}

// ExtractProperties implements llm.Extractor using text-only chat/completions
// with a JSON-object response constrained by a locally-built JSON Schema.
func (c *Client) ExtractProperties(ctx context.Context, req llm.ExtractRequest) (entity.ExtractionResult, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"article_number", req.ArticleNumber,
		"content_len", len(req.CombinedContent),
		"direct_fetch", req.DirectFetch,
		"source_labels", strings.Join(req.SourceLabels, ","),
		"properties", len(req.Properties),
	)

	schema := llm.BuildProductJSONSchema(req.Properties)
	sys := buildSystemPrompt(req)
	user := buildUserPrompt(req)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": sys},
			{"role": "user", "content": user + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, httpErr := c.post(ctx, endpoint, body)
	if httpErr != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.ExtractionResult{}, nil, httpErr
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.ExtractionResult{}, raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.extract.no_choices",
			"req_id", rid, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.ExtractionResult{}, raw, fmt.Errorf("no choices in openai response")
	}
	rawContent := []byte(strings.TrimSpace(cc.Choices[0].Message.Content))

	// Validate strictly first.
	if err := llm.ValidateJSONAgainstSchema(schema, rawContent); err != nil {
		if !c.cfg.LenientResponse {
			c.log.Error("llm.extract.schema_validation_failed",
				"req_id", rid, "error", err, "content", string(rawContent),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return entity.ExtractionResult{}, rawContent, fmt.Errorf("schema validation failed: %w", err)
		}
		// Lenient path: sanitize offenders and re-validate.
		cleaned, changed, sErr := llm.SanitizeResponseJSON(rawContent, req.Properties)
		if sErr != nil {
			c.log.Error("llm.extract.sanitize_failed",
				"req_id", rid, "error", sErr,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return entity.ExtractionResult{}, rawContent, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := llm.ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			c.log.Error("llm.extract.schema_validation_failed",
				"req_id", rid, "error", vErr, "content", string(rawContent),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return entity.ExtractionResult{}, rawContent, fmt.Errorf("schema validation failed: %w", vErr)
		}
		c.log.Warn("llm.extract.lenient_sanitize_applied",
			"req_id", rid, "changed", changed,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		rawContent = cleaned
	}

	var out extractionResponse
	if err := json.Unmarshal(rawContent, &out); err != nil {
		c.log.Error("llm.extract.unmarshal_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.ExtractionResult{}, rawContent, fmt.Errorf("unmarshal products: %w", err)
	}
	if len(out.Products) == 0 {
		return entity.ExtractionResult{}, rawContent, fmt.Errorf("no products in response")
	}

	result := toResult(out.Products[0], req)

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"article_number", result.ArticleNumber,
		"product_name", result.ProductName,
		"properties", len(result.Properties),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, rawContent, nil
}

// toResult maps the first wire product onto the entity shape, backfilling
// identity fields from the request when the model omitted them.
func toResult(p wireProduct, req llm.ExtractRequest) entity.ExtractionResult {
	result := entity.ExtractionResult{
		ArticleNumber: p.ArticleNumber,
		ProductName:   p.ProductName,
		Properties:    make(map[string]entity.PropertyValue, len(p.Properties)),
		SourceLabels:  req.SourceLabels,
	}
	if result.ArticleNumber == "" {
		result.ArticleNumber = req.ArticleNumber
	}
	if result.ProductName == "" {
		result.ProductName = req.ProductName
	}
	for name, item := range p.Properties {
		result.Properties[name] = entity.PropertyValue{
			Value:      item.Value,
			Confidence: item.Confidence,
			Sources:    item.Sources,
		}
	}
	return result
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.log.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(resp.Body)
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, buf.String())
	}

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	return buf.Bytes(), nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
