package common

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Batch.Concurrency != 3 {
		t.Errorf("concurrency = %d", cfg.Batch.Concurrency)
	}
	if cfg.Batch.ItemTimeout != 3*time.Minute {
		t.Errorf("item timeout = %v", cfg.Batch.ItemTimeout)
	}
	if cfg.LLM.BaseURL == "" || cfg.LLM.Model == "" {
		t.Errorf("llm defaults missing: %+v", cfg.LLM)
	}
}

func TestLoadConfigReadsEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("BATCH_CONCURRENCY", "7")
	t.Setenv("BATCH_ITEM_TIMEOUT", "90s")
	t.Setenv("OPENAI_API_KEY", "key-from-env")

	cfg := LoadConfig()
	if cfg.Server.Addr != ":9999" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Batch.Concurrency != 7 {
		t.Errorf("concurrency = %d", cfg.Batch.Concurrency)
	}
	if cfg.Batch.ItemTimeout != 90*time.Second {
		t.Errorf("item timeout = %v", cfg.Batch.ItemTimeout)
	}
	if cfg.LLM.APIKey != "key-from-env" {
		t.Errorf("api key = %q", cfg.LLM.APIKey)
	}
}

func TestLoadConfigIgnoresMalformedValues(t *testing.T) {
	t.Setenv("BATCH_CONCURRENCY", "banana")
	cfg := LoadConfig()
	if cfg.Batch.Concurrency != 3 {
		t.Errorf("malformed value not ignored: %d", cfg.Batch.Concurrency)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "key")
	cfg := LoadConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	cfg.LLM.APIKey = ""
	if err := cfg.Validate(); err == nil {
		t.Error("missing api key accepted")
	}

	cfg.LLM.APIKey = "key"
	cfg.Batch.Concurrency = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero concurrency accepted")
	}
}
