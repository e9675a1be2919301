package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"CHUNK_SIZE", "SCORE_THRESHOLD", "DOMAIN"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 200 {
		t.Errorf("chunking = %d/%d, want 1000/200", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.ScoreThreshold != nil {
		t.Errorf("ScoreThreshold = %v, want nil", *cfg.ScoreThreshold)
	}
	if len(cfg.Domains) != 1 || cfg.Domains[0] != "example.com" {
		t.Errorf("Domains = %v", cfg.Domains)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SCORE_THRESHOLD", "0.35")
	t.Setenv("TWILIO_TO_NUMBERS", "+100, +200 ,")
	t.Setenv("AGGREGATOR_CONCURRENT", "false")
	t.Setenv("FORM_TOP_K", "not-a-number")

	cfg := Load()

	if cfg.ScoreThreshold == nil || *cfg.ScoreThreshold != 0.35 {
		t.Errorf("ScoreThreshold = %v, want 0.35", cfg.ScoreThreshold)
	}
	if len(cfg.TwilioToNumbers) != 2 || cfg.TwilioToNumbers[1] != "+200" {
		t.Errorf("TwilioToNumbers = %v", cfg.TwilioToNumbers)
	}
	if cfg.AggregatorConcurrent {
		t.Error("AggregatorConcurrent should be false")
	}
	if cfg.FormTopK != 5 {
		t.Errorf("FormTopK = %d, want fallback 5", cfg.FormTopK)
	}
}
