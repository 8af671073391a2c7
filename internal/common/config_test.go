package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"TOGETHER_API_KEY", "OPENROUTER_API_KEY", "HUGGINGFACE_TOKEN", "OLLAMA_URL", "DOCCONV_CONFIG", "OCR_BACKEND"} {
		t.Setenv(k, "")
	}
	t.Setenv("GOOGLE_AI_KEY", "   ")
	t.Setenv("OCR_LANGUAGES", "eng+deu, fra")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Refine.GoogleAIKey != "" {
		t.Errorf("blank secret should be empty, got %q", cfg.Refine.GoogleAIKey)
	}
	if got, want := cfg.OCR.Languages, []string{"eng", "deu", "fra"}; len(got) != len(want) || got[0] != want[0] || got[2] != want[2] {
		t.Errorf("languages = %v, want %v", got, want)
	}
	if len(cfg.Refine.Reservoir) != 0 {
		t.Errorf("reservoir should be empty without keys, got %+v", cfg.Refine.Reservoir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestDefaultReservoirOrder(t *testing.T) {
	t.Setenv("DOCCONV_CONFIG", "")
	t.Setenv("TOGETHER_API_KEY", "t")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("HUGGINGFACE_TOKEN", "h")
	t.Setenv("OLLAMA_URL", "http://localhost:11434")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	var names []string
	for _, p := range cfg.Refine.Reservoir {
		names = append(names, p.Name)
	}
	want := []string{"together", "huggingface", "ollama"}
	if len(names) != len(want) {
		t.Fatalf("reservoir = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("reservoir[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestLoadConfigTOMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docconv.toml")
	body := `
log_level = "debug"

[batch]
workers = 2

[ocr]
timeout = "15s"

[[refine.reservoir]]
name = "local-llm"
kind = "ollama"
base_url = "http://ollama:11434"
model = "qwen2"

[[refine.reservoir]]
name = "router"
kind = "openai"
base_url = "https://openrouter.ai/api/v1"
model = "openrouter/auto"
api_key_env = "MY_ROUTER_KEY"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCCONV_CONFIG", path)
	t.Setenv("MY_ROUTER_KEY", "secret")
	t.Setenv("TOGETHER_API_KEY", "ignored")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.Batch.Workers != 2 {
		t.Errorf("overlay not applied: %+v", cfg)
	}
	if cfg.OCR.Timeout != 15*time.Second {
		t.Errorf("ocr timeout = %v", cfg.OCR.Timeout)
	}
	if cfg.Batch.QueueSize != 256 {
		t.Errorf("queue size default lost: %d", cfg.Batch.QueueSize)
	}
	if len(cfg.Refine.Reservoir) != 2 || cfg.Refine.Reservoir[0].Name != "local-llm" {
		t.Fatalf("reservoir = %+v", cfg.Refine.Reservoir)
	}
	if cfg.Refine.Reservoir[1].APIKey != "secret" {
		t.Errorf("api key not resolved from env: %q", cfg.Refine.Reservoir[1].APIKey)
	}
}

func TestValidateRejectsUnknownReservoirKind(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{GRPCAddr: ":1"},
		Database: DatabaseConfig{DSN: "x.db"},
		Batch:    BatchConfig{Workers: 1, QueueSize: 1},
		OCR:      OCRConfig{Backend: "cli"},
		Refine:   RefineConfig{Reservoir: []ReservoirProvider{{Name: "x", Kind: "smtp"}}},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	cfg.Refine.Reservoir[0].Kind = "mistral"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	cfg.OCR.HEICConverter = "gimp"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown HEIC converter")
	}
	cfg.OCR.HEICConverter = "sips"
	cfg.OCR.Backend = "paddle"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown OCR backend")
	}
}

func TestRoutingFromEnv(t *testing.T) {
	t.Setenv("DOCCONV_CONFIG", "")
	t.Setenv("LOCAL_SIZE_LIMIT", "1048576")
	t.Setenv("MATCH_THRESHOLD", "7")
	t.Setenv("TIE_WINDOW", "4.5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := RoutingConfig{LocalSizeLimit: 1 << 20, MatchThreshold: 7, TieWindow: 4.5}
	if cfg.Routing != want {
		t.Errorf("routing = %+v, want %+v", cfg.Routing, want)
	}

	t.Setenv("TIE_WINDOW", "wide")
	if cfg, _ = LoadConfig(); cfg.Routing.TieWindow != 0 {
		t.Errorf("unparsable TIE_WINDOW should fall back to 0, got %v", cfg.Routing.TieWindow)
	}
}
