package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	OCR      OCRConfig      `toml:"ocr"`
	Refine   RefineConfig   `toml:"refine"`
	Layout   LayoutConfig   `toml:"layout"`
	Routing  RoutingConfig  `toml:"routing"`
	Batch    BatchConfig    `toml:"batch"`
	LogLevel string         `toml:"log_level"`
}

// DatabaseConfig holds database-related configuration.
// A DSN starting with postgres:// or postgresql:// selects Postgres, anything else is a SQLite path.
type DatabaseConfig struct {
	DSN              string        `toml:"dsn"`
	MaxConns         int32         `toml:"max_conns"`
	MinConns         int32         `toml:"min_conns"`
	MaxConnLifetime  time.Duration `toml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `toml:"max_conn_idle_time"`
	DialTimeout      time.Duration `toml:"dial_timeout"`
	StatementTimeout time.Duration `toml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string `toml:"grpc_addr"`
}

// OCRConfig holds recognition backend configuration. Empty secrets disable the backend.
type OCRConfig struct {
	Backend       string        `toml:"backend"` // gosseract | cli
	TesseractPath string        `toml:"tesseract_path"`
	HEICConverter string        `toml:"heic_converter"` // heif-convert | magick | sips, empty disables
	TessdataDir   string        `toml:"tessdata_dir"`
	Languages     []string      `toml:"languages"`
	OCRSpaceKey   string        `toml:"-"`
	OCRSpaceURL   string        `toml:"ocrspace_url"`
	DocTREndpoint string        `toml:"doctr_endpoint"`
	DocTRToken    string        `toml:"-"`
	Timeout       time.Duration `toml:"timeout"`
}

// RefineConfig holds refinement backend configuration.
type RefineConfig struct {
	GoogleAIKey string              `toml:"-"`
	GeminiModel string              `toml:"gemini_model"`
	GroqKey     string              `toml:"-"`
	GroqModel   string              `toml:"groq_model"`
	GroqBaseURL string              `toml:"groq_base_url"`
	Timeout     time.Duration       `toml:"timeout"`
	Reservoir   []ReservoirProvider `toml:"reservoir"`
}

// ReservoirProvider describes one member of the reservoir cascade, tried in slice order.
type ReservoirProvider struct {
	Name      string `toml:"name"`
	Kind      string `toml:"kind"` // openai | huggingface | ollama | anthropic | mistral
	BaseURL   string `toml:"base_url"`
	Model     string `toml:"model"`
	APIKey    string `toml:"-"`
	APIKeyEnv string `toml:"api_key_env"`
}

// LayoutConfig carries the layout heuristics; zero values keep the analyzer defaults.
type LayoutConfig struct {
	ColumnSlack        float64 `toml:"column_slack"`
	MinGutter          float64 `toml:"min_gutter"`
	HeadingMaxLen      int     `toml:"heading_max_len"`
	HeadingShortLen    int     `toml:"heading_short_len"`
	HeadingCapsRatio   float64 `toml:"heading_caps_ratio"`
	TableMinCells      int     `toml:"table_min_cells"`
	TableCellTolerance int     `toml:"table_cell_tolerance"`
}

// RoutingConfig holds orchestrator and matcher knobs.
type RoutingConfig struct {
	LocalSizeLimit int64   `toml:"local_size_limit"`
	MatchThreshold int     `toml:"match_threshold"`
	TieWindow      float64 `toml:"tie_window"`
}

// BatchConfig holds worker pool and inbox configuration.
type BatchConfig struct {
	Workers        int           `toml:"workers"`
	QueueSize      int           `toml:"queue_size"`
	ProcessTimeout time.Duration `toml:"process_timeout"`
	InboxDir       string        `toml:"inbox_dir"`
	OutboxDir      string        `toml:"outbox_dir"`
}

// LoadConfig loads configuration from environment variables, then overlays the TOML
// file named by DOCCONV_CONFIG when set.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", "docconv.db"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		},
		OCR: OCRConfig{
			Backend:       getEnv("OCR_BACKEND", "gosseract"),
			TesseractPath: getEnv("TESSERACT_PATH", "tesseract"),
			HEICConverter: getEnv("HEIC_CONVERTER", ""),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			Languages:     getEnvAsList("OCR_LANGUAGES", nil),
			OCRSpaceKey:   getSecret("OCRSPACE_API_KEY"),
			OCRSpaceURL:   getEnv("OCRSPACE_URL", "https://api.ocr.space/parse/image"),
			DocTREndpoint: getSecret("DOCTR_ENDPOINT"),
			DocTRToken:    getSecret("DOCTR_TOKEN"),
			Timeout:       getEnvAsDuration("OCR_TIMEOUT", 90*time.Second),
		},
		Refine: RefineConfig{
			GoogleAIKey: getSecret("GOOGLE_AI_KEY"),
			GeminiModel: getEnv("GEMINI_MODEL", "gemini-2.0-flash-exp"),
			GroqKey:     getSecret("GROQ_API_KEY"),
			GroqModel:   getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
			GroqBaseURL: getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
		},
		Routing: RoutingConfig{
			LocalSizeLimit: int64(getEnvAsInt("LOCAL_SIZE_LIMIT", 0)),
			MatchThreshold: getEnvAsInt("MATCH_THRESHOLD", 0),
			TieWindow:      getEnvAsFloat("TIE_WINDOW", 0),
		},
		Batch: BatchConfig{
			Workers:        getEnvAsInt("BATCH_WORKERS", 4),
			QueueSize:      getEnvAsInt("BATCH_QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("BATCH_PROCESS_TIMEOUT", 3*time.Minute),
			InboxDir:       getEnv("INBOX_DIR", ""),
			OutboxDir:      getEnv("OUTBOX_DIR", ""),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if path := getEnv("DOCCONV_CONFIG", ""); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "decode "+path, err)
		}
	}

	for i := range cfg.Refine.Reservoir {
		p := &cfg.Refine.Reservoir[i]
		if p.APIKey == "" && p.APIKeyEnv != "" {
			p.APIKey = getSecret(p.APIKeyEnv)
		}
	}
	if len(cfg.Refine.Reservoir) == 0 {
		cfg.Refine.Reservoir = defaultReservoir()
	}
	return cfg, nil
}

// defaultReservoir lists the reservoir backends whose credentials are present,
// in Together, OpenRouter, Hugging Face, Ollama order.
func defaultReservoir() []ReservoirProvider {
	var out []ReservoirProvider
	if key := getSecret("TOGETHER_API_KEY"); key != "" {
		out = append(out, ReservoirProvider{
			Name:    "together",
			Kind:    "openai",
			BaseURL: "https://api.together.xyz/v1",
			Model:   "meta-llama/Meta-Llama-3.1-70B-Instruct-Turbo",
			APIKey:  key,
		})
	}
	if key := getSecret("OPENROUTER_API_KEY"); key != "" {
		out = append(out, ReservoirProvider{
			Name:    "openrouter",
			Kind:    "openai",
			BaseURL: "https://openrouter.ai/api/v1",
			Model:   "openrouter/auto",
			APIKey:  key,
		})
	}
	if key := getSecret("HUGGINGFACE_TOKEN"); key != "" {
		out = append(out, ReservoirProvider{
			Name:    "huggingface",
			Kind:    "huggingface",
			BaseURL: "https://api-inference.huggingface.co/models",
			Model:   "mistralai/Mixtral-8x7B-Instruct-v0.1",
			APIKey:  key,
		})
	}
	if url := getSecret("OLLAMA_URL"); url != "" {
		out = append(out, ReservoirProvider{
			Name:    "ollama",
			Kind:    "ollama",
			BaseURL: url,
			Model:   getEnv("OLLAMA_MODEL", "llama3.1"),
		})
	}
	return out
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getSecret returns the trimmed value, empty when unset or blank.
func getSecret(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma or plus separated list ("eng,deu" or "eng+deu").
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	fields := strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == '+' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("GRPC_ADDR", c.Server.GRPCAddr, Required)
	v.Field("DB_URL", c.Database.DSN, Required)
	v.Field("BATCH_WORKERS", c.Batch.Workers, Positive)
	v.Field("BATCH_QUEUE_SIZE", c.Batch.QueueSize, Positive)
	v.Field("OCR_BACKEND", c.OCR.Backend, Required, OneOf("gosseract", "cli"))
	v.Field("HEIC_CONVERTER", c.OCR.HEICConverter, OneOf("heif-convert", "magick", "sips"))
	for i, p := range c.Refine.Reservoir {
		v.Field(fmt.Sprintf("reservoir[%d].kind", i), p.Kind, Required, OneOf("openai", "huggingface", "ollama", "anthropic", "mistral"))
	}
	if err := v.Error(); err != nil {
		return NewAppError("CONFIG_ERROR", "invalid configuration", err)
	}
	return nil
}
