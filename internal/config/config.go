package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pdf-rag/internal/models"
)

// Backend selects where embeddings and completions come from.
type Backend string

const (
	BackendHosted Backend = "hosted"
	BackendLocal  Backend = "local"
)

const (
	DefaultChunkSize          = 1000
	DefaultChunkOverlap       = 200
	DefaultSeparator          = "\n"
	DefaultRetrievalK         = 4
	DefaultEmbeddingBatchSize = 512
	DefaultRequestTimeout     = 60 * time.Second
	DefaultServerAddr         = ":8080"
	DefaultMaxUploadMB        = 10
	DefaultLogLevel           = "info"

	DefaultHostedBaseURL        = "https://api.openai.com/v1"
	DefaultHostedEmbeddingModel = "text-embedding-3-small"
	DefaultHostedChatModel      = "gpt-4o-mini"
	DefaultLocalBaseURL         = "http://localhost:11434"
	DefaultLocalModel           = "llama2"
)

type Config struct {
	RAG            RAGConfig     `yaml:"rag"`
	EmbedLLM       LLMConfig     `yaml:"embed_llm"`
	LLM            LLMConfig     `yaml:"llm"`
	APICredential  string        `yaml:"api_credential"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Server         ServerConfig  `yaml:"server"`
	Log            LogConfig     `yaml:"log"`
}

type RAGConfig struct {
	ChunkSize          int    `yaml:"chunk_size"`
	ChunkOverlap       int    `yaml:"chunk_overlap"`
	Separator          string `yaml:"separator"`
	RetrievalK         int    `yaml:"retrieval_k"`
	EmbeddingBatchSize int    `yaml:"embedding_batch_size"`
}

// LLMConfig configures one backend. Key overrides api_credential for this backend only.
type LLMConfig struct {
	Backend     Backend `yaml:"backend"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Key         string  `yaml:"key"`
	Temperature float64 `yaml:"temperature"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Credential returns the token to use for this backend.
func (c *Config) Credential(l LLMConfig) string {
	if l.Key != "" {
		return l.Key
	}
	return c.APICredential
}

// SeparatorRune returns the chunker break character.
func (r RAGConfig) SeparatorRune() rune {
	sep, _ := utf8.DecodeRuneInString(r.Separator)
	return sep
}

// LoadConfig reads .env, the YAML file at path (defaults if it does not exist)
// and the environment overrides, then validates the result.
func LoadConfig(path string) (*Config, error) {
	// a missing .env is the normal case
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, models.Errorf(models.KindInvalidInput, "load config", "parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		RAG: RAGConfig{
			ChunkSize:          DefaultChunkSize,
			ChunkOverlap:       DefaultChunkOverlap,
			Separator:          DefaultSeparator,
			RetrievalK:         DefaultRetrievalK,
			EmbeddingBatchSize: DefaultEmbeddingBatchSize,
		},
		EmbedLLM:       LLMConfig{Backend: BackendHosted},
		LLM:            LLMConfig{Backend: BackendHosted},
		RequestTimeout: DefaultRequestTimeout,
		Server:         ServerConfig{Addr: DefaultServerAddr, MaxUploadMB: DefaultMaxUploadMB},
		Log:            LogConfig{Level: DefaultLogLevel},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.RAG.Separator == "" {
		cfg.RAG.Separator = DefaultSeparator
	}
	if cfg.RAG.EmbeddingBatchSize <= 0 {
		cfg.RAG.EmbeddingBatchSize = DefaultEmbeddingBatchSize
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = DefaultMaxUploadMB
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	applyBackendDefaults(&cfg.EmbedLLM, DefaultHostedEmbeddingModel)
	applyBackendDefaults(&cfg.LLM, DefaultHostedChatModel)
}

func applyBackendDefaults(l *LLMConfig, hostedModel string) {
	if l.Backend == "" {
		l.Backend = BackendHosted
	}
	switch l.Backend {
	case BackendHosted:
		if l.BaseURL == "" {
			l.BaseURL = DefaultHostedBaseURL
		}
		if l.Model == "" {
			l.Model = hostedModel
		}
	case BackendLocal:
		if l.BaseURL == "" {
			l.BaseURL = DefaultLocalBaseURL
		}
		if l.Model == "" {
			l.Model = DefaultLocalModel
		}
	}
}

func applyEnv(cfg *Config) error {
	ints := []struct {
		name string
		dst  *int
	}{
		{"CHUNK_SIZE", &cfg.RAG.ChunkSize},
		{"CHUNK_OVERLAP", &cfg.RAG.ChunkOverlap},
		{"RETRIEVAL_K", &cfg.RAG.RetrievalK},
	}
	for _, v := range ints {
		s, ok := os.LookupEnv(v.name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return models.Errorf(models.KindInvalidInput, "load config", "%s: %w", v.name, err)
		}
		*v.dst = n
	}

	if s, ok := os.LookupEnv("SEPARATOR"); ok {
		cfg.RAG.Separator = unescape(s)
	}
	if s := os.Getenv("EMBEDDING_BACKEND"); s != "" {
		switchBackend(&cfg.EmbedLLM, s)
	}
	if s := os.Getenv("LLM_BACKEND"); s != "" {
		switchBackend(&cfg.LLM, s)
	}
	if s := os.Getenv("EMBEDDING_MODEL"); s != "" {
		cfg.EmbedLLM.Model = s
	}
	if s := os.Getenv("LLM_MODEL"); s != "" {
		cfg.LLM.Model = s
	}
	if s := os.Getenv("API_CREDENTIAL"); s != "" {
		cfg.APICredential = s
	} else if s := os.Getenv("OPENAI_API_KEY"); s != "" && cfg.APICredential == "" {
		cfg.APICredential = s
	}
	if s := os.Getenv("OPENAI_BASE_URL"); s != "" {
		setBaseURL(cfg, BackendHosted, s)
	}
	if s := os.Getenv("OLLAMA_BASE_URL"); s != "" {
		setBaseURL(cfg, BackendLocal, s)
	}
	if s := os.Getenv("REQUEST_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return models.Errorf(models.KindInvalidInput, "load config", "REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}
	if s := os.Getenv("SERVER_ADDR"); s != "" {
		cfg.Server.Addr = s
	}
	if s := os.Getenv("LOG_LEVEL"); s != "" {
		cfg.Log.Level = s
	}
	return nil
}

// switchBackend changes the backend. Model and base URL belong to the old backend
// and are cleared so that the defaults of the new one apply.
func switchBackend(l *LLMConfig, name string) {
	b := Backend(strings.ToLower(strings.TrimSpace(name)))
	if b == l.Backend {
		return
	}
	l.Backend = b
	l.Model = ""
	l.BaseURL = ""
}

func setBaseURL(cfg *Config, backend Backend, url string) {
	for _, l := range []*LLMConfig{&cfg.EmbedLLM, &cfg.LLM} {
		if l.Backend == backend {
			l.BaseURL = url
		}
	}
}

var escapes = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\r`, "\r")

func unescape(s string) string {
	return escapes.Replace(s)
}

// Validate checks the invariants the pipeline relies on.
func (c *Config) Validate() error {
	const op = "validate config"
	if c.RAG.ChunkSize <= 0 {
		return models.Errorf(models.KindInvalidInput, op, "chunk_size must be positive, got %d", c.RAG.ChunkSize)
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return models.Errorf(models.KindInvalidInput, op, "chunk_overlap must be in [0, %d), got %d", c.RAG.ChunkSize, c.RAG.ChunkOverlap)
	}
	if utf8.RuneCountInString(c.RAG.Separator) != 1 {
		return models.Errorf(models.KindInvalidInput, op, "separator must be a single character, got %q", c.RAG.Separator)
	}
	if c.RAG.RetrievalK < 1 {
		return models.Errorf(models.KindInvalidInput, op, "retrieval_k must be at least 1, got %d", c.RAG.RetrievalK)
	}
	backends := []struct {
		name string
		cfg  LLMConfig
	}{{"embedding_backend", c.EmbedLLM}, {"llm_backend", c.LLM}}
	for _, b := range backends {
		name, l := b.name, b.cfg
		switch l.Backend {
		case BackendHosted:
			if c.Credential(l) == "" {
				return models.Errorf(models.KindAuth, op, "%s is hosted but no api_credential is set", name)
			}
		case BackendLocal:
		default:
			return models.Errorf(models.KindInvalidInput, op, "%s must be hosted or local, got %q", name, l.Backend)
		}
	}
	return nil
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	c.APICredential = redact(c.APICredential)
	c.EmbedLLM.Key = redact(c.EmbedLLM.Key)
	c.LLM.Key = redact(c.LLM.Key)
	return c
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

func (c *Config) String() string {
	r := c.Redacted()
	return fmt.Sprintf("chunk_size=%d chunk_overlap=%d separator=%q retrieval_k=%d embedding=%s/%s llm=%s/%s timeout=%s",
		r.RAG.ChunkSize, r.RAG.ChunkOverlap, r.RAG.Separator, r.RAG.RetrievalK,
		r.EmbedLLM.Backend, r.EmbedLLM.Model, r.LLM.Backend, r.LLM.Model, r.RequestTimeout)
}
