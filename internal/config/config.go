package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/docflat/internal/db"
	"github.com/kailas-cloud/docflat/internal/domain/mapping"
)

// Config holds the docflat service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Entities  []EntityConfig  `yaml:"entities"`
	Sink      SinkConfig      `yaml:"sink"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys      []string `yaml:"api_keys"`
	PublicStatus bool     `yaml:"public_status"` // status requests skip the key check
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// MongoConfig holds the document store connection settings. Host and port
// are comma-separated lists.
type MongoConfig struct {
	Database          string `yaml:"database"`
	Host              string `yaml:"host"`
	Port              string `yaml:"port"`
	Username          string `yaml:"username"`
	Password          string `yaml:"password"`
	MapMongoFields    string `yaml:"map_mongo_fields"` // "true" | "false"
	ReadPreference    string `yaml:"read_preference"`
	ConnectTimeoutSec int    `yaml:"connect_timeout_sec"`
	BatchSize         int32  `yaml:"batch_size"`
}

// Hosts splits the host list.
func (m MongoConfig) Hosts() []string { return splitList(m.Host) }

// Ports splits the port list.
func (m MongoConfig) Ports() []string { return splitList(m.Port) }

// Flatten reports whether documents are flattened into dotted paths.
func (m MongoConfig) Flatten() (bool, error) {
	if m.MapMongoFields == "" {
		return true, nil
	}
	on, err := strconv.ParseBool(m.MapMongoFields)
	if err != nil {
		return false, fmt.Errorf("mongo.map_mongo_fields must be true or false, got %q", m.MapMongoFields)
	}
	return on, nil
}

// EntityConfig describes one importable collection.
type EntityConfig struct {
	Name             string        `yaml:"name"`
	Collection       string        `yaml:"collection"`
	Query            string        `yaml:"query"`
	DeltaImportQuery string        `yaml:"delta_import_query"`
	PK               string        `yaml:"pk"`
	OnError          string        `yaml:"on_error"` // abort (default) | skip
	Fields           []FieldConfig `yaml:"fields"`
}

// FieldConfig maps a source field to a row column.
type FieldConfig struct {
	MongoField string `yaml:"mongo_field"`
	Column     string `yaml:"column"`
	DateFormat string `yaml:"date_format"`
	IndexType  string `yaml:"index_type"` // text (default) | tag | numeric | none
}

// Rules compiles the entity's field mappings.
func (e EntityConfig) Rules() ([]mapping.Rule, error) {
	rules := make([]mapping.Rule, 0, len(e.Fields))
	for i, f := range e.Fields {
		r, err := mapping.NewRule(f.MongoField, f.Column, f.DateFormat, mapping.IndexType(f.IndexType))
		if err != nil {
			return nil, fmt.Errorf("entities.%s.fields[%d]: %w", e.Name, i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// SinkConfig holds the search store settings.
type SinkConfig struct {
	Driver           string   `yaml:"driver"` // redis (Redis 8+ or Valkey with search + JSON)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	KeyPrefix        string   `yaml:"key_prefix"`
	Storage          string   `yaml:"storage"` // json (default) | hash
	CreateIndex      bool     `yaml:"create_index"`
	WriteBatchSize   int      `yaml:"write_batch_size"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds the optional embedding settings. Embedding is on when
// both model and content_field are set.
type EmbeddingConfig struct {
	Provider            string        `yaml:"provider"`
	APIKey              string        `yaml:"api_key"`
	BaseURL             string        `yaml:"base_url"`
	Model               string        `yaml:"model"`
	Dimensions          int           `yaml:"dimensions"`
	Distance            string        `yaml:"distance"` // cosine (default), ip or l2
	ContentField        string        `yaml:"content_field"`
	DocumentInstruction string        `yaml:"document_instruction"`
	MaxInputBytes       int           `yaml:"max_input_bytes"`
	Cache               bool          `yaml:"cache"`
	CacheTTL            time.Duration `yaml:"cache_ttl"` // 0 keeps cached vectors forever
}

// Enabled reports whether rows get embedded.
func (e EmbeddingConfig) Enabled() bool {
	return e.Model != "" && e.ContentField != ""
}

// ScheduleConfig holds periodic import settings.
type ScheduleConfig struct {
	DeltaCron string `yaml:"delta_cron"` // standard 5-field cron spec; empty disables
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands environment variables in data, decodes it and validates the result.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 30
	}
	if c.Mongo.Host == "" {
		c.Mongo.Host = "localhost"
	}
	if c.Mongo.Port == "" {
		c.Mongo.Port = "27017"
	}
	if c.Mongo.ReadPreference == "" {
		c.Mongo.ReadPreference = "secondaryPreferred"
	}
	if c.Mongo.ConnectTimeoutSec <= 0 {
		c.Mongo.ConnectTimeoutSec = 10
	}
	if c.Sink.Driver == "" {
		c.Sink.Driver = "redis"
	}
	if c.Sink.KeyPrefix == "" {
		c.Sink.KeyPrefix = "docflat"
	}
	if c.Sink.Storage == "" {
		c.Sink.Storage = "json"
	}
	if c.Sink.WriteBatchSize <= 0 {
		c.Sink.WriteBatchSize = 100
	}
	if c.Sink.ReadinessTimeout <= 0 {
		c.Sink.ReadinessTimeout = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	for i := range c.Entities {
		if c.Entities[i].PK == "" {
			c.Entities[i].PK = "_id"
		}
		if c.Entities[i].OnError == "" {
			c.Entities[i].OnError = "abort"
		}
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Mongo.Database == "" {
		return fmt.Errorf("mongo.database is required")
	}
	if _, err := c.Mongo.Flatten(); err != nil {
		return err
	}
	if c.Mongo.BatchSize < 0 {
		return fmt.Errorf("mongo.batch_size must not be negative")
	}
	if len(c.Entities) == 0 {
		return fmt.Errorf("at least one entity is required")
	}
	seen := make(map[string]bool, len(c.Entities))
	for i, e := range c.Entities {
		if e.Name == "" {
			return fmt.Errorf("entities[%d].name is required", i)
		}
		if seen[e.Name] {
			return fmt.Errorf("duplicate entity %q", e.Name)
		}
		seen[e.Name] = true
		if e.Collection == "" {
			return fmt.Errorf("entities.%s.collection is required", e.Name)
		}
		switch e.OnError {
		case "abort", "skip":
		default:
			return fmt.Errorf("entities.%s.on_error must be \"abort\" or \"skip\", got %q", e.Name, e.OnError)
		}
		if _, err := e.Rules(); err != nil {
			return err
		}
	}
	if c.Sink.Driver != "redis" {
		return fmt.Errorf("sink.driver must be \"redis\", got %q", c.Sink.Driver)
	}
	if len(c.Sink.Addrs) == 0 {
		return fmt.Errorf("sink.addrs is required")
	}
	switch c.Sink.Storage {
	case "json", "hash":
	default:
		return fmt.Errorf("sink.storage must be \"json\" or \"hash\", got %q", c.Sink.Storage)
	}
	if c.Embedding.Enabled() && c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive when embedding is enabled")
	}
	if _, err := db.ParseDistance(c.Embedding.Distance); err != nil {
		return fmt.Errorf("embedding.distance: %w", err)
	}
	if c.Embedding.CacheTTL != 0 && c.Embedding.CacheTTL < time.Second {
		return fmt.Errorf("embedding.cache_ttl must be zero or at least 1s, got %s", c.Embedding.CacheTTL)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// envVarRegex matches ${VAR} and ${VAR:-default}. Dotted references such as
// ${dih.last_index_time} are query tokens and are left alone.
var envVarRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		sub := envVarRegex.FindSubmatch(match)
		val := os.Getenv(string(sub[1]))
		if val == "" {
			val = string(sub[2])
		}
		return []byte(val)
	})
}
