package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Engine names accepted in OCRConfig.Engines.
const (
	EngineTesseract  = "tesseract"
	EngineGosseract  = "gosseract"
	EngineDocumentAI = "documentai"
)

// Zero policies accepted in ResolverConfig.ZeroPolicy.
const (
	ZeroPolicyVolatile = "volatile"
	ZeroPolicyReject   = "reject"
	ZeroPolicyAccept   = "accept"
)

// Config holds all application configuration
type Config struct {
	Watch    WatchConfig    `yaml:"watch"`
	Database DatabaseConfig `yaml:"database"`
	OCR      OCRConfig      `yaml:"ocr"`
	Resolver ResolverConfig `yaml:"resolver"`
	DocAI    DocAIConfig    `yaml:"documentai"`
	Server   ServerConfig   `yaml:"server"`
	LogLevel string         `yaml:"log_level"`
}

// WatchConfig holds the intake directories
type WatchConfig struct {
	Dir         string        `yaml:"dir"`
	ArchiveDir  string        `yaml:"archive_dir"`
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
	HealthTimeout    time.Duration `yaml:"health_timeout"`
}

// OCRConfig holds recognition-related configuration
type OCRConfig struct {
	TesseractBin    string         `yaml:"tesseract_bin"`
	TessdataDir     string         `yaml:"tessdata_dir"`
	Language        string         `yaml:"language"`
	Engines         []string       `yaml:"engines"`
	Presets         []PresetConfig `yaml:"presets"`
	MinConfidence   float64        `yaml:"min_confidence"`
	Parallelism     int            `yaml:"parallelism"`
	MaxCombinations int            `yaml:"max_combinations"`
	Layout          bool           `yaml:"layout"` // recognize fixed screen regions as a fallback
}

// PresetConfig is one parameter preset tried by every recognition engine.
type PresetConfig struct {
	Name      string `yaml:"name"`
	PSM       int    `yaml:"psm"`
	OEM       *int   `yaml:"oem"` // nil leaves the engine default
	Languages string `yaml:"languages"`
}

// ResolverConfig holds field resolution configuration
type ResolverConfig struct {
	ZeroPolicy  string `yaml:"zero_policy"`
	YearMin     int    `yaml:"year_min"`
	YearMax     int    `yaml:"year_max"`
	HeaderLines int    `yaml:"header_lines"`
}

// DocAIConfig holds Google Document AI processor coordinates
type DocAIConfig struct {
	ProjectID       string `yaml:"project_id"`
	Location        string `yaml:"location"`
	ProcessorID     string `yaml:"processor_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HealthAddr string `yaml:"health_addr"`
}

// DefaultPresets mirrors the tesseract configurations the screens were tuned against.
func DefaultPresets() []PresetConfig {
	return []PresetConfig{
		{Name: "psm6-spa", PSM: 6, OEM: intPtr(3), Languages: "spa"},
		{Name: "psm4-spa", PSM: 4, OEM: intPtr(3), Languages: "spa"},
		{Name: "psm11-spa", PSM: 11, OEM: intPtr(3), Languages: "spa"},
		{Name: "psm3-spa+eng", PSM: 3, OEM: intPtr(3), Languages: "spa+eng"},
	}
}

func intPtr(v int) *int { return &v }

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		Watch: WatchConfig{
			Dir:         "screenshots",
			ArchiveDir:  "processed",
			SettleDelay: 2 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             "file:data/sical_tracking.db",
			MaxConns:        4,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
			HealthTimeout:   3 * time.Second,
		},
		OCR: OCRConfig{
			TesseractBin:    "tesseract",
			Language:        "spa",
			Engines:         []string{EngineTesseract},
			Presets:         DefaultPresets(),
			Parallelism:     1,
			MaxCombinations: 64,
			Layout:          true,
		},
		Resolver: ResolverConfig{
			ZeroPolicy:  ZeroPolicyVolatile,
			YearMin:     2000,
			YearMax:     2100,
			HeaderLines: 10,
		},
		DocAI: DocAIConfig{
			Location: "eu",
		},
		LogLevel: "info",
	}
}

// LoadConfig loads configuration: defaults, then the optional YAML file, then environment variables.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError("CONFIG_ERROR", "read config file", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("parse %s", path), err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Watch.Dir = getEnv("WATCH_DIR", c.Watch.Dir)
	c.Watch.ArchiveDir = getEnv("ARCHIVE_DIR", c.Watch.ArchiveDir)
	c.Watch.SettleDelay = getEnvAsDuration("SETTLE_DELAY", c.Watch.SettleDelay)

	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)
	c.Database.HealthTimeout = getEnvAsDuration("DB_HEALTH_TIMEOUT", c.Database.HealthTimeout)

	c.OCR.TesseractBin = getEnv("TESSERACT_BIN", c.OCR.TesseractBin)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.Language = getEnv("OCR_LANG", c.OCR.Language)
	c.OCR.Engines = getEnvAsList("OCR_ENGINES", c.OCR.Engines)
	c.OCR.MinConfidence = getEnvAsFloat64("OCR_MIN_CONFIDENCE", c.OCR.MinConfidence)
	c.OCR.Parallelism = getEnvAsInt("OCR_PARALLELISM", c.OCR.Parallelism)
	c.OCR.MaxCombinations = getEnvAsInt("OCR_MAX_COMBINATIONS", c.OCR.MaxCombinations)
	c.OCR.Layout = getEnvAsBool("OCR_LAYOUT", c.OCR.Layout)

	c.Resolver.ZeroPolicy = getEnv("ZERO_POLICY", c.Resolver.ZeroPolicy)
	c.Resolver.YearMin = getEnvAsInt("YEAR_MIN", c.Resolver.YearMin)
	c.Resolver.YearMax = getEnvAsInt("YEAR_MAX", c.Resolver.YearMax)
	c.Resolver.HeaderLines = getEnvAsInt("HEADER_LINES", c.Resolver.HeaderLines)

	c.DocAI.ProjectID = getEnv("DOCAI_PROJECT_ID", c.DocAI.ProjectID)
	c.DocAI.Location = getEnv("DOCAI_LOCATION", c.DocAI.Location)
	c.DocAI.ProcessorID = getEnv("DOCAI_PROCESSOR_ID", c.DocAI.ProcessorID)
	c.DocAI.CredentialsFile = getEnv("GOOGLE_APPLICATION_CREDENTIALS", c.DocAI.CredentialsFile)

	c.Server.HealthAddr = getEnv("HEALTH_ADDR", c.Server.HealthAddr)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
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

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
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

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DocAIEnabled reports whether the Document AI processor coordinates are complete.
func (c *Config) DocAIEnabled() bool {
	return c.DocAI.ProjectID != "" && c.DocAI.Location != "" && c.DocAI.ProcessorID != ""
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("watch.dir", c.Watch.Dir, Required)
	v.Field("watch.archive_dir", c.Watch.ArchiveDir, Required)
	v.Field("database.dsn", c.Database.DSN, Required)
	v.Field("ocr.engines", c.OCR.Engines, Required, OneOf(EngineTesseract, EngineGosseract, EngineDocumentAI))
	v.Field("ocr.min_confidence", c.OCR.MinConfidence, FloatRange(0, 1))
	v.Field("ocr.parallelism", c.OCR.Parallelism, IntRange(1, 64))
	v.Field("ocr.max_combinations", c.OCR.MaxCombinations, IntRange(1, 1024))
	v.Field("resolver.zero_policy", c.Resolver.ZeroPolicy, OneOf(ZeroPolicyVolatile, ZeroPolicyReject, ZeroPolicyAccept))
	v.Field("resolver.year_min", c.Resolver.YearMin, IntRange(1900, 2999))
	v.Field("resolver.year_max", c.Resolver.YearMax, IntRange(c.Resolver.YearMin, 2999))
	v.Field("resolver.header_lines", c.Resolver.HeaderLines, IntRange(1, 1000))
	for i, p := range c.OCR.Presets {
		v.Field(fmt.Sprintf("ocr.presets[%d].psm", i), p.PSM, IntRange(0, 13))
	}
	if c.Watch.Dir != "" && c.Watch.Dir == c.Watch.ArchiveDir {
		v.errors = append(v.errors, ValidationError{Field: "watch.archive_dir", Value: c.Watch.ArchiveDir, Message: "must differ from watch.dir"})
	}
	for _, e := range c.OCR.Engines {
		if e == EngineDocumentAI && !c.DocAIEnabled() {
			v.errors = append(v.errors, ValidationError{Field: "documentai", Value: c.DocAI.ProcessorID, Message: "project_id, location and processor_id are required"})
		}
	}
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
