package core

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig controls the ProductionLogger's output shape.
type LoggingConfig struct {
	Level  string // debug|info|warn|error
	Format string // json|text
	Output string // stdout|stderr
}

// DevelopmentConfig holds developer-ergonomics toggles.
type DevelopmentConfig struct {
	DebugLogging bool
}

// MemoryConfig controls the three-tier memory subsystem's durability and
// cache behavior.
type MemoryConfig struct {
	Dir      string        // directory holding short_term.json, long_term.json, etc.
	CacheTTL time.Duration // read-through cache lifetime
	RedisURL string        // optional; empty means in-memory cache only
	MaxAge   time.Duration // cleanup prunes memory files untouched past this age
}

// EngineConfig controls the Supervisor's recursion and retry budgets.
type EngineConfig struct {
	MaxRecursion   int // graph driver hard stop (spec default: 20)
	MaxStageRetry  int // verifier/executor/planner retry budget per stage (spec default: 1)
	RAGTopK        int // retrieval path vector search breadth (spec default: 5)
}

// Config is the orchestration engine's root configuration, built the way
// the rest of this codebase's ambient stack is: environment-variable
// defaults, overridable by functional options, validated before use.
type Config struct {
	Name        string
	Development DevelopmentConfig
	Logging     LoggingConfig
	Memory      MemoryConfig
	Engine      EngineConfig

	logger Logger
}

// Option configures a Config.
type Option func(*Config) error

// DefaultConfig returns intelligent defaults, the way a new agent starts
// with no configuration at all: in-memory cache, local ./data memory
// directory, conservative retry budgets.
func DefaultConfig() *Config {
	return &Config{
		Name: "agent",
		Development: DevelopmentConfig{
			DebugLogging: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Memory: MemoryConfig{
			Dir:      "./data/memory",
			CacheTTL: DefaultCacheTTL,
			MaxAge:   DefaultMemoryAge,
		},
		Engine: EngineConfig{
			MaxRecursion:  DefaultMaxRecursion,
			MaxStageRetry: 1,
			RAGTopK:       5,
		},
	}
}

// LoadFromEnv overlays environment variables onto the config. Explicit
// functional options applied afterward always win.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv(EnvDevMode); v != "" {
		c.Development.DebugLogging = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
	if v := os.Getenv(EnvMemoryDir); v != "" {
		c.Memory.Dir = v
	}
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.Memory.RedisURL = v
	}
	if v := os.Getenv(EnvCacheTTL); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return NewFrameworkError("config.LoadFromEnv", "config", fmt.Errorf("%s must be an integer: %w", EnvCacheTTL, err))
		}
		c.Memory.CacheTTL = time.Duration(secs) * time.Second
	}
	if v := os.Getenv(EnvMaxRecursion); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return NewFrameworkError("config.LoadFromEnv", "config", fmt.Errorf("%s must be an integer: %w", EnvMaxRecursion, err))
		}
		c.Engine.MaxRecursion = n
	}
	if v := os.Getenv(EnvMaxStagesRetry); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return NewFrameworkError("config.LoadFromEnv", "config", fmt.Errorf("%s must be an integer: %w", EnvMaxStagesRetry, err))
		}
		c.Engine.MaxStageRetry = n
	}
	if v := os.Getenv(EnvRAGTopK); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return NewFrameworkError("config.LoadFromEnv", "config", fmt.Errorf("%s must be an integer: %w", EnvRAGTopK, err))
		}
		c.Engine.RAGTopK = n
	}
	return nil
}

// Validate rejects a Config that would make the engine misbehave silently.
func (c *Config) Validate() error {
	if c.Engine.MaxRecursion <= 0 {
		return NewFrameworkError("config.Validate", "config", fmt.Errorf("%w: MaxRecursion must be positive", ErrInvalidConfiguration))
	}
	if c.Engine.MaxStageRetry < 0 {
		return NewFrameworkError("config.Validate", "config", fmt.Errorf("%w: MaxStageRetry cannot be negative", ErrInvalidConfiguration))
	}
	if c.Memory.Dir == "" {
		return NewFrameworkError("config.Validate", "config", fmt.Errorf("%w: Memory.Dir is required", ErrMissingConfiguration))
	}
	return nil
}

// Logger returns the configured logger, building a ProductionLogger lazily
// if none was supplied via WithLogger.
func (c *Config) Logger() Logger {
	if c.logger == nil {
		logger := NewProductionLogger(c.Logging, c.Development, c.Name)
		if prodLogger, ok := logger.(*ProductionLogger); ok {
			trackLogger(prodLogger)
		}
		c.logger = logger
	}
	return c.logger
}

// NewConfig builds a Config the intelligent-configuration way: defaults,
// then environment, then explicit options, then validation.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	_ = cfg.Logger() // materialize default logger if none set

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// WithName sets the service name used in logs and telemetry.
func WithName(name string) Option {
	return func(c *Config) error {
		c.Name = name
		return nil
	}
}

// WithLogger overrides the default ProductionLogger.
func WithLogger(logger Logger) Option {
	return func(c *Config) error {
		c.logger = logger
		return nil
	}
}

// WithMemoryDir overrides the memory file directory.
func WithMemoryDir(dir string) Option {
	return func(c *Config) error {
		c.Memory.Dir = dir
		return nil
	}
}

// WithRedisURL enables Redis-backed memory caching.
func WithRedisURL(url string) Option {
	return func(c *Config) error {
		c.Memory.RedisURL = url
		return nil
	}
}

// WithMaxRecursion overrides the graph driver's recursion cap.
func WithMaxRecursion(n int) Option {
	return func(c *Config) error {
		c.Engine.MaxRecursion = n
		return nil
	}
}
