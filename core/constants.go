package core

import "time"

// Environment variables consumed by DefaultConfig().
const (
	EnvDevMode        = "AGENT_DEV_MODE"
	EnvLogLevel       = "AGENT_LOG_LEVEL"
	EnvLogFormat      = "AGENT_LOG_FORMAT"
	EnvMemoryDir      = "AGENT_MEMORY_DIR"
	EnvRedisURL       = "AGENT_REDIS_URL"
	EnvCacheTTL       = "AGENT_CACHE_TTL_SECONDS"
	EnvMaxRecursion   = "AGENT_MAX_RECURSION"
	EnvMaxStagesRetry = "AGENT_MAX_STAGE_RETRIES"
	EnvRAGTopK        = "AGENT_RAG_TOP_K"
)

// DefaultCacheTTL is the read-through memory cache lifetime.
const DefaultCacheTTL = 300 * time.Second

// DefaultMaxRecursion bounds how many times the graph driver may re-enter the
// Supervisor for a single turn before it is forced to stop.
const DefaultMaxRecursion = 20

// DefaultMemoryAge is how long a persisted memory file may go untouched
// before cleanup prunes it.
const DefaultMemoryAge = 30 * 24 * time.Hour
