// Package cloudops is the Cloud SDK abstraction boundary (§6.1): a typed
// CloudClientFactory and CloudConfig the engine consumes, plus the ToMap
// contract that converts opaque SDK records into attribute maps. Grounded on
// original_source/oci_ops/clients.go's ALLOWED_CLIENTS allow-list and
// transformers.py's attribute-by-attribute row conversion, carried here as a
// Go interface boundary rather than a concrete OCI SDK dependency (the
// concrete cloud-provider SDK is out of scope per spec.md §1).
package cloudops

import (
	"context"
	"fmt"
)

// Record is an opaque handle to a cloud-provider SDK object. The Executor
// never inspects it directly; it always goes through ToMap first, enforcing
// the data contract with Presentation (spec.md §4.8, §8).
type Record interface{}

// AttributeMap is the sanitized, JSON-friendly shape every execution result
// item takes once it crosses the Executor→Presentation boundary.
type AttributeMap map[string]interface{}

// Config carries resolved cloud credentials built from a creds blob that may
// be a file-path key or inline key content (§6.1 CloudConfig.Build).
type Config struct {
	Tenancy     string
	User        string
	Fingerprint string
	Region      string
	KeyContent  string // inline PEM, or empty when KeyPath is set
	KeyPath     string
}

// Build constructs a Config from a raw credentials blob, matching the
// original's build_config(oci_creds) which accepts either a key file path or
// inline key content under the same field.
func Build(creds map[string]interface{}) (*Config, error) {
	get := func(k string) string {
		if v, ok := creds[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	cfg := &Config{
		Tenancy:     get("tenancy"),
		User:        get("user"),
		Fingerprint: get("fingerprint"),
		Region:      get("region"),
		KeyContent:  get("key_content"),
		KeyPath:     get("key_file"),
	}
	if cfg.Tenancy == "" {
		return nil, fmt.Errorf("cloudops.Build: missing tenancy in credentials")
	}
	return cfg, nil
}

// ServiceClient is the opaque, per-service handle a ClientFactory returns.
// Code that calls through it is provider-specific and lives behind the
// ActionProgram interpreter (orchestration.Executor), never in the engine
// core.
type ServiceClient interface {
	// Call invokes a named operation (the allow-listed action, e.g.
	// "list_instances") with the given parameters and returns zero or more
	// Records plus an optional pagination cursor for the next page.
	Call(ctx context.Context, operation string, params map[string]interface{}) (results []Record, nextPage string, err error)
}

// ClientFactory is the capability interface the engine depends on (§6.1
// CloudClientFactory.Get). AllowedServices enumerates the service-name
// allow-list the Verifier checks artifacts against, grounded on the
// original's ALLOWED_CLIENTS table.
type ClientFactory interface {
	Get(ctx context.Context, service string, cfg *Config) (ServiceClient, error)
	AllowedServices() []string
}

// ToMap converts an opaque Record into an AttributeMap, the one place the
// engine crosses from provider-specific data into the map shape Presentation
// requires. Implementations backed by a real SDK reflect public struct
// fields; ToMapFunc lets a ClientFactory supply its own strategy.
type ToMapFunc func(Record) AttributeMap

// DefaultToMap handles the two shapes the spec's data model allows: a record
// that is already a map, and anything else, which becomes a {value, type}
// fallback (§4.8, mirrors the original's _sanitize_results primitive branch).
func DefaultToMap(r Record) AttributeMap {
	if r == nil {
		return AttributeMap{"value": nil, "type": "nil"}
	}
	if m, ok := r.(map[string]interface{}); ok {
		return AttributeMap(m)
	}
	if m, ok := r.(AttributeMap); ok {
		return m
	}
	return AttributeMap{
		"value": fmt.Sprintf("%v", r),
		"type":  fmt.Sprintf("%T", r),
	}
}
