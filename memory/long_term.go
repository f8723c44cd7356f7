package memory

import (
	"sort"
	"sync"
	"time"
)

// similarityThreshold is the fraction of overlapping parameter keys two
// requests must share before they're folded into the same learned pattern
// instead of recorded as a new one.
const similarityThreshold = 0.70

// Pattern is a learned usage pattern for one resource/action pair: which
// parameter keys the user tends to supply, how often, and most recently when.
type Pattern struct {
	Resource  string
	Action    string
	Keys      map[string]bool
	Example   map[string]interface{}
	Frequency int
	LastUsed  time.Time
}

func (p *Pattern) keySet() map[string]bool { return p.Keys }

// LongTerm accumulates patterns and user preferences across turns and
// sessions. It is the source for "smart suggestions" offered proactively.
type LongTerm struct {
	mu          sync.Mutex
	patterns    []*Pattern
	preferences map[string]string
}

// NewLongTerm creates an empty long-term store.
func NewLongTerm() *LongTerm {
	return &LongTerm{preferences: make(map[string]string)}
}

// LearnPattern folds a new (resource, action, params) observation into the
// existing pattern set. A pattern merges into an existing one when its
// parameter-key set overlaps an existing pattern for the same
// resource/action by at least similarityThreshold; otherwise a new pattern
// is recorded.
func (l *LongTerm) LearnPattern(resource, action string, params map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys := make(map[string]bool, len(params))
	for k := range params {
		keys[k] = true
	}

	for _, p := range l.patterns {
		if p.Resource != resource || p.Action != action {
			continue
		}
		if patternsSimilar(p.keySet(), keys) {
			for k := range keys {
				p.Keys[k] = true
			}
			p.Example = params
			p.Frequency++
			p.LastUsed = time.Now()
			return
		}
	}

	l.patterns = append(l.patterns, &Pattern{
		Resource:  resource,
		Action:    action,
		Keys:      keys,
		Example:   params,
		Frequency: 1,
		LastUsed:  time.Now(),
	})
}

// patternsSimilar reports whether a and b overlap by at least
// similarityThreshold of the smaller set's keys.
func patternsSimilar(a, b map[string]bool) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	smaller, larger := a, b
	if len(b) < len(a) {
		smaller, larger = b, a
	}
	overlap := 0
	for k := range smaller {
		if larger[k] {
			overlap++
		}
	}
	return float64(overlap)/float64(len(smaller)) >= similarityThreshold
}

// SetPreference records a durable user preference (e.g. a default
// compartment or a preferred output format).
func (l *LongTerm) SetPreference(key, value string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.preferences[key] = value
}

// Preference returns a stored preference, or "" if unset.
func (l *LongTerm) Preference(key string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.preferences[key]
}

// SmartSuggestions returns up to limit patterns ranked by a blend of
// frequency and recency, most useful first.
func (l *LongTerm) SmartSuggestions(limit int) []*Pattern {
	l.mu.Lock()
	defer l.mu.Unlock()

	ranked := make([]*Pattern, len(l.patterns))
	copy(ranked, l.patterns)

	now := time.Now()
	sort.Slice(ranked, func(i, j int) bool {
		return patternScore(ranked[i], now) > patternScore(ranked[j], now)
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// patternScore combines frequency with hyperbolic recency decay (weight
// 1/(1+days), halved after one day) so a pattern used once yesterday can still rank above
// one used five times a month ago, but not indefinitely.
func patternScore(p *Pattern, now time.Time) float64 {
	age := now.Sub(p.LastUsed).Hours() / 24.0
	recency := 1.0 / (1.0 + age)
	return float64(p.Frequency) * recency
}

// Snapshot returns a copy of all patterns and preferences for persistence.
func (l *LongTerm) Snapshot() ([]*Pattern, map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	patterns := make([]*Pattern, len(l.patterns))
	copy(patterns, l.patterns)
	prefs := make(map[string]string, len(l.preferences))
	for k, v := range l.preferences {
		prefs[k] = v
	}
	return patterns, prefs
}

// Restore replaces the store's contents, e.g. after loading from disk.
func (l *LongTerm) Restore(patterns []*Pattern, prefs map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.patterns = patterns
	if prefs == nil {
		prefs = make(map[string]string)
	}
	l.preferences = prefs
}
