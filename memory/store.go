package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ayushchhipa1509/OCI-COPILOT/core"
)

// conversationHistoryCap bounds the durable conversation_history.json file
// independently of the short-term session buffer, so history survives
// across sessions without growing without bound.
const conversationHistoryCap = 50

// fileSet names the on-disk snapshot files a Store manages.
const (
	shortTermFile    = "short_term.json"
	longTermFile     = "long_term.json"
	preferencesFile  = "user_preferences.json"
	historyFile      = "conversation_history.json"
)

// Store persists memory snapshots to JSON files under a directory, one
// writer at a time, using the write-temp-file-then-rename pattern so a
// crash mid-write never leaves a half-written file behind.
type Store struct {
	dir    string
	logger core.Logger
}

// NewStore creates a Store rooted at dir, creating the directory if needed.
func NewStore(dir string, logger core.Logger) (*Store, error) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, core.NewFrameworkError("memory.NewStore", "memory", fmt.Errorf("create memory dir %s: %w", dir, err))
	}
	return &Store{dir: dir, logger: logger}, nil
}

// writeAtomic serializes v as JSON into name, writing to a temp file in the
// same directory first and renaming over the destination so readers never
// observe a partially-written file.
func (s *Store) writeAtomic(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	dest := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file for %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file for %s: %w", name, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file into %s: %w", name, err)
	}
	return nil
}

func (s *Store) readInto(name string, v interface{}) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

type shortTermSnapshot struct {
	Turns   []Turn   `json:"turns"`
	Actions []Action `json:"actions"`
}

type patternSnapshot struct {
	Resource  string                 `json:"resource"`
	Action    string                 `json:"action"`
	Keys      []string               `json:"keys"`
	Example   map[string]interface{} `json:"example"`
	Frequency int                    `json:"frequency"`
	LastUsed  time.Time              `json:"last_used"`
}

// SaveShortTerm writes the short-term buffer's current contents.
func (s *Store) SaveShortTerm(st *ShortTerm) error {
	turns, actions := st.Snapshot()
	return s.writeAtomic(shortTermFile, shortTermSnapshot{Turns: turns, Actions: actions})
}

// LoadShortTerm restores a previously saved short-term buffer.
func (s *Store) LoadShortTerm(st *ShortTerm) error {
	var snap shortTermSnapshot
	if err := s.readInto(shortTermFile, &snap); err != nil {
		return err
	}
	st.Restore(snap.Turns, snap.Actions)
	return nil
}

// SaveLongTerm writes the long-term pattern/preference store.
func (s *Store) SaveLongTerm(lt *LongTerm) error {
	patterns, prefs := lt.Snapshot()
	snaps := make([]patternSnapshot, 0, len(patterns))
	for _, p := range patterns {
		keys := make([]string, 0, len(p.Keys))
		for k := range p.Keys {
			keys = append(keys, k)
		}
		snaps = append(snaps, patternSnapshot{
			Resource: p.Resource, Action: p.Action, Keys: keys,
			Example: p.Example, Frequency: p.Frequency, LastUsed: p.LastUsed,
		})
	}
	if err := s.writeAtomic(longTermFile, snaps); err != nil {
		return err
	}
	return s.writeAtomic(preferencesFile, prefs)
}

// LoadLongTerm restores a previously saved long-term store.
func (s *Store) LoadLongTerm(lt *LongTerm) error {
	var snaps []patternSnapshot
	if err := s.readInto(longTermFile, &snaps); err != nil {
		return err
	}
	patterns := make([]*Pattern, 0, len(snaps))
	for _, sn := range snaps {
		keys := make(map[string]bool, len(sn.Keys))
		for _, k := range sn.Keys {
			keys[k] = true
		}
		patterns = append(patterns, &Pattern{
			Resource: sn.Resource, Action: sn.Action, Keys: keys,
			Example: sn.Example, Frequency: sn.Frequency, LastUsed: sn.LastUsed,
		})
	}
	var prefs map[string]string
	if err := s.readInto(preferencesFile, &prefs); err != nil {
		return err
	}
	lt.Restore(patterns, prefs)
	return nil
}

// AppendHistory appends a turn to the durable conversation_history.json
// file, capping it at conversationHistoryCap entries.
func (s *Store) AppendHistory(t Turn) error {
	var history []Turn
	if err := s.readInto(historyFile, &history); err != nil {
		return err
	}
	history = append(history, t)
	if len(history) > conversationHistoryCap {
		history = history[len(history)-conversationHistoryCap:]
	}
	return s.writeAtomic(historyFile, history)
}

// PruneOlderThan deletes any memory snapshot file whose last modification
// time is older than maxAge, logging each file it removes.
func (s *Store) PruneOlderThan(maxAge time.Duration) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read memory dir: %w", err)
	}
	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(s.dir, entry.Name())
			if err := os.Remove(path); err != nil {
				s.logger.Warn("failed to prune aged memory file", map[string]interface{}{
					"file": entry.Name(), "error": err.Error(),
				})
				continue
			}
			s.logger.Info("pruned aged memory file", map[string]interface{}{
				"file": entry.Name(), "age": info.ModTime().String(),
			})
		}
	}
	return nil
}
