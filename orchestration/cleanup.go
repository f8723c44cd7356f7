// Cleanup bounds the two places Turn State and its supporting memory files
// can grow unboundedly over a long-running session, ported from
// original_source/core/state_cleanup.py. Turn State itself is a fixed Go
// struct (no dynamic field bloat to prune, unlike the original's
// TypedDict), so the only cleanup that still applies is capping chat
// history length and aging out old memory files on disk.
package orchestration

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const maxChatHistoryEntries = 50

// TrimChatHistory keeps only the most recent maxChatHistoryEntries turns, ported from
// StateCleanupManager.optimize_conversation_history.
func TrimChatHistory(history []ChatTurn) []ChatTurn {
	if len(history) <= maxChatHistoryEntries {
		return history
	}
	return history[len(history)-maxChatHistoryEntries:]
}

// PruneMemoryFiles removes .json files under dir whose modification time is
// older than maxAge, ported from
// StateCleanupManager.cleanup_memory_files. It returns the number of files
// removed.
func PruneMemoryFiles(dir string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
