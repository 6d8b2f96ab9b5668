package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// iterationCountsPath backs the Continuation Analyzer's per-(session, task)
// iteration counter so a crash-restart doesn't silently
// reset the MAX_ITERATIONS guard.
func (s *Service) iterationCountsPath() string {
	return filepath.Join(s.root, "iteration-counts.json")
}

// SaveIterationCount persists the running count for (session, task). Called
// from continuation.IterationTracker.Persist after every Increment.
func (s *Service) SaveIterationCount(session, task string, count int) error {
	path := s.iterationCountsPath()
	return withLock(path, func() error {
		counts, err := readIterationCountsUnlocked(path)
		if err != nil {
			return err
		}
		counts[iterationKey(session, task)] = count
		data, err := json.MarshalIndent(counts, "", "  ")
		if err != nil {
			return fmt.Errorf("%w: marshal iteration counts: %v", ErrStorageIO, err)
		}
		return atomicWrite(path, data)
	})
}

// LoadIterationCounts returns the persisted counts keyed by "session\x00task",
// for seeding a continuation.IterationTracker via Restore at startup.
func (s *Service) LoadIterationCounts() (map[string]int, error) {
	return readIterationCountsUnlocked(s.iterationCountsPath())
}

func iterationKey(session, task string) string { return session + "\x00" + task }

// SplitIterationKey reverses the "session\x00task" composite key
// LoadIterationCounts returns, for seeding continuation.IterationTracker.Restore.
func SplitIterationKey(key string) (session, task string, ok bool) {
	session, task, found := strings.Cut(key, "\x00")
	return session, task, found
}

func readIterationCountsUnlocked(path string) (map[string]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]int), nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorageIO, path, err)
	}
	counts := make(map[string]int)
	if err := json.Unmarshal(data, &counts); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrStorageIO, path, err)
	}
	return counts, nil
}
