package runtimeadapter

import (
	"strings"
	"sync"
	"time"

	"github.com/google/shlex"
)

// Now is overridable by tests.
var Now = time.Now

// DetectionCache is the shared per-session TTL cache backing
// Adapter.DetectRuntime, so each concrete adapter doesn't reimplement it.
type DetectionCache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	result    bool
	expiresAt time.Time
}

// NewDetectionCache creates a cache with the given TTL.
func NewDetectionCache(ttl time.Duration) *DetectionCache {
	return &DetectionCache{ttl: ttl, entries: make(map[string]cacheEntry)}
}

// Get returns a cached result for session, if still fresh.
func (c *DetectionCache) Get(session string) (result bool, fresh bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[session]
	if !ok || Now().After(e.expiresAt) {
		return false, false
	}
	return e.result, true
}

// Set stores result for session with a fresh TTL.
func (c *DetectionCache) Set(session string, result bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[session] = cacheEntry{result: result, expiresAt: Now().Add(c.ttl)}
}

// Clear invalidates any cached entry for session.
func (c *DetectionCache) Clear(session string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, session)
}

// BuildLaunchCommand splits template into argv with shlex, appends flags,
// and rejoins into a single shell-quoted command line ready to type into a
// session.
func BuildLaunchCommand(template string, flags []string) (string, error) {
	words, err := shlex.Split(template)
	if err != nil {
		return "", err
	}
	words = append(words, flags...)
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = quoteArg(w)
	}
	return strings.Join(quoted, " "), nil
}

func quoteArg(s string) string {
	if s == "" {
		return "''"
	}
	needsQuote := strings.ContainsAny(s, " \t\"'$`\\")
	if !needsQuote {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
