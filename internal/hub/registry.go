package hub

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Handler answers a Request with a Response. Handlers may have arbitrary
// side effects; the resolver guarantees a handler is invoked at most once
// per resolved request.
type Handler func(Request) Response

// Entry is what the registry stores for one registered path.
type Entry struct {
	Path     string
	Handler  Handler
	Metadata Metadata
	// fallback is metadata["fallback"], precomputed at registration time so
	// AliasFallback doesn't re-parse metadata on every resolution.
	fallback string
}

// similarityThreshold is the resolver's default for lookup_similar (§4.1).
const similarityThreshold = 0.8

// exactContainmentScore is returned when one path is a substring of the
// other; it's below 1.0 (an exact match never reaches the similarity step)
// but comfortably above the default threshold.
const exactContainmentScore = 0.9

// similarityCacheSize bounds the memoized similarity-lookup cache below
// (hits and misses alike); it trades a bounded amount of memory for avoiding
// an O(n) segment-overlap scan on repeated, identical lookups (a common pattern under retry
// storms from a misbehaving caller).
const similarityCacheSize = 512

// Registry maps registered paths to handlers on one Hub. It also answers
// the two resolver fallback steps: "who aliases to this path?" and "what's
// registered here that resembles this path closely enough?".
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	logger  *slog.Logger

	// generation increments on every Register/Unregister so the similarity
	// cache can detect staleness without a full invalidation sweep.
	generation atomic.Uint64
	simCache   *lru.Cache[similarityCacheKey, similarityCacheValue]
}

type similarityCacheKey struct {
	path       string
	threshold  float64
	generation uint64
}

type similarityCacheValue struct {
	path  string
	score float64
	ok    bool
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[similarityCacheKey, similarityCacheValue](similarityCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which is a
		// compile-time constant here.
		panic(err)
	}
	return &Registry{
		entries:  make(map[string]Entry),
		logger:   logger,
		simCache: cache,
	}
}

// Register adds or replaces the entry at path. Registering a path twice on
// one registry replaces the prior entry (last-writer-wins per hub).
func (r *Registry) Register(path string, handler Handler, metadata Metadata) {
	entry := Entry{
		Path:     path,
		Handler:  handler,
		Metadata: metadata.Clone(),
		fallback: metadata[metaFallback],
	}

	r.mu.Lock()
	r.entries[path] = entry
	r.mu.Unlock()
	r.generation.Add(1)

	r.logger.Debug("registered endpoint", "path", path, "fallback", entry.fallback)
}

// Unregister removes the entry at path, if any.
func (r *Registry) Unregister(path string) {
	r.mu.Lock()
	_, existed := r.entries[path]
	delete(r.entries, path)
	r.mu.Unlock()
	if existed {
		r.generation.Add(1)
	}
}

// Lookup returns the entry registered at path, if any.
func (r *Registry) Lookup(path string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[path]
	return entry, ok
}

// LookupAliasOf returns an entry whose fallback metadata equals path — "who
// aliases to this path?" — reverse of the intuitive lookup direction. It
// powers the resolver's AliasFallback step, which activates when path
// itself is unregistered.
//
// If more than one entry aliases to path, the first found in map iteration
// order wins; callers that need a reproducible choice should register at
// most one alias per target.
func (r *Registry) LookupAliasOf(path string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, entry := range r.entries {
		if entry.fallback == path {
			return entry, true
		}
	}
	return Entry{}, false
}

// LookupSimilar finds a registered path that resembles path closely enough
// to clear threshold, per the segment-overlap scoring described in
// segmentSimilarity. It is not required to find the best match, only a
// reproducible one: candidates are scanned in lexical path order and the
// first that clears threshold wins.
func (r *Registry) LookupSimilar(path string, threshold float64) (Entry, float64, bool) {
	gen := r.generation.Load()
	cacheKey := similarityCacheKey{path: path, threshold: threshold, generation: gen}
	if cached, ok := r.simCache.Get(cacheKey); ok {
		if !cached.ok {
			return Entry{}, 0, false
		}
		entry, found := r.Lookup(cached.path)
		if found {
			return entry, cached.score, true
		}
		// Entry vanished between caching and use (shouldn't happen within
		// one generation, but fall through to a fresh scan defensively).
	}

	r.mu.RLock()
	var (
		bestPath string
		bestOK   bool
		bestScr  float64
	)
	candidates := make([]string, 0, len(r.entries))
	for candidate := range r.entries {
		candidates = append(candidates, candidate)
	}
	sort.Strings(candidates)
	for _, candidate := range candidates {
		score := segmentSimilarity(candidate, path)
		if score >= threshold {
			bestPath, bestScr, bestOK = candidate, score, true
			break
		}
	}
	r.mu.RUnlock()

	r.simCache.Add(cacheKey, similarityCacheValue{path: bestPath, score: bestScr, ok: bestOK})
	if !bestOK {
		return Entry{}, 0, false
	}
	entry, _ := r.Lookup(bestPath)
	return entry, bestScr, true
}

// segmentSimilarity scores how alike two paths are. It is domain-tailored
// to URL-like paths rather than a generic edit distance:
//
//   - identical strings score 1.0
//   - either string containing the other (as a substring) short-circuits
//     to exactContainmentScore
//   - otherwise, paths are split on '/' (empty segments discarded) and the
//     score is the number of shared segments divided by the larger
//     segment count
func segmentSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return exactContainmentScore
	}

	segA := splitPath(a)
	segB := splitPath(b)
	if len(segA) == 0 || len(segB) == 0 {
		return 0
	}

	setB := make(map[string]struct{}, len(segB))
	for _, s := range segB {
		setB[s] = struct{}{}
	}

	common := 0
	for _, s := range segA {
		if _, ok := setB[s]; ok {
			common++
		}
	}

	maxLen := len(segA)
	if len(segB) > maxLen {
		maxLen = len(segB)
	}
	return float64(common) / float64(maxLen)
}

func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
