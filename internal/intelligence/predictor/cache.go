package predictor

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/turtacn/AdsorpNET/internal/domain/synthesis"
)

// Fingerprint hashes a set of named inputs into a stable cache key: the md5
// hex digest of the JSON list of [name, value] pairs sorted by name, with
// ", " separators, ASCII-escaped names and repr-style floats, so keys stay
// comparable with caches populated by other tooling.
func Fingerprint(inputs map[string]float64) string {
	names := make([]string, 0, len(inputs))
	for k := range inputs {
		names = append(names, k)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteByte('[')
	for i, k := range names {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('[')
		sb.WriteString(strconv.QuoteToASCII(k))
		sb.WriteString(", ")
		sb.WriteString(reprFloat(inputs[k]))
		sb.WriteByte(']')
	}
	sb.WriteByte(']')

	sum := md5.Sum([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// reprFloat formats v as the shortest round-trip decimal that always carries
// a fraction or exponent ("1.0", "1e-06").
func reprFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case v == 0:
		if math.Signbit(v) {
			return "-0.0"
		}
		return "0.0"
	}
	sci := strconv.FormatFloat(v, 'e', -1, 64)
	exp, _ := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if exp < -4 || exp >= 16 {
		return sci
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// CachedResult is one stored stage prediction.
type CachedResult struct {
	Prediction synthesis.StagePrediction `json:"prediction"`
	Version    string                    `json:"version,omitempty"`
	StoredAt   time.Time                 `json:"stored_at"`
}

// CacheStats is a point-in-time view of a result cache.
type CacheStats struct {
	Backend   string `json:"backend"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Entries   int64  `json:"entries"`
	Evictions int64  `json:"evictions"`
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s CacheStats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// ResultCache stores stage predictions by input fingerprint. A cache is
// advisory: a failing backend reports a miss and the pipeline recomputes.
type ResultCache interface {
	Get(ctx context.Context, key string, stage synthesis.Stage) (*CachedResult, bool)
	Put(ctx context.Context, key string, stage synthesis.Stage, value *CachedResult, ttl time.Duration)
	Clear(ctx context.Context) error
	Stats() CacheStats
}

// EntryKey namespaces a fingerprint by stage.
func EntryKey(stage synthesis.Stage, key string) string {
	return stage.String() + ":" + key
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

type memoryEntry struct {
	value   CachedResult
	expires time.Time
}

// MemoryCache is a process-local ResultCache with per-entry expiry.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	maxEntries int
	now        func() time.Time

	hits, misses, evictions int64
}

// NewMemoryCache returns an empty cache holding at most maxEntries entries
// (0 means unbounded).
func NewMemoryCache(maxEntries int) *MemoryCache {
	return &MemoryCache{
		entries:    make(map[string]memoryEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string, stage synthesis.Stage) (*CachedResult, bool) {
	k := EntryKey(stage, key)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	if ok && !e.expires.IsZero() && !now.Before(e.expires) {
		delete(c.entries, k)
		ok = false
	}
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	out := e.value
	out.Prediction = CloneStagePrediction(e.value.Prediction)
	return &out, true
}

// Put stores value until ttl elapses. A non-positive ttl never expires.
func (c *MemoryCache) Put(_ context.Context, key string, stage synthesis.Stage, value *CachedResult, ttl time.Duration) {
	if value == nil {
		return
	}
	k := EntryKey(stage, key)
	e := memoryEntry{value: *value}
	e.value.Prediction = CloneStagePrediction(value.Prediction)
	now := c.now()
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[k]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.entries[k] = e
}

// evictLocked drops expired entries, then the one closest to expiry.
func (c *MemoryCache) evictLocked(now time.Time) {
	for k, e := range c.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(c.entries, k)
			c.evictions++
		}
	}
	if len(c.entries) < c.maxEntries {
		return
	}
	var victim string
	var soonest time.Time
	for k, e := range c.entries {
		exp := e.expires
		if exp.IsZero() {
			exp = time.Unix(math.MaxInt32, 0)
		}
		if victim == "" || exp.Before(soonest) || (exp.Equal(soonest) && k < victim) {
			victim, soonest = k, exp
		}
	}
	if victim != "" {
		delete(c.entries, victim)
		c.evictions++
	}
}

func (c *MemoryCache) Clear(context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{
		Backend:   "memory",
		Hits:      c.hits,
		Misses:    c.misses,
		Entries:   int64(len(c.entries)),
		Evictions: c.evictions,
	}
}

// CloneStagePrediction deep-copies p.
func CloneStagePrediction(p synthesis.StagePrediction) synthesis.StagePrediction {
	if p.Numeric != nil {
		v := *p.Numeric
		p.Numeric = &v
	}
	if p.Confidence != nil {
		v := *p.Confidence
		p.Confidence = &v
	}
	if p.Alternatives != nil {
		p.Alternatives = append([]synthesis.Alternative(nil), p.Alternatives...)
	}
	if p.Probabilities != nil {
		m := make(map[string]float64, len(p.Probabilities))
		for k, v := range p.Probabilities {
			m[k] = v
		}
		p.Probabilities = m
	}
	return p
}

var _ ResultCache = (*MemoryCache)(nil)
