package scanner

import (
	"strings"
	"sync"
	"time"
)

// ScannerCache keeps recent per-symbol entries so back-to-back scans do not
// refetch candles that cannot have changed
type ScannerCache struct {
	mu    sync.RWMutex
	cache map[string]*CachedEntry // key: symbol
	ttl   time.Duration
	now   func() time.Time
}

// NewScannerCache creates a new cache with specified TTL
func NewScannerCache(ttl time.Duration) *ScannerCache {
	return &ScannerCache{
		cache: make(map[string]*CachedEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get retrieves an entry from cache if not expired
func (sc *ScannerCache) Get(symbol string) (ScanEntry, bool) {
	if sc.ttl <= 0 {
		return ScanEntry{}, false
	}

	sc.mu.RLock()
	defer sc.mu.RUnlock()

	cached, exists := sc.cache[strings.ToUpper(symbol)]
	if !exists || sc.now().After(cached.ExpiresAt) {
		return ScanEntry{}, false
	}
	return cached.Entry, true
}

// Set stores an entry in cache with TTL
func (sc *ScannerCache) Set(entry ScanEntry) {
	if sc.ttl <= 0 {
		return
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.cache[strings.ToUpper(entry.Symbol)] = &CachedEntry{
		Entry:     entry,
		ExpiresAt: sc.now().Add(sc.ttl),
	}
}

// Clear removes all cached entries
func (sc *ScannerCache) Clear() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.cache = make(map[string]*CachedEntry)
}

// CleanupExpired removes expired cache entries
func (sc *ScannerCache) CleanupExpired() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	now := sc.now()
	for key, cached := range sc.cache {
		if now.After(cached.ExpiresAt) {
			delete(sc.cache, key)
		}
	}
}
