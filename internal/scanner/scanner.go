package scanner

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"smc-signal-engine/internal/events"
	"smc-signal-engine/internal/logging"
	"smc-signal-engine/internal/signal"
)

// Scanner evaluates a watchlist with a bounded worker pool. Every symbol
// gets its own snapshot and engine call.
type Scanner struct {
	evaluator  Evaluator
	bus        *events.EventBus
	cache      *ScannerCache
	config     ScannerConfig
	logger     *logging.Logger
	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	mu         sync.RWMutex
	lastResult *ScanResult
}

// NewScanner creates a new scanner instance
func NewScanner(evaluator Evaluator, bus *events.EventBus, config ScannerConfig, logger *logging.Logger) *Scanner {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Scanner{
		evaluator: evaluator,
		bus:       bus,
		cache:     NewScannerCache(config.CacheTTL),
		config:    config,
		logger:    logger.WithComponent("scanner"),
		stopChan:  make(chan struct{}),
	}
}

// Start begins the background scan loop
func (sc *Scanner) Start() {
	if !sc.config.Enabled || sc.config.ScanInterval <= 0 {
		sc.logger.Info("Watchlist scanner is disabled")
		return
	}

	sc.wg.Add(1)
	go sc.runScanLoop()
	sc.logger.Info("Watchlist scanner started", "interval", sc.config.ScanInterval.String(), "symbols", len(sc.config.Symbols))
}

// runScanLoop executes scans at configured intervals
func (sc *Scanner) runScanLoop() {
	defer sc.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-sc.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(sc.config.ScanInterval)
	defer ticker.Stop()

	// Run immediately
	sc.Scan(ctx, nil)

	for {
		select {
		case <-ticker.C:
			sc.cache.CleanupExpired()
			sc.Scan(ctx, nil)
		case <-sc.stopChan:
			sc.logger.Info("Watchlist scanner stopped")
			return
		}
	}
}

// Scan executes a single scan cycle. A nil or empty symbols list scans the
// configured watchlist.
func (sc *Scanner) Scan(parent context.Context, symbols []string) *ScanResult {
	ctx := parent
	if sc.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, sc.config.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	scanID := uuid.NewString()
	if len(symbols) == 0 {
		symbols = sc.config.Symbols
	}
	symbols = normalizeSymbols(symbols)

	log := sc.logger.WithFields(map[string]interface{}{
		"scan_id": scanID,
		"symbols": len(symbols),
	})
	log.Debug("Starting scan")

	resultChan := make(chan ScanEntry, len(symbols))

	// Worker pool for concurrent scanning
	symbolChan := make(chan string, len(symbols))
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < sc.config.WorkerCount; i++ {
		wg.Add(1)
		go sc.worker(ctx, symbolChan, resultChan, &wg)
	}

	// Feed symbols to workers
	for _, symbol := range symbols {
		symbolChan <- symbol
	}
	close(symbolChan)

	// Wait for workers to finish
	go func() {
		wg.Wait()
		close(resultChan)
	}()

	// Collect results
	allResults := make([]ScanEntry, 0, len(symbols))
	accepted := 0
	for entry := range resultChan {
		if entry.Accepted {
			accepted++
		}
		allResults = append(allResults, entry)
	}

	sort.Slice(allResults, func(i, j int) bool {
		return rank(allResults[i], allResults[j])
	})

	scanResult := &ScanResult{
		ScanID:         scanID,
		StartTime:      startTime,
		EndTime:        time.Now(),
		Duration:       time.Since(startTime),
		SymbolsScanned: len(symbols),
		Accepted:       accepted,
		Results:        allResults,
	}

	// Update last result
	sc.mu.Lock()
	sc.lastResult = scanResult
	sc.mu.Unlock()

	if sc.bus != nil {
		sc.bus.PublishScanCompleted(scanID, len(symbols), accepted, scanResult.Duration)
	}
	log.Info("Scan completed", "accepted", accepted, "duration", scanResult.Duration.String())
	return scanResult
}

// worker processes symbols from the channel
func (sc *Scanner) worker(
	ctx context.Context,
	symbolChan <-chan string,
	resultChan chan<- ScanEntry,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	for symbol := range symbolChan {
		select {
		case <-ctx.Done():
			resultChan <- summarize(symbol, signal.Result{}, ctx.Err(), time.Now())
		default:
			resultChan <- sc.scanSymbol(ctx, symbol)
		}
	}
}

// scanSymbol evaluates one symbol, serving fresh cached entries first
func (sc *Scanner) scanSymbol(ctx context.Context, symbol string) ScanEntry {
	if cached, ok := sc.cache.Get(symbol); ok {
		return cached
	}

	res, err := sc.evaluator.Evaluate(ctx, symbol)
	entry := summarize(symbol, res, err, time.Now())
	if err != nil {
		sc.logger.Warn("Symbol evaluation failed", "symbol", symbol, "error", err)
		return entry
	}

	sc.cache.Set(entry)
	return entry
}

// GetLastResult returns the most recent scan result
func (sc *Scanner) GetLastResult() *ScanResult {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.lastResult
}

// ClearCache drops every cached entry so the next scan re-evaluates all symbols
func (sc *Scanner) ClearCache() {
	sc.cache.Clear()
	sc.logger.Info("Scanner cache cleared")
}

// Stop cancels an in-flight loop scan and waits for the loop to exit
func (sc *Scanner) Stop() {
	sc.stopOnce.Do(func() { close(sc.stopChan) })
	sc.wg.Wait()
}

// normalizeSymbols upper-cases, trims and de-duplicates symbols
func normalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" && !contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// Helper function to check if string slice contains a value
func contains(slice []string, val string) bool {
	for _, item := range slice {
		if item == val {
			return true
		}
	}
	return false
}
