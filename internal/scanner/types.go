package scanner

import (
	"time"

	"smc-signal-engine/internal/signal"
)

// ScanEntry summarises one symbol's evaluation
type ScanEntry struct {
	Symbol        string         `json:"symbol"`
	Accepted      bool           `json:"accepted"`
	Direction     string         `json:"direction,omitempty"`
	Confidence    float64        `json:"confidence,omitempty"`
	StrengthLabel string         `json:"strength_label,omitempty"`
	RiskReward    float64        `json:"risk_reward,omitempty"`
	Stage         string         `json:"stage,omitempty"`
	Code          string         `json:"code,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Error         string         `json:"error,omitempty"`
	Signal        *signal.Signal `json:"signal,omitempty"`
	EvaluatedAt   time.Time      `json:"evaluated_at"`
}

// ScanResult aggregates all entries from one scan
type ScanResult struct {
	ScanID         string        `json:"scan_id"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	Duration       time.Duration `json:"duration"`
	SymbolsScanned int           `json:"symbols_scanned"`
	Accepted       int           `json:"accepted"`
	Results        []ScanEntry   `json:"results"`
}

// ScannerConfig holds scanner configuration
type ScannerConfig struct {
	Enabled      bool
	ScanInterval time.Duration
	Symbols      []string
	WorkerCount  int
	CacheTTL     time.Duration
	Timeout      time.Duration
}

// DefaultScannerConfig returns a disabled scanner over a small watchlist
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		Enabled:      false,
		ScanInterval: 15 * time.Minute,
		Symbols:      []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT"},
		WorkerCount:  4,
		CacheTTL:     time.Minute,
		Timeout:      2 * time.Minute,
	}
}

// CachedEntry stores a scan entry with TTL
type CachedEntry struct {
	Entry     ScanEntry
	ExpiresAt time.Time
}
