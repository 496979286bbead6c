package scanner

import (
	"context"
	"time"

	"smc-signal-engine/internal/signal"
)

// Evaluator runs one symbol through the engine. signal.Service satisfies it.
type Evaluator interface {
	Evaluate(ctx context.Context, symbol string) (signal.Result, error)
}

// summarize flattens an evaluation into a scan entry
func summarize(symbol string, res signal.Result, err error, at time.Time) ScanEntry {
	entry := ScanEntry{Symbol: symbol, EvaluatedAt: at}

	if err != nil {
		entry.Error = err.Error()
		return entry
	}
	if res.Symbol != "" {
		entry.Symbol = res.Symbol
	}

	if res.Accepted() {
		sig := res.Signal
		entry.Accepted = true
		entry.Direction = string(sig.Direction)
		entry.Confidence = sig.Confidence
		entry.StrengthLabel = string(sig.StrengthLabel)
		entry.RiskReward = sig.RiskReward
		entry.Signal = sig
		return entry
	}

	if res.Rejection != nil {
		entry.Stage = string(res.Rejection.Stage)
		entry.Code = string(res.Rejection.Code)
		entry.Reason = res.Rejection.Reason
	}
	if res.Diagnostics.HTFBias != nil {
		entry.Direction = string(res.Diagnostics.HTFBias.Direction)
	}
	if res.Diagnostics.Confidence != nil {
		entry.Confidence = res.Diagnostics.Confidence.Confidence
	}
	return entry
}

// rank orders accepted entries first, then by confidence, then by symbol
func rank(a, b ScanEntry) bool {
	if a.Accepted != b.Accepted {
		return a.Accepted
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.Symbol < b.Symbol
}
