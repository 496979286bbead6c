package signal

import (
	"time"

	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/bias"
	"smc-signal-engine/internal/confluence"
	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/risk"
	"smc-signal-engine/internal/volatility"
)

// Stage names a step of the evaluation pipeline
type Stage string

const (
	StageValidation     Stage = "validation"
	StageVolatilityGate Stage = "volatility_gate"
	StageHTFBias        Stage = "htf_bias"
	StageIntermediate   Stage = "intermediate_structure"
	StageExecution      Stage = "execution_alignment"
	StageConfidence     Stage = "confidence"
	StagePlanning       Stage = "risk_planning"
	StageComplete       Stage = "complete"
)

// RejectionCode is a machine-readable rejection reason
type RejectionCode string

const (
	CodeInvalidData       RejectionCode = "invalid_data"
	CodeInsufficientData  RejectionCode = "insufficient_data"
	CodeVolatility15m     RejectionCode = "volatility_15m"
	CodeVolatility1h      RejectionCode = "volatility_1h"
	CodeNeutralBias       RejectionCode = "neutral_bias"
	CodeAlignmentConflict RejectionCode = "alignment_conflict"
	CodeLowConfidence     RejectionCode = "low_confidence"
	CodeZeroRisk          RejectionCode = "zero_risk"
	CodeInvalidPlan       RejectionCode = "invalid_plan"
	CodeInternalError     RejectionCode = "internal_error"
)

// Rejection explains why no signal was emitted
type Rejection struct {
	Stage  Stage         `json:"stage"`
	Code   RejectionCode `json:"code"`
	Reason string        `json:"reason"`
}

func (r Rejection) Error() string {
	return string(r.Stage) + ": " + r.Reason
}

// Signal is the trade plan handed to the execution side
type Signal struct {
	ID                    string                     `json:"id"`
	Symbol                string                     `json:"symbol"`
	Direction             analysis.Direction         `json:"direction"`
	Side                  risk.Side                  `json:"side"`
	Confidence            float64                    `json:"confidence"`
	StrengthLabel         confluence.StrengthLabel   `json:"strength_label"`
	RiskReward            float64                    `json:"risk_reward"`
	ScaledEntries         []risk.ScaledEntry         `json:"scaled_entries"`
	StopLoss              float64                    `json:"stop_loss"`
	TakeProfits           []risk.TakeProfit          `json:"take_profits"`
	HTFBias               bias.Bias                  `json:"htf_bias"`
	IntermediateStructure bias.IntermediateStructure `json:"intermediate_structure"`
	ExecutionTimeframe    market.Timeframe           `json:"execution_timeframe"`
	Regime                volatility.Regime          `json:"regime"`
	GeneratedAt           time.Time                  `json:"generation_timestamp"`
	MarketPrice           float64                    `json:"market_price_at_generation"`
	Reasoning             []string                   `json:"reasoning"`
}

// Diagnostics holds the output of every stage that ran
type Diagnostics struct {
	StageReached Stage                       `json:"stage_reached"`
	Gate         *volatility.GateResult      `json:"volatility_gate,omitempty"`
	Regime       volatility.Regime           `json:"regime,omitempty"`
	HTFBias      *bias.Bias                  `json:"htf_bias,omitempty"`
	Intermediate *bias.IntermediateStructure `json:"intermediate_structure,omitempty"`
	Execution    *bias.ExecutionAlignment    `json:"execution_alignment,omitempty"`
	Confidence   *confluence.Breakdown       `json:"confidence,omitempty"`
	Plan         *risk.Plan                  `json:"plan,omitempty"`
}

// Result carries either a Signal or a Rejection, with diagnostics in both cases
type Result struct {
	Symbol      string      `json:"symbol"`
	Signal      *Signal     `json:"signal,omitempty"`
	Rejection   *Rejection  `json:"rejection,omitempty"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// Accepted reports whether a signal was emitted
func (r Result) Accepted() bool {
	return r.Signal != nil && r.Rejection == nil
}
