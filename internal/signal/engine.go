package signal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/bias"
	"smc-signal-engine/internal/confluence"
	"smc-signal-engine/internal/logging"
	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/risk"
	"smc-signal-engine/internal/volatility"
)

// Engine sequences gate, bias hierarchy, scorer and planner for one snapshot.
// It holds only read-only configuration and is safe for concurrent use.
type Engine struct {
	cfg    Config
	scorer *confluence.Scorer
	logger *logging.Logger
}

// NewEngine validates the configuration and builds an engine
func NewEngine(cfg Config, logger *logging.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		cfg:    cfg,
		scorer: confluence.NewScorer(cfg.Confidence),
		logger: logger.WithComponent("engine"),
	}, nil
}

// Config returns the effective configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// evaluation is the per-call state of one GenerateSignal run
type evaluation struct {
	cfg   Config
	snap  *market.Snapshot
	log   *logging.Logger
	res   Result
	price float64
}

func (ev *evaluation) reach(stage Stage) {
	ev.res.Diagnostics.StageReached = stage
	ev.log.Debug("stage reached", "stage", string(stage))
}

func (ev *evaluation) reject(code RejectionCode, reason string) Result {
	ev.res.Rejection = &Rejection{
		Stage:  ev.res.Diagnostics.StageReached,
		Code:   code,
		Reason: reason,
	}
	ev.log.Info("signal rejected", "stage", string(ev.res.Rejection.Stage), "code", string(code), "reason", reason)
	return ev.res
}

// GenerateSignal evaluates a snapshot. It never returns an error: every
// failure, including a panic, becomes a Rejection carrying the diagnostics
// of the stages that ran.
func (e *Engine) GenerateSignal(snap *market.Snapshot) (result Result) {
	ev := &evaluation{cfg: e.cfg}
	if snap != nil {
		ev.res.Symbol = strings.ToUpper(snap.Symbol)
	}
	ev.log = logging.EvaluationContext(e.logger, ev.res.Symbol)

	defer func() {
		if r := recover(); r != nil {
			ev.log.Error("evaluation panicked", "panic", fmt.Sprint(r))
			ev.res.Signal = nil
			result = ev.reject(CodeInternalError, fmt.Sprintf("internal error: %v", r))
		}
	}()

	return e.run(ev, snap)
}

func (e *Engine) run(ev *evaluation, input *market.Snapshot) Result {
	ev.reach(StageValidation)
	if err := input.Validate(); err != nil {
		return ev.reject(CodeInvalidData, err.Error())
	}
	ev.snap = input.Clone()
	ev.snap.Symbol = ev.res.Symbol

	m15 := ev.snap.Get(market.TF15m)
	h1 := ev.snap.Get(market.TF1h)
	h4 := ev.snap.Get(market.TF4h)
	d1 := ev.snap.Get(market.TF1d)

	ev.price = ev.snap.LastPrice()
	if len(m15) > 0 {
		ev.price = m15[len(m15)-1].Close
	}

	// Volatility gate runs before any structural work
	ev.reach(StageVolatilityGate)
	gate := volatility.CheckGate(ev.res.Symbol, m15, h1, ev.cfg.Gate)
	ev.res.Diagnostics.Gate = &gate
	if !gate.Passed {
		switch {
		case gate.InsufficientData:
			return ev.reject(CodeInsufficientData, gate.Reason)
		case gate.FailedTimeframe == market.TF15m:
			return ev.reject(CodeVolatility15m, "15m volatility gate: "+gate.Reason)
		default:
			return ev.reject(CodeVolatility1h, "1h volatility gate: "+gate.Reason)
		}
	}
	regime := volatility.ClassifyRegime(gate.ATRPercent15m, ev.cfg.Regime)
	ev.res.Diagnostics.Regime = regime

	// Stage A
	ev.reach(StageHTFBias)
	htf, err := bias.AnalyzeHTF(d1, h4, ev.price, ev.cfg.Analysis, ev.cfg.Bias.HTF)
	if err != nil {
		return ev.reject(codeFor(err), err.Error())
	}
	ev.res.Diagnostics.HTFBias = &htf
	if htf.Direction == analysis.Neutral {
		return ev.reject(CodeNeutralBias, "no clear higher-timeframe bias: "+strings.Join(htf.Reasoning, "; "))
	}
	side, _ := risk.SideFor(htf.Direction)

	// Stage B
	ev.reach(StageIntermediate)
	inter, err := bias.AnalyzeIntermediate(h4, h1, htf, ev.cfg.Analysis, ev.cfg.Bias.Intermediate)
	if err != nil {
		return ev.reject(codeFor(err), err.Error())
	}
	ev.res.Diagnostics.Intermediate = &inter

	// Stage C
	ev.reach(StageExecution)
	exec := bias.AnalyzeExecution(m15, htf, inter, ev.price, ev.cfg.Analysis, ev.cfg.Bias.Execution)
	ev.res.Diagnostics.Execution = &exec
	if !exec.Passed(ev.cfg.Bias.Execution) {
		return ev.reject(CodeAlignmentConflict, fmt.Sprintf("15m alignment %.2f below %.2f: %s",
			exec.Score, ev.cfg.Bias.Execution.MinAlignment, strings.Join(exec.Reasoning, "; ")))
	}

	ev.reach(StageConfidence)
	in := planInput(ev, side, regime, gate.ATR15m, htf, inter, exec)
	entry, ok := risk.ProposedEntry(in, ev.cfg.Risk)
	if !ok {
		entry = ev.price
	}
	bd := e.scorer.Score(confluence.Input{
		Direction:    htf.Direction,
		HTF:          htf,
		Intermediate: inter,
		Execution:    exec,
		EntryPrice:   entry,
	})
	ev.res.Diagnostics.Confidence = &bd
	if !bd.Accepted {
		return ev.reject(CodeLowConfidence, fmt.Sprintf("confidence %.3f below minimum %.2f", bd.Confidence, e.scorer.MinConfidence()))
	}

	ev.reach(StagePlanning)
	plan, err := risk.BuildPlan(in, ev.cfg.Risk)
	if err != nil {
		if errors.Is(err, risk.ErrZeroRisk) {
			ev.log.Warn("degenerate risk, no plan", "error", err)
			return ev.reject(CodeZeroRisk, err.Error())
		}
		return ev.reject(CodeInvalidPlan, err.Error())
	}
	ev.res.Diagnostics.Plan = &plan

	ev.reach(StageComplete)
	sig := assemble(ev, side, htf, inter, exec, bd, plan)
	ev.res.Signal = &sig
	ev.log.WithFields(map[string]interface{}{
		"side":       string(sig.Side),
		"confidence": sig.Confidence,
	}).Info("signal generated", "id", sig.ID, "strength", string(sig.StrengthLabel), "risk_reward", sig.RiskReward)
	return ev.res
}

// planInput collects the zones, swings and targets the planner needs.
// Zones are the Stage B POIs in the trade direction; swings come from the
// 15m structure; targets merge HTF and intermediate liquidity.
func planInput(ev *evaluation, side risk.Side, regime volatility.Regime, atr float64, htf bias.Bias, inter bias.IntermediateStructure, exec bias.ExecutionAlignment) risk.Input {
	in := risk.Input{
		Symbol: ev.res.Symbol,
		Side:   side,
		Price:  ev.price,
		Regime: regime,
		ATR:    atr,
		Swings: exec.Structure.AllSwings,
	}
	for _, p := range inter.POIs() {
		if p.Direction != htf.Direction {
			continue
		}
		switch p.Kind {
		case bias.POIOrderBlock:
			in.OrderBlocks = append(in.OrderBlocks, p.Zone())
		case bias.POIFVG:
			in.FVGs = append(in.FVGs, p.Zone())
		}
	}

	in.LiquidityTargets = append(in.LiquidityTargets, htf.LiquidityTargets...)
	in.LiquidityTargets = append(in.LiquidityTargets, analysis.TargetsBeyond(inter.Pools, ev.price, htf.Direction, ev.cfg.Bias.HTF.MaxTargets)...)
	in.LiquidityTargets = append(in.LiquidityTargets, analysis.TargetsBeyond(exec.Pools, ev.price, htf.Direction, ev.cfg.Bias.HTF.MaxTargets)...)
	return in
}

func assemble(ev *evaluation, side risk.Side, htf bias.Bias, inter bias.IntermediateStructure, exec bias.ExecutionAlignment, bd confluence.Breakdown, plan risk.Plan) Signal {
	sig := Signal{
		Symbol:                ev.res.Symbol,
		Direction:             htf.Direction,
		Side:                  side,
		Confidence:            bd.Confidence,
		StrengthLabel:         bd.Label,
		RiskReward:            plan.RiskReward,
		ScaledEntries:         plan.Entries,
		StopLoss:              plan.StopLoss,
		TakeProfits:           plan.TakeProfits,
		HTFBias:               htf,
		IntermediateStructure: inter,
		ExecutionTimeframe:    market.TF15m,
		Regime:                plan.Regime,
		GeneratedAt:           ev.snap.LastClose(market.TF15m).UTC(),
		MarketPrice:           ev.price,
	}

	sig.Reasoning = append(sig.Reasoning, htf.Reasoning...)
	sig.Reasoning = append(sig.Reasoning, inter.Reasoning...)
	sig.Reasoning = append(sig.Reasoning, exec.Reasoning...)
	sig.Reasoning = append(sig.Reasoning, bd.Reasoning...)
	sig.Reasoning = append(sig.Reasoning, plan.Stop.Reason)

	sig.ID = signalID(sig)
	return sig
}

// signalID is a name-based UUID so identical inputs give identical IDs
func signalID(s Signal) string {
	parts := []string{s.Symbol, string(s.Direction), strconv.FormatInt(s.GeneratedAt.UnixMilli(), 10)}
	for _, e := range s.ScaledEntries {
		parts = append(parts, strconv.FormatFloat(e.EntryPrice, 'f', -1, 64))
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(strings.Join(parts, "|"))).String()
}

func codeFor(err error) RejectionCode {
	switch {
	case errors.Is(err, market.ErrInsufficientData):
		return CodeInsufficientData
	case errors.Is(err, market.ErrInvalidCandles):
		return CodeInvalidData
	default:
		return CodeInternalError
	}
}
