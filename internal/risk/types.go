package risk

import (
	"errors"

	"smc-signal-engine/internal/analysis"
)

var (
	// ErrZeroRisk is returned when entry and stop coincide, making R undefined
	ErrZeroRisk = errors.New("zero risk: entry equals stop-loss")
	// ErrNoEntries is returned when no entry level could be planned
	ErrNoEntries = errors.New("no entry levels")
	// ErrStopCrossesEntry is returned when the stop sits between or beyond entries
	ErrStopCrossesEntry = errors.New("stop-loss crosses an entry")
	// ErrEntryOrder is returned when entries are not ordered for the side
	ErrEntryOrder = errors.New("entry prices out of order")
	// ErrAllocation is returned when allocations do not sum to 100
	ErrAllocation = errors.New("allocations do not sum to 100")
	// ErrTakeProfitOrder is returned when the ladder is not strictly monotonic
	ErrTakeProfitOrder = errors.New("take-profit ladder out of order")
	// ErrSharedRisk is returned when entries disagree on stop or ladder
	ErrSharedRisk = errors.New("entries do not share one stop-loss and ladder")
)

// Side is the trade direction
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// SideFor maps a bias direction to a trade side
func SideFor(d analysis.Direction) (Side, bool) {
	switch d {
	case analysis.Bullish:
		return Long, true
	case analysis.Bearish:
		return Short, true
	default:
		return "", false
	}
}

// Sign returns +1 for longs and -1 for shorts
func (s Side) Sign() float64 {
	if s == Short {
		return -1
	}
	return 1
}

// OrderKind is how an entry is placed
type OrderKind string

const (
	Market OrderKind = "market"
	Limit  OrderKind = "limit"
)

// EntryStatus tracks an entry's fill state
type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusFilled    EntryStatus = "filled"
	StatusCancelled EntryStatus = "cancelled"
)

// TakeProfit is one rung of the exit ladder
type TakeProfit struct {
	Price             float64 `json:"price"`
	AllocationPercent float64 `json:"allocation_percent"`
	RiskMultiple      float64 `json:"risk_multiple"`
}

// ScaledEntry is one leg of a scaled position
type ScaledEntry struct {
	EntryPrice        float64      `json:"entry_price"`
	AllocationPercent float64      `json:"allocation_percent"`
	OrderKind         OrderKind    `json:"order_kind"`
	StopLoss          float64      `json:"stop_loss"`
	TakeProfits       []TakeProfit `json:"take_profits"`
	Status            EntryStatus  `json:"status"`
}
