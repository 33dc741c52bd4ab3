package engine

import "math"

// Conditions modify how an order is worked by the book. Values are
// bitwise composable; zero means a plain limit or market order.
type Conditions uint32

const (
	ConditionAON Conditions = 1 << iota // all-or-none
	ConditionIOC                        // immediate-or-cancel

	NoConditions Conditions = 0
)

func (c Conditions) AllOrNone() bool         { return c&ConditionAON != 0 }
func (c Conditions) ImmediateOrCancel() bool { return c&ConditionIOC != 0 }

// Sentinel values used by Replace. PriceUnchanged/SizeUnchanged leave the
// corresponding field alone; the Invalid* constants are reserved and never
// valid inputs.
const (
	PriceUnchanged int64 = 0
	SizeUnchanged  int64 = 0

	InvalidPrice int64 = math.MaxInt64
	InvalidSize  int64 = math.MaxInt64

	// MarketPrice is the limit price of a market order.
	MarketPrice int64 = 0
)

// Order is the book's read-only view of an order. The engine never writes
// order state directly; all mutation happens in listener callbacks.
type Order interface {
	ID() string
	IsBuy() bool
	Price() int64 // MarketPrice for market orders
	StopPrice() int64
	OrderQty() int64
}

// Resting is one open order sitting on the book, reported best price
// first. Used by read-only aggregation queries.
type Resting struct {
	OrderID string
	Price   int64
	OpenQty int64
}
