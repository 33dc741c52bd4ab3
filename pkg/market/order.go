package market

import (
	"fmt"
	"time"

	"github.com/orderentry/obgate/pkg/engine"
)

// State is an order's lifecycle state. Transitions are driven only by
// engine listener callbacks; Filled, Rejected and Cancelled are terminal.
type State int

const (
	StateNew State = iota
	StateSubmitted
	StateAccepted
	StateRejected
	StatePartialFilled
	StateFilled
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateSubmitted:
		return "Submitted"
	case StateAccepted:
		return "Accepted"
	case StateRejected:
		return "Rejected"
	case StatePartialFilled:
		return "PartiallyFilled"
	case StateFilled:
		return "Filled"
	case StateCancelled:
		return "Cancelled"
	}
	return "Unknown"
}

// Order is one trading order and its mutable lifecycle state. It is owned
// exclusively by the Market order map; the engine holds a non-owning view
// through the engine.Order interface and mutates only via callbacks.
type Order struct {
	id        string
	symbol    string
	isBuy     bool
	qty       int64 // original quantity, adjusted by replaces
	price     int64 // 0 = market order
	stopPrice int64
	aon       bool
	ioc       bool

	submittedAt time.Time

	openQty    int64
	filledQty  int64
	filledCost int64

	state  State
	reason string // last reject reason, if any
}

// NewOrder creates an order in the New state.
func NewOrder(id string, isBuy bool, qty int64, symbol string, price, stopPrice int64, aon, ioc bool) *Order {
	return &Order{
		id:        id,
		symbol:    symbol,
		isBuy:     isBuy,
		qty:       qty,
		price:     price,
		stopPrice: stopPrice,
		aon:       aon,
		ioc:       ioc,
		openQty:   qty,
		state:     StateNew,
	}
}

// engine.Order view

func (o *Order) ID() string       { return o.id }
func (o *Order) IsBuy() bool      { return o.isBuy }
func (o *Order) Price() int64     { return o.price }
func (o *Order) StopPrice() int64 { return o.stopPrice }
func (o *Order) OrderQty() int64  { return o.qty }

var _ engine.Order = (*Order)(nil)

func (o *Order) Symbol() string            { return o.symbol }
func (o *Order) OpenQty() int64            { return o.openQty }
func (o *Order) FilledQty() int64          { return o.filledQty }
func (o *Order) FilledCost() int64         { return o.filledCost }
func (o *Order) State() State              { return o.state }
func (o *Order) AllOrNone() bool           { return o.aon }
func (o *Order) ImmediateOrCancel() bool   { return o.ioc }
func (o *Order) SubmittedAt() time.Time    { return o.submittedAt }
func (o *Order) IsLimit() bool             { return o.price > 0 }
func (o *Order) Conditions() engine.Conditions {
	var c engine.Conditions
	if o.aon {
		c |= engine.ConditionAON
	}
	if o.ioc {
		c |= engine.ConditionIOC
	}
	return c
}

// Lifecycle transitions, invoked by Market only.

func (o *Order) onSubmitted() {
	o.submittedAt = time.Now().UTC()
	o.state = StateSubmitted
}

func (o *Order) onAccepted() { o.state = StateAccepted }

func (o *Order) onRejected(reason string) {
	o.state = StateRejected
	o.reason = reason
}

// onFilled applies one fill. Cumulative filled quantity exceeding the
// original quantity means the book state is corrupt; continuing would
// fabricate trades, so the process stops.
func (o *Order) onFilled(qty, cost int64) {
	if qty > o.openQty {
		panic(fmt.Sprintf("order %s: fill qty %d exceeds open qty %d", o.id, qty, o.openQty))
	}
	o.openQty -= qty
	o.filledQty += qty
	o.filledCost += cost
	if o.openQty == 0 {
		o.state = StateFilled
	} else {
		o.state = StatePartialFilled
	}
}

func (o *Order) onCancelled() { o.state = StateCancelled }

func (o *Order) onCancelRejected(reason string) { o.reason = reason }

func (o *Order) onReplaced(sizeDelta, newPrice int64) {
	o.qty += sizeDelta
	o.openQty += sizeDelta
	if newPrice != engine.PriceUnchanged {
		o.price = newPrice
	}
}

func (o *Order) onReplaceRejected(reason string) { o.reason = reason }
