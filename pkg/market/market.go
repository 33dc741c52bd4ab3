package market

import (
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/orderentry/obgate/pkg/engine"
)

var (
	ErrDuplicateOrder  = errors.New("order id already exists")
	ErrDuplicateSymbol = errors.New("symbol already exists")
	ErrUnknownSymbol   = errors.New("unknown symbol")
	ErrUnknownOrder    = errors.New("unknown order id")
)

// Change is a tagged optional for modify requests: either Unchanged or a
// concrete new value. It is translated to the engine's sentinel encoding
// only at the engine call site.
type Change struct {
	set   bool
	value int64
}

func Unchanged() Change       { return Change{} }
func ChangeTo(v int64) Change { return Change{set: true, value: v} }
func (c Change) Set() bool    { return c.set }
func (c Change) Value() int64 { return c.value }

// DepthEntry is one emitted depth level of an incremental update.
type DepthEntry struct {
	Price      int64           `json:"price"`
	Qty        int64           `json:"qty"`
	OrderCount int             `json:"orderCount"`
	ChangeID   engine.ChangeID `json:"changeId"`
	Excess     bool            `json:"excess,omitempty"`
}

// DepthUpdate is the incremental depth diff published after a depth-change
// callback: only levels that changed since the previous publication.
type DepthUpdate struct {
	Symbol     string          `json:"symbol"`
	Bids       []DepthEntry    `json:"bids"`
	Asks       []DepthEntry    `json:"asks"`
	LastChange engine.ChangeID `json:"lastChange"`
}

// PriceQty is one aggregated price level of a depth query result.
type PriceQty struct {
	Price int64 `json:"price"`
	Qty   int64 `json:"qty"`
}

// Market owns the symbol→book and orderId→order maps and adapts engine
// listener callbacks into order state transitions. It has no internal
// locking: all calls, including the synchronous re-entrant callbacks they
// trigger, must run on the single goroutine of a Loop.
type Market struct {
	log *zap.SugaredLogger

	books  map[string]*engine.OrderBook
	orders map[string]*Order

	// OnDepthPublish, if set, receives each non-empty incremental depth
	// diff. OnTradePublish receives per-pass trade totals. Both are wired
	// by the entry point after construction.
	OnDepthPublish func(update DepthUpdate)
	OnTradePublish func(symbol string, qty, cost int64)
}

// NewMarket creates an empty market.
func NewMarket(log *zap.SugaredLogger) *Market {
	return &Market{
		log:    log,
		books:  make(map[string]*engine.OrderBook),
		orders: make(map[string]*Order),
	}
}

// AddBook creates the book for symbol and registers the market as its sole
// listener for every callback category. Callers must have checked the
// symbol is unused; use SymbolIsDefined first.
func (m *Market) AddBook(symbol string, trackDepth bool) *engine.OrderBook {
	var book *engine.OrderBook
	if trackDepth {
		m.log.Infow("book_created", "symbol", symbol, "kind", "depth")
		book = engine.NewDepthOrderBook(symbol)
		book.SetBboListener(m)
		book.SetDepthListener(m)
	} else {
		m.log.Infow("book_created", "symbol", symbol, "kind", "simple")
		book = engine.NewOrderBook(symbol)
	}
	book.SetOrderListener(m)
	book.SetTradeListener(m)
	book.SetBookListener(m)
	m.books[symbol] = book
	return book
}

func (m *Market) SymbolIsDefined(symbol string) bool {
	_, ok := m.books[symbol]
	return ok
}

// FindBook returns the book for symbol, nil if undefined.
func (m *Market) FindBook(symbol string) *engine.OrderBook {
	return m.books[symbol]
}

// Symbols returns all defined symbols, sorted.
func (m *Market) Symbols() []string {
	out := make([]string, 0, len(m.books))
	for sym := range m.books {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// FindOrder returns the order for id. Completed and cancelled orders are
// retained and remain queryable.
func (m *Market) FindOrder(orderID string) (*Order, bool) {
	o, ok := m.orders[orderID]
	return o, ok
}

// OrderSubmit records the order and forwards it to the book. Duplicate
// order ids are rejected rather than silently overwritten.
func (m *Market) OrderSubmit(book *engine.OrderBook, order *Order, orderID string, conditions engine.Conditions) error {
	if _, dup := m.orders[orderID]; dup {
		return ErrDuplicateOrder
	}
	order.onSubmitted()
	m.log.Infow("order_submitted",
		"id", orderID,
		"symbol", order.Symbol(),
		"side", sideName(order),
		"qty", order.OrderQty(),
		"price", order.Price(),
		"aon", order.AllOrNone(),
		"ioc", order.ImmediateOrCancel())

	m.orders[orderID] = order
	book.Add(order, conditions)
	return nil
}

// OrderCancel requests cancellation of an open order. The return value
// only reports whether the request was accepted for processing; the cancel
// confirmation or rejection arrives via the listener.
func (m *Market) OrderCancel(orderID string) bool {
	order, book, ok := m.findExistingOrder(orderID)
	if !ok {
		return false
	}
	m.log.Infow("cancel_requested", "id", orderID, "symbol", order.Symbol())
	book.Cancel(order)
	return true
}

// OrderModify requests a quantity delta and/or price change. It fails fast
// without contacting the engine when validation fails or the order cannot
// be found; whether the replace was applied arrives via the listener.
func (m *Market) OrderModify(orderID string, qtyDelta, price Change) bool {
	order, book, ok := m.findExistingOrder(orderID)
	if !ok {
		return false
	}

	if price.Set() {
		if price.Value() <= 0 || price.Value() == engine.InvalidPrice {
			return false
		}
	}
	if qtyDelta.Set() && qtyDelta.Value() == engine.InvalidSize {
		return false
	}

	enginePrice := engine.PriceUnchanged
	if price.Set() {
		enginePrice = price.Value()
	}
	engineDelta := engine.SizeUnchanged
	if qtyDelta.Set() {
		engineDelta = qtyDelta.Value()
	}

	book.Replace(order, engineDelta, enginePrice)
	m.log.Infow("modify_requested",
		"id", orderID,
		"qty_delta_set", qtyDelta.Set(),
		"qty_delta", engineDelta,
		"price_set", price.Set(),
		"price", enginePrice)
	return true
}

func (m *Market) findExistingOrder(orderID string) (*Order, *engine.OrderBook, bool) {
	order, ok := m.orders[orderID]
	if !ok {
		m.log.Infow("order_not_found", "id", orderID)
		return nil, nil, false
	}
	book := m.FindBook(order.Symbol())
	if book == nil {
		m.log.Infow("book_not_found", "symbol", order.Symbol())
		return nil, nil, false
	}
	return order, book, true
}

// ------------------------------------------------------------------
// Engine listener callbacks. Each performs exactly one state transition
// on the affected order(s) and one log line.

func (m *Market) OnAccept(o engine.Order) {
	ord := m.owned(o)
	ord.onAccepted()
	m.log.Infow("order_accepted", "id", ord.ID(), "symbol", ord.Symbol())
}

func (m *Market) OnReject(o engine.Order, reason string) {
	ord := m.owned(o)
	ord.onRejected(reason)
	m.log.Infow("order_rejected", "id", ord.ID(), "reason", reason)
}

func (m *Market) OnFill(o engine.Order, matched engine.Order, qty, cost int64) {
	taker, maker := m.owned(o), m.owned(matched)
	taker.onFilled(qty, cost)
	maker.onFilled(qty, cost)
	m.log.Infow("order_filled",
		"id", taker.ID(),
		"matched_id", maker.ID(),
		"side", sideName(taker),
		"qty", qty,
		"cost", cost,
		"open_qty", taker.OpenQty(),
		"matched_open_qty", maker.OpenQty())
}

func (m *Market) OnCancel(o engine.Order) {
	ord := m.owned(o)
	ord.onCancelled()
	m.log.Infow("order_cancelled", "id", ord.ID())
}

func (m *Market) OnCancelReject(o engine.Order, reason string) {
	ord := m.owned(o)
	ord.onCancelRejected(reason)
	m.log.Infow("cancel_rejected", "id", ord.ID(), "reason", reason)
}

func (m *Market) OnReplace(o engine.Order, sizeDelta, newPrice int64) {
	ord := m.owned(o)
	ord.onReplaced(sizeDelta, newPrice)
	m.log.Infow("order_replaced",
		"id", ord.ID(),
		"qty_delta", sizeDelta,
		"price", newPrice,
		"open_qty", ord.OpenQty())
}

func (m *Market) OnReplaceReject(o engine.Order, reason string) {
	ord := m.owned(o)
	ord.onReplaceRejected(reason)
	m.log.Infow("replace_rejected", "id", ord.ID(), "reason", reason)
}

func (m *Market) OnTrade(b *engine.OrderBook, qty, cost int64) {
	m.log.Infow("trade", "symbol", b.Symbol(), "qty", qty, "cost", cost)
	if m.OnTradePublish != nil {
		m.OnTradePublish(b.Symbol(), qty, cost)
	}
}

func (m *Market) OnOrderBookChange(b *engine.OrderBook) {
	m.log.Infow("book_change", "symbol", b.Symbol())
}

func (m *Market) OnBboChange(b *engine.OrderBook, depth *engine.BookDepth) {
	m.log.Infow("bbo_change",
		"symbol", b.Symbol(),
		"changed", depth.Changed(),
		"change_id", depth.LastChange(),
		"published", depth.LastPublishedChange())
}

// OnDepthChange walks each side best-first and emits levels with non-zero
// quantity changed since the published watermark, then signals the
// snapshot that the diff has been published. Repeat callbacks without new
// upstream changes therefore emit nothing.
func (m *Market) OnDepthChange(b *engine.OrderBook, depth *engine.BookDepth) {
	published := depth.LastPublishedChange()
	update := DepthUpdate{Symbol: b.Symbol(), LastChange: depth.LastChange()}
	update.Bids = diffLevels(depth.Bids(), published)
	update.Asks = diffLevels(depth.Asks(), published)

	m.log.Infow("depth_change",
		"symbol", b.Symbol(),
		"changed", depth.Changed(),
		"change_id", depth.LastChange(),
		"published", published,
		"bid_levels", len(update.Bids),
		"ask_levels", len(update.Asks))

	if m.OnDepthPublish != nil && (len(update.Bids) > 0 || len(update.Asks) > 0) {
		m.OnDepthPublish(update)
	}
	depth.Publish()
}

func diffLevels(levels []engine.DepthLevel, published engine.ChangeID) []DepthEntry {
	var out []DepthEntry
	for _, lv := range levels {
		if lv.AggregateQty == 0 || lv.LastChange <= published {
			continue
		}
		out = append(out, DepthEntry{
			Price:      lv.Price,
			Qty:        lv.AggregateQty,
			OrderCount: lv.OrderCount,
			ChangeID:   lv.LastChange,
			Excess:     lv.Excess,
		})
	}
	return out
}

// owned converts the engine's order view back to the market-owned order.
// Every order the engine reports was admitted through OrderSubmit; any
// other type means the collaborator state is corrupt.
func (m *Market) owned(o engine.Order) *Order {
	ord, ok := o.(*Order)
	if !ok {
		panic("engine reported an order not owned by this market")
	}
	return ord
}

func sideName(o *Order) string {
	if o.IsBuy() {
		return "buy"
	}
	return "sell"
}
