package engine

// tracker is the book's working record for one admitted order. Open
// quantity is tracked here; the owning layer mirrors it through listener
// callbacks.
type tracker struct {
	order   Order
	price   int64 // current working price (replace may move it)
	openQty int64
	aon     bool
	ioc     bool
	stopped bool // held as an untriggered stop order
}

// level is one resting price with its FIFO queue.
type level struct {
	price int64
	queue []*tracker
}

// OrderBook is a price-time-priority matching book for one symbol. It is
// not safe for concurrent use; callers serialize Add/Cancel/Replace on a
// single goroutine and listener callbacks fire synchronously on it.
type OrderBook struct {
	symbol string

	bids []*level // sorted high to low
	asks []*level // sorted low to high

	trackers map[string]*tracker
	stops    []*tracker

	lastTradePrice int64

	depth *BookDepth // nil unless depth-tracked

	orderListener OrderListener
	tradeListener TradeListener
	bookListener  BookListener
	bboListener   BboListener
	depthListener DepthListener
}

// NewOrderBook creates a plain book for symbol.
func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		symbol:   symbol,
		trackers: make(map[string]*tracker),
	}
}

// NewDepthOrderBook creates a book that additionally maintains an
// incremental depth snapshot of the top DepthWindow levels per side.
func NewDepthOrderBook(symbol string) *OrderBook {
	b := NewOrderBook(symbol)
	b.depth = newBookDepth()
	return b
}

func (b *OrderBook) Symbol() string    { return b.symbol }
func (b *OrderBook) Depth() *BookDepth { return b.depth }

// LastTradePrice returns the price of the most recent fill, 0 if none.
func (b *OrderBook) LastTradePrice() int64 { return b.lastTradePrice }

func (b *OrderBook) SetOrderListener(l OrderListener) { b.orderListener = l }
func (b *OrderBook) SetTradeListener(l TradeListener) { b.tradeListener = l }
func (b *OrderBook) SetBookListener(l BookListener)   { b.bookListener = l }
func (b *OrderBook) SetBboListener(l BboListener)     { b.bboListener = l }
func (b *OrderBook) SetDepthListener(l DepthListener) { b.depthListener = l }

// Add admits an order to the book. The order is accepted or rejected via
// the order listener; fills, trades and book changes follow synchronously.
func (b *OrderBook) Add(o Order, conditions Conditions) {
	if o.OrderQty() <= 0 {
		b.reject(o, "order quantity must be positive")
		return
	}
	if o.Price() < 0 {
		b.reject(o, "limit price must not be negative")
		return
	}
	if _, dup := b.trackers[o.ID()]; dup {
		b.reject(o, "duplicate order id")
		return
	}

	t := &tracker{
		order:   o,
		price:   o.Price(),
		openQty: o.OrderQty(),
		aon:     conditions.AllOrNone(),
		ioc:     conditions.ImmediateOrCancel(),
	}
	b.trackers[o.ID()] = t

	if b.orderListener != nil {
		b.orderListener.OnAccept(o)
	}

	// Untriggered stop orders wait off-book until the stop price trades.
	if o.StopPrice() > 0 && !b.stopTriggered(t) {
		t.stopped = true
		b.stops = append(b.stops, t)
		return
	}

	changed := b.work(t)
	b.releaseStops(&changed)
	b.afterMutation(changed)
}

// Cancel removes an order from the book. Unknown ids produce a
// cancel-reject callback.
func (b *OrderBook) Cancel(o Order) {
	t, ok := b.trackers[o.ID()]
	if !ok {
		if b.orderListener != nil {
			b.orderListener.OnCancelReject(o, "order not found")
		}
		return
	}

	wasResting := !t.stopped
	b.remove(t)
	if b.orderListener != nil {
		b.orderListener.OnCancel(t.order)
	}
	b.afterMutation(wasResting)
}

// Replace applies a quantity delta and/or a new limit price to an open
// order. sizeDelta of SizeUnchanged (0) leaves quantity alone; price of
// PriceUnchanged leaves the price alone. A delta that drives open quantity
// to zero or below cancels the order instead.
func (b *OrderBook) Replace(o Order, sizeDelta int64, price int64) {
	t, ok := b.trackers[o.ID()]
	if !ok {
		if b.orderListener != nil {
			b.orderListener.OnReplaceReject(o, "order not found")
		}
		return
	}

	newOpen := t.openQty + sizeDelta
	if newOpen <= 0 {
		wasResting := !t.stopped
		b.remove(t)
		if b.orderListener != nil {
			b.orderListener.OnCancel(t.order)
		}
		b.afterMutation(wasResting)
		return
	}

	// Pull the order out, mutate, then re-work it as a fresh arrival so a
	// price move can trade immediately.
	stopped := t.stopped
	b.remove(t)
	t.openQty = newOpen
	if price != PriceUnchanged {
		t.price = price
	}
	if b.orderListener != nil {
		b.orderListener.OnReplace(t.order, sizeDelta, price)
	}

	b.trackers[t.order.ID()] = t
	if stopped && !b.stopTriggered(t) {
		t.stopped = true
		b.stops = append(b.stops, t)
		b.afterMutation(false)
		return
	}
	t.stopped = false

	changed := b.work(t)
	b.releaseStops(&changed)
	b.afterMutation(true)
}

// Bids returns resting bids in priority order (best price first, FIFO
// within a price). Read-only; does not touch depth tracking.
func (b *OrderBook) Bids() []Resting { return restingOf(b.bids) }

// Asks returns resting asks in priority order.
func (b *OrderBook) Asks() []Resting { return restingOf(b.asks) }

func restingOf(side []*level) []Resting {
	var out []Resting
	for _, lv := range side {
		for _, t := range lv.queue {
			out = append(out, Resting{OrderID: t.order.ID(), Price: lv.price, OpenQty: t.openQty})
		}
	}
	return out
}

func (b *OrderBook) reject(o Order, reason string) {
	if b.orderListener != nil {
		b.orderListener.OnReject(o, reason)
	}
}

// work matches t against the opposite side and rests any remainder that is
// allowed to rest. Returns true if the resting set changed.
func (b *OrderBook) work(t *tracker) bool {
	isMarket := t.price == MarketPrice

	if t.aon && b.matchableQty(t) < t.openQty {
		// Cannot fill in full now. IOC and market AON orders die; a
		// resting-capable AON limit order waits on the book.
		if t.ioc || isMarket {
			b.removeTracked(t)
			if b.orderListener != nil {
				b.orderListener.OnCancel(t.order)
			}
			return false
		}
		b.rest(t)
		return true
	}

	filledQty, filledCost := b.consume(t)
	if filledQty > 0 && b.tradeListener != nil {
		b.tradeListener.OnTrade(b, filledQty, filledCost)
	}

	changed := filledQty > 0
	if t.openQty > 0 {
		if t.ioc || isMarket {
			b.removeTracked(t)
			if b.orderListener != nil {
				b.orderListener.OnCancel(t.order)
			}
		} else {
			b.rest(t)
			changed = true
		}
	} else {
		delete(b.trackers, t.order.ID())
	}
	return changed
}

// matchableQty simulates a matching pass and reports how much of t could
// fill right now. Resting all-or-none orders count only when the simulated
// remainder covers them in full.
func (b *OrderBook) matchableQty(t *tracker) int64 {
	rem := t.openQty
	var avail int64
	opposite := b.opposite(t)
	for _, lv := range opposite {
		if rem == 0 {
			break
		}
		if !priceAcceptable(t, lv.price) {
			break
		}
		for _, maker := range lv.queue {
			if rem == 0 {
				break
			}
			take := min64(rem, maker.openQty)
			if maker.aon && take < maker.openQty {
				continue
			}
			avail += take
			rem -= take
		}
	}
	return avail
}

// consume fills t against the opposite side, firing OnFill per match. A
// level whose remaining makers are unbreakable all-or-none orders does not
// stop the walk; deeper acceptable levels may still trade.
func (b *OrderBook) consume(t *tracker) (filledQty, filledCost int64) {
	side := b.oppositeSide(t)
	li := 0
	for t.openQty > 0 && li < len(*side) {
		lv := (*side)[li]
		if !priceAcceptable(t, lv.price) {
			break
		}

		for i := 0; i < len(lv.queue) && t.openQty > 0; {
			maker := lv.queue[i]
			take := min64(t.openQty, maker.openQty)
			if maker.aon && take < maker.openQty {
				i++ // cannot break up an all-or-none resting order
				continue
			}

			cost := take * lv.price
			t.openQty -= take
			maker.openQty -= take
			filledQty += take
			filledCost += cost
			b.lastTradePrice = lv.price

			if b.orderListener != nil {
				b.orderListener.OnFill(t.order, maker.order, take, cost)
			}

			if maker.openQty == 0 {
				lv.queue = append(lv.queue[:i], lv.queue[i+1:]...)
				delete(b.trackers, maker.order.ID())
			} else {
				i++
			}
		}

		if len(lv.queue) == 0 {
			*side = append((*side)[:li], (*side)[li+1:]...)
		} else {
			li++
		}
	}
	return filledQty, filledCost
}

// rest inserts t into its side at price-time priority.
func (b *OrderBook) rest(t *tracker) {
	side := b.sideOf(t)
	better := func(a, p int64) bool { return a > p }
	if !t.order.IsBuy() {
		better = func(a, p int64) bool { return a < p }
	}

	for i, lv := range *side {
		if lv.price == t.price {
			lv.queue = append(lv.queue, t)
			return
		}
		if better(t.price, lv.price) {
			nl := &level{price: t.price, queue: []*tracker{t}}
			*side = append(*side, nil)
			copy((*side)[i+1:], (*side)[i:])
			(*side)[i] = nl
			return
		}
	}
	*side = append(*side, &level{price: t.price, queue: []*tracker{t}})
}

// remove deletes t from wherever it currently lives (book or stop list)
// and from the tracker map.
func (b *OrderBook) remove(t *tracker) {
	if t.stopped {
		for i, st := range b.stops {
			if st == t {
				b.stops = append(b.stops[:i], b.stops[i+1:]...)
				break
			}
		}
		t.stopped = false
	} else {
		side := b.sideOf(t)
		for li, lv := range *side {
			if lv.price != t.price {
				continue
			}
			for qi, q := range lv.queue {
				if q == t {
					lv.queue = append(lv.queue[:qi], lv.queue[qi+1:]...)
					break
				}
			}
			if len(lv.queue) == 0 {
				*side = append((*side)[:li], (*side)[li+1:]...)
			}
			break
		}
	}
	delete(b.trackers, t.order.ID())
}

func (b *OrderBook) removeTracked(t *tracker) {
	delete(b.trackers, t.order.ID())
}

// releaseStops activates stop orders whose trigger price has traded,
// repeating until a pass activates nothing (activations can cascade).
func (b *OrderBook) releaseStops(changed *bool) {
	for {
		var triggered []*tracker
		remaining := b.stops[:0]
		for _, t := range b.stops {
			if b.stopTriggered(t) {
				triggered = append(triggered, t)
			} else {
				remaining = append(remaining, t)
			}
		}
		b.stops = remaining
		if len(triggered) == 0 {
			return
		}
		for _, t := range triggered {
			t.stopped = false
			if b.work(t) {
				*changed = true
			}
		}
	}
}

func (b *OrderBook) stopTriggered(t *tracker) bool {
	if b.lastTradePrice == 0 {
		return false
	}
	if t.order.IsBuy() {
		return b.lastTradePrice >= t.order.StopPrice()
	}
	return b.lastTradePrice <= t.order.StopPrice()
}

// afterMutation fires book-change and depth callbacks once per completed
// top-level operation.
func (b *OrderBook) afterMutation(bookChanged bool) {
	if bookChanged && b.bookListener != nil {
		b.bookListener.OnOrderBookChange(b)
	}
	if b.depth == nil {
		return
	}
	bboChanged, anyChanged := b.depth.refresh(b)
	if bboChanged && b.bboListener != nil {
		b.bboListener.OnBboChange(b, b.depth)
	}
	if anyChanged && b.depthListener != nil {
		b.depthListener.OnDepthChange(b, b.depth)
	}
}

func (b *OrderBook) sideOf(t *tracker) *[]*level {
	if t.order.IsBuy() {
		return &b.bids
	}
	return &b.asks
}

func (b *OrderBook) opposite(t *tracker) []*level {
	if t.order.IsBuy() {
		return b.asks
	}
	return b.bids
}

func (b *OrderBook) oppositeSide(t *tracker) *[]*level {
	if t.order.IsBuy() {
		return &b.asks
	}
	return &b.bids
}

func priceAcceptable(t *tracker, makerPrice int64) bool {
	if t.price == MarketPrice {
		return true
	}
	if t.order.IsBuy() {
		return makerPrice <= t.price
	}
	return makerPrice >= t.price
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
