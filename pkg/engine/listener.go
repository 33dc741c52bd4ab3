package engine

// Listener interfaces fired synchronously by the book on the goroutine that
// called Add/Cancel/Replace. A book has at most one listener per category,
// bound at creation. Implementations must not call back into the book.

// OrderListener receives per-order lifecycle events.
type OrderListener interface {
	OnAccept(o Order)
	OnReject(o Order, reason string)
	OnFill(o Order, matched Order, qty int64, cost int64)
	OnCancel(o Order)
	OnCancelReject(o Order, reason string)
	OnReplace(o Order, sizeDelta int64, newPrice int64)
	OnReplaceReject(o Order, reason string)
}

// TradeListener receives one event per matching pass that produced fills,
// carrying the total traded quantity and cost.
type TradeListener interface {
	OnTrade(b *OrderBook, qty int64, cost int64)
}

// BookListener is notified after any change to the set of resting orders.
type BookListener interface {
	OnOrderBookChange(b *OrderBook)
}

// BboListener is notified when the top-of-book price or quantity changes
// on a depth-tracked book.
type BboListener interface {
	OnBboChange(b *OrderBook, depth *BookDepth)
}

// DepthListener is notified when any tracked depth level changes on a
// depth-tracked book.
type DepthListener interface {
	OnDepthChange(b *OrderBook, depth *BookDepth)
}
