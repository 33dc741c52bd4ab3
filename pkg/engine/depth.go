package engine

// DepthWindow is the number of price levels tracked per side.
const DepthWindow = 5

// ChangeID is a monotonically increasing sequence over depth changes
// within one book.
type ChangeID int64

// DepthLevel is one tracked price level of a depth snapshot.
type DepthLevel struct {
	Price        int64
	AggregateQty int64
	OrderCount   int
	LastChange   ChangeID
	// Excess marks the worst tracked level when liquidity exists beyond
	// the tracked window.
	Excess bool
}

// BookDepth maintains the top DepthWindow aggregated levels per side and a
// change sequence over them. The lastPublished watermark is advanced only
// by Publish, called by whoever reports the snapshot downstream; the book
// itself never moves it.
type BookDepth struct {
	bids [DepthWindow]DepthLevel
	asks [DepthWindow]DepthLevel

	lastChange    ChangeID
	lastPublished ChangeID
}

func newBookDepth() *BookDepth {
	return &BookDepth{}
}

// Bids returns the tracked bid levels, best first. Unused slots have zero
// aggregate quantity.
func (d *BookDepth) Bids() []DepthLevel { return d.bids[:] }

// Asks returns the tracked ask levels, best first.
func (d *BookDepth) Asks() []DepthLevel { return d.asks[:] }

func (d *BookDepth) LastChange() ChangeID          { return d.lastChange }
func (d *BookDepth) LastPublishedChange() ChangeID { return d.lastPublished }

// Changed reports whether any level changed since the last Publish.
func (d *BookDepth) Changed() bool { return d.lastChange > d.lastPublished }

// Publish advances the published watermark to the current change id.
// After Publish, a walk gated on LastPublishedChange emits nothing until
// the book mutates again.
func (d *BookDepth) Publish() { d.lastPublished = d.lastChange }

// refresh rebuilds both sides from the book and stamps changed levels with
// fresh change ids. Returns whether the top level changed (BBO) and
// whether anything changed at all.
func (b *OrderBook) depthRefreshSide(side []*level, slots *[DepthWindow]DepthLevel, d *BookDepth) (bboChanged, anyChanged bool) {
	var next [DepthWindow]DepthLevel
	for i, lv := range side {
		if i >= DepthWindow {
			// Liquidity beyond the window marks the worst tracked level.
			next[DepthWindow-1].Excess = true
			break
		}
		var qty int64
		for _, t := range lv.queue {
			qty += t.openQty
		}
		next[i] = DepthLevel{Price: lv.price, AggregateQty: qty, OrderCount: len(lv.queue)}
	}

	for i := range next {
		prev := slots[i]
		if next[i].Price == prev.Price && next[i].AggregateQty == prev.AggregateQty &&
			next[i].OrderCount == prev.OrderCount && next[i].Excess == prev.Excess {
			next[i].LastChange = prev.LastChange
			continue
		}
		d.lastChange++
		next[i].LastChange = d.lastChange
		anyChanged = true
		if i == 0 {
			bboChanged = true
		}
	}
	*slots = next
	return bboChanged, anyChanged
}

func (d *BookDepth) refresh(b *OrderBook) (bboChanged, anyChanged bool) {
	bb, ba := b.depthRefreshSide(b.bids, &d.bids, d)
	ab, aa := b.depthRefreshSide(b.asks, &d.asks, d)
	return bb || ab, ba || aa
}
