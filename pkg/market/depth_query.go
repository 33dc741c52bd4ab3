package market

import "github.com/orderentry/obgate/pkg/engine"

// Depth query levels accepted by BookDepthQuery.
const (
	DepthBest       = 1 // best price per side only
	DepthAggregated = 2 // every aggregated price level
	DepthFull       = 3 // same aggregation, full ladder
)

// BookDepthQuery aggregates resting orders into per-price quantities, best
// price first (descending bids, ascending asks). Level 1 returns at most
// the single best level per side; levels 2 and 3 return the full ladder.
// The computation is read-only and does not touch the depth-change
// watermark. An empty side yields an empty (non-nil) sequence.
func BookDepthQuery(book *engine.OrderBook, depthLevel int) (bids, asks []PriceQty) {
	bids = aggregate(book.Bids())
	asks = aggregate(book.Asks())
	if depthLevel == DepthBest {
		bids = topOne(bids)
		asks = topOne(asks)
	}
	return bids, asks
}

// aggregate sums open quantity per price. Resting orders arrive in
// priority order, so prices come out best first without re-sorting.
func aggregate(resting []engine.Resting) []PriceQty {
	out := []PriceQty{}
	for _, r := range resting {
		if n := len(out); n > 0 && out[n-1].Price == r.Price {
			out[n-1].Qty += r.OpenQty
			continue
		}
		out = append(out, PriceQty{Price: r.Price, Qty: r.OpenQty})
	}
	return out
}

func topOne(levels []PriceQty) []PriceQty {
	if len(levels) > 1 {
		return levels[:1]
	}
	return levels
}
