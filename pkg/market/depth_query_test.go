package market

import "testing"

// Populate a book with orders at several prices, some sharing a level.
func queryFixture(t *testing.T) *Market {
	t.Helper()
	m := newTestMarket()
	m.AddBook("FOO", false)

	orders := []struct {
		id    string
		buy   bool
		qty   int64
		price int64
	}{
		{"b1", true, 10, 100},
		{"b2", true, 5, 100},
		{"b3", true, 7, 99},
		{"b4", true, 2, 98},
		{"s1", false, 4, 101},
		{"s2", false, 6, 101},
		{"s3", false, 9, 103},
	}
	for _, o := range orders {
		mustSubmit(t, m, NewOrder(o.id, o.buy, o.qty, "FOO", o.price, 0, false, false))
	}
	return m
}

func TestQueryBestLevel(t *testing.T) {
	m := queryFixture(t)

	bids, asks := BookDepthQuery(m.FindBook("FOO"), DepthBest)
	if len(bids) != 1 || bids[0] != (PriceQty{Price: 100, Qty: 15}) {
		t.Fatalf("bids = %v, want [{100 15}]", bids)
	}
	if len(asks) != 1 || asks[0] != (PriceQty{Price: 101, Qty: 10}) {
		t.Fatalf("asks = %v, want [{101 10}]", asks)
	}
}

func TestQueryFullLadder(t *testing.T) {
	m := queryFixture(t)

	for _, lvl := range []int{DepthAggregated, DepthFull} {
		bids, asks := BookDepthQuery(m.FindBook("FOO"), lvl)

		wantBids := []PriceQty{{100, 15}, {99, 7}, {98, 2}}
		wantAsks := []PriceQty{{101, 10}, {103, 9}}
		if len(bids) != len(wantBids) {
			t.Fatalf("level %d: bids = %v, want %v", lvl, bids, wantBids)
		}
		for i := range wantBids {
			if bids[i] != wantBids[i] {
				t.Fatalf("level %d: bid %d = %v, want %v", lvl, i, bids[i], wantBids[i])
			}
		}
		for i := range wantAsks {
			if asks[i] != wantAsks[i] {
				t.Fatalf("level %d: ask %d = %v, want %v", lvl, i, asks[i], wantAsks[i])
			}
		}
	}
}

// Aggregation conserves quantity: the ladder total equals the sum of the
// resting orders' open quantities.
func TestQueryConservesQuantity(t *testing.T) {
	m := queryFixture(t)

	bids, asks := BookDepthQuery(m.FindBook("FOO"), DepthFull)
	var total int64
	for _, l := range bids {
		total += l.Qty
	}
	for _, l := range asks {
		total += l.Qty
	}
	if total != 10+5+7+2+4+6+9 {
		t.Fatalf("ladder total = %d, want %d", total, 10+5+7+2+4+6+9)
	}
}

func TestQueryEmptyBook(t *testing.T) {
	m := newTestMarket()
	m.AddBook("EMPTY", false)

	bids, asks := BookDepthQuery(m.FindBook("EMPTY"), DepthBest)
	if bids == nil || asks == nil {
		t.Fatal("empty sides must be non-nil")
	}
	if len(bids) != 0 || len(asks) != 0 {
		t.Fatalf("bids=%v asks=%v, want empty", bids, asks)
	}
}
