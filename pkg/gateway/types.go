package gateway

import "github.com/orderentry/obgate/pkg/market"

// Request payloads. Required fields are pointers so a missing field is
// distinguishable from a zero value; schema violations are Bad Request
// before any market state is touched.

type orderAddRequest struct {
	Symbol *string `json:"symbol"`
	Qty    *int64  `json:"qty"`
	Price  *int64  `json:"price"`
	IsBuy  *bool   `json:"is_buy"`
	AON    bool    `json:"aon"`
	IOC    bool    `json:"ioc"`
	Stop   int64   `json:"stop"`
}

type orderCancelRequest struct {
	OID *string `json:"oid"`
}

type orderModifyRequest struct {
	OID      *string `json:"oid"`
	Price    *int64  `json:"price"`
	QtyDelta *int64  `json:"qtyDelta"`
}

type marketAddRequest struct {
	Symbol   *string `json:"symbol"`
	BookType *string `json:"booktype"`
}

// Response payloads.

type orderAddResponse struct {
	OrderID string `json:"orderId"`
}

type orderInfoResponse struct {
	ID          string  `json:"id"`
	Side        string  `json:"side"`
	Qty         int64   `json:"qty"`
	Price       int64   `json:"price"`
	AON         bool    `json:"aon"`
	IOC         bool    `json:"ioc"`
	SubmittedAt float64 `json:"submitted_at"`
	Type        string  `json:"type"`
	StopPrice   int64   `json:"stop_price,omitempty"`
}

type bookDepthResponse struct {
	Bids []market.PriceQty `json:"bids"`
	Asks []market.PriceQty `json:"asks"`
}

type infoTime struct {
	Unixtime int64  `json:"unixtime"`
	ISO      string `json:"iso"`
}

type infoResponse struct {
	Name       string   `json:"name"`
	APIVersion int      `json:"apiversion"`
	Time       infoTime `json:"time"`
}

// Websocket feed messages.

type DepthMessage struct {
	Type   string             `json:"type"`
	Update market.DepthUpdate `json:"update"`
}

type TradeMessage struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
	Qty    int64  `json:"qty"`
	Cost   int64  `json:"cost"`
}

// wsSubscribeRequest is sent by clients to manage channel subscriptions,
// e.g. {"op":"subscribe","channels":["depth:FOO","trades:FOO"]}.
type wsSubscribeRequest struct {
	Op       string   `json:"op"`
	Channels []string `json:"channels"`
}
