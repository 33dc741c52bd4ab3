package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/orderentry/obgate/pkg/engine"
	"github.com/orderentry/obgate/pkg/market"
	"github.com/orderentry/obgate/pkg/util"
)

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

// validSymbol accepts 1-16 uppercase A-Z characters.
func validSymbol(sym string) bool {
	if len(sym) == 0 || len(sym) > 16 {
		return false
	}
	for i := 0; i < len(sym); i++ {
		if sym[i] < 'A' || sym[i] > 'Z' {
			return false
		}
	}
	return true
}

func validBookType(bt string) bool {
	return bt == "simple" || bt == "depth"
}

// queryIntRange parses an integer query parameter with a default, failing
// on non-integer or out-of-range values.
func queryIntRange(r *http.Request, name string, lo, hi, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return 0, false
	}
	return v, true
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request, st *reqState) {
	now := time.Now()
	respondJSON(w, infoResponse{
		Name:       "obgate",
		APIVersion: 100,
		Time:       infoTime{Unixtime: now.Unix(), ISO: util.ISOTime(now)},
	})
}

func (s *Server) handleMarketAdd(w http.ResponseWriter, r *http.Request, st *reqState) {
	var req marketAddRequest
	if err := json.Unmarshal(st.body.Bytes(), &req); err != nil || req.Symbol == nil || req.BookType == nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	sym, bt := *req.Symbol, *req.BookType
	if !validSymbol(sym) || !validBookType(bt) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	dup := false
	s.loop.Do(func() {
		if s.mkt.SymbolIsDefined(sym) {
			dup = true
			return
		}
		s.mkt.AddBook(sym, bt == "depth")
	})
	if dup {
		w.WriteHeader(http.StatusNotAcceptable)
		return
	}
	respondJSON(w, true)
}

func (s *Server) handleMarketList(w http.ResponseWriter, r *http.Request, st *reqState) {
	var symbols []string
	s.loop.Do(func() {
		symbols = s.mkt.Symbols()
	})
	if symbols == nil {
		symbols = []string{}
	}
	respondJSON(w, symbols)
}

func (s *Server) handleOrderAdd(w http.ResponseWriter, r *http.Request, st *reqState) {
	var req orderAddRequest
	if err := json.Unmarshal(st.body.Bytes(), &req); err != nil ||
		req.Symbol == nil || req.Qty == nil || req.Price == nil || req.IsBuy == nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var conditions engine.Conditions
	if req.AON {
		conditions |= engine.ConditionAON
	}
	if req.IOC {
		conditions |= engine.ConditionIOC
	}

	orderID := uuid.NewString()
	order := market.NewOrder(orderID, *req.IsBuy, *req.Qty, *req.Symbol, *req.Price, req.Stop, req.AON, req.IOC)

	var (
		notFound  bool
		submitErr error
	)
	s.loop.Do(func() {
		book := s.mkt.FindBook(*req.Symbol)
		if book == nil {
			notFound = true
			return
		}
		submitErr = s.mkt.OrderSubmit(book, order, orderID, conditions)
	})
	if notFound {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if submitErr != nil {
		w.WriteHeader(http.StatusConflict)
		return
	}
	respondJSON(w, orderAddResponse{OrderID: orderID})
}

func (s *Server) handleOrderCancel(w http.ResponseWriter, r *http.Request, st *reqState) {
	var req orderCancelRequest
	if err := json.Unmarshal(st.body.Bytes(), &req); err != nil || req.OID == nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var rc bool
	s.loop.Do(func() {
		rc = s.mkt.OrderCancel(*req.OID)
	})
	respondJSON(w, rc)
}

func (s *Server) handleOrderModify(w http.ResponseWriter, r *http.Request, st *reqState) {
	var req orderModifyRequest
	if err := json.Unmarshal(st.body.Bytes(), &req); err != nil || req.OID == nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if req.Price == nil && req.QtyDelta == nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	price := market.Unchanged()
	if req.Price != nil {
		price = market.ChangeTo(*req.Price)
	}
	qtyDelta := market.Unchanged()
	if req.QtyDelta != nil {
		qtyDelta = market.ChangeTo(*req.QtyDelta)
	}

	var rc bool
	s.loop.Do(func() {
		rc = s.mkt.OrderModify(*req.OID, qtyDelta, price)
	})
	respondJSON(w, rc)
}

func (s *Server) handleOrderInfo(w http.ResponseWriter, r *http.Request, st *reqState) {
	oid := mux.Vars(r)["oid"]

	var (
		found bool
		resp  orderInfoResponse
	)
	s.loop.Do(func() {
		order, ok := s.mkt.FindOrder(oid)
		if !ok {
			return
		}
		found = true
		resp = orderInfoResponse{
			ID:          oid,
			Side:        "sell",
			Qty:         order.OrderQty(),
			Price:       order.Price(),
			AON:         order.AllOrNone(),
			IOC:         order.ImmediateOrCancel(),
			SubmittedAt: float64(order.SubmittedAt().UnixMicro()) / 1e6,
		}
		if order.IsBuy() {
			resp.Side = "buy"
		}
		if order.IsLimit() {
			resp.Type = "limit"
		} else {
			resp.Type = "market"
		}
		if order.StopPrice() > 0 {
			resp.Type += "-stop"
			resp.StopPrice = order.StopPrice()
		}
	})
	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	respondJSON(w, resp)
}

func (s *Server) handleBookDepth(w http.ResponseWriter, r *http.Request, st *reqState) {
	symbol := mux.Vars(r)["symbol"]

	depthLevel, ok := queryIntRange(r, "depth", 1, 3, 1)
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var (
		notFound bool
		resp     bookDepthResponse
	)
	s.loop.Do(func() {
		book := s.mkt.FindBook(symbol)
		if book == nil {
			notFound = true
			return
		}
		resp.Bids, resp.Asks = market.BookDepthQuery(book, depthLevel)
	})
	if notFound {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	respondJSON(w, resp)
}
