package gateway

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/orderentry/obgate/pkg/market"
)

const serverVersion = "obgate/1.0.0"

// Server is the HTTP order-entry surface. Handlers run market operations
// through the single-writer loop; the pipeline middleware in pipeline.go
// owns per-request state, body hashing and the auth gate.
type Server struct {
	mkt    *market.Market
	loop   *market.Loop
	creds  CredentialResolver
	log    *zap.SugaredLogger
	router *mux.Router
	hub    *Hub
}

// NewServer wires the route table. The caller wires market publish hooks
// to BroadcastDepth/BroadcastTrade.
func NewServer(mkt *market.Market, loop *market.Loop, creds CredentialResolver, log *zap.SugaredLogger) *Server {
	s := &Server{
		mkt:    mkt,
		loop:   loop,
		creds:  creds,
		log:    log,
		router: mux.NewRouter(),
		hub:    NewHub(log),
	}
	s.setupRoutes()
	return s
}

// Route table. authRequired routes pass the signature gate of pipeline.go;
// wantsBody routes stream and hash their body.
func (s *Server) setupRoutes() {
	entries := []*apiEntry{
		{method: "GET", path: "/info", handler: (*Server).handleInfo},
		{method: "POST", path: "/marketAdd", authRequired: true, wantsBody: true, handler: (*Server).handleMarketAdd},
		{method: "GET", path: "/marketList", handler: (*Server).handleMarketList},
		{method: "GET", path: "/book/{symbol}", authRequired: true, wantsBody: true, handler: (*Server).handleBookDepth},
		{method: "POST", path: "/orderAdd", authRequired: true, wantsBody: true, handler: (*Server).handleOrderAdd},
		{method: "POST", path: "/orderCancel", authRequired: true, wantsBody: true, handler: (*Server).handleOrderCancel},
		{method: "POST", path: "/orderModify", authRequired: true, wantsBody: true, handler: (*Server).handleOrderModify},
		{method: "GET", path: "/order/{oid}", authRequired: true, wantsBody: true, handler: (*Server).handleOrderInfo},
	}
	for _, e := range entries {
		s.router.HandleFunc(e.path, s.pipeline(e)).Methods(e.method, "OPTIONS")
	}

	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Handler returns the full handler stack (CORS outermost) for serving or
// for tests.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "ETag", "X-Unixtime"},
	})
	return c.Handler(s.router)
}

// Start runs the websocket hub and serves until the listener fails.
func (s *Server) Start(addr string) error {
	go s.hub.Run()
	s.log.Infow("server_starting", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// BroadcastDepth republishes an incremental depth diff to websocket
// subscribers of the symbol's depth channel.
func (s *Server) BroadcastDepth(u market.DepthUpdate) {
	s.hub.BroadcastToChannel("depth:"+u.Symbol, DepthMessage{
		Type:   "depth",
		Update: u,
	})
}

// BroadcastTrade republishes a trade to subscribers of the symbol's trade
// channel.
func (s *Server) BroadcastTrade(symbol string, qty, cost int64) {
	s.hub.BroadcastToChannel("trades:"+symbol, TradeMessage{
		Type:   "trade",
		Symbol: symbol,
		Qty:    qty,
		Cost:   cost,
	})
}
