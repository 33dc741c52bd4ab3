package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/orderentry/obgate/params"
	"github.com/orderentry/obgate/pkg/gateway"
	"github.com/orderentry/obgate/pkg/market"
	"github.com/orderentry/obgate/pkg/storage"
	"github.com/orderentry/obgate/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// Bulk-loaded credentials are read once here, outside the request
	// path. The configured default pair remains as fallback.
	creds := &gateway.Credentials{
		Users:         make(map[string]string),
		DefaultUser:   cfg.Auth.DefaultUser,
		DefaultSecret: cfg.Auth.DefaultSecret,
	}
	if cfg.Auth.CredDB != "" {
		store, err := storage.Open(cfg.Auth.CredDB)
		if err != nil {
			sugar.Fatalw("cred_store_open_failed", "path", cfg.Auth.CredDB, "err", err)
		}
		users, err := store.AllAuthSecrets()
		if err != nil {
			sugar.Fatalw("cred_store_load_failed", "err", err)
		}
		store.Close()
		creds.Users = users
		sugar.Infow("credentials_loaded", "users", len(users))
	}

	mkt := market.NewMarket(sugar)
	loop := market.NewLoop()
	defer loop.Close()

	srv := gateway.NewServer(mkt, loop, creds, sugar)

	// Republish market-depth diffs and trades to websocket subscribers.
	mkt.OnDepthPublish = srv.BroadcastDepth
	mkt.OnTradePublish = srv.BroadcastTrade

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(cfg.Server.BindAddr); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server_failed", "err", err)
		}
	}()
	sugar.Infow("obgate_started", "addr", cfg.Server.BindAddr)

	<-ctx.Done()
	sugar.Info("shutting down")
}
