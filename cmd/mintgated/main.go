package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"mintgate/config"
	"mintgate/integrations/local"
	"mintgate/observability/logging"
	"mintgate/rpc"
	"mintgate/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the daemon configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		println("failed to load config:", err.Error())
		os.Exit(1)
	}
	log := logging.Setup("mintgated", cfg.Env)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	platform, _ := config.Address(cfg.PlatformAddress)
	relay, _ := config.Address(cfg.RelayAddress)
	signer, _ := config.Address(cfg.AffiliateSigner)
	vault, _ := config.Address(cfg.VaultAddress)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Error("failed to create data dir", "error", err)
		os.Exit(1)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "mintgate"))
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	server := rpc.NewServer(rpc.ServerOptions{
		DB:              db,
		Log:             log,
		AuthToken:       cfg.AuthToken,
		Platform:        platform,
		Relay:           relay,
		AffiliateSigner: signer,
		Vault:           vault,
		Tokens:          local.NewTokenRegistry(),
		Assets:          local.NewAssetLedger(),
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("rpc listening", "address", cfg.RPCAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("rpc server stopped", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}
