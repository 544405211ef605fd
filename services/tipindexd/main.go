package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tipvault/observability/logging"
	sdk "tipvault/sdk/tipvault"
)

func main() {
	var cfgPath string
	var exportPath string
	flag.StringVar(&cfgPath, "config", "", "path to indexer configuration (YAML)")
	flag.StringVar(&exportPath, "export", "", "write the tip index to a Parquet file at this path and exit")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("TIPVAULT_ENV"))
	logger := logging.Setup("tipindexd", env)
	fatal := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		fatal("load config", "error", err)
	}

	store, err := NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		fatal("open index database", "path", cfg.DatabasePath, "error", err)
	}
	defer store.Close()

	if strings.TrimSpace(exportPath) != "" {
		count, err := ExportTips(context.Background(), store, exportPath)
		if err != nil {
			fatal("export tips", "error", err)
		}
		logger.Info("tip index exported", "path", exportPath, "rows", count)
		return
	}

	node, err := sdk.New(cfg.Node.RPCURL,
		sdk.WithAuthToken(cfg.NodeAuthToken()),
		sdk.WithTimeout(cfg.Node.Timeout),
	)
	if err != nil {
		fatal("build node client", "error", err)
	}

	feedURL, err := cfg.EventFeedURL()
	if err != nil {
		fatal("resolve event feed", "error", err)
	}

	metrics := newIndexMetrics()
	consumer := NewConsumer(feedURL, store, metrics, logger)
	server := NewServer(store, node, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go consumer.Run(ctx)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      server.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	go func() {
		logger.Info("tipindexd listening", "address", cfg.ListenAddress, "node", cfg.Node.RPCURL, "feed", feedURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("serve failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
