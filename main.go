package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"blamer/internal/api"
	"blamer/internal/blame/storage"
	"blamer/internal/config"
	"blamer/internal/logging"
	"blamer/internal/middleware"
	kv "blamer/internal/storage"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", config.Path(), "path to the JSON config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		log.Fatal("failed to load config:", err)
	}

	// Initialize logger
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer logger.Sync()

	// Initialize BadgerDB
	opts := badger.DefaultOptions(cfg.Database.Path).WithLogger(logging.NewBadgerLogger(logger.Logger))
	if cfg.Database.InMemory {
		opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	compressor, err := kv.NewCompressor(kv.CompressionOptions{
		MinSize: cfg.Compression.MinSize,
		Level:   cfg.Compression.Level,
	})
	if err != nil {
		logger.Fatal("failed to initialize compression", zap.Error(err))
	}

	blameStore, err := storage.NewStore(db, storage.Options{
		CacheSize:  cfg.Cache.Size,
		Compressor: compressor,
		Logger:     logger.Logger,
	})
	if err != nil {
		logger.Fatal("failed to initialize blame store", zap.Error(err))
	}

	// Set up router
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthCheck)
	api.NewBlameHandler(blameStore, logger).Register(mux)

	// Apply middleware
	handler := middleware.Chain(
		mux,
		middleware.Recover(logger),
		middleware.Logger(logger),
		middleware.RequestID,
	)

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("starting server",
		zap.String("address", addr),
		zap.String("environment", cfg.Environment),
	)

	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"healthy"}`))
}
