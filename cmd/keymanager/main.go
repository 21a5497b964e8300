package main

import (
	"encoding/hex"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/talhajamadar1013-star/Qmail/internal/anchor"
	"github.com/talhajamadar1013-star/Qmail/internal/api"
	"github.com/talhajamadar1013-star/Qmail/internal/config"
	"github.com/talhajamadar1013-star/Qmail/internal/db"
	"github.com/talhajamadar1013-star/Qmail/internal/keystore"
	"github.com/talhajamadar1013-star/Qmail/internal/keywrap"
	"github.com/talhajamadar1013-star/Qmail/internal/quantum"
	"github.com/talhajamadar1013-star/Qmail/internal/services"
	"github.com/talhajamadar1013-star/Qmail/pkg/logger"
	"github.com/talhajamadar1013-star/Qmail/pkg/metrics"
)

func main() {
	cfg := config.Load()

	zapLogger, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	zap.ReplaceGlobals(zapLogger)

	config.LogConfig(cfg, zapLogger)

	database, err := db.Initialize(cfg)
	if err != nil {
		zapLogger.Fatal("Failed to initialize database", zap.Error(err))
	}

	cipher, err := keywrap.New(cfg.Security.KeySecret)
	if err != nil {
		zapLogger.Fatal("Failed to initialize key sealing", zap.Error(err))
	}

	store := keystore.New(database, cipher, zapLogger)
	generator := quantum.NewGenerator(cfg.Keys.Protocol, zapLogger)
	submitter := buildSubmitter(cfg, zapLogger)
	metricsCollector := metrics.NewMetricsCollector()

	keyService := services.NewKeyService(store, generator, submitter, cfg.Keys, cfg.Anchor.Network, zapLogger, metricsCollector)
	shareService := services.NewShareService(store, zapLogger, metricsCollector)
	metadataService := services.NewMetadataService(database, zapLogger, metricsCollector)

	router := api.NewRouter(cfg, zapLogger, metricsCollector, keyService, shareService, metadataService)
	router.SetupRoutes()

	go func() {
		if err := router.Run(":" + cfg.Server.Port); err != nil {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()
	zapLogger.Info("Server started", zap.String("port", cfg.Server.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	keyService.Close()
	if sqlDB, err := database.DB(); err == nil {
		sqlDB.Close()
	}
	zapLogger.Info("Server gracefully stopped")
}

// buildSubmitter wires the ledger anchoring pipeline. It returns nil, which
// disables anchoring, when no gateway endpoint is configured.
func buildSubmitter(cfg *config.Configuration, zapLogger *zap.Logger) *anchor.Submitter {
	if cfg.Anchor.Endpoint == "" {
		zapLogger.Info("Ledger anchoring disabled, no gateway endpoint configured")
		return nil
	}

	var seed []byte
	if cfg.Anchor.SigningSeed != "" {
		decoded, err := hex.DecodeString(cfg.Anchor.SigningSeed)
		if err != nil {
			zapLogger.Fatal("Failed to decode anchor signing seed", zap.Error(err))
		}
		seed = decoded
	} else {
		zapLogger.Warn("Anchor signing seed not configured, using an ephemeral keypair")
	}

	signer, err := anchor.NewSigner(cfg.Anchor.SigningAlg, seed)
	if err != nil {
		zapLogger.Fatal("Failed to initialize anchor signer", zap.Error(err))
	}

	return anchor.NewSubmitter(cfg.Anchor.Endpoint, cfg.Anchor.Network, signer, zapLogger)
}
