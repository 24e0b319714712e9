// Package main runs the multiplayer lobby server: session auth, chat
// channels, hosted game lobbies, and map distribution over a TCP frame
// protocol.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/lobby/internal/config"
	"github.com/cory-johannsen/lobby/internal/frontend/wire"
	"github.com/cory-johannsen/lobby/internal/lobby"
	"github.com/cory-johannsen/lobby/internal/observability"
	"github.com/cory-johannsen/lobby/internal/server"
	"github.com/cory-johannsen/lobby/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting lobby server",
		zap.String("addr", cfg.Server.Addr()),
	)

	versions, err := lobby.LoadAcceptedVersions(cfg.Server.AcceptedVersionsFile)
	if err != nil {
		logger.Fatal("loading accepted versions", zap.Error(err))
	}
	logger.Info("accepted versions loaded", zap.Int("count", versions.Count()))

	// Connect to PostgreSQL
	ctx := context.Background()
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.Name),
		zap.Duration("elapsed", time.Since(dbStart)),
	)

	// Build services
	accounts := postgres.NewAccountRepository(pool.DB())
	dispatcher := lobby.New(cfg.Lobby, cfg.Server.WelcomeMessage, accounts, versions, logger)
	acceptor := wire.NewAcceptor(cfg.Server, dispatcher, logger)
	sweeper := dispatcher.NewIdleSweeper()

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func() error {
			for {
				time.Sleep(30 * time.Second)
				if err := pool.Health(ctx, 5*time.Second); err != nil {
					logger.Warn("database health check failed", zap.Error(err))
				}
			}
		},
		StopFn: func() {
			pool.Close()
		},
	})

	lifecycle.Add("idle-sweeper", sweeper)

	lifecycle.Add("acceptor", &server.FuncService{
		StartFn: func() error {
			return acceptor.ListenAndServe()
		},
		StopFn: func() {
			acceptor.Stop()
		},
	})

	logger.Info("lobby server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.Duration("session_timeout", cfg.Lobby.SessionTimeout),
		zap.String("default_channel", cfg.Lobby.DefaultChannel),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
