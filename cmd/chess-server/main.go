package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/stakemate/chess-server/internal/config"
	"github.com/stakemate/chess-server/internal/escrow"
	"github.com/stakemate/chess-server/internal/gateway"
	"github.com/stakemate/chess-server/internal/leaderboard"
	"github.com/stakemate/chess-server/internal/match"
	"github.com/stakemate/chess-server/internal/msgcat"
	"github.com/stakemate/chess-server/internal/obslog"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	catalog, err := msgcat.New(cfg.MessageDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	registry := match.NewRegistry()
	hub := gateway.NewHub()

	dispatcherOpts := []gateway.DispatcherOption{
		gateway.WithStakeBounds(cfg.MinStake, cfg.MaxStake),
	}
	serverOpts := []gateway.ServerOption{
		gateway.WithOriginPatterns(cfg.AllowedOrigins),
	}

	if cfg.EscrowRPCURL != "" {
		verifier, err := escrow.NewClient(cfg.EscrowRPCURL, cfg.EscrowContract)
		if err != nil {
			log.Fatalf("escrow client error: %v", err)
		}
		dispatcherOpts = append(dispatcherOpts, gateway.WithEscrow(verifier))
		obslog.L().Info("escrow_gate_enabled", zap.String("contract", cfg.EscrowContract))
	}

	var board *leaderboard.Board
	if cfg.RedisURL != "" {
		board, err = leaderboard.New(cfg.RedisURL)
		if err != nil {
			log.Fatalf("leaderboard init error: %v", err)
		}
		dispatcherOpts = append(dispatcherOpts, gateway.WithLeaderboard(board))
		serverOpts = append(serverOpts, gateway.WithBoard(board))
	}

	var repo *match.Repository
	if cfg.DatabaseURL != "" {
		repo, err = match.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("match archive init error: %v", err)
		}
		dispatcherOpts = append(dispatcherOpts, gateway.WithArchiver(repo))
	}

	dispatcher := gateway.NewDispatcher(registry, hub, catalog, dispatcherOpts...)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           gateway.NewServer(dispatcher, hub, serverOpts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		obslog.L().Info("server_listen", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("server_error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	obslog.L().Info("server_shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	_ = board.Close()
	_ = repo.Close()
}
