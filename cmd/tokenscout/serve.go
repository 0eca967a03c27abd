package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Fantasim/tokenscout/internal/api"
	"github.com/Fantasim/tokenscout/internal/chain"
	"github.com/Fantasim/tokenscout/internal/config"
)

var serveWallet string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API on 127.0.0.1.

With --wallet (or a configured mnemonic file) detection starts for that
wallet as soon as the server is up. Otherwise detection starts on the first
POST /api/detect.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(serveWallet)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveWallet, "wallet", "", "wallet to detect tokens for at startup")
}

func runServe(startWallet string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	go a.engine.Hub().Run(ctx)
	go a.network.Reachability.Run(ctx)
	go chain.RunStartupHealthChecks(ctx, a.network.Checks)

	if startWallet != "" || a.cfg.MnemonicFile != "" {
		w, err := a.resolveWallet(startWallet, a.cfg.WalletIndex)
		if err != nil {
			return err
		}
		if _, err := a.engine.StartAutoDetection(w); err != nil {
			return fmt.Errorf("start detection: %w", err)
		}
	}

	router := api.NewRouter(a.cfg, a.engine, a.database)

	addr := fmt.Sprintf("127.0.0.1:%d", a.cfg.Port)
	srv := &http.Server{
		Addr:           addr,
		Handler:        router,
		ReadTimeout:    config.ServerReadTimeout,
		IdleTimeout:    config.ServerIdleTimeout,
		MaxHeaderBytes: config.ServerMaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("initiating graceful shutdown", "timeout", config.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if s := a.engine.Current(); s != nil {
		s.Close()
		s.Wait()
	}
	slog.Info("server stopped gracefully")
	return nil
}
