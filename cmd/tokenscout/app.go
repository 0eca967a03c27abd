package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Fantasim/tokenscout/internal/chain"
	"github.com/Fantasim/tokenscout/internal/config"
	"github.com/Fantasim/tokenscout/internal/db"
	"github.com/Fantasim/tokenscout/internal/detect"
	"github.com/Fantasim/tokenscout/internal/logging"
	"github.com/Fantasim/tokenscout/internal/wallet"
)

// app holds everything a command needs: configuration, the store, chain
// access and the detection engine of the configured network.
type app struct {
	cfg      *config.Config
	database *db.DB
	network  *chain.Network
	engine   *detect.Engine

	logCloser io.Closer
}

// newApp loads configuration, sets up logging to console and opens every
// collaborator. The caller must Close the app.
func newApp(ctx context.Context, console io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logCloser, err := logging.Setup(logging.Options{
		Level:   cfg.LogLevel,
		Dir:     cfg.LogDir,
		Console: console,
		Network: cfg.Network,
		Version: version,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	a := &app{cfg: cfg, logCloser: logCloser}

	slog.Info("starting tokenscout",
		"dbPath", cfg.DBPath,
		"logLevel", cfg.LogLevel,
		"autoFetchDisabled", cfg.AutoFetchDisabled,
	)

	a.database, err = db.New(cfg.DBPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := a.database.RunMigrations(); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	partners, err := config.LoadPartnerLists(cfg.PartnersFile)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load partner lists: %w", err)
	}

	a.network, err = chain.Setup(ctx, cfg, a.database)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to setup chain access: %w", err)
	}

	deps := detect.Deps{
		Reader:       a.network.Pool,
		Lister:       a.network.Explorer,
		Reachability: a.network.Reachability,
		Standards:    a.database,
		Assets:       a.network.Assets,
		Runs:         a.database,
		Partners:     partnerAddresses(partners.ForNetwork(cfg.Network)),
	}
	stores := func(w, network string) detect.TokenStore {
		return a.database.TokenStore(w, network)
	}
	a.engine = detect.NewEngine(ctx, cfg.Network, stores, deps, detect.Options{
		AutoFetchDisabled: cfg.AutoFetchDisabled,
	})

	return a, nil
}

// resolveWallet returns flagWallet, or the address derived from the
// configured mnemonic when flagWallet is empty.
func (a *app) resolveWallet(flagWallet string, index uint32) (string, error) {
	if flagWallet != "" {
		return flagWallet, nil
	}
	if a.cfg.MnemonicFile == "" {
		return "", fmt.Errorf("%w: pass --wallet or set TOKENSCOUT_MNEMONIC_FILE", config.ErrNoWallet)
	}
	addr, err := wallet.AddressFromMnemonicFile(a.cfg.MnemonicFile, index)
	if err != nil {
		return "", err
	}
	slog.Info("wallet derived from mnemonic", "path", wallet.DerivationPath(index), "address", addr)
	return addr, nil
}

// Close releases every collaborator that was opened.
func (a *app) Close() {
	if a.network != nil {
		a.network.Close()
	}
	if a.database != nil {
		a.database.Close()
	}
	if a.logCloser != nil {
		a.logCloser.Close()
	}
}

func partnerAddresses(list []config.PartnerContract) []string {
	out := make([]string, 0, len(list))
	for _, p := range list {
		out = append(out, p.Contract)
	}
	return out
}
