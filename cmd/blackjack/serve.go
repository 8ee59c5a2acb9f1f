package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/lox/blackjack/internal/config"
	"github.com/lox/blackjack/internal/server"
)

// ServeCmd runs the HTTP and WebSocket server
type ServeCmd struct {
	Config string `short:"c" default:"blackjack.hcl" type:"path" help:"HCL config file (missing file uses defaults)"`
	Addr   string `help:"Listen address, overrides the config file"`
	Ledger string `help:"Ledger kind (memory, file, nats), overrides the config file"`
	Seed   *int64 `help:"Deterministic shoe seed, overrides the config file"`
	Debug  bool   `help:"Enable debug logging"`
}

func (c *ServeCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	if c.Ledger != "" {
		cfg.Ledger.Kind = c.Ledger
	}
	if c.Seed != nil {
		cfg.Session.Seed = *c.Seed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := setupLogger(os.Stderr, cfg.Server.LogLevel, c.Debug)
	if err != nil {
		return err
	}

	l, closeLedger, err := openLedger(cfg.Ledger, logger)
	if err != nil {
		return err
	}
	defer closeLedger()

	svc, closeService, err := newService(cfg, l, logger)
	if err != nil {
		return err
	}
	defer closeService()

	addr := cfg.Address()
	if c.Addr != "" {
		addr = c.Addr
	}

	logger.Info("Starting blackjack server",
		"address", addr,
		"decks", cfg.Rules.Decks,
		"payout", cfg.Rules.BlackjackPayout,
		"h17", cfg.Rules.DealerHitsSoft17,
		"max_splits", cfg.Rules.MaxSplits,
		"das", cfg.Rules.DoubleAfterSplit,
		"surrender", cfg.Rules.Surrender,
		"ledger", cfg.Ledger.Kind,
		"ttl", cfg.Session.TTL)

	ctx := setupSignalHandler(logger)
	g, ctx := errgroup.WithContext(ctx)

	sweeper := svc.Start(ctx)
	g.Go(func() error {
		if err := sweeper.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return server.NewServer(addr, svc, logger).Start(ctx)
	})
	return g.Wait()
}
