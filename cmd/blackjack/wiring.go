package main

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/lox/blackjack/internal/config"
	"github.com/lox/blackjack/internal/history"
	"github.com/lox/blackjack/internal/ledger"
	"github.com/lox/blackjack/internal/session"
)

// openLedger builds the ledger selected by cfg. The returned func releases
// it.
func openLedger(cfg config.LedgerSettings, logger *log.Logger) (ledger.Ledger, func(), error) {
	switch cfg.Kind {
	case config.LedgerMemory:
		return ledger.NewMemory(cfg.OpeningBalance), func() {}, nil

	case config.LedgerFile:
		f, err := ledger.OpenFile(cfg.Path, cfg.OpeningBalance)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using file ledger", "path", f.Path())
		return f, func() {}, nil

	case config.LedgerNATS:
		nc, err := ledger.Connect(cfg.NATSURL, "blackjack-server")
		if err != nil {
			return nil, nil, fmt.Errorf("connect to nats: %w", err)
		}
		logger.Info("Using NATS ledger", "url", nc.ConnectedUrl(), "prefix", cfg.SubjectPrefix)
		return ledger.NewClient(nc, cfg.SubjectPrefix, cfg.Timeout), func() { _ = nc.Drain() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown ledger kind %q", cfg.Kind)
	}
}

// newService wires the session service for cfg. The returned func flushes
// the history archive.
func newService(cfg *config.Config, l ledger.Ledger, logger *log.Logger) (*session.Service, func(), error) {
	opts := []session.Option{session.WithLogger(logger)}
	closer := func() {}

	if cfg.History.Enabled {
		rec, err := history.NewRecorder(history.Config{
			Dir:           cfg.History.Dir,
			FlushRecords:  cfg.History.FlushRecords,
			FlushInterval: cfg.History.FlushInterval,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Archiving settled rounds", "path", rec.Path())
		opts = append(opts, session.WithRecorder(rec))
		closer = func() {
			if err := rec.Close(); err != nil {
				logger.Error("Failed to flush history", "error", err)
			}
		}
	}

	svc, err := session.NewService(session.Config{
		Rules:         cfg.Rules,
		TTL:           cfg.Session.TTL,
		Retention:     cfg.Session.Retention,
		SweepInterval: cfg.Session.SweepInterval,
		Seed:          cfg.Session.Seed,
	}, l, opts...)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return svc, closer, nil
}
