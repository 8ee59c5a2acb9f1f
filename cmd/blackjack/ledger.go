package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/lox/blackjack/internal/config"
	"github.com/lox/blackjack/internal/ledger"
)

// LedgerCmd serves a memory or file ledger to remote game servers over NATS
type LedgerCmd struct {
	Config  string           `short:"c" default:"blackjack.hcl" type:"path" help:"HCL config file (missing file uses defaults)"`
	Kind    string           `help:"Ledger to serve (memory, file), overrides the config file"`
	Path    string           `help:"File ledger path, overrides the config file"`
	NATSURL string           `name:"nats-url" help:"NATS server URL, overrides the config file"`
	Prefix  string           `help:"Subject prefix, overrides the config file"`
	Set     map[string]int64 `help:"Set account balances before serving (alice=500;bob=250)"`
	Debug   bool             `help:"Enable debug logging"`
}

type balanceSetter interface {
	Set(account string, balance int64) error
}

// memorySetter adapts Memory.Set to balanceSetter
type memorySetter struct{ *ledger.Memory }

func (m memorySetter) Set(account string, balance int64) error {
	m.Memory.Set(account, balance)
	return nil
}

func (c *LedgerCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	if c.Kind != "" {
		cfg.Ledger.Kind = c.Kind
	}
	if c.Path != "" {
		cfg.Ledger.Path = c.Path
	}
	if c.NATSURL != "" {
		cfg.Ledger.NATSURL = c.NATSURL
	}
	if c.Prefix != "" {
		cfg.Ledger.SubjectPrefix = c.Prefix
	}
	if cfg.Ledger.Kind == config.LedgerNATS {
		return errors.New("ledger: serve a memory or file ledger, not a nats client")
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

	var setter balanceSetter
	switch v := l.(type) {
	case *ledger.Memory:
		setter = memorySetter{v}
	case *ledger.File:
		setter = v
	}
	for account, balance := range c.Set {
		if err := setter.Set(account, balance); err != nil {
			return fmt.Errorf("set %s: %w", account, err)
		}
		logger.Info("Balance set", "account", account, "balance", balance)
	}

	nc, err := ledger.Connect(cfg.Ledger.NATSURL, "blackjack-ledger")
	if err != nil {
		return err
	}
	defer func() { _ = nc.Drain() }()

	responder := ledger.NewResponder(l, cfg.Ledger.SubjectPrefix, logger)
	if err := responder.Subscribe(nc); err != nil {
		return err
	}
	defer responder.Close()

	logger.Info("Ledger ready", "kind", cfg.Ledger.Kind, "url", nc.ConnectedUrl(), "prefix", cfg.Ledger.SubjectPrefix)
	<-setupSignalHandler(logger).Done()
	return nil
}
