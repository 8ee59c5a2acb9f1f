package main

import (
	"context"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lox/blackjack/internal/config"
	"github.com/lox/blackjack/internal/tui"
)

// PlayCmd runs the interactive terminal client against an in-process table
type PlayCmd struct {
	Config  string `short:"c" default:"blackjack.hcl" type:"path" help:"HCL config file (missing file uses defaults)"`
	Account string `short:"a" default:"player" help:"Account to play as"`
	Bet     int64  `short:"b" default:"10" help:"Default bet"`
	LogFile string `type:"path" help:"Write logs to this file"`
	NoColor bool   `help:"Disable colours"`
	Debug   bool   `help:"Enable debug logging"`
}

func (c *PlayCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The terminal belongs to the UI
	var w io.Writer = io.Discard
	if c.LogFile != "" {
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	logger, err := setupLogger(w, cfg.Server.LogLevel, c.Debug)
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	lipgloss.SetColorProfile(tui.ColorProfile(c.NoColor))
	model := tui.NewModel(svc, c.Account, c.Bet, logger)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err = program.Run()
	return err
}
