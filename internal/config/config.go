// Package config loads the server configuration from an HCL file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/blackjack/internal/game"
)

// Ledger kinds
const (
	LedgerMemory = "memory"
	LedgerFile   = "file"
	LedgerNATS   = "nats"
)

// Config is the resolved configuration with defaults applied
type Config struct {
	Server  ServerSettings
	Rules   game.Rules
	Ledger  LedgerSettings
	Session SessionSettings
	History HistorySettings
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address  string
	Port     int
	LogLevel string
}

// LedgerSettings selects and configures the balance store
type LedgerSettings struct {
	Kind           string
	OpeningBalance int64
	Path           string
	NATSURL        string
	SubjectPrefix  string
	Timeout        time.Duration
}

// SessionSettings configures round expiry and shuffling
type SessionSettings struct {
	TTL           time.Duration
	Retention     time.Duration
	SweepInterval time.Duration
	Seed          int64
}

// HistorySettings configures the settled-round archive
type HistorySettings struct {
	Enabled       bool
	Dir           string
	FlushRecords  int
	FlushInterval time.Duration
}

// file mirrors the HCL layout. Every block and attribute is optional.
type file struct {
	Server  *serverBlock  `hcl:"server,block"`
	Rules   *rulesBlock   `hcl:"rules,block"`
	Ledger  *ledgerBlock  `hcl:"ledger,block"`
	Session *sessionBlock `hcl:"session,block"`
	History *historyBlock `hcl:"history,block"`
}

type serverBlock struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

type rulesBlock struct {
	Decks            int    `hcl:"decks,optional"`
	BlackjackPayout  string `hcl:"blackjack_payout,optional"`
	DealerHitsSoft17 *bool  `hcl:"dealer_hits_soft17,optional"`
	MaxSplits        *int   `hcl:"max_splits,optional"`
	DoubleAfterSplit *bool  `hcl:"double_after_split,optional"`
	Surrender        *bool  `hcl:"surrender,optional"`
}

type ledgerBlock struct {
	Kind           string `hcl:"kind,optional"`
	OpeningBalance *int64 `hcl:"opening_balance,optional"`
	Path           string `hcl:"path,optional"`
	NATSURL        string `hcl:"nats_url,optional"`
	SubjectPrefix  string `hcl:"subject_prefix,optional"`
	Timeout        string `hcl:"timeout,optional"`
}

type sessionBlock struct {
	TTL           string `hcl:"ttl,optional"`
	Retention     string `hcl:"retention,optional"`
	SweepInterval string `hcl:"sweep_interval,optional"`
	Seed          int64  `hcl:"seed,optional"`
}

type historyBlock struct {
	Enabled       *bool  `hcl:"enabled,optional"`
	Dir           string `hcl:"dir,optional"`
	FlushRecords  int    `hcl:"flush_records,optional"`
	FlushInterval string `hcl:"flush_interval,optional"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Rules: game.DefaultRules(),
		Ledger: LedgerSettings{
			Kind:           LedgerMemory,
			OpeningBalance: 1000,
			Path:           "ledger.json",
			SubjectPrefix:  "ledger",
			Timeout:        5 * time.Second,
		},
		Session: SessionSettings{
			TTL:           30 * time.Minute,
			Retention:     10 * time.Minute,
			SweepInterval: 30 * time.Second,
		},
		History: HistorySettings{
			Enabled:       false,
			Dir:           "history",
			FlushRecords:  50,
			FlushInterval: 10 * time.Second,
		},
	}
}

// Load reads filename. A missing file yields Default().
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var raw file
	diags = gohcl.DecodeBody(f.Body, nil, &raw)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	cfg := Default()
	if err := raw.apply(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f *file) apply(cfg *Config) error {
	if s := f.Server; s != nil {
		setString(&cfg.Server.Address, s.Address)
		setString(&cfg.Server.LogLevel, s.LogLevel)
		if s.Port != 0 {
			cfg.Server.Port = s.Port
		}
	}

	if r := f.Rules; r != nil {
		if r.Decks != 0 {
			cfg.Rules.Decks = r.Decks
		}
		if r.BlackjackPayout != "" {
			ratio, err := game.ParseRatio(r.BlackjackPayout)
			if err != nil {
				return fmt.Errorf("rules.blackjack_payout: %w", err)
			}
			cfg.Rules.BlackjackPayout = ratio
		}
		setBool(&cfg.Rules.DealerHitsSoft17, r.DealerHitsSoft17)
		setBool(&cfg.Rules.DoubleAfterSplit, r.DoubleAfterSplit)
		setBool(&cfg.Rules.Surrender, r.Surrender)
		if r.MaxSplits != nil {
			cfg.Rules.MaxSplits = *r.MaxSplits
		}
	}

	if l := f.Ledger; l != nil {
		setString(&cfg.Ledger.Kind, l.Kind)
		setString(&cfg.Ledger.Path, l.Path)
		setString(&cfg.Ledger.NATSURL, l.NATSURL)
		setString(&cfg.Ledger.SubjectPrefix, l.SubjectPrefix)
		if l.OpeningBalance != nil {
			cfg.Ledger.OpeningBalance = *l.OpeningBalance
		}
		if err := setDuration(&cfg.Ledger.Timeout, l.Timeout, "ledger.timeout"); err != nil {
			return err
		}
	}

	if s := f.Session; s != nil {
		if err := setDuration(&cfg.Session.TTL, s.TTL, "session.ttl"); err != nil {
			return err
		}
		if err := setDuration(&cfg.Session.Retention, s.Retention, "session.retention"); err != nil {
			return err
		}
		if err := setDuration(&cfg.Session.SweepInterval, s.SweepInterval, "session.sweep_interval"); err != nil {
			return err
		}
		cfg.Session.Seed = s.Seed
	}

	if h := f.History; h != nil {
		cfg.History.Enabled = true
		setBool(&cfg.History.Enabled, h.Enabled)
		setString(&cfg.History.Dir, h.Dir)
		if h.FlushRecords != 0 {
			cfg.History.FlushRecords = h.FlushRecords
		}
		if err := setDuration(&cfg.History.FlushInterval, h.FlushInterval, "history.flush_interval"); err != nil {
			return err
		}
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v, name string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("rules: %w", err)
	}

	switch c.Ledger.Kind {
	case LedgerMemory:
	case LedgerFile:
		if c.Ledger.Path == "" {
			return fmt.Errorf("ledger: path is required for the file ledger")
		}
	case LedgerNATS:
		if c.Ledger.SubjectPrefix == "" {
			return fmt.Errorf("ledger: subject_prefix is required for the nats ledger")
		}
	default:
		return fmt.Errorf("ledger: unknown kind %q", c.Ledger.Kind)
	}
	if c.Ledger.OpeningBalance < 0 {
		return fmt.Errorf("ledger: opening balance must not be negative")
	}

	if c.Session.TTL <= 0 || c.Session.Retention <= 0 || c.Session.SweepInterval <= 0 {
		return fmt.Errorf("session: durations must be positive")
	}
	if c.History.Enabled && c.History.Dir == "" {
		return fmt.Errorf("history: dir is required")
	}
	return nil
}

// Address returns the full listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
