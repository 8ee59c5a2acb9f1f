package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/lox/blackjack/internal/history"
	"github.com/lox/blackjack/internal/tui"
)

// HistoryCmd is the root command for the settled-round archive.
type HistoryCmd struct {
	Show HistoryShowCmd `cmd:"" help:"Print rounds from an archive file"`
}

// HistoryShowCmd prints archived rounds with their cards and results.
type HistoryShowCmd struct {
	File    string `arg:"" type:"existingfile" help:"Path to rounds.jsonl"`
	Account string `help:"Only show rounds for this account"`
	Limit   int    `help:"Maximum number of rounds to show, newest last (0 = all)"`
	NoColor bool   `help:"Disable colours"`
}

func (cmd HistoryShowCmd) Run() error {
	lipgloss.SetColorProfile(tui.ColorProfile(cmd.NoColor))
	return cmd.show(os.Stdout)
}

func (cmd HistoryShowCmd) show(w io.Writer) error {
	records, err := history.Load(cmd.File)
	if err != nil {
		return err
	}
	if cmd.Account != "" {
		filtered := records[:0]
		for _, rec := range records {
			if rec.Account == cmd.Account {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	if len(records) == 0 {
		return errors.New("no rounds found")
	}
	if cmd.Limit > 0 && cmd.Limit < len(records) {
		records = records[len(records)-cmd.Limit:]
	}
	printRecords(w, records)
	return nil
}

func printRecords(w io.Writer, records []history.Record) {
	var stake, delta int64
	for _, rec := range records {
		s := rec.Snapshot
		fmt.Fprintf(w, "%s %s %s %s\n",
			reportHeaderStyle.Render(fmt.Sprintf("#%d", rec.Seq)),
			rec.Time.Format("2006-01-02 15:04:05"),
			rec.Account,
			reportLabelStyle.Render(rec.RoundID))
		fmt.Fprintf(w, "  dealer  %s  %d\n", tui.FormatCards(s.Dealer.Cards), s.Dealer.Score)
		for _, h := range s.Hands {
			fmt.Fprintf(w, "  hand %d  %s  %d  $%d  %s\n", h.Index+1, tui.FormatCards(h.Cards), h.Score, h.Bet, h.Status)
		}
		fmt.Fprintf(w, "  %s\n\n", tui.DescribeSettlement(s))
		stake += rec.Stake
		delta += rec.Delta
	}
	fmt.Fprintf(w, "%d rounds, %d staked, net %+d\n", len(records), stake, delta)
}
