// Package tui is the interactive terminal blackjack client.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/lox/blackjack/internal/game"
)

const requestTimeout = 10 * time.Second

// Table is the round API the client plays against. session.Service
// satisfies it.
type Table interface {
	Open(ctx context.Context, account string, bet int64) (game.Snapshot, error)
	Act(ctx context.Context, id string, action game.Action) (game.Snapshot, error)
	Balance(ctx context.Context, account string) (int64, error)
}

// Model is the Bubble Tea model for one player at a table
type Model struct {
	table   Table
	account string
	logger  *log.Logger

	// UI components
	logViewport viewport.Model
	betInput    textinput.Model

	// State
	gameLog  []string
	round    *game.Snapshot
	balance  int64
	lastBet  int64
	pending  bool
	quitting bool

	// Dimensions
	width       int
	height      int
	initialized bool
}

type roundMsg struct {
	action string
	snap   game.Snapshot
	err    error
}

type balanceMsg struct {
	balance int64
	err     error
}

// NewModel creates a client for account. defaultBet is used when the bet
// prompt is left empty.
func NewModel(table Table, account string, defaultBet int64, logger *log.Logger) *Model {
	// Sized properly when the first WindowSizeMsg arrives
	vp := viewport.New(10, 5)
	vp.SetContent("")

	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 12
	ti.Width = 20
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	ti.Prompt = "bet> "

	return &Model{
		table:       table,
		account:     account,
		logger:      logger.WithPrefix("tui"),
		logViewport: vp,
		betInput:    ti,
		lastBet:     defaultBet,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.fetchBalance())
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case roundMsg:
		return m, m.handleRound(msg)

	case balanceMsg:
		if msg.err != nil {
			m.AddLogEntry(ErrorStyle.Render("Balance unavailable: " + msg.err.Error()))
		} else {
			m.balance = msg.balance
		}
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.logViewport, cmd = m.logViewport.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	switch key {
	case "ctrl+c", "esc", "q":
		m.quitting = true
		return tea.Quit
	case "pgup":
		m.logViewport.HalfPageUp()
		return nil
	case "pgdown":
		m.logViewport.HalfPageDown()
		return nil
	}

	if m.pending {
		return nil
	}

	if m.InRound() {
		action, ok := KeyAction(m.round.Phase, key)
		if !ok {
			return nil
		}
		m.pending = true
		return m.act(action)
	}

	switch key {
	case "enter":
		bet := m.lastBet
		if v := strings.TrimSpace(m.betInput.Value()); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n <= 0 {
				m.AddLogEntry(ErrorStyle.Render(fmt.Sprintf("Invalid bet %q", v)))
				m.betInput.SetValue("")
				return nil
			}
			bet = n
		}
		m.betInput.SetValue("")
		return m.open(bet)
	case "n":
		return m.open(m.lastBet)
	}

	var cmd tea.Cmd
	m.betInput, cmd = m.betInput.Update(msg)
	return cmd
}

// KeyAction maps a key to the action it stands for in phase
func KeyAction(phase game.Phase, key string) (game.Action, bool) {
	switch phase {
	case game.PhaseAwaitingInsurance:
		switch key {
		case "i":
			return game.ActionInsure, true
		case "n":
			return game.ActionDeclineInsurance, true
		}
	case game.PhaseAwaitingPlayerAction:
		switch key {
		case "h":
			return game.ActionHit, true
		case "s":
			return game.ActionStand, true
		case "d":
			return game.ActionDouble, true
		case "p":
			return game.ActionSplit, true
		case "r":
			return game.ActionSurrender, true
		}
	}
	return 0, false
}

func (m *Model) open(bet int64) tea.Cmd {
	if bet <= 0 {
		m.AddLogEntry(ErrorStyle.Render("Enter a bet to start"))
		return nil
	}
	m.lastBet = bet
	m.pending = true
	table, account := m.table, m.account
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		snap, err := table.Open(ctx, account, bet)
		return roundMsg{action: fmt.Sprintf("bet $%d", bet), snap: snap, err: err}
	}
}

func (m *Model) act(action game.Action) tea.Cmd {
	table, id := m.table, m.round.ID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		snap, err := table.Act(ctx, id, action)
		return roundMsg{action: action.String(), snap: snap, err: err}
	}
}

func (m *Model) fetchBalance() tea.Cmd {
	table, account := m.table, m.account
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		balance, err := table.Balance(ctx, account)
		return balanceMsg{balance: balance, err: err}
	}
}

func (m *Model) handleRound(msg roundMsg) tea.Cmd {
	m.pending = false
	if msg.snap.ID != "" {
		snap := msg.snap
		m.round = &snap
	}

	if msg.err != nil {
		m.logger.Debug("Action rejected", "action", msg.action, "error", msg.err)
		m.AddLogEntry(ErrorStyle.Render(fmt.Sprintf("%s: %s", msg.action, game.Code(msg.err))))
		return m.fetchBalance()
	}

	m.AddLogEntry(fmt.Sprintf("%s → %s", msg.action, DescribeRound(msg.snap)))
	if msg.snap.Done() {
		m.AddLogEntry(DescribeSettlement(msg.snap))
	}
	return m.fetchBalance()
}

// InRound reports whether a round is waiting on the player
func (m *Model) InRound() bool {
	return m.round != nil && !m.round.Done()
}

// Round returns the latest snapshot, nil before the first round
func (m *Model) Round() *game.Snapshot {
	return m.round
}

// Balance returns the last fetched balance
func (m *Model) Balance() int64 {
	return m.balance
}

// Log returns a copy of the game log
func (m *Model) Log() []string {
	out := make([]string, len(m.gameLog))
	copy(out, m.gameLog)
	return out
}

// AddLogEntry adds an entry to the game log and scrolls to it
func (m *Model) AddLogEntry(entry string) {
	m.gameLog = append(m.gameLog, entry)
	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))

	// Only call GotoBottom if viewport has valid dimensions
	if m.logViewport.Height > 0 && m.logViewport.Width > 0 {
		m.logViewport.GotoBottom()
	}
}

// View renders the client
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	header := HeaderStyle.Render(" Blackjack ") + " " +
		InfoStyle.Render(m.account) + "  " +
		WarningStyle.Render(fmt.Sprintf("Balance: $%d", m.balance))

	tableContent := m.renderTable() + "\n\n" + m.renderActions()
	tableWidth := max(m.width-2, 1)
	tablePane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#04B575")).
		Width(tableWidth).
		Render(tableContent)

	logWidth := max(m.width-2, 1)
	logHeight := max(m.height-lipgloss.Height(header)-lipgloss.Height(tablePane)-2, 1)
	m.logViewport.Width = logWidth
	m.logViewport.Height = logHeight
	if !m.initialized && logHeight > 1 {
		m.logViewport.GotoBottom()
		m.initialized = true
	}
	logPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(logWidth).
		Height(logHeight).
		Render(m.logViewport.View())

	return lipgloss.JoinVertical(lipgloss.Left, header, tablePane, logPane)
}

func (m *Model) renderTable() string {
	if m.round == nil {
		return HandInfoStyle.Render("Place a bet to start.")
	}
	r := m.round

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Dealer  %s  %s\n", FormatCards(r.Dealer.Cards), scoreText(r.Dealer.Score, r.Dealer.Soft)))
	for _, h := range r.Hands {
		line := fmt.Sprintf("Hand %d  %s  %s  $%d  %s", h.Index+1, FormatCards(h.Cards), scoreText(h.Score, h.Soft), h.Bet, h.Status)
		if h.Index == r.CurrentHandIndex {
			line = CurrentHandStyle.Render("▶ ") + line
		} else {
			line = "  " + line
		}
		if r.Settlement != nil && h.Index < len(r.Settlement.Hands) {
			line += "  " + outcomeText(r.Settlement.Hands[h.Index])
		}
		b.WriteString(line + "\n")
	}
	if r.InsuranceBet > 0 {
		b.WriteString(InfoStyle.Render(fmt.Sprintf("Insurance $%d", r.InsuranceBet)) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderActions() string {
	if m.pending {
		return InfoStyle.Render("Waiting...")
	}
	if !m.InRound() {
		m.betInput.Placeholder = fmt.Sprintf("%d", m.lastBet)
		return m.betInput.View() + "\n" +
			InfoStyle.Render("Enter to deal • n same bet • q quit")
	}
	return ActionsStyle.Render("Actions: " + strings.Join(AvailableActions(*m.round), " "))
}

// AvailableActions lists the key hints legal for the snapshot
func AvailableActions(s game.Snapshot) []string {
	switch s.Phase {
	case game.PhaseAwaitingInsurance:
		actions := []string{"[n]o insurance"}
		if s.CanInsure {
			actions = append([]string{"[i]nsure"}, actions...)
		}
		return actions
	case game.PhaseAwaitingPlayerAction:
		actions := []string{"[h]it", "[s]tand"}
		if i := s.CurrentHandIndex; i >= 0 && i < len(s.Hands) {
			h := s.Hands[i]
			if h.CanDouble {
				actions = append(actions, "[d]ouble")
			}
			if h.CanSplit {
				actions = append(actions, "s[p]lit")
			}
			if h.CanSurrender {
				actions = append(actions, "su[r]render")
			}
		}
		return actions
	}
	return nil
}

// FormatCard renders a card with its suit colour. The hole card renders as
// a back.
func FormatCard(v game.CardView) string {
	if v.Hidden {
		return HiddenCardStyle.Render("??")
	}
	c, err := v.Card()
	if err != nil {
		return "?"
	}
	text := c.Rank.String() + c.Suit.Symbol()
	if c.Suit.IsRed() {
		return RedCardStyle.Render(text)
	}
	return BlackCardStyle.Render(text)
}

// FormatCards renders a hand as [A♠ 10♥]
func FormatCards(cards []game.CardView) string {
	formatted := make([]string, len(cards))
	for i, c := range cards {
		formatted[i] = FormatCard(c)
	}
	return "[" + strings.Join(formatted, " ") + "]"
}

// DescribeRound is a one-line summary for the log
func DescribeRound(s game.Snapshot) string {
	parts := make([]string, 0, len(s.Hands)+1)
	for _, h := range s.Hands {
		parts = append(parts, fmt.Sprintf("hand %d %s %s", h.Index+1, FormatCards(h.Cards), scoreText(h.Score, h.Soft)))
	}
	parts = append(parts, fmt.Sprintf("dealer %s", FormatCards(s.Dealer.Cards)))
	return strings.Join(parts, ", ")
}

// DescribeSettlement summarises a finished round
func DescribeSettlement(s game.Snapshot) string {
	if s.Settlement == nil {
		return WarningStyle.Render(fmt.Sprintf("Round aborted, $%d refunded", s.TotalStake))
	}
	st := s.Settlement
	text := fmt.Sprintf("Dealer %s. Payout $%d on $%d staked (%+d)", scoreText(s.Dealer.Score, s.Dealer.Soft), st.Payout, st.TotalStake, st.Delta)
	switch {
	case st.Delta > 0:
		return SuccessStyle.Render(text)
	case st.Delta < 0:
		return ErrorStyle.Render(text)
	default:
		return WarningStyle.Render(text)
	}
}

func scoreText(score int, soft bool) string {
	if soft {
		return fmt.Sprintf("soft %d", score)
	}
	return strconv.Itoa(score)
}

func outcomeText(h game.HandResult) string {
	text := fmt.Sprintf("%s $%d", h.Outcome, h.Payout)
	switch h.Outcome {
	case game.OutcomeWin, game.OutcomeBlackjack:
		return SuccessStyle.Render(text)
	case game.OutcomeLose:
		return ErrorStyle.Render(text)
	default:
		return WarningStyle.Render(text)
	}
}
