package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/deck"
)

// Model is the Bubble Tea model for a local blackjack game
type Model struct {
	engine   *blackjack.Engine
	logger   *log.Logger
	keys     keyMap
	help     help.Model
	notifier *notifier

	snap     blackjack.Snapshot
	lastErr  string
	width    int
	quitting bool
}

// snapshotMsg carries the engine state into the update loop
type snapshotMsg blackjack.Snapshot

// notifier turns engine events into a wakeup signal. It never blocks the
// engine: a pending signal already means "read the latest snapshot".
type notifier struct {
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (n *notifier) OnEvent(blackjack.GameEvent) {
	select {
	case n.signal <- struct{}{}:
	default:
	}
}

func (n *notifier) stop() {
	n.once.Do(func() { close(n.done) })
}

// NewModel creates a model driving engine. The engine must not be shared with
// another presentation layer.
func NewModel(engine *blackjack.Engine, logger *log.Logger) *Model {
	n := &notifier{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	engine.Subscribe(n)

	m := &Model{
		engine:   engine,
		logger:   logger.WithPrefix("tui"),
		keys:     defaultKeyMap(),
		help:     help.New(),
		notifier: n,
		snap:     engine.Snapshot(),
	}
	m.syncKeys()
	return m
}

// Run plays in the terminal until the user quits or ctx is cancelled
func Run(ctx context.Context, engine *blackjack.Engine, logger *log.Logger) error {
	m := NewModel(engine, logger)
	defer m.stop()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init starts listening for engine updates
func (m *Model) Init() tea.Cmd {
	return m.waitForUpdate()
}

// waitForUpdate blocks until the engine publishes, then reads a fresh snapshot
func (m *Model) waitForUpdate() tea.Cmd {
	n := m.notifier
	return func() tea.Msg {
		select {
		case <-n.signal:
			return snapshotMsg(m.engine.Snapshot())
		case <-n.done:
			return nil
		}
	}
}

// Update handles messages in the TUI
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.snap = blackjack.Snapshot(msg)
		m.syncKeys()
		return m, m.waitForUpdate()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			m.stop()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.NewGame):
			m.apply("new_game", m.engine.NewGame)
		case key.Matches(msg, m.keys.Hit):
			m.apply("hit", m.engine.Hit)
		case key.Matches(msg, m.keys.Stand):
			m.apply("stand", func() error { m.engine.Stand(); return nil })
		}
	}

	return m, nil
}

// apply runs one engine action and refreshes the view from the result
func (m *Model) apply(name string, action func() error) {
	m.lastErr = ""
	if err := action(); err != nil {
		m.logger.Warn("Action failed", "action", name, "error", err)
		m.lastErr = err.Error()
	}
	m.snap = m.engine.Snapshot()
	m.syncKeys()
}

// syncKeys enables only the bindings that do something in the current state
func (m *Model) syncKeys() {
	playing := m.snap.State == blackjack.PlayerTurn
	m.keys.Hit.SetEnabled(playing)
	m.keys.Stand.SetEnabled(playing)
}

func (m *Model) stop() {
	m.notifier.stop()
	m.engine.Unsubscribe(m.notifier)
	m.engine.Close()
}

// View renders the TUI
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(HeaderStyle.Render("♠ Blackjack ♥"))
	b.WriteString("\n\n")

	table := lipgloss.JoinVertical(lipgloss.Left,
		m.renderHand("Dealer", m.snap.DealerHand, m.snap.DealerScore, m.snap.HoleCardHidden()),
		"",
		m.renderHand("Player", m.snap.PlayerHand, m.snap.PlayerScore, false),
	)
	b.WriteString(TableStyle.Render(table))
	b.WriteString("\n\n")

	b.WriteString(m.renderMessage())
	b.WriteString("\n")
	if m.lastErr != "" {
		b.WriteString(ErrorStyle.Render(m.lastErr))
		b.WriteString("\n")
	}
	if m.snap.RoundID != "" {
		b.WriteString(InfoStyle.Render(fmt.Sprintf("Cards left: %d", m.snap.DeckRemaining)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderHand(label string, hand blackjack.Hand, score int, holeHidden bool) string {
	cards := make([]string, 0, len(hand))
	for i, card := range hand {
		if holeHidden && i == 0 {
			cards = append(cards, HiddenCardStyle.Render("??"))
			continue
		}
		cards = append(cards, formatCard(card))
	}

	scoreText := fmt.Sprintf("(%d)", score)
	switch {
	case len(hand) == 0:
		scoreText = ""
	case holeHidden:
		scoreText = "(?)"
	}

	return LabelStyle.Render(label) + strings.Join(cards, " ") + " " + InfoStyle.Render(scoreText)
}

func (m *Model) renderMessage() string {
	switch m.snap.Outcome.Result() {
	case blackjack.ResultWin:
		return WinStyle.Render(m.snap.Message)
	case blackjack.ResultLoss:
		return LossStyle.Render(m.snap.Message)
	case blackjack.ResultPush:
		return PushStyle.Render(m.snap.Message)
	default:
		return MessageStyle.Render(m.snap.Message)
	}
}

// formatCard formats a card with its suit colour
func formatCard(card deck.Card) string {
	if card.IsRed() {
		return RedCardStyle.Render(card.String())
	}
	return BlackCardStyle.Render(card.String())
}
