// Package tui is the terminal client for a quiz round.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/okian/breedquiz/internal/domain/model"
)

// DefaultFeedbackDelay is how long a verdict stays up before the next round.
const DefaultFeedbackDelay = 2 * time.Second

// Game is the round controller surface the client drives.
type Game interface {
	NextRound() uint64
	SubmitGuess(guess string) bool
	State() model.RoundState
	Subscribe() (<-chan model.RoundState, func())
}

// StateMsg carries a published RoundState into the program.
type StateMsg struct {
	State model.RoundState
}

// advanceMsg fires when the verdict for round has been shown long enough.
type advanceMsg struct {
	round uint64
}

type verdict struct {
	round   uint64
	guess   string
	answer  string
	correct bool
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	urlStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Underline(true)
	optionStyle  = lipgloss.NewStyle().PaddingLeft(2)
	correctStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	wrongStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"})
)

// Model is the Bubble Tea model for one player's quiz.
type Model struct {
	game          Game
	state         model.RoundState
	spinner       spinner.Model
	feedbackDelay time.Duration

	verdict *verdict
	correct int
	played  int
	done    bool
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithFeedbackDelay sets how long a verdict is shown.
func WithFeedbackDelay(d time.Duration) ModelOption {
	return func(m *Model) {
		if d >= 0 {
			m.feedbackDelay = d
		}
	}
}

// NewModel creates a Model showing the game's current state.
func NewModel(game Game, opts ...ModelOption) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	m := Model{
		game:          game,
		state:         game.State(),
		spinner:       s,
		feedbackDelay: DefaultFeedbackDelay,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init starts the spinner tick.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StateMsg:
		m.state = msg.State
		if m.verdict != nil && m.verdict.round != m.state.Round {
			m.verdict = nil
		}
		return m, nil

	case advanceMsg:
		if m.verdict != nil && m.verdict.round == msg.round {
			m.verdict = nil
			m.game.NextRound()
		}
		return m, nil

	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "q", "ctrl+c", "esc":
			m.done = true
			return m, tea.Quit
		case "n":
			m.verdict = nil
			m.game.NextRound()
			return m, nil
		case "1", "2", "3":
			return m.guess(int(key[0] - '1'))
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) guess(idx int) (tea.Model, tea.Cmd) {
	if m.verdict != nil || m.state.Status() != model.StatusSuccess || idx >= len(m.state.Options) {
		return m, nil
	}

	choice := m.state.Options[idx]
	v := &verdict{
		round:   m.state.Round,
		guess:   choice,
		answer:  m.state.CorrectBreed,
		correct: m.game.SubmitGuess(choice),
	}
	m.verdict = v
	m.played++
	if v.correct {
		m.correct++
	}

	round := v.round
	return m, tea.Tick(m.feedbackDelay, func(time.Time) tea.Msg {
		return advanceMsg{round: round}
	})
}

// View renders the round.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Guess the dog breed"))
	if m.played > 0 {
		fmt.Fprintf(&b, "  score %d/%d", m.correct, m.played)
	}
	b.WriteString("\n\n")

	switch m.state.Status() {
	case model.StatusIdle:
		b.WriteString("  Waiting for the first round...\n")
	case model.StatusLoading:
		fmt.Fprintf(&b, "  %s Fetching a dog...\n", m.spinner.View())
	case model.StatusFailed:
		b.WriteString("  " + errorStyle.Render(m.state.ErrorMessage) + "\n")
	case model.StatusSuccess:
		b.WriteString("  " + urlStyle.Render(m.state.ImageURL) + "\n\n")
		for i, opt := range m.state.Options {
			b.WriteString(optionStyle.Render(fmt.Sprintf("%d) %s", i+1, opt)) + "\n")
		}
	}

	if v := m.verdict; v != nil {
		b.WriteString("\n")
		if v.correct {
			b.WriteString("  " + correctStyle.Render("Correct!") + "\n")
		} else {
			b.WriteString("  " + wrongStyle.Render("Wrong! It was "+v.answer) + "\n")
		}
	}

	b.WriteString("\n" + helpStyle.Render("  1-3 guess • n next • q quit") + "\n")
	return b.String()
}

// Score returns correct guesses and rounds played.
func (m Model) Score() (correct, played int) {
	return m.correct, m.played
}
