package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/okian/breedquiz/internal/domain/model"
)

// Options configures Play.
type Options struct {
	Writer        io.Writer     // Output destination (default: os.Stdout).
	Reader        io.Reader     // Input source (default: os.Stdin).
	ForcePlain    bool          // Force line mode even on a TTY.
	FeedbackDelay time.Duration // Verdict display time (default: DefaultFeedbackDelay).
}

// Play runs an interactive quiz until the player quits, the input ends or
// ctx is done. It uses the full-screen UI on a terminal and line mode
// otherwise. The first round is started here.
func Play(ctx context.Context, game Game, opts Options) error {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	if opts.Reader == nil {
		opts.Reader = os.Stdin
	}
	if opts.FeedbackDelay <= 0 {
		opts.FeedbackDelay = DefaultFeedbackDelay
	}

	if opts.ForcePlain || !isTTY(opts.Writer) {
		return playPlain(ctx, game, opts)
	}
	return playTUI(ctx, game, opts)
}

// isTTY reports whether w is connected to a terminal.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func playTUI(ctx context.Context, game Game, opts Options) error {
	states, unsubscribe := game.Subscribe()
	defer unsubscribe()

	m := NewModel(game, WithFeedbackDelay(opts.FeedbackDelay))
	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithOutput(opts.Writer),
		tea.WithInput(opts.Reader),
		tea.WithAltScreen(),
	)

	go func() {
		for st := range states {
			p.Send(StateMsg{State: st})
		}
	}()
	game.NextRound()

	final, err := p.Run()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("run terminal ui: %w", err)
	}
	if fm, ok := final.(Model); ok {
		correct, played := fm.Score()
		_, _ = fmt.Fprintf(opts.Writer, "Final score: %d/%d\n", correct, played)
	}
	return nil
}

// readLines delivers trimmed input lines until r ends or ctx is done, then
// closes the channel. A Read already in progress is not interrupted.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- strings.TrimSpace(sc.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// playPlain prints each round as text and reads one command per line:
// 1-3 or a breed name to guess, n for the next round, q to quit.
func playPlain(ctx context.Context, game Game, opts Options) error {
	w := opts.Writer
	states, unsubscribe := game.Subscribe()
	defer unsubscribe()

	// Releases the reader goroutine once the game loop returns.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := readLines(ctx, opts.Reader)

	game.NextRound()

	var (
		current         model.RoundState
		advance         <-chan time.Time
		answered        bool
		correct, played int
	)
	for {
		select {
		case <-ctx.Done():
			return nil

		case st, ok := <-states:
			if !ok {
				return nil
			}
			current = st
			answered = false
			renderPlain(w, st)

		case <-advance:
			advance = nil
			game.NextRound()

		case line, ok := <-lines:
			if !ok {
				_, _ = fmt.Fprintf(w, "Final score: %d/%d\n", correct, played)
				return nil
			}
			switch strings.ToLower(line) {
			case "":
				continue
			case "q", "quit":
				_, _ = fmt.Fprintf(w, "Final score: %d/%d\n", correct, played)
				return nil
			case "n", "next":
				advance = nil
				game.NextRound()
				continue
			}
			if answered || current.Status() != model.StatusSuccess {
				_, _ = fmt.Fprintln(w, "No round to answer yet.")
				continue
			}

			guess := line
			if i, err := strconv.Atoi(line); err == nil {
				if i < 1 || i > len(current.Options) {
					_, _ = fmt.Fprintf(w, "Pick 1-%d.\n", len(current.Options))
					continue
				}
				guess = current.Options[i-1]
			}

			answered = true
			played++
			if game.SubmitGuess(guess) {
				correct++
				_, _ = fmt.Fprintln(w, "Correct!")
			} else {
				_, _ = fmt.Fprintf(w, "Wrong! It was %s\n", current.CorrectBreed)
			}
			advance = time.After(opts.FeedbackDelay)
		}
	}
}

func renderPlain(w io.Writer, st model.RoundState) {
	switch st.Status() {
	case model.StatusLoading:
		_, _ = fmt.Fprintf(w, "Round %d: fetching a dog...\n", st.Round)
	case model.StatusFailed:
		_, _ = fmt.Fprintf(w, "Round %d failed: %s (n to retry, q to quit)\n", st.Round, st.ErrorMessage)
	case model.StatusSuccess:
		_, _ = fmt.Fprintf(w, "Round %d: %s\n", st.Round, st.ImageURL)
		for i, opt := range st.Options {
			_, _ = fmt.Fprintf(w, "  %d) %s\n", i+1, opt)
		}
		_, _ = fmt.Fprintln(w, "Your guess?")
	}
}
