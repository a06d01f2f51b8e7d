// Package quizcheck drives a running quiz server end to end with many
// concurrent sessions and checks the answers it gives.
package quizcheck

import (
	"io"
	"time"
)

// Config holds configuration for a check run.
type Config struct {
	BaseURL   string        // Base URL of the service
	Sessions  int           // Number of sessions to play
	Rounds    int           // Rounds played per session
	Workers   int           // Number of concurrent workers
	Timeout   time.Duration // HTTP request timeout
	RoundWait time.Duration // How long a round may stay loading
	Poll      time.Duration // Interval between state polls
	Out       io.Writer     // Summary destination
}

// Stats holds run statistics.
type Stats struct {
	SessionsCreated int
	SessionsFailed  int
	RoundsReady     int
	RoundsFailed    int
	RoundsStuck     int
	GuessesSent     int
	Violations      []string
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}

// state mirrors the API's round state.
type state struct {
	Round        uint64   `json:"round"`
	Loading      bool     `json:"loading"`
	ImageURL     string   `json:"image_url"`
	Options      []string `json:"options"`
	ErrorMessage string   `json:"error_message"`
	Status       string   `json:"status"`
}

type session struct {
	ID    string `json:"id"`
	State state  `json:"state"`
}

type guessRequest struct {
	Guess string `json:"guess"`
}

type guessResult struct {
	Correct bool   `json:"correct"`
	Round   uint64 `json:"round"`
}
