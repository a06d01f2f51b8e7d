package quizcheck

import "time"

// Defaults applied to zero Config fields.
const (
	DefaultBaseURL   = "http://localhost:9080"
	DefaultSessions  = 20
	DefaultRounds    = 3
	DefaultTimeout   = 30 * time.Second
	DefaultRoundWait = 20 * time.Second
	DefaultPoll      = 50 * time.Millisecond
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
	PercentageMultiplier    = 100
)

// Round outcomes reported by playRound.
const (
	outcomeReady  = "ready"
	outcomeFailed = "failed"
	outcomeStuck  = "stuck"
)
