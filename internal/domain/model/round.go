// Package model holds the shared quiz types and the error taxonomy.
package model

// Catalog maps a breed name to its sub-breeds, exactly as received upstream.
// Only the key set is used by the quiz.
type Catalog map[string][]string

// Breeds returns the catalog's breed names in unspecified order.
func (c Catalog) Breeds() []string {
	out := make([]string, 0, len(c))
	for name := range c {
		out = append(out, name)
	}
	return out
}

// Status is the coarse phase a RoundState represents.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// RoundState is the observable state of a quiz round.
//
// Loading implies ErrorMessage is empty, and a non-empty ErrorMessage implies
// !Loading. A non-empty CorrectBreed implies ImageURL is set and Options
// contains CorrectBreed.
type RoundState struct {
	Round        uint64   `json:"round"`
	Loading      bool     `json:"loading"`
	ImageURL     string   `json:"image_url,omitempty"`
	CorrectBreed string   `json:"-"`
	Options      []string `json:"options"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

// Status derives the phase from the state fields.
func (s RoundState) Status() Status {
	switch {
	case s.Loading:
		return StatusLoading
	case s.ErrorMessage != "":
		return StatusFailed
	case s.CorrectBreed != "":
		return StatusSuccess
	default:
		return StatusIdle
	}
}

// Clone returns a copy that shares no memory with s.
func (s RoundState) Clone() RoundState {
	if s.Options != nil {
		opts := make([]string, len(s.Options))
		copy(opts, s.Options)
		s.Options = opts
	}
	return s
}

// Valid reports whether the state satisfies the RoundState invariants.
func (s RoundState) Valid() bool {
	if s.Loading && s.ErrorMessage != "" {
		return false
	}
	if s.CorrectBreed == "" {
		return true
	}
	if s.ImageURL == "" {
		return false
	}
	for _, o := range s.Options {
		if o == s.CorrectBreed {
			return true
		}
	}
	return false
}
