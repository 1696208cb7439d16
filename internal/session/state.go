// Package session holds the observable state of one palette extraction
// flow: the submitted image, its ranked swatches and any failure.
package session

import (
	"image"
	"time"

	"github.com/jmylchreest/colortrack/internal/swatch"
)

// Status is the phase of the extraction flow.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// FallbackError is reported when an extraction error carries no message.
const FallbackError = "Error!"

// State is an immutable snapshot of the flow.
type State struct {
	Status    Status          `json:"status"`
	Image     image.Image     `json:"-"`
	ImagePath string          `json:"imagePath,omitempty"`
	Swatches  []swatch.Swatch `json:"swatches"`
	Error     string          `json:"error,omitempty"`

	// Generation identifies the Submit or Reset that produced this state.
	Generation uint64    `json:"generation"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Loading reports whether a ranking is in flight.
func (s State) Loading() bool {
	return s.Status == StatusLoading
}

// Settled reports whether the flow reached Ready or Failed.
func (s State) Settled() bool {
	return s.Status == StatusReady || s.Status == StatusFailed
}

func (s State) clone() State {
	out := s
	out.Swatches = append(make([]swatch.Swatch, 0, len(s.Swatches)), s.Swatches...)
	return out
}

func errorMessage(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return FallbackError
}
