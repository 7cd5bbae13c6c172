package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kikiluvv/lofiloop/internal/timeline"
)

var (
	// ErrInvalidParameters reports a degenerate clip/fade/duration relationship
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrEmptyLibrary reports that no eligible audio tracks exist
	ErrEmptyLibrary = errors.New("no songs found")

	// ErrEncodeFailed matches any *EncodeError
	ErrEncodeFailed = errors.New("encode failed")

	// ErrRenderInProgress is returned when another render in this process
	// already targets the same output path
	ErrRenderInProgress = errors.New("render already in progress for output path")
)

// EncodeError carries the external encoder's failure reason
type EncodeError struct {
	OutputPath string
	Reason     error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.OutputPath, e.Reason)
}

func (e *EncodeError) Unwrap() error { return e.Reason }

func (e *EncodeError) Is(target error) bool { return target == ErrEncodeFailed }

// State is a step of the generation state machine
type State string

const (
	StateIdle                 State = "idle"
	StateComposingVideo       State = "composing_video"
	StateComposingAudio       State = "composing_audio"
	StateCombined             State = "combined"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateCancelled            State = "cancelled"
	StateRendering            State = "rendering"
	StateRendered             State = "rendered"
	StateFailed               State = "failed"
)

// Status is the terminal result of a render gate
type Status string

const (
	StatusRendered  Status = "rendered"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Outcome describes how a render gate finished
type Outcome struct {
	Status     Status
	OutputPath string
}

// Options configures one generation run
type Options struct {
	VideoPath        string
	SongsFolder      string
	SongExt          string
	SongExtFold      bool
	OutputPath       string
	VideoDuration    time.Duration
	PlaylistDuration time.Duration
	FadeDuration     time.Duration
	Encoding         timeline.Encoding
	Concurrency      int
}

// Exit codes returned by the CLI
const (
	ExitOK          = 0
	ExitError       = 1
	ExitCancelled   = 2
	ExitInterrupted = 130
)

// ExitCode maps a run result onto a process exit status
func ExitCode(outcome Outcome, err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case err != nil:
		return ExitError
	case outcome.Status == StatusCancelled:
		return ExitCancelled
	case outcome.Status == StatusRendered:
		return ExitOK
	default:
		return ExitError
	}
}
