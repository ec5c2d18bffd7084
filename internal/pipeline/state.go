// Package pipeline sequences one media-to-subtitle run: validation,
// normalization, recognition and writing, followed by a cleanup step that
// always runs. It owns the temporary artifact and classifies failures.
package pipeline

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/maauso/subtitler/internal/pipeline/id"
)

// State represents the current stage of a Run.
type State string

const (
	// StateIdle is the state of a run that has not started.
	StateIdle State = "IDLE"
	// StateValidating checks the input path.
	StateValidating State = "VALIDATING"
	// StateNormalizing produces the canonical audio artifact.
	StateNormalizing State = "NORMALIZING"
	// StateTranscribing runs speech recognition.
	StateTranscribing State = "TRANSCRIBING"
	// StateWriting serializes the subtitle file.
	StateWriting State = "WRITING"
	// StateDone indicates the subtitle file was written.
	StateDone State = "DONE"
	// StateFailed indicates the run ended with a classified error.
	StateFailed State = "FAILED"
)

// IsTerminal returns true if no transition leaves the state.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[State][]State{
	StateIdle:         {StateValidating, StateFailed},
	StateValidating:   {StateNormalizing, StateFailed},
	StateNormalizing:  {StateTranscribing, StateFailed},
	StateTranscribing: {StateWriting, StateFailed},
	StateWriting:      {StateDone, StateFailed},
	StateDone:         {},
	StateFailed:       {},
}

// canTransition checks if a transition from one state to another is valid.
func canTransition(from, to State) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// Transition records one state change.
type Transition struct {
	State State
	At    time.Time
}

// Run is the record of one pipeline execution.
type Run struct {
	mu sync.RWMutex

	// ID is the unique identifier for this run.
	ID string
	// state is the current stage; read it with GetState.
	state State
	// History lists every state entered, in order, starting with StateIdle.
	History []Transition
	// Input is the path supplied by the caller.
	Input string
	// ArtifactPath is the temporary audio artifact, if one was reserved.
	ArtifactPath string
	// OutputPath is the subtitle destination.
	OutputPath string
	// CreatedAt is when the run was created.
	CreatedAt time.Time
	// CompletedAt is when the run reached a terminal state.
	CompletedAt time.Time
}

// NewRun creates a Run with a generated ID in StateIdle.
func NewRun(input string) *Run {
	return NewRunWithID(id.Generate(), input)
}

// NewRunWithID creates a Run with the specified ID in StateIdle.
func NewRunWithID(runID, input string) *Run {
	now := time.Now()
	return &Run{
		ID:        runID,
		state:     StateIdle,
		History:   []Transition{{State: StateIdle, At: now}},
		Input:     input,
		CreatedAt: now,
	}
}

// TransitionTo attempts to change the run state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (r *Run) TransitionTo(state State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !canTransition(r.state, state) {
		return ErrInvalidTransition
	}

	now := time.Now()
	r.state = state
	r.History = append(r.History, Transition{State: state, At: now})
	if state.IsTerminal() {
		r.CompletedAt = now
	}
	return nil
}

// GetState returns the current state (thread-safe).
func (r *Run) GetState() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Entered reports whether the run ever entered state.
func (r *Run) Entered(state State) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.History {
		if t.State == state {
			return true
		}
	}
	return false
}

// States returns the visited states in order.
func (r *Run) States() []State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	states := make([]State, len(r.History))
	for i, t := range r.History {
		states[i] = t.State
	}
	return states
}

func (r *Run) setArtifact(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ArtifactPath = path
}

func (r *Run) artifact() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ArtifactPath
}

func (r *Run) setOutput(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.OutputPath = path
}

// Elapsed returns the wall time between creation and completion, or until
// now for an unfinished run.
func (r *Run) Elapsed() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.CompletedAt.IsZero() {
		return time.Since(r.CreatedAt)
	}
	return r.CompletedAt.Sub(r.CreatedAt)
}
