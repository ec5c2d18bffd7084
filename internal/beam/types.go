// Package beam provides an HTTP client for a Beam.cloud task queue running
// a Whisper transcription worker.
package beam

// Status represents the status of a Beam task.
type Status string

// Beam task statuses aligned with the Beam API.
const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusComplete  Status = "COMPLETE" // Beam sometimes returns "COMPLETE" instead of "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusError     Status = "ERROR"    // Beam returns "ERROR" when a task fails
	StatusCanceled  Status = "CANCELED" // Beam uses "CANCELED" (American spelling)
	StatusTimeout   Status = "TIMEOUT"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusComplete, StatusFailed, StatusError, StatusCanceled, StatusTimeout:
		return true
	default:
		return false
	}
}

// TranscribeInput contains the parameters of one transcription task.
// Exactly one of AudioURL and AudioBase64 should be set.
type TranscribeInput struct {
	AudioURL                  string
	AudioBase64               string
	Language                  string
	Temperature               float64
	BestOf                    int
	BeamSize                  int
	CompressionRatioThreshold float64
	FP16                      bool
}

// taskRequest represents the request body for Beam's task queue endpoint.
type taskRequest struct {
	AudioBase64               string  `json:"audio_base64,omitempty"`
	AudioURL                  string  `json:"audio_url,omitempty"`
	Language                  string  `json:"language,omitempty"`
	Temperature               float64 `json:"temperature"`
	BestOf                    int     `json:"best_of"`
	BeamSize                  int     `json:"beam_size"`
	CompressionRatioThreshold float64 `json:"compression_ratio_threshold,omitempty"`
	FP16                      bool    `json:"fp16"`
}

// taskResponse represents the response from Beam's task submission endpoint.
type taskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// statusResponse represents the response from Beam's task status endpoint.
type statusResponse struct {
	TaskID  string       `json:"task_id"`
	Status  string       `json:"status"`
	Outputs []taskOutput `json:"outputs,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// taskOutput represents a single output file from a Beam task.
type taskOutput struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

// cancelRequest represents the request body for Beam's cancel endpoint.
type cancelRequest struct {
	TaskIDs []string `json:"task_ids"`
}

// PollResult contains the result of polling a task's status.
type PollResult struct {
	Status    Status
	OutputURL string // URL of the transcript JSON written by the worker
	Error     string // Error message (only set when Status is StatusFailed)
}

// Transcript is the output file written by the worker.
type Transcript struct {
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

// Segment is one transcript segment with times in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}
