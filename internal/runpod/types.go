// Package runpod provides an HTTP client for a RunPod serverless
// speech recognition endpoint running the faster-whisper worker.
package runpod

// Status represents the status of a RunPod job.
type Status string

// RunPod job statuses aligned with the RunPod API.
const (
	StatusInQueue    Status = "IN_QUEUE"
	StatusRunning    Status = "RUNNING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
	StatusTimedOut   Status = "TIMED_OUT"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	default:
		return false
	}
}

// TranscribeInput contains the parameters of one transcription job.
// Exactly one of AudioURL and AudioBase64 should be set.
type TranscribeInput struct {
	AudioURL                  string
	AudioBase64               string
	Model                     string  // Whisper model name (default: "turbo")
	Language                  string  // Empty lets the worker detect the language
	Temperature               float64 // Sampling temperature; 0 is deterministic
	BestOf                    int
	BeamSize                  int
	CompressionRatioThreshold float64
	EnableVAD                 bool
}

// DefaultModel is the model requested when none is configured.
const DefaultModel = "turbo"

// runRequest represents the request body for RunPod's /run endpoint.
type runRequest struct {
	Input runInput `json:"input"`
}

// runInput represents the input field of a faster-whisper run request.
type runInput struct {
	Audio                     string  `json:"audio,omitempty"`
	AudioBase64               string  `json:"audio_base64,omitempty"`
	Model                     string  `json:"model"`
	Transcription             string  `json:"transcription"`
	Language                  string  `json:"language,omitempty"`
	Temperature               float64 `json:"temperature"`
	BestOf                    int     `json:"best_of"`
	BeamSize                  int     `json:"beam_size"`
	CompressionRatioThreshold float64 `json:"compression_ratio_threshold,omitempty"`
	ConditionOnPreviousText   bool    `json:"condition_on_previous_text"`
	EnableVAD                 bool    `json:"enable_vad"`
	WordTimestamps            bool    `json:"word_timestamps"`
}

// runResponse represents the response from RunPod's /run endpoint.
type runResponse struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// statusResponse represents the response from RunPod's /status endpoint.
type statusResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Output statusOutput `json:"output,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// statusOutput represents the output field in a status response.
type statusOutput struct {
	Segments         []Segment `json:"segments,omitempty"`
	DetectedLanguage string    `json:"detected_language,omitempty"`
}

// Segment is one transcript segment with times in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// PollResult contains the result of polling a job's status.
type PollResult struct {
	Status           Status
	Segments         []Segment // Only set when Status is StatusCompleted
	DetectedLanguage string
	Error            string // Error message (only set when Status is StatusFailed)
}
