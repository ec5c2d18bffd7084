// Package subtitle renders recognized speech segments into numbered
// start --> end subtitle blocks and writes them atomically to disk.
package subtitle

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Static errors for subtitle operations.
var (
	// ErrInvalidTimestamp is returned when a negative or non-finite offset is formatted.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	// ErrWriteFailed is returned when the subtitle file cannot be created or written.
	ErrWriteFailed = errors.New("subtitle write failed")
	// ErrInvalidSegment is returned when a segment breaks the ordering or text contract.
	ErrInvalidSegment = errors.New("invalid segment")
)

// Segment is one chronologically ordered span of recognized speech.
// Start and End are offsets in seconds from the start of the audio.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// CleanText returns the text as it is rendered: trimmed, with invalid UTF-8
// replaced and composed to NFC.
func CleanText(text string) string {
	text = strings.ToValidUTF8(text, string(utf8.RuneError))
	return norm.NFC.String(strings.TrimSpace(text))
}

// ValidateSequence checks that segments are well formed and chronological:
// start >= 0, end > start, non-empty text, and no segment starting before
// the previous one ended. The sequence is never reordered.
func ValidateSequence(segments []Segment) error {
	prevEnd := 0.0
	for i, seg := range segments {
		switch {
		case !isFinite(seg.Start) || !isFinite(seg.End):
			return fmt.Errorf("%w: segment %d has non-finite bounds", ErrInvalidSegment, i)
		case seg.Start < 0:
			return fmt.Errorf("%w: segment %d starts at %.3f", ErrInvalidSegment, i, seg.Start)
		case seg.End <= seg.Start:
			return fmt.Errorf("%w: segment %d ends at %.3f before it starts at %.3f", ErrInvalidSegment, i, seg.End, seg.Start)
		case CleanText(seg.Text) == "":
			return fmt.Errorf("%w: segment %d has empty text", ErrInvalidSegment, i)
		case seg.Start < prevEnd:
			return fmt.Errorf("%w: segment %d starts at %.3f, overlapping previous end %.3f", ErrInvalidSegment, i, seg.Start, prevEnd)
		}
		prevEnd = seg.End
	}
	return nil
}

// TotalDuration returns the end offset of the final segment, or 0 for an
// empty sequence.
func TotalDuration(segments []Segment) float64 {
	if len(segments) == 0 {
		return 0
	}
	return segments[len(segments)-1].End
}
