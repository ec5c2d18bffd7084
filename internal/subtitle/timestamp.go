package subtitle

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatTimestamp converts an offset in seconds to HH:MM:SS,mmm.
//
// Milliseconds are truncated, never rounded. Truncation works on the shortest
// decimal representation of the value so that 1.001 renders as ,001 rather
// than losing a millisecond to binary rounding. Hours are zero-padded to two
// digits and grow past 99 instead of wrapping.
func FormatTimestamp(seconds float64) (string, error) {
	if seconds < 0 || !isFinite(seconds) {
		return "", fmt.Errorf("%w: %v", ErrInvalidTimestamp, seconds)
	}

	totalMillis, err := truncateMillis(seconds)
	if err != nil {
		return "", err
	}

	ms := totalMillis % 1000
	totalSeconds := totalMillis / 1000
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	secs := totalSeconds % 60

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, ms), nil
}

// truncateMillis returns floor(seconds*1000) computed on decimal digits.
func truncateMillis(seconds float64) (int64, error) {
	repr := strconv.FormatFloat(seconds, 'f', -1, 64)
	whole, frac, _ := strings.Cut(repr, ".")

	wholeSeconds, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || wholeSeconds > math.MaxInt64/1000-1 {
		return 0, fmt.Errorf("%w: %v out of range", ErrInvalidTimestamp, seconds)
	}

	frac = (frac + "000")[:3]
	millis, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidTimestamp, seconds)
	}

	return wholeSeconds*1000 + millis, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
