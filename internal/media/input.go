// Package media validates user-supplied media paths before any processing.
package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Static errors for input validation.
var (
	// ErrNotFound is returned when the path does not resolve to an existing regular file.
	ErrNotFound = errors.New("input file not found")
	// ErrUnsupportedFormat is returned when the extension is not in the allow-list.
	ErrUnsupportedFormat = errors.New("unsupported media format")
)

// Kind classifies an accepted input container.
type Kind string

const (
	// KindAudio is an audio-only container.
	KindAudio Kind = "audio"
	// KindVideo is a video container carrying an audio track.
	KindVideo Kind = "video"
)

var (
	audioExtensions = []string{".mp3", ".wav", ".flac", ".ogg", ".m4a"}
	videoExtensions = []string{".mp4", ".avi", ".mov", ".mkv"}
)

// Input is a validated media file. It is immutable once returned by Validate.
type Input struct {
	// Path is the path as supplied by the user.
	Path string
	// Kind is the container classification derived from the extension.
	Kind Kind
	// Size is the file size in bytes at validation time.
	Size int64
}

// BaseName returns the file name without directory and extension.
func (in Input) BaseName() string {
	base := filepath.Base(in.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Validator checks paths against an extension allow-list.
type Validator struct {
	kinds map[string]Kind
	stat  func(name string) (os.FileInfo, error)
}

// NewValidator creates a Validator accepting audio containers, plus video
// containers when acceptVideo is true.
func NewValidator(acceptVideo bool) *Validator {
	kinds := make(map[string]Kind, len(audioExtensions)+len(videoExtensions))
	for _, ext := range audioExtensions {
		kinds[ext] = KindAudio
	}
	if acceptVideo {
		for _, ext := range videoExtensions {
			kinds[ext] = KindVideo
		}
	}
	return &Validator{kinds: kinds, stat: os.Stat}
}

// Extensions returns the accepted extensions in sorted order.
func (v *Validator) Extensions() []string {
	exts := make([]string, 0, len(v.kinds))
	for ext := range v.kinds {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Validate confirms path is an existing regular file with an accepted
// extension. It has no side effects.
func (v *Validator) Validate(path string) (Input, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Input{}, fmt.Errorf("%w: empty path", ErrNotFound)
	}

	info, err := v.stat(path)
	if err != nil {
		return Input{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if !info.Mode().IsRegular() {
		return Input{}, fmt.Errorf("%w: %s is not a regular file", ErrNotFound, path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	kind, ok := v.kinds[ext]
	if !ok {
		return Input{}, fmt.Errorf("%w: %q (accepted: %s)", ErrUnsupportedFormat, ext, strings.Join(v.Extensions(), " "))
	}

	return Input{Path: path, Kind: kind, Size: info.Size()}, nil
}
