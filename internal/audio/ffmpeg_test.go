package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/subtitler/internal/media"
)

// checkFFmpeg skips test if ffmpeg is not available.
func checkFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
}

// fakeRunner records the invocation and runs the injected behavior.
type fakeRunner struct {
	name string
	args []string
	run  func(args []string) (string, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	f.name = name
	f.args = append([]string(nil), args...)
	if f.run == nil {
		return "", nil
	}
	return f.run(args)
}

// writeTestWAV writes a minimal PCM WAV with dataBytes of silence. When
// withList is true a LIST chunk precedes the data chunk.
func writeTestWAV(t *testing.T, path string, dataBytes int, withList bool) {
	t.Helper()

	var body bytes.Buffer
	body.WriteString("WAVE")

	fmtChunk := make([]byte, 16)
	binary.LittleEndian.PutUint16(fmtChunk[0:2], 1)
	binary.LittleEndian.PutUint16(fmtChunk[2:4], Channels)
	binary.LittleEndian.PutUint32(fmtChunk[4:8], SampleRate)
	binary.LittleEndian.PutUint32(fmtChunk[8:12], SampleRate*Channels*BitsPerSample/8)
	binary.LittleEndian.PutUint16(fmtChunk[12:14], Channels*BitsPerSample/8)
	binary.LittleEndian.PutUint16(fmtChunk[14:16], BitsPerSample)
	writeChunk(&body, "fmt ", fmtChunk)

	if withList {
		writeChunk(&body, "LIST", []byte("INFOISFT\x03\x00\x00\x00ab\x00"))
	}
	writeChunk(&body, "data", make([]byte, dataBytes))

	var out bytes.Buffer
	out.WriteString("RIFF")
	_ = binary.Write(&out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())

	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o644))
}

func writeChunk(buf *bytes.Buffer, id string, payload []byte) {
	buf.WriteString(id)
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(payload)))
	buf.Write(payload)
	if len(payload)%2 == 1 {
		buf.WriteByte(0)
	}
}

func TestBuildArgs(t *testing.T) {
	args := buildArgs("in.mkv", "out.wav")

	assert.Equal(t, "out.wav", args[len(args)-1])
	assert.Subset(t, args, []string{"-y", "-vn", "pcm_s16le", "16000"})
	assert.Contains(t, args, "-i")
	for i, a := range args {
		switch a {
		case "-ac":
			assert.Equal(t, "1", args[i+1])
		case "-ar":
			assert.Equal(t, "16000", args[i+1])
		case "-c:a":
			assert.Equal(t, "pcm_s16le", args[i+1])
		case "-i":
			assert.Equal(t, "in.mkv", args[i+1])
		}
	}
}

func TestFFmpegNormalizer_Normalize(t *testing.T) {
	in := media.Input{Path: "talk.mp3", Kind: media.KindAudio}

	t.Run("success reports data size", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "artifact.wav")
		runner := &fakeRunner{run: func(args []string) (string, error) {
			writeTestWAV(t, args[len(args)-1], 64000, true)
			return "", nil
		}}
		n := NewFFmpegNormalizer("ffmpeg-custom")
		n.runner = runner

		artifact, err := n.Normalize(context.Background(), in, dst)
		require.NoError(t, err)
		assert.Equal(t, "ffmpeg-custom", runner.name)
		assert.Equal(t, dst, artifact.Path)
		assert.Equal(t, int64(64000), artifact.DataBytes)
		assert.Equal(t, 2*time.Second, artifact.Duration())
		assert.False(t, artifact.Empty())
	})

	t.Run("non-zero exit", func(t *testing.T) {
		n := NewFFmpegNormalizer("")
		n.runner = &fakeRunner{run: func([]string) (string, error) {
			return "Invalid data found when processing input", errors.New("exit status 1")
		}}

		_, err := n.Normalize(context.Background(), in, filepath.Join(t.TempDir(), "a.wav"))
		require.ErrorIs(t, err, ErrNormalizationFailed)
		assert.Contains(t, err.Error(), "Invalid data found")
	})

	t.Run("missing output", func(t *testing.T) {
		n := NewFFmpegNormalizer("")
		n.runner = &fakeRunner{}

		_, err := n.Normalize(context.Background(), in, filepath.Join(t.TempDir(), "a.wav"))
		assert.ErrorIs(t, err, ErrNormalizationFailed)
	})

	t.Run("garbage output", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "a.wav")
		n := NewFFmpegNormalizer("")
		n.runner = &fakeRunner{run: func([]string) (string, error) {
			return "", os.WriteFile(dst, []byte("not a wav file at all"), 0o644)
		}}

		_, err := n.Normalize(context.Background(), in, dst)
		assert.ErrorIs(t, err, ErrNormalizationFailed)
	})

	t.Run("binary missing", func(t *testing.T) {
		n := NewFFmpegNormalizer("definitely-not-a-real-ffmpeg-binary")

		_, err := n.Normalize(context.Background(), in, filepath.Join(t.TempDir(), "a.wav"))
		require.ErrorIs(t, err, ErrNormalizationFailed)
		assert.ErrorIs(t, err, exec.ErrNotFound)
	})
}

func TestArtifact_Empty(t *testing.T) {
	assert.True(t, Artifact{}.Empty())
	assert.Equal(t, time.Duration(0), Artifact{}.Duration())
}

func TestFFmpegNormalizer_RealFFmpeg(t *testing.T) {
	checkFFmpeg(t)

	dir := t.TempDir()
	src := filepath.Join(dir, "tone.flac")
	cmd := exec.Command("ffmpeg", "-y", "-f", "lavfi", "-i", "sine=frequency=440:duration=1.5",
		"-ac", "2", "-ar", "44100", src)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))

	n := NewFFmpegNormalizer("")
	in := media.Input{Path: src, Kind: media.KindAudio}
	dst := filepath.Join(dir, "artifact.wav")

	first, err := n.Normalize(context.Background(), in, dst)
	require.NoError(t, err)
	assert.InDelta(t, 1500*time.Millisecond, first.Duration(), float64(50*time.Millisecond))
	firstBytes, err := os.ReadFile(dst)
	require.NoError(t, err)

	// Re-running over the same path overwrites it with identical bytes.
	second, err := n.Normalize(context.Background(), in, dst)
	require.NoError(t, err)
	secondBytes, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, firstBytes, secondBytes)
}
