package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ffmpegSampleRate is the canonical rate the demuxer fallback resamples to.
const ffmpegSampleRate = 16000

// writeTemp writes data to a temporary file and returns its path together
// with a cleanup function. Callers must defer the cleanup; removal failures
// are ignored.
func writeTemp(data []byte, suffix string) (string, func(), error) {
	f, err := os.CreateTemp("", "voicegraph-*"+suffix)
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }

	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return path, cleanup, nil
}

// ffmpegDecode demuxes an arbitrary container into 16kHz mono float32
// samples. It is the fallback path when the direct WAV reader fails.
func ffmpegDecode(data []byte, formatHint string) ([]float32, int, error) {
	suffix := ""
	if formatHint != "" {
		suffix = "." + formatHint
	}
	path, cleanup, err := writeTemp(data, suffix)
	if err != nil {
		return nil, 0, err
	}
	defer cleanup()

	cmd := exec.Command("ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", strconv.Itoa(ffmpegSampleRate),
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, 0, fmt.Errorf("%w: ffmpeg: %v (%s)", ErrDecode, err, strings.TrimSpace(stderr.String()))
	}

	raw := stdout.Bytes()
	if len(raw) < 2 {
		return nil, 0, fmt.Errorf("%w: ffmpeg produced no samples", ErrDecode)
	}

	samples := make([]float32, len(raw)/2)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
		samples[i] = float32(s) / 32768.0
	}
	return samples, ffmpegSampleRate, nil
}

// ffmpegConvert re-encodes an audio buffer into the target container.
func ffmpegConvert(data []byte, target Format) ([]byte, error) {
	in, cleanupIn, err := writeTemp(data, "")
	if err != nil {
		return nil, err
	}
	defer cleanupIn()

	out, cleanupOut, err := writeTemp(nil, "."+string(target))
	if err != nil {
		return nil, err
	}
	defer cleanupOut()

	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", in}
	switch target {
	case FormatWAV:
		args = append(args, "-f", "wav")
	case FormatOGG:
		args = append(args, "-c:a", "libvorbis", "-f", "ogg")
	case FormatMP3:
		args = append(args, "-f", "mp3")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, target)
	}
	args = append(args, out)

	var stderr bytes.Buffer
	cmd := exec.Command("ffmpeg", args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg convert to %s: %v (%s)", target, err, strings.TrimSpace(stderr.String()))
	}

	converted, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("read converted audio: %w", err)
	}
	return converted, nil
}

// ffprobeDuration asks ffprobe for the container duration in seconds.
func ffprobeDuration(data []byte) (float64, bool) {
	path, cleanup, err := writeTemp(data, "")
	if err != nil {
		return 0, false
	}
	defer cleanup()

	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return 0, false
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return seconds, true
}
