package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/minuteflow/minuteflow/internal/retry"
)

// Tool shells out to ffmpeg/ffprobe for conversion, clip extraction and
// duration probing. Invocations run under the file retry policy: a missing
// binary or unreadable input surfaces as a process error after bounded
// attempts.
type Tool struct {
	FFmpegBin  string
	FFprobeBin string
	Retry      *retry.Policy
	Log        *logrus.Logger
}

func NewTool(log *logrus.Logger) *Tool {
	p := retry.FilePolicy(retry.ClassifyFile)
	p.Log = log
	return &Tool{
		FFmpegBin:  "ffmpeg",
		FFprobeBin: "ffprobe",
		Retry:      p,
		Log:        log,
	}
}

// ConvertToWAV transcodes any input container to mono 16 kHz WAV, the format
// every downstream model expects. Returns the output path.
func (t *Tool) ConvertToWAV(ctx context.Context, srcPath, outDir string) (string, error) {
	if outDir == "" {
		outDir = os.TempDir()
	}
	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	out := filepath.Join(outDir, base+"_16k.wav")

	args := []string{
		"-y", "-i", srcPath,
		"-ac", "1", "-ar", "16000",
		"-f", "wav",
		out,
	}
	if err := t.run(ctx, t.FFmpegBin, args); err != nil {
		return "", err
	}
	return out, nil
}

// ExtractClip writes the [start, start+duration) span of srcPath to outPath
// as mono 16 kHz WAV. Seeking before the input keeps extraction fast on
// long recordings.
func (t *Tool) ExtractClip(ctx context.Context, srcPath string, start, duration float64, outPath string) error {
	args := []string{
		"-y",
		"-ss", formatSeconds(start),
		"-t", formatSeconds(duration),
		"-i", srcPath,
		"-ac", "1", "-ar", "16000",
		"-f", "wav",
		outPath,
	}
	return t.run(ctx, t.FFmpegBin, args)
}

// Duration probes the media duration in seconds.
func (t *Tool) Duration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	var out []byte
	err := t.Retry.Do(ctx, func() error {
		cmd := exec.CommandContext(ctx, t.FFprobeBin, args...)
		b, err := cmd.Output()
		if err != nil {
			return wrapExecErr(t.FFprobeBin, err)
		}
		out = b
		return nil
	})
	if err != nil {
		return 0, err
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: parse duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return secs, nil
}

func (t *Tool) run(ctx context.Context, bin string, args []string) error {
	return t.Retry.Do(ctx, func() error {
		cmd := exec.CommandContext(ctx, bin, args...)
		if out, err := cmd.CombinedOutput(); err != nil {
			return wrapExecErr(bin, fmt.Errorf("%w: %s", err, tail(out, 400)))
		}
		return nil
	})
}

func wrapExecErr(bin string, err error) error {
	return fmt.Errorf("%s: %w", bin, err)
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
