package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/maauso/media-orchestrator/internal/metrics"
)

// validateTrimWindow checks that [start, end) is a well-formed window no
// longer than maxSeconds.
func validateTrimWindow(start, end, maxSeconds float64) error {
	if start < 0 || end <= start {
		return fmt.Errorf("%w: start=%.3f end=%.3f", ErrInvalidTrimWindow, start, end)
	}
	if maxSeconds > 0 && end-start > maxSeconds {
		return fmt.Errorf("%w: %.3fs exceeds %.0fs", ErrTrimWindowTooLong, end-start, maxSeconds)
	}
	return nil
}

// trimArgs builds a stream-copy cut. Timestamps are shifted to start at zero
// so players do not show a blank lead-in.
func trimArgs(src, dst string, start, end float64) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-ss", formatSeconds(start),
		"-i", src,
		"-t", formatSeconds(end - start),
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
	}
	if supportsFaststart(dst) {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, dst)
}

// Trim cuts [startSeconds, endSeconds) out of path without re-encoding.
// The output keeps the source container.
func (p *FFmpegProcessor) Trim(ctx context.Context, path string, startSeconds, endSeconds float64) (string, error) {
	if err := validateTrimWindow(startSeconds, endSeconds, p.maxTrimWindow); err != nil {
		metrics.TrimsTotal.WithLabelValues("rejected").Inc()
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		ext = ".mp4"
	}
	out, err := p.createTempOutput("trim-*" + ext)
	if err != nil {
		return "", err
	}

	if err := p.runFFmpeg(ctx, trimArgs(path, out, startSeconds, endSeconds)); err != nil {
		_ = os.Remove(out)
		metrics.TrimsTotal.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("trim %s: %w", filepath.Base(path), err)
	}

	metrics.TrimsTotal.WithLabelValues("ok").Inc()
	p.logger.Debug("trimmed media",
		slog.String("source", filepath.Base(path)),
		slog.String("output", filepath.Base(out)),
		slog.String("start", formatSeconds(startSeconds)),
		slog.String("end", formatSeconds(endSeconds)),
	)
	return out, nil
}

func supportsFaststart(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mov", ".m4v":
		return true
	}
	return false
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
