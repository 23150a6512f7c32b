package media

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sync/semaphore"
)

// Static errors for media operations.
var (
	// ErrUnreadableMedia is returned when the container or its video stream
	// cannot be read.
	ErrUnreadableMedia = errors.New("unreadable media")
	// ErrThumbnailExtractionFailed is returned when no still frame could be produced.
	ErrThumbnailExtractionFailed = errors.New("thumbnail extraction failed")
	// ErrTrimWindowTooLong is returned when a trim window exceeds the engine limit.
	ErrTrimWindowTooLong = errors.New("trim window too long")
	// ErrInvalidTrimWindow is returned when start/end offsets are malformed.
	ErrInvalidTrimWindow = errors.New("invalid trim window")
	// ErrCompressionFailed is returned when re-encoding fails.
	ErrCompressionFailed = errors.New("compression failed")
	// ErrEngineUnavailable is returned when ffmpeg or a required encoder is missing.
	ErrEngineUnavailable = errors.New("ffmpeg engine unavailable")
)

// DefaultMaxTrimWindowSeconds is the longest window Trim accepts.
const DefaultMaxTrimWindowSeconds = 60.0

// FFmpegProcessor implements Processor using the ffmpeg and ffprobe CLIs.
//
// The processor is an explicitly owned engine handle: the first operation
// that needs the encoder verifies the ffmpeg installation once, and
// transcodes run on a bounded set of worker slots.
type FFmpegProcessor struct {
	ffmpegPath    string
	ffprobePath   string
	tempDir       string
	spec          CompressionSpec
	maxTrimWindow float64
	workers       *semaphore.Weighted
	logger        *slog.Logger

	ready  initGate
	initFn func(ctx context.Context) error
}

// Option configures an FFmpegProcessor.
type Option func(*FFmpegProcessor)

// WithFFmpegPath sets the ffmpeg binary. Empty keeps the PATH lookup.
func WithFFmpegPath(path string) Option {
	return func(p *FFmpegProcessor) {
		if path != "" {
			p.ffmpegPath = path
		}
	}
}

// WithFFprobePath sets the ffprobe binary. Empty keeps the PATH lookup.
func WithFFprobePath(path string) Option {
	return func(p *FFmpegProcessor) {
		if path != "" {
			p.ffprobePath = path
		}
	}
}

// WithWorkers sets how many transcodes may run at once.
func WithWorkers(n int) Option {
	return func(p *FFmpegProcessor) {
		if n > 0 {
			p.workers = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithCompressionSpec overrides the target encoding profile.
func WithCompressionSpec(spec CompressionSpec) Option {
	return func(p *FFmpegProcessor) {
		p.spec = spec
	}
}

// WithMaxTrimWindow overrides the longest window Trim accepts.
func WithMaxTrimWindow(seconds float64) Option {
	return func(p *FFmpegProcessor) {
		if seconds > 0 {
			p.maxTrimWindow = seconds
		}
	}
}

// WithLogger sets the processor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *FFmpegProcessor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewFFmpegProcessor creates a new FFmpegProcessor writing intermediate
// files into tempDir. If tempDir is empty, os.TempDir() is used.
func NewFFmpegProcessor(tempDir string, opts ...Option) *FFmpegProcessor {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	p := &FFmpegProcessor{
		ffmpegPath:    "ffmpeg",
		ffprobePath:   "ffprobe",
		tempDir:       tempDir,
		spec:          DefaultCompressionSpec(),
		maxTrimWindow: DefaultMaxTrimWindowSeconds,
		workers:       semaphore.NewWeighted(2),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.initFn = p.verifyEncoders
	return p
}

// Ready performs the one-time engine initialization, or waits for one in
// progress. A failed initialization is retried by the next caller.
func (p *FFmpegProcessor) Ready(ctx context.Context) error {
	return p.ready.Do(ctx, p.initFn)
}

// verifyEncoders checks that ffmpeg runs and ships the encoders the target
// profile needs.
func (p *FFmpegProcessor) verifyEncoders(ctx context.Context) error {
	if _, err := exec.LookPath(p.ffmpegPath); err != nil {
		return fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}

	out, err := p.runFFmpegOutput(ctx, []string{"-hide_banner", "-encoders"})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}

	encoders := string(out)
	for _, name := range []string{p.spec.VideoCodec, p.spec.AudioCodec} {
		if !strings.Contains(encoders, " "+name+" ") {
			return fmt.Errorf("%w: encoder %q not available", ErrEngineUnavailable, name)
		}
	}

	p.logger.Info("ffmpeg engine ready",
		slog.String("ffmpeg", p.ffmpegPath),
		slog.String("video_codec", p.spec.VideoCodec),
		slog.String("audio_codec", p.spec.AudioCodec),
	)
	return nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	_, err := p.runFFmpegOutput(ctx, args)
	return err
}

// runFFmpegOutput executes ffmpeg and returns its stdout.
func (p *FFmpegProcessor) runFFmpegOutput(ctx context.Context, args []string) ([]byte, error) {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return nil, &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return stdout.Bytes(), nil
}

// runFFmpegProgress executes ffmpeg with "-progress pipe:1" output on stdout
// and forwards parsed percentages relative to durationSeconds.
func (p *FFmpegProcessor) runFFmpegProgress(ctx context.Context, args []string, durationSeconds float64, onProgress ProgressFunc) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	scanProgress(stdout, durationSeconds, onProgress)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return nil
}

// scanProgress reads ffmpeg progress key=value lines until EOF.
func scanProgress(r io.Reader, durationSeconds float64, onProgress ProgressFunc) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if percent, ok := parseProgressLine(scanner.Text(), durationSeconds); ok {
			onProgress(percent)
		}
	}
	// Drain so ffmpeg never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

// Error reports the exit status and the last stderr line, which is where
// ffmpeg prints the fatal cause. The full output stays in Stderr.
func (e *FFmpegError) Error() string {
	if last := lastLine(e.Stderr); last != "" {
		return fmt.Sprintf("ffmpeg error: %v: %s", e.Err, last)
	}
	return fmt.Sprintf("ffmpeg error: %v", e.Err)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// createTempOutput reserves a unique file name in the processor temp dir.
func (p *FFmpegProcessor) createTempOutput(pattern string) (string, error) {
	if err := os.MkdirAll(p.tempDir, 0750); err != nil {
		return "", fmt.Errorf("create temp directory: %w", err)
	}
	f, err := os.CreateTemp(p.tempDir, pattern)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return name, nil
}

// Verify interface implementation at compile time.
var _ Processor = (*FFmpegProcessor)(nil)
