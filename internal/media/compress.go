package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/maauso/media-orchestrator/internal/metrics"
)

// Compress re-encodes path into the configured profile. Sources that already
// fit the bounds are returned untouched with Skipped set.
func (p *FFmpegProcessor) Compress(ctx context.Context, path string, onProgress ProgressFunc) (CompressResult, error) {
	report := Monotonic(onProgress)

	info, err := os.Stat(path)
	if err != nil {
		return CompressResult{}, fmt.Errorf("%w: stat source: %w", ErrCompressionFailed, err)
	}

	meta, err := p.Probe(ctx, path)
	if err != nil {
		return CompressResult{}, fmt.Errorf("%w: %w", ErrCompressionFailed, err)
	}

	spec := p.spec
	if !NeedsCompression(meta.Width, meta.Height, spec) {
		metrics.CompressionsSkippedTotal.Inc()
		p.logger.Info("compression skipped, source within bounds",
			slog.String("source", filepath.Base(path)),
			slog.Int("width", meta.Width),
			slog.Int("height", meta.Height),
		)
		report(100)
		return CompressResult{
			Path:           path,
			OriginalSize:   info.Size(),
			CompressedSize: info.Size(),
			Skipped:        true,
			Width:          meta.Width,
			Height:         meta.Height,
		}, nil
	}

	if err := p.Ready(ctx); err != nil {
		return CompressResult{}, fmt.Errorf("%w: %w", ErrCompressionFailed, err)
	}

	if err := p.workers.Acquire(ctx, 1); err != nil {
		return CompressResult{}, fmt.Errorf("%w: waiting for worker: %w", ErrCompressionFailed, err)
	}
	defer p.workers.Release(1)

	out, err := p.createTempOutput("compressed-*.mp4")
	if err != nil {
		return CompressResult{}, fmt.Errorf("%w: %w", ErrCompressionFailed, err)
	}

	width, height := ScaleToFit(meta.Width, meta.Height, spec.MaxWidth, spec.MaxHeight)
	report(0)

	start := time.Now()
	args := compressArgs(path, out, width, height, meta.HasAudio, spec)
	if err := p.runFFmpegProgress(ctx, args, meta.DurationSeconds, report); err != nil {
		_ = os.Remove(out)
		return CompressResult{}, fmt.Errorf("%w: %w", ErrCompressionFailed, err)
	}
	metrics.CompressionDuration.Observe(time.Since(start).Seconds())

	outInfo, err := os.Stat(out)
	if err != nil {
		_ = os.Remove(out)
		return CompressResult{}, fmt.Errorf("%w: stat output: %w", ErrCompressionFailed, err)
	}
	if saved := info.Size() - outInfo.Size(); saved > 0 {
		metrics.CompressionBytesSavedTotal.Add(float64(saved))
	}

	p.logger.Info("compressed media",
		slog.String("source", filepath.Base(path)),
		slog.Int("width", width),
		slog.Int("height", height),
		slog.Int64("original_bytes", info.Size()),
		slog.Int64("compressed_bytes", outInfo.Size()),
		slog.Duration("elapsed", time.Since(start)),
	)

	report(100)
	return CompressResult{
		Path:           out,
		OriginalSize:   info.Size(),
		CompressedSize: outInfo.Size(),
		Width:          width,
		Height:         height,
	}, nil
}

// compressArgs builds the re-encode command for a width x height output.
func compressArgs(src, dst string, width, height int, hasAudio bool, spec CompressionSpec) []string {
	args := []string{
		"-y", "-hide_banner",
		"-i", src,
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-c:v", spec.VideoCodec,
		"-preset", spec.Preset,
		"-crf", strconv.Itoa(spec.CRF),
		"-pix_fmt", "yuv420p",
	}
	if hasAudio {
		args = append(args, "-c:a", spec.AudioCodec, "-b:a", spec.AudioBitrate)
	} else {
		args = append(args, "-an")
	}

	return append(args,
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		"-nostats",
		dst,
	)
}
