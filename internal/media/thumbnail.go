package media

import (
	"bytes"
	"context"
	"fmt"
	"image"

	// PNG decoder for the ffmpeg image2pipe output.
	_ "image/png"

	"github.com/disintegration/imaging"
)

const (
	// thumbnailOffsetSeconds skips the black or degenerate first frame many
	// phone clips start with.
	thumbnailOffsetSeconds = 0.5
	// thumbnailJPEGQuality is the encoder quality of the published still.
	thumbnailJPEGQuality = 80
)

// thumbnailOffset picks the seek position for a still: half a second in,
// clamped to [0, duration). Clips no longer than that use their midpoint.
// A zero duration has no frame to take.
func thumbnailOffset(durationSeconds float64) (float64, error) {
	if durationSeconds <= 0 {
		return 0, fmt.Errorf("%w: media has no duration", ErrThumbnailExtractionFailed)
	}
	if durationSeconds <= thumbnailOffsetSeconds {
		return durationSeconds / 2, nil
	}
	return thumbnailOffsetSeconds, nil
}

// ExtractThumbnail grabs one frame near the start of the clip and returns it
// as a JPEG at the clip's own resolution.
func (p *FFmpegProcessor) ExtractThumbnail(ctx context.Context, path string) ([]byte, error) {
	meta, err := p.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrThumbnailExtractionFailed, err)
	}

	offset, err := thumbnailOffset(meta.DurationSeconds)
	if err != nil {
		return nil, err
	}

	args := []string{
		"-hide_banner",
		"-ss", formatSeconds(offset),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	}

	out, err := p.runFFmpegOutput(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrThumbnailExtractionFailed, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: ffmpeg produced no frame", ErrThumbnailExtractionFailed)
	}

	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("%w: decode frame: %w", ErrThumbnailExtractionFailed, err)
	}

	return encodeThumbnail(img)
}

// encodeThumbnail encodes img as JPEG without resizing it.
func encodeThumbnail(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(thumbnailJPEGQuality)); err != nil {
		return nil, fmt.Errorf("%w: encode jpeg: %w", ErrThumbnailExtractionFailed, err)
	}
	return buf.Bytes(), nil
}
