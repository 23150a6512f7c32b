// Package media provides probing, thumbnailing, trimming and compression of
// user-submitted video clips.
package media

import "context"

// ProgressFunc receives an integer completion percentage (0-100).
type ProgressFunc func(percent int)

// Metadata describes a probed media file.
type Metadata struct {
	// DurationSeconds is the container duration. Zero when unknown.
	DurationSeconds float64
	// Width is the display width in pixels (rotation applied).
	Width int
	// Height is the display height in pixels (rotation applied).
	Height int
	// VideoCodec is the codec name of the first video stream.
	VideoCodec string
	// HasAudio reports whether an audio stream is present.
	HasAudio bool
}

// CompressResult describes the output of a compression run.
type CompressResult struct {
	// Path is the compressed file, or the source path when Skipped is true.
	Path string
	// OriginalSize is the source size in bytes.
	OriginalSize int64
	// CompressedSize is the output size in bytes.
	CompressedSize int64
	// Skipped is true when the source already fit the target profile.
	Skipped bool
	// Width and Height are the output dimensions.
	Width  int
	Height int
}

// CompressionSpec is the encode profile shared by every compression run.
// Per-job trim windows are applied beforehand by Trim, so a spec never
// carries offsets.
type CompressionSpec struct {
	MaxWidth     int
	MaxHeight    int
	VideoCodec   string
	Preset       string
	CRF          int
	AudioCodec   string
	AudioBitrate string
}

// DefaultCompressionSpec returns the normalized social playback profile:
// H.264 within 1280x720 at CRF 23 ("medium" preset) with 128 kbps AAC.
func DefaultCompressionSpec() CompressionSpec {
	return CompressionSpec{
		MaxWidth:     1280,
		MaxHeight:    720,
		VideoCodec:   "libx264",
		Preset:       "medium",
		CRF:          23,
		AudioCodec:   "aac",
		AudioBitrate: "128k",
	}
}

// Processor defines the media operations the task pipeline depends on.
// Implementations should use ffmpeg or similar tools for media manipulation.
type Processor interface {
	// Probe extracts duration and pixel dimensions without decoding the
	// whole file. Fails with ErrUnreadableMedia when headers cannot be read.
	Probe(ctx context.Context, path string) (Metadata, error)

	// ExtractThumbnail returns a JPEG still taken shortly after the start
	// of the clip. Fails with ErrThumbnailExtractionFailed.
	ExtractThumbnail(ctx context.Context, path string) ([]byte, error)

	// Trim stream-copies the [start, end) window of path into a new file and
	// returns its path. Fails with ErrTrimWindowTooLong when the window
	// exceeds the engine limit.
	Trim(ctx context.Context, path string, startSeconds, endSeconds float64) (string, error)

	// Compress re-encodes path to the target profile, or returns the source
	// unchanged with Skipped set when it already fits. onProgress is called
	// with non-decreasing values and finally with 100.
	Compress(ctx context.Context, path string, onProgress ProgressFunc) (CompressResult, error)
}
