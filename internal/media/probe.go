package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
)

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

type ffprobeStream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Duration  string `json:"duration"`
	Tags      struct {
		Rotate string `json:"rotate"`
	} `json:"tags"`
	SideDataList []struct {
		Rotation float64 `json:"rotation"`
	} `json:"side_data_list"`
}

// Probe reads container and stream headers with ffprobe.
func (p *FFmpegProcessor) Probe(ctx context.Context, path string) (Metadata, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Metadata{}, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return Metadata{}, fmt.Errorf("%w: ffprobe: %w: %s", ErrUnreadableMedia, err, lastLine(stderr.String()))
	}

	return parseProbeOutput(stdout.Bytes())
}

// parseProbeOutput extracts Metadata from ffprobe JSON output.
func parseProbeOutput(data []byte) (Metadata, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Metadata{}, fmt.Errorf("%w: parse ffprobe output: %w", ErrUnreadableMedia, err)
	}

	var (
		meta  Metadata
		video *ffprobeStream
	)
	for i := range out.Streams {
		s := &out.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil {
				video = s
			}
		case "audio":
			meta.HasAudio = true
		}
	}
	if video == nil || video.Width <= 0 || video.Height <= 0 {
		return Metadata{}, fmt.Errorf("%w: no video stream", ErrUnreadableMedia)
	}

	meta.VideoCodec = video.CodecName
	meta.Width, meta.Height = video.Width, video.Height
	if isQuarterTurn(streamRotation(video)) {
		meta.Width, meta.Height = meta.Height, meta.Width
	}

	meta.DurationSeconds = parseSeconds(out.Format.Duration)
	if meta.DurationSeconds == 0 {
		meta.DurationSeconds = parseSeconds(video.Duration)
	}

	return meta, nil
}

// streamRotation returns the rotation in degrees from the display matrix
// side data, falling back to the legacy rotate tag.
func streamRotation(s *ffprobeStream) float64 {
	for _, sd := range s.SideDataList {
		if sd.Rotation != 0 {
			return sd.Rotation
		}
	}
	if s.Tags.Rotate != "" {
		if v, err := strconv.ParseFloat(s.Tags.Rotate, 64); err == nil {
			return v
		}
	}
	return 0
}

func isQuarterTurn(degrees float64) bool {
	return math.Mod(math.Abs(degrees), 180) == 90
}

// parseSeconds parses an ffprobe duration, treating "N/A" and garbage as 0.
func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
