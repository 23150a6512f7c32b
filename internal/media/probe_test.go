package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProbeOutput(t *testing.T) {
	t.Run("video with audio", func(t *testing.T) {
		data := []byte(`{
			"streams": [
				{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080, "duration": "12.480000"},
				{"codec_type": "audio", "codec_name": "aac"}
			],
			"format": {"duration": "12.500000"}
		}`)

		meta, err := parseProbeOutput(data)
		require.NoError(t, err)
		assert.Equal(t, 1920, meta.Width)
		assert.Equal(t, 1080, meta.Height)
		assert.Equal(t, "h264", meta.VideoCodec)
		assert.True(t, meta.HasAudio)
		assert.InDelta(t, 12.5, meta.DurationSeconds, 0.0001)
	})

	t.Run("rotation from side data swaps dimensions", func(t *testing.T) {
		data := []byte(`{
			"streams": [
				{"codec_type": "video", "codec_name": "hevc", "width": 1920, "height": 1080,
				 "side_data_list": [{"rotation": -90}]}
			],
			"format": {"duration": "3.0"}
		}`)

		meta, err := parseProbeOutput(data)
		require.NoError(t, err)
		assert.Equal(t, 1080, meta.Width)
		assert.Equal(t, 1920, meta.Height)
		assert.False(t, meta.HasAudio)
	})

	t.Run("legacy rotate tag", func(t *testing.T) {
		data := []byte(`{
			"streams": [
				{"codec_type": "video", "width": 1280, "height": 720, "tags": {"rotate": "270"}}
			],
			"format": {"duration": "1.0"}
		}`)

		meta, err := parseProbeOutput(data)
		require.NoError(t, err)
		assert.Equal(t, 720, meta.Width)
		assert.Equal(t, 1280, meta.Height)
	})

	t.Run("upside down keeps dimensions", func(t *testing.T) {
		data := []byte(`{
			"streams": [
				{"codec_type": "video", "width": 1280, "height": 720, "tags": {"rotate": "180"}}
			],
			"format": {"duration": "1.0"}
		}`)

		meta, err := parseProbeOutput(data)
		require.NoError(t, err)
		assert.Equal(t, 1280, meta.Width)
		assert.Equal(t, 720, meta.Height)
	})

	t.Run("duration falls back to stream", func(t *testing.T) {
		data := []byte(`{
			"streams": [
				{"codec_type": "video", "width": 640, "height": 480, "duration": "7.25"}
			],
			"format": {"duration": "N/A"}
		}`)

		meta, err := parseProbeOutput(data)
		require.NoError(t, err)
		assert.InDelta(t, 7.25, meta.DurationSeconds, 0.0001)
	})

	t.Run("unknown duration is zero", func(t *testing.T) {
		data := []byte(`{"streams": [{"codec_type": "video", "width": 640, "height": 480}], "format": {}}`)

		meta, err := parseProbeOutput(data)
		require.NoError(t, err)
		assert.Zero(t, meta.DurationSeconds)
	})

	t.Run("audio only", func(t *testing.T) {
		data := []byte(`{"streams": [{"codec_type": "audio", "codec_name": "mp3"}], "format": {"duration": "200"}}`)

		_, err := parseProbeOutput(data)
		assert.ErrorIs(t, err, ErrUnreadableMedia)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := parseProbeOutput([]byte(`{"streams": [`))
		assert.ErrorIs(t, err, ErrUnreadableMedia)
	})
}

func TestParseSeconds(t *testing.T) {
	assert.InDelta(t, 1.5, parseSeconds("1.5"), 0.0001)
	assert.Zero(t, parseSeconds("N/A"))
	assert.Zero(t, parseSeconds(""))
	assert.Zero(t, parseSeconds("-3"))
	assert.Zero(t, parseSeconds("NaN"))
}
