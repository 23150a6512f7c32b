package media

import (
	"strconv"
	"strings"
	"sync"
)

// parseProgressLine converts one line of ffmpeg "-progress" output into a
// completion percentage. Only out_time_us/out_time_ms lines carry position;
// both are reported in microseconds. The result is capped at 99 so that 100
// is only ever reported once the output file is finished.
func parseProgressLine(line string, durationSeconds float64) (int, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok || durationSeconds <= 0 {
		return 0, false
	}
	if key != "out_time_us" && key != "out_time_ms" {
		return 0, false
	}

	us, err := strconv.ParseInt(value, 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}

	percent := int(float64(us) / (durationSeconds * 1e6) * 100)
	if percent > 99 {
		percent = 99
	}
	return percent, true
}

// Monotonic wraps fn so that it only sees values in [0, 100] that are
// strictly greater than the previous one. A nil fn yields a no-op.
func Monotonic(fn ProgressFunc) ProgressFunc {
	if fn == nil {
		return func(int) {}
	}
	var (
		mu   sync.Mutex
		last = -1
	)
	return func(percent int) {
		percent = max(0, min(percent, 100))
		mu.Lock()
		if percent <= last {
			mu.Unlock()
			return
		}
		last = percent
		mu.Unlock()
		fn(percent)
	}
}
