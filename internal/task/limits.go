package task

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Limits bounds what a session may submit. They are read at admission time
// only; changing them never affects a running pipeline.
type Limits struct {
	// MaxFileSizeBytes rejects larger files before any processing.
	MaxFileSizeBytes int64 `json:"max_file_size_bytes" validate:"gt=0"`
	// MaxConcurrentTasks caps how many tasks may be in flight.
	MaxConcurrentTasks int `json:"max_concurrent_tasks" validate:"gte=1,lte=64"`
	// NoTrimThresholdSeconds routes longer clips to the trim selector.
	NoTrimThresholdSeconds float64 `json:"no_trim_threshold_seconds" validate:"gt=0"`
}

// DefaultLimits returns 500 MiB, two concurrent tasks and a 60 second
// untrimmed maximum.
func DefaultLimits() Limits {
	return Limits{
		MaxFileSizeBytes:       500 * 1024 * 1024,
		MaxConcurrentTasks:     2,
		NoTrimThresholdSeconds: 60,
	}
}

var limitsValidator = validator.New()

// Validate checks that every limit is usable.
func (l Limits) Validate() error {
	if err := limitsValidator.Struct(l); err != nil {
		return fmt.Errorf("invalid limits: %w", err)
	}
	return nil
}
