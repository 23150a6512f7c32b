package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLimits(t *testing.T) {
	l := DefaultLimits()

	assert.Equal(t, int64(524288000), l.MaxFileSizeBytes)
	assert.Equal(t, 2, l.MaxConcurrentTasks)
	assert.InDelta(t, 60, l.NoTrimThresholdSeconds, 0.0001)
	assert.NoError(t, l.Validate())
}

func TestLimits_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Limits)
		wantErr bool
	}{
		{"defaults", func(*Limits) {}, false},
		{"zero size", func(l *Limits) { l.MaxFileSizeBytes = 0 }, true},
		{"zero concurrency", func(l *Limits) { l.MaxConcurrentTasks = 0 }, true},
		{"huge concurrency", func(l *Limits) { l.MaxConcurrentTasks = 1000 }, true},
		{"negative threshold", func(l *Limits) { l.NoTrimThresholdSeconds = -1 }, true},
		{"single task", func(l *Limits) { l.MaxConcurrentTasks = 1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := DefaultLimits()
			tt.modify(&l)
			err := l.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
