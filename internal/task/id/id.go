// Package id provides unique identifier generation for media tasks.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// Prefix starts every task ID.
const Prefix = "task-"

// Generate creates a new unique task ID.
// Format: task-<uuid v4>
// Example: task-9b2f6c1e-4f0a-4d53-8d3e-2a7c9e51b0aa
func Generate() string {
	return Prefix + uuid.NewString()
}

// Valid reports whether s looks like an ID produced by Generate.
func Valid(s string) bool {
	rest, ok := strings.CutPrefix(s, Prefix)
	if !ok {
		return false
	}
	return uuid.Validate(rest) == nil
}
