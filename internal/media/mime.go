package media

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DetectMIME sniffs the content type of the file at path from its leading
// bytes. The declared extension is not consulted.
func DetectMIME(path string) (string, error) {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detect mime type: %w", err)
	}
	return m.String(), nil
}

// IsVideoMIME reports whether mime names a video container.
func IsVideoMIME(mime string) bool {
	base, _, _ := strings.Cut(mime, ";")
	return strings.HasPrefix(strings.TrimSpace(strings.ToLower(base)), "video/")
}
