package invoice

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// contentTypes lists the accepted extensions and their media type
var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// ValidateDocument checks that filename and contentType name the same
// supported type and returns the normalized media type. An empty
// contentType is inferred from the extension.
func ValidateDocument(filename, contentType string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	expected, ok := contentTypes[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, filename)
	}

	if strings.TrimSpace(contentType) == "" {
		return expected, nil
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, contentType)
	}
	if mediaType == "image/jpg" {
		mediaType = "image/jpeg"
	}
	if mediaType != expected {
		return "", fmt.Errorf("%w: %s does not match %s", ErrUnsupportedFileType, mediaType, ext)
	}
	return mediaType, nil
}
