package invoice

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	spaceRuns   = regexp.MustCompile(`\s+`)
)

// Spool keeps uploads on disk while they are being ingested
type Spool struct {
	basePath string
}

// NewSpool creates the spool directory if it doesn't exist
func NewSpool(basePath string) (*Spool, error) {
	if basePath == "" {
		basePath = filepath.Join(os.TempDir(), "invoice-scanner")
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating spool directory: %w", err)
	}
	return &Spool{basePath: basePath}, nil
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	base = unsafeChars.ReplaceAllString(base, "")
	base = spaceRuns.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "upload"
	}
	return base + ext
}

// Save streams r into a new spool file and returns its path. The name keeps
// the sanitized original so the extension survives.
func (s *Spool) Save(filename string, r io.Reader) (string, error) {
	path := filepath.Join(s.basePath, uuid.NewString()+"_"+sanitizeFilename(filename))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return "", fmt.Errorf("creating spool file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing spool file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing spool file: %w", err)
	}
	return path, nil
}

// Open reopens a spooled file for reading
func (s *Spool) Open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening spool file: %w", err)
	}
	return f, nil
}

// Delete removes a spooled file
func (s *Spool) Delete(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting spool file: %w", err)
	}
	return nil
}
