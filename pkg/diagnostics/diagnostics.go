// Package diagnostics stores screenshots captured on failure paths so a human can review them.
package diagnostics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	pngContentType  = "image/png"
	jpegContentType = "image/jpeg"
)

var unsafeNameCharacters = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Handle is an opaque reference to a stored capture.
type Handle struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

type Sink interface {
	Save(ctx context.Context, name string, image []byte) (Handle, error)
	Open(ctx context.Context, handle Handle) (io.ReadCloser, error)
}

// ObjectName builds a collision free, filesystem safe name like
// "20260224-210000-confirm-missing-1a2b3c4d.png". The extension follows the image bytes.
func ObjectName(name string, now time.Time, image []byte) string {
	cleaned := strings.Trim(unsafeNameCharacters.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if cleaned == "" {
		cleaned = "capture"
	}
	extension, _ := imageFormat(image)
	return fmt.Sprintf("%s-%s-%s%s", now.UTC().Format("20060102-150405"), cleaned, uuid.NewString()[:8], extension)
}

// imageFormat sniffs a capture; anything that is not JPEG is stored as PNG.
func imageFormat(image []byte) (extension string, contentType string) {
	if http.DetectContentType(image) == jpegContentType {
		return ".jpg", jpegContentType
	}
	return ".png", pngContentType
}

// DirSink writes captures into a local directory.
type DirSink struct {
	directory string
	now       func() time.Time
}

func NewDirSink(directory string) *DirSink {
	return &DirSink{directory: directory, now: time.Now}
}

func (s *DirSink) Save(ctx context.Context, name string, image []byte) (Handle, error) {
	if err := os.MkdirAll(s.directory, 0o755); err != nil {
		return Handle{}, fmt.Errorf("create diagnostics dir: %w", err)
	}
	objectName := ObjectName(name, s.now(), image)
	path := filepath.Join(s.directory, objectName)
	if err := os.WriteFile(path, image, 0o644); err != nil {
		return Handle{}, fmt.Errorf("write diagnostic: %w", err)
	}
	return Handle{Name: name, Location: path}, nil
}

func (s *DirSink) Open(ctx context.Context, handle Handle) (io.ReadCloser, error) {
	return os.Open(handle.Location)
}

// NopSink discards captures.
type NopSink struct{}

func (NopSink) Save(ctx context.Context, name string, image []byte) (Handle, error) {
	return Handle{Name: name}, nil
}

func (NopSink) Open(ctx context.Context, handle Handle) (io.ReadCloser, error) {
	return nil, fmt.Errorf("diagnostic %q was not stored", handle.Name)
}
