package diagnostics

import (
	"context"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestObjectNameIsSafe(t *testing.T) {
	name := ObjectName("Confirm missing / Court 3", time.Date(2026, time.February, 24, 21, 0, 0, 0, time.UTC), pngHeader)
	require.Regexp(t, regexp.MustCompile(`^20260224-210000-confirm-missing-court-3-[0-9a-f]{8}\.png$`), name)
	require.Contains(t, ObjectName("///", time.Now(), pngHeader), "-capture-")
}

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
)

func TestObjectNameFollowsImageFormat(t *testing.T) {
	now := time.Date(2026, time.February, 24, 21, 0, 0, 0, time.UTC)
	require.True(t, strings.HasSuffix(ObjectName("shot", now, pngHeader), ".png"))
	require.True(t, strings.HasSuffix(ObjectName("shot", now, jpegHeader), ".jpg"))

	_, contentType := imageFormat(jpegHeader)
	require.Equal(t, "image/jpeg", contentType)
	_, contentType = imageFormat(pngHeader)
	require.Equal(t, "image/png", contentType)
}

func TestDirSinkRoundTrip(t *testing.T) {
	directory := filepath.Join(t.TempDir(), "shots")
	sink := NewDirSink(directory)

	handle, err := sink.Save(context.Background(), "slot-unknown", []byte("png-bytes"))
	require.NoError(t, err)
	require.Equal(t, "slot-unknown", handle.Name)
	require.Equal(t, directory, filepath.Dir(handle.Location))

	reader, err := sink.Open(context.Background(), handle)
	require.NoError(t, err)
	defer reader.Close()
	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, "png-bytes", string(content))
}

func TestSanitizeEndpoint(t *testing.T) {
	require.Equal(t, "account.r2.cloudflarestorage.com", sanitizeEndpoint("https://account.r2.cloudflarestorage.com/bucket"))
	require.Equal(t, "localhost:9000", sanitizeEndpoint(" http://localhost:9000 "))
}

func TestNopSinkCannotOpen(t *testing.T) {
	handle, err := NopSink{}.Save(context.Background(), "x", nil)
	require.NoError(t, err)
	_, err = NopSink{}.Open(context.Background(), handle)
	require.Error(t, err)
}
