package diagnostics

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/unbilled-sync/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeShooter struct {
	png []byte
	err error
}

func (f fakeShooter) Screenshot(context.Context) ([]byte, error) { return f.png, f.err }

type fakeStorage struct {
	uris []string
	err  error
}

func (f *fakeStorage) UploadBytes(_ context.Context, uri, contentType string, _ []byte) error {
	f.uris = append(f.uris, uri+" "+contentType)
	return f.err
}

var at = time.Date(2024, time.January, 5, 9, 4, 7, 0, time.UTC)

func testContext() (context.Context, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return logger.WithContext(context.Background(), logger.NewWithWriter(buf)), buf
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "bca_login_failed_20240105_090407.png", FileName("bca_login_failed", at))
}

func TestCapture(t *testing.T) {
	ctx, _ := testContext()
	dir := filepath.Join(t.TempDir(), "shots", "nested")
	storage := &fakeStorage{}
	c := &Capturer{Dir: dir, UploadPrefix: "gs://bucket/shots", Storage: storage, Now: func() time.Time { return at }}

	path := c.Capture(ctx, fakeShooter{png: []byte("png")}, "cimb_navigate")

	assert.Equal(t, filepath.Join(dir, "cimb_navigate_20240105_090407.png"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)
	assert.Equal(t, []string{"gs://bucket/shots/cimb_navigate_20240105_090407.png image/png"}, storage.uris)
}

func TestCapture_BestEffort(t *testing.T) {
	ctx, buf := testContext()

	c := &Capturer{Dir: t.TempDir(), Now: func() time.Time { return at }}
	assert.Empty(t, c.Capture(ctx, fakeShooter{err: errors.New("target closed")}, "bca"))
	assert.Contains(t, buf.String(), "Failed to capture screenshot")

	var nilCapturer *Capturer
	assert.Empty(t, nilCapturer.Capture(ctx, fakeShooter{png: []byte("x")}, "bca"))

	storage := &fakeStorage{err: errors.New("forbidden")}
	c = &Capturer{Dir: t.TempDir(), UploadPrefix: "gs://bucket", Storage: storage, Now: func() time.Time { return at }}
	path := c.Capture(ctx, fakeShooter{png: []byte("x")}, "bca")
	assert.NotEmpty(t, path)
	assert.Contains(t, buf.String(), "Failed to upload screenshot")
}
