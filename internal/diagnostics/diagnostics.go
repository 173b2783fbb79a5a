// Package diagnostics saves screenshots of the browser page when a pipeline
// step fails. Capture is best effort and never returns an error.
package diagnostics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/unbilled-sync/internal/gcsuploader"
	"github.com/dvloznov/unbilled-sync/internal/logger"
)

// TimestampLayout is appended to every screenshot label.
const TimestampLayout = "20060102_150405"

// Shooter captures the current page as PNG.
type Shooter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Capturer writes screenshots to Dir and, when UploadPrefix is set, also
// uploads them under that gs:// prefix.
type Capturer struct {
	Dir          string
	UploadPrefix string
	Storage      gcsuploader.StorageService
	Now          func() time.Time
}

// FileName returns "<label>_<yyyyMMdd_HHmmss>.png".
func FileName(label string, at time.Time) string {
	return fmt.Sprintf("%s_%s.png", label, at.Format(TimestampLayout))
}

// Capture takes a screenshot and returns the local path it was written to, or
// "" when any part failed. Failures are logged.
func (c *Capturer) Capture(ctx context.Context, shooter Shooter, label string) string {
	log := logger.FromContext(ctx).With().Str("label", label).Logger()

	if c == nil || c.Dir == "" {
		log.Debug().Msg("Screenshot directory not configured, skipping screenshot")
		return ""
	}

	png, err := shooter.Screenshot(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to capture screenshot")
		return ""
	}

	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		log.Error().Err(err).Str("dir", c.Dir).Msg("Failed to create screenshot directory")
		return ""
	}

	name := FileName(label, c.now())
	path := filepath.Join(c.Dir, name)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to write screenshot")
		return ""
	}
	log.Info().Str("path", path).Msg("Screenshot saved")

	c.upload(ctx, name, png)
	return path
}

func (c *Capturer) upload(ctx context.Context, name string, png []byte) {
	if c.UploadPrefix == "" || c.Storage == nil {
		return
	}
	log := logger.FromContext(ctx)

	uri, err := gcsuploader.JoinGCSURI(c.UploadPrefix, name)
	if err != nil {
		log.Error().Err(err).Str("prefix", c.UploadPrefix).Msg("Invalid screenshot upload prefix")
		return
	}
	if err := c.Storage.UploadBytes(ctx, uri, "image/png", png); err != nil {
		log.Error().Err(err).Str("uri", uri).Msg("Failed to upload screenshot")
		return
	}
	log.Info().Str("uri", uri).Msg("Screenshot uploaded")
}

func (c *Capturer) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
