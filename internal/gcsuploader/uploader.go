package gcsuploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// UploadBytes uploads data to the object named by gcsURI.
// It assumes Application Default Credentials are configured (gcloud auth application-default login).
func UploadBytes(ctx context.Context, gcsURI, contentType string, data []byte) error {
	bucketName, objectName, err := ParseGCSURI(gcsURI)
	if err != nil {
		return err
	}
	if objectName == "" {
		return fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy bytes to GCS writer: %w", err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload of %s: %w", gcsURI, err)
	}
	return nil
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object path.
// The object path may be empty for a bare bucket URI.
func ParseGCSURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}

	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no bucket): %s", gcsURI)
	}
	if len(parts) == 1 {
		return parts[0], "", nil
	}
	return parts[0], parts[1], nil
}

// JoinGCSURI appends name to a gs://bucket[/prefix] URI.
// e.g., ("gs://bucket/shots/", "a.png") → "gs://bucket/shots/a.png"
func JoinGCSURI(prefix, name string) (string, error) {
	bucket, object, err := ParseGCSURI(prefix)
	if err != nil {
		return "", err
	}
	return "gs://" + bucket + "/" + strings.TrimPrefix(path.Join(object, name), "/"), nil
}
