// Package upload stores raster images with an external blob-storage
// service and hands back a public URL usable both for display and as
// input to the generation service.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"
)

// AssetRef is an opaque, dereferenceable reference to a stored asset,
// typically a URL.
type AssetRef string

// Metadata describes how an upload should be stored.
type Metadata struct {
	FileName string
	Folder   string
	MIME     string
}

// Uploader stores image bytes and returns a stable public reference.
// A single call, no retries: transient failures are surfaced as
// *NetworkError so the caller can decide to retry.
type Uploader interface {
	Upload(ctx context.Context, data []byte, meta Metadata) (AssetRef, error)
}

// NetworkError is a transient transport-level failure. Retrying may help.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "upload: network: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// RejectedError is a permanent rejection by the storage service
// (payload too large, invalid format). Retrying will not help.
type RejectedError struct {
	Status int
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("upload: rejected (%d): %s", e.Status, e.Reason)
}

// HTTPUploader uploads to an upload-js style endpoint: a POST of the raw
// bytes with the destination path in headers, answered with JSON
// {"fileUrl": "..."}.
type HTTPUploader struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPUploader creates an uploader for the given service endpoint.
func NewHTTPUploader(baseURL, apiKey string) *HTTPUploader {
	return &HTTPUploader{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type uploadResponse struct {
	FileURL string `json:"fileUrl"`
}

// Upload stores data and returns its public URL. The input slice is
// never modified.
func (u *HTTPUploader) Upload(ctx context.Context, data []byte, meta Metadata) (AssetRef, error) {
	if meta.MIME == "" {
		meta.MIME = "image/png"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("upload: build request: %w", err)
	}
	req.Header.Set("Content-Type", meta.MIME)
	req.Header.Set("Authorization", "Bearer "+u.apiKey)
	if meta.Folder != "" {
		req.Header.Set("X-Upload-Folder", meta.Folder)
	}
	if meta.FileName != "" {
		req.Header.Set("X-Upload-Name", meta.FileName)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return "", &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &NetworkError{Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", &RejectedError{Status: resp.StatusCode, Reason: string(body)}
	default:
		return "", &NetworkError{Err: fmt.Errorf("status %d: %s", resp.StatusCode, body)}
	}

	var out uploadResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &NetworkError{Err: fmt.Errorf("parse response: %w", err)}
	}
	if out.FileURL == "" {
		return "", &NetworkError{Err: fmt.Errorf("response missing fileUrl")}
	}
	return AssetRef(out.FileURL), nil
}

// ScribbleMetadata builds the destination naming policy for a sketch
// upload: a dated folder and a file name with a unique 8-digit suffix.
func ScribbleMetadata(now time.Time) Metadata {
	return Metadata{
		Folder:   "/uploads/scribbles/" + now.UTC().Format("2006-01-02"),
		FileName: fmt.Sprintf("scribble_input_%08d.png", rand.Intn(100000000)),
		MIME:     "image/png",
	}
}
