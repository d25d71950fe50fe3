package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// BuildObjectAccessURL maps a stored object key to a caller-facing URL.
// Falls back to the raw key when no access base is configured.
func BuildObjectAccessURL(objectKey string) string {
	base := strings.TrimSpace(os.Getenv("STORAGE_ACCESS_BASE_URL"))
	if base != "" {
		if strings.Contains(base, "{objectKey}") {
			escaped := objectKey
			if strings.Contains(base, "?") {
				escaped = url.QueryEscape(objectKey)
			}
			return strings.ReplaceAll(base, "{objectKey}", escaped)
		}
		if strings.Contains(base, "?") {
			return base + url.QueryEscape(objectKey)
		}
		return strings.TrimRight(base, "/") + "/" + objectKey
	}

	gcsURL := strings.TrimSpace(os.Getenv("GCS_URL"))
	gcsBucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if gcsURL != "" && gcsBucket != "" {
		return "https://" + gcsURL + "/" + gcsBucket + "/" + objectKey
	}

	return objectKey
}

type serviceAccountJSON struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// SignDownloadURL produces a time-limited GET URL for an artifact. Requires
// GCS_CREDENTIALS_JSON with a signing key; returns an error otherwise so
// callers can fall back to BuildObjectAccessURL.
func SignDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error) {
	bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucket == "" {
		return "", errors.New("GCS_BUCKET is required")
	}

	credJSON := strings.TrimSpace(os.Getenv("GCS_CREDENTIALS_JSON"))
	if credJSON == "" {
		return "", errors.New("GCS_CREDENTIALS_JSON is required for signed downloads")
	}
	var key serviceAccountJSON
	if err := json.Unmarshal([]byte(credJSON), &key); err != nil {
		return "", fmt.Errorf("invalid GCS_CREDENTIALS_JSON: %w", err)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return "", errors.New("GCS_CREDENTIALS_JSON missing client_email/private_key")
	}

	opts := &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         "GET",
		Expires:        time.Now().Add(expires),
		GoogleAccessID: key.ClientEmail,
		PrivateKey:     []byte(key.PrivateKey),
	}
	return storage.SignedURL(bucket, objectKey, opts)
}
