// Package archive stores finished voice captures in object storage so they
// can be replayed when debugging bad transcriptions. Uploads are best effort;
// the pipeline never depends on them.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/qiniu/go-sdk/v7/auth"
	"github.com/qiniu/go-sdk/v7/storage"
)

// Uploader pushes capture payloads to a configured bucket.
type Uploader struct {
	accessKey string
	secretKey string
	bucket    string
	domain    string
}

// NewUploader creates an uploader. Returns nil when credentials are missing,
// which callers treat as archiving disabled.
func NewUploader(accessKey, secretKey, bucket, domain string) *Uploader {
	if accessKey == "" || secretKey == "" {
		return nil
	}
	if bucket == "" {
		bucket = "lifetrack-captures"
	}
	if domain == "" {
		domain = bucket + ".example.com"
	}
	return &Uploader{
		accessKey: accessKey,
		secretKey: secretKey,
		bucket:    bucket,
		domain:    domain,
	}
}

// UploadCapture stores one audio payload and returns its public URL.
func (u *Uploader) UploadCapture(ctx context.Context, data []byte, mimeType string) (string, error) {
	mac := auth.New(u.accessKey, u.secretKey)
	putPolicy := storage.PutPolicy{Scope: u.bucket}
	upToken := putPolicy.UploadToken(mac)

	cfg := storage.Config{UseHTTPS: true}
	uploader := storage.NewFormUploader(&cfg)
	ret := storage.PutRet{}

	ext := "bin"
	if mimeType == "audio/wav" {
		ext = "wav"
	}
	key := fmt.Sprintf("captures/%d.%s", time.Now().UnixNano(), ext)

	extra := &storage.PutExtra{MimeType: mimeType}
	if err := uploader.Put(ctx, &ret, upToken, key, bytes.NewReader(data), int64(len(data)), extra); err != nil {
		return "", fmt.Errorf("failed to upload capture: %w", err)
	}

	url := fmt.Sprintf("https://%s/%s", u.domain, key)
	log.Printf("Capture uploaded: %s (%d bytes)", url, len(data))
	return url, nil
}
