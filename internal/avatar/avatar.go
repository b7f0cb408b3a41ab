// Package avatar stores player avatar images and hands back the reference
// string kept on the player row.
package avatar

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/officeladder/ladder/internal/domain"
)

// DefaultMaxBytes is the upload size limit used when none is configured.
const DefaultMaxBytes = 5 << 20

// Store persists avatar objects.
type Store interface {
	// Put writes body under key and returns the public reference for it.
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)

	// Delete removes the object behind ref. Refs not owned by the store are ignored.
	Delete(ctx context.Context, ref string) error
}

var allowedExt = map[string]string{
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Upload describes an incoming avatar file.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Validate checks the file extension, declared content type and size.
// It returns the normalized extension.
func (u Upload) Validate(maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	ext := strings.ToLower(filepath.Ext(u.Filename))
	want, ok := allowedExt[ext]
	if !ok {
		return "", domain.ErrValidation("only image files are allowed (jpeg, jpg, png, gif, webp)")
	}
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(u.ContentType, ";", 2)[0]))
	if ct != "" && ct != want && !(ext == ".jpg" && ct == "image/jpg") {
		return "", domain.ErrValidation(fmt.Sprintf("content type %s does not match %s", ct, ext))
	}
	if u.Size > maxBytes {
		return "", domain.ErrValidation(fmt.Sprintf("file exceeds %d byte limit", maxBytes))
	}
	return ext, nil
}

// ContentTypeFor returns the canonical image type for an allowed extension.
func ContentTypeFor(ext string) string {
	return allowedExt[ext]
}

// NewKey returns a unique object key for a player's avatar.
func NewKey(playerID uuid.UUID, ext string, now time.Time) string {
	return fmt.Sprintf("avatar-%s-%d%s", playerID, now.UnixMilli(), ext)
}
