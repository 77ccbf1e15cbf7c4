package service

import (
	"fmt"
	"strings"

	"github.com/sefazor/guestdrop-backend/internal/apperr"
	"github.com/sefazor/guestdrop-backend/internal/models"
)

const (
	MiB = int64(1) << 20
	GiB = int64(1) << 30
)

type mediaRule struct {
	ext     string
	maxSize int64
}

// UploadPolicy is the allow-list of MIME types and size ceilings for one
// compression mode.
type UploadPolicy struct {
	rules map[string]mediaRule
}

var standardImages = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/heic": "heic",
	"image/heif": "heif",
	"image/gif":  "gif",
}

var rawImages = map[string]string{
	"image/x-adobe-dng": "dng",
	"image/x-canon-cr2": "cr2",
	"image/x-canon-cr3": "cr3",
	"image/x-nikon-nef": "nef",
	"image/x-sony-arw":  "arw",
	"image/tiff":        "tiff",
}

var videos = map[string]string{
	"video/mp4":       "mp4",
	"video/quicktime": "mov",
}

var (
	standardPolicy = newPolicy(map[int64]map[string]string{
		25 * MiB: standardImages,
	})
	originalPolicy = newPolicy(map[int64]map[string]string{
		50 * MiB:  standardImages,
		150 * MiB: rawImages,
		1 * GiB:   videos,
	})
)

func newPolicy(groups map[int64]map[string]string) UploadPolicy {
	rules := make(map[string]mediaRule)
	for maxSize, types := range groups {
		for mime, ext := range types {
			rules[mime] = mediaRule{ext: ext, maxSize: maxSize}
		}
	}
	return UploadPolicy{rules: rules}
}

// PolicyFor returns the upload policy of a compression mode.
func PolicyFor(mode models.CompressionMode) UploadPolicy {
	if mode == models.CompressionOriginal {
		return originalPolicy
	}
	return standardPolicy
}

func normalizeMime(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// Check validates a declared type and size and returns the file extension
// used in the blob path.
func (p UploadPolicy) Check(mimeType string, size int64) (string, error) {
	rule, ok := p.rules[normalizeMime(mimeType)]
	if !ok {
		return "", apperr.UnsupportedType(fmt.Sprintf("%s is not accepted for this event", mimeType))
	}
	if size <= 0 {
		return "", apperr.InvalidInput("size_bytes must be positive")
	}
	if size > rule.maxSize {
		return "", apperr.FileTooLarge(fmt.Sprintf("%s uploads are limited to %d MiB", mimeType, rule.maxSize/MiB))
	}
	return rule.ext, nil
}

// MaxSize is the ceiling for mimeType, or zero when the type is not allowed.
func (p UploadPolicy) MaxSize(mimeType string) int64 {
	return p.rules[normalizeMime(mimeType)].maxSize
}
