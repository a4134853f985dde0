/*
Package keys defines the object key layout for albums. The layout is part of
the external contract: any reader that can construct these keys from a
manifest can fetch renditions directly, so it must never change shape.

	{album-id}/manifest.json
	{album-id}/thumbnails/{image-id}.jpg
	{album-id}/previews/{image-id}.jpg
	{album-id}/originals/{image-id}.jpg
*/
package keys

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type RenditionClass string

const (
	ClassThumbnail RenditionClass = "thumbnails"
	ClassPreview   RenditionClass = "previews"
	ClassOriginal  RenditionClass = "originals"
)

/*
NewImageID returns a fresh identifier for an image. Identifiers are random
UUIDs, never derived from the original filename, so unsafe characters and
duplicate filenames in the source set can't collide in the bucket.
*/
func NewImageID() string {
	return uuid.New().String()
}

/*
IsValidClass reports whether s names one of the three rendition classes.
*/
func IsValidClass(s string) bool {
	switch RenditionClass(s) {
	case ClassThumbnail, ClassPreview, ClassOriginal:
		return true
	}

	return false
}

func ManifestKey(albumID string) string {
	return fmt.Sprintf("%s/manifest.json", albumID)
}

func RenditionKey(albumID string, class RenditionClass, imageID string) string {
	return fmt.Sprintf("%s/%s/%s.jpg", albumID, class, imageID)
}

func ThumbnailKey(albumID, imageID string) string {
	return RenditionKey(albumID, ClassThumbnail, imageID)
}

func PreviewKey(albumID, imageID string) string {
	return RenditionKey(albumID, ClassPreview, imageID)
}

func OriginalKey(albumID, imageID string) string {
	return RenditionKey(albumID, ClassOriginal, imageID)
}

/*
AlbumPrefix returns the prefix that owns every object belonging to an album.
*/
func AlbumPrefix(albumID string) string {
	return albumID + "/"
}

func ContentTypeFor(key string) string {
	switch {
	case strings.HasSuffix(key, ".jpg"), strings.HasSuffix(key, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
