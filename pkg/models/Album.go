package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrManifestInvalid = fmt.Errorf("manifest invalid")
)

/*
Album is the manifest's view of one uploaded album: an unguessable identifier,
a display name, and the ordered image list. The manifest object's presence in
the bucket is what defines the album as complete; an Album value is only ever
built in memory by the ingestor, or parsed back from a stored manifest.
*/
type Album struct {
	ID        string    `json:"album_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Images    []Image   `json:"images"`
}

/*
Image describes one photograph and the three renditions stored for it.
OriginalFilename is a display and download hint only; it is never part of an
object key.
*/
type Image struct {
	ID               string `json:"id"`
	OriginalFilename string `json:"original_filename"`

	WidthThumbnail  int   `json:"width_thumbnail"`
	HeightThumbnail int   `json:"height_thumbnail"`
	SizeThumbnail   int64 `json:"size_thumbnail"`

	WidthPreview  int   `json:"width_preview"`
	HeightPreview int   `json:"height_preview"`
	SizePreview   int64 `json:"size_preview"`

	WidthOriginal  int   `json:"width_original"`
	HeightOriginal int   `json:"height_original"`
	SizeOriginal   int64 `json:"size_original"`
}

/*
NewAlbum creates an empty album with a fresh random identifier. Every upload
run gets a new ID, even a retry of a failed run; a partially written album
simply never receives a manifest.
*/
func NewAlbum(name string) *Album {
	return &Album{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Images:    []Image{},
	}
}
