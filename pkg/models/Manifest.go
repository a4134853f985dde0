package models

import (
	"encoding/json"
	"fmt"
)

/*
Marshal serializes the album as the manifest JSON document. The field set is
the external contract; the exact byte layout is not.
*/
func (a *Album) Marshal() ([]byte, error) {
	b, err := json.MarshalIndent(a, "", "  ")

	if err != nil {
		return nil, fmt.Errorf("error serializing manifest for album %s: %w", a.ID, err)
	}

	return b, nil
}

/*
ParseManifest deserializes and validates a manifest document. Parsing fails
closed: a manifest that is malformed, is missing required fields, or lists an
image with an incomplete or nonsensical rendition set yields
ErrManifestInvalid. Unknown fields are ignored so older readers keep working
against newer manifests.
*/
func ParseManifest(data []byte) (*Album, error) {
	var (
		err   error
		album Album
	)

	if err = json.Unmarshal(data, &album); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrManifestInvalid, err.Error())
	}

	if err = album.Validate(); err != nil {
		return nil, err
	}

	return &album, nil
}

/*
Validate checks the structural invariants a complete manifest must satisfy.
An empty display name is tolerated: it carries no structural meaning, and the
web layer falls back to the album id when rendering a nameless album.
*/
func (a *Album) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("%w: missing album_id", ErrManifestInvalid)
	}

	if a.CreatedAt.IsZero() {
		return fmt.Errorf("%w: missing created_at", ErrManifestInvalid)
	}

	for index, image := range a.Images {
		if image.ID == "" {
			return fmt.Errorf("%w: image %d has no id", ErrManifestInvalid, index)
		}

		dimensions := []int{
			image.WidthThumbnail, image.HeightThumbnail,
			image.WidthPreview, image.HeightPreview,
			image.WidthOriginal, image.HeightOriginal,
		}

		for _, d := range dimensions {
			if d <= 0 {
				return fmt.Errorf("%w: image %s has a malformed dimension", ErrManifestInvalid, image.ID)
			}
		}

		sizes := []int64{image.SizeThumbnail, image.SizePreview, image.SizeOriginal}

		for _, s := range sizes {
			if s <= 0 {
				return fmt.Errorf("%w: image %s has a malformed rendition size", ErrManifestInvalid, image.ID)
			}
		}
	}

	return nil
}
