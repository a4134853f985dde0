package services

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ryzhakar/filmgallery/pkg/keys"
	"github.com/ryzhakar/filmgallery/pkg/models"
	"github.com/ryzhakar/filmgallery/pkg/store"
)

type ZipServicer interface {
	WriteAlbumZip(ctx context.Context, album *models.Album, w io.Writer) error
}

type ZipServiceConfig struct {
	Store store.Store
}

type ZipService struct {
	store store.Store
}

func NewZipService(config ZipServiceConfig) ZipService {
	return ZipService{
		store: config.Store,
	}
}

/*
WriteAlbumZip streams a zip archive of the album's full-resolution originals
to w. Entries are named by the original filenames from the manifest; a
duplicate filename gets the image id as a suffix so no entry is silently
overwritten.

An image that cannot be fetched is skipped with a log entry rather than
aborting the archive, matching the reader-side rule that a manifest only
lists renditions that were durably stored.
*/
func (s ZipService) WriteAlbumZip(ctx context.Context, album *models.Album, w io.Writer) error {
	l := slog.With("albumID", album.ID)
	l.Info("streaming album zip", "numImages", len(album.Images))

	zipWriter := zip.NewWriter(w)
	seen := map[string]bool{}

	for _, image := range album.Images {
		entryName := image.OriginalFilename

		if entryName == "" || seen[entryName] {
			entryName = fmt.Sprintf("%s.jpg", image.ID)
		}

		seen[entryName] = true

		data, err := s.store.Get(ctx, keys.OriginalKey(album.ID, image.ID))

		if err != nil {
			l.Error("error fetching original for zip, skipping", "imageID", image.ID, "error", err)
			continue
		}

		dest, err := zipWriter.Create(entryName)

		if err != nil {
			return fmt.Errorf("failed to create entry %s in zip: %w", entryName, err)
		}

		if _, err = dest.Write(data); err != nil {
			return fmt.Errorf("failed to write entry %s to zip: %w", entryName, err)
		}
	}

	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("failed to close zip writer: %w", err)
	}

	return nil
}
