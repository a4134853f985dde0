package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ryzhakar/filmgallery/pkg/keys"
	"github.com/ryzhakar/filmgallery/pkg/models"
	"github.com/ryzhakar/filmgallery/pkg/store"
)

var (
	ErrAlbumNotFound = fmt.Errorf("album not found")
)

type GalleryServicer interface {
	GetAlbum(ctx context.Context, albumID string) (*models.Album, error)
}

type GalleryServiceConfig struct {
	Store store.Store
}

type GalleryService struct {
	store store.Store
}

func NewGalleryService(config GalleryServiceConfig) GalleryService {
	return GalleryService{
		store: config.Store,
	}
}

/*
GetAlbum fetches and parses an album's manifest. A missing manifest, a fetch
failure, and a corrupt manifest all collapse into ErrAlbumNotFound: the
manifest's presence is the definition of "album exists", and readers are
never shown internal failure detail.
*/
func (s GalleryService) GetAlbum(ctx context.Context, albumID string) (*models.Album, error) {
	var (
		err  error
		data []byte
	)

	if data, err = s.store.Get(ctx, keys.ManifestKey(albumID)); err != nil {
		slog.Debug("manifest fetch failed", "albumID", albumID, "error", err)
		return nil, ErrAlbumNotFound
	}

	album, err := models.ParseManifest(data)

	if err != nil {
		slog.Error("stored manifest failed to parse, treating album as not found", "albumID", albumID, "error", err)
		return nil, ErrAlbumNotFound
	}

	return album, nil
}
