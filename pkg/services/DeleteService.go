package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ryzhakar/filmgallery/pkg/keys"
	"github.com/ryzhakar/filmgallery/pkg/store"
)

type DeleteSummary struct {
	Removed     int
	Unconfirmed []string
}

type Deleter interface {
	Delete(ctx context.Context, albumID string) (*DeleteSummary, error)
}

type DeleteServiceConfig struct {
	Store store.Store
}

type DeleteService struct {
	store store.Store
}

func NewDeleteService(config DeleteServiceConfig) DeleteService {
	return DeleteService{
		store: config.Store,
	}
}

/*
Delete removes every object under the album's prefix. The manifest is ordered
to the front of the batch: once it is gone, readers treat the album as
deleted even if some rendition objects survive an interrupted run as orphans.

Deleting an album that does not exist removes zero objects and is not an
error.
*/
func (s DeleteService) Delete(ctx context.Context, albumID string) (*DeleteSummary, error) {
	var (
		err     error
		objects []string
	)

	l := slog.With("albumID", albumID)

	if objects, err = s.store.List(ctx, keys.AlbumPrefix(albumID)); err != nil {
		return nil, fmt.Errorf("error listing album objects: %w", err)
	}

	if len(objects) == 0 {
		l.Info("album has no objects, nothing to delete")
		return &DeleteSummary{}, nil
	}

	manifestKey := keys.ManifestKey(albumID)
	ordered := make([]string, 0, len(objects))

	for _, key := range objects {
		if key == manifestKey {
			ordered = append([]string{key}, ordered...)
		} else {
			ordered = append(ordered, key)
		}
	}

	result, err := s.store.DeleteMany(ctx, ordered)

	if err != nil {
		return nil, fmt.Errorf("error deleting album objects: %w", err)
	}

	if len(result.Failed) > 0 {
		l.Error("some album objects were not confirmed deleted", "unconfirmed", len(result.Failed))
	}

	l.Info("album deleted", "removed", len(result.Deleted))

	return &DeleteSummary{
		Removed:     len(result.Deleted),
		Unconfirmed: result.Failed,
	}, nil
}
