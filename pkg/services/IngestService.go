package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/ryzhakar/filmgallery/pkg/keys"
	"github.com/ryzhakar/filmgallery/pkg/models"
	"github.com/ryzhakar/filmgallery/pkg/render"
	"github.com/ryzhakar/filmgallery/pkg/store"
)

var (
	ErrNoImages          = fmt.Errorf("no images found in the provided paths")
	ErrNoSurvivingImages = fmt.Errorf("no images survived processing")
)

/*
FailurePolicy decides what a single image's decode, encode, or upload failure
does to the rest of the run.
*/
type FailurePolicy string

const (
	// PolicyContinue skips the failed image and reports it in the summary.
	PolicyContinue FailurePolicy = "continue"

	// PolicyFailFast abandons the whole run on the first failed image. The
	// partially uploaded renditions are left behind as orphans; the album
	// never gets a manifest, so readers never see it.
	PolicyFailFast FailurePolicy = "fail-fast"
)

type ImageFailure struct {
	Path string
	Err  error
}

type UploadResult struct {
	AlbumID  string
	Uploaded int
	Skipped  int
	Failures []ImageFailure
}

type Ingestor interface {
	Upload(ctx context.Context, name string, paths []string) (*UploadResult, error)
}

type IngestServiceConfig struct {
	Store         store.Store
	Renderer      render.ImageRenderer
	Policy        FailurePolicy
	RenderWorkers int
	UploadWorkers int
}

type IngestService struct {
	store         store.Store
	renderer      render.ImageRenderer
	policy        FailurePolicy
	renderWorkers int
	uploadWorkers int
}

func NewIngestService(config IngestServiceConfig) IngestService {
	if config.RenderWorkers <= 0 {
		config.RenderWorkers = runtime.NumCPU()
	}

	if config.UploadWorkers <= 0 {
		// Uploads are network-bound; let more of them run than CPU work.
		config.UploadWorkers = config.RenderWorkers * 4
	}

	if config.Policy == "" {
		config.Policy = PolicyContinue
	}

	return IngestService{
		store:         config.Store,
		renderer:      config.Renderer,
		policy:        config.Policy,
		renderWorkers: config.RenderWorkers,
		uploadWorkers: config.UploadWorkers,
	}
}

/*
imageResult is one slot of the run's accumulation. Each slot is written by at
most one worker and read only after both pools have joined.
*/
type imageResult struct {
	image models.Image
	ok    bool
	err   error
}

/*
Upload processes every source image into three renditions, uploads them, and
writes the manifest last. The manifest upload is a strict barrier: it never
begins until every per-image task has finished, so a stored manifest only ever
references renditions that are durably present.

Image order in the manifest follows the lexicographically sorted source paths.
On success the album ID and a processed/skipped summary are returned.
*/
func (s IngestService) Upload(ctx context.Context, name string, paths []string) (*UploadResult, error) {
	var (
		err     error
		sources []string
	)

	if sources, err = collectImagePaths(paths); err != nil {
		return nil, err
	}

	if len(sources) == 0 {
		return nil, ErrNoImages
	}

	album := models.NewAlbum(name)
	l := slog.With("albumID", album.ID, "numImages", len(sources))
	l.Info("starting album upload", "name", name, "policy", s.policy)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		results   = make([]imageResult, len(sources))
		fatalOnce sync.Once
		fatalErr  error
	)

	setFatal := func(err error) {
		fatalOnce.Do(func() {
			fatalErr = err
			cancel()
		})
	}

	recordFailure := func(index int, err error) {
		results[index] = imageResult{err: err}

		if s.policy == PolicyFailFast {
			cancel()
		}
	}

	renderPool := pond.NewPool(s.renderWorkers, pond.WithContext(runCtx))
	uploadPool := pond.NewPool(s.uploadWorkers, pond.WithContext(runCtx))

	for index, source := range sources {
		renderPool.Submit(func() {
			if runCtx.Err() != nil {
				return
			}

			data, err := os.ReadFile(source)

			if err != nil {
				l.Error("error reading source image", "path", source, "error", err)
				recordFailure(index, err)
				return
			}

			rendered, err := s.renderer.Render(data)

			if err != nil {
				l.Error("error rendering image", "path", source, "error", err)
				recordFailure(index, err)
				return
			}

			uploadPool.Submit(func() {
				s.uploadImage(runCtx, l, album.ID, index, source, rendered, results, recordFailure, setFatal)
			})
		})
	}

	/*
	 * Render tasks feed the upload pool, so the render pool must drain
	 * before the upload pool stops accepting work. Stopping both is the
	 * barrier in front of the manifest write.
	 */
	_ = renderPool.Stop().Wait()
	_ = uploadPool.Stop().Wait()

	if fatalErr != nil {
		return nil, fmt.Errorf("upload aborted: %w", fatalErr)
	}

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	result := &UploadResult{AlbumID: album.ID}

	var (
		abortCause    ImageFailure
		haveRealCause bool
	)

	for index, r := range results {
		switch {
		case r.ok:
			album.Images = append(album.Images, r.image)
			result.Uploaded++
		default:
			failureErr := r.err

			if failureErr == nil {
				failureErr = fmt.Errorf("image was not processed")
			}

			result.Skipped++
			result.Failures = append(result.Failures, ImageFailure{Path: sources[index], Err: failureErr})

			/*
			 * A cancelled run leaves unprocessed slots with a placeholder
			 * error; the failure that triggered the abort is the one with a
			 * recorded error, regardless of slot order.
			 */
			if !haveRealCause && r.err != nil {
				abortCause = ImageFailure{Path: sources[index], Err: r.err}
				haveRealCause = true
			}
		}
	}

	if s.policy == PolicyFailFast && len(result.Failures) > 0 {
		cause := result.Failures[0]

		if haveRealCause {
			cause = abortCause
		}

		return nil, fmt.Errorf("upload failed for %s: %w", cause.Path, cause.Err)
	}

	if len(album.Images) == 0 {
		return nil, fmt.Errorf("%w: %d failed", ErrNoSurvivingImages, result.Skipped)
	}

	manifestData, err := album.Marshal()

	if err != nil {
		// Unreachable with valid inputs; a failure here is a defect.
		return nil, err
	}

	if err = s.store.Put(ctx, keys.ManifestKey(album.ID), manifestData, "application/json"); err != nil {
		return nil, fmt.Errorf("error uploading manifest: %w", err)
	}

	l.Info("album upload complete", "uploaded", result.Uploaded, "skipped", result.Skipped)
	return result, nil
}

func (s IngestService) uploadImage(
	ctx context.Context,
	l *slog.Logger,
	albumID string,
	index int,
	source string,
	rendered *render.RenderedImage,
	results []imageResult,
	recordFailure func(int, error),
	setFatal func(error),
) {
	if ctx.Err() != nil {
		return
	}

	imageID := keys.NewImageID()

	renditions := []struct {
		key  string
		data []byte
	}{
		{keys.ThumbnailKey(albumID, imageID), rendered.Thumbnail.Data},
		{keys.PreviewKey(albumID, imageID), rendered.Preview.Data},
		{keys.OriginalKey(albumID, imageID), rendered.Original.Data},
	}

	for _, rendition := range renditions {
		if err := s.store.Put(ctx, rendition.key, rendition.data, "image/jpeg"); err != nil {
			if store.IsFatal(err) {
				l.Error("fatal store error, aborting run", "key", rendition.key, "error", err)
				setFatal(err)
				return
			}

			l.Error("error uploading rendition", "key", rendition.key, "error", err)
			recordFailure(index, err)
			return
		}
	}

	results[index] = imageResult{
		ok: true,
		image: models.Image{
			ID:               imageID,
			OriginalFilename: filepath.Base(source),

			WidthThumbnail:  rendered.Thumbnail.Width,
			HeightThumbnail: rendered.Thumbnail.Height,
			SizeThumbnail:   int64(len(rendered.Thumbnail.Data)),

			WidthPreview:  rendered.Preview.Width,
			HeightPreview: rendered.Preview.Height,
			SizePreview:   int64(len(rendered.Preview.Data)),

			WidthOriginal:  rendered.Original.Width,
			HeightOriginal: rendered.Original.Height,
			SizeOriginal:   int64(len(rendered.Original.Data)),
		},
	}
}
