package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ryzhakar/filmgallery/pkg/keys"
	"github.com/ryzhakar/filmgallery/pkg/models"
	"github.com/ryzhakar/filmgallery/pkg/render"
	"github.com/ryzhakar/filmgallery/pkg/store"
)

func writeTestJPEG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}

	var buf bytes.Buffer

	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encoding fixture %s: %v", name, err)
	}

	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}

	return path
}

func writeCorruptJPEG(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, []byte("not actually a jpeg"), 0644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}

	return path
}

func newTestIngestService(memory *store.MemoryStore, policy FailurePolicy) IngestService {
	return NewIngestService(IngestServiceConfig{
		Store:         memory,
		Renderer:      render.NewRenderer(render.RendererConfig{}),
		Policy:        policy,
		RenderWorkers: 2,
		UploadWorkers: 2,
	})
}

func storedManifest(t *testing.T, memory *store.MemoryStore, albumID string) *models.Album {
	t.Helper()

	data, err := memory.Get(context.Background(), keys.ManifestKey(albumID))
	if err != nil {
		t.Fatalf("fetching manifest: %v", err)
	}

	album, err := models.ParseManifest(data)
	if err != nil {
		t.Fatalf("stored manifest failed validation: %v", err)
	}

	return album
}

func TestUploadHappyPath(t *testing.T) {
	dir := t.TempDir()
	writeTestJPEG(t, dir, "ccc.jpg", 800, 600)
	writeTestJPEG(t, dir, "aaa.jpg", 800, 600)
	writeTestJPEG(t, dir, "bbb.jpg", 600, 800)

	memory := store.NewMemoryStore()
	service := newTestIngestService(memory, PolicyContinue)

	result, err := service.Upload(context.Background(), "Wedding", []string{dir})
	if err != nil {
		t.Fatalf("Upload() unexpected error: %v", err)
	}

	if result.Uploaded != 3 || result.Skipped != 0 {
		t.Errorf("Upload() = %d uploaded / %d skipped, want 3 / 0", result.Uploaded, result.Skipped)
	}

	album := storedManifest(t, memory, result.AlbumID)

	if album.Name != "Wedding" {
		t.Errorf("album name = %q, want Wedding", album.Name)
	}

	// Manifest order follows the sorted source paths.
	wantOrder := []string{"aaa.jpg", "bbb.jpg", "ccc.jpg"}

	for i, img := range album.Images {
		if img.OriginalFilename != wantOrder[i] {
			t.Errorf("image %d filename = %q, want %q", i, img.OriginalFilename, wantOrder[i])
		}
	}

	// Every manifest entry must have all three renditions stored.
	for _, img := range album.Images {
		for _, key := range []string{
			keys.ThumbnailKey(album.ID, img.ID),
			keys.PreviewKey(album.ID, img.ID),
			keys.OriginalKey(album.ID, img.ID),
		} {
			if _, err := memory.Get(context.Background(), key); err != nil {
				t.Errorf("rendition %s missing from store: %v", key, err)
			}
		}
	}

	// 3 images x 3 renditions + manifest.
	if memory.Len() != 10 {
		t.Errorf("store holds %d objects, want 10", memory.Len())
	}
}

func TestUploadWritesManifestLast(t *testing.T) {
	dir := t.TempDir()
	writeTestJPEG(t, dir, "one.jpg", 500, 400)
	writeTestJPEG(t, dir, "two.jpg", 500, 400)

	memory := store.NewMemoryStore()
	service := newTestIngestService(memory, PolicyContinue)

	result, err := service.Upload(context.Background(), "Order", []string{dir})
	if err != nil {
		t.Fatalf("Upload() unexpected error: %v", err)
	}

	if len(memory.PutLog) == 0 {
		t.Fatal("no puts recorded")
	}

	last := memory.PutLog[len(memory.PutLog)-1]

	if last != keys.ManifestKey(result.AlbumID) {
		t.Errorf("last stored key = %s, want the manifest", last)
	}

	for _, key := range memory.PutLog[:len(memory.PutLog)-1] {
		if strings.HasSuffix(key, "manifest.json") {
			t.Errorf("manifest %s stored before renditions finished", key)
		}
	}
}

func TestUploadSkipsCorruptImageAndContinues(t *testing.T) {
	dir := t.TempDir()
	writeTestJPEG(t, dir, "good-a.jpg", 500, 400)
	writeCorruptJPEG(t, dir, "broken.jpg")
	writeTestJPEG(t, dir, "good-b.jpg", 500, 400)

	memory := store.NewMemoryStore()
	service := newTestIngestService(memory, PolicyContinue)

	result, err := service.Upload(context.Background(), "Mixed", []string{dir})
	if err != nil {
		t.Fatalf("Upload() unexpected error: %v", err)
	}

	if result.Uploaded != 2 || result.Skipped != 1 {
		t.Errorf("Upload() = %d uploaded / %d skipped, want 2 / 1", result.Uploaded, result.Skipped)
	}

	if len(result.Failures) != 1 || filepath.Base(result.Failures[0].Path) != "broken.jpg" {
		t.Errorf("Failures = %v, want the corrupt file", result.Failures)
	}

	album := storedManifest(t, memory, result.AlbumID)

	if len(album.Images) != 2 {
		t.Fatalf("manifest lists %d images, want 2", len(album.Images))
	}

	for _, img := range album.Images {
		if img.OriginalFilename == "broken.jpg" {
			t.Error("skipped image leaked into the manifest")
		}
	}
}

func TestUploadFailFastAbortsWithoutManifest(t *testing.T) {
	dir := t.TempDir()
	writeTestJPEG(t, dir, "good.jpg", 500, 400)
	writeCorruptJPEG(t, dir, "broken.jpg")

	memory := store.NewMemoryStore()
	service := newTestIngestService(memory, PolicyFailFast)

	if _, err := service.Upload(context.Background(), "Strict", []string{dir}); err == nil {
		t.Fatal("Upload() expected an error under fail-fast")
	}

	for _, key := range memory.PutLog {
		if strings.HasSuffix(key, "manifest.json") {
			t.Errorf("manifest %s was stored despite the aborted run", key)
		}
	}
}

/*
gateRenderer stalls one image until another has failed, so the run is
cancelled while the stalled image's slot is still unprocessed.
*/
type gateRenderer struct {
	gate    chan struct{}
	failErr error
}

func (g *gateRenderer) Render(source []byte) (*render.RenderedImage, error) {
	switch string(source) {
	case "stall":
		<-g.gate
		// Give the cancellation from the failure a moment to land.
		time.Sleep(100 * time.Millisecond)

		rendition := render.Rendition{Data: []byte("jpeg"), Width: 1, Height: 1}
		return &render.RenderedImage{Thumbnail: rendition, Preview: rendition, Original: rendition}, nil
	default:
		close(g.gate)
		return nil, g.failErr
	}
}

func TestUploadFailFastReportsTriggeringFailure(t *testing.T) {
	dir := t.TempDir()

	// Sorts before the failing file, so its result slot comes first.
	if err := os.WriteFile(filepath.Join(dir, "aaa-stalled.jpg"), []byte("stall"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "bbb-broken.jpg"), []byte("garbage"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	decodeFailure := fmt.Errorf("simulated decode failure")

	service := NewIngestService(IngestServiceConfig{
		Store:         store.NewMemoryStore(),
		Renderer:      &gateRenderer{gate: make(chan struct{}), failErr: decodeFailure},
		Policy:        PolicyFailFast,
		RenderWorkers: 2,
		UploadWorkers: 2,
	})

	_, err := service.Upload(context.Background(), "Strict", []string{dir})

	if err == nil {
		t.Fatal("Upload() expected an error under fail-fast")
	}

	// The reported cause must be the failure that triggered the abort, not
	// an image the cancellation left unprocessed.
	if !errors.Is(err, decodeFailure) {
		t.Errorf("Upload() error = %v, want the triggering failure", err)
	}

	if !strings.Contains(err.Error(), "bbb-broken.jpg") {
		t.Errorf("Upload() error = %v, want it to name bbb-broken.jpg", err)
	}
}

func TestUploadNoImages(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	service := newTestIngestService(store.NewMemoryStore(), PolicyContinue)

	if _, err := service.Upload(context.Background(), "Empty", []string{dir}); !errors.Is(err, ErrNoImages) {
		t.Errorf("Upload() error = %v, want ErrNoImages", err)
	}
}

func TestUploadMissingInputPath(t *testing.T) {
	memory := store.NewMemoryStore()
	service := newTestIngestService(memory, PolicyContinue)

	if _, err := service.Upload(context.Background(), "Gone", []string{"/no/such/directory"}); err == nil {
		t.Fatal("Upload() expected an error for a missing input path")
	}

	if memory.Len() != 0 {
		t.Error("nothing should be uploaded when input validation fails")
	}
}

func TestUploadAllImagesFail(t *testing.T) {
	dir := t.TempDir()
	writeCorruptJPEG(t, dir, "a.jpg")
	writeCorruptJPEG(t, dir, "b.jpg")

	memory := store.NewMemoryStore()
	service := newTestIngestService(memory, PolicyContinue)

	if _, err := service.Upload(context.Background(), "Doomed", []string{dir}); !errors.Is(err, ErrNoSurvivingImages) {
		t.Fatalf("Upload() error = %v, want ErrNoSurvivingImages", err)
	}

	for _, key := range memory.PutLog {
		if strings.HasSuffix(key, "manifest.json") {
			t.Error("manifest stored for an album with no surviving images")
		}
	}
}

func TestUploadRenditionFailureExcludesImage(t *testing.T) {
	dir := t.TempDir()
	writeTestJPEG(t, dir, "first.jpg", 500, 400)
	writeTestJPEG(t, dir, "second.jpg", 500, 400)

	memory := store.NewMemoryStore()

	var (
		hookMu sync.Mutex
		failed bool
	)

	// Fail exactly one preview upload; the image loses one of its three
	// renditions and must be excluded from the manifest.
	memory.PutHook = func(key string) error {
		hookMu.Lock()
		defer hookMu.Unlock()

		if !failed && strings.Contains(key, "/previews/") {
			failed = true
			return fmt.Errorf("simulated upload failure")
		}

		return nil
	}

	service := newTestIngestService(memory, PolicyContinue)

	result, err := service.Upload(context.Background(), "Partial", []string{dir})
	if err != nil {
		t.Fatalf("Upload() unexpected error: %v", err)
	}

	if result.Uploaded != 1 || result.Skipped != 1 {
		t.Errorf("Upload() = %d uploaded / %d skipped, want 1 / 1", result.Uploaded, result.Skipped)
	}

	album := storedManifest(t, memory, result.AlbumID)

	if len(album.Images) != 1 {
		t.Fatalf("manifest lists %d images, want 1", len(album.Images))
	}

	// The surviving entry must be fully backed by stored renditions.
	img := album.Images[0]

	for _, key := range []string{
		keys.ThumbnailKey(album.ID, img.ID),
		keys.PreviewKey(album.ID, img.ID),
		keys.OriginalKey(album.ID, img.ID),
	} {
		if _, err := memory.Get(context.Background(), key); err != nil {
			t.Errorf("rendition %s missing for a manifest-listed image: %v", key, err)
		}
	}
}
