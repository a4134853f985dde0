package gallery

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/adampresley/adamgokit/httphelpers"
	"github.com/adampresley/adamgokit/rendering"
	"github.com/adampresley/adamgokit/s3"
	"github.com/adampresley/adamgokit/s3/getoptions"
	"github.com/google/uuid"
	"github.com/ryzhakar/filmgallery/cmd/website/internal/viewmodels"
	"github.com/ryzhakar/filmgallery/pkg/keys"
	"github.com/ryzhakar/filmgallery/pkg/models"
	"github.com/ryzhakar/filmgallery/pkg/services"
)

type GalleryHandlers interface {
	HomePage(w http.ResponseWriter, r *http.Request)
	GalleryPage(w http.ResponseWriter, r *http.Request)
	GetManifest(w http.ResponseWriter, r *http.Request)
	GetImage(w http.ResponseWriter, r *http.Request)
	DownloadImage(w http.ResponseWriter, r *http.Request)
	DownloadAlbum(w http.ResponseWriter, r *http.Request)
}

type GalleryControllerConfig struct {
	Bucket         string
	GalleryService services.GalleryServicer
	Renderer       rendering.TemplateRenderer
	S3Client       s3.S3Client
	ZipService     services.ZipServicer
}

type GalleryController struct {
	bucket         string
	galleryService services.GalleryServicer
	renderer       rendering.TemplateRenderer
	s3Client       s3.S3Client
	zipService     services.ZipServicer
}

func NewGalleryController(config GalleryControllerConfig) GalleryController {
	return GalleryController{
		bucket:         config.Bucket,
		galleryService: config.GalleryService,
		renderer:       config.Renderer,
		s3Client:       config.S3Client,
		zipService:     config.ZipService,
	}
}

/*
GET /
*/
func (c GalleryController) HomePage(w http.ResponseWriter, r *http.Request) {
	viewData := viewmodels.HomePage{
		BaseViewModel: viewmodels.BaseViewModel{
			IsHtmx: httphelpers.IsHtmx(r),
		},
	}

	c.renderer.Render("pages/home", viewData, w)
}

/*
GET /gallery/{albumid}

Any failure along the way, from a bad album ID to a corrupt manifest, renders
the same not-found page. Internal state is never leaked to the visitor.
*/
func (c GalleryController) GalleryPage(w http.ResponseWriter, r *http.Request) {
	album, ok := c.getAlbum(r)

	if !ok {
		c.renderNotFound(w, r)
		return
	}

	viewData := viewmodels.GalleryPage{
		BaseViewModel: viewmodels.BaseViewModel{
			IsHtmx: httphelpers.IsHtmx(r),
		},
		AlbumID:        album.ID,
		AlbumName:      album.Name,
		CreatedAt:      album.CreatedAt.Format("January 2, 2006"),
		Images:         []viewmodels.GalleryImage{},
		DownloadAllURL: fmt.Sprintf("/gallery/%s/download-all", album.ID),
	}

	for _, image := range album.Images {
		viewData.Images = append(viewData.Images, viewmodels.GalleryImage{
			ThumbnailURL: imageURL(album.ID, keys.ClassThumbnail, image.ID),
			PreviewURL:   imageURL(album.ID, keys.ClassPreview, image.ID),
			DownloadURL:  fmt.Sprintf("/gallery/%s/download/%s", album.ID, image.ID),
			Filename:     image.OriginalFilename,
			Width:        image.WidthPreview,
			Height:       image.HeightPreview,
		})
	}

	c.renderer.Render("pages/gallery", viewData, w)
}

/*
GET /gallery/{albumid}/manifest
*/
func (c GalleryController) GetManifest(w http.ResponseWriter, r *http.Request) {
	album, ok := c.getAlbum(r)

	if !ok {
		httphelpers.WriteText(w, http.StatusNotFound, "album not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(album)
}

/*
GET /gallery/{albumid}/image/{class}/{imageid}
*/
func (c GalleryController) GetImage(w http.ResponseWriter, r *http.Request) {
	albumID := httphelpers.GetFromRequest[string](r, "albumid")
	class := httphelpers.GetFromRequest[string](r, "class")
	imageID := httphelpers.GetFromRequest[string](r, "imageid")

	if !isValidID(albumID) || !isValidID(imageID) || !keys.IsValidClass(class) {
		httphelpers.WriteText(w, http.StatusNotFound, "not found")
		return
	}

	key := keys.RenditionKey(albumID, keys.RenditionClass(class), imageID)
	c.streamObject(w, r, key, "")
}

/*
GET /gallery/{albumid}/download/{imageid}

Serves the full-resolution original as an attachment, named by the original
filename recorded in the manifest.
*/
func (c GalleryController) DownloadImage(w http.ResponseWriter, r *http.Request) {
	imageID := httphelpers.GetFromRequest[string](r, "imageid")
	album, ok := c.getAlbum(r)

	if !ok || !isValidID(imageID) {
		httphelpers.WriteText(w, http.StatusNotFound, "not found")
		return
	}

	fileName := ""

	for _, image := range album.Images {
		if image.ID == imageID {
			fileName = image.OriginalFilename
			break
		}
	}

	if fileName == "" {
		httphelpers.WriteText(w, http.StatusNotFound, "not found")
		return
	}

	key := keys.OriginalKey(album.ID, imageID)
	c.streamObject(w, r, key, fileName)
}

/*
GET /gallery/{albumid}/download-all
*/
func (c GalleryController) DownloadAlbum(w http.ResponseWriter, r *http.Request) {
	album, ok := c.getAlbum(r)

	if !ok {
		httphelpers.WriteText(w, http.StatusNotFound, "not found")
		return
	}

	zipName := album.Name

	if zipName == "" {
		zipName = album.ID
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", zipName+".zip"))

	if err := c.zipService.WriteAlbumZip(r.Context(), album, w); err != nil {
		slog.Error("error streaming album zip", "albumID", album.ID, "error", err)
	}
}

func (c GalleryController) getAlbum(r *http.Request) (*models.Album, bool) {
	albumID := httphelpers.GetFromRequest[string](r, "albumid")

	if !isValidID(albumID) {
		return nil, false
	}

	album, err := c.galleryService.GetAlbum(r.Context(), albumID)

	if err != nil {
		if !errors.Is(err, services.ErrAlbumNotFound) {
			slog.Error("error loading album", "albumID", albumID, "error", err)
		}

		return nil, false
	}

	return album, true
}

func (c GalleryController) streamObject(w http.ResponseWriter, r *http.Request, key, attachmentName string) {
	object, err := c.s3Client.Get(
		c.bucket,
		key,
		getoptions.WithContext(r.Context()),
		getoptions.WithTimeout(time.Minute*5),
	)

	if err != nil {
		slog.Error("error getting object from S3", "error", err, "bucket", c.bucket, "key", key)
		httphelpers.WriteText(w, http.StatusNotFound, "not found")
		return
	}

	defer object.Body.Close()

	w.Header().Set("Content-Type", object.ContentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", object.Size))

	if attachmentName != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachmentName))
	}

	_, _ = io.Copy(w, object.Body)
}

func (c GalleryController) renderNotFound(w http.ResponseWriter, r *http.Request) {
	viewData := viewmodels.HomePage{
		BaseViewModel: viewmodels.BaseViewModel{
			IsHtmx: httphelpers.IsHtmx(r),
		},
	}

	w.WriteHeader(http.StatusNotFound)
	c.renderer.Render("pages/not-found", viewData, w)
}

/*
isValidID accepts UUID-shaped identifiers only, which keeps request paths
from reaching the object store as arbitrary keys.
*/
func isValidID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func imageURL(albumID string, class keys.RenditionClass, imageID string) string {
	return fmt.Sprintf("/gallery/%s/image/%s/%s", albumID, class, imageID)
}
