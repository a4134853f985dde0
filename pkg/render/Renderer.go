package render

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	"github.com/rwcarlsen/goexif/exif"
)

const (
	ThumbnailMaxSize uint = 400
	PreviewMaxSize   uint = 2048

	/*
	 * Film scans carry grain that standard web quality (75-85) visibly
	 * smears into mush. 92 keeps the grain texture intact at a tolerable
	 * size cost.
	 */
	JpegQuality int = 92
)

var (
	ErrDecode = fmt.Errorf("unable to decode image")
)

/*
Rendition is one encoded JPEG variant of a source image.
*/
type Rendition struct {
	Data   []byte
	Width  int
	Height int
}

type RenderedImage struct {
	Thumbnail Rendition
	Preview   Rendition
	Original  Rendition
}

type ImageRenderer interface {
	Render(source []byte) (*RenderedImage, error)
}

type RendererConfig struct {
	Quality int
}

type Renderer struct {
	quality int
}

func NewRenderer(config RendererConfig) Renderer {
	if config.Quality <= 0 {
		config.Quality = JpegQuality
	}

	return Renderer{
		quality: config.Quality,
	}
}

/*
Render decodes a source image and produces the three renditions. Camera
orientation metadata is applied before resizing so output pixels are upright,
and no metadata is carried into the outputs, so GPS tags never propagate.

The original rendition keeps full resolution. When the source is already an
upright JPEG with no location tags it is passed through byte-for-byte;
otherwise it is re-encoded once for normalization.
*/
func (r Renderer) Render(source []byte) (*RenderedImage, error) {
	var (
		err    error
		img    image.Image
		format string
	)

	if img, format, err = image.Decode(bytes.NewReader(source)); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecode, err.Error())
	}

	orientation, hasGPS := readExifHints(source)
	img = applyOrientation(img, orientation)

	thumbnail, err := r.encodeBounded(img, ThumbnailMaxSize)

	if err != nil {
		return nil, fmt.Errorf("error encoding thumbnail: %w", err)
	}

	preview, err := r.encodeBounded(img, PreviewMaxSize)

	if err != nil {
		return nil, fmt.Errorf("error encoding preview: %w", err)
	}

	var original Rendition

	if format == "jpeg" && orientation <= 1 && !hasGPS {
		bounds := img.Bounds()

		original = Rendition{
			Data:   source,
			Width:  bounds.Dx(),
			Height: bounds.Dy(),
		}
	} else {
		if original, err = r.encode(img); err != nil {
			return nil, fmt.Errorf("error encoding original: %w", err)
		}
	}

	return &RenderedImage{
		Thumbnail: thumbnail,
		Preview:   preview,
		Original:  original,
	}, nil
}

func (r Renderer) encodeBounded(img image.Image, maxSize uint) (Rendition, error) {
	return r.encode(r.resize(img, maxSize))
}

func (r Renderer) encode(img image.Image) (Rendition, error) {
	var (
		err error
		buf bytes.Buffer
	)

	if err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
		return Rendition{}, err
	}

	bounds := img.Bounds()

	return Rendition{
		Data:   buf.Bytes(),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

func (r Renderer) resize(img image.Image, maxSize uint) image.Image {
	/*
	 * Scale the longest edge down to maxSize, preserving aspect ratio.
	 * Sources already within bounds are never upscaled.
	 */
	bounds := img.Bounds()
	width := uint(bounds.Dx())
	height := uint(bounds.Dy())

	if width <= maxSize && height <= maxSize {
		return img
	}

	var newWidth, newHeight uint

	if width > height {
		// Landscape orientation
		newWidth = maxSize
		newHeight = uint(float64(height) * (float64(maxSize) / float64(width)))
	} else {
		// Portrait orientation or square
		newHeight = maxSize
		newWidth = uint(float64(width) * (float64(maxSize) / float64(height)))
	}

	return resize.Resize(newWidth, newHeight, img, resize.Lanczos3)
}

/*
readExifHints extracts the EXIF orientation tag and whether the source carries
GPS coordinates. Sources without EXIF are treated as already upright.
*/
func readExifHints(source []byte) (int, bool) {
	var (
		orientation = 1
		hasGPS      = false
	)

	x, err := exif.Decode(bytes.NewReader(source))

	if err != nil {
		return orientation, hasGPS
	}

	if tag, err := x.Get(exif.Orientation); err == nil {
		if value, err := tag.Int(0); err == nil && value >= 1 && value <= 8 {
			orientation = value
		}
	}

	if _, _, err := x.LatLong(); err == nil {
		hasGPS = true
	}

	return orientation, hasGPS
}
