package render

import (
	"image"
)

/*
applyOrientation rewrites pixels so the image displays upright without relying
on the EXIF orientation tag (which the encoded renditions do not carry).
Values follow the EXIF 2.2 orientation table; 1 and anything out of range are
returned untouched.
*/
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return transformPixels(img, false, func(w, h, x, y int) (int, int) { return w - 1 - x, y })
	case 3:
		return transformPixels(img, false, func(w, h, x, y int) (int, int) { return w - 1 - x, h - 1 - y })
	case 4:
		return transformPixels(img, false, func(w, h, x, y int) (int, int) { return x, h - 1 - y })
	case 5:
		return transformPixels(img, true, func(w, h, x, y int) (int, int) { return y, x })
	case 6:
		return transformPixels(img, true, func(w, h, x, y int) (int, int) { return h - 1 - y, x })
	case 7:
		return transformPixels(img, true, func(w, h, x, y int) (int, int) { return h - 1 - y, w - 1 - x })
	case 8:
		return transformPixels(img, true, func(w, h, x, y int) (int, int) { return y, w - 1 - x })
	default:
		return img
	}
}

/*
transformPixels copies img into a new buffer, mapping each source pixel (x, y)
to the destination returned by mapping. swapAxes indicates the destination has
transposed dimensions (the 90-degree family of orientations).

The mapping receives the source width and height and source coordinates
relative to the image origin.
*/
func transformPixels(img image.Image, swapAxes bool, mapping func(w, h, x, y int) (int, int)) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	destWidth, destHeight := width, height

	if swapAxes {
		destWidth, destHeight = height, width
	}

	dest := image.NewNRGBA(image.Rect(0, 0, destWidth, destHeight))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx, dy := mapping(width, height, x, y)
			dest.Set(dx, dy, img.At(bounds.Min.X+x, bounds.Min.Y+y))
		}
	}

	return dest
}
