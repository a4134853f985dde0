package viewmodels

type GalleryPage struct {
	BaseViewModel

	AlbumID        string
	AlbumName      string
	CreatedAt      string
	Images         []GalleryImage
	DownloadAllURL string
}

type GalleryImage struct {
	ThumbnailURL string
	PreviewURL   string
	DownloadURL  string
	Filename     string
	Width        int
	Height       int
}
