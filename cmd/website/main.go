package main

import (
	"context"
	"embed"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/adampresley/adamgokit/awsconfig"
	"github.com/adampresley/adamgokit/httphelpers"
	"github.com/adampresley/adamgokit/mux"
	"github.com/adampresley/adamgokit/rendering"
	"github.com/adampresley/adamgokit/retrier"
	"github.com/adampresley/adamgokit/s3"
	"github.com/ryzhakar/filmgallery/cmd/website/internal/configuration"
	"github.com/ryzhakar/filmgallery/cmd/website/internal/gallery"
	"github.com/ryzhakar/filmgallery/pkg/services"
	"github.com/ryzhakar/filmgallery/pkg/store"
)

var (
	Version string = "development"
	appName string = "filmgallery"

	//go:embed app
	appFS embed.FS

	config configuration.Config

	/* Services */
	galleryService services.GalleryServicer
	renderer       rendering.TemplateRenderer
	zipService     services.ZipServicer

	/* Controllers */
	galleryController gallery.GalleryHandlers
)

func main() {
	var (
		err error
	)

	config = configuration.LoadConfig()
	setupLogger(&config, Version)

	slog.Info("configuration loaded",
		slog.String("app", appName),
		slog.String("version", Version),
		slog.String("loglevel", config.LogLevel),
		slog.String("host", config.Host),
		slog.String("awsEndpointUrl", config.AwsEndpointUrl),
		slog.String("awsRegion", config.AwsRegion),
		slog.String("bucket", config.AwsBucket),
	)

	slog.Debug("setting up...")

	/*
	 * Setup services
	 */
	awsConfig := &awsconfig.Config{
		Endpoint:        config.AwsEndpointUrl,
		Region:          config.AwsRegion,
		AccessKeyID:     config.AwsAccessKeyId,
		SecretAccessKey: config.AwsSecretAccessKey,
	}

	retrier.Retry(func() error {
		if err = awsConfig.Load(); err != nil {
			slog.Error("failed to load AWS config. trying again", "error", err)
			return err
		}

		return nil
	})

	if err != nil {
		panic(err)
	}

	s3Client, err := s3.NewClient(awsConfig)

	if err != nil {
		panic(err)
	}

	s3Store, err := store.NewS3Store(context.Background(), store.S3StoreConfig{
		Bucket:          config.AwsBucket,
		Region:          config.AwsRegion,
		Endpoint:        config.AwsEndpointUrl,
		AccessKeyID:     config.AwsAccessKeyId,
		SecretAccessKey: config.AwsSecretAccessKey,
	})

	if err != nil {
		panic(err)
	}

	renderer, err = rendering.NewGoTemplateRenderer(rendering.GoTemplateRendererConfig{
		TemplateDir:       "app",
		TemplateExtension: ".html",
		TemplateFS:        appFS,
		PagesDir:          "pages",
	})

	if err != nil {
		panic(err)
	}

	galleryService = services.NewGalleryService(services.GalleryServiceConfig{
		Store: s3Store,
	})

	zipService = services.NewZipService(services.ZipServiceConfig{
		Store: s3Store,
	})

	/*
	 * Setup controllers
	 */
	galleryController = gallery.NewGalleryController(gallery.GalleryControllerConfig{
		Bucket:         config.AwsBucket,
		GalleryService: galleryService,
		Renderer:       renderer,
		S3Client:       s3Client,
		ZipService:     zipService,
	})

	/*
	 * Setup router and http server
	 */
	slog.Debug("setting up routes...")

	routes := []mux.Route{
		{Path: "GET /heartbeat", HandlerFunc: heartbeat},
		{Path: "GET /", HandlerFunc: galleryController.HomePage},
		{Path: "GET /gallery/{albumid}", HandlerFunc: galleryController.GalleryPage},
		{Path: "GET /gallery/{albumid}/manifest", HandlerFunc: galleryController.GetManifest},
		{Path: "GET /gallery/{albumid}/image/{class}/{imageid}", HandlerFunc: galleryController.GetImage},
		{Path: "GET /gallery/{albumid}/download/{imageid}", HandlerFunc: galleryController.DownloadImage},
		{Path: "GET /gallery/{albumid}/download-all", HandlerFunc: galleryController.DownloadAlbum},
	}

	routerConfig := mux.RouterConfig{
		Address:              config.Host,
		Debug:                Version == "development",
		ServeStaticContent:   true,
		StaticContentRootDir: "app",
		StaticContentPrefix:  "/static/",
		StaticFS:             appFS,
		HttpWriteTimeout:     120,
	}

	m := mux.SetupRouter(routerConfig, routes)
	httpServer, quit := mux.SetupServer(routerConfig, m)

	slog.Info("server started")

	<-quit

	mux.Shutdown(httpServer)
	slog.Info("server stopped")
}

func heartbeat(w http.ResponseWriter, r *http.Request) {
	httphelpers.TextOK(w, "OK")
}

func setupLogger(config *configuration.Config, version string) {
	var level slog.Level

	switch strings.ToLower(config.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	if version == "development" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
		return
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}
