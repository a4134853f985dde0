package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ryzhakar/filmgallery/pkg/render"
	"github.com/ryzhakar/filmgallery/pkg/services"
	"github.com/ryzhakar/filmgallery/pkg/store"
	"github.com/spf13/cobra"
)

var Version string = "development"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "gallery",
	Short:   "Film gallery tool for S3-based photo albums",
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger(cmd)
	},
}

/*
newStore builds the object store client from flags, falling back to the
usual AWS environment variables.
*/
func newStore(ctx context.Context, cmd *cobra.Command) (*store.S3Store, error) {
	bucket, _ := cmd.Flags().GetString("bucket")
	endpoint, _ := cmd.Flags().GetString("endpoint")
	region, _ := cmd.Flags().GetString("region")

	if bucket == "" {
		return nil, fmt.Errorf("no bucket configured: pass --bucket or set GALLERY_BUCKET")
	}

	s, err := store.NewS3Store(ctx, store.S3StoreConfig{
		Bucket:          bucket,
		Region:          region,
		Endpoint:        endpoint,
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
	})

	if err != nil {
		return nil, fmt.Errorf("initializing object store: %w", err)
	}

	return s, nil
}

var uploadCmd = &cobra.Command{
	Use:   "upload PATHS...",
	Short: "Create a new album from images",
	Long: `Processes the given images (or directories of images) into thumbnail,
preview and original renditions, uploads them to the bucket, and writes the
album manifest. Every run creates a new album with a fresh ID.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		name, _ := cmd.Flags().GetString("name")
		failFast, _ := cmd.Flags().GetBool("fail-fast")
		renderWorkers, _ := cmd.Flags().GetInt("render-workers")
		uploadWorkers, _ := cmd.Flags().GetInt("upload-workers")

		s3Store, err := newStore(ctx, cmd)

		if err != nil {
			return err
		}

		policy := services.PolicyContinue

		if failFast {
			policy = services.PolicyFailFast
		}

		ingestService := services.NewIngestService(services.IngestServiceConfig{
			Store:         s3Store,
			Renderer:      render.NewRenderer(render.RendererConfig{}),
			Policy:        policy,
			RenderWorkers: renderWorkers,
			UploadWorkers: uploadWorkers,
		})

		result, err := ingestService.Upload(ctx, name, args)

		if err != nil {
			if errors.Is(err, services.ErrNoImages) {
				return fmt.Errorf("no images found in the provided paths")
			}

			return err
		}

		for _, failure := range result.Failures {
			fmt.Printf("skipped %s: %v\n", failure.Path, failure.Err)
		}

		fmt.Printf("\nAlbum created: %s\n", result.AlbumID)
		fmt.Printf("Images: %d uploaded, %d skipped\n", result.Uploaded, result.Skipped)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete ALBUM_ID",
	Short: "Delete an album and all its objects",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		s3Store, err := newStore(ctx, cmd)

		if err != nil {
			return err
		}

		deleteService := services.NewDeleteService(services.DeleteServiceConfig{
			Store: s3Store,
		})

		summary, err := deleteService.Delete(ctx, args[0])

		if err != nil {
			return fmt.Errorf("deleting album: %w", err)
		}

		fmt.Printf("Removed %d object(s)\n", summary.Removed)

		if len(summary.Unconfirmed) > 0 {
			fmt.Printf("Warning: %d object(s) were not confirmed deleted\n", len(summary.Unconfirmed))
		}

		return nil
	},
}

func setupLogger(cmd *cobra.Command) {
	levelString, _ := cmd.Flags().GetString("loglevel")

	var level slog.Level

	switch levelString {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

func init() {
	rootCmd.PersistentFlags().String("bucket", os.Getenv("GALLERY_BUCKET"), "S3 bucket (env GALLERY_BUCKET)")
	rootCmd.PersistentFlags().String("endpoint", os.Getenv("AWS_ENDPOINT_URL"), "custom S3 endpoint, e.g. MinIO (env AWS_ENDPOINT_URL)")
	rootCmd.PersistentFlags().String("region", os.Getenv("AWS_REGION"), "AWS region (env AWS_REGION)")
	rootCmd.PersistentFlags().String("loglevel", "info", "log level: debug, info, warn, error")

	uploadCmd.Flags().StringP("name", "n", "", "album display name")
	uploadCmd.Flags().Bool("fail-fast", false, "abort the whole upload on the first failed image instead of skipping it")
	uploadCmd.Flags().Int("render-workers", 0, "image processing workers (default: CPU count)")
	uploadCmd.Flags().Int("upload-workers", 0, "concurrent uploads (default: 4x render workers)")
	_ = uploadCmd.MarkFlagRequired("name")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(deleteCmd)
}
