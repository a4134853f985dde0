package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	defaultPutAttempts = 3
	deleteBatchSize    = 1000
)

/*
s3API is the slice of the AWS SDK client the store uses. Narrowing it keeps
the retry and batching logic testable without a live endpoint.
*/
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

type S3StoreConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PutAttempts     int
	CallTimeout     time.Duration
}

type S3Store struct {
	client      s3API
	bucket      string
	putAttempts int
	callTimeout time.Duration
}

/*
NewS3Store builds a store against an S3-compatible endpoint. A custom
endpoint (MinIO, LocalStack) switches the client to path-style addressing.
*/
func NewS3Store(ctx context.Context, config S3StoreConfig) (*S3Store, error) {
	var (
		err     error
		loadFns []func(*awsconfig.LoadOptions) error
	)

	if config.Region != "" {
		loadFns = append(loadFns, awsconfig.WithRegion(config.Region))
	}

	if config.AccessKeyID != "" {
		loadFns = append(loadFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadFns...)

	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Store(client, config), nil
}

func newS3Store(client s3API, config S3StoreConfig) *S3Store {
	if config.PutAttempts <= 0 {
		config.PutAttempts = defaultPutAttempts
	}

	if config.CallTimeout <= 0 {
		config.CallTimeout = time.Minute
	}

	return &S3Store{
		client:      client,
		bucket:      config.Bucket,
		putAttempts: config.PutAttempts,
		callTimeout: config.CallTimeout,
	}
}

/*
Put uploads a single object. Transient failures are retried with exponential
backoff up to the configured attempt count; fatal errors (auth, missing
bucket) surface immediately.
*/
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	var (
		err error
	)

	for attempt := 0; attempt < s.putAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffDelay(attempt)):
			}

			slog.Debug("retrying put", "key", key, "attempt", attempt+1)
		}

		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)

		_, err = s.client.PutObject(callCtx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
		})

		cancel()

		if err == nil {
			return nil
		}

		if IsFatal(err) || ctx.Err() != nil {
			break
		}
	}

	return fmt.Errorf("error uploading object %s: %w", key, err)
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	response, err := s.client.GetObject(callCtx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})

	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}

		return nil, fmt.Errorf("error retrieving object %s: %w", key, err)
	}

	defer response.Body.Close()

	data, err := io.ReadAll(response.Body)

	if err != nil {
		return nil, fmt.Errorf("error reading object body %s: %w", key, err)
	}

	return data, nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	var (
		keys              []string
		continuationToken *string
	)

	for {
		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)

		response, err := s.client.ListObjectsV2(callCtx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuationToken,
		})

		cancel()

		if err != nil {
			return nil, fmt.Errorf("error listing objects with prefix %s: %w", prefix, err)
		}

		for _, object := range response.Contents {
			keys = append(keys, aws.ToString(object.Key))
		}

		if !aws.ToBool(response.IsTruncated) {
			break
		}

		continuationToken = response.NextContinuationToken
	}

	return keys, nil
}

/*
DeleteMany removes objects in batches. Keys the store refuses to delete are
reported in the result rather than aborting the whole batch; only fatal
errors return an error.
*/
func (s *S3Store) DeleteMany(ctx context.Context, keys []string) (DeleteResult, error) {
	result := DeleteResult{}

	for start := 0; start < len(keys); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(keys))
		batch := keys[start:end]

		identifiers := make([]types.ObjectIdentifier, 0, len(batch))

		for _, key := range batch {
			identifiers = append(identifiers, types.ObjectIdentifier{Key: aws.String(key)})
		}

		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)

		response, err := s.client.DeleteObjects(callCtx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: identifiers,
				Quiet:   aws.Bool(true),
			},
		})

		cancel()

		if err != nil {
			if IsFatal(err) {
				return result, fmt.Errorf("error deleting objects: %w", err)
			}

			slog.Error("delete batch failed, keys unconfirmed", "error", err, "count", len(batch))
			result.Failed = append(result.Failed, batch...)
			continue
		}

		failed := map[string]bool{}

		for _, deleteError := range response.Errors {
			key := aws.ToString(deleteError.Key)
			failed[key] = true
			result.Failed = append(result.Failed, key)
		}

		for _, key := range batch {
			if !failed[key] {
				result.Deleted = append(result.Deleted, key)
			}
		}
	}

	return result, nil
}

func backoffDelay(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt-1)) * 250 * time.Millisecond
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey

	return errors.As(err, &noSuchKey)
}
