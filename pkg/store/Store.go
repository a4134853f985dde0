/*
Package store abstracts the object store the gallery lives in. Every
operation is atomic for a single object only; there are no cross-object
transactions, which is why callers order their writes (renditions before
manifest) instead of expecting rollback.
*/
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

var (
	ErrObjectNotFound = fmt.Errorf("object not found")
)

/*
DeleteResult reports the outcome of a bulk delete. Batch deletes against
S3-compatible stores can partially fail, so unconfirmed keys are reported
rather than failing the whole call.
*/
type DeleteResult struct {
	Deleted []string
	Failed  []string
}

type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	DeleteMany(ctx context.Context, keys []string) (DeleteResult, error)
}

/*
IsFatal reports whether an error is non-retryable: bad credentials, missing
bucket, denied access. These surface immediately and abort the run; anything
else is assumed transient and worth a bounded retry.
*/
func IsFatal(err error) bool {
	var apiErr smithy.APIError

	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.ErrorCode() {
	case "AccessDenied",
		"InvalidAccessKeyId",
		"SignatureDoesNotMatch",
		"ExpiredToken",
		"TokenRefreshRequired",
		"NoSuchBucket",
		"AccountProblem":
		return true
	}

	return false
}
