package s3

import (
	"context"
	stderrors "errors"
	"strings"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/cloudkit/cloudkit/pkg/errors"
)

// translateError maps AWS failures onto storage error codes.
func translateError(err error, operation, bucket, key string) error {
	var translated *errors.Error
	switch {
	case isErrorType[*s3types.NoSuchKey](err), isErrorType[*s3types.NotFound](err):
		translated = errors.Wrap(err, errors.CategoryStorage, errors.ErrCodeObjectNotFound,
			"object not found: "+key)
	case isErrorType[*s3types.NoSuchBucket](err):
		translated = errors.Wrap(err, errors.CategoryStorage, errors.ErrCodeBucketNotFound,
			"bucket not found: "+bucket)
	case isAccessDenied(err):
		translated = errors.Wrap(err, errors.CategoryStorage, errors.ErrCodeAccessDenied,
			"access denied for "+key)
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, context.Canceled):
		translated = errors.Wrap(err, errors.CategoryStorage, errors.ErrCodeTransferFailed,
			operation+" interrupted").
			WithSuggestion("The request was cancelled or timed out. Retry with a longer deadline.")
	default:
		translated = errors.Wrap(err, errors.CategoryStorage, errors.ErrCodeTransferFailed,
			operation+" failed")
	}

	translated = translated.WithOperation(operation).WithDetail("bucket", bucket)
	if key != "" {
		translated = translated.WithDetail("key", key)
	}
	return translated
}

func isAccessDenied(err error) bool {
	var apiErr smithy.APIError
	if !stderrors.As(err, &apiErr) {
		return false
	}
	code := apiErr.ErrorCode()
	return code == "AccessDenied" || code == "Forbidden" || strings.HasPrefix(code, "InvalidAccessKey")
}

func isErrorType[T error](err error) bool {
	var target T
	return stderrors.As(err, &target)
}

// detectContentType guesses a content type from the key's extension.
func detectContentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	case strings.HasSuffix(key, ".xml"):
		return "application/xml"
	case strings.HasSuffix(key, ".html"):
		return "text/html"
	case strings.HasSuffix(key, ".txt"):
		return "text/plain"
	case strings.HasSuffix(key, ".jpg"), strings.HasSuffix(key, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(key, ".png"):
		return "image/png"
	case strings.HasSuffix(key, ".pdf"):
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
