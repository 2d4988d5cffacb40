package s3

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudkit/cloudkit/pkg/errors"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errors.ErrorCode
	}{
		{"no such key", &s3types.NoSuchKey{}, errors.ErrCodeObjectNotFound},
		{"not found", fmt.Errorf("head: %w", &s3types.NotFound{}), errors.ErrCodeObjectNotFound},
		{"no such bucket", &s3types.NoSuchBucket{}, errors.ErrCodeBucketNotFound},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}, errors.ErrCodeAccessDenied},
		{"bad access key", &smithy.GenericAPIError{Code: "InvalidAccessKeyId"}, errors.ErrCodeAccessDenied},
		{"deadline", context.DeadlineExceeded, errors.ErrCodeTransferFailed},
		{"other", stderrors.New("connection reset"), errors.ErrCodeTransferFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translateError(tt.err, "GetObject", "photos", "public/a.txt")

			e, ok := errors.AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.want, e.Code)
			assert.Equal(t, errors.CategoryStorage, e.Category)
			assert.Equal(t, "GetObject", e.Operation)
			assert.Equal(t, "photos", e.Details["bucket"])
			assert.Equal(t, "public/a.txt", e.Details["key"])
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestTranslateError_NoKey(t *testing.T) {
	err := translateError(&s3types.NoSuchBucket{}, "HeadBucket", "photos", "")
	e, ok := errors.AsError(err)
	require.True(t, ok)
	_, hasKey := e.Details["key"]
	assert.False(t, hasKey)
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		key      string
		expected string
	}{
		{"file.json", "application/json"},
		{"file.xml", "application/xml"},
		{"file.html", "text/html"},
		{"file.txt", "text/plain"},
		{"file.jpg", "image/jpeg"},
		{"file.jpeg", "image/jpeg"},
		{"file.png", "image/png"},
		{"file.pdf", "application/pdf"},
		{"file.unknown", "application/octet-stream"},
		{"file", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.expected, detectContentType(tt.key))
		})
	}
}
