package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestS3(expiry time.Duration) *S3Storage {
	client := s3.New(s3.Options{
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider("access", "secret", ""),
		BaseEndpoint: aws.String("http://minio.test:9000"),
		UsePathStyle: true,
	})
	return &S3Storage{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        "campus",
		publicURL:     "http://minio.test:9000/campus",
		presignExpiry: expiry,
	}
}

func TestS3ReferenceIsStable(t *testing.T) {
	st := newTestS3(time.Hour)

	ref := st.URL("user-1/1700000000000.pdf")
	assert.Equal(t, "http://minio.test:9000/campus/user-1/1700000000000.pdf", ref)
	assert.NotContains(t, ref, "X-Amz-Expires")
}

func TestS3DownloadURLIsPresignedOnDemand(t *testing.T) {
	st := newTestS3(15 * time.Minute)

	u, err := st.DownloadURL(context.Background(), "user-1/1700000000000.pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "http://minio.test:9000/campus/user-1/1700000000000.pdf?"), u)
	assert.Contains(t, u, "X-Amz-Expires=900")
	assert.Contains(t, u, "X-Amz-Signature=")
}
