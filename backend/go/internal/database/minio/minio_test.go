package minio

import (
	"context"
	"errors"
	"testing"

	"pdf_rag/backend/go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	cfg := config.StorageConfig{
		Endpoint:  "http://localhost:9000",
		Region:    "us-east-1",
		Bucket:    "docs",
		AccessKey: "minio",
		SecretKey: "minio123",
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", c.EndpointURL().Host)
	assert.Equal(t, "http", c.EndpointURL().Scheme)
}

func TestNewClient_MissingCredentials(t *testing.T) {
	_, err := NewClient(config.StorageConfig{Endpoint: "localhost:9000", Bucket: "docs"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accessKey")
}

type fakeBuckets struct {
	exists bool
	err    error
}

func (f fakeBuckets) BucketExists(context.Context, string) (bool, error) { return f.exists, f.err }

func TestHealthCheck(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, HealthCheck(ctx, fakeBuckets{exists: true}, "docs"))

	err := HealthCheck(ctx, fakeBuckets{}, "docs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docs")

	boom := errors.New("dial tcp: connection refused")
	assert.ErrorIs(t, HealthCheck(ctx, fakeBuckets{err: boom}, "docs"), boom)
}
