package objectstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pdf_rag/backend/go/internal/config"
	"pdf_rag/backend/go/internal/rag_service/rag/ragerr"
	"pdf_rag/backend/go/pkg/logger"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPutter struct {
	bucket, key string
	body        []byte
	opts        minio.PutObjectOptions
	err         error
}

func (p *recordingPutter) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if p.err != nil {
		return minio.UploadInfo{}, p.err
	}
	p.bucket, p.key, p.opts = bucket, key, opts
	p.body, _ = io.ReadAll(r)
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func boolPtr(v bool) *bool { return &v }

func awsConfig(t *testing.T) config.StorageConfig {
	return config.StorageConfig{
		Endpoint:   "s3.amazonaws.com",
		Region:     "eu-west-1",
		Bucket:     "haystack-docs",
		Prefix:     "uploads",
		Secure:     boolPtr(true),
		ScratchDir: filepath.Join(t.TempDir(), "s3"),
	}
}

func TestStore_KeyAndURL(t *testing.T) {
	p := &recordingPutter{}
	s := NewWithPutter(p, awsConfig(t), nil, logger.Discard())

	ref, err := s.Store(context.Background(), []byte("%PDF-1.4 body"), "paper.pdf")
	require.NoError(t, err)

	assert.Equal(t, "haystack-docs", p.bucket)
	assert.True(t, strings.HasPrefix(p.key, "uploads/"))
	assert.True(t, strings.HasSuffix(p.key, ".pdf"))
	assert.Len(t, strings.TrimSuffix(strings.TrimPrefix(p.key, "uploads/"), ".pdf"), 36)
	assert.Equal(t, ContentTypePDF, p.opts.ContentType)
	assert.Equal(t, "paper.pdf", p.opts.UserMetadata["original-name"])
	assert.Equal(t, []byte("%PDF-1.4 body"), p.body)
	assert.Equal(t, "https://haystack-docs.s3.eu-west-1.amazonaws.com/"+p.key, ref)

	ref2, err := s.Store(context.Background(), []byte("x"), "paper.pdf")
	require.NoError(t, err)
	assert.NotEqual(t, ref, ref2, "every upload gets a fresh key")
}

func TestStore_Failure(t *testing.T) {
	p := &recordingPutter{err: minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}}
	s := NewWithPutter(p, awsConfig(t), nil, logger.Discard())

	_, err := s.Store(context.Background(), []byte("x"), "a.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, ragerr.Storage)
	assert.Equal(t, http.StatusForbidden, ragerr.StatusCode(err))
}

func TestPublicBaseURL(t *testing.T) {
	cfg := config.StorageConfig{Endpoint: "localhost:9000", Bucket: "docs"}
	assert.Equal(t, "http://localhost:9000/docs", PublicBaseURL(cfg))

	cfg.Secure = boolPtr(true)
	assert.Equal(t, "https://localhost:9000/docs", PublicBaseURL(cfg))

	cfg.PublicBaseURL = "https://cdn.example.com/docs/"
	assert.Equal(t, "https://cdn.example.com/docs", PublicBaseURL(cfg))
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(config.StorageConfig{Endpoint: "s3.amazonaws.com", Bucket: "b"}, nil, logger.Discard())
	assert.ErrorIs(t, err, ragerr.Configuration)
}

func TestFetch_DownloadsIntoScratchDir(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "/docs/uploads/abc.pdf", r.URL.Path)
		_, _ = w.Write([]byte("pdf bytes"))
	}))
	defer srv.Close()

	cfg := awsConfig(t)
	s := NewWithPutter(&recordingPutter{}, cfg, nil, logger.Discard())

	local, err := s.Fetch(context.Background(), srv.URL+"/docs/uploads/abc.pdf")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(local))
	assert.Equal(t, "abc.pdf", filepath.Base(local))
	assert.Equal(t, cfg.ScratchDir, filepath.Dir(local))

	body, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(body))

	// a second fetch of the same name reuses the scratch file
	again, err := s.Fetch(context.Background(), srv.URL+"/docs/uploads/abc.pdf")
	require.NoError(t, err)
	assert.Equal(t, local, again)
	assert.Equal(t, 1, hits)
}

func TestFetch_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	cfg := awsConfig(t)
	s := NewWithPutter(&recordingPutter{}, cfg, nil, logger.Discard())

	_, err := s.Fetch(context.Background(), srv.URL+"/missing.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, ragerr.Storage)
	assert.Equal(t, http.StatusNotFound, ragerr.StatusCode(err))

	_, statErr := os.Stat(filepath.Join(cfg.ScratchDir, "missing.pdf"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/gone.pdf"
	srv.Close()

	s := NewWithPutter(&recordingPutter{}, awsConfig(t), nil, logger.Discard())
	_, err := s.Fetch(context.Background(), url)
	require.Error(t, err)
	assert.ErrorIs(t, err, ragerr.Storage)
	assert.Zero(t, ragerr.StatusCode(err))
}

func TestFileName(t *testing.T) {
	name, err := FileName("https://b.s3.us-east-1.amazonaws.com/uploads/1234.pdf?x=1")
	require.NoError(t, err)
	assert.Equal(t, "1234.pdf", name)

	_, err = FileName("https://example.com/")
	assert.Error(t, err)
}

type bucketPutter struct {
	recordingPutter
	exists bool
}

func (b *bucketPutter) BucketExists(context.Context, string) (bool, error) { return b.exists, nil }

func TestStore_HealthCheck(t *testing.T) {
	ctx := context.Background()

	s := NewWithPutter(&bucketPutter{exists: true}, awsConfig(t), nil, logger.Discard())
	assert.NoError(t, s.HealthCheck(ctx))

	s = NewWithPutter(&bucketPutter{}, awsConfig(t), nil, logger.Discard())
	err := s.HealthCheck(ctx)
	assert.ErrorIs(t, err, ragerr.Storage)
	assert.Contains(t, err.Error(), "haystack-docs")

	s = NewWithPutter(&recordingPutter{}, awsConfig(t), nil, logger.Discard())
	assert.NoError(t, s.HealthCheck(ctx))
}
