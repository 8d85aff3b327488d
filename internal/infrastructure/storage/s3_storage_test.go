package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wms/stocktaking/internal/domain/shared"
	"github.com/wms/stocktaking/internal/infrastructure/config"
	"go.uber.org/zap/zaptest"
)

func validConfig() *config.StorageConfig {
	return &config.StorageConfig{
		Bucket:            "reports",
		AccessKey:         "test-key",
		SecretKey:         "test-secret",
		Endpoint:          "http://localhost:9000",
		UsePathStyle:      true,
		PresignExpiration: 15 * time.Minute,
	}
}

func TestNewS3ObjectStorage_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3ObjectStorage(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		cfg := validConfig()
		cfg.Bucket = ""
		_, err := NewS3ObjectStorage(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("missing credentials return error", func(t *testing.T) {
		cfg := validConfig()
		cfg.SecretKey = ""
		_, err := NewS3ObjectStorage(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret key is required")
	})

	t.Run("default presign expiration is 15 minutes", func(t *testing.T) {
		cfg := validConfig()
		cfg.PresignExpiration = 0
		storage, err := NewS3ObjectStorage(cfg)
		require.NoError(t, err)
		assert.Equal(t, 15*time.Minute, storage.presignExpiration)
		assert.Equal(t, "reports", storage.Bucket())
	})

	t.Run("options override config", func(t *testing.T) {
		storage, err := NewS3ObjectStorage(validConfig(),
			WithLogger(zaptest.NewLogger(t)),
			WithPresignExpiration(time.Hour),
		)
		require.NoError(t, err)
		assert.Equal(t, time.Hour, storage.presignExpiration)
	})
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		ssl      bool
		want     string
	}{
		{"default", "", false, "http://localhost:9000"},
		{"adds http", "minio:9000", false, "http://minio:9000"},
		{"adds https", "minio:9000", true, "https://minio:9000"},
		{"keeps scheme", "https://s3.amazonaws.com", false, "https://s3.amazonaws.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeEndpoint(tt.endpoint, tt.ssl)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestS3ObjectStorage_GenerateDownloadURL(t *testing.T) {
	storage, err := NewS3ObjectStorage(validConfig())
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("empty key returns error", func(t *testing.T) {
		url, err := storage.GenerateDownloadURL(ctx, "", time.Minute)
		require.ErrorIs(t, err, errKeyRequired)
		assert.Empty(t, url)
	})

	t.Run("presigns against the configured bucket", func(t *testing.T) {
		url, err := storage.GenerateDownloadURL(ctx, "stocktaking/abc/report.xlsx", 0)
		require.NoError(t, err)
		assert.True(t, strings.Contains(url, "localhost:9000"))
		assert.True(t, strings.Contains(url, "reports"))
		assert.Contains(t, url, "X-Amz-Expires=900")
	})
}

func TestS3ObjectStorage_Upload_EmptyKey(t *testing.T) {
	storage, err := NewS3ObjectStorage(validConfig())
	require.NoError(t, err)

	err = storage.Upload(context.Background(), "", "text/plain", bytes.NewReader([]byte("x")), 1)
	require.ErrorIs(t, err, errKeyRequired)
}

func TestS3ObjectStorage_BackendErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
			`<Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`)
	}))
	defer server.Close()

	cfg := validConfig()
	cfg.Endpoint = server.URL
	storage, err := NewS3ObjectStorage(cfg)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("upload", func(t *testing.T) {
		err := storage.Upload(ctx, "stocktaking/abc/report.xlsx", "text/plain", strings.NewReader("x"), 1)
		assert.True(t, shared.IsCode(err, shared.CodeNetwork), "got %v", err)
		assert.Contains(t, err.Error(), "upload report")
	})

	t.Run("object exists", func(t *testing.T) {
		ok, err := storage.ObjectExists(ctx, "stocktaking/abc/report.xlsx")
		assert.False(t, ok)
		assert.True(t, shared.IsCode(err, shared.CodeNetwork), "got %v", err)
	})

	t.Run("ensure bucket", func(t *testing.T) {
		err := storage.EnsureBucket(ctx)
		assert.True(t, shared.IsCode(err, shared.CodeNetwork), "got %v", err)
	})
}

func TestMemoryObjectStorage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryObjectStorage("https://files.local")

	require.NoError(t, s.Upload(ctx, "stocktaking/1/report.xlsx", "application/xlsx", strings.NewReader("data"), 4))

	r, contentType, ok := s.Open("stocktaking/1/report.xlsx")
	require.True(t, ok)
	assert.Equal(t, "application/xlsx", contentType)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))

	url, err := s.GenerateDownloadURL(ctx, "stocktaking/1/report.xlsx", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://files.local/stocktaking/1/report.xlsx?expires="))

	_, _, ok = s.Open("missing")
	assert.False(t, ok)
}
