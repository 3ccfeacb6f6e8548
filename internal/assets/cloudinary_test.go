package assets

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "card.png")
	require.NoError(t, os.WriteFile(path, []byte("fake png bytes"), 0o644))
	return path
}

func TestCloudinaryUploader_Upload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1_1/demo-cloud/image/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(10<<20))
		assert.Equal(t, "demo-preset", r.FormValue("upload_preset"))

		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "card.png", header.Filename)

		fmt.Fprint(w, `{"secure_url": "https://res.cloudinary.com/demo-cloud/card.png"}`)
	}))
	defer server.Close()

	uploader := NewCloudinaryUploader("demo-cloud", "demo-preset")
	uploader.baseURL = server.URL

	url, err := uploader.Upload(context.Background(), tempFile(t))
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo-cloud/card.png", url)
}

func TestCloudinaryUploader_ErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": {"message": "Upload preset not found"}}`)
	}))
	defer server.Close()

	uploader := NewCloudinaryUploader("demo-cloud", "bad-preset")
	uploader.baseURL = server.URL

	_, err := uploader.Upload(context.Background(), tempFile(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Upload preset not found")
}

func TestCloudinaryUploader_NoURLInResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	uploader := NewCloudinaryUploader("demo-cloud", "demo-preset")
	uploader.baseURL = server.URL

	_, err := uploader.Upload(context.Background(), tempFile(t))
	assert.Error(t, err)
}
