package cloudinary

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New("demo", "key123", "secret", "/timecontrol/")
	c.APIBase = srv.URL
	c.HTTP = srv.Client()
	c.now = func() time.Time { return time.Unix(1717900000, 0) }
	return c
}

func TestUploadEvidencePhoto(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/demo/image/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "w1/2025-06-09/entry_1_cam", r.FormValue("public_id"))
		assert.Equal(t, "timecontrol", r.FormValue("folder"))
		assert.Equal(t, "true", r.FormValue("overwrite"))
		assert.Equal(t, "key123", r.FormValue("api_key"))

		payload := "folder=timecontrol&overwrite=true&public_id=w1/2025-06-09/entry_1_cam&timestamp=1717900000secret"
		assert.Equal(t, fmt.Sprintf("%x", sha1.Sum([]byte(payload))), r.FormValue("signature"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "jpegbytes", string(data))
		assert.Equal(t, "entry_1_cam.jpg", header.Filename)

		_, _ = io.WriteString(w, `{"public_id":"timecontrol/w1/2025-06-09/entry_1_cam","secure_url":"https://res.example/x.jpg"}`)
	})

	url, err := c.UploadEvidencePhoto(context.Background(), []byte("jpegbytes"), "w1/2025-06-09/entry_1_cam.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://res.example/x.jpg", url)
}

func TestUploadReportsAPIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"Invalid Signature"}}`)
	})

	_, err := c.UploadEvidencePhoto(context.Background(), []byte("x"), "a/b.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid Signature")
	assert.Contains(t, err.Error(), "401")
}

func TestUploadHonoursContext(t *testing.T) {
	release := make(chan struct{})
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.UploadEvidencePhoto(ctx, []byte("x"), "a/b.jpg")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUploadRejectsEmptyImage(t *testing.T) {
	c := New("demo", "k", "s", "")
	_, err := c.UploadEvidencePhoto(context.Background(), nil, "a/b.jpg")
	assert.Error(t, err)
}

func TestPublicID(t *testing.T) {
	assert.Equal(t, "w1/2025-06-09/exit_5_photo", publicID("/w1/2025-06-09/exit_5_photo.jpg"))
	assert.Equal(t, "plain", publicID("plain"))
}
