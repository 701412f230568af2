package images

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func servePNG(t *testing.T, width, height int) *httptest.Server {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 255), G: uint8(y % 255), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	}))
}

func TestFetchAndOptimizeResizesWideImages(t *testing.T) {
	srv := servePNG(t, 2400, 1200)
	defer srv.Close()

	o := New(Config{MaxWidth: 1200})
	data, name, mime, err := o.FetchAndOptimize(context.Background(), srv.URL+"/naslovna.png")
	require.NoError(t, err)

	assert.Equal(t, "naslovna.jpg", name)
	assert.Equal(t, "image/jpeg", mime)

	decoded, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1200, decoded.Bounds().Dx())
	// Aspect ratio preserved.
	assert.Equal(t, 600, decoded.Bounds().Dy())
}

func TestFetchAndOptimizeKeepsSmallImages(t *testing.T) {
	srv := servePNG(t, 640, 480)
	defer srv.Close()

	o := New(Config{})
	data, _, _, err := o.FetchAndOptimize(context.Background(), srv.URL+"/mala.png")
	require.NoError(t, err)

	decoded, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 640, decoded.Bounds().Dx())
	assert.Equal(t, 480, decoded.Bounds().Dy())
}

func TestFetchAndOptimizeRejectsNonImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not an image</html>"))
	}))
	defer srv.Close()

	o := New(Config{})
	_, _, _, err := o.FetchAndOptimize(context.Background(), srv.URL)
	require.Error(t, err)
}

func TestFetchAndOptimizeNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	o := New(Config{})
	_, _, _, err := o.FetchAndOptimize(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}
