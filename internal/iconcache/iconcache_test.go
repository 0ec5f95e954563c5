package iconcache

import (
	"bytes"
	"context"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questlog/achievements/internal/testutil"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(w, h, image.White.C)
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestFetchDownloadsAndResizes(t *testing.T) {
	payload := pngBytes(t, 256, 256)
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	env := testutil.NewTestEnv(t)
	c := New(env.Path("icons"))

	path, err := c.Fetch(context.Background(), "hades", srv.URL+"/icon.png")
	require.NoError(t, err)

	img, err := imaging.Open(path)
	require.NoError(t, err)
	assert.LessOrEqual(t, img.Bounds().Dx(), 64)
	assert.LessOrEqual(t, img.Bounds().Dy(), 64)

	// second fetch hits the local copy
	again, err := c.Fetch(context.Background(), "hades", srv.URL+"/icon.png")
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, 1, hits)
}

func TestFetchRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	env := testutil.NewTestEnv(t)
	c := New(env.Path("icons"))

	_, err := c.Fetch(context.Background(), "hades", srv.URL+"/missing.png")
	assert.Error(t, err)
}

func TestClear(t *testing.T) {
	payload := pngBytes(t, 32, 32)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	env := testutil.NewTestEnv(t)
	c := New(env.Path("icons"))

	path, err := c.Fetch(context.Background(), "hades", srv.URL+"/icon.png")
	require.NoError(t, err)
	require.FileExists(t, path)

	require.NoError(t, c.Clear("hades"))
	assert.NoFileExists(t, path)
}

func TestClearAll(t *testing.T) {
	payload := pngBytes(t, 32, 32)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	env := testutil.NewTestEnv(t)
	c := New(env.Path("icons"))

	hades, err := c.Fetch(context.Background(), "hades", srv.URL+"/a.png")
	require.NoError(t, err)
	celeste, err := c.Fetch(context.Background(), "celeste", srv.URL+"/b.png")
	require.NoError(t, err)

	require.NoError(t, c.ClearAll())
	assert.NoFileExists(t, hades)
	assert.NoFileExists(t, celeste)
}
