package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// listingServer serves a listing page with one large and one thumbnail
// image, plus an empty listing at /empty.
func listingServer(t *testing.T) *httptest.Server {
	t.Helper()
	large := pngBytes(t, 300, 240)
	small := pngBytes(t, 80, 80)

	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/listing", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
<img class="ui-pdp-image" data-src="%[1]s/large-F.webp">
<img class="ui-pdp-image" src="%[1]s/small-W.webp">
</body></html>`, srv.URL)
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>sold out</p></body></html>`)
	})
	mux.HandleFunc("/large-O.jpg", func(w http.ResponseWriter, r *http.Request) { w.Write(large) })
	mux.HandleFunc("/small-O.jpg", func(w http.ResponseWriter, r *http.Request) { w.Write(small) })

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestFetch_WithFolder(t *testing.T) {
	srv := listingServer(t)
	dir := t.TempDir()

	out, err := runCmd(t, "", "fetch", srv.URL+"/listing", "tenis", "--image-dir", dir, "--scale", "1.5")
	require.NoError(t, err)

	assert.Contains(t, out, "found 2 images")
	assert.Contains(t, out, "processing image 1 of 2...")
	assert.Contains(t, out, "skipping small image 2 of 2")
	assert.Contains(t, out, "done: saved 1 of 2 images")

	f, err := os.Open(filepath.Join(dir, "tenis", "imagem_1.jpg"))
	require.NoError(t, err)
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 450, cfg.Width)
	assert.Equal(t, 360, cfg.Height)

	_, err = os.Stat(filepath.Join(dir, "tenis", "imagem_2.jpg"))
	assert.True(t, os.IsNotExist(err))
}

func TestFetch_PromptsForFolder(t *testing.T) {
	srv := listingServer(t)
	dir := t.TempDir()

	out, err := runCmd(t, "bolsa\n", "fetch", srv.URL+"/listing", "--image-dir", dir, "--scale", "1")
	require.NoError(t, err)

	assert.Contains(t, out, "Found 2 images. Folder name to save them in: ")
	assert.FileExists(t, filepath.Join(dir, "bolsa", "imagem_1.jpg"))
}

func TestFetch_InvalidFolder(t *testing.T) {
	srv := listingServer(t)

	_, err := runCmd(t, "../escape\n", "fetch", srv.URL+"/listing", "--image-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid folder name")
}

func TestFetch_NoImages(t *testing.T) {
	srv := listingServer(t)

	out, err := runCmd(t, "", "fetch", srv.URL+"/empty", "x", "--image-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, out, "no images found in listing")
}

func TestBatch(t *testing.T) {
	srv := listingServer(t)
	dir := t.TempDir()

	csvPath := filepath.Join(t.TempDir(), "listings.csv")
	content := "link;pasta\n" + srv.URL + "/listing;tenis\n" + srv.URL + "/listing;bolsa\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(content), 0o644))

	out, err := runCmd(t, "", "batch", csvPath, "-d", ";", "--image-dir", dir, "--scale", "1")
	require.NoError(t, err)

	assert.Contains(t, out, "[1/2]")
	assert.Contains(t, out, "[2/2]")
	assert.Contains(t, strings.ToLower(out), "folder")
	assert.FileExists(t, filepath.Join(dir, "tenis", "imagem_1.jpg"))
	assert.FileExists(t, filepath.Join(dir, "bolsa", "imagem_1.jpg"))
}

func TestBatch_ReportsFailures(t *testing.T) {
	srv := listingServer(t)

	csvPath := filepath.Join(t.TempDir(), "listings.csv")
	content := srv.URL + "/listing,tenis\n" + srv.URL + "/empty,vazio\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(content), 0o644))

	out, err := runCmd(t, "", "batch", csvPath, "--image-dir", t.TempDir(), "--scale", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 listings failed")
	assert.Contains(t, out, "no images")
}

func TestBatch_BadDelimiter(t *testing.T) {
	_, err := runCmd(t, "", "batch", "x.csv", "-d", ";;")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delimiter")
}

func TestRoot_InvalidScaleFlag(t *testing.T) {
	_, err := runCmd(t, "", "fetch", "http://127.0.0.1:1/listing", "x", "--scale=-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scale")
}
