package aiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomstage/studio/internal/geometry"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{Host: srv.URL + "/", HTTPClient: srv.Client()})
	require.NoError(t, err)
	return c
}

func TestNewRequiresHost(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestRemoveBackground(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/remove_bg/", r.URL.Path)
		f, hdr, err := r.FormFile("image")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "chair.jpg", hdr.Filename)
		assert.Equal(t, "raw", string(data))
		w.Write([]byte("cutout"))
	})

	out, err := c.RemoveBackground(context.Background(), "chair.jpg", []byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "cutout", string(out))
}

func TestInpaintSendsForm(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/inpaint/", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "cozy", r.FormValue("prompt"))
		assert.Equal(t, "800", r.FormValue("width"))
		assert.Equal(t, "384", r.FormValue("height"))

		var boxes []geometry.Rect
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("furniture")), &boxes))
		assert.Equal(t, []geometry.Rect{{X: 1, Y: 2, Width: 100, Height: 100}}, boxes)
		w.Write([]byte("rendered"))
	})

	out, err := c.Inpaint(context.Background(), InpaintRequest{
		Image:     []byte("png"),
		Prompt:    "cozy",
		Furniture: []geometry.Rect{{X: 1, Y: 2, Width: 100, Height: 100}},
		Width:     800,
		Height:    384,
	})
	require.NoError(t, err)
	assert.Equal(t, "rendered", string(out))
}

func TestEraseSendsEmptyRegionList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/erase/", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "[]", r.FormValue("regions"))
		assert.Empty(t, r.FormValue("width"))
		w.Write([]byte("clean"))
	})

	out, err := c.Erase(context.Background(), EraseRequest{Image: []byte("png")})
	require.NoError(t, err)
	assert.Equal(t, "clean", string(out))
}

func TestServiceErrorOnNonSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	})

	_, err := c.Inpaint(context.Background(), InpaintRequest{Image: []byte("png")})

	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, ServiceInpaint, svcErr.Service)
	assert.Equal(t, http.StatusServiceUnavailable, svcErr.StatusCode)
	assert.Equal(t, "model not loaded", svcErr.Body)
}

func TestTransportError(t *testing.T) {
	c, err := New(Config{Host: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = c.RemoveBackground(context.Background(), "", []byte("x"))
	assert.Error(t, err)

	var svcErr *ServiceError
	assert.False(t, errors.As(err, &svcErr))
}
