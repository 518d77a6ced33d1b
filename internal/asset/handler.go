package asset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/transform"
	"github.com/gorilla/mux"
	"github.com/h2non/filetype"

	"github.com/roomstage/studio/internal/compositor"
	"github.com/roomstage/studio/internal/geometry"
	"github.com/roomstage/studio/internal/typeid"
)

const (
	maxUploadSize = 10 << 20 // 10MB
	thumbnailSize = 128
)

var ErrNotFound = errors.New("asset not found")

// UploadResponse is returned from the upload endpoint.
type UploadResponse struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Type         string `json:"type"`
	Name         string `json:"name"`
}

// Handler serves asset upload and retrieval endpoints.
type Handler struct {
	dir string // directory to store asset files
}

// NewHandler creates a new asset handler that stores files in dir.
func NewHandler(dir string) *Handler {
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("create asset dir", "error", err, "dir", dir)
	}
	return &Handler{dir: dir}
}

// Upload handles POST /assets/upload (multipart form with "file" field).
// Room photos and furniture images are normalised to PNG on the way in.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "file too large (max 10MB)", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return
	}

	kind, err := filetype.Image(data)
	if err != nil || kind == filetype.Unknown {
		http.Error(w, "unsupported file type: only images are accepted", http.StatusBadRequest)
		return
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		http.Error(w, "invalid image: "+err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.Save(img)
	if err != nil {
		slog.Error("save asset", "error", err)
		http.Error(w, "failed to save file", http.StatusInternalServerError)
		return
	}
	resp.Name = header.Filename
	resp.Type = kind.MIME.Value

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// Save stores img as a PNG asset plus a thumbnail and returns its metadata.
func (h *Handler) Save(img image.Image) (*UploadResponse, error) {
	assetID := typeid.NewAssetID()

	if err := writePNG(h.path(assetID), img); err != nil {
		return nil, fmt.Errorf("write asset: %w", err)
	}
	if err := writePNG(h.thumbPath(assetID), Thumbnail(img, thumbnailSize)); err != nil {
		os.Remove(h.path(assetID))
		return nil, fmt.Errorf("write thumbnail: %w", err)
	}

	bounds := img.Bounds()
	return &UploadResponse{
		ID:           assetID,
		URL:          "/assets/" + assetID + ".png",
		ThumbnailURL: "/assets/" + assetID + ".thumb.png",
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		Type:         "image/png",
	}, nil
}

// Serve returns an http.Handler that serves stored asset files with caching headers.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.dir))
	return http.StripPrefix("/assets/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Asset IDs are unique, so files are immutable
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	}))
}

// Open returns the stored PNG for assetID.
func (h *Handler) Open(assetID string) (io.ReadCloser, error) {
	if err := typeid.Validate(assetID, typeid.PrefixAsset); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	f, err := os.Open(h.path(assetID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, assetID)
		}
		return nil, err
	}
	return f, nil
}

// Delete removes an asset and its thumbnail from disk.
func (h *Handler) Delete(assetID string) error {
	if err := typeid.Validate(assetID, typeid.PrefixAsset); err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if err := os.Remove(h.path(assetID)); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, assetID)
	}
	os.Remove(h.thumbPath(assetID))
	return nil
}

// HandleDelete handles DELETE /api/assets/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["id"]

	if err := h.Delete(assetID); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "asset not found", http.StatusNotFound)
			return
		}
		slog.Error("delete asset", "error", err, "asset", assetID)
		http.Error(w, "failed to delete asset", http.StatusInternalServerError)
		return
	}

	slog.Info("asset deleted", "asset", assetID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) path(assetID string) string {
	return filepath.Join(h.dir, assetID+".png")
}

func (h *Handler) thumbPath(assetID string) string {
	return filepath.Join(h.dir, assetID+".thumb.png")
}

// Thumbnail scales img to fit within a size×size box.
func Thumbnail(img image.Image, size int) image.Image {
	b := img.Bounds()
	w, hgt := geometry.Contain(float64(b.Dx()), float64(b.Dy()), float64(size), float64(size))
	return transform.Resize(img, max(1, int(w+0.5)), max(1, int(hgt+0.5)), transform.Linear)
}

func writePNG(path string, img image.Image) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := compositor.Encode(out, img); err != nil {
		return err
	}
	return out.Close()
}

// assetIDFromRef extracts an asset ID from "asset_xxx", "/assets/asset_xxx.png"
// or a thumbnail URL. Returns "" if ref is not an asset reference.
func assetIDFromRef(ref string) string {
	ref = strings.TrimPrefix(ref, "/assets/")
	ref = strings.TrimSuffix(ref, ".png")
	ref = strings.TrimSuffix(ref, ".thumb")
	if !strings.HasPrefix(ref, typeid.PrefixAsset+"_") || strings.ContainsAny(ref, "/\\.") {
		return ""
	}
	return ref
}
