// Package studio exposes the editor's server-side operations over HTTP:
// compositing, photorealistic rendering, background removal, erasure and
// mask previews.
package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/roomstage/studio/internal/aiclient"
	"github.com/roomstage/studio/internal/asset"
	"github.com/roomstage/studio/internal/auth"
	"github.com/roomstage/studio/internal/compositor"
	"github.com/roomstage/studio/internal/design"
	"github.com/roomstage/studio/internal/geometry"
	"github.com/roomstage/studio/internal/mask"
	"github.com/roomstage/studio/internal/typeid"
)

const (
	maxJSONSize   = 32 << 20
	maxUploadSize = 10 << 20

	// DefaultMaxCanvasPixels caps width*height of any rendered surface.
	DefaultMaxCanvasPixels = 4096 * 4096
)

var errCanvasSize = errors.New("invalid canvas size")

// AI is the subset of the image backend the handlers rely on.
type AI interface {
	RemoveBackground(ctx context.Context, filename string, image []byte) ([]byte, error)
	Inpaint(ctx context.Context, req aiclient.InpaintRequest) ([]byte, error)
	Erase(ctx context.Context, req aiclient.EraseRequest) ([]byte, error)
}

type Config struct {
	Source        compositor.Source
	AI            AI
	CanvasWidth   int
	CanvasHeight  int
	DefaultPrompt string
	MaskFeather   float64

	// MaxCanvasPixels bounds the requested output size. Zero means
	// DefaultMaxCanvasPixels.
	MaxCanvasPixels int
}

type Handler struct {
	cfg Config
}

func NewHandler(cfg Config) *Handler {
	if cfg.CanvasWidth <= 0 || cfg.CanvasHeight <= 0 {
		cfg.CanvasWidth, cfg.CanvasHeight = 800, 384
	}
	if cfg.MaxCanvasPixels <= 0 {
		cfg.MaxCanvasPixels = DefaultMaxCanvasPixels
	}
	if cfg.MaskFeather < 0 {
		cfg.MaskFeather = mask.DefaultFeather
	}
	return &Handler{cfg: cfg}
}

type layoutRequest struct {
	Background string        `json:"background"`
	Items      []design.Item `json:"items"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	Prompt     string        `json:"prompt,omitempty"`
}

// size resolves the requested output size. 0x0 means the configured canvas;
// anything else must be positive and within MaxCanvasPixels.
func (h *Handler) size(w, hgt int) (int, int, error) {
	if w == 0 && hgt == 0 {
		return h.cfg.CanvasWidth, h.cfg.CanvasHeight, nil
	}
	if w <= 0 || hgt <= 0 {
		return 0, 0, fmt.Errorf("%w: width and height must be positive, got %dx%d", errCanvasSize, w, hgt)
	}
	if int64(w)*int64(hgt) > int64(h.cfg.MaxCanvasPixels) {
		return 0, 0, fmt.Errorf("%w: %dx%d exceeds %d pixels", errCanvasSize, w, hgt, h.cfg.MaxCanvasPixels)
	}
	return w, hgt, nil
}

// sizeOrReject is size that answers 400 itself on failure.
func (h *Handler) sizeOrReject(w http.ResponseWriter, reqW, reqH int) (int, int, bool) {
	width, height, err := h.size(reqW, reqH)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return 0, 0, false
	}
	return width, height, true
}

// Composite handles POST /api/composite and returns the flattened PNG.
func (h *Handler) Composite(w http.ResponseWriter, r *http.Request) {
	var req layoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	width, height, ok := h.sizeOrReject(w, req.Width, req.Height)
	if !ok {
		return
	}

	png, ok := h.composite(r.Context(), w, req, width, height)
	if !ok {
		return
	}
	writePNG(w, png)
}

// Render handles POST /api/render: composite, then hand the result to the
// inpainting backend for a realistic pass.
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	var req layoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	width, height, ok := h.sizeOrReject(w, req.Width, req.Height)
	if !ok {
		return
	}

	composite, ok := h.composite(r.Context(), w, req, width, height)
	if !ok {
		return
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = h.cfg.DefaultPrompt
	}

	d := design.Design{Room: req.Background, Items: req.Items}
	renderID := typeid.NewRenderID()
	subject := auth.SubjectFromContext(r.Context())
	start := time.Now()

	out, err := h.cfg.AI.Inpaint(r.Context(), aiclient.InpaintRequest{
		Image:     composite,
		Prompt:    prompt,
		Furniture: d.FurnitureBoxes(),
		Width:     width,
		Height:    height,
	})
	if err != nil {
		slog.Error("inpaint failed", "render", renderID, "subject", subject, "error", err)
		writeServiceError(w, "render failed", err)
		return
	}

	slog.Info("render complete", "render", renderID, "subject", subject, "items", len(req.Items), "duration", time.Since(start))
	w.Header().Set("X-Render-ID", renderID)
	writePNG(w, out)
}

func (h *Handler) composite(ctx context.Context, w http.ResponseWriter, req layoutRequest, width, height int) ([]byte, bool) {
	d := design.Design{Room: req.Background, Items: req.Items}

	png, err := compositor.Composite(ctx, h.cfg.Source, d.CompositeRequest(width, height))
	switch {
	case err == nil:
		return png, true
	case errors.Is(err, compositor.ErrInvalidSize), errors.Is(err, compositor.ErrInvalidScale):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, compositor.ErrBackgroundLoad):
		slog.Warn("composite background", "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "failed to load room image"})
	default:
		slog.Error("composite failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create composite"})
	}
	return nil, false
}

// RemoveBackground handles POST /api/furniture/remove-bg (multipart
// "image"). If the backend fails the original image is returned untouched
// and X-Background-Removed is "false".
func (h *Handler) RemoveBackground(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file too large (max 10MB)"})
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing image field"})
		return
	}
	defer file.Close()

	original, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read image"})
		return
	}

	out, err := h.cfg.AI.RemoveBackground(r.Context(), header.Filename, original)
	if err != nil {
		slog.Warn("background removal failed, keeping original", "file", header.Filename, "error", err)
		w.Header().Set("X-Background-Removed", "false")
		w.Header().Set("Content-Type", http.DetectContentType(original))
		w.Write(original)
		return
	}

	w.Header().Set("X-Background-Removed", "true")
	writePNG(w, out)
}

type eraseRequest struct {
	Image   string          `json:"image"`
	Regions []geometry.Rect `json:"regions"`
	Items   []design.Item   `json:"items"`
	Width   int             `json:"width"`
	Height  int             `json:"height"`
}

type eraseResponse struct {
	Image   string        `json:"image"`
	Items   []design.Item `json:"items"`
	Removed []string      `json:"removed"`
}

// Erase handles POST /api/erase. On success the updated room comes back as
// a data URL together with the furniture that survived the erasure.
func (h *Handler) Erase(w http.ResponseWriter, r *http.Request) {
	var req eraseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Regions) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least one region is required"})
		return
	}
	width, height, ok := h.sizeOrReject(w, req.Width, req.Height)
	if !ok {
		return
	}

	room, err := h.readSource(r.Context(), req.Image)
	if err != nil {
		slog.Warn("erase room image", "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "failed to load room image"})
		return
	}

	out, err := h.cfg.AI.Erase(r.Context(), aiclient.EraseRequest{
		Image:   room,
		Regions: req.Regions,
		Width:   width,
		Height:  height,
	})
	if err != nil {
		slog.Error("erase failed", "error", err)
		writeServiceError(w, "erase failed", err)
		return
	}

	d := design.Design{Room: req.Image, Items: req.Items}
	removed := d.RemoveOverlapping(req.Regions)

	resp := eraseResponse{
		Image:   asset.DataURL(http.DetectContentType(out), out),
		Items:   d.Items,
		Removed: make([]string, 0, len(removed)),
	}
	if resp.Items == nil {
		resp.Items = []design.Item{}
	}
	for _, it := range removed {
		resp.Removed = append(resp.Removed, it.ID)
	}
	writeJSON(w, http.StatusOK, resp)
}

type maskRequest struct {
	Regions []geometry.Rect `json:"regions"`
	Width   int             `json:"width"`
	Height  int             `json:"height"`
	Feather *float64        `json:"feather,omitempty"`
}

// Mask handles POST /api/mask and returns the feathered mask the backend
// would build for the given regions.
func (h *Handler) Mask(w http.ResponseWriter, r *http.Request) {
	var req maskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	width, height, ok := h.sizeOrReject(w, req.Width, req.Height)
	if !ok {
		return
	}

	feather := h.cfg.MaskFeather
	if req.Feather != nil {
		feather = *req.Feather
	}

	var buf bytes.Buffer
	if err := compositor.Encode(&buf, mask.Render(width, height, req.Regions, feather)); err != nil {
		slog.Error("encode mask", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to encode mask"})
		return
	}
	writePNG(w, buf.Bytes())
}

type autoPlaceRequest struct {
	Items []design.Item `json:"items"`
	Seed  *int64        `json:"seed,omitempty"`
}

// AutoPlace handles POST /api/layout/auto.
func (h *Handler) AutoPlace(w http.ResponseWriter, r *http.Request) {
	var req autoPlaceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	seed := time.Now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}

	items := design.AutoPlace(req.Items, rand.New(rand.NewSource(seed)))
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type newItemsRequest struct {
	Images []struct {
		Image string `json:"image"`
		Name  string `json:"name"`
	} `json:"images"`
}

// NewItems handles POST /api/items: freshly uploaded furniture images become
// placed items, staggered so they don't stack.
func (h *Handler) NewItems(w http.ResponseWriter, r *http.Request) {
	var req newItemsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Images) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least one image is required"})
		return
	}

	images := make([]string, len(req.Images))
	names := make([]string, len(req.Images))
	for i, img := range req.Images {
		rc, err := h.cfg.Source.Open(r.Context(), img.Image)
		if err != nil {
			slog.Warn("new item image", "index", i, "error", err)
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": fmt.Sprintf("failed to load image %d", i)})
			return
		}
		rc.Close()
		images[i], names[i] = img.Image, img.Name
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": design.NewItems(images, names)})
}

func (h *Handler) readSource(ctx context.Context, ref string) ([]byte, error) {
	rc, err := h.cfg.Source.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONSize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, msg string, err error) {
	var svcErr *aiclient.ServiceError
	if errors.As(err, &svcErr) {
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":         msg,
			"service":       svcErr.Service,
			"serviceStatus": svcErr.StatusCode,
		})
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": msg + ": backend timed out"})
		return
	}
	writeJSON(w, http.StatusBadGateway, map[string]string{"error": msg})
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
