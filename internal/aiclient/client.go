// Package aiclient talks to the image-generation backend that does the
// heavy lifting: background removal, inpainting and object erasure.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/roomstage/studio/internal/geometry"
)

const maxResponseSize = 64 << 20

const (
	ServiceRemoveBackground = "remove_bg"
	ServiceInpaint          = "inpaint"
	ServiceErase            = "erase"
)

// ServiceError is returned when the backend answers with a non-2xx status.
type ServiceError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.StatusCode, e.Body)
}

type Config struct {
	Host       string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	host string
	http *http.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, errors.New("missing host")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		host: strings.TrimRight(cfg.Host, "/"),
		http: httpClient,
	}, nil
}

// RemoveBackground uploads a furniture image and returns it with the
// background cut out.
func (c *Client) RemoveBackground(ctx context.Context, filename string, image []byte) ([]byte, error) {
	if filename == "" {
		filename = "image.png"
	}
	form := newForm()
	form.file("image", filename, image)
	return c.post(ctx, ServiceRemoveBackground, "/remove_bg/", form)
}

// InpaintRequest asks the backend to turn a flat composite into a realistic
// picture. Furniture boxes are in output canvas pixels.
type InpaintRequest struct {
	Image     []byte
	Prompt    string
	Furniture []geometry.Rect
	Width     int
	Height    int
}

func (c *Client) Inpaint(ctx context.Context, req InpaintRequest) ([]byte, error) {
	furniture, err := marshalRects(req.Furniture)
	if err != nil {
		return nil, err
	}

	form := newForm()
	form.file("image", "composite.png", req.Image)
	form.field("prompt", req.Prompt)
	form.field("furniture", furniture)
	form.size(req.Width, req.Height)
	return c.post(ctx, ServiceInpaint, "/inpaint/", form)
}

// EraseRequest asks the backend to remove whatever is inside Regions from
// the room photo.
type EraseRequest struct {
	Image   []byte
	Regions []geometry.Rect
	Width   int
	Height  int
}

func (c *Client) Erase(ctx context.Context, req EraseRequest) ([]byte, error) {
	regions, err := marshalRects(req.Regions)
	if err != nil {
		return nil, err
	}

	form := newForm()
	form.file("image", "room.png", req.Image)
	form.field("regions", regions)
	form.size(req.Width, req.Height)
	return c.post(ctx, ServiceErase, "/erase/", form)
}

func (c *Client) post(ctx context.Context, service, path string, form *multipartForm) ([]byte, error) {
	body, contentType, err := form.finish()
	if err != nil {
		return nil, fmt.Errorf("%s: build form: %w", service, err)
	}

	postURL := c.host + path

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL, body)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", contentType)

	response, err := c.http.Do(request)
	if err != nil {
		slog.Error("ai request failed", "service", service, "url", postURL, "error", err)
		return nil, fmt.Errorf("%s: %w", service, err)
	}
	defer response.Body.Close()

	data, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", service, err)
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		slog.Warn("ai service rejected request", "service", service, "status", response.StatusCode)
		return nil, &ServiceError{
			Service:    service,
			StatusCode: response.StatusCode,
			Body:       truncate(string(data), 512),
		}
	}

	return data, nil
}

func marshalRects(rects []geometry.Rect) (string, error) {
	if rects == nil {
		rects = []geometry.Rect{}
	}
	data, err := json.Marshal(rects)
	if err != nil {
		return "", fmt.Errorf("marshal rects: %w", err)
	}
	return string(data), nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// multipartForm accumulates fields and remembers the first write error.
type multipartForm struct {
	buf bytes.Buffer
	w   *multipart.Writer
	err error
}

func newForm() *multipartForm {
	f := &multipartForm{}
	f.w = multipart.NewWriter(&f.buf)
	return f
}

func (f *multipartForm) file(field, filename string, data []byte) {
	if f.err != nil {
		return
	}
	fw, err := f.w.CreateFormFile(field, filename)
	if err != nil {
		f.err = err
		return
	}
	_, f.err = fw.Write(data)
}

func (f *multipartForm) field(name, value string) {
	if f.err != nil {
		return
	}
	f.err = f.w.WriteField(name, value)
}

func (f *multipartForm) size(w, h int) {
	if w > 0 && h > 0 {
		f.field("width", strconv.Itoa(w))
		f.field("height", strconv.Itoa(h))
	}
}

func (f *multipartForm) finish() (io.Reader, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	if err := f.w.Close(); err != nil {
		return nil, "", err
	}
	return &f.buf, f.w.FormDataContentType(), nil
}
