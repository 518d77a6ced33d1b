// Package compositor flattens a room background and a list of placed
// furniture sprites into a single raster that matches the editor layout:
// the background is drawn "cover, centered" and every sprite is drawn
// "contain" inside a 100×100 box, scaled and rotated about its centre.
package compositor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"golang.org/x/image/draw"

	"github.com/roomstage/studio/internal/geometry"
)

// BaseSize is the edge of the logical box every sprite is laid out in
// before scaling.
const BaseSize = 100.0

var (
	ErrBackgroundLoad = errors.New("background load failure")
	ErrEncode         = errors.New("encode failure")
	ErrInvalidSize    = errors.New("output size must be positive")
	ErrInvalidScale   = errors.New("sprite scale must be positive")
)

// Sprite is one placed furniture image.
type Sprite struct {
	Image    string         `json:"image"`
	Position geometry.Point `json:"position"` // top-left of the 100×100 base box
	Scale    float64        `json:"scale"`
	Rotation float64        `json:"rotation"` // degrees, clockwise
}

// Center returns the sprite's anchor in canvas coordinates.
func (s Sprite) Center() geometry.Point {
	return s.Position.Add(BaseSize/2, BaseSize/2)
}

// Request describes one composite. Width and Height are the output size and
// are independent of the background's own size.
type Request struct {
	Background string   `json:"background"`
	Sprites    []Sprite `json:"sprites"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
}

func (r Request) validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: got %dx%d", ErrInvalidSize, r.Width, r.Height)
	}
	for i, s := range r.Sprites {
		if !(s.Scale > 0) {
			return fmt.Errorf("%w: sprite %d has scale %v", ErrInvalidScale, i, s.Scale)
		}
	}
	return nil
}

// Composite renders req and returns it PNG encoded.
func Composite(ctx context.Context, src Source, req Request) ([]byte, error) {
	img, err := Render(ctx, src, req)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Render draws req onto a fresh surface of exactly req.Width×req.Height.
// A background that cannot be loaded fails the call with ErrBackgroundLoad;
// a sprite that cannot be loaded is left out. Images are loaded one at a
// time, in list order.
func Render(ctx context.Context, src Source, req Request) (*image.RGBA, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, req.Width, req.Height))
	canvas := geometry.Rect{Width: float64(req.Width), Height: float64(req.Height)}

	bg, err := Decode(ctx, src, req.Background)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackgroundLoad, err)
	}
	drawImage(dst, bg, BackgroundPlacement(bg.Bounds(), req.Width, req.Height))

	for i, s := range req.Sprites {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := Decode(ctx, src, s.Image)
		if err != nil {
			// A load cut short by cancellation is not a broken sprite.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			slog.Debug("skipping sprite", "index", i, "error", err)
			continue
		}
		if !SpriteFootprint(img.Bounds(), s).Overlaps(canvas) {
			slog.Debug("sprite off canvas", "index", i)
			continue
		}
		drawImage(dst, img, SpritePlacement(img.Bounds(), s))
	}

	return dst, nil
}

// BackgroundPlacement maps background pixels onto a w×h canvas using cover
// fit.
func BackgroundPlacement(b image.Rectangle, w, h int) geometry.Matrix2D {
	r := geometry.Cover(float64(b.Dx()), float64(b.Dy()), float64(w), float64(h))
	return geometry.Translate(r.X, r.Y).
		Multiply(fitPixels(b, r.Width, r.Height))
}

// SpritePlacement maps sprite pixels onto the canvas: contain fit inside
// the base box, centred on the sprite's anchor, then scaled and rotated
// about that anchor.
func SpritePlacement(b image.Rectangle, s Sprite) geometry.Matrix2D {
	w, h := geometry.Contain(float64(b.Dx()), float64(b.Dy()), BaseSize, BaseSize)
	c := s.Center()
	return geometry.CenteredTransform(c.X, c.Y, s.Scale, s.Rotation).
		Multiply(geometry.Translate(-w/2, -h/2)).
		Multiply(fitPixels(b, w, h))
}

// SpriteFootprint is the axis-aligned canvas area covered by a sprite
// whose pixels span b, rotation included.
func SpriteFootprint(b image.Rectangle, s Sprite) geometry.Rect {
	px := geometry.Rect{
		X:      float64(b.Min.X),
		Y:      float64(b.Min.Y),
		Width:  float64(b.Dx()),
		Height: float64(b.Dy()),
	}
	return SpritePlacement(b, s).TransformRect(px)
}

// fitPixels stretches the pixel rectangle b to a w×h rect at the origin.
func fitPixels(b image.Rectangle, w, h float64) geometry.Matrix2D {
	return geometry.Scale(w/float64(b.Dx()), h/float64(b.Dy())).
		Multiply(geometry.Translate(-float64(b.Min.X), -float64(b.Min.Y)))
}

func drawImage(dst draw.Image, img image.Image, m geometry.Matrix2D) {
	draw.BiLinear.Transform(dst, m.Aff3(), img, img.Bounds(), draw.Over, nil)
}
