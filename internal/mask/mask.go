// Package mask renders the greyscale masks that tell the inpainting model
// which parts of the room to repaint.
package mask

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/anthonynsimon/bild/blur"

	"github.com/roomstage/studio/internal/geometry"
)

// DefaultFeather is the Gaussian radius used to soften mask edges.
const DefaultFeather = 8.0

// Render returns a w×h mask that is white inside every rect and black
// elsewhere. Rects cover their right and bottom edge pixels as well.
// A feather radius > 0 blurs the edges.
func Render(w, h int, rects []geometry.Rect, feather float64) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, w, h))
	for _, r := range rects {
		if r.Width < 0 || r.Height < 0 {
			continue
		}
		px := image.Rect(
			int(math.Floor(r.X)),
			int(math.Floor(r.Y)),
			int(math.Floor(r.X+r.Width))+1,
			int(math.Floor(r.Y+r.Height))+1,
		).Intersect(m.Bounds())
		draw.Draw(m, px, image.NewUniform(color.White), image.Point{}, draw.Src)
	}

	if feather <= 0 {
		return m
	}

	blurred := blur.Gaussian(m, feather)
	out := image.NewGray(m.Bounds())
	draw.Draw(out, out.Bounds(), blurred, blurred.Bounds().Min, draw.Src)
	return out
}
