package compositor

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Source resolves an image reference (data URL, HTTP URL, asset ID...)
// to its encoded bytes.
type Source interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, ref string) (io.ReadCloser, error)

func (f SourceFunc) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	return f(ctx, ref)
}

// Decode opens ref through src and decodes it. PNG, JPEG, GIF, WebP, BMP
// and TIFF are understood.
func Decode(ctx context.Context, src Source, ref string) (image.Image, error) {
	rc, err := src.Open(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer rc.Close()

	img, _, err := image.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("decode image: empty bounds %v", b)
	}
	return img, nil
}

// Encode writes img as PNG. Failures wrap ErrEncode.
func Encode(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return nil
}
