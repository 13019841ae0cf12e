// Package thumbnail derives small preview images from stored originals.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"docvault/internal/logging"
	"docvault/internal/storage"
)

// Bounds is the box a thumbnail must fit into.
type Bounds struct {
	Width  int
	Height int
}

// DefaultBounds is used when a zero Bounds is passed to Derive.
var DefaultBounds = Bounds{Width: 200, Height: 200}

// DefaultMaxPixels caps the decoded size of an original (about 160 MiB as RGBA).
// A small, highly compressed file can declare far larger dimensions.
const DefaultMaxPixels = 40_000_000

// Deriver builds thumbnails and writes them to the thumbnails class of a store.
type Deriver struct {
	log       *logging.Logger
	maxPixels int64
}

func New(log *logging.Logger) *Deriver {
	if log == nil {
		log = logging.Discard()
	}
	return &Deriver{log: log, maxPixels: DefaultMaxPixels}
}

// Derive reads key from store, scales it to fit bounds and saves the result.
// It never fails loudly: on any error it logs and returns ("", false).
func (d *Deriver) Derive(ctx context.Context, store storage.Storage, key string, bounds Bounds) (string, bool) {
	thumbKey, err := d.derive(ctx, store, key, bounds)
	if err != nil {
		d.log.Warn("thumbnail_failed", logging.Fields{"path": key, "error": err})
		return "", false
	}
	return thumbKey, true
}

func (d *Deriver) derive(ctx context.Context, store storage.Storage, key string, bounds Bounds) (string, error) {
	rc, _, err := store.Fetch(ctx, key)
	if err != nil {
		return "", fmt.Errorf("fetch original: %w", err)
	}
	defer rc.Close()

	// Read the header first; the bytes it consumed are replayed for Decode.
	var head bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(rc, &head))
	if err != nil {
		return "", fmt.Errorf("decode image header: %w", err)
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > d.maxPixels {
		return "", fmt.Errorf("image %dx%d exceeds %d pixels", cfg.Width, cfg.Height, d.maxPixels)
	}

	src, format, err := image.Decode(io.MultiReader(&head, rc))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	var (
		buf bytes.Buffer
		ext string
		ct  string
	)
	img := Scale(src, bounds)
	switch format {
	case "jpeg":
		ext, ct = ".jpg", "image/jpeg"
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
	case "gif":
		ext, ct = ".gif", "image/gif"
		err = gif.Encode(&buf, img, nil)
	default:
		ext, ct = ".png", "image/png"
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return "", fmt.Errorf("encode %s thumbnail: %w", format, err)
	}

	info, err := store.Save(ctx, &buf, "thumbnail"+ext, storage.SaveOptions{
		Class:       storage.ClassThumbnail,
		Size:        int64(buf.Len()),
		ContentType: ct,
	})
	if err != nil {
		return "", fmt.Errorf("save thumbnail: %w", err)
	}
	return info.Key, nil
}

// Fit returns the largest size with the aspect ratio of w x h that fits in bounds.
// Images already inside bounds keep their size.
func Fit(w, h int, bounds Bounds) (int, int) {
	if bounds.Width <= 0 || bounds.Height <= 0 {
		bounds = DefaultBounds
	}
	if w <= bounds.Width && h <= bounds.Height {
		return w, h
	}
	ratio := math.Min(float64(bounds.Width)/float64(w), float64(bounds.Height)/float64(h))
	nw := int(math.Round(float64(w) * ratio))
	nh := int(math.Round(float64(h) * ratio))
	return max(nw, 1), max(nh, 1)
}

// Scale resizes src with Catmull-Rom to fit bounds.
func Scale(src image.Image, bounds Bounds) image.Image {
	sb := src.Bounds()
	w, h := Fit(sb.Dx(), sb.Dy(), bounds)
	if w == sb.Dx() && h == sb.Dy() {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)
	return dst
}
