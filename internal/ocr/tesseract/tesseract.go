// Package tesseract provides the Tesseract OCR engine backed by gosseract.
package tesseract

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"docvault/internal/ocr"
)

const Name = "tesseract"

// Engine runs Tesseract through a fresh gosseract client per image.
type Engine struct {
	clientFactory func() *gosseract.Client
	languages     []string
	rasterizer    ocr.Rasterizer

	versionOnce sync.Once
	version     string
}

// New constructs a Tesseract-backed engine recognising languages (e.g. "eng").
func New(languages []string, rast ocr.Rasterizer) *Engine {
	return &Engine{
		clientFactory: gosseract.NewClient,
		languages:     languages,
		rasterizer:    rast,
	}
}

// Factory adapts New to the registry.
func Factory(languages []string, rast ocr.Rasterizer) ocr.Factory {
	return func() (ocr.Engine, error) {
		return New(languages, rast), nil
	}
}

func (e *Engine) Name() string { return Name }

func (e *Engine) Version() string {
	e.versionOnce.Do(func() {
		e.version = strings.TrimSpace(gosseract.Version())
		if e.version == "" {
			e.version = ocr.UnknownVersion
		}
	})
	return e.version
}

// ProcessImage recognises the text of a single encoded image.
func (e *Engine) ProcessImage(ctx context.Context, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", ocr.Wrap(Name, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", ocr.Wrap(Name, fmt.Errorf("read image: %w", err))
	}

	c := e.clientFactory()
	defer c.Close()

	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return "", ocr.Wrap(Name, fmt.Errorf("set languages: %w", err))
		}
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return "", ocr.Wrap(Name, fmt.Errorf("set image: %w", err))
	}
	text, err := c.Text()
	if err != nil {
		return "", ocr.Wrap(Name, fmt.Errorf("recognize text: %w", err))
	}
	// the client cannot be interrupted; a late result past the deadline is dropped
	if err := ctx.Err(); err != nil {
		return "", ocr.Wrap(Name, err)
	}
	return strings.TrimSpace(text), nil
}

// ProcessPDF rasterizes every page and recognises them in order.
func (e *Engine) ProcessPDF(ctx context.Context, r io.Reader) ([]string, error) {
	if e.rasterizer == nil {
		return nil, ocr.Wrap(Name, fmt.Errorf("no pdf rasterizer configured"))
	}
	return ocr.ProcessPDF(ctx, e.rasterizer, e, r)
}
