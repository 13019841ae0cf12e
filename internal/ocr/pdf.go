package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Rasterizer renders every page of a PDF to an image and hands the pages to fn in order.
type Rasterizer interface {
	Pages(ctx context.Context, pdf io.Reader, fn func(page int, img io.Reader) error) error
}

// ProcessPDF rasterizes pdf and runs engine on each page image.
func ProcessPDF(ctx context.Context, rast Rasterizer, engine Engine, pdf io.Reader) ([]string, error) {
	var pages []string
	err := rast.Pages(ctx, pdf, func(page int, img io.Reader) error {
		text, err := engine.ProcessImage(ctx, img)
		if err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}
		pages = append(pages, text)
		return nil
	})
	if err != nil {
		return nil, Wrap(engine.Name(), err)
	}
	return pages, nil
}

// Pdftoppm rasterizes with poppler's pdftoppm binary into a temp directory.
type Pdftoppm struct {
	Binary string
	DPI    int
}

// NewPdftoppm returns a rasterizer using binary (looked up in PATH) at dpi.
func NewPdftoppm(binary string, dpi int) *Pdftoppm {
	if binary == "" {
		binary = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 300
	}
	return &Pdftoppm{Binary: binary, DPI: dpi}
}

// Available reports whether the binary can be found.
func (p *Pdftoppm) Available() bool {
	_, err := exec.LookPath(p.Binary)
	return err == nil
}

func (p *Pdftoppm) Pages(ctx context.Context, pdf io.Reader, fn func(page int, img io.Reader) error) error {
	dir, err := os.MkdirTemp("", "docvault-pdf-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input.pdf")
	f, err := os.Create(input)
	if err != nil {
		return fmt.Errorf("create temp pdf: %w", err)
	}
	_, err = io.Copy(f, pdf)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write temp pdf: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.Binary, "-r", strconv.Itoa(p.DPI), "-png", input, filepath.Join(dir, "page"))
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("rasterize pdf: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	files, err := pageFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("rasterize pdf: no pages produced")
	}
	for i, name := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(name, i+1, fn); err != nil {
			return err
		}
	}
	return nil
}

func emit(path string, page int, fn func(int, io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open page %d: %w", page, err)
	}
	defer f.Close()
	return fn(page, f)
}

// pageFiles returns page-N.png files ordered by page number.
func pageFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		return pageNumber(matches[i]) < pageNumber(matches[j])
	})
	return matches, nil
}

func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	n, err := strconv.Atoi(strings.TrimPrefix(base, "page-"))
	if err != nil {
		return -1
	}
	return n
}
