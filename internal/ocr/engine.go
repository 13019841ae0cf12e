// Package ocr defines the text recognition engine contract, the engine registry
// and the PDF page fan-out shared by every engine.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// UnknownVersion is reported when an engine cannot tell its version.
const UnknownVersion = "unknown"

// PageSeparator joins per-page text of a multi-page document.
const PageSeparator = "\n\n"

// ErrEngineUnavailable is returned by the registry for unknown or unusable engines.
var ErrEngineUnavailable = errors.New("ocr engine unavailable")

// Engine turns images (and PDFs, page by page) into text.
type Engine interface {
	Name() string
	Version() string
	ProcessImage(ctx context.Context, r io.Reader) (string, error)
	// ProcessPDF returns one entry per page, in page order.
	ProcessPDF(ctx context.Context, r io.Reader) ([]string, error)
}

// Factory builds an engine. It fails when the engine cannot be used on this host.
type Factory func() (Engine, error)

// Error is a failure inside an engine.
type Error struct {
	Engine string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ocr engine %s: %v", e.Engine, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns err as an *Error for engine, leaving nil and existing *Error values alone.
func Wrap(engine string, err error) error {
	if err == nil {
		return nil
	}
	var oe *Error
	if errors.As(err, &oe) {
		return err
	}
	return &Error{Engine: engine, Err: err}
}

// JoinPages concatenates page texts in order.
func JoinPages(pages []string) string {
	return strings.Join(pages, PageSeparator)
}
