// Package ollama provides an OCR engine that asks a vision model served by
// Ollama to transcribe images.
package ollama

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"docvault/internal/ocr"
)

const Name = "ollama"

const defaultPrompt = "Transcribe all text visible in this image exactly as written. " +
	"Return only the transcribed text without commentary. If there is no text, return nothing."

// Config selects the Ollama server and model.
type Config struct {
	Host   string
	Model  string
	Prompt string
	// ProbeTimeout bounds the version check done when the engine is built.
	ProbeTimeout time.Duration
}

// Engine sends each image to the model through the Generate endpoint.
type Engine struct {
	client     *api.Client
	model      string
	prompt     string
	version    string
	rasterizer ocr.Rasterizer
}

// New connects to the server and records its version. It fails when the server is unreachable.
func New(cfg Config, rast ocr.Rasterizer) (*Engine, error) {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model is required")
	}
	if cfg.Prompt == "" {
		cfg.Prompt = defaultPrompt
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	base, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host: %w", err)
	}

	httpClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	client := api.NewClient(base, httpClient)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ProbeTimeout)
	defer cancel()
	version, err := client.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("ollama server at %s: %w", cfg.Host, err)
	}
	if version == "" {
		version = ocr.UnknownVersion
	}

	return &Engine{
		client:     client,
		model:      cfg.Model,
		prompt:     cfg.Prompt,
		version:    cfg.Model + "@" + version,
		rasterizer: rast,
	}, nil
}

// Factory adapts New to the registry.
func Factory(cfg Config, rast ocr.Rasterizer) ocr.Factory {
	return func() (ocr.Engine, error) {
		return New(cfg, rast)
	}
}

func (e *Engine) Name() string    { return Name }
func (e *Engine) Version() string { return e.version }

func (e *Engine) ProcessImage(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", ocr.Wrap(Name, fmt.Errorf("read image: %w", err))
	}

	stream := false
	req := &api.GenerateRequest{
		Model:  e.model,
		Prompt: e.prompt,
		Images: []api.ImageData{data},
		Stream: &stream,
	}

	var sb strings.Builder
	err = e.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", ocr.Wrap(Name, fmt.Errorf("generate: %w", err))
	}
	return strings.TrimSpace(sb.String()), nil
}

func (e *Engine) ProcessPDF(ctx context.Context, r io.Reader) ([]string, error) {
	if e.rasterizer == nil {
		return nil, ocr.Wrap(Name, fmt.Errorf("no pdf rasterizer configured"))
	}
	return ocr.ProcessPDF(ctx, e.rasterizer, e, r)
}
