package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docvault/internal/config"
	"docvault/internal/logging"
	"docvault/internal/model"
	"docvault/internal/ocr"
	"docvault/internal/repository"
)

// unknownEngine labels metrics of runs whose engine never resolved, so
// caller-supplied names cannot grow label cardinality.
const unknownEngine = "unknown"

// OCRJob runs text extraction for one document. runID is the token stored
// under metadata[ocr_run] when the run was submitted; an empty runID makes the
// run unconditional.
type OCRJob interface {
	Run(ctx context.Context, docID, engine, runID string)
}

// OCRRunner drives a document through PENDING → PROCESSING → COMPLETED|FAILED.
// Run never returns an error: every outcome is recorded on the document.
type OCRRunner struct {
	index    repository.DocumentIndex
	storage  StorageProvider
	engines  EngineRegistry
	settings *config.SettingsStore
	timeout  time.Duration
	log      *logging.Logger
	tracer   trace.Tracer

	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewOCRRunner wires the runner and registers its metrics on reg.
func NewOCRRunner(
	index repository.DocumentIndex,
	storage StorageProvider,
	engines EngineRegistry,
	settings *config.SettingsStore,
	timeout time.Duration,
	log *logging.Logger,
	reg prometheus.Registerer,
) (*OCRRunner, error) {
	if log == nil {
		log = logging.Discard()
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	r := &OCRRunner{
		index:    index,
		storage:  storage,
		engines:  engines,
		settings: settings,
		timeout:  timeout,
		log:      log,
		tracer:   otel.Tracer("docvault/service/ocr"),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ocr_runs_total",
				Help: "Total number of finished OCR runs.",
			},
			[]string{"engine", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ocr_run_duration_seconds",
				Help:    "Duration of OCR runs from fetch to final status.",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"engine"},
		),
	}
	if reg != nil {
		if err := reg.Register(r.runs); err != nil {
			return nil, err
		}
		if err := reg.Register(r.duration); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Run processes docID with engineName, or the configured default engine when empty.
// Once a newer submission replaced runID on the document, every write of this
// run is dropped.
func (r *OCRRunner) Run(ctx context.Context, docID, engineName, runID string) {
	start := time.Now()
	if engineName == "" {
		engineName = r.settings.Get().DefaultOCREngine
	}
	ctx, span := r.tracer.Start(ctx, "ocr.run", trace.WithAttributes(
		attribute.String("document.id", docID),
		attribute.String("ocr.engine", engineName),
	))
	defer span.End()

	doc, err := r.index.Get(ctx, docID)
	if err != nil {
		r.skip(span, docID, "lookup", err)
		return
	}

	if _, err := r.index.Update(ctx, docID, repository.DocumentPatch{
		OCRStatus: repository.StatusPtr(model.OCRStatusProcessing),
		IfOCRRun:  runID,
	}); err != nil {
		r.skip(span, docID, "mark_processing", err)
		return
	}
	r.log.Info("ocr_processing", logging.Fields{"document_id": docID, "engine": engineName})

	text, engine, err := r.extract(ctx, doc, engineName)
	label := unknownEngine
	if engine != nil {
		label = engineName
	}
	status := model.OCRStatusCompleted
	if err != nil {
		status = model.OCRStatusFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.finish(ctx, docID, repository.DocumentPatch{
			OCRStatus:        repository.StatusPtr(model.OCRStatusFailed),
			OCRText:          repository.StringPtr(""),
			OCREngine:        repository.StringPtr(""),
			OCREngineVersion: repository.StringPtr(""),
			SetMetadata:      map[string]any{model.MetadataErrorKey: err.Error()},
			IfOCRRun:         runID,
		})
		r.log.Error("ocr_failed", logging.Fields{
			"document_id": docID,
			"engine":      engineName,
			"error":       err,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	} else {
		r.finish(ctx, docID, repository.DocumentPatch{
			OCRStatus:        repository.StatusPtr(model.OCRStatusCompleted),
			OCRText:          repository.StringPtr(text),
			OCREngine:        repository.StringPtr(engine.Name()),
			OCREngineVersion: repository.StringPtr(engine.Version()),
			DeleteMetadata:   []string{model.MetadataErrorKey},
			IfOCRRun:         runID,
		})
		r.log.Info("ocr_completed", logging.Fields{
			"document_id": docID,
			"engine":      engine.Name(),
			"chars":       len(text),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}

	span.SetAttributes(attribute.String("ocr.status", string(status)))
	r.runs.WithLabelValues(label, string(status)).Inc()
	r.duration.WithLabelValues(label).Observe(time.Since(start).Seconds())
}

// extract returns the resolved engine whenever the lookup succeeded, even if
// a later step failed.
func (r *OCRRunner) extract(ctx context.Context, doc *model.Document, engineName string) (string, ocr.Engine, error) {
	engine, err := r.engines.Get(engineName)
	if err != nil {
		return "", nil, err
	}

	store, err := r.storage.Current()
	if err != nil {
		return "", engine, storageErr("resolve backend", err)
	}
	rc, _, err := store.Fetch(ctx, doc.StoragePath)
	if err != nil {
		return "", engine, storageErr("fetch original", err)
	}
	defer rc.Close()

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if doc.IsPDF() {
		pages, err := engine.ProcessPDF(runCtx, rc)
		if err != nil {
			return "", engine, ocr.Wrap(engine.Name(), err)
		}
		return ocr.JoinPages(pages), engine, nil
	}
	text, err := engine.ProcessImage(runCtx, rc)
	if err != nil {
		return "", engine, ocr.Wrap(engine.Name(), err)
	}
	return text, engine, nil
}

// finish writes a terminal state. A document deleted or re-submitted mid-run
// is not an error.
func (r *OCRRunner) finish(ctx context.Context, docID string, patch repository.DocumentPatch) {
	if _, err := r.index.Update(ctx, docID, patch); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			r.log.Info("ocr_result_discarded", logging.Fields{"document_id": docID, "reason": "document deleted"})
			return
		case errors.Is(err, repository.ErrStaleRun):
			r.log.Info("ocr_result_discarded", logging.Fields{"document_id": docID, "reason": "superseded", "run": patch.IfOCRRun})
			return
		}
		r.log.Error("ocr_status_update_failed", logging.Fields{"document_id": docID, "error": err})
	}
}

func (r *OCRRunner) skip(span trace.Span, docID, step string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		r.log.Info("ocr_skipped", logging.Fields{"document_id": docID, "step": step, "reason": "document not found"})
		return
	case errors.Is(err, repository.ErrStaleRun):
		r.log.Info("ocr_skipped", logging.Fields{"document_id": docID, "step": step, "reason": "superseded"})
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	r.log.Error("ocr_skipped", logging.Fields{"document_id": docID, "step": step, "error": fmt.Sprint(err)})
}
