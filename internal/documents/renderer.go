package documents

import (
	"bytes"
	"context"
	"fmt"
	"time"

	pkgerrors "github.com/cabinetworks/contractor-backend/pkg/errors"
	"github.com/cabinetworks/contractor-backend/pkg/metrics"
)

const defaultRenderTimeout = 30 * time.Second

var (
	pdfHeader  = []byte("%PDF-")
	pdfTrailer = []byte("%%EOF")
)

// Renderer bounds an Engine with a timeout and rejects anything that is not a
// complete PDF.
type Renderer struct {
	engine  Engine
	timeout time.Duration
	metrics *metrics.Pipeline
}

// NewRenderer wires the engine. timeout <= 0 uses 30s.
func NewRenderer(engine Engine, timeout time.Duration, m *metrics.Pipeline) (*Renderer, error) {
	if engine == nil {
		return nil, fmt.Errorf("document engine required")
	}
	if timeout <= 0 {
		timeout = defaultRenderTimeout
	}
	return &Renderer{engine: engine, timeout: timeout, metrics: m}, nil
}

type renderResult struct {
	out []byte
	err error
}

// RenderPDF renders doc. Timeouts, engine panics and malformed output all
// surface as CodeRender; partial output is never returned.
func (r *Renderer) RenderPDF(ctx context.Context, doc Document) ([]byte, error) {
	start := time.Now()
	defer func() { r.metrics.ObserveRender("pdf", time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan renderResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- renderResult{err: fmt.Errorf("engine panic: %v", rec)}
			}
		}()
		out, err := r.engine.Render(ctx, doc)
		done <- renderResult{out: out, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, pkgerrors.Wrap(pkgerrors.CodeRender, ctx.Err(), "document rendering timed out")
	case res := <-done:
		if res.err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeRender, res.err, "document rendering failed")
		}
		if err := ValidatePDF(res.out); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeRender, err, "document rendering produced invalid output")
		}
		return res.out, nil
	}
}

// RenderHTML renders the HTML rendition of doc.
func (r *Renderer) RenderHTML(doc Document) ([]byte, error) {
	start := time.Now()
	defer func() { r.metrics.ObserveRender("html", time.Since(start)) }()

	out, err := RenderHTML(doc)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeRender, err, "document rendering failed")
	}
	return out, nil
}

// ValidatePDF checks for the PDF header and end-of-file marker.
func ValidatePDF(out []byte) error {
	if !bytes.HasPrefix(out, pdfHeader) {
		return fmt.Errorf("missing %s header", pdfHeader)
	}
	if !bytes.HasSuffix(bytes.TrimRight(out, "\r\n "), pdfTrailer) {
		return fmt.Errorf("missing %s trailer", pdfTrailer)
	}
	return nil
}
