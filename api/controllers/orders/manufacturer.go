// Package orders exposes the admin manufacturer document endpoints.
package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/cabinetworks/contractor-backend/api/responses"
	"github.com/cabinetworks/contractor-backend/api/validators"
	"github.com/cabinetworks/contractor-backend/internal/documents"
	"github.com/cabinetworks/contractor-backend/internal/manufacturers"
	"github.com/cabinetworks/contractor-backend/pkg/db/models"
	pkgerrors "github.com/cabinetworks/contractor-backend/pkg/errors"
	"github.com/cabinetworks/contractor-backend/pkg/logger"
)

const (
	formatPDF  = "pdf"
	formatHTML = "html"
)

// ManufacturerService loads order documents and dispatches manufacturer email.
type ManufacturerService interface {
	Document(ctx context.Context, orderID int64) (*models.Order, documents.Document, error)
	Notify(ctx context.Context, orderID int64, opts manufacturers.Options) (*manufacturers.Result, error)
}

// DocumentRenderer produces the PDF and HTML renditions.
type DocumentRenderer interface {
	RenderPDF(ctx context.Context, doc documents.Document) ([]byte, error)
	RenderHTML(doc documents.Document) ([]byte, error)
}

type resendRequest struct {
	NoSend bool `json:"no_send"`
}

// ManufacturerDocument renders the manufacturer document for preview or download.
func ManufacturerDocument(svc ManufacturerService, renderer DocumentRenderer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParsePathID(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		download, err := validators.ParseQueryBool(r, "download")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
		if format == "" {
			format = formatPDF
		}
		if format != formatPDF && format != formatHTML {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "format must be pdf or html").
				WithDetails(map[string]any{"field": "format"}))
			return
		}

		order, doc, err := svc.Document(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if format == formatHTML {
			body, err := renderer.RenderHTML(doc)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			responses.WriteDocument(w, "text/html; charset=utf-8", order.OrderNumber+".html", download, body)
			return
		}

		body, err := renderer.RenderPDF(ctx, doc)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteDocument(w, "application/pdf", order.OrderNumber+".pdf", download, body)
	}
}

// ManufacturerResend re-sends the order email regardless of the automatic
// email settings. no_send performs a dry run and reports sizes.
func ManufacturerResend(svc ManufacturerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParsePathID(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body resendRequest
		if r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		result, err := svc.Notify(ctx, orderID, manufacturers.Options{Force: true, DryRun: body.NoSend})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
