// Package proposals exposes proposal acceptance and public session issuance.
package proposals

import (
	"context"
	"net/http"

	"github.com/cabinetworks/contractor-backend/api/middleware"
	"github.com/cabinetworks/contractor-backend/api/responses"
	"github.com/cabinetworks/contractor-backend/api/validators"
	"github.com/cabinetworks/contractor-backend/internal/acceptance"
	"github.com/cabinetworks/contractor-backend/internal/sessions"
	pkgerrors "github.com/cabinetworks/contractor-backend/pkg/errors"
	"github.com/cabinetworks/contractor-backend/pkg/logger"
	"github.com/cabinetworks/contractor-backend/pkg/types"
)

// Acceptor is the acceptance pipeline entry point.
type Acceptor interface {
	Accept(ctx context.Context, req acceptance.Request) (*acceptance.Result, error)
}

// SessionIssuer issues public proposal sessions.
type SessionIssuer interface {
	Issue(ctx context.Context, in sessions.IssueInput) (*sessions.Issued, error)
}

type acceptRequest struct {
	ClientTotals *types.ClientTotals `json:"client_totals"`
}

type publicAcceptRequest struct {
	Token        string              `json:"token"`
	ClientTotals *types.ClientTotals `json:"client_totals"`
}

type sessionRequest struct {
	CustomerEmail string `json:"customer_email" validate:"omitempty,email,max=320"`
}

type orderView struct {
	ID              int64  `json:"id"`
	OrderNumber     string `json:"order_number"`
	Status          string `json:"status"`
	GrandTotalCents int64  `json:"grand_total_cents"`
	Currency        string `json:"currency"`
}

type paymentView struct {
	ID          int64  `json:"id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
}

type acceptResponse struct {
	Created bool         `json:"created"`
	Order   orderView    `json:"order"`
	Payment *paymentView `json:"payment,omitempty"`
}

// Accept handles an authenticated accept.
func Accept(svc Acceptor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		principal, ok := middleware.PrincipalFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		proposalID, err := validators.ParsePathID(r, "proposalId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body acceptRequest
		if hasBody(r) {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		res, err := svc.Accept(ctx, acceptance.Request{
			ProposalID:   proposalID,
			Principal:    &principal,
			IP:           middleware.ClientIPFromContext(ctx),
			ClientTotals: body.ClientTotals,
		})
		writeAccepted(ctx, logg, w, res, err)
	}
}

// PublicAccept handles an accept authorized by a proposal session token.
func PublicAccept(svc Acceptor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		proposalID, err := validators.ParsePathID(r, "proposalId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body publicAcceptRequest
		if hasBody(r) {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		res, err := svc.Accept(ctx, acceptance.Request{
			ProposalID:   proposalID,
			Token:        body.Token,
			IP:           middleware.ClientIPFromContext(ctx),
			ClientTotals: body.ClientTotals,
		})
		writeAccepted(ctx, logg, w, res, err)
	}
}

// CreateSession issues a public session for the proposal.
func CreateSession(svc SessionIssuer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		principal, ok := middleware.PrincipalFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		proposalID, err := validators.ParsePathID(r, "proposalId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body sessionRequest
		if hasBody(r) {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		issued, err := svc.Issue(ctx, sessions.IssueInput{
			ProposalID:    proposalID,
			CustomerEmail: body.CustomerEmail,
			Principal:     principal,
			IP:            middleware.ClientIPFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, issued)
	}
}

func writeAccepted(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, res *acceptance.Result, err error) {
	if err != nil {
		responses.WriteError(ctx, logg, w, err)
		return
	}
	out := acceptResponse{
		Created: res.Created,
		Order: orderView{
			ID:              res.Order.ID,
			OrderNumber:     res.Order.OrderNumber,
			Status:          string(res.Order.Status),
			GrandTotalCents: res.Order.GrandTotalCents,
			Currency:        res.Order.Currency,
		},
	}
	if res.Payment != nil {
		out.Payment = &paymentView{
			ID:          res.Payment.ID,
			Status:      string(res.Payment.Status),
			AmountCents: res.Payment.AmountCents,
		}
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	responses.WriteSuccessStatus(w, status, out)
}

func hasBody(r *http.Request) bool {
	return r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0
}
