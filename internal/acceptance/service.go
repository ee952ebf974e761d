// Package acceptance is the entry point of the proposal acceptance pipeline:
// it authenticates the actor, rate-limits, snapshots the proposal, commits
// the order and its payment, and publishes ProposalAccepted.
package acceptance

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/cabinetworks/contractor-backend/internal/events"
	"github.com/cabinetworks/contractor-backend/internal/orders"
	"github.com/cabinetworks/contractor-backend/internal/payments"
	"github.com/cabinetworks/contractor-backend/internal/proposals"
	"github.com/cabinetworks/contractor-backend/internal/sessions"
	"github.com/cabinetworks/contractor-backend/internal/snapshot"
	"github.com/cabinetworks/contractor-backend/internal/users"
	"github.com/cabinetworks/contractor-backend/pkg/db/models"
	"github.com/cabinetworks/contractor-backend/pkg/enums"
	pkgerrors "github.com/cabinetworks/contractor-backend/pkg/errors"
	"github.com/cabinetworks/contractor-backend/pkg/logger"
	"github.com/cabinetworks/contractor-backend/pkg/metrics"
	"github.com/cabinetworks/contractor-backend/pkg/ratelimit"
	"github.com/cabinetworks/contractor-backend/pkg/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const RatePolicy = "accept"

// Acceptance results reported to proposal_acceptances_total.
const (
	resultCreated     = "created"
	resultExisting    = "existing"
	resultRateLimited = "rate_limited"
)

// Request is one accept attempt. Exactly one of Principal or Token identifies
// the actor.
type Request struct {
	ProposalID   int64
	Principal    *proposals.Principal
	Token        string
	IP           string
	ClientTotals *types.ClientTotals
}

// Result is returned for both fresh and repeated acceptances.
type Result struct {
	Created bool
	Order   *models.Order
	Payment *models.Payment
}

// ServiceParams wires the acceptance service.
type ServiceParams struct {
	Proposals       *proposals.Repository
	Users           *users.Repository
	Orders          *orders.Store
	Payments        *payments.Deriver
	Sessions        *sessions.Service
	Publisher       events.Publisher
	Limiter         ratelimit.Limiter
	TaxRatePct      decimal.Decimal
	DefaultCurrency string
	Metrics         *metrics.Pipeline
	Logger          *logger.Logger
}

// Service accepts proposals.
type Service struct {
	proposals       *proposals.Repository
	users           *users.Repository
	orders          *orders.Store
	payments        *payments.Deriver
	sessions        *sessions.Service
	publisher       events.Publisher
	limiter         ratelimit.Limiter
	taxRatePct      decimal.Decimal
	defaultCurrency string
	metrics         *metrics.Pipeline
	logg            *logger.Logger
	now             func() time.Time
}

// NewService validates and stores the dependencies.
func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Proposals == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "proposal repository required")
	case p.Users == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user repository required")
	case p.Orders == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order store required")
	case p.Payments == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment deriver required")
	case p.Sessions == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "session service required")
	case p.Publisher == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "event publisher required")
	case p.Limiter == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "rate limiter required")
	}
	if p.TaxRatePct.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tax rate must not be negative")
	}
	return &Service{
		proposals:       p.Proposals,
		users:           p.Users,
		orders:          p.Orders,
		payments:        p.Payments,
		sessions:        p.Sessions,
		publisher:       p.Publisher,
		limiter:         p.Limiter,
		taxRatePct:      p.TaxRatePct,
		defaultCurrency: p.DefaultCurrency,
		metrics:         p.Metrics,
		logg:            p.Logger,
		now:             time.Now,
	}, nil
}

// RateKey identifies the actor for rate limiting: user:<id> for
// authenticated users, otherwise ip:<addr>.
func RateKey(req Request) string {
	if req.Principal != nil && req.Principal.UserID > 0 {
		return "user:" + strconv.FormatInt(req.Principal.UserID, 10)
	}
	return "ip:" + req.IP
}

// Accept materializes the order for req.ProposalID exactly once. Repeated
// calls return the existing order with Created=false.
func (s *Service) Accept(ctx context.Context, req Request) (*Result, error) {
	ctx = s.withProposal(ctx, req.ProposalID)

	if err := s.checkRate(ctx, req); err != nil {
		return nil, err
	}

	res, err := s.accept(ctx, req)
	if err != nil {
		if te := pkgerrors.As(err); te != nil {
			s.metrics.IncAcceptance(string(te.Code()))
		} else {
			s.metrics.IncAcceptance(string(pkgerrors.CodeInternal))
		}
		return nil, err
	}
	if res.Created {
		s.metrics.IncAcceptance(resultCreated)
	} else {
		s.metrics.IncAcceptance(resultExisting)
	}
	return res, nil
}

func (s *Service) checkRate(ctx context.Context, req Request) error {
	decision, err := s.limiter.Allow(ctx, RateKey(req))
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "acceptance.rate_limit.unavailable")
		}
		return nil
	}
	if decision.Allowed {
		return nil
	}
	s.metrics.IncRateLimited(RatePolicy)
	s.metrics.IncAcceptance(resultRateLimited)
	return pkgerrors.New(pkgerrors.CodeRateLimit, "too many accept attempts")
}

func (s *Service) accept(ctx context.Context, req Request) (*Result, error) {
	actor, err := s.authenticate(ctx, req)
	if err != nil {
		return nil, err
	}

	proposal, err := s.loadProposal(ctx, req.ProposalID)
	if err != nil {
		return nil, err
	}
	if req.Principal != nil {
		if err := proposals.Authorize(*req.Principal, proposal); err != nil {
			return nil, err
		}
	} else {
		group, err := s.proposals.FindGroup(ctx, proposal.OwnerGroupID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
		}
		if !group.Features.PublicAcceptance {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "public acceptance is disabled for this proposal")
		}
	}

	existing, err := s.orders.FindByProposal(ctx, proposal.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.settle(ctx, existing, false)
	}

	if !proposal.Status.Acceptable() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "proposal cannot be accepted").
			WithDetails(map[string]any{"status": proposal.Status})
	}

	now := s.now()
	snap, err := s.buildSnapshot(ctx, proposal, req.ClientTotals, now)
	if err != nil {
		return nil, err
	}

	var payment *models.Payment
	created, err := s.orders.Create(ctx, orders.CreateInput{
		Proposal:         *proposal,
		Snapshot:         *snap,
		AcceptedVia:      actor.Type,
		AcceptedByUserID: actor.UserID,
		Now:              now,
		WithinTx: func(tx *gorm.DB, order *models.Order) error {
			p, _, err := s.payments.EnsureTx(ctx, tx, order)
			payment = p
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	if !created.Created {
		// Lost the race; the winner committed its payment with its order.
		return s.settle(ctx, created.Order, false)
	}
	res := &Result{Created: true, Order: created.Order, Payment: payment}

	s.publisher.PublishAsync(ctx, events.ProposalAccepted{
		ProposalID:      proposal.ID,
		OrderID:         res.Order.ID,
		OrderNumber:     res.Order.OrderNumber,
		GroupID:         res.Order.OwnerGroupID,
		CustomerID:      res.Order.CustomerID,
		ManufacturerID:  res.Order.ManufacturerID,
		PaymentID:       res.Payment.ID,
		GrandTotalCents: res.Order.GrandTotalCents,
		Currency:        res.Order.Currency,
		Divergent:       snap.Advisory != nil && snap.Advisory.Divergent,
		Actor:           actor,
		AcceptedAt:      now.UTC(),
	})
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"order_id":     res.Order.ID,
			"order_number": res.Order.OrderNumber,
			"accepted_via": actor.Type,
		}), "acceptance.order.created")
	}
	return res, nil
}

func (s *Service) authenticate(ctx context.Context, req Request) (events.Actor, error) {
	if req.Principal != nil {
		userID := req.Principal.UserID
		if _, err := s.users.RequireActive(ctx, userID); err != nil {
			return events.Actor{}, err
		}
		return events.Actor{Type: enums.ActorTypeUser, UserID: &userID, IP: req.IP}, nil
	}
	if req.Token == "" {
		return events.Actor{}, sessions.ErrInvalidSession()
	}
	session, err := s.sessions.Validate(ctx, req.ProposalID, req.Token)
	if err != nil {
		return events.Actor{}, err
	}
	return events.Actor{Type: enums.ActorTypeSession, Ref: session.ID.String(), IP: req.IP}, nil
}

func (s *Service) loadProposal(ctx context.Context, id int64) (*models.Proposal, error) {
	proposal, err := s.proposals.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "proposal not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load proposal")
	}
	return proposal, nil
}

func (s *Service) buildSnapshot(ctx context.Context, proposal *models.Proposal, submitted *types.ClientTotals, now time.Time) (*types.OrderSnapshot, error) {
	customer, err := s.proposals.FindCustomer(ctx, proposal.CustomerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	manufacturer, err := s.proposals.FindManufacturer(ctx, proposal.ManufacturerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load manufacturer")
	}
	group, err := s.proposals.FindGroup(ctx, proposal.OwnerGroupID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
	}
	items, mods, err := s.proposals.LoadCatalog(ctx, proposal.ManufacturerID, proposal.Items)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load catalog")
	}

	snap, err := snapshot.Build(snapshot.Input{
		Proposal:        *proposal,
		Customer:        *customer,
		Manufacturer:    *manufacturer,
		Catalog:         snapshot.NewCatalog(items, mods),
		GroupMultiplier: group.PriceMultiplier,
		TaxRatePct:      s.taxRatePct,
		DefaultCurrency: s.defaultCurrency,
		ClientTotals:    submitted,
		CapturedAt:      now,
	})
	if err != nil {
		return nil, err
	}
	if snap.Advisory != nil && snap.Advisory.Divergent && s.logg != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"submitted_grand_total_cents": snap.Advisory.SubmittedGrandTotalCents,
			"grand_total_cents":           snap.Totals.GrandTotalCents,
			"difference_cents":            snap.Advisory.DifferenceCents,
		}), "acceptance.client_totals.divergent")
	}
	return snap, nil
}

func (s *Service) settle(ctx context.Context, order *models.Order, created bool) (*Result, error) {
	payment, _, err := s.payments.Ensure(ctx, order)
	if err != nil {
		return nil, err
	}
	return &Result{Created: created, Order: order, Payment: payment}, nil
}

func (s *Service) withProposal(ctx context.Context, id int64) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithProposalID(ctx, id)
}
