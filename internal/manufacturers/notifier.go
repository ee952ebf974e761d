// Package manufacturers sends the price-free order document to the
// manufacturer of an accepted order, honoring the manufacturer's email
// preferences.
package manufacturers

import (
	"context"
	"fmt"
	"strings"

	"github.com/cabinetworks/contractor-backend/internal/documents"
	"github.com/cabinetworks/contractor-backend/internal/events"
	"github.com/cabinetworks/contractor-backend/pkg/db/models"
	"github.com/cabinetworks/contractor-backend/pkg/enums"
	pkgerrors "github.com/cabinetworks/contractor-backend/pkg/errors"
	"github.com/cabinetworks/contractor-backend/pkg/logger"
	"github.com/cabinetworks/contractor-backend/pkg/mailer"
	"github.com/cabinetworks/contractor-backend/pkg/metrics"
)

const (
	SubscriberName = "manufacturer-email"

	tokenOrderNumber      = "{{orderNumber}}"
	tokenCustomerName     = "{{customerName}}"
	tokenManufacturerName = "{{manufacturerName}}"

	defaultSubject = "New order"
	defaultBody    = "Order {{orderNumber}} for {{customerName}}."
)

// Outcomes reported in Result.Status and the manufacturer_emails_total metric.
const (
	OutcomeSent     = "sent"
	OutcomeDryRun   = "dry_run"
	OutcomeSkipped  = "skipped"
	OutcomeDisabled = "disabled"
	OutcomeFailed   = "failed"
)

const (
	SkippedMissingRecipient = "missing_recipient"
	SkippedGroupDisabled    = "group_disabled"
)

type orderFinder interface {
	FindByID(ctx context.Context, id int64) (*models.Order, error)
}

type collaboratorFinder interface {
	FindManufacturer(ctx context.Context, id int64) (*models.Manufacturer, error)
	FindGroup(ctx context.Context, id int64) (*models.Group, error)
}

type brandingSource interface {
	Current(ctx context.Context) (documents.Branding, error)
}

// Options control a single notification.
type Options struct {
	// Force sends even when the manufacturer or group has automatic email off.
	Force bool
	// DryRun renders everything and reports sizes without dispatching.
	DryRun bool
}

// Result describes what Notify did.
type Result struct {
	Status        string `json:"status"`
	SkippedReason string `json:"skipped_reason,omitempty"`
	Recipient     string `json:"recipient,omitempty"`
	Subject       string `json:"subject,omitempty"`
	PDFBytes      int    `json:"pdf_bytes"`
	HTMLBytes     int    `json:"html_bytes"`
	TextBytes     int    `json:"text_bytes"`
	MessageBytes  int64  `json:"message_bytes,omitempty"`
}

// Notifier renders and dispatches manufacturer order emails.
type Notifier struct {
	orders   orderFinder
	collabs  collaboratorFinder
	branding brandingSource
	renderer *documents.Renderer
	sender   mailer.Sender
	from     string
	metrics  *metrics.Pipeline
	logg     *logger.Logger
}

// NewNotifier wires the notifier.
func NewNotifier(orders orderFinder, collabs collaboratorFinder, branding brandingSource, renderer *documents.Renderer, sender mailer.Sender, from string, m *metrics.Pipeline, logg *logger.Logger) (*Notifier, error) {
	switch {
	case orders == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order store required")
	case collabs == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "manufacturer lookup required")
	case branding == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "branding source required")
	case renderer == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "document renderer required")
	case sender == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mail sender required")
	}
	return &Notifier{
		orders:   orders,
		collabs:  collabs,
		branding: branding,
		renderer: renderer,
		sender:   sender,
		from:     from,
		metrics:  m,
		logg:     logg,
	}, nil
}

// Subscriber binds automatic manufacturer email to ProposalAccepted.
func (n *Notifier) Subscriber() events.Subscriber {
	return events.OnProposalAccepted(SubscriberName, func(ctx context.Context, ev events.ProposalAccepted) error {
		_, err := n.Notify(ctx, ev.OrderID, Options{})
		return err
	})
}

// Document loads the order and projects it into the price-free document model.
func (n *Notifier) Document(ctx context.Context, orderID int64) (*models.Order, documents.Document, error) {
	order, err := n.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, documents.Document{}, err
	}
	branding, err := n.branding.Current(ctx)
	if err != nil {
		return nil, documents.Document{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load branding")
	}
	return order, documents.Project(order.OrderNumber, order.Snapshot, branding), nil
}

// Notify sends the order document for orderID according to the
// manufacturer's preferences.
func (n *Notifier) Notify(ctx context.Context, orderID int64, opts Options) (*Result, error) {
	order, doc, err := n.Document(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if n.logg != nil {
		ctx = n.logg.WithOrder(n.logg.WithProposalID(ctx, order.ProposalID), order.ID, order.OrderNumber)
	}

	manufacturer, err := n.collabs.FindManufacturer(ctx, order.ManufacturerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load manufacturer")
	}

	if !opts.Force && !opts.DryRun {
		if !manufacturer.AutoEmailOnAccept {
			n.info(ctx, "manufacturer.email.auto-disabled")
			n.metrics.IncManufacturerEmail(OutcomeDisabled)
			return &Result{Status: OutcomeDisabled}, nil
		}
		group, err := n.collabs.FindGroup(ctx, order.OwnerGroupID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
		}
		if !group.Features.ManufacturerEmail {
			n.info(ctx, "manufacturer.email.group-disabled")
			n.metrics.IncManufacturerEmail(OutcomeSkipped)
			return &Result{Status: OutcomeSkipped, SkippedReason: SkippedGroupDisabled}, nil
		}
	}

	mode, err := enums.ParseOrderEmailMode(string(manufacturer.OrderEmailMode))
	if err != nil {
		mode = enums.OrderEmailModePDF
	}
	recipient := strings.TrimSpace(manufacturer.Email)
	subject := Subject(manufacturer.OrderEmailSubject, order.OrderNumber)
	msg := mailer.Message{Subject: subject}
	if recipient != "" {
		msg.To = []string{recipient}
	}
	res := &Result{Recipient: recipient, Subject: subject}

	if mode.IncludesPlain() {
		msg.TextBody = Body(manufacturer.OrderEmailBody, doc)
	} else {
		msg.TextBody = fmt.Sprintf("Order %s is attached.", order.OrderNumber)
	}
	res.TextBytes = len(msg.TextBody)

	var pdf []byte
	if mode.IncludesPDF() || opts.DryRun {
		pdf, err = n.renderer.RenderPDF(ctx, doc)
		if err != nil {
			n.metrics.IncManufacturerEmail(OutcomeFailed)
			return nil, err
		}
		res.PDFBytes = len(pdf)
	}
	if mode.IncludesPDF() {
		msg.Attachments = []mailer.Attachment{{
			Name:        order.OrderNumber + ".pdf",
			ContentType: "application/pdf",
			Data:        pdf,
		}}
	}

	if opts.DryRun {
		html, err := n.renderer.RenderHTML(doc)
		if err != nil {
			return nil, err
		}
		res.HTMLBytes = len(html)
		res.Status = OutcomeDryRun
		if recipient == "" {
			res.SkippedReason = SkippedMissingRecipient
		} else if size, err := mailer.Size(n.from, msg); err == nil {
			res.MessageBytes = size
		}
		n.metrics.IncManufacturerEmail(OutcomeDryRun)
		return res, nil
	}

	if recipient == "" {
		n.info(ctx, "manufacturer.email.missing-recipient")
		n.metrics.IncManufacturerEmail(OutcomeSkipped)
		res.Status = OutcomeSkipped
		res.SkippedReason = SkippedMissingRecipient
		return res, nil
	}

	if err := n.sender.Send(ctx, msg); err != nil {
		n.metrics.IncManufacturerEmail(OutcomeFailed)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDelivery, err, "send manufacturer email")
	}
	n.metrics.IncManufacturerEmail(OutcomeSent)
	n.info(ctx, "manufacturer.email.sent")
	res.Status = OutcomeSent
	return res, nil
}

// Subject substitutes the order number into template, or appends it when the
// template has no placeholder.
func Subject(template, orderNumber string) string {
	template = strings.TrimSpace(template)
	if template == "" {
		template = defaultSubject
	}
	if strings.Contains(template, tokenOrderNumber) {
		return strings.ReplaceAll(template, tokenOrderNumber, orderNumber)
	}
	return fmt.Sprintf("%s (#%s)", template, orderNumber)
}

// Body fills the order, customer and manufacturer tokens in template.
func Body(template string, doc documents.Document) string {
	if strings.TrimSpace(template) == "" {
		template = defaultBody
	}
	return strings.NewReplacer(
		tokenOrderNumber, doc.OrderNumber,
		tokenCustomerName, doc.CustomerName,
		tokenManufacturerName, doc.ManufacturerName,
	).Replace(template)
}

func (n *Notifier) info(ctx context.Context, msg string) {
	if n.logg != nil {
		n.logg.Info(ctx, msg)
	}
}
