// Package events carries post-commit domain events from the acceptance
// pipeline to its independent side effects.
package events

import (
	"time"

	"github.com/cabinetworks/contractor-backend/pkg/enums"
	"github.com/google/uuid"
)

const (
	NameProposalAccepted = "proposal.accepted"
	NameProposalSent     = "proposal.sent"
)

// Event is the closed set of pipeline events. Only types in this package
// implement it.
type Event interface {
	Name() string
	isEvent()
}

// Actor identifies who caused an event.
type Actor struct {
	Type   enums.ActorType `json:"type"`
	UserID *int64          `json:"user_id,omitempty"`
	// Ref is the session id for session actors.
	Ref string `json:"ref,omitempty"`
	IP  string `json:"ip,omitempty"`
}

// ProposalAccepted is published once, after the order and its payment commit.
type ProposalAccepted struct {
	ProposalID      int64     `json:"proposal_id"`
	OrderID         int64     `json:"order_id"`
	OrderNumber     string    `json:"order_number"`
	GroupID         int64     `json:"group_id"`
	CustomerID      int64     `json:"customer_id"`
	ManufacturerID  int64     `json:"manufacturer_id"`
	PaymentID       int64     `json:"payment_id"`
	GrandTotalCents int64     `json:"grand_total_cents"`
	Currency        string    `json:"currency"`
	Divergent       bool      `json:"divergent"`
	Actor           Actor     `json:"actor"`
	AcceptedAt      time.Time `json:"accepted_at"`
}

func (ProposalAccepted) Name() string { return NameProposalAccepted }
func (ProposalAccepted) isEvent()     {}

// ProposalSent is published when the first public session moves a draft to sent.
type ProposalSent struct {
	ProposalID int64                `json:"proposal_id"`
	GroupID    int64                `json:"group_id"`
	SessionID  uuid.UUID            `json:"session_id"`
	From       enums.ProposalStatus `json:"from"`
	To         enums.ProposalStatus `json:"to"`
	Actor      Actor                `json:"actor"`
	SentAt     time.Time            `json:"sent_at"`
}

func (ProposalSent) Name() string { return NameProposalSent }
func (ProposalSent) isEvent()     {}
