package types

import "time"

// OrderSnapshotVersion is bumped whenever the snapshot layout changes.
const OrderSnapshotVersion = 1

// OrderSnapshot is the immutable record of what was accepted: items, parties
// and the server-computed money breakdown at acceptance time.
type OrderSnapshot struct {
	Version         int               `json:"version"`
	ProposalID      int64             `json:"proposal_id"`
	CapturedAt      time.Time         `json:"captured_at"`
	Currency        string            `json:"currency"`
	GroupID         int64             `json:"group_id"`
	GroupMultiplier string            `json:"group_multiplier"`
	TaxRatePct      string            `json:"tax_rate_pct"`
	Customer        SnapshotParty     `json:"customer"`
	Manufacturer    SnapshotParty     `json:"manufacturer"`
	Items           []SnapshotItem    `json:"items"`
	Totals          MoneyBreakdown    `json:"totals"`
	Advisory        *SnapshotAdvisory `json:"advisory,omitempty"`
}

// SnapshotParty captures the contact details of a customer or manufacturer.
type SnapshotParty struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// SnapshotItem is a priced line.
type SnapshotItem struct {
	Seq              int                    `json:"seq"`
	Code             string                 `json:"code"`
	Description      string                 `json:"description"`
	Qty              int                    `json:"qty"`
	Assembled        bool                   `json:"assembled"`
	HingeSide        string                 `json:"hinge_side,omitempty"`
	ExposedSide      string                 `json:"exposed_side,omitempty"`
	UnitPriceCents   int64                  `json:"unit_price_cents"`
	AssemblyFeeCents int64                  `json:"assembly_fee_cents"`
	PartsCents       int64                  `json:"parts_cents"`
	AssemblyCents    int64                  `json:"assembly_cents"`
	ModsCents        int64                  `json:"mods_cents"`
	Modifications    []SnapshotModification `json:"modifications,omitempty"`
}

// SnapshotModification is a priced modification applied to a line.
type SnapshotModification struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TotalCents     int64  `json:"total_cents"`
}

// MoneyBreakdown holds every total in integer cents.
type MoneyBreakdown struct {
	PartsCents      int64 `json:"parts_cents"`
	AssemblyCents   int64 `json:"assembly_cents"`
	ModsCents       int64 `json:"mods_cents"`
	SubtotalCents   int64 `json:"subtotal_cents"`
	DiscountCents   int64 `json:"discount_cents"`
	TaxCents        int64 `json:"tax_cents"`
	DeliveryCents   int64 `json:"delivery_cents"`
	GrandTotalCents int64 `json:"grand_total_cents"`
}

// SnapshotAdvisory records a disagreement between client and server totals.
type SnapshotAdvisory struct {
	SubmittedGrandTotalCents int64 `json:"submitted_grand_total_cents"`
	Divergent                bool  `json:"divergent"`
	DifferenceCents          int64 `json:"difference_cents"`
}
