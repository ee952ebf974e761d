package types

// ProposalItem is one cabinet line on a proposal as the contractor configured it.
// Prices are never stored here; they are resolved from the catalog at acceptance.
type ProposalItem struct {
	Code          string                     `json:"code"`
	Qty           int                        `json:"qty"`
	Assembled     bool                       `json:"assembled"`
	HingeSide     string                     `json:"hinge_side,omitempty"`
	ExposedSide   string                     `json:"exposed_side,omitempty"`
	Modifications []ProposalItemModification `json:"modifications,omitempty"`
}

// ProposalItemModification references a catalog modification applied to a line.
type ProposalItemModification struct {
	Code string `json:"code"`
	Qty  int    `json:"qty"`
}

// ClientTotals are totals computed by the client. They are advisory only.
type ClientTotals struct {
	GrandTotalCents int64 `json:"grand_total_cents"`
}
