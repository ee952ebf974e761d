// Package snapshot recomputes an accepted proposal into an immutable order
// snapshot. Prices always come from the catalog and the group multiplier;
// totals submitted by a client are only compared, never used.
package snapshot

import (
	"fmt"
	"strings"
	"time"

	"github.com/cabinetworks/contractor-backend/pkg/db/models"
	pkgerrors "github.com/cabinetworks/contractor-backend/pkg/errors"
	"github.com/cabinetworks/contractor-backend/pkg/types"
	"github.com/shopspring/decimal"
)

const defaultCurrency = "USD"

var hundred = decimal.NewFromInt(100)

// Catalog indexes a manufacturer's items and modifications by code.
type Catalog struct {
	Items         map[string]models.CatalogItem
	Modifications map[string]models.CatalogModification
}

// NewCatalog indexes the provided rows.
func NewCatalog(items []models.CatalogItem, mods []models.CatalogModification) Catalog {
	c := Catalog{
		Items:         make(map[string]models.CatalogItem, len(items)),
		Modifications: make(map[string]models.CatalogModification, len(mods)),
	}
	for _, item := range items {
		c.Items[item.Code] = item
	}
	for _, mod := range mods {
		c.Modifications[mod.Code] = mod
	}
	return c
}

// Input is everything the builder reads. It performs no I/O.
type Input struct {
	Proposal        models.Proposal
	Customer        models.Customer
	Manufacturer    models.Manufacturer
	Catalog         Catalog
	GroupMultiplier decimal.Decimal
	TaxRatePct      decimal.Decimal
	DefaultCurrency string
	// ClientTotals overrides the totals stored on the proposal when the
	// caller submitted its own.
	ClientTotals *types.ClientTotals
	CapturedAt   time.Time
}

// Build prices every line and returns the snapshot. The returned snapshot's
// Totals are the authoritative breakdown.
func Build(in Input) (*types.OrderSnapshot, error) {
	if len(in.Proposal.Items) == 0 {
		return nil, validation("proposal has no items", nil)
	}
	if !in.GroupMultiplier.IsPositive() {
		return nil, validation("group price multiplier must be positive", nil)
	}
	if in.TaxRatePct.IsNegative() {
		return nil, validation("tax rate must not be negative", nil)
	}
	if in.Proposal.DiscountCents < 0 || in.Proposal.DeliveryCents < 0 {
		return nil, validation("discount and delivery must not be negative", nil)
	}

	items := make([]types.SnapshotItem, 0, len(in.Proposal.Items))
	var parts, assembly, mods int64
	for i, line := range in.Proposal.Items {
		item, err := priceLine(i+1, line, in.Catalog, in.GroupMultiplier)
		if err != nil {
			return nil, err
		}
		parts += item.PartsCents
		assembly += item.AssemblyCents
		mods += item.ModsCents
		items = append(items, item)
	}

	totals, err := ComputeTotals(parts, assembly, mods, in.Proposal.DiscountCents, in.Proposal.DeliveryCents, in.TaxRatePct)
	if err != nil {
		return nil, err
	}

	currency := strings.TrimSpace(in.Proposal.Currency)
	if currency == "" {
		currency = strings.TrimSpace(in.DefaultCurrency)
	}
	if currency == "" {
		currency = defaultCurrency
	}

	capturedAt := in.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	snap := &types.OrderSnapshot{
		Version:         types.OrderSnapshotVersion,
		ProposalID:      in.Proposal.ID,
		CapturedAt:      capturedAt.UTC(),
		Currency:        currency,
		GroupID:         in.Proposal.OwnerGroupID,
		GroupMultiplier: in.GroupMultiplier.String(),
		TaxRatePct:      in.TaxRatePct.String(),
		Customer: types.SnapshotParty{
			ID:    in.Customer.ID,
			Name:  in.Customer.Name,
			Email: in.Customer.Email,
			Phone: in.Customer.Phone,
		},
		Manufacturer: types.SnapshotParty{
			ID:    in.Manufacturer.ID,
			Name:  in.Manufacturer.Name,
			Email: in.Manufacturer.Email,
		},
		Items:  items,
		Totals: totals,
	}

	submitted := in.ClientTotals
	if submitted == nil {
		submitted = in.Proposal.ClientTotals
	}
	if submitted != nil {
		diff := submitted.GrandTotalCents - totals.GrandTotalCents
		snap.Advisory = &types.SnapshotAdvisory{
			SubmittedGrandTotalCents: submitted.GrandTotalCents,
			Divergent:                diff != 0,
			DifferenceCents:          diff,
		}
	}
	return snap, nil
}

func priceLine(seq int, line types.ProposalItem, catalog Catalog, multiplier decimal.Decimal) (types.SnapshotItem, error) {
	if line.Qty <= 0 {
		return types.SnapshotItem{}, validation("quantity must be positive", map[string]any{"seq": seq, "code": line.Code})
	}
	cat, ok := catalog.Items[line.Code]
	if !ok {
		return types.SnapshotItem{}, validation("unknown catalog code", map[string]any{"seq": seq, "code": line.Code})
	}
	if cat.UnitPriceCents < 0 || cat.AssemblyFeeCents < 0 {
		return types.SnapshotItem{}, validation("catalog price must not be negative", map[string]any{"seq": seq, "code": line.Code})
	}

	qty := int64(line.Qty)
	unit := RoundHalfUp(decimal.NewFromInt(cat.UnitPriceCents).Mul(multiplier))
	item := types.SnapshotItem{
		Seq:              seq,
		Code:             cat.Code,
		Description:      cat.Description,
		Qty:              line.Qty,
		Assembled:        line.Assembled,
		HingeSide:        line.HingeSide,
		ExposedSide:      line.ExposedSide,
		UnitPriceCents:   unit,
		AssemblyFeeCents: cat.AssemblyFeeCents,
		PartsCents:       unit * qty,
	}
	if line.Assembled {
		item.AssemblyCents = cat.AssemblyFeeCents * qty
	}

	for _, m := range line.Modifications {
		mod, ok := catalog.Modifications[m.Code]
		if !ok {
			return types.SnapshotItem{}, validation("unknown modification code", map[string]any{"seq": seq, "code": m.Code})
		}
		if m.Qty <= 0 {
			return types.SnapshotItem{}, validation("modification quantity must be positive", map[string]any{"seq": seq, "code": m.Code})
		}
		if mod.PriceCents < 0 {
			return types.SnapshotItem{}, validation("modification price must not be negative", map[string]any{"seq": seq, "code": m.Code})
		}
		total := mod.PriceCents * int64(m.Qty) * qty
		item.ModsCents += total
		item.Modifications = append(item.Modifications, types.SnapshotModification{
			Code:           mod.Code,
			Name:           mod.Name,
			Qty:            m.Qty,
			UnitPriceCents: mod.PriceCents,
			TotalCents:     total,
		})
	}
	return item, nil
}

// ComputeTotals applies the fixed order of operations:
//
//	subtotal      = parts + assembly + mods
//	afterDiscount = subtotal - discount
//	tax           = round_half_up(afterDiscount * taxRatePct / 100)
//	grandTotal    = afterDiscount + tax + delivery
func ComputeTotals(parts, assembly, mods, discount, delivery int64, taxRatePct decimal.Decimal) (types.MoneyBreakdown, error) {
	if parts < 0 || assembly < 0 || mods < 0 || discount < 0 || delivery < 0 {
		return types.MoneyBreakdown{}, validation("amounts must not be negative", nil)
	}
	subtotal := parts + assembly + mods
	if discount > subtotal {
		return types.MoneyBreakdown{}, validation("discount exceeds subtotal", map[string]any{
			"subtotal_cents": subtotal,
			"discount_cents": discount,
		})
	}
	afterDiscount := subtotal - discount
	tax := RoundHalfUp(decimal.NewFromInt(afterDiscount).Mul(taxRatePct).Div(hundred))

	return types.MoneyBreakdown{
		PartsCents:      parts,
		AssemblyCents:   assembly,
		ModsCents:       mods,
		SubtotalCents:   subtotal,
		DiscountCents:   discount,
		TaxCents:        tax,
		DeliveryCents:   delivery,
		GrandTotalCents: afterDiscount + tax + delivery,
	}, nil
}

// RoundHalfUp rounds a non-negative amount to whole cents, halves going up.
func RoundHalfUp(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

func validation(msg string, details map[string]any) error {
	err := pkgerrors.New(pkgerrors.CodeValidation, msg)
	if details != nil {
		return err.WithDetails(details)
	}
	return err
}

// ParseRate parses a configured percentage such as "8.25".
func ParseRate(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse tax rate %q: %w", raw, err)
	}
	if rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("tax rate %q must not be negative", raw)
	}
	return rate, nil
}
