package dbtest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/cabinetworks/contractor-backend/pkg/db/models"
	"github.com/cabinetworks/contractor-backend/pkg/enums"
	"github.com/cabinetworks/contractor-backend/pkg/types"
)

// Expected money breakdown for the seeded proposal at TaxRatePct.
//
//	parts    = 2*round(20000*1.10) + round(15000*1.10) + round(30000*1.10) = 93500
//	assembly = 2*2500 + 3000                                              = 8000
//	mods     = 8000 (roll-out tray on the sink base)
//	subtotal = 109500, after discount 104500, tax round(8621.25) = 8621
const (
	TaxRatePct            = "8.25"
	ExpectedPartsCents    = int64(93500)
	ExpectedAssemblyCents = int64(8000)
	ExpectedModsCents     = int64(8000)
	ExpectedSubtotalCents = int64(109500)
	ExpectedTaxCents      = int64(8621)
	ExpectedGrandTotal    = int64(128121)
	SeedDiscountCents     = int64(5000)
	SeedDeliveryCents     = int64(15000)
)

// Scenario is a small but complete data set: one contractor group with members,
// two admins (one of them also a group member), a customer, a manufacturer
// with a catalog and a draft proposal of three lines.
type Scenario struct {
	Group          models.Group
	OtherGroup     models.Group
	Admins         []models.User
	Members        []models.User
	InactiveMember models.User
	Outsider       models.User
	Customer       models.Customer
	Manufacturer   models.Manufacturer
	Proposal       models.Proposal
}

// Seed inserts the scenario.
func Seed(t *testing.T, conn *gorm.DB) *Scenario {
	t.Helper()
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	s := &Scenario{}

	s.Group = models.Group{Name: "Northside Remodeling", PriceMultiplier: decimal.RequireFromString("1.10"), Features: types.DefaultGroupFeatures(), CreatedAt: now, UpdatedAt: now}
	s.OtherGroup = models.Group{Name: "Lakeview Kitchens", PriceMultiplier: decimal.RequireFromString("1.00"), Features: types.DefaultGroupFeatures(), CreatedAt: now, UpdatedAt: now}
	mustCreate(t, conn, &s.Group)
	mustCreate(t, conn, &s.OtherGroup)

	groupID := s.Group.ID
	otherID := s.OtherGroup.ID
	s.Admins = []models.User{
		{Email: "ops@cabinetworks.test", Name: "Ops Admin", Role: enums.UserRoleAdmin, Active: true},
		{Email: "lead@cabinetworks.test", Name: "Lead Admin", Role: enums.UserRoleAdmin, GroupID: &groupID, Active: true},
	}
	for i := range s.Admins {
		mustCreate(t, conn, &s.Admins[i])
	}
	s.Members = []models.User{
		{Email: "dana@northside.test", Name: "Dana", Role: enums.UserRoleContractor, GroupID: &groupID, Active: true},
		{Email: "lee@northside.test", Name: "Lee", Role: enums.UserRoleStaff, GroupID: &groupID, Active: true},
	}
	for i := range s.Members {
		mustCreate(t, conn, &s.Members[i])
	}
	s.InactiveMember = models.User{Email: "gone@northside.test", Name: "Gone", Role: enums.UserRoleContractor, GroupID: &groupID, Active: false}
	mustCreate(t, conn, &s.InactiveMember)
	s.Outsider = models.User{Email: "sam@lakeview.test", Name: "Sam", Role: enums.UserRoleContractor, GroupID: &otherID, Active: true}
	mustCreate(t, conn, &s.Outsider)

	s.Customer = models.Customer{Name: "Jordan <Homeowner> & Co", Email: "jordan@example.test", Phone: "555-0100", CreatedAt: now, UpdatedAt: now}
	mustCreate(t, conn, &s.Customer)

	s.Manufacturer = models.Manufacturer{
		Name:              "Oakline Cabinetry",
		Email:             "orders@oakline.test",
		AutoEmailOnAccept: true,
		OrderEmailMode:    enums.OrderEmailModePDF,
		OrderEmailSubject: "New order {{orderNumber}}",
		OrderEmailBody:    "Order {{orderNumber}} for {{customerName}} is attached.",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	mustCreate(t, conn, &s.Manufacturer)

	items := []models.CatalogItem{
		{ManufacturerID: s.Manufacturer.ID, Code: "B12", Description: "Base 12in", UnitPriceCents: 20000, AssemblyFeeCents: 2500},
		{ManufacturerID: s.Manufacturer.ID, Code: "W3030", Description: "Wall 30x30", UnitPriceCents: 15000, AssemblyFeeCents: 2000},
		{ManufacturerID: s.Manufacturer.ID, Code: "SB36", Description: "Sink Base 36in", UnitPriceCents: 30000, AssemblyFeeCents: 3000},
	}
	for i := range items {
		mustCreate(t, conn, &items[i])
	}
	mods := []models.CatalogModification{
		{ManufacturerID: s.Manufacturer.ID, Code: "ROT", Name: "Roll-out tray", PriceCents: 8000},
		{ManufacturerID: s.Manufacturer.ID, Code: "FE", Name: "Finished end", PriceCents: 4500},
	}
	for i := range mods {
		mustCreate(t, conn, &mods[i])
	}

	s.Proposal = SeedProposal(t, conn, s, nil)
	return s
}

// SeedProposal inserts another draft proposal for the scenario's group.
func SeedProposal(t *testing.T, conn *gorm.DB, s *Scenario, mutate func(*models.Proposal)) models.Proposal {
	t.Helper()
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	p := models.Proposal{
		Status:         enums.ProposalStatusDraft,
		OwnerGroupID:   s.Group.ID,
		CustomerID:     s.Customer.ID,
		ManufacturerID: s.Manufacturer.ID,
		Title:          "Kitchen refresh",
		Items: []types.ProposalItem{
			{Code: "B12", Qty: 2, Assembled: true, HingeSide: "left", ExposedSide: "none"},
			{Code: "W3030", Qty: 1, Assembled: false, HingeSide: "right", ExposedSide: "left"},
			{Code: "SB36", Qty: 1, Assembled: true, HingeSide: "both", ExposedSide: "right", Modifications: []types.ProposalItemModification{{Code: "ROT", Qty: 1}}},
		},
		DiscountCents: SeedDiscountCents,
		DeliveryCents: SeedDeliveryCents,
		Currency:      "USD",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if mutate != nil {
		mutate(&p)
	}
	mustCreate(t, conn, &p)
	return p
}

func mustCreate(t *testing.T, conn *gorm.DB, value any) {
	t.Helper()
	if err := conn.Create(value).Error; err != nil {
		t.Fatalf("seed %T: %v", value, err)
	}
}
