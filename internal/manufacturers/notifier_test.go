package manufacturers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cabinetworks/contractor-backend/internal/documents"
	"github.com/cabinetworks/contractor-backend/internal/proposals"
	"github.com/cabinetworks/contractor-backend/pkg/db/dbtest"
	"github.com/cabinetworks/contractor-backend/pkg/db/models"
	"github.com/cabinetworks/contractor-backend/pkg/enums"
	pkgerrors "github.com/cabinetworks/contractor-backend/pkg/errors"
	"github.com/cabinetworks/contractor-backend/pkg/logger"
	"github.com/cabinetworks/contractor-backend/pkg/mailer"
	"github.com/cabinetworks/contractor-backend/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeOrders struct {
	order *models.Order
}

func (f fakeOrders) FindByID(_ context.Context, id int64) (*models.Order, error) {
	if f.order == nil || f.order.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return f.order, nil
}

type fakeBranding struct{}

func (fakeBranding) Current(context.Context) (documents.Branding, error) {
	return documents.Branding{CompanyName: "Cabinet Works", HeaderText: "Manufacturer Order"}, nil
}

type captureSender struct {
	sent []mailer.Message
	err  error
}

func (c *captureSender) Send(_ context.Context, msg mailer.Message) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

type harness struct {
	conn     *gorm.DB
	scenario *dbtest.Scenario
	order    *models.Order
	sender   *captureSender
	logs     *bytes.Buffer
	notifier *Notifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	s := dbtest.Seed(t, conn)
	order := &models.Order{
		ID:              501,
		ProposalID:      s.Proposal.ID,
		OrderNumber:     "ORD-0001-101526",
		OwnerGroupID:    s.Group.ID,
		CustomerID:      s.Customer.ID,
		ManufacturerID:  s.Manufacturer.ID,
		GrandTotalCents: dbtest.ExpectedGrandTotal,
		Snapshot: types.OrderSnapshot{
			CapturedAt:   time.Date(2026, 10, 15, 14, 0, 0, 0, time.UTC),
			Customer:     types.SnapshotParty{Name: s.Customer.Name},
			Manufacturer: types.SnapshotParty{Name: s.Manufacturer.Name},
			Items: []types.SnapshotItem{
				{Seq: 1, Code: "B12", Qty: 2, Assembled: true, HingeSide: "left", UnitPriceCents: 22000, PartsCents: 44000},
				{Seq: 2, Code: "SB36", Qty: 1, HingeSide: "both", ExposedSide: "right", UnitPriceCents: 33000, PartsCents: 33000},
			},
			Totals: types.MoneyBreakdown{GrandTotalCents: dbtest.ExpectedGrandTotal},
		},
	}
	renderer, err := documents.NewRenderer(documents.FPDFEngine{}, time.Minute, nil)
	require.NoError(t, err)
	sender := &captureSender{}
	logs := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: logs})
	n, err := NewNotifier(fakeOrders{order: order}, proposals.NewRepository(conn), fakeBranding{}, renderer, sender, "orders@cabinetworks.test", nil, logg)
	require.NoError(t, err)
	return &harness{conn: conn, scenario: s, order: order, sender: sender, logs: logs, notifier: n}
}

func (h *harness) logEntries(t *testing.T) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(h.logs.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func (h *harness) logged(t *testing.T, message string) map[string]any {
	t.Helper()
	for _, entry := range h.logEntries(t) {
		if entry["message"] == message {
			return entry
		}
	}
	return nil
}

func (h *harness) updateManufacturer(t *testing.T, fields map[string]any) {
	t.Helper()
	require.NoError(t, h.conn.Model(&models.Manufacturer{}).Where("id = ?", h.scenario.Manufacturer.ID).Updates(fields).Error)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "New order ORD-0001-101526", Subject("New order {{orderNumber}}", "ORD-0001-101526"))
	assert.Equal(t, "Cabinet order (#ORD-0001-101526)", Subject("Cabinet order", "ORD-0001-101526"))
	assert.Equal(t, "New order (#ORD-0001-101526)", Subject("  ", "ORD-0001-101526"))
}

func TestBody(t *testing.T) {
	doc := documents.Document{OrderNumber: "ORD-0002-101526", CustomerName: "Jordan", ManufacturerName: "Oakline"}
	assert.Equal(t, "Hi Oakline, order ORD-0002-101526 for Jordan.", Body("Hi {{manufacturerName}}, order {{orderNumber}} for {{customerName}}.", doc))
	assert.Equal(t, "Order ORD-0002-101526 for Jordan.", Body("", doc))
}

func TestNotifySendsPDFWithShortText(t *testing.T) {
	h := newHarness(t)

	res, err := h.notifier.Notify(context.Background(), h.order.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, res.Status)

	require.Len(t, h.sender.sent, 1)
	msg := h.sender.sent[0]
	assert.Equal(t, []string{"orders@oakline.test"}, msg.To)
	assert.Equal(t, "New order ORD-0001-101526", msg.Subject)
	assert.Equal(t, "Order ORD-0001-101526 is attached.", msg.TextBody)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "ORD-0001-101526.pdf", msg.Attachments[0].Name)
	assert.True(t, bytes.HasPrefix(msg.Attachments[0].Data, []byte("%PDF-")))
	assert.NotContains(t, string(msg.Attachments[0].Data), "220.00")
}

func TestNotifyPlainModeUsesBodyTemplateOnly(t *testing.T) {
	h := newHarness(t)
	h.updateManufacturer(t, map[string]any{"order_email_mode": enums.OrderEmailModePlain})

	_, err := h.notifier.Notify(context.Background(), h.order.ID, Options{})
	require.NoError(t, err)
	require.Len(t, h.sender.sent, 1)
	assert.Equal(t, "Order ORD-0001-101526 for Jordan <Homeowner> & Co is attached.", h.sender.sent[0].TextBody)
	assert.Empty(t, h.sender.sent[0].Attachments)
}

func TestNotifyBothModeAttachesAndUsesTemplate(t *testing.T) {
	h := newHarness(t)
	h.updateManufacturer(t, map[string]any{"order_email_mode": enums.OrderEmailModeBoth})

	_, err := h.notifier.Notify(context.Background(), h.order.ID, Options{})
	require.NoError(t, err)
	require.Len(t, h.sender.sent, 1)
	assert.Contains(t, h.sender.sent[0].TextBody, "Jordan <Homeowner> & Co")
	assert.Len(t, h.sender.sent[0].Attachments, 1)
}

func TestNotifyRespectsAutoEmailUnlessForced(t *testing.T) {
	h := newHarness(t)
	h.updateManufacturer(t, map[string]any{"auto_email_on_accept": false})

	res, err := h.notifier.Notify(context.Background(), h.order.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDisabled, res.Status)
	assert.Empty(t, h.sender.sent)
	entry := h.logged(t, "manufacturer.email.auto-disabled")
	require.NotNil(t, entry, "auto-disabled skip is logged")
	assert.Equal(t, "ORD-0001-101526", entry["order_number"])

	res, err = h.notifier.Notify(context.Background(), h.order.ID, Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, res.Status)
	assert.Len(t, h.sender.sent, 1)
}

func TestNotifySkipsMissingRecipient(t *testing.T) {
	h := newHarness(t)
	h.updateManufacturer(t, map[string]any{"email": ""})

	res, err := h.notifier.Notify(context.Background(), h.order.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Status)
	assert.Equal(t, SkippedMissingRecipient, res.SkippedReason)
	assert.Empty(t, h.sender.sent)
}

func TestNotifyDryRunReportsSizesWithoutSending(t *testing.T) {
	h := newHarness(t)
	h.updateManufacturer(t, map[string]any{"auto_email_on_accept": false, "order_email_mode": enums.OrderEmailModePlain})

	res, err := h.notifier.Notify(context.Background(), h.order.ID, Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDryRun, res.Status)
	assert.Equal(t, "orders@oakline.test", res.Recipient)
	assert.Equal(t, "New order ORD-0001-101526", res.Subject)
	assert.Greater(t, res.PDFBytes, 3000)
	assert.Greater(t, res.HTMLBytes, 0)
	assert.Greater(t, res.TextBytes, 0)
	assert.Greater(t, res.MessageBytes, int64(0))
	assert.Empty(t, h.sender.sent)
}

func TestNotifyTransportFailureIsDeliveryError(t *testing.T) {
	h := newHarness(t)
	h.sender.err = errors.New("421 service not available")

	_, err := h.notifier.Notify(context.Background(), h.order.ID, Options{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDelivery))
}

func TestNotifyUnknownOrder(t *testing.T) {
	h := newHarness(t)

	_, err := h.notifier.Notify(context.Background(), 9999, Options{Force: true})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
