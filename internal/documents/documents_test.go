package documents

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/cabinetworks/contractor-backend/pkg/errors"
	"github.com/cabinetworks/contractor-backend/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pricedSnapshot carries distinctive money values so their absence from the
// rendered output can be asserted without colliding with PDF coordinates.
func pricedSnapshot() types.OrderSnapshot {
	return types.OrderSnapshot{
		Version:    types.OrderSnapshotVersion,
		ProposalID: 42,
		CapturedAt: time.Date(2026, 10, 15, 14, 30, 0, 0, time.UTC),
		Currency:   "USD",
		Customer:   types.SnapshotParty{ID: 1, Name: `Jordan <script>alert("x")</script> & Co`},
		Manufacturer: types.SnapshotParty{
			ID:   2,
			Name: "Oakline Cabinetry",
		},
		Items: []types.SnapshotItem{
			{
				Seq: 1, Code: "B12", Description: "SECRET-DESCRIPTION", Qty: 2, Assembled: true, HingeSide: "left", ExposedSide: "none",
				UnitPriceCents: 987654, AssemblyFeeCents: 876543, PartsCents: 1975308, AssemblyCents: 1753086,
			},
			{
				Seq: 2, Code: "SB36", Qty: 1, HingeSide: "both",
				UnitPriceCents: 765432, PartsCents: 765432, ModsCents: 654321,
				Modifications: []types.SnapshotModification{{Code: "ROT", Name: "HIDDEN-MOD", Qty: 1, UnitPriceCents: 654321, TotalCents: 654321}},
			},
		},
		Totals: types.MoneyBreakdown{SubtotalCents: 5148147, TaxCents: 424722, GrandTotalCents: 5587869},
	}
}

var forbidden = []string{
	"987654", "9876.54", "9,876.54",
	"876543", "8765.43",
	"1975308", "19753.08",
	"765432", "7654.32",
	"654321", "6543.21",
	"5148147", "51481.47",
	"424722", "4247.22",
	"5587869", "55878.69", "55,878.69",
	"SECRET-DESCRIPTION", "HIDDEN-MOD", "$",
}

func testBranding() Branding {
	return Branding{CompanyName: "Cabinet Works", HeaderText: "Manufacturer Order", FooterText: "Questions? orders@cabinetworks.test"}
}

func TestProjectKeepsOnlyAllowListedFields(t *testing.T) {
	doc := Project("ORD-0001-101526", pricedSnapshot(), testBranding())

	assert.Equal(t, "ORD-0001-101526", doc.OrderNumber)
	assert.Equal(t, 3, doc.TotalUnits)
	assert.Equal(t, []Line{
		{Seq: 1, Qty: 2, Code: "B12", Assembled: true, HingeSide: "left", ExposedSide: "none"},
		{Seq: 2, Qty: 1, Code: "SB36", HingeSide: "both"},
	}, doc.Lines)
}

func TestRenderHTMLEscapesAndOmitsPrices(t *testing.T) {
	out, err := RenderHTML(Project("ORD-0001-101526", pricedSnapshot(), testBranding()))
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, "ORD-0001-101526")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "Questions? orders@cabinetworks.test")
	for _, s := range forbidden {
		assert.NotContains(t, html, s)
	}
}

func TestFPDFEngineProducesCompletePriceFreePDF(t *testing.T) {
	renderer, err := NewRenderer(FPDFEngine{}, time.Second*10, nil)
	require.NoError(t, err)

	out, err := renderer.RenderPDF(context.Background(), Project("ORD-0001-101526", pricedSnapshot(), testBranding()))
	require.NoError(t, err)

	require.NoError(t, ValidatePDF(out))
	assert.Greater(t, len(out), 3000)
	assert.True(t, bytes.Contains(out, []byte("ORD-0001-101526")))
	assert.True(t, bytes.Contains(out, []byte("SB36")))
	for _, s := range forbidden {
		assert.False(t, bytes.Contains(out, []byte(s)), "pdf must not contain %q", s)
	}
}

type engineFunc func(ctx context.Context, doc Document) ([]byte, error)

func (f engineFunc) Render(ctx context.Context, doc Document) ([]byte, error) { return f(ctx, doc) }

func TestRendererFailures(t *testing.T) {
	cases := map[string]Engine{
		"timeout": engineFunc(func(ctx context.Context, _ Document) ([]byte, error) {
			time.Sleep(200 * time.Millisecond)
			return []byte("%PDF-1.3\n%%EOF\n"), nil
		}),
		"panic": engineFunc(func(context.Context, Document) ([]byte, error) {
			panic("engine crashed")
		}),
		"error": engineFunc(func(context.Context, Document) ([]byte, error) {
			return nil, errors.New("boom")
		}),
		"truncated": engineFunc(func(context.Context, Document) ([]byte, error) {
			return []byte("%PDF-1.3\n1 0 obj"), nil
		}),
		"not a pdf": engineFunc(func(context.Context, Document) ([]byte, error) {
			return []byte("<html></html>"), nil
		}),
	}
	for name, engine := range cases {
		t.Run(name, func(t *testing.T) {
			renderer, err := NewRenderer(engine, 50*time.Millisecond, nil)
			require.NoError(t, err)
			out, err := renderer.RenderPDF(context.Background(), Document{})
			require.Error(t, err)
			assert.Nil(t, out)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeRender), "got %v", err)
		})
	}
}

func TestValidatePDFAcceptsTrailingNewlines(t *testing.T) {
	require.NoError(t, ValidatePDF([]byte("%PDF-1.4\nbody\n%%EOF\r\n")))
	require.Error(t, ValidatePDF(nil))
}

func TestNewRendererRequiresEngine(t *testing.T) {
	_, err := NewRenderer(nil, 0, nil)
	require.Error(t, err)

	r, err := NewRenderer(FPDFEngine{}, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultRenderTimeout, r.timeout)
}

func TestRenderHTMLHandlesEmptyBranding(t *testing.T) {
	out, err := RenderHTML(Document{OrderNumber: "ORD-0002-101526"})
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(out), "ORD-0002-101526"))
	assert.NotContains(t, string(out), "<footer>")
}
