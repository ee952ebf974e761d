package documents

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/go-pdf/fpdf"
)

// Engine turns a document into PDF bytes.
type Engine interface {
	Render(ctx context.Context, doc Document) ([]byte, error)
}

// FPDFEngine draws documents with go-pdf/fpdf using the core Helvetica font.
// Streams are left uncompressed so output is byte-for-byte inspectable.
type FPDFEngine struct{}

var columns = []struct {
	title string
	width float64
	align string
}{
	{"#", 12, "C"},
	{"Qty", 16, "C"},
	{"Item", 52, "L"},
	{"Assembled", 30, "C"},
	{"Hinge", 30, "C"},
	{"Exposed", 30, "C"},
}

var legend = []string{
	"# - line sequence as entered on the accepted proposal.",
	"Qty - number of identical cabinets to build for the line.",
	"Item - manufacturer catalog code.",
	"Assembled - Yes when the cabinet ships assembled, No for flat pack.",
	"Hinge - door hinge side: left, right, both or none.",
	"Exposed - finished side visible after install: left, right, both or none.",
}

func (FPDFEngine) Render(ctx context.Context, doc Document) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetCompression(false)
	pdf.SetCreationDate(doc.OrderDate)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	title := fmt.Sprintf("%s %s", doc.Branding.HeaderText, doc.OrderNumber)
	pdf.SetTitle(tr(title), false)
	pdf.SetAuthor(tr(doc.Branding.CompanyName), false)
	pdf.SetCreator("contractor-backend", false)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AliasNbPages("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		footer := doc.Branding.FooterText
		if footer == "" {
			footer = doc.Branding.CompanyName
		}
		pdf.CellFormat(140, 5, tr(footer), "T", 0, "L", false, 0, "")
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "T", 0, "R", false, 0, "")
	})

	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 9, tr(doc.Branding.CompanyName), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 7, tr(doc.Branding.HeaderText), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 10)
	header := [][2]string{
		{"Order number", doc.OrderNumber},
		{"Order date", doc.OrderDate.Format("January 2, 2006")},
		{"Customer", doc.CustomerName},
		{"Manufacturer", doc.ManufacturerName},
	}
	for _, row := range header {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(35, 6, tr(row[0]), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, tr(row[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range columns {
		pdf.CellFormat(col.width, 7, col.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, line := range doc.Lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cells := []string{
			strconv.Itoa(line.Seq),
			strconv.Itoa(line.Qty),
			line.Code,
			yesNo(line.Assembled),
			sideOrDash(line.HingeSide),
			sideOrDash(line.ExposedSide),
		}
		for i, col := range columns {
			pdf.CellFormat(col.width, 6, tr(cells[i]), "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(columns[0].width, 7, "", "1", 0, "C", false, 0, "")
	pdf.CellFormat(columns[1].width, 7, strconv.Itoa(doc.TotalUnits), "1", 0, "C", false, 0, "")
	pdf.CellFormat(0, 7, "Total units", "1", 1, "L", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, "Legend", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, entry := range legend {
		pdf.MultiCell(0, 5, entry, "", "L", false)
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(90, 6, "Received by: ______________________", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Date: ______________", "", 1, "L", false, 0, "")

	if pdf.Err() {
		return nil, fmt.Errorf("draw pdf: %w", pdf.Error())
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
