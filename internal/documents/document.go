// Package documents renders the manufacturer order document. Documents are
// built from an allow-listed projection of the order snapshot, so no pricing
// field can reach the output whatever the snapshot carries.
package documents

import (
	"time"

	"github.com/cabinetworks/contractor-backend/pkg/types"
)

// Branding customizes the document header and footer.
type Branding struct {
	CompanyName string
	HeaderText  string
	FooterText  string
}

// Line is the only per-item data a manufacturer sees.
type Line struct {
	Seq         int
	Qty         int
	Code        string
	Assembled   bool
	HingeSide   string
	ExposedSide string
}

// Document is the render model for both the PDF and HTML outputs.
type Document struct {
	OrderNumber      string
	OrderDate        time.Time
	CustomerName     string
	ManufacturerName string
	Branding         Branding
	Lines            []Line
	TotalUnits       int
}

// Project copies the allow-listed fields out of snap.
func Project(orderNumber string, snap types.OrderSnapshot, branding Branding) Document {
	doc := Document{
		OrderNumber:      orderNumber,
		OrderDate:        snap.CapturedAt,
		CustomerName:     snap.Customer.Name,
		ManufacturerName: snap.Manufacturer.Name,
		Branding:         branding,
		Lines:            make([]Line, 0, len(snap.Items)),
	}
	for i, item := range snap.Items {
		seq := item.Seq
		if seq == 0 {
			seq = i + 1
		}
		doc.Lines = append(doc.Lines, Line{
			Seq:         seq,
			Qty:         item.Qty,
			Code:        item.Code,
			Assembled:   item.Assembled,
			HingeSide:   item.HingeSide,
			ExposedSide: item.ExposedSide,
		})
		doc.TotalUnits += item.Qty
	}
	return doc
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func sideOrDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
