package documents

import (
	"bytes"
	"fmt"
	"html/template"
)

var htmlTemplate = template.Must(template.New("manufacturer-order").Funcs(template.FuncMap{
	"yesNo": yesNo,
	"side":  sideOrDash,
	"date":  func(d Document) string { return d.OrderDate.Format("January 2, 2006") },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Branding.HeaderText}} {{.OrderNumber}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 12px; color: #222; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #999; padding: 4px 6px; text-align: left; }
th { background: #eee; }
footer { margin-top: 24px; font-size: 10px; color: #666; }
</style>
</head>
<body>
<header>
<h1>{{.Branding.CompanyName}}</h1>
<h2>{{.Branding.HeaderText}}</h2>
<p>Order <strong>{{.OrderNumber}}</strong> &middot; {{date .}}</p>
<p>Customer: {{.CustomerName}}<br>Manufacturer: {{.ManufacturerName}}</p>
</header>
<table>
<thead><tr><th>#</th><th>Qty</th><th>Item</th><th>Assembled</th><th>Hinge</th><th>Exposed</th></tr></thead>
<tbody>
{{- range .Lines}}
<tr><td>{{.Seq}}</td><td>{{.Qty}}</td><td>{{.Code}}</td><td>{{yesNo .Assembled}}</td><td>{{side .HingeSide}}</td><td>{{side .ExposedSide}}</td></tr>
{{- end}}
</tbody>
</table>
<p>Total units: {{.TotalUnits}}</p>
{{- if .Branding.FooterText}}
<footer>{{.Branding.FooterText}}</footer>
{{- end}}
</body>
</html>
`))

// RenderHTML renders doc with contextual escaping of every interpolated value.
func RenderHTML(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("execute html template: %w", err)
	}
	return buf.Bytes(), nil
}
