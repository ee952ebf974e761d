package enums

import (
	"fmt"
	"strings"
)

// OrderEmailMode selects the content of the manufacturer order email.
type OrderEmailMode string

const (
	OrderEmailModePDF   OrderEmailMode = "pdf"
	OrderEmailModePlain OrderEmailMode = "plain"
	OrderEmailModeBoth  OrderEmailMode = "both"
)

var validOrderEmailModes = []OrderEmailMode{
	OrderEmailModePDF,
	OrderEmailModePlain,
	OrderEmailModeBoth,
}

// IsValid reports whether the value is a known OrderEmailMode.
func (m OrderEmailMode) IsValid() bool {
	for _, candidate := range validOrderEmailModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// IncludesPDF reports whether the rendered document is attached.
func (m OrderEmailMode) IncludesPDF() bool {
	return m == OrderEmailModePDF || m == OrderEmailModeBoth
}

// IncludesPlain reports whether the manufacturer body template is sent.
func (m OrderEmailMode) IncludesPlain() bool {
	return m == OrderEmailModePlain || m == OrderEmailModeBoth
}

// ParseOrderEmailMode converts raw input into an OrderEmailMode. Empty input
// falls back to pdf.
func ParseOrderEmailMode(value string) (OrderEmailMode, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return OrderEmailModePDF, nil
	}
	for _, candidate := range validOrderEmailModes {
		if string(candidate) == trimmed {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order email mode %q", value)
}
