package types

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// GroupFeatures is the closed set of per-group toggles. Unknown keys are
// rejected when decoding and absent keys keep their defaults.
type GroupFeatures struct {
	OrderNotifications bool `json:"order_notifications"`
	ManufacturerEmail  bool `json:"manufacturer_email"`
	PublicAcceptance   bool `json:"public_acceptance"`
}

// DefaultGroupFeatures enables every toggle.
func DefaultGroupFeatures() GroupFeatures {
	return GroupFeatures{
		OrderNotifications: true,
		ManufacturerEmail:  true,
		PublicAcceptance:   true,
	}
}

// ParseGroupFeatures decodes raw JSON on top of the defaults.
func ParseGroupFeatures(raw []byte) (GroupFeatures, error) {
	features := DefaultGroupFeatures()
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return features, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&features); err != nil {
		return GroupFeatures{}, fmt.Errorf("decode group features: %w", err)
	}
	return features, nil
}

// Value implements driver.Valuer.
func (g GroupFeatures) Value() (driver.Value, error) {
	b, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (g *GroupFeatures) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*g = DefaultGroupFeatures()
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported group features type %T", src)
	}
	parsed, err := ParseGroupFeatures(raw)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
