package models

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// StringList is a string slice persisted as JSON text. Rows written by older
// clients as PostgreSQL array literals ({a,b}) are decoded as well.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(value interface{}) error {
	raw, ok := textValue(value)
	if !ok {
		return fmt.Errorf("string list: unsupported type %T", value)
	}
	parsed, err := ParseStringList(raw)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseStringList decodes JSON arrays and PostgreSQL array literals.
func ParseStringList(raw string) (StringList, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return StringList{}, nil
	}
	if strings.HasPrefix(raw, "{") && strings.HasSuffix(raw, "}") {
		return parsePGArray(raw[1 : len(raw)-1]), nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("string list: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func parsePGArray(body string) StringList {
	out := StringList{}
	if strings.TrimSpace(body) == "" {
		return out
	}
	var (
		cur     strings.Builder
		quoted  bool
		escaped bool
	)
	flush := func() {
		v := cur.String()
		if !quoted {
			v = strings.TrimSpace(v)
		}
		out = append(out, v)
		cur.Reset()
		quoted = false
	}
	inQuotes := false
	for _, r := range body {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			inQuotes = !inQuotes
			quoted = true
		case r == ',' && !inQuotes:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

// Coordinates is a latitude/longitude pair stored as JSON.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Value implements driver.Valuer.
func (c Coordinates) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (c *Coordinates) Scan(value interface{}) error {
	return scanJSON(value, c)
}

// BookingInfo carries optional booking metadata for a post.
type BookingInfo struct {
	Price         string  `json:"price,omitempty"`
	BookingURL    string  `json:"booking_url,omitempty"`
	AffiliateCode string  `json:"affiliate_code,omitempty"`
	Duration      string  `json:"duration,omitempty"`
	Rating        float64 `json:"rating,omitempty"`
	PriceRange    string  `json:"price_range,omitempty"`
}

// Value implements driver.Valuer.
func (b BookingInfo) Value() (driver.Value, error) {
	out, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return string(out), nil
}

// Scan implements sql.Scanner.
func (b *BookingInfo) Scan(value interface{}) error {
	return scanJSON(value, b)
}

func scanJSON(value interface{}, dst interface{}) error {
	raw, ok := textValue(value)
	if !ok {
		return fmt.Errorf("json column: unsupported type %T", value)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil
	}
	// Some rows hold the JSON document encoded a second time as a string.
	if strings.HasPrefix(raw, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(raw), &inner); err != nil {
			return fmt.Errorf("json column: %w", err)
		}
		raw = inner
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("json column: %w", err)
	}
	return nil
}

func textValue(value interface{}) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case []byte:
		return string(v), true
	}
	return "", false
}
