package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ItemID is an agenda item's stable identifier.
//
// Clients send ids as JSON strings or numbers. The original literal is kept so
// responses echo the id back in the form it arrived; identity comparison uses
// the textual form, so 101 and "101" name the same item.
type ItemID struct {
	text    string
	numeric bool
}

// StringItemID returns an ItemID that encodes as a JSON string.
func StringItemID(s string) ItemID { return ItemID{text: s} }

// NumericItemID returns an ItemID that encodes as a JSON number.
func NumericItemID(n int64) ItemID { return ItemID{text: fmt.Sprint(n), numeric: true} }

// ParseItemID builds an ItemID from a URL path segment. Digit-only segments
// are treated as numeric ids.
func ParseItemID(s string) ItemID {
	if s == "" {
		return ItemID{}
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return ItemID{text: s}
		}
	}
	return ItemID{text: s, numeric: true}
}

// IsZero reports whether no id is set.
func (id ItemID) IsZero() bool { return id.text == "" }

// String returns the id's textual form.
func (id ItemID) String() string { return id.text }

// Equal reports whether two ids name the same item. Zero ids never match.
func (id ItemID) Equal(other ItemID) bool {
	return !id.IsZero() && id.text == other.text
}

// MarshalJSON encodes the id as it was received; a zero id encodes as null.
func (id ItemID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	if id.numeric {
		return []byte(id.text), nil
	}
	return json.Marshal(id.text)
}

// MarshalYAML renders the id for YAML reports.
func (id ItemID) MarshalYAML() (any, error) {
	if id.IsZero() {
		return nil, nil
	}
	if id.numeric {
		if n, err := strconv.ParseInt(id.text, 10, 64); err == nil {
			return n, nil
		}
	}
	return id.text, nil
}

// UnmarshalJSON accepts a JSON string, number, or null.
func (id *ItemID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ItemID{}
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("item id: %w", err)
		}
		*id = ItemID{text: s}
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("item id must be a string or number: %w", err)
		}
		*id = ItemID{text: n.String(), numeric: true}
		return nil
	}
}
