package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Detail types produced by NormalizeDetail for non-keyed shapes.
const (
	DetailTypeText    = "Text"
	DetailTypeObject  = "Object"
	DetailTypeUnknown = "Unknown"
)

// Detail is one entry in an agenda item's details list, in canonical form.
//
// Stored agendas predate the canonical shape, so decoding a Detail accepts
// every historical form (bare string, nested array, one-key object,
// {text, icon} object) and normalizes it on the way in.
type Detail struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// UnmarshalJSON decodes any historical detail shape and canonicalizes it.
func (d *Detail) UnmarshalJSON(b []byte) error {
	raw, err := DecodeRaw(b)
	if err != nil {
		return err
	}
	*d = NormalizeDetail(raw)
	return nil
}

// DecodeRaw decodes JSON into generic values, keeping numbers as json.Number
// so their original text survives normalization.
func DecodeRaw(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// NormalizeDetail converts one detail entry of any shape into a canonical
// Detail. It never fails: shapes it does not recognise become Unknown.
// Normalizing an already-canonical detail returns it unchanged.
func NormalizeDetail(raw any) Detail {
	switch v := raw.(type) {
	case Detail:
		return v
	case *Detail:
		if v == nil {
			return Detail{Type: DetailTypeUnknown, Value: "null"}
		}
		return *v
	case string:
		return Detail{Type: DetailTypeText, Value: v}
	case []any:
		parts := make([]string, 0, len(v))
		for _, el := range flatten(v) {
			if obj, ok := el.(map[string]any); ok {
				parts = append(parts, joinForm(obj["value"]))
				continue
			}
			parts = append(parts, joinForm(el))
		}
		return Detail{Type: DetailTypeText, Value: strings.Join(parts, " | ")}
	case []string:
		return Detail{Type: DetailTypeText, Value: strings.Join(v, " | ")}
	case map[string]any:
		return normalizeObject(v)
	default:
		return Detail{Type: DetailTypeUnknown, Value: stringForm(v)}
	}
}

func normalizeObject(obj map[string]any) Detail {
	typ, hasType := obj["type"]
	val, hasValue := obj["value"]
	if hasType && hasValue {
		return Detail{Type: stringForm(typ), Value: stringForm(val)}
	}

	if len(obj) == 2 {
		text, hasText := obj["text"]
		_, hasIcon := obj["icon"]
		if hasText && hasIcon {
			return Detail{Type: DetailTypeText, Value: stringForm(text)}
		}
	}

	if len(obj) == 1 {
		for k, v := range obj {
			return Detail{Type: k, Value: stringForm(v)}
		}
	}

	return Detail{Type: DetailTypeObject, Value: jsonForm(obj)}
}

// flatten expands nested arrays to any depth, preserving element order.
func flatten(in []any) []any {
	out := make([]any, 0, len(in))
	for _, el := range in {
		if nested, ok := el.([]any); ok {
			out = append(out, flatten(nested)...)
			continue
		}
		out = append(out, el)
	}
	return out
}

// stringForm renders a value as detail text: strings verbatim, everything
// else as compact JSON.
func stringForm(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	case nil:
		return "null"
	}
	return jsonForm(v)
}

// joinForm is stringForm for array elements, where missing values join as
// empty strings.
func joinForm(v any) string {
	if v == nil {
		return ""
	}
	return stringForm(v)
}

// jsonForm serializes v as compact JSON. encoding/json sorts map keys, so
// equal values always produce the same text.
func jsonForm(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "null"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
