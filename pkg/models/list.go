package models

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// ListStatus describes the outcome of decoding a JSON-encoded list column.
type ListStatus int

const (
	// ListAbsent means the column was NULL, empty or JSON null.
	ListAbsent ListStatus = iota
	// ListValid means the column held a well-formed JSON array.
	ListValid
	// ListMalformed means the column held something other than a JSON array.
	ListMalformed
)

func (s ListStatus) String() string {
	switch s {
	case ListAbsent:
		return "absent"
	case ListValid:
		return "valid"
	case ListMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// ListItem is one decoded list element in its metadata string form.
type ListItem struct {
	Text   string
	Truthy bool
}

// ListField is a decoded list column (facts, concepts, files_read, files_modified).
type ListField struct {
	Err    error
	Items  []ListItem
	Status ListStatus
}

// DecodeList decodes a JSON-encoded list column.
// It never returns an error to the caller: a bad value yields ListMalformed
// with Err set, so the caller can skip exactly that field.
func DecodeList(raw string) ListField {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" {
		return ListField{Status: ListAbsent}
	}
	if trimmed[0] != '[' {
		return ListField{Status: ListMalformed, Err: errNotAList}
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &elems); err != nil {
		return ListField{Status: ListMalformed, Err: err}
	}

	items := make([]ListItem, 0, len(elems))
	for _, elem := range elems {
		item, err := decodeItem(elem)
		if err != nil {
			return ListField{Status: ListMalformed, Err: err}
		}
		items = append(items, item)
	}
	return ListField{Status: ListValid, Items: items}
}

// Strings returns the text of every element.
func (f ListField) Strings() []string {
	out := make([]string, len(f.Items))
	for i, item := range f.Items {
		out[i] = item.Text
	}
	return out
}

// Joined returns the elements joined by sep.
// ok is false unless the field is valid and holds at least one element.
func (f ListField) Joined(sep string) (joined string, ok bool) {
	if f.Status != ListValid || len(f.Items) == 0 {
		return "", false
	}
	return strings.Join(f.Strings(), sep), true
}

type listError string

func (e listError) Error() string { return string(e) }

const errNotAList = listError("value is not a JSON array")

// decodeItem converts one array element into its string form.
// Strings are used verbatim, numbers keep their JSON text, and nested
// values are compacted JSON.
func decodeItem(elem json.RawMessage) (ListItem, error) {
	b := bytes.TrimSpace(elem)
	if len(b) == 0 {
		return ListItem{}, nil
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return ListItem{}, err
		}
		return ListItem{Text: s, Truthy: s != ""}, nil
	case 'n':
		return ListItem{}, nil
	case 't':
		return ListItem{Text: "true", Truthy: true}, nil
	case 'f':
		return ListItem{Text: "false"}, nil
	case '[', '{':
		var buf bytes.Buffer
		if err := json.Compact(&buf, b); err != nil {
			return ListItem{}, err
		}
		text := buf.String()
		return ListItem{Text: text, Truthy: text != "[]" && text != "{}"}, nil
	default:
		text := string(b)
		n, err := strconv.ParseFloat(text, 64)
		if errors.Is(err, strconv.ErrRange) {
			// Too large for float64 but still a non-zero JSON number.
			return ListItem{Text: text, Truthy: true}, nil
		}
		if err != nil {
			return ListItem{}, err
		}
		return ListItem{Text: text, Truthy: n != 0}, nil
	}
}
