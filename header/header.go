package header

import (
	"bufio"
	"strings"
)

// Header is an HTTP field multimap. Lookups are case-insensitive; insertion
// order and the original spelling of each name are preserved for emission.
type Header struct {
	fields []Field
}

// Field is one name/value pair as it arrived or was added.
type Field struct {
	Name  string
	Value string
}

// Add appends a field, keeping the caller's spelling of name.
func (h *Header) Add(name, value string) {
	h.fields = append(h.fields, Field{Name: name, Value: value})
}

// Set replaces every field named name with a single field. The replacement
// keeps the position of the first occurrence, or appends when absent.
func (h *Header) Set(name, value string) {
	found := false
	out := h.fields[:0]
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			if found {
				continue
			}
			found = true
			f.Value = value
		}
		out = append(out, f)
	}
	h.fields = out
	if !found {
		h.Add(name, value)
	}
}

// Get returns the first value for name, or "".
func (h *Header) Get(name string) string {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Has reports whether at least one field named name is present.
func (h *Header) Has(name string) bool {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

// Values returns every value for name in arrival order.
func (h *Header) Values(name string) []string {
	var vals []string
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			vals = append(vals, f.Value)
		}
	}
	return vals
}

// Del removes every field named name.
func (h *Header) Del(name string) {
	out := h.fields[:0]
	for _, f := range h.fields {
		if !strings.EqualFold(f.Name, name) {
			out = append(out, f)
		}
	}
	h.fields = out
}

// Len returns the number of fields.
func (h *Header) Len() int { return len(h.fields) }

// Fields exposes the underlying ordered list. Callers must not mutate it.
func (h *Header) Fields() []Field { return h.fields }

// Each calls f for every field in order.
func (h *Header) Each(f func(name, value string)) {
	for _, fld := range h.fields {
		f(fld.Name, fld.Value)
	}
}

// Clone returns an independent copy.
func (h *Header) Clone() *Header {
	h2 := &Header{fields: make([]Field, len(h.fields))}
	copy(h2.fields, h.fields)
	return h2
}

// Write emits the fields in wire format, without the terminating blank line.
func (h *Header) Write(w *bufio.Writer) error {
	for _, f := range h.fields {
		if _, err := w.WriteString(f.Name); err != nil {
			return err
		}
		if _, err := w.WriteString(": "); err != nil {
			return err
		}
		if _, err := w.WriteString(f.Value); err != nil {
			return err
		}
		if _, err := w.WriteString("\r\n"); err != nil {
			return err
		}
	}
	return nil
}

// HasToken reports whether token is present in the comma-separated field
// value v, compared case-insensitively per RFC 7230 list syntax.
func HasToken(v, token string) bool {
	if len(token) > len(v) || token == "" {
		return false
	}
	for _, part := range strings.Split(v, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}

// ForeachToken calls f for each non-empty comma-separated token in v.
func ForeachToken(v string, f func(token string)) {
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			f(part)
		}
	}
}
