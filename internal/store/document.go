package store

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Document is a single record: field name to JSON encoded value.
type Document map[string]json.RawMessage

// Encode turns a struct into a Document using its json tags.
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("value is not an object: %w", err)
	}
	return doc, nil
}

func (d Document) Decode(dst any) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

// String returns the field value when it is a JSON string, empty otherwise.
func (d Document) String(field string) string {
	raw, ok := d[field]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Clone returns a deep copy; cloning nil yields an empty document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Patch is a partial update of the document at Path. A nil value in Set removes
// the field. Union appends members to a string list field, skipping ones already present.
type Patch struct {
	Path  string
	Set   map[string]any
	Union map[string][]string
}

// Apply returns doc with the patch applied. doc may be nil.
func (p Patch) Apply(doc Document) (Document, error) {
	out := doc.Clone()

	for field, value := range p.Set {
		if value == nil {
			delete(out, field)
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode field %s: %w", field, err)
		}
		out[field] = raw
	}

	for field, members := range p.Union {
		var current []string
		if raw, ok := out[field]; ok && string(raw) != "null" {
			if err := json.Unmarshal(raw, &current); err != nil {
				return nil, fmt.Errorf("field %s is not a string list: %w", field, err)
			}
		}

		seen := make(map[string]bool, len(current))
		for _, m := range current {
			seen[m] = true
		}
		for _, m := range members {
			if !seen[m] {
				current = append(current, m)
				seen[m] = true
			}
		}

		raw, err := json.Marshal(current)
		if err != nil {
			return nil, fmt.Errorf("failed to encode field %s: %w", field, err)
		}
		out[field] = raw
	}

	return out, nil
}

// Join builds a store path from its segments.
func Join(parts ...string) string {
	return strings.Join(parts, "/")
}

// Split returns the parent collection path and the id of a document path.
func Split(path string) (parent, id string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

// ValidatePath rejects empty segments and leading or trailing slashes.
func ValidatePath(path string) error {
	if path == "" || strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") || strings.Contains(path, "//") {
		return fmt.Errorf("invalid store path %q", path)
	}
	return nil
}

var fieldName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidateField accepts plain identifiers only. SQL backends inline the field
// into the query so postgres can match it against the expression indexes.
func ValidateField(field string) error {
	if !fieldName.MatchString(field) {
		return fmt.Errorf("invalid document field %q", field)
	}
	return nil
}
