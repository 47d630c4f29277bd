package feed

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nickromney-org/release-notifier/pkg/types"
)

// Fields read from each feed entry
const (
	FieldID          = "id"
	FieldName        = "name"
	FieldTagName     = "tag_name"
	FieldPublishedAt = "published_at"
	FieldBodyHTML    = "body_html"
)

// ReleaseRecord is one undecoded entry of the release feed. Only a handful of
// fields are ever read; the rest are carried along untouched.
type ReleaseRecord map[string]json.RawMessage

// Has reports whether the field is present
func (r ReleaseRecord) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// Int returns an integral numeric field
func (r ReleaseRecord) Int(field string) (int64, error) {
	raw, ok := r[field]
	if !ok {
		return 0, &types.DecodeError{Field: field, Err: fmt.Errorf("field is missing")}
	}

	// decoding into any keeps quoted numbers as strings
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return 0, &types.DecodeError{Field: field, Err: err}
	}

	n, ok := v.(json.Number)
	if !ok {
		return 0, &types.DecodeError{Field: field, Err: fmt.Errorf("expected a number, got %s", raw)}
	}

	id, err := n.Int64()
	if err != nil {
		return 0, &types.DecodeError{Field: field, Err: err}
	}
	return id, nil
}

// String returns a string field. JSON null reads as the empty string.
func (r ReleaseRecord) String(field string) (string, error) {
	raw, ok := r[field]
	if !ok {
		return "", &types.DecodeError{Field: field, Err: fmt.Errorf("field is missing")}
	}

	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &types.DecodeError{Field: field, Err: err}
	}
	if s == nil {
		return "", nil
	}
	return *s, nil
}

// TagName returns the release tag, or "" when it is absent or not a string
func (r ReleaseRecord) TagName() string {
	tag, err := r.String(FieldTagName)
	if err != nil {
		return ""
	}
	return tag
}
