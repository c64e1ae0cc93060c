package notify

import (
	"encoding/json"

	"github.com/autom8ter/notify/errors"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Document is an immutable-by-copy JSON document. Payload documents are opaque to the
// pipeline: an ordered string-keyed map whose values are never interpreted beyond the
// handful of well-known fields this package reads.
type Document struct {
	result gjson.Result
}

// NewDocument creates an empty json document
func NewDocument() *Document {
	return &Document{result: gjson.Parse("{}")}
}

// NewDocumentFromBytes creates a document from the given json bytes
func NewDocumentFromBytes(bits []byte) (*Document, error) {
	if !gjson.ValidBytes(bits) {
		return nil, errors.New(errors.Validation, "invalid json: %s", string(bits))
	}
	d := &Document{result: gjson.ParseBytes(bits)}
	if d.result.IsArray() {
		return nil, errors.New(errors.Validation, "invalid document")
	}
	return d, nil
}

// NewDocumentFrom creates a document from the given value - the value must be json compatible
func NewDocumentFrom(value any) (*Document, error) {
	bits, err := json.Marshal(value)
	if err != nil {
		return nil, errors.New(errors.Validation, "failed to json encode value: %#v", value)
	}
	return NewDocumentFromBytes(bits)
}

// UnmarshalJSON satisfies the json Unmarshaler interface
func (d *Document) UnmarshalJSON(bits []byte) error {
	doc, err := NewDocumentFromBytes(bits)
	if err != nil {
		return err
	}
	*d = *doc
	return nil
}

// MarshalJSON satisfies the json Marshaler interface
func (d *Document) MarshalJSON() ([]byte, error) {
	return d.Bytes(), nil
}

// String returns the document as a json string
func (d *Document) String() string {
	return d.result.Raw
}

// Bytes returns the document as json bytes
func (d *Document) Bytes() []byte {
	return []byte(d.result.Raw)
}

// Value returns the document as a map
func (d *Document) Value() map[string]any {
	return cast.ToStringMap(d.result.Value())
}

// Get gets a field on the document. Get has GJSON syntax support and supports dot notation
func (d *Document) Get(field string) any {
	return d.result.Get(field).Value()
}

// GetString gets a string field value on the document
func (d *Document) GetString(field string) string {
	return d.result.Get(field).String()
}

// Raw returns the raw json of a field, or the empty string when the field is absent
func (d *Document) Raw(field string) string {
	return d.result.Get(field).Raw
}

// Exists returns true if the field exists on the document
func (d *Document) Exists(field string) bool {
	return d.result.Get(field).Exists()
}

// Set sets a field on the document. Dot notation is supported.
func (d *Document) Set(field string, value any) error {
	result, err := sjson.Set(d.result.Raw, field, value)
	if err != nil {
		return errors.Wrap(err, errors.Validation, "failed to set %s", field)
	}
	d.result = gjson.Parse(result)
	return nil
}

// SetRaw sets a field on the document to raw json
func (d *Document) SetRaw(field string, raw string) error {
	result, err := sjson.SetRaw(d.result.Raw, field, raw)
	if err != nil {
		return errors.Wrap(err, errors.Validation, "failed to set %s", field)
	}
	d.result = gjson.Parse(result)
	return nil
}

// Del deletes fields from the document
func (d *Document) Del(fields ...string) error {
	for _, field := range fields {
		result, err := sjson.Delete(d.result.Raw, field)
		if err != nil {
			return errors.Wrap(err, errors.Validation, "failed to delete %s", field)
		}
		d.result = gjson.Parse(result)
	}
	return nil
}
