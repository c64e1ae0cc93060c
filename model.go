package notify

import (
	"encoding/json"
	"time"

	"github.com/autom8ter/notify/errors"
)

// ChangeType is the kind of mutation a change record captures
type ChangeType string

const (
	// ChangeTypeInsert indicates a new document was inserted
	ChangeTypeInsert ChangeType = "insert"
	// ChangeTypeUpdate indicates individual fields were updated/removed
	ChangeTypeUpdate ChangeType = "update"
	// ChangeTypeReplace indicates a full document replacement
	ChangeTypeReplace ChangeType = "replace"
	// ChangeTypeDelete indicates the document was deleted
	ChangeTypeDelete ChangeType = "delete"
)

// ChangeRecord is the normalized, immutable representation of one raw change feed
// event. For inserts/replaces InsertedOrEdited holds every field of the document
// snapshot; for updates it holds only the changed fields and Removed holds the removed
// field names; for deletes both are absent. Field values are individually re-encoded
// to their json string form.
type ChangeRecord struct {
	Id               string            `json:"Id" validate:"required"`
	ChangeType       ChangeType        `json:"ChangeType" validate:"required,oneof='insert' 'update' 'replace' 'delete'"`
	InsertedOrEdited map[string]string `json:"InsertedOrEdited,omitempty"`
	Removed          []string          `json:"Removed,omitempty"`
}

// Empty returns true when the record carries no change. The builder never produces an
// empty record for the four tracked operations; unrecognized feed operations yield one
// so the watcher can advance its checkpoint past them without enqueueing.
func (c ChangeRecord) Empty() bool {
	return c.Id == ""
}

// Document materializes the record's field map as a json document. Values were
// individually json-encoded when the record was built, so they are spliced back in as
// raw json.
func (c ChangeRecord) Document() (*Document, error) {
	doc := NewDocument()
	for field, raw := range c.InsertedOrEdited {
		if err := doc.SetRaw(field, raw); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// ChangeSource identifies the logical collection that emitted a change. CollName
// doubles as the entity name used for notification-config lookup.
type ChangeSource struct {
	DbName   string `json:"DbName" validate:"required"`
	CollName string `json:"CollName" validate:"required"`
}

// ChangeQueueItem is the queue payload envelope. NotifConfigs is populated only when
// an item is re-enqueued onto the retry queue, pinning the single destination that
// failed.
type ChangeQueueItem struct {
	ChangeTime   time.Time     `json:"ChangeTime"`
	ChangeRecord string        `json:"ChangeRecord"`
	Source       string        `json:"Source"`
	NotifConfigs []NotifConfig `json:"NotifConfigs,omitempty"`
}

// NewChangeQueueItem envelopes a change record + source at the given wall-clock time
func NewChangeQueueItem(changeTime time.Time, record ChangeRecord, source ChangeSource) (ChangeQueueItem, error) {
	recordBits, err := json.Marshal(record)
	if err != nil {
		return ChangeQueueItem{}, errors.Wrap(err, errors.Internal, "failed to encode change record")
	}
	sourceBits, err := json.Marshal(source)
	if err != nil {
		return ChangeQueueItem{}, errors.Wrap(err, errors.Internal, "failed to encode change source")
	}
	return ChangeQueueItem{
		ChangeTime:   changeTime,
		ChangeRecord: string(recordBits),
		Source:       string(sourceBits),
	}, nil
}

// Encode returns the item in its queue wire form
func (i ChangeQueueItem) Encode() (string, error) {
	bits, err := json.Marshal(i)
	if err != nil {
		return "", errors.Wrap(err, errors.Internal, "failed to encode queue item")
	}
	return string(bits), nil
}

// DecodeChangeQueueItem decodes an item from its queue wire form
func DecodeChangeQueueItem(raw string) (ChangeQueueItem, error) {
	var item ChangeQueueItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return ChangeQueueItem{}, errors.Wrap(err, errors.Validation, "malformed queue item")
	}
	return item, nil
}

// Record decodes the embedded change record
func (i ChangeQueueItem) Record() (ChangeRecord, error) {
	var record ChangeRecord
	if err := json.Unmarshal([]byte(i.ChangeRecord), &record); err != nil {
		return ChangeRecord{}, errors.Wrap(err, errors.Validation, "malformed change record")
	}
	return record, nil
}

// ChangeSource decodes the embedded change source
func (i ChangeQueueItem) ChangeSource() (ChangeSource, error) {
	var source ChangeSource
	if err := json.Unmarshal([]byte(i.Source), &source); err != nil {
		return ChangeSource{}, errors.Wrap(err, errors.Validation, "malformed change source")
	}
	return source, nil
}

// NotifConfig is one delivery destination owned by an entity's metadata record
type NotifConfig struct {
	Protocol  string `json:"protocol" validate:"required"`
	TargetURL string `json:"targetUrl" validate:"required,url"`
}

// EncodeNotifConfigs returns the cache wire form of the given configs. An empty/nil
// slice encodes to the empty string, the cache's "no configs" sentinel.
func EncodeNotifConfigs(configs []NotifConfig) string {
	if len(configs) == 0 {
		return ""
	}
	bits, _ := json.Marshal(configs)
	return string(bits)
}

// DecodeNotifConfigs decodes configs from their cache wire form
func DecodeNotifConfigs(raw string) ([]NotifConfig, error) {
	if raw == "" {
		return nil, nil
	}
	var configs []NotifConfig
	if err := json.Unmarshal([]byte(raw), &configs); err != nil {
		return nil, errors.Wrap(err, errors.Validation, "malformed notification configs")
	}
	return configs, nil
}

// NotifData is the outbound notification payload
type NotifData struct {
	EventTime  time.Time      `json:"eventTime"`
	ChangeTime time.Time      `json:"changeTime"`
	Id         string         `json:"id"`
	ChangeType string         `json:"changeType"`
	Entity     string         `json:"entity"`
	Document   map[string]any `json:"document,omitempty"`
}
