package notify

import (
	"github.com/autom8ter/notify/errors"
	"github.com/autom8ter/notify/feed"
	"github.com/autom8ter/notify/util"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BuildChangeRecord maps a raw change feed event to its normalized record. It is a
// pure transform: no I/O, no clock. Operations outside the tracked four yield an
// empty record so the caller can advance its checkpoint past them.
func BuildChangeRecord(event *feed.RawEvent) (ChangeRecord, error) {
	changeType := ChangeType(event.OperationType)
	switch changeType {
	case ChangeTypeInsert, ChangeTypeUpdate, ChangeTypeReplace, ChangeTypeDelete:
	default:
		return ChangeRecord{}, nil
	}
	id := documentID(event.DocumentKey["_id"])
	if id == "" {
		// a change event without a document key violates the store/driver contract;
		// replaying it would fail identically, so the caller logs and drops it
		return ChangeRecord{}, errors.New(errors.Validation, "change event %s is missing a document key", event.ID.Data)
	}
	record := ChangeRecord{
		Id:         id,
		ChangeType: changeType,
	}
	switch changeType {
	case ChangeTypeInsert, ChangeTypeReplace:
		record.InsertedOrEdited = encodeFields(event.FullDocument)
	case ChangeTypeUpdate:
		record.InsertedOrEdited = encodeFields(event.UpdateDescription.UpdatedFields)
		record.Removed = event.UpdateDescription.RemovedFields
	}
	return record, nil
}

// encodeFields re-encodes each field value to its json string form
func encodeFields(fields map[string]any) map[string]string {
	if fields == nil {
		return nil
	}
	encoded := make(map[string]string, len(fields))
	for field, value := range fields {
		encoded[field] = util.JSONString(value)
	}
	return encoded
}

func documentID(value any) string {
	switch value := value.(type) {
	case nil:
		return ""
	case primitive.ObjectID:
		return value.Hex()
	default:
		return cast.ToString(value)
	}
}
