package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestChangeQueueItem(t *testing.T) {
	record := ChangeRecord{
		Id:               "63bd90aa1b72b54f7a6cc9a1",
		ChangeType:       ChangeTypeInsert,
		InsertedOrEdited: map[string]string{"name": `"myname1"`},
	}
	source := ChangeSource{DbName: "mydb", CollName: "myname1"}
	changeTime := time.Date(2023, 1, 10, 12, 0, 0, 0, time.UTC)

	item, err := NewChangeQueueItem(changeTime, record, source)
	assert.NoError(t, err)
	raw, err := item.Encode()
	assert.NoError(t, err)

	t.Run("wire format is pascal-cased", func(t *testing.T) {
		for _, field := range []string{"ChangeTime", "ChangeRecord", "Source"} {
			assert.True(t, gjson.Get(raw, field).Exists(), field)
		}
		assert.False(t, gjson.Get(raw, "NotifConfigs").Exists())
	})
	t.Run("round trip", func(t *testing.T) {
		decoded, err := DecodeChangeQueueItem(raw)
		assert.NoError(t, err)
		gotRecord, err := decoded.Record()
		assert.NoError(t, err)
		assert.Equal(t, record, gotRecord)
		gotSource, err := decoded.ChangeSource()
		assert.NoError(t, err)
		assert.Equal(t, source, gotSource)
		assert.True(t, decoded.ChangeTime.Equal(changeTime))
	})
	t.Run("malformed item", func(t *testing.T) {
		_, err := DecodeChangeQueueItem("not json")
		assert.NotNil(t, err)
	})
}

func TestNotifConfigsWireForm(t *testing.T) {
	t.Run("empty encodes to the no-configs sentinel", func(t *testing.T) {
		assert.Equal(t, "", EncodeNotifConfigs(nil))
		configs, err := DecodeNotifConfigs("")
		assert.NoError(t, err)
		assert.Empty(t, configs)
	})
	t.Run("camel cased round trip", func(t *testing.T) {
		configs := []NotifConfig{{Protocol: "webhook", TargetURL: "http://x"}}
		raw := EncodeNotifConfigs(configs)
		assert.Equal(t, `[{"protocol":"webhook","targetUrl":"http://x"}]`, raw)
		decoded, err := DecodeNotifConfigs(raw)
		assert.NoError(t, err)
		assert.Equal(t, configs, decoded)
	})
	t.Run("malformed configs", func(t *testing.T) {
		_, err := DecodeNotifConfigs("{")
		assert.NotNil(t, err)
	})
}
