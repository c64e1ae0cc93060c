package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocument(t *testing.T) {
	t.Run("from map", func(t *testing.T) {
		doc, err := NewDocumentFrom(map[string]any{"_id": "123", "name": "myname1"})
		assert.NoError(t, err)
		assert.Equal(t, "myname1", doc.GetString("name"))
		assert.True(t, doc.Exists("_id"))
	})
	t.Run("invalid json", func(t *testing.T) {
		_, err := NewDocumentFromBytes([]byte("{"))
		assert.NotNil(t, err)
	})
	t.Run("array is not a document", func(t *testing.T) {
		_, err := NewDocumentFromBytes([]byte("[1,2]"))
		assert.NotNil(t, err)
	})
	t.Run("set del roundtrip", func(t *testing.T) {
		doc, err := NewDocumentFrom(map[string]any{"_id": "123", "name": "myname1"})
		assert.NoError(t, err)
		assert.Nil(t, doc.Del("_id"))
		assert.Nil(t, doc.Set("id", "123"))
		assert.False(t, doc.Exists("_id"))
		assert.Equal(t, "123", doc.GetString("id"))
	})
	t.Run("set raw json", func(t *testing.T) {
		doc := NewDocument()
		assert.Nil(t, doc.SetRaw("notifConfigs", `[{"protocol":"webhook","targetUrl":"http://x"}]`))
		assert.Equal(t, "webhook", doc.GetString("notifConfigs.0.protocol"))
	})
	t.Run("unmarshal json", func(t *testing.T) {
		var doc Document
		assert.Nil(t, doc.UnmarshalJSON([]byte(`{"name":"myname1"}`)))
		assert.Equal(t, "myname1", doc.GetString("name"))
	})
}
