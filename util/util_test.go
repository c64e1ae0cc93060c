package util_test

import (
	"testing"

	"github.com/autom8ter/notify/util"
	"github.com/stretchr/testify/assert"
)

func TestJSONString(t *testing.T) {
	assert.Equal(t, `"new name"`, util.JSONString("new name"))
	assert.Equal(t, `1`, util.JSONString(float64(1)))
	assert.Equal(t, `null`, util.JSONString(nil))
}

func TestDecode(t *testing.T) {
	type target struct {
		Name string `json:"name"`
		Port int    `json:"port"`
	}
	var out target
	assert.Nil(t, util.Decode(map[string]any{"name": "primary", "port": "8080"}, &out))
	assert.Equal(t, "primary", out.Name)
	assert.Equal(t, 8080, out.Port)
}

func TestValidateStruct(t *testing.T) {
	type cfg struct {
		Queue string `validate:"required"`
	}
	assert.NotNil(t, util.ValidateStruct(cfg{}))
	assert.Nil(t, util.ValidateStruct(cfg{Queue: "changes"}))
}
