package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger(t *testing.T) {
	lgger, err := NewLogger("debug", map[string]any{"service": "notify"})
	assert.NoError(t, err)
	ctx := context.Background()
	lgger.Debug(ctx, "debug", map[string]any{"queue": "changes"})
	lgger.Info(ctx, "info", nil)
	lgger.Warn(ctx, "warn", nil)
	lgger.Error(ctx, "error", assert.AnError, nil)
	assert.NotNil(t, NoOpLogger())
}
