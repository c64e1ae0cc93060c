package errors_test

import (
	"fmt"
	"testing"

	"github.com/autom8ter/notify/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrors(t *testing.T) {
	t.Run("wrap nil error", func(t *testing.T) {
		var err error
		err = errors.Wrap(err, errors.NotFound, "")
		assert.Nil(t, err)
	})
	t.Run("wrap error", func(t *testing.T) {
		var err = fmt.Errorf("no dispatcher")
		err = errors.Wrap(err, errors.NotFound, "")
		assert.Equal(t, errors.NotFound, errors.Extract(err).Code)
	})
	t.Run("new error", func(t *testing.T) {
		err := errors.New(errors.Validation, "missing document key")
		assert.Equal(t, errors.Validation, errors.Extract(err).Code)
	})
	t.Run("new error then wrap", func(t *testing.T) {
		err := errors.New(0, "missing document key")
		err = errors.Wrap(err, errors.Validation, "")
		assert.Equal(t, errors.Validation, errors.Extract(err).Code)
	})
	t.Run("extract foreign error", func(t *testing.T) {
		e := errors.Extract(fmt.Errorf("dial tcp: connection refused"))
		assert.Equal(t, errors.Internal, e.Code)
		assert.NotNil(t, e.Err)
	})
}
