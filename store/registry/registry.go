package registry

import (
	"github.com/autom8ter/notify/errors"
	"github.com/autom8ter/notify/store"
)

// Opener opens a pipeline store
type Opener func(params map[string]interface{}) (store.Store, error)

var registeredOpeners = map[string]Opener{}

// Register registers a store Opener by name
func Register(name string, opener Opener) {
	registeredOpeners[name] = opener
}

// Open opens a registered store
func Open(name string, params map[string]interface{}) (store.Store, error) {
	opener, ok := registeredOpeners[name]
	if !ok {
		return nil, errors.New(errors.NotFound, "%s is not registered", name)
	}
	return opener(params)
}
