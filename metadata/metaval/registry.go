// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metaval

import (
	"fmt"
	"sync"
)

// ValidationKey identifies one registered validator: the kind of pass, the
// target type or object kind, and optionally the API method it applies to.
// Method-specific registrations take precedence; lookups fall back to the
// method-less key.
type ValidationKey struct {
	Kind   Kind
	Target string
	Method string
}

// Validator is a registered check run against the current location.
type Validator func(*Context)

var (
	registryMu sync.RWMutex
	registry   = map[ValidationKey]Validator{}
)

// Register adds a validator to the registry. Registration happens during
// startup; a duplicate key is a programmer error.
func Register(key ValidationKey, fn Validator) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[key]; ok {
		panic(fmt.Sprintf("metaval: duplicate validator registration for %+v", key))
	}
	registry[key] = fn
}

// Lookup resolves a validator, trying the method-specific key first.
func Lookup(key ValidationKey) (Validator, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if fn, ok := registry[key]; ok {
		return fn, true
	}
	if key.Method != "" {
		key.Method = ""
		if fn, ok := registry[key]; ok {
			return fn, true
		}
	}
	return nil, false
}

// ApplyRegistered dispatches the registered validator for the key on the
// current location. A missing registration is a programmer error.
func ApplyRegistered(v *Context, key ValidationKey) {
	if v.current().done {
		return
	}
	fn, ok := Lookup(key)
	if !ok {
		panic(fmt.Sprintf("metaval: no validator registered for %+v", key))
	}
	fn(v)
}
