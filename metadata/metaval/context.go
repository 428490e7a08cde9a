// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metaval

import (
	"fmt"
	"reflect"
	"strconv"
)

// handle indexes a location in the context's arena. Locations form a tree
// through parent handles; the live traversal path is a stack of handles.
type handle int

const noHandle handle = -1

type location struct {
	parent handle
	name   string

	target    any
	prior     any
	hasTarget bool
	hasPrior  bool

	// done short-circuits every later primitive at this location and below.
	done   bool
	failed bool
}

// Context carries the state of one validation pass: the location arena, the
// traversal stack and the failures recorded so far.
type Context struct {
	kind Kind
	name string

	arena []location
	stack []handle

	failures []Failure
}

// ForMethod starts a pass over an inbound request for a named API method.
func ForMethod(method string, request any) *Context {
	return newContext(Static, method, request, nil, false)
}

// ForMessage starts a static pass over a single message.
func ForMessage(name string, target any) *Context {
	return newContext(Static, name, target, nil, false)
}

// ForVersion starts a version pass comparing a new object against its prior.
func ForVersion(name string, current, prior any) *Context {
	return newContext(Version, name, current, prior, true)
}

// ForConsistency starts a consistency pass over a message with pre-loaded
// reference state supplied to the validators.
func ForConsistency(name string, target any) *Context {
	return newContext(Consistency, name, target, nil, false)
}

func newContext(kind Kind, name string, target, prior any, hasPrior bool) *Context {
	v := &Context{kind: kind, name: name}
	root := v.alloc(location{
		parent:    noHandle,
		name:      "",
		target:    target,
		prior:     prior,
		hasTarget: !isNil(target),
		hasPrior:  hasPrior,
	})
	v.stack = append(v.stack, root)
	return v
}

func (v *Context) alloc(loc location) handle {
	v.arena = append(v.arena, loc)
	return handle(len(v.arena) - 1)
}

func (v *Context) current() *location {
	return &v.arena[v.stack[len(v.stack)-1]]
}

// Kind returns the kind of this pass.
func (v *Context) Kind() Kind { return v.kind }

// Name returns the method or message name at the root of this pass.
func (v *Context) Name() string { return v.name }

// push allocates a child of the current location and makes it current.
// Children of a done location are born done, so skipping a subtree skips all
// of its descendants.
func (v *Context) push(name string, target, prior any, hasTarget, hasPrior bool) {
	parent := v.stack[len(v.stack)-1]
	child := v.alloc(location{
		parent:    parent,
		name:      name,
		target:    target,
		prior:     prior,
		hasTarget: hasTarget,
		hasPrior:  hasPrior,
		done:      v.arena[parent].done,
	})
	v.stack = append(v.stack, child)
}

// Push descends into a field of the current target.
func (v *Context) Push(name string, target any) {
	v.push(name, target, nil, !isNil(target), false)
}

// PushOneOf descends into a oneof alternative; a nil target means the
// alternative is not set and the location carries no target. Validators run
// here only behind Required, Optional or IfAndOnlyIf.
func (v *Context) PushOneOf(name string, target any) {
	v.push(name, target, nil, !isNil(target), false)
}

// PushVersion descends into a field of both the current and prior targets.
func (v *Context) PushVersion(name string, target, prior any) {
	v.push(name, target, prior, !isNil(target), true)
}

// PushRepeated descends into a repeated field as a whole.
func (v *Context) PushRepeated(name string, target any) {
	v.push(name, target, nil, !isNil(target), false)
}

// PushRepeatedItem descends into one element of the current repeated field.
func (v *Context) PushRepeatedItem(index int, target any) {
	v.push("["+strconv.Itoa(index)+"]", target, nil, !isNil(target), false)
}

// PushMap descends into a map field as a whole.
func (v *Context) PushMap(name string, target any) {
	v.push(name, target, nil, !isNil(target), false)
}

// PushMapValue descends into one entry of the current map field.
func (v *Context) PushMapValue(key string, target any) {
	v.push("["+key+"]", target, nil, !isNil(target), false)
}

// Pop returns to the parent location.
func (v *Context) Pop() {
	if len(v.stack) <= 1 {
		panic("metaval: pop past the root location")
	}
	v.stack = v.stack[:len(v.stack)-1]
}

// Skip marks the current location done without failing it.
func (v *Context) Skip() {
	v.current().done = true
}

// Done reports whether the current location is finished, either skipped,
// failed or below a skipped parent.
func (v *Context) Done() bool {
	return v.current().done
}

// Fail records a failure against the current path and marks the location
// done, so later applications at or below it are no-ops.
func (v *Context) Fail(format string, args ...any) {
	loc := v.current()
	if loc.done {
		return
	}
	loc.done = true
	loc.failed = true
	v.failures = append(v.failures, Failure{
		Path:    v.path(),
		Message: fmt.Sprintf(format, args...),
	})
}

// path renders the dotted path of the current location from the root.
func (v *Context) path() string {
	var parts []string
	for h := v.stack[len(v.stack)-1]; h != noHandle; h = v.arena[h].parent {
		if name := v.arena[h].name; name != "" {
			parts = append(parts, name)
		}
	}

	var out string
	for i := len(parts) - 1; i >= 0; i-- {
		part := parts[i]
		if out == "" {
			out = part
			continue
		}
		if part[0] == '[' {
			out += part
		} else {
			out += "." + part
		}
	}
	return out
}

// Failed reports whether any failure has been recorded.
func (v *Context) Failed() bool { return len(v.failures) > 0 }

// Error returns the collected outcome: nil when the pass recorded nothing.
func (v *Context) Error() error {
	if len(v.failures) == 0 {
		return nil
	}
	return &ValidationError{Kind: v.kind, Name: v.name, Failures: v.failures}
}

// Required fails the current location unless it carries a target; required
// strings must also be non-empty. It reports whether traversal may continue.
func (v *Context) Required() bool {
	loc := v.current()
	if loc.done {
		return false
	}
	if !loc.hasTarget {
		v.Fail("a value is required")
		return false
	}
	if s, ok := loc.target.(string); ok && s == "" {
		v.Fail("a value is required")
		return false
	}
	return true
}

// Optional skips the current location when no target is present. It reports
// whether traversal may continue.
func (v *Context) Optional() bool {
	loc := v.current()
	if loc.done {
		return false
	}
	if !loc.hasTarget {
		loc.done = true
		return false
	}
	if s, ok := loc.target.(string); ok && s == "" {
		loc.done = true
		return false
	}
	return true
}

// Omitted fails the current location when a target is present.
func (v *Context) Omitted() bool {
	loc := v.current()
	if loc.done {
		return false
	}
	if loc.hasTarget {
		if s, ok := loc.target.(string); ok && s == "" {
			loc.done = true
			return false
		}
		v.Fail("a value must not be set here")
		return false
	}
	loc.done = true
	return false
}

// IfAndOnlyIf requires the target exactly when the condition holds: present
// without the condition or absent with it is a failure. It reports whether
// traversal may continue.
func (v *Context) IfAndOnlyIf(condition bool, qualifier string) bool {
	loc := v.current()
	if loc.done {
		return false
	}
	empty := !loc.hasTarget
	if s, ok := loc.target.(string); ok && s == "" {
		empty = true
	}
	switch {
	case condition && empty:
		v.Fail("a value is required when %s", qualifier)
		return false
	case !condition && !empty:
		v.Fail("a value must not be set unless %s", qualifier)
		return false
	case empty:
		loc.done = true
		return false
	}
	return true
}

// Apply dispatches a typed check on the current target. A declared type that
// does not match the dynamic target is a programmer error and panics; the
// service boundary maps the panic to an internal error.
func Apply[T any](v *Context, fn func(*Context, T)) *Context {
	loc := v.current()
	if loc.done {
		return v
	}
	target, ok := loc.target.(T)
	if !ok {
		panic(fmt.Sprintf("metaval: validator for %T applied to %T at [%s]",
			target, loc.target, v.path()))
	}
	fn(v, target)
	return v
}

// ApplyVersion dispatches a typed check on the current and prior targets.
func ApplyVersion[T any](v *Context, fn func(*Context, T, T)) *Context {
	loc := v.current()
	if loc.done {
		return v
	}
	if !loc.hasPrior {
		panic(fmt.Sprintf("metaval: version validator applied with no prior at [%s]", v.path()))
	}
	target, ok := loc.target.(T)
	if !ok {
		panic(fmt.Sprintf("metaval: validator for %T applied to %T at [%s]",
			target, loc.target, v.path()))
	}
	prior, ok := loc.prior.(T)
	if !ok {
		panic(fmt.Sprintf("metaval: validator for %T applied to prior %T at [%s]",
			prior, loc.prior, v.path()))
	}
	fn(v, target, prior)
	return v
}

// isNil reports whether target is nil, including typed nil pointers handed
// over as any.
func isNil(target any) bool {
	if target == nil {
		return true
	}
	rv := reflect.ValueOf(target)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
