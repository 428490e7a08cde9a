// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metaservice

import (
	"context"

	"go.uber.org/zap"

	"tracdap.io/tracmeta/metadata"
	"tracdap.io/tracmeta/metadata/metaval"
)

// validateFunc checks the first request message of a call. A nil validateFunc
// means the method takes no validated message.
type validateFunc func(method string, caller Caller, request any) error

// methodInfo is the dispatch descriptor for one API method.
type methodInfo struct {
	trusted  bool
	validate validateFunc
}

var methodTable = map[string]methodInfo{
	MethodCreateObject: {validate: writeValidator(slotCreate)},
	MethodUpdateObject: {validate: writeValidator(slotUpdateObject)},
	MethodUpdateTag:    {validate: writeValidator(slotUpdateTag)},
	MethodWriteBatch:   {validate: writeBatchValidator},

	MethodReadObject:    {validate: typedValidator[ReadRequest](TargetReadRequest)},
	MethodReadBatch:     {validate: typedValidator[BatchReadRequest](TargetBatchReadRequest)},
	MethodSearch:        {validate: typedValidator[SearchRequest](TargetSearchRequest)},
	MethodPlatformInfo:  {},
	MethodListTenants:   {},
	MethodListResources: {},
	MethodResourceInfo:  {},

	MethodTrustedCreateObject:       {trusted: true, validate: writeValidator(slotCreate)},
	MethodTrustedUpdateObject:       {trusted: true, validate: writeValidator(slotUpdateObject)},
	MethodTrustedUpdateTag:          {trusted: true, validate: writeValidator(slotUpdateTag)},
	MethodTrustedWriteBatch:         {trusted: true, validate: writeBatchValidator},
	MethodTrustedPreallocateID:      {trusted: true, validate: typedValidator[PreallocateRequest](TargetPreallocateRequest)},
	MethodTrustedCreatePreallocated: {trusted: true, validate: writeValidator(slotCreatePreallocated)},
}

// Interceptor guards the service layer. It resolves each call's method
// descriptor from its fully-qualified name, enforces trusted access and
// validates the first request message before anything is dispatched
// downstream. A failed call never reaches the service.
type Interceptor struct {
	log *zap.Logger
}

// NewInterceptor constructs the request interceptor.
func NewInterceptor(log *zap.Logger) *Interceptor {
	return &Interceptor{log: log}
}

// Intercept checks one inbound call. A nil return means the request may be
// dispatched to the service; any error must be mapped and returned to the
// caller without dispatch.
func (i *Interceptor) Intercept(ctx context.Context, method string, request any) (err error) {
	defer mon.Task()(&ctx)(&err)

	info, ok := methodTable[method]
	if !ok {
		return ErrBadRequest.New("unrecognized method %s", method)
	}

	caller, ok := CallerFromContext(ctx)
	if !ok {
		return ErrNotAuthorized.New("caller identity is required")
	}
	if info.trusted && !caller.Trusted {
		return ErrNotAuthorized.New("method %s requires a trusted caller", method)
	}

	if info.validate == nil {
		return nil
	}
	return i.runValidator(method, caller, request, info.validate)
}

// runValidator confines validator panics to the failed call. A panic here is
// a programming error in a validator, reported to the caller as internal.
func (i *Interceptor) runValidator(method string, caller Caller, request any, fn validateFunc) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			i.log.Error("panic during request validation",
				zap.String("method", method), zap.Any("panic", rec))
			err = Error.New("internal error")
		}
	}()
	return fn(method, caller, request)
}

func writeValidator(slot slotKind) validateFunc {
	return func(method string, caller Caller, request any) error {
		req, ok := request.(WriteRequest)
		if !ok {
			return ErrBadRequest.New("method %s: unexpected request message type", method)
		}
		return validateWriteRequest(method, caller, slot, req)
	}
}

func writeBatchValidator(method string, caller Caller, request any) error {
	req, ok := request.(WriteBatchRequest)
	if !ok {
		return ErrBadRequest.New("method %s: unexpected request message type", method)
	}
	return validateWriteBatchRequest(method, caller, req)
}

func typedValidator[T any](target string) validateFunc {
	return func(method string, caller Caller, request any) error {
		req, ok := request.(T)
		if !ok {
			return ErrBadRequest.New("method %s: unexpected request message type", method)
		}
		return staticValidate(method, target, req)
	}
}

// validateWriteBatchRequest checks the envelope, then every entry under its
// slot's rules. A create entry carrying a prior version is a promotion of a
// preallocated id and follows the preallocated-create rules.
func validateWriteBatchRequest(method string, caller Caller, req WriteBatchRequest) error {
	v := metaval.ForMethod(method, req)

	v.Push("tenant", req.Tenant)
	v.Required()
	v.Pop()

	for i, objectType := range req.Preallocate {
		v.PushRepeated("preallocate", req.Preallocate)
		v.PushRepeatedItem(i, objectType)
		metaval.Apply(v, metaval.NonZeroEnum[metadata.ObjectType])
		metaval.Apply(v, metaval.RecognizedEnum[metadata.ObjectType])
		v.Pop()
		v.Pop()
	}

	if err := v.Error(); err != nil {
		return err
	}

	for _, entry := range req.CreateObjects {
		slot := slotCreate
		if entry.PriorVersion != nil {
			slot = slotCreatePreallocated
		}
		entry.Tenant = req.Tenant
		if err := validateWriteRequest(method, caller, slot, entry); err != nil {
			return err
		}
	}
	for _, entry := range req.UpdateObjects {
		entry.Tenant = req.Tenant
		if err := validateWriteRequest(method, caller, slotUpdateObject, entry); err != nil {
			return err
		}
	}
	for _, entry := range req.UpdateTags {
		entry.Tenant = req.Tenant
		if err := validateWriteRequest(method, caller, slotUpdateTag, entry); err != nil {
			return err
		}
	}
	return nil
}
