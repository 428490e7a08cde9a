// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metaservice

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tracdap.io/tracmeta/metadata"
	"tracdap.io/tracmeta/metadata/metastore"
	"tracdap.io/tracmeta/metadata/metaval"
)

// WriteService orchestrates catalog mutations. Every operation runs through
// WriteBatch: validation first, reference resolution against a prospective
// bundle, then a single transaction committing all four slots.
type WriteService struct {
	log *zap.Logger
	db  *metastore.DB
}

// NewWriteService constructs the write service.
func NewWriteService(log *zap.Logger, db *metastore.DB) *WriteService {
	return &WriteService{log: log, db: db}
}

// slotKind distinguishes the four mutation slots of a batch.
type slotKind int

const (
	slotCreate slotKind = iota
	slotCreatePreallocated
	slotUpdateObject
	slotUpdateTag
)

// pendingWrite carries one mutation through the batch pipeline: the request,
// the loaded prior (updates only), the prospective header and the assembled
// row.
type pendingWrite struct {
	slot  slotKind
	req   WriteRequest
	prior *metadata.Tag
	tag   metadata.Tag
}

// CreateObject creates the first version of a new object.
func (s *WriteService) CreateObject(ctx context.Context, req WriteRequest) (_ metadata.TagHeader, err error) {
	defer mon.Task()(&ctx)(&err)

	resp, err := s.WriteBatch(ctx, WriteBatchRequest{
		Tenant:        req.Tenant,
		CreateObjects: []WriteRequest{req},
	})
	if err != nil {
		return metadata.TagHeader{}, err
	}
	return resp.CreatedObjects[0], nil
}

// CreatePreallocatedObject promotes a reserved id to a real first version.
// Trusted callers only.
func (s *WriteService) CreatePreallocatedObject(ctx context.Context, req WriteRequest) (_ metadata.TagHeader, err error) {
	defer mon.Task()(&ctx)(&err)

	if req.PriorVersion == nil {
		return metadata.TagHeader{}, ErrBadRequest.New("priorVersion must name the preallocated id")
	}
	resp, err := s.WriteBatch(ctx, WriteBatchRequest{
		Tenant:        req.Tenant,
		CreateObjects: []WriteRequest{req},
	})
	if err != nil {
		return metadata.TagHeader{}, err
	}
	return resp.CreatedObjects[0], nil
}

// UpdateObject appends a new object version superseding PriorVersion.
func (s *WriteService) UpdateObject(ctx context.Context, req WriteRequest) (_ metadata.TagHeader, err error) {
	defer mon.Task()(&ctx)(&err)

	resp, err := s.WriteBatch(ctx, WriteBatchRequest{
		Tenant:        req.Tenant,
		UpdateObjects: []WriteRequest{req},
	})
	if err != nil {
		return metadata.TagHeader{}, err
	}
	return resp.UpdatedObjects[0], nil
}

// UpdateTag appends a new tag version to the object version PriorVersion
// names. The definition is untouched.
func (s *WriteService) UpdateTag(ctx context.Context, req WriteRequest) (_ metadata.TagHeader, err error) {
	defer mon.Task()(&ctx)(&err)

	resp, err := s.WriteBatch(ctx, WriteBatchRequest{
		Tenant:     req.Tenant,
		UpdateTags: []WriteRequest{req},
	})
	if err != nil {
		return metadata.TagHeader{}, err
	}
	return resp.UpdatedTags[0], nil
}

// PreallocateIDs reserves object ids ahead of their content. Trusted callers
// only.
func (s *WriteService) PreallocateIDs(ctx context.Context, req PreallocateRequest) (_ []metadata.TagHeader, err error) {
	defer mon.Task()(&ctx)(&err)

	resp, err := s.WriteBatch(ctx, WriteBatchRequest{
		Tenant:      req.Tenant,
		Preallocate: req.ObjectTypes,
	})
	if err != nil {
		return nil, err
	}
	return resp.PreallocatedIDs, nil
}

// WriteBatch executes the four mutation slots in order (preallocate, create,
// update-object, update-tag) inside one transaction. Any failure aborts the
// whole batch; headers are returned positionally per slot.
func (s *WriteService) WriteBatch(ctx context.Context, req WriteBatchRequest) (_ *WriteBatchResponse, err error) {
	defer mon.Task()(&ctx)(&err)

	caller, ok := CallerFromContext(ctx)
	if !ok {
		return nil, ErrNotAuthorized.New("caller identity is required")
	}
	if req.Tenant == "" {
		return nil, ErrBadRequest.New("tenant is required")
	}

	batchAt := time.Now().UTC().Truncate(time.Microsecond)

	pending, err := s.preparePending(caller, req)
	if err != nil {
		return nil, err
	}
	if len(req.Preallocate) == 0 && len(pending) == 0 {
		return nil, ErrBadRequest.New("an empty batch is not allowed")
	}
	if (len(req.Preallocate) > 0 || hasSlot(pending, slotCreatePreallocated)) && !caller.Trusted {
		return nil, ErrNotAuthorized.New("preallocation requires a trusted caller")
	}

	if err := s.loadPriors(ctx, req.Tenant, batchAt, pending); err != nil {
		return nil, err
	}
	if err := s.resolveReferences(ctx, req.Tenant, pending); err != nil {
		return nil, err
	}
	if err := validateVersions(pending); err != nil {
		return nil, err
	}
	if err := assembleTags(caller, batchAt, pending); err != nil {
		return nil, err
	}

	resp := &WriteBatchResponse{}
	err = s.db.WithTx(ctx, func(ctx context.Context, tx metastore.TransactionAdapter) error {
		if len(req.Preallocate) > 0 {
			headers, err := metastore.PreallocateObjectIDsTx(ctx, tx, req.Tenant, req.Preallocate)
			if err != nil {
				return err
			}
			resp.PreallocatedIDs = headers
		}

		if rows := tagsForSlot(pending, slotCreate); len(rows) > 0 {
			if err := metastore.SaveNewObjectsTx(ctx, tx, req.Tenant, rows); err != nil {
				return err
			}
		}
		if rows := tagsForSlot(pending, slotCreatePreallocated); len(rows) > 0 {
			if err := metastore.SavePreallocatedObjectsTx(ctx, tx, req.Tenant, rows); err != nil {
				return err
			}
		}
		if rows := tagsForSlot(pending, slotUpdateObject); len(rows) > 0 {
			if err := metastore.SaveNewVersionsTx(ctx, tx, req.Tenant, rows); err != nil {
				return supersededOnConflict(err)
			}
		}
		if rows := tagsForSlot(pending, slotUpdateTag); len(rows) > 0 {
			if err := metastore.SaveNewTagsTx(ctx, tx, req.Tenant, rows); err != nil {
				return supersededOnConflict(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, p := range pending {
		switch p.slot {
		case slotCreate, slotCreatePreallocated:
			resp.CreatedObjects = append(resp.CreatedObjects, p.tag.Header)
		case slotUpdateObject:
			resp.UpdatedObjects = append(resp.UpdatedObjects, p.tag.Header)
		case slotUpdateTag:
			resp.UpdatedTags = append(resp.UpdatedTags, p.tag.Header)
		}
	}

	s.log.Debug("write batch committed",
		zap.String("tenant", req.Tenant),
		zap.Int("preallocated", len(resp.PreallocatedIDs)),
		zap.Int("created", len(resp.CreatedObjects)),
		zap.Int("updated_objects", len(resp.UpdatedObjects)),
		zap.Int("updated_tags", len(resp.UpdatedTags)))

	return resp, nil
}

// preparePending validates every entry statically and lays the batch out in
// slot order. Create entries carrying a PriorVersion promote preallocations.
func (s *WriteService) preparePending(caller Caller, req WriteBatchRequest) ([]*pendingWrite, error) {
	var pending []*pendingWrite

	add := func(method string, slot slotKind, entries []WriteRequest) error {
		for _, entry := range entries {
			if entry.Tenant != "" && entry.Tenant != req.Tenant {
				return ErrBadRequest.New("batch entry for tenant %q inside a batch for %q", entry.Tenant, req.Tenant)
			}
			entry.Tenant = req.Tenant
			entrySlot := slot
			if slot == slotCreate && entry.PriorVersion != nil {
				entrySlot = slotCreatePreallocated
			}
			if err := validateWriteRequest(method, caller, entrySlot, entry); err != nil {
				return err
			}
			pending = append(pending, &pendingWrite{slot: entrySlot, req: entry})
		}
		return nil
	}

	if err := add(MethodCreateObject, slotCreate, req.CreateObjects); err != nil {
		return nil, err
	}
	if err := add(MethodUpdateObject, slotUpdateObject, req.UpdateObjects); err != nil {
		return nil, err
	}
	if err := add(MethodUpdateTag, slotUpdateTag, req.UpdateTags); err != nil {
		return nil, err
	}
	return pending, nil
}

// loadPriors resolves the prior tag of every update entry and fills in the
// prospective header of every pending row. A prior that is no longer latest
// means a concurrent writer got there first.
func (s *WriteService) loadPriors(ctx context.Context, tenant string, batchAt time.Time, pending []*pendingWrite) error {
	for _, p := range pending {
		switch p.slot {
		case slotCreate:
			p.tag.Header = metadata.TagHeader{
				ObjectType:      p.req.ObjectType,
				ObjectID:        uuid.New(),
				ObjectVersion:   metadata.ObjectFirstVersion,
				ObjectTimestamp: batchAt,
				IsLatestObject:  true,
				TagVersion:      metadata.TagFirstVersion,
				TagTimestamp:    batchAt,
				IsLatestTag:     true,
			}

		case slotCreatePreallocated:
			p.tag.Header = metadata.TagHeader{
				ObjectType:      p.req.ObjectType,
				ObjectID:        p.req.PriorVersion.ObjectID,
				ObjectVersion:   metadata.ObjectFirstVersion,
				ObjectTimestamp: batchAt,
				IsLatestObject:  true,
				TagVersion:      metadata.TagFirstVersion,
				TagTimestamp:    batchAt,
				IsLatestTag:     true,
			}

		case slotUpdateObject:
			prior, err := s.db.LoadObject(ctx, tenant, *p.req.PriorVersion)
			if err != nil {
				return err
			}
			if !prior.Header.IsLatestObject {
				return ErrSuperseded.New("object [%s] version %d is no longer the latest version",
					prior.Header.ObjectID, prior.Header.ObjectVersion)
			}
			p.prior = prior
			p.tag.Header = prior.Header
			p.tag.Header.ObjectVersion = prior.Header.ObjectVersion + 1
			p.tag.Header.ObjectTimestamp = batchAt
			p.tag.Header.TagVersion = metadata.TagFirstVersion
			p.tag.Header.TagTimestamp = batchAt
			p.tag.Header.IsLatestObject = true
			p.tag.Header.IsLatestTag = true

		case slotUpdateTag:
			prior, err := s.db.LoadObject(ctx, tenant, *p.req.PriorVersion)
			if err != nil {
				return err
			}
			if !prior.Header.IsLatestTag {
				return ErrSuperseded.New("tag %d of object [%s] version %d is no longer the latest tag",
					prior.Header.TagVersion, prior.Header.ObjectID, prior.Header.ObjectVersion)
			}
			p.prior = prior
			p.tag.Header = prior.Header
			p.tag.Header.TagVersion = prior.Header.TagVersion + 1
			p.tag.Header.TagTimestamp = batchAt
			p.tag.Header.IsLatestTag = true
		}
	}
	return nil
}

// resolveReferences builds the reference bundle for the batch: prospective
// headers first, then store lookups for everything else. Every embedded
// selector that resolves is pinned to a fixed version before save; anything
// that does not resolve is a consistency failure.
func (s *WriteService) resolveReferences(ctx context.Context, tenant string, pending []*pendingWrite) error {
	bundle := metaval.ReferenceBundle{}
	batchDefs := map[uuid.UUID]*metadata.ObjectDefinition{}

	for _, p := range pending {
		if p.slot == slotUpdateTag {
			continue
		}
		bundle[p.tag.Header.ObjectID] = p.tag.Header
		batchDefs[p.tag.Header.ObjectID] = p.req.Definition
	}

	// load pass: resolve out-of-batch references and pin non-fixed selectors
	for _, p := range pending {
		if p.req.Definition == nil {
			continue
		}
		for _, selector := range p.req.Definition.EmbeddedSelectors() {
			if header, ok := bundle[selector.ObjectID]; ok {
				if !selector.Fixed() && header.ObjectType == selector.ObjectType {
					*selector = selector.WithFixedVersion(header.ObjectVersion, header.TagVersion)
				}
				continue
			}

			loaded, err := s.db.LoadObject(ctx, tenant, *selector)
			switch {
			case err == nil:
				bundle[selector.ObjectID] = loaded.Header
				if !selector.Fixed() {
					*selector = selector.WithFixedVersion(loaded.Header.ObjectVersion, loaded.Header.TagVersion)
				}
			case metastore.ErrObjectNotFound.Has(err), metastore.ErrWrongObjectType.Has(err):
				// reported by the consistency pass below
			default:
				return err
			}
		}
	}

	v := metaval.ForConsistency(MethodWriteBatch, pending)
	validate := metaval.DefinitionConsistencyValidator(bundle)
	for i, p := range pending {
		if p.req.Definition == nil {
			continue
		}
		v.PushRepeatedItem(i, p.req.Definition)
		metaval.Apply(v, validate)
		v.Pop()
	}
	metaval.ReferenceCycles(v, batchDefs)
	return v.Error()
}

// validateVersions runs the version pass of every update-object entry
// against its loaded prior.
func validateVersions(pending []*pendingWrite) error {
	for _, p := range pending {
		if p.slot != slotUpdateObject {
			continue
		}
		v := metaval.ForVersion(MethodUpdateObject, p.req.Definition, p.prior.Definition)
		metaval.ApplyRegistered(v, metaval.ValidationKey{
			Kind:   metaval.Version,
			Target: metaval.TargetObjectDefinition,
			Method: MethodUpdateObject,
		})
		if err := v.Error(); err != nil {
			return err
		}
	}
	return nil
}

// assembleTags applies user tag updates and stamps controlled attributes
// afterwards, so user updates can never overwrite the platform's trail.
func assembleTags(caller Caller, batchAt time.Time, pending []*pendingWrite) error {
	for _, p := range pending {
		var priorAttrs map[string]metadata.Value
		if p.prior != nil {
			priorAttrs = p.prior.Attrs
		}

		attrs, err := metadata.ApplyTagUpdates(priorAttrs, p.req.TagUpdates)
		if err != nil {
			return ErrBadRequest.Wrap(err)
		}

		explicit := explicitControlledAttrs(caller, p.req.TagUpdates)
		switch p.slot {
		case slotCreate, slotCreatePreallocated:
			stampControlled(attrs, caller, batchAt, explicit,
				metadata.AttrCreateTime, metadata.AttrCreateUserID, metadata.AttrCreateUserName,
				metadata.AttrUpdateTime, metadata.AttrUpdateUserID, metadata.AttrUpdateUserName)
			p.tag.Definition = p.req.Definition

		case slotUpdateObject:
			stampControlled(attrs, caller, batchAt, explicit,
				metadata.AttrUpdateTime, metadata.AttrUpdateUserID, metadata.AttrUpdateUserName)
			p.tag.Definition = p.req.Definition

		case slotUpdateTag:
			stampControlled(attrs, caller, batchAt, explicit,
				metadata.AttrUpdateTime, metadata.AttrUpdateUserID, metadata.AttrUpdateUserName)
			p.tag.Definition = p.prior.Definition
		}

		p.tag.Attrs = attrs
	}
	return nil
}

// explicitControlledAttrs returns the controlled names a trusted caller set
// through its own tag updates; stamping leaves those alone. Public callers
// can never set controlled names, validation rejects them earlier.
func explicitControlledAttrs(caller Caller, updates []metadata.TagUpdate) map[string]bool {
	if !caller.Trusted {
		return nil
	}
	explicit := map[string]bool{}
	for _, update := range updates {
		if metadata.IsReservedAttrName(update.AttrName) {
			explicit[update.AttrName] = true
		}
	}
	return explicit
}

func stampControlled(attrs map[string]metadata.Value, caller Caller, at time.Time, explicit map[string]bool, names ...string) {
	for _, name := range names {
		if explicit[name] {
			continue
		}
		switch name {
		case metadata.AttrCreateTime, metadata.AttrUpdateTime:
			attrs[name] = metadata.DatetimeValue(at)
		case metadata.AttrCreateUserID, metadata.AttrUpdateUserID:
			attrs[name] = metadata.StringValue(caller.UserID)
		case metadata.AttrCreateUserName, metadata.AttrUpdateUserName:
			attrs[name] = metadata.StringValue(caller.UserName)
		}
	}
}

func hasSlot(pending []*pendingWrite, slot slotKind) bool {
	for _, p := range pending {
		if p.slot == slot {
			return true
		}
	}
	return false
}

func tagsForSlot(pending []*pendingWrite, slot slotKind) []metadata.Tag {
	var rows []metadata.Tag
	for _, p := range pending {
		if p.slot == slot {
			rows = append(rows, p.tag)
		}
	}
	return rows
}

// supersededOnConflict converts a duplicate-key failure on an update slot
// into a superseded error: the row already exists because a concurrent
// writer committed it first.
func supersededOnConflict(err error) error {
	if metastore.ErrAlreadyExists.Has(err) {
		return ErrSuperseded.Wrap(err)
	}
	return err
}
