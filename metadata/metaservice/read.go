// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metaservice

import (
	"context"
	"sort"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"tracdap.io/tracmeta/metadata"
	"tracdap.io/tracmeta/metadata/metastore"
	"tracdap.io/tracmeta/metadata/metaval"
)

// readCacheSize bounds the fixed-selector read cache.
const readCacheSize = 4096

// PlatformInfo describes the running platform to API clients.
type PlatformInfo struct {
	Environment    string            `json:"environment"`
	Production     bool              `json:"production"`
	DeploymentInfo map[string]string `json:"deploymentInfo,omitempty"`
}

// ResourceEntry is the public view of one configured platform resource.
// Secret values and private properties never reach this type.
type ResourceEntry struct {
	Name             string            `json:"name"`
	ResourceType     string            `json:"resourceType"`
	Protocol         string            `json:"protocol"`
	PublicProperties map[string]string `json:"publicProperties,omitempty"`
}

// cacheKey identifies one immutable catalog row.
type cacheKey struct {
	tenant        string
	objectID      uuid.UUID
	objectVersion int
	tagVersion    int
}

// ReadService serves reads, searches and platform metadata. Fully fixed
// selectors address immutable rows, so those reads go through an LRU cache.
type ReadService struct {
	log       *zap.Logger
	db        *metastore.DB
	platform  PlatformInfo
	resources map[string]ResourceEntry

	cache *lru.Cache[cacheKey, *metadata.Tag]
}

// NewReadService constructs the read service. The resources map is the
// already-sanitized public view built by the process bootstrap.
func NewReadService(log *zap.Logger, db *metastore.DB, platform PlatformInfo, resources map[string]ResourceEntry) (*ReadService, error) {
	cache, err := lru.New[cacheKey, *metadata.Tag](readCacheSize)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &ReadService{
		log:       log,
		db:        db,
		platform:  platform,
		resources: resources,
		cache:     cache,
	}, nil
}

// ReadObject resolves one selector to its tag.
func (s *ReadService) ReadObject(ctx context.Context, req ReadRequest) (_ *metadata.Tag, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := staticValidate(MethodReadObject, TargetReadRequest, req); err != nil {
		return nil, err
	}

	if req.Selector.Fixed() {
		key := fixedKey(req.Tenant, req.Selector)
		if tag, ok := s.cache.Get(key); ok {
			return tag, nil
		}
		tag, err := s.db.LoadObject(ctx, req.Tenant, req.Selector)
		if err != nil {
			return nil, err
		}
		s.cache.Add(key, tag)
		return tag, nil
	}

	return s.db.LoadObject(ctx, req.Tenant, req.Selector)
}

// ReadBatch resolves selectors positionally; the whole call fails if any
// selector fails to resolve.
func (s *ReadService) ReadBatch(ctx context.Context, req BatchReadRequest) (_ []*metadata.Tag, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := staticValidate(MethodReadBatch, TargetBatchReadRequest, req); err != nil {
		return nil, err
	}

	tags := make([]*metadata.Tag, len(req.Selectors))
	var missing []metadata.TagSelector
	var missingAt []int

	for i, selector := range req.Selectors {
		if selector.Fixed() {
			if tag, ok := s.cache.Get(fixedKey(req.Tenant, selector)); ok {
				tags[i] = tag
				continue
			}
		}
		missing = append(missing, selector)
		missingAt = append(missingAt, i)
	}

	if len(missing) > 0 {
		loaded, err := s.db.LoadObjects(ctx, req.Tenant, missing)
		if err != nil {
			return nil, err
		}
		for j, tag := range loaded {
			i := missingAt[j]
			tags[i] = tag
			if req.Selectors[i].Fixed() {
				s.cache.Add(fixedKey(req.Tenant, req.Selectors[i]), tag)
			}
		}
	}

	return tags, nil
}

// Search runs one search and returns matching tags, headers and attributes
// only, ordered by (objectId, objectVersion, tagVersion).
func (s *ReadService) Search(ctx context.Context, req SearchRequest) (_ []*metadata.Tag, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := staticValidate(MethodSearch, TargetSearchRequest, req); err != nil {
		return nil, err
	}
	return s.db.Search(ctx, req.Tenant, req.Search)
}

// PlatformInfo returns the platform description from configuration.
func (s *ReadService) PlatformInfo(ctx context.Context) PlatformInfo {
	return s.platform
}

// ListTenants lists the tenants known to the catalog.
func (s *ReadService) ListTenants(ctx context.Context) (_ []metastore.TenantInfo, err error) {
	defer mon.Task()(&ctx)(&err)
	return s.db.ListTenants(ctx)
}

// ListResources lists the configured platform resources, public view only.
func (s *ReadService) ListResources(ctx context.Context) []ResourceEntry {
	entries := make([]ResourceEntry, 0, len(s.resources))
	for _, entry := range s.resources {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// ResourceInfo returns the public view of one configured resource.
func (s *ReadService) ResourceInfo(ctx context.Context, name string) (ResourceEntry, error) {
	entry, ok := s.resources[name]
	if !ok {
		return ResourceEntry{}, ErrResourceNotFound.New("resource %q is not configured", name)
	}
	return entry, nil
}

func fixedKey(tenant string, selector metadata.TagSelector) cacheKey {
	return cacheKey{
		tenant:        tenant,
		objectID:      selector.ObjectID,
		objectVersion: selector.ObjectVersion,
		tagVersion:    selector.TagVersion,
	}
}

// staticValidate runs the registered static validator for a request message.
func staticValidate(method, target string, request any) error {
	v := metaval.ForMethod(method, request)
	metaval.ApplyRegistered(v, metaval.ValidationKey{
		Kind:   metaval.Static,
		Target: target,
		Method: method,
	})
	return v.Error()
}
