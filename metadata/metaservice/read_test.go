// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metaservice_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"tracdap.io/tracmeta/metadata"
	"tracdap.io/tracmeta/metadata/metaservice"
	"tracdap.io/tracmeta/metadata/metastore"
	"tracdap.io/tracmeta/metadata/metastore/metastoretest"
	"tracdap.io/tracmeta/metadata/metaval"
)

func newReadService(t *testing.T, db *metastore.DB) *metaservice.ReadService {
	reader, err := metaservice.NewReadService(zaptest.NewLogger(t), db,
		metaservice.PlatformInfo{Environment: "TEST", Production: false},
		map[string]metaservice.ResourceEntry{
			"model_repo": {
				Name:             "model_repo",
				ResourceType:     "MODEL_REPOSITORY",
				Protocol:         "git",
				PublicProperties: map[string]string{"url": "https://example.com/models.git"},
			},
			"data_store": {
				Name:         "data_store",
				ResourceType: "INTERNAL_STORAGE",
				Protocol:     "s3",
			},
		})
	require.NoError(t, err)
	return reader
}

func TestReadObjectBySelector(t *testing.T) {
	metastoretest.Run(t, func(ctx context.Context, t *testing.T, db *metastore.DB) {
		writer := newWriteService(t, db)
		reader := newReadService(t, db)
		tenant := metastoretest.DefaultTenant

		header, err := writer.CreateObject(publicCtx(ctx), metaservice.WriteRequest{
			Tenant:     tenant,
			ObjectType: metadata.ObjectTypeCustom,
			Definition: metastoretest.CustomDefinition(),
		})
		require.NoError(t, err)

		byLatest, err := reader.ReadObject(ctx, metaservice.ReadRequest{
			Tenant:   tenant,
			Selector: metadata.LatestSelector(metadata.ObjectTypeCustom, header.ObjectID),
		})
		require.NoError(t, err)
		require.Equal(t, header.ObjectID, byLatest.Header.ObjectID)

		// fixed reads hit the immutable-row cache on repeat
		for range 2 {
			byVersion, err := reader.ReadObject(ctx, metaservice.ReadRequest{
				Tenant:   tenant,
				Selector: header.Selector(),
			})
			require.NoError(t, err)
			require.Equal(t, byLatest.Header, byVersion.Header)
			require.Equal(t, byLatest.Definition, byVersion.Definition)
		}
	})
}

func TestReadObjectValidatesSelector(t *testing.T) {
	metastoretest.Run(t, func(ctx context.Context, t *testing.T, db *metastore.DB) {
		reader := newReadService(t, db)

		_, err := reader.ReadObject(ctx, metaservice.ReadRequest{
			Tenant:   metastoretest.DefaultTenant,
			Selector: metadata.TagSelector{},
		})
		require.Error(t, err)

		var verr *metaval.ValidationError
		require.ErrorAs(t, err, &verr)
		require.Equal(t, metaservice.StatusInvalidArgument, metaservice.MapError(err).Code)
	})
}

func TestReadBatchIsPositional(t *testing.T) {
	metastoretest.Run(t, func(ctx context.Context, t *testing.T, db *metastore.DB) {
		writer := newWriteService(t, db)
		reader := newReadService(t, db)
		tenant := metastoretest.DefaultTenant

		first, err := writer.CreateObject(publicCtx(ctx), metaservice.WriteRequest{
			Tenant:     tenant,
			ObjectType: metadata.ObjectTypeCustom,
			Definition: metastoretest.CustomDefinition(),
		})
		require.NoError(t, err)

		second, err := writer.CreateObject(publicCtx(ctx), metaservice.WriteRequest{
			Tenant:     tenant,
			ObjectType: metadata.ObjectTypeCustom,
			Definition: metastoretest.CustomDefinition(),
		})
		require.NoError(t, err)

		tags, err := reader.ReadBatch(ctx, metaservice.BatchReadRequest{
			Tenant: tenant,
			Selectors: []metadata.TagSelector{
				second.Selector(),
				metadata.LatestSelector(metadata.ObjectTypeCustom, first.ObjectID),
			},
		})
		require.NoError(t, err)
		require.Len(t, tags, 2)
		require.Equal(t, second.ObjectID, tags[0].Header.ObjectID)
		require.Equal(t, first.ObjectID, tags[1].Header.ObjectID)
	})
}

func TestReadBatchFailsOnAnyMiss(t *testing.T) {
	metastoretest.Run(t, func(ctx context.Context, t *testing.T, db *metastore.DB) {
		writer := newWriteService(t, db)
		reader := newReadService(t, db)
		tenant := metastoretest.DefaultTenant

		header, err := writer.CreateObject(publicCtx(ctx), metaservice.WriteRequest{
			Tenant:     tenant,
			ObjectType: metadata.ObjectTypeCustom,
			Definition: metastoretest.CustomDefinition(),
		})
		require.NoError(t, err)

		_, err = reader.ReadBatch(ctx, metaservice.BatchReadRequest{
			Tenant: tenant,
			Selectors: []metadata.TagSelector{
				header.Selector(),
				metadata.LatestSelector(metadata.ObjectTypeCustom, uuid.New()),
			},
		})
		require.Error(t, err)
		require.Equal(t, metaservice.StatusNotFound, metaservice.MapError(err).Code)
	})
}

func TestSearchValidatesParameters(t *testing.T) {
	metastoretest.Run(t, func(ctx context.Context, t *testing.T, db *metastore.DB) {
		reader := newReadService(t, db)

		_, err := reader.Search(ctx, metaservice.SearchRequest{
			Tenant: metastoretest.DefaultTenant,
			Search: metadata.SearchParameters{ObjectType: metadata.ObjectTypeCustom},
		})
		require.Error(t, err)
		require.Equal(t, metaservice.StatusInvalidArgument, metaservice.MapError(err).Code)
	})
}

func TestPlatformAndTenantInfo(t *testing.T) {
	metastoretest.Run(t, func(ctx context.Context, t *testing.T, db *metastore.DB) {
		reader := newReadService(t, db)

		info := reader.PlatformInfo(ctx)
		require.Equal(t, "TEST", info.Environment)
		require.False(t, info.Production)

		tenants, err := reader.ListTenants(ctx)
		require.NoError(t, err)
		require.Len(t, tenants, 1)
		require.Equal(t, metastoretest.DefaultTenant, tenants[0].Code)
	})
}

func TestResourceListingAndLookup(t *testing.T) {
	metastoretest.Run(t, func(ctx context.Context, t *testing.T, db *metastore.DB) {
		reader := newReadService(t, db)

		resources := reader.ListResources(ctx)
		require.Len(t, resources, 2)
		require.Equal(t, "data_store", resources[0].Name)
		require.Equal(t, "model_repo", resources[1].Name)

		repo, err := reader.ResourceInfo(ctx, "model_repo")
		require.NoError(t, err)
		require.Equal(t, "git", repo.Protocol)
		require.Equal(t, "https://example.com/models.git", repo.PublicProperties["url"])

		_, err = reader.ResourceInfo(ctx, "no_such_resource")
		require.Error(t, err)
		require.True(t, metaservice.ErrResourceNotFound.Has(err))
		require.Equal(t, metaservice.StatusNotFound, metaservice.MapError(err).Code)
	})
}
