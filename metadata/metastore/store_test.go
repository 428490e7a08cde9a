// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metastore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"tracdap.io/tracmeta/metadata"
	"tracdap.io/tracmeta/metadata/metastore"
	"tracdap.io/tracmeta/metadata/metastore/metastoretest"
)

func richAttrs(t *testing.T) map[string]metadata.Value {
	dec, err := metadata.ParseDecimal("1250.75")
	require.NoError(t, err)
	date, err := metadata.ParseDate("2025-02-28")
	require.NoError(t, err)

	return map[string]metadata.Value{
		"region":       metadata.StringValue("Scotland"),
		"row_count":    metadata.IntValue(4_200_000),
		"approved":     metadata.BoolValue(true),
		"score":        metadata.FloatValue(0.875),
		"notional":     metadata.DecimalValue(dec),
		"value_date":   metadata.DateValue(date),
		"loaded_at":    metadata.DatetimeValue(metastoretest.Timestamp(0)),
		"sector_codes": metadata.ArrayValue(metadata.BasicTypeString, metadata.StringValue("UK"), metadata.StringValue("EU")),
	}
}

func TestSaveAndLoadNewObject(t *testing.T) {
	metastoretest.Run(t, func(ctx context.Context, t *testing.T, db *metastore.DB) {
		tag := metastoretest.NewTag(metastoretest.CustomDefinition(), richAttrs(t))
		require.NoError(t, db.SaveNewObjects(ctx, metastoretest.DefaultTenant, []metadata.Tag{tag}))

		loaded, err := db.LoadObject(ctx, metastoretest.DefaultTenant,
			metadata.LatestSelector(tag.Header.ObjectType, tag.Header.ObjectID))
		require.NoError(t, err)
		require.Equal(t, tag.Header, loaded.Header)
		require.Equal(t, tag.Definition, loaded.Definition)
		require.Equal(t, tag.Attrs, loaded.Attrs)

		// fixed selector resolves the same row
		fixed, err := db.LoadObject(ctx, metastoretest.DefaultTenant, tag.Header.Selector())
		require.NoError(t, err)
		require.Equal(t, loaded.Header, fixed.Header)

		// declared type must agree with the stored type
		wrongType := metadata.LatestSelector(metadata.ObjectTypeData, tag.Header.ObjectID)
		_, err = db.LoadObject(ctx, metastoretest.DefaultTenant, wrongType)
		require.True(t, metastore.ErrWrongObjectType.Has(err))

		// unknown ids and unknown versions are both not-found
		_, err = db.LoadObject(ctx, metastoretest.DefaultTenant,
			metadata.LatestSelector(metadata.ObjectTypeCustom, uuid.New()))
		require.True(t, metastore.ErrObjectNotFound.Has(err))

		missingVersion := tag.Header.Selector()
		missingVersion.ObjectVersion = 7
		_, err = db.LoadObject(ctx, metastoretest.DefaultTenant, missingVersion)
		require.True(t, metastore.ErrObjectNotFound.Has(err))
	})
}

func TestEmptyArrayAttrRejected(t *testing.T) {
	metastoretest.Run(t, func(ctx context.Context, t *testing.T, db *metastore.DB) {
		// an empty array stores no element rows, so accepting it would lose
		// the attribute on load; the save must fail instead
		tag := metastoretest.NewTag(metastoretest.CustomDefinition(), map[string]metadata.Value{
			"region":  metadata.StringValue("Scotland"),
			"sectors": metadata.ArrayValue(metadata.BasicTypeString),
		})
		err := db.SaveNewObjects(ctx, metastoretest.DefaultTenant, []metadata.Tag{tag})
		require.True(t, metastore.ErrInvalidTag.Has(err))
		require.ErrorContains(t, err, "sectors")

		_, err = db.LoadObject(ctx, metastoretest.DefaultTenant,
			metadata.LatestSelector(tag.Header.ObjectType, tag.Header.ObjectID))
		require.True(t, metastore.ErrObjectNotFound.Has(err))
	})
}

func TestSaveNewObjectConflicts(t *testing.T) {
	metastoretest.Run(t, func(ctx context.Context, t *testing.T, db *metastore.DB) {
		tag := metastoretest.NewTag(metastoretest.CustomDefinition(), nil)
		require.NoError(t, db.SaveNewObjects(ctx, metastoretest.DefaultTenant, []metadata.Tag{tag}))

		err := db.SaveNewObjects(ctx, metastoretest.DefaultTenant, []metadata.Tag{tag})
		require.True(t, metastore.ErrAlreadyExists.Has(err))

		other := metastoretest.NewTag(metastoretest.CustomDefinition(), nil)
		err = db.SaveNewObjects(ctx, "NO_SUCH_TENANT", []metadata.Tag{other})
		require.True(t, metastore.ErrTenantNotFound.Has(err))

		// a failed batch commits nothing
		_, err = db.LoadObject(ctx, "NO_SUCH_TENANT",
			metadata.LatestSelector(other.Header.ObjectType, other.Header.ObjectID))
		require.Error(t, err)
	})
}

func TestSaveNewVersions(t *testing.T) {
	metastoretest.Run(t, func(ctx context.Context, t *testing.T, db *metastore.DB) {
		v1 := metastoretest.NewTag(metastoretest.CustomDefinition(), richAttrs(t))
		require.NoError(t, db.SaveNewObjects(ctx, metastoretest.DefaultTenant, []metadata.Tag{v1}))

		v2 := metastoretest.NextVersion(v1, metastoretest.Timestamp(time.Hour))
		require.NoError(t, db.SaveNewVersions(ctx, metastoretest.DefaultTenant, []metadata.Tag{v2}))

		latest, err := db.LoadObject(ctx, metastoretest.DefaultTenant,
			metadata.LatestSelector(v1.Header.ObjectType, v1.Header.ObjectID))
		require.NoError(t, err)
		require.Equal(t, 2, latest.Header.ObjectVersion)
		require.True(t, latest.Header.IsLatestObject)
		require.True(t, latest.Header.IsLatestTag)

		// the superseded version stays readable, no longer latest
		prior, err := db.LoadObject(ctx, metastoretest.DefaultTenant, v1.Header.Selector())
		require.NoError(t, err)
		require.Equal(t, 1, prior.Header.ObjectVersion)
		require.False(t, prior.Header.IsLatestObject)
		require.True(t, prior.Header.IsLatestTag)
		require.Equal(t, v1.Attrs, prior.Attrs)

		// version numbers are gap-free
		v4 := metastoretest.NextVersion(v2, metastoretest.Timestamp(2*time.Hour))
		v4.Header.ObjectVersion = 4
		err = db.SaveNewVersions(ctx, metastoretest.DefaultTenant, []metadata.Tag{v4})
		require.True(t, metastore.ErrObjectNotFound.Has(err))

		// a concurrent writer that lost the race must see already-exists
		err = db.SaveNewVersions(ctx, metastoretest.DefaultTenant, []metadata.Tag{v2})
		require.True(t, metastore.ErrAlreadyExists.Has(err))
	})
}

func TestObjectAsOfResolution(t *testing.T) {
	metastoretest.Run(t, func(ctx context.Context, t *testing.T, db *metastore.DB) {
		v1 := metastoretest.NewTag(metastoretest.CustomDefinition(), nil)
		require.NoError(t, db.SaveNewObjects(ctx, metastoretest.DefaultTenant, []metadata.Tag{v1}))

		v2 := metastoretest.NextVersion(v1, metastoretest.Timestamp(time.Hour))
		require.NoError(t, db.SaveNewVersions(ctx, metastoretest.DefaultTenant, []metadata.Tag{v2}))

		asOf := func(at time.Time) metadata.TagSelector {
			return metadata.TagSelector{
				ObjectType: v1.Header.ObjectType,
				ObjectID:   v1.Header.ObjectID,
				ObjectAsOf: &at,
				LatestTag:  true,
			}
		}

		// before creation there is nothing to resolve
		_, err := db.LoadObject(ctx, metastoretest.DefaultTenant, asOf(metastoretest.Timestamp(-time.Hour)))
		require.True(t, metastore.ErrObjectNotFound.Has(err))

		// between v1 and v2 the as-of view is v1
		between, err := db.LoadObject(ctx, metastoretest.DefaultTenant, asOf(metastoretest.Timestamp(30*time.Minute)))
		require.NoError(t, err)
		require.Equal(t, 1, between.Header.ObjectVersion)

		// the boundary is inclusive
		boundary, err := db.LoadObject(ctx, metastoretest.DefaultTenant, asOf(v2.Header.ObjectTimestamp))
		require.NoError(t, err)
		require.Equal(t, 2, boundary.Header.ObjectVersion)
	})
}

func TestSaveNewTags(t *testing.T) {
	metastoretest.Run(t, func(ctx context.Context, t *testing.T, db *metastore.DB) {
		t1 := metastoretest.NewTag(metastoretest.CustomDefinition(), map[string]metadata.Value{
			"region": metadata.StringValue("Scotland"),
		})
		require.NoError(t, db.SaveNewObjects(ctx, metastoretest.DefaultTenant, []metadata.Tag{t1}))

		t2 := metastoretest.NextTag(t1, metastoretest.Timestamp(time.Hour))
		t2.Attrs["region"] = metadata.StringValue("Wales")
		require.NoError(t, db.SaveNewTags(ctx, metastoretest.DefaultTenant, []metadata.Tag{t2}))

		latest, err := db.LoadObject(ctx, metastoretest.DefaultTenant,
			metadata.LatestSelector(t1.Header.ObjectType, t1.Header.ObjectID))
		require.NoError(t, err)
		require.Equal(t, 2, latest.Header.TagVersion)
		require.Equal(t, metadata.StringValue("Wales"), latest.Attrs["region"])

		prior, err := db.LoadObject(ctx, metastoretest.DefaultTenant, t1.Header.Selector())
		require.NoError(t, err)
		require.False(t, prior.Header.IsLatestTag)
		require.True(t, prior.Header.IsLatestObject)
		require.Equal(t, metadata.StringValue("Scotland"), prior.Attrs["region"])

		// tag versions are gap-free
		t4 := metastoretest.NextTag(t2, metastoretest.Timestamp(2*time.Hour))
		t4.Header.TagVersion = 4
		err = db.SaveNewTags(ctx, metastoretest.DefaultTenant, []metadata.Tag{t4})
		require.True(t, metastore.ErrObjectNotFound.Has(err))

		err = db.SaveNewTags(ctx, metastoretest.DefaultTenant, []metadata.Tag{t2})
		require.True(t, metastore.ErrAlreadyExists.Has(err))

		// tag as-of resolves within the chosen object version
		asOf := metastoretest.Timestamp(30 * time.Minute)
		window, err := db.LoadObject(ctx, metastoretest.DefaultTenant, metadata.TagSelector{
			ObjectType:    t1.Header.ObjectType,
			ObjectID:      t1.Header.ObjectID,
			ObjectVersion: 1,
			TagAsOf:       &asOf,
		})
		require.NoError(t, err)
		require.Equal(t, 1, window.Header.TagVersion)
	})
}

func TestPreallocation(t *testing.T) {
	metastoretest.Run(t, func(ctx context.Context, t *testing.T, db *metastore.DB) {
		headers, err := db.PreallocateObjectIDs(ctx, metastoretest.DefaultTenant,
			[]metadata.ObjectType{metadata.ObjectTypeData, metadata.ObjectTypeModel})
		require.NoError(t, err)
		require.Len(t, headers, 2)
		require.NotEqual(t, headers[0].ObjectID, headers[1].ObjectID)

		// a reserved id resolves to nothing until it is promoted
		_, err = db.LoadObject(ctx, metastoretest.DefaultTenant,
			metadata.LatestSelector(metadata.ObjectTypeData, headers[0].ObjectID))
		require.True(t, metastore.ErrObjectNotFound.Has(err))

		tag := metastoretest.NewTag(&metadata.ObjectDefinition{
			ObjectType: metadata.ObjectTypeModel,
			Model:      &metadata.ModelDefinition{Language: "python", Repository: "models"},
		}, nil)
		tag.Header.ObjectID = headers[1].ObjectID
		require.NoError(t, db.SavePreallocatedObjects(ctx, metastoretest.DefaultTenant, []metadata.Tag{tag}))

		loaded, err := db.LoadObject(ctx, metastoretest.DefaultTenant,
			metadata.LatestSelector(metadata.ObjectTypeModel, tag.Header.ObjectID))
		require.NoError(t, err)
		require.Equal(t, tag.Header, loaded.Header)

		// promotion consumes the reservation, so repeating it is a duplicate
		// of the committed object rather than a missing reservation
		err = db.SavePreallocatedObjects(ctx, metastoretest.DefaultTenant, []metadata.Tag{tag})
		require.True(t, metastore.ErrAlreadyExists.Has(err))
		require.False(t, metastore.ErrNotPreallocated.Has(err))

		// promoting with the wrong type leaves the reservation intact
		wrongType := metastoretest.NewTag(metastoretest.CustomDefinition(), nil)
		wrongType.Header.ObjectID = headers[0].ObjectID
		err = db.SavePreallocatedObjects(ctx, metastoretest.DefaultTenant, []metadata.Tag{wrongType})
		require.True(t, metastore.ErrWrongObjectType.Has(err))

		// an id that was never reserved cannot be promoted
		unreserved := metastoretest.NewTag(metastoretest.CustomDefinition(), nil)
		err = db.SavePreallocatedObjects(ctx, metastoretest.DefaultTenant, []metadata.Tag{unreserved})
		require.True(t, metastore.ErrNotPreallocated.Has(err))
	})
}

func TestLoadObjectsBatch(t *testing.T) {
	metastoretest.Run(t, func(ctx context.Context, t *testing.T, db *metastore.DB) {
		first := metastoretest.NewTag(metastoretest.CustomDefinition(), map[string]metadata.Value{
			"ordinal": metadata.IntValue(1),
		})
		second := metastoretest.NewTag(metastoretest.CustomDefinition(), map[string]metadata.Value{
			"ordinal": metadata.IntValue(2),
		})
		require.NoError(t, db.SaveNewObjects(ctx, metastoretest.DefaultTenant, []metadata.Tag{first, second}))

		// responses are positional
		tags, err := db.LoadObjects(ctx, metastoretest.DefaultTenant, []metadata.TagSelector{
			second.Header.Selector(),
			first.Header.Selector(),
		})
		require.NoError(t, err)
		require.Len(t, tags, 2)
		require.Equal(t, second.Header.ObjectID, tags[0].Header.ObjectID)
		require.Equal(t, first.Header.ObjectID, tags[1].Header.ObjectID)
		require.Equal(t, metadata.IntValue(2), tags[0].Attrs["ordinal"])

		// one unresolvable selector fails the whole batch
		_, err = db.LoadObjects(ctx, metastoretest.DefaultTenant, []metadata.TagSelector{
			first.Header.Selector(),
			metadata.LatestSelector(metadata.ObjectTypeCustom, uuid.New()),
		})
		require.True(t, metastore.ErrObjectNotFound.Has(err))
	})
}

func TestTenants(t *testing.T) {
	metastoretest.Run(t, func(ctx context.Context, t *testing.T, db *metastore.DB) {
		require.NoError(t, db.EnsureTenant(ctx, metastore.TenantInfo{Code: "ALPHA", Description: "First"}))
		require.NoError(t, db.EnsureTenant(ctx, metastore.TenantInfo{Code: "ALPHA", Description: "Updated"}))

		info, err := db.GetTenant(ctx, "ALPHA")
		require.NoError(t, err)
		require.Equal(t, "Updated", info.Description)

		_, err = db.GetTenant(ctx, "MISSING")
		require.True(t, metastore.ErrTenantNotFound.Has(err))

		tenants, err := db.ListTenants(ctx)
		require.NoError(t, err)
		require.Equal(t, []metastore.TenantInfo{
			{Code: metastoretest.DefaultTenant, Description: "Test tenant"},
			{Code: "ALPHA", Description: "Updated"},
		}, tenants)
	})
}
