// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

// Package metastoretest runs metadata store tests against a fresh embedded
// database with the schema migrated and a default tenant in place.
package metastoretest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"tracdap.io/tracmeta/metadata"
	"tracdap.io/tracmeta/metadata/metastore"
)

// DefaultTenant is created by Run before the test body executes.
const DefaultTenant = "ACME_CORP"

// Run opens an in-memory store, migrates it and runs the test body.
func Run(t *testing.T, fn func(ctx context.Context, t *testing.T, db *metastore.DB)) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	log := zaptest.NewLogger(t)
	db, err := metastore.Open(ctx, log, metastore.Config{ConnStr: "sqlite://:memory:"})
	require.NoError(t, err)
	defer func() { require.NoError(t, db.Close()) }()

	require.NoError(t, db.MigrateToLatest(ctx))
	require.NoError(t, db.EnsureTenant(ctx, metastore.TenantInfo{
		Code:        DefaultTenant,
		Description: "Test tenant",
	}))

	fn(ctx, t, db)
}

// Timestamp returns a deterministic microsecond-aligned time offset from a
// fixed epoch, matching the precision the write path stores.
func Timestamp(offset time.Duration) time.Time {
	epoch := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return epoch.Add(offset).Truncate(time.Microsecond)
}

// CustomDefinition returns a minimal valid definition for tests that only
// care about identity, versioning and attributes.
func CustomDefinition() *metadata.ObjectDefinition {
	return &metadata.ObjectDefinition{
		ObjectType: metadata.ObjectTypeCustom,
		Custom: &metadata.CustomDefinition{
			SchemaType:    "acme_widget",
			SchemaVersion: 1,
			Data:          []byte(`{"widget":true}`),
		},
	}
}

// NewTag builds a first-version tag for a fresh object id.
func NewTag(definition *metadata.ObjectDefinition, attrs map[string]metadata.Value) metadata.Tag {
	if attrs == nil {
		attrs = map[string]metadata.Value{}
	}
	return metadata.Tag{
		Header: metadata.TagHeader{
			ObjectType:      definition.ObjectType,
			ObjectID:        uuid.New(),
			ObjectVersion:   metadata.ObjectFirstVersion,
			ObjectTimestamp: Timestamp(0),
			IsLatestObject:  true,
			TagVersion:      metadata.TagFirstVersion,
			TagTimestamp:    Timestamp(0),
			IsLatestTag:     true,
		},
		Definition: definition,
		Attrs:      attrs,
	}
}

// NextVersion builds the successor version of an existing tag.
func NextVersion(tag metadata.Tag, at time.Time) metadata.Tag {
	next := tag.Clone()
	next.Header.ObjectVersion++
	next.Header.ObjectTimestamp = at
	next.Header.TagVersion = metadata.TagFirstVersion
	next.Header.TagTimestamp = at
	return next
}

// NextTag builds the successor tag of an existing tag.
func NextTag(tag metadata.Tag, at time.Time) metadata.Tag {
	next := tag.Clone()
	next.Header.TagVersion++
	next.Header.TagTimestamp = at
	return next
}
