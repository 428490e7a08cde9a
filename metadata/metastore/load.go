// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metastore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tracdap.io/tracmeta/metadata"
)

// LoadObject resolves one selector to its full tag.
func (db *DB) LoadObject(ctx context.Context, tenant string, selector metadata.TagSelector) (_ *metadata.Tag, err error) {
	defer mon.Task()(&ctx)(&err)

	tags, err := db.LoadObjects(ctx, tenant, []metadata.TagSelector{selector})
	if err != nil {
		return nil, err
	}
	return tags[0], nil
}

// LoadObjects resolves a batch of selectors positionally. The batch fails as
// a whole if any selector cannot be resolved.
func (db *DB) LoadObjects(ctx context.Context, tenant string, selectors []metadata.TagSelector) (_ []*metadata.Tag, err error) {
	defer mon.Task()(&ctx)(&err)

	tags := make([]*metadata.Tag, len(selectors))
	tagPKs := make([]int64, len(selectors))

	for i, selector := range selectors {
		tag, tagPK, err := loadOne(ctx, db.adapter, tenant, selector)
		if err != nil {
			return nil, err
		}
		tags[i] = tag
		tagPKs[i] = tagPK
	}

	attrs, err := loadTagAttrs(ctx, db.adapter, tagPKs)
	if err != nil {
		return nil, err
	}
	for i, tagPK := range tagPKs {
		tagAttrs := attrs[tagPK]
		if tagAttrs == nil {
			tagAttrs = make(map[string]metadata.Value)
		}
		tags[i].Attrs = tagAttrs
	}
	return tags, nil
}

// loadOne resolves a selector to the tag header, definition and tag row pk.
// Attributes are loaded separately in one batch.
func loadOne(ctx context.Context, q Queryable, tenant string, selector metadata.TagSelector) (*metadata.Tag, int64, error) {
	if err := selector.Verify(); err != nil {
		return nil, 0, err
	}

	objectPK, err := lookupObjectPK(ctx, q, tenant, selector.ObjectID, selector.ObjectType)
	if err != nil {
		return nil, 0, err
	}

	definitionPK, header, blob, err := resolveDefinition(ctx, q, objectPK, selector)
	if err != nil {
		return nil, 0, err
	}

	tagPK, err := resolveTag(ctx, q, definitionPK, &header, selector)
	if err != nil {
		return nil, 0, err
	}

	definition, err := metadata.DecodeDefinition(blob)
	if err != nil {
		return nil, 0, Error.New("stored definition for object [%s] is unreadable: %w", selector.ObjectID, err)
	}

	header.ObjectType = selector.ObjectType
	header.ObjectID = selector.ObjectID

	return &metadata.Tag{Header: header, Definition: definition}, tagPK, nil
}

func resolveDefinition(ctx context.Context, q Queryable, objectPK int64, selector metadata.TagSelector) (int64, metadata.TagHeader, []byte, error) {
	query := `
		SELECT definition_pk, object_version, object_timestamp, is_latest, definition
		FROM object_definition
		WHERE object_fk = ?`
	args := []any{objectPK}

	switch {
	case selector.LatestObject:
		query += ` AND is_latest = ?`
		args = append(args, true)
	case selector.ObjectVersion != 0:
		query += ` AND object_version = ?`
		args = append(args, selector.ObjectVersion)
	case selector.ObjectAsOf != nil:
		query += ` AND object_version = (
			SELECT MAX(object_version) FROM object_definition
			WHERE object_fk = ? AND object_timestamp <= ?)`
		args = append(args, objectPK, selector.ObjectAsOf.UTC())
	}

	var (
		definitionPK int64
		header       metadata.TagHeader
		timestamp    time.Time
		blob         []byte
	)
	err := q.QueryRowContext(ctx, query, args...).Scan(
		&definitionPK, &header.ObjectVersion, &timestamp, &header.IsLatestObject, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, metadata.TagHeader{}, nil, ErrObjectNotFound.New(
			"no version of object [%s] matches the selector", selector.ObjectID)
	}
	if err != nil {
		return 0, metadata.TagHeader{}, nil, Error.New("unable to resolve object version: %w", err)
	}

	header.ObjectTimestamp = timestamp.UTC()
	return definitionPK, header, blob, nil
}

func resolveTag(ctx context.Context, q Queryable, definitionPK int64, header *metadata.TagHeader, selector metadata.TagSelector) (int64, error) {
	query := `
		SELECT tag_pk, tag_version, tag_timestamp, is_latest
		FROM tag
		WHERE definition_fk = ?`
	args := []any{definitionPK}

	switch {
	case selector.LatestTag:
		query += ` AND is_latest = ?`
		args = append(args, true)
	case selector.TagVersion != 0:
		query += ` AND tag_version = ?`
		args = append(args, selector.TagVersion)
	case selector.TagAsOf != nil:
		query += ` AND tag_version = (
			SELECT MAX(tag_version) FROM tag
			WHERE definition_fk = ? AND tag_timestamp <= ?)`
		args = append(args, definitionPK, selector.TagAsOf.UTC())
	}

	var (
		tagPK     int64
		timestamp time.Time
	)
	err := q.QueryRowContext(ctx, query, args...).Scan(
		&tagPK, &header.TagVersion, &timestamp, &header.IsLatestTag)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrObjectNotFound.New(
			"no tag of object [%s] version %d matches the selector",
			selector.ObjectID, header.ObjectVersion)
	}
	if err != nil {
		return 0, Error.New("unable to resolve tag: %w", err)
	}

	header.TagTimestamp = timestamp.UTC()
	return tagPK, nil
}
