// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metastore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"tracdap.io/tracmeta/metadata"
	"tracdap.io/tracmeta/shared/dbutil"
)

// verifySaveTag checks the shape of a tag handed to a save operation.
// Save operations expect fully validated input; these checks guard the
// invariants the store cannot repair after commit.
func verifySaveTag(tag metadata.Tag, objectVersion, tagVersion int) error {
	header := tag.Header
	switch {
	case header.ObjectType == metadata.ObjectTypeUnset:
		return ErrInvalidTag.New("objectType missing")
	case header.ObjectID == uuid.Nil:
		return ErrInvalidTag.New("objectId missing")
	case objectVersion > 0 && header.ObjectVersion != objectVersion:
		return ErrInvalidTag.New("objectVersion must be %d, got %d", objectVersion, header.ObjectVersion)
	case header.ObjectVersion < metadata.ObjectFirstVersion:
		return ErrInvalidTag.New("objectVersion invalid: %d", header.ObjectVersion)
	case tagVersion > 0 && header.TagVersion != tagVersion:
		return ErrInvalidTag.New("tagVersion must be %d, got %d", tagVersion, header.TagVersion)
	case header.TagVersion < metadata.TagFirstVersion:
		return ErrInvalidTag.New("tagVersion invalid: %d", header.TagVersion)
	case header.ObjectTimestamp.IsZero():
		return ErrInvalidTag.New("objectTimestamp missing")
	case header.TagTimestamp.IsZero():
		return ErrInvalidTag.New("tagTimestamp missing")
	case tag.Definition == nil:
		return ErrInvalidTag.New("definition missing")
	case tag.Definition.ObjectType != header.ObjectType:
		return ErrInvalidTag.New("definition type %v does not match header type %v",
			tag.Definition.ObjectType, header.ObjectType)
	}

	// stored references must be in fixed form
	for _, ref := range tag.Definition.EmbeddedSelectors() {
		if !ref.Fixed() {
			return ErrInvalidTag.New(
				"embedded selector for %v [%s] is not fixed to an explicit version",
				ref.ObjectType, ref.ObjectID)
		}
	}
	return nil
}

// PreallocateObjectIDsTx reserves fresh object ids inside an open
// transaction. No v=1 row exists until the ids are promoted.
func PreallocateObjectIDsTx(ctx context.Context, tx TransactionAdapter, tenant string, objectTypes []metadata.ObjectType) (_ []metadata.TagHeader, err error) {
	defer mon.Task()(&ctx)(&err)

	headers := make([]metadata.TagHeader, 0, len(objectTypes))
	for _, objectType := range objectTypes {
		if objectType == metadata.ObjectTypeUnset || !objectType.Recognized() {
			return nil, ErrInvalidTag.New("cannot preallocate ids for object type %v", objectType)
		}

		objectID := uuid.New()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO preallocation (tenant_code, object_id, object_type)
			VALUES (?, ?, ?)`,
			tenant, objectID, objectType.String())
		if err != nil {
			return nil, mapSaveError(err, tenant, objectID)
		}

		headers = append(headers, metadata.TagHeader{
			ObjectType: objectType,
			ObjectID:   objectID,
		})
	}
	return headers, nil
}

// SaveNewObjectsTx commits fully-formed v=1, t=1 tags inside an open
// transaction. The ids must not be in use.
func SaveNewObjectsTx(ctx context.Context, tx TransactionAdapter, tenant string, tags []metadata.Tag) (err error) {
	defer mon.Task()(&ctx)(&err)

	for _, tag := range tags {
		if err := verifySaveTag(tag, metadata.ObjectFirstVersion, metadata.TagFirstVersion); err != nil {
			return err
		}
		if err := insertFirstVersion(ctx, tx, tenant, tag); err != nil {
			return err
		}
	}
	return nil
}

// SavePreallocatedObjectsTx promotes reserved ids to committed v=1 rows
// inside an open transaction.
func SavePreallocatedObjectsTx(ctx context.Context, tx TransactionAdapter, tenant string, tags []metadata.Tag) (err error) {
	defer mon.Task()(&ctx)(&err)

	for _, tag := range tags {
		if err := verifySaveTag(tag, metadata.ObjectFirstVersion, metadata.TagFirstVersion); err != nil {
			return err
		}

		var reservedType string
		err := tx.QueryRowContext(ctx, `
			SELECT object_type FROM preallocation
			WHERE tenant_code = ? AND object_id = ?`,
			tenant, tag.Header.ObjectID).Scan(&reservedType)
		if errors.Is(err, sql.ErrNoRows) {
			return missingReservationError(ctx, tx, tenant, tag.Header.ObjectID)
		}
		if err != nil {
			return Error.New("unable to query preallocation: %w", err)
		}
		if reservedType != tag.Header.ObjectType.String() {
			return ErrWrongObjectType.New(
				"object id [%s] was preallocated as %s, not %v",
				tag.Header.ObjectID, reservedType, tag.Header.ObjectType)
		}

		result, err := tx.ExecContext(ctx, `
			DELETE FROM preallocation
			WHERE tenant_code = ? AND object_id = ?`,
			tenant, tag.Header.ObjectID)
		if err != nil {
			return Error.New("unable to clear preallocation: %w", err)
		}
		if affected, err := result.RowsAffected(); err == nil && affected == 0 {
			return ErrNotPreallocated.New("object id [%s]", tag.Header.ObjectID)
		}

		if err := insertFirstVersion(ctx, tx, tenant, tag); err != nil {
			return err
		}
	}
	return nil
}

// missingReservationError distinguishes an id that was already promoted from
// one that was never reserved. Promotion consumes the preallocation row, so a
// repeated promotion finds no reservation but a committed v=1 object.
func missingReservationError(ctx context.Context, tx TransactionAdapter, tenant string, objectID uuid.UUID) error {
	var objectPK int64
	err := tx.QueryRowContext(ctx, `
		SELECT object_pk FROM object
		WHERE tenant_code = ? AND object_id = ?`,
		tenant, objectID).Scan(&objectPK)
	if err == nil {
		return ErrAlreadyExists.New("object [%s]", objectID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Error.New("unable to query object: %w", err)
	}
	return ErrNotPreallocated.New("object id [%s]", objectID)
}

// SaveNewVersionsTx appends new object versions inside an open transaction.
// Each tag must carry objectVersion = prior + 1 and tagVersion = 1.
func SaveNewVersionsTx(ctx context.Context, tx TransactionAdapter, tenant string, tags []metadata.Tag) (err error) {
	defer mon.Task()(&ctx)(&err)

	for _, tag := range tags {
		if err := verifySaveTag(tag, 0, metadata.TagFirstVersion); err != nil {
			return err
		}
		if tag.Header.ObjectVersion < metadata.ObjectFirstVersion+1 {
			return ErrInvalidTag.New("new version must be at least 2, got %d", tag.Header.ObjectVersion)
		}

		objectPK, err := lookupObjectPK(ctx, tx, tenant, tag.Header.ObjectID, tag.Header.ObjectType)
		if err != nil {
			return err
		}

		// the prior version must exist; a gap would break monotonic history
		var priorPK int64
		err = tx.QueryRowContext(ctx, `
			SELECT definition_pk FROM object_definition
			WHERE object_fk = ? AND object_version = ?`,
			objectPK, tag.Header.ObjectVersion-1).Scan(&priorPK)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrObjectNotFound.New(
				"prior version %d of object [%s]", tag.Header.ObjectVersion-1, tag.Header.ObjectID)
		}
		if err != nil {
			return Error.New("unable to query prior version: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE object_definition SET is_latest = ?
			WHERE object_fk = ? AND is_latest = ?`,
			false, objectPK, true)
		if err != nil {
			return Error.New("unable to supersede prior version: %w", err)
		}

		definitionPK, err := insertDefinition(ctx, tx, tenant, objectPK, tag)
		if err != nil {
			return err
		}
		if err := insertTagRow(ctx, tx, tenant, definitionPK, tag); err != nil {
			return err
		}
	}
	return nil
}

// SaveNewTagsTx appends new tags to existing object versions inside an open
// transaction. Each tag must carry tagVersion = prior + 1.
func SaveNewTagsTx(ctx context.Context, tx TransactionAdapter, tenant string, tags []metadata.Tag) (err error) {
	defer mon.Task()(&ctx)(&err)

	for _, tag := range tags {
		if err := verifySaveTag(tag, 0, 0); err != nil {
			return err
		}
		if tag.Header.TagVersion < metadata.TagFirstVersion+1 {
			return ErrInvalidTag.New("new tag must be at least 2, got %d", tag.Header.TagVersion)
		}

		objectPK, err := lookupObjectPK(ctx, tx, tenant, tag.Header.ObjectID, tag.Header.ObjectType)
		if err != nil {
			return err
		}

		var definitionPK int64
		err = tx.QueryRowContext(ctx, `
			SELECT definition_pk FROM object_definition
			WHERE object_fk = ? AND object_version = ?`,
			objectPK, tag.Header.ObjectVersion).Scan(&definitionPK)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrObjectNotFound.New(
				"version %d of object [%s]", tag.Header.ObjectVersion, tag.Header.ObjectID)
		}
		if err != nil {
			return Error.New("unable to query object version: %w", err)
		}

		var priorTagPK int64
		err = tx.QueryRowContext(ctx, `
			SELECT tag_pk FROM tag
			WHERE definition_fk = ? AND tag_version = ?`,
			definitionPK, tag.Header.TagVersion-1).Scan(&priorTagPK)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrObjectNotFound.New(
				"prior tag %d of object [%s] version %d",
				tag.Header.TagVersion-1, tag.Header.ObjectID, tag.Header.ObjectVersion)
		}
		if err != nil {
			return Error.New("unable to query prior tag: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE tag SET is_latest = ?
			WHERE definition_fk = ? AND is_latest = ?`,
			false, definitionPK, true)
		if err != nil {
			return Error.New("unable to supersede prior tag: %w", err)
		}

		if err := insertTagRow(ctx, tx, tenant, definitionPK, tag); err != nil {
			return err
		}
	}
	return nil
}

func insertFirstVersion(ctx context.Context, tx TransactionAdapter, tenant string, tag metadata.Tag) error {
	var objectPK int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO object (tenant_code, object_type, object_id)
		VALUES (?, ?, ?)
		RETURNING object_pk`,
		tenant, tag.Header.ObjectType.String(), tag.Header.ObjectID).Scan(&objectPK)
	if err != nil {
		return mapSaveError(err, tenant, tag.Header.ObjectID)
	}

	definitionPK, err := insertDefinition(ctx, tx, tenant, objectPK, tag)
	if err != nil {
		return err
	}
	return insertTagRow(ctx, tx, tenant, definitionPK, tag)
}

func insertDefinition(ctx context.Context, tx TransactionAdapter, tenant string, objectPK int64, tag metadata.Tag) (int64, error) {
	blob, err := metadata.EncodeDefinition(tag.Definition)
	if err != nil {
		return 0, ErrInvalidTag.Wrap(err)
	}

	var definitionPK int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO object_definition (
			tenant_code, object_fk, object_version, object_timestamp, is_latest, definition
		) VALUES (?, ?, ?, ?, ?, ?)
		RETURNING definition_pk`,
		tenant, objectPK, tag.Header.ObjectVersion,
		tag.Header.ObjectTimestamp.UTC(), true, blob).Scan(&definitionPK)
	if err != nil {
		return 0, mapSaveError(err, tenant, tag.Header.ObjectID)
	}
	return definitionPK, nil
}

func insertTagRow(ctx context.Context, tx TransactionAdapter, tenant string, definitionPK int64, tag metadata.Tag) error {
	var tagPK int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO tag (tenant_code, definition_fk, tag_version, tag_timestamp, is_latest)
		VALUES (?, ?, ?, ?, ?)
		RETURNING tag_pk`,
		tenant, definitionPK, tag.Header.TagVersion,
		tag.Header.TagTimestamp.UTC(), true).Scan(&tagPK)
	if err != nil {
		return mapSaveError(err, tenant, tag.Header.ObjectID)
	}
	return insertTagAttrs(ctx, tx, tagPK, tag.Attrs)
}

func lookupObjectPK(ctx context.Context, tx Queryable, tenant string, objectID uuid.UUID, objectType metadata.ObjectType) (int64, error) {
	var (
		objectPK   int64
		storedType string
	)
	err := tx.QueryRowContext(ctx, `
		SELECT object_pk, object_type FROM object
		WHERE tenant_code = ? AND object_id = ?`,
		tenant, objectID).Scan(&objectPK, &storedType)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrObjectNotFound.New("object [%s]", objectID)
	}
	if err != nil {
		return 0, Error.New("unable to query object: %w", err)
	}
	if storedType != objectType.String() {
		return 0, ErrWrongObjectType.New(
			"object [%s] has type %s, selector requested %v", objectID, storedType, objectType)
	}
	return objectPK, nil
}

// mapSaveError converts engine errors into the store's failure classes.
func mapSaveError(err error, tenant string, objectID uuid.UUID) error {
	switch dbutil.FromError(err) {
	case dbutil.UniqueViolation:
		return ErrAlreadyExists.New("object [%s]", objectID)
	case dbutil.ForeignKeyViolation:
		return ErrTenantNotFound.New("tenant [%s]", tenant)
	}
	return Error.New("unable to save object [%s]: %w", objectID, err)
}

// DB wrappers running each public save operation as one transaction.

// PreallocateObjectIDs reserves fresh object ids.
func (db *DB) PreallocateObjectIDs(ctx context.Context, tenant string, objectTypes []metadata.ObjectType) (headers []metadata.TagHeader, err error) {
	err = db.WithTx(ctx, func(ctx context.Context, tx TransactionAdapter) error {
		headers, err = PreallocateObjectIDsTx(ctx, tx, tenant, objectTypes)
		return err
	})
	return headers, err
}

// SaveNewObjects commits new v=1, t=1 objects.
func (db *DB) SaveNewObjects(ctx context.Context, tenant string, tags []metadata.Tag) error {
	return db.WithTx(ctx, func(ctx context.Context, tx TransactionAdapter) error {
		return SaveNewObjectsTx(ctx, tx, tenant, tags)
	})
}

// SavePreallocatedObjects promotes reserved ids to committed objects.
func (db *DB) SavePreallocatedObjects(ctx context.Context, tenant string, tags []metadata.Tag) error {
	return db.WithTx(ctx, func(ctx context.Context, tx TransactionAdapter) error {
		return SavePreallocatedObjectsTx(ctx, tx, tenant, tags)
	})
}

// SaveNewVersions appends new object versions.
func (db *DB) SaveNewVersions(ctx context.Context, tenant string, tags []metadata.Tag) error {
	return db.WithTx(ctx, func(ctx context.Context, tx TransactionAdapter) error {
		return SaveNewVersionsTx(ctx, tx, tenant, tags)
	})
}

// SaveNewTags appends new tags to existing object versions.
func (db *DB) SaveNewTags(ctx context.Context, tenant string, tags []metadata.Tag) error {
	return db.WithTx(ctx, func(ctx context.Context, tx TransactionAdapter) error {
		return SaveNewTagsTx(ctx, tx, tenant, tags)
	})
}
