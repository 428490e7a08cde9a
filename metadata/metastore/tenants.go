// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metastore

import (
	"context"
	"database/sql"
	"errors"
)

// ListTenants returns all tenants in code order.
func (db *DB) ListTenants(ctx context.Context) (_ []TenantInfo, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := db.adapter.QueryContext(ctx, `
		SELECT tenant_code, description FROM tenant
		ORDER BY tenant_code`)
	if err != nil {
		return nil, Error.New("unable to list tenants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tenants []TenantInfo
	for rows.Next() {
		var info TenantInfo
		if err := rows.Scan(&info.Code, &info.Description); err != nil {
			return nil, Error.New("unable to scan tenant row: %w", err)
		}
		tenants = append(tenants, info)
	}
	return tenants, Error.Wrap(rows.Err())
}

// GetTenant returns one tenant, or ErrTenantNotFound.
func (db *DB) GetTenant(ctx context.Context, code string) (_ TenantInfo, err error) {
	defer mon.Task()(&ctx)(&err)

	var info TenantInfo
	err = db.adapter.QueryRowContext(ctx, `
		SELECT tenant_code, description FROM tenant
		WHERE tenant_code = ?`,
		code).Scan(&info.Code, &info.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return TenantInfo{}, ErrTenantNotFound.New("tenant [%s]", code)
	}
	if err != nil {
		return TenantInfo{}, Error.New("unable to query tenant: %w", err)
	}
	return info, nil
}

// EnsureTenant creates or updates a tenant row. Deployments declare their
// tenants in config and activate them at startup.
func (db *DB) EnsureTenant(ctx context.Context, info TenantInfo) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = db.adapter.ExecContext(ctx, `
		INSERT INTO tenant (tenant_code, description)
		VALUES (?, ?)
		ON CONFLICT (tenant_code) DO UPDATE SET description = excluded.description`,
		info.Code, info.Description)
	if err != nil {
		return Error.New("unable to ensure tenant [%s]: %w", info.Code, err)
	}
	return nil
}
