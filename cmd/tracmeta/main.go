// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

// tracmeta runs the metadata catalog: the versioned object store behind the
// platform, served over an HTTP/JSON gateway.
package main

import (
	"context"

	"go.uber.org/zap"

	"tracdap.io/tracmeta/api"
	"tracdap.io/tracmeta/metadata/metaservice"
	"tracdap.io/tracmeta/metadata/metastore"
	"tracdap.io/tracmeta/pkg/config"
	"tracdap.io/tracmeta/pkg/process"
)

func main() {
	process.RegisterTask(process.Task{
		Name:        "serve",
		Description: "run the metadata catalog service",
		Run:         runServe,
	})
	process.RegisterTask(process.Task{
		Name:        "migrate",
		Description: "migrate the metadata store to the latest schema and exit",
		Run:         runMigrate,
	})

	process.Exec(process.NewCommand("tracmeta", "TRAC metadata catalog", "serve"))
}

func runServe(ctx context.Context, env *process.Environment) error {
	db, err := openStore(ctx, env)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	writer := metaservice.NewWriteService(env.Log.Named("write"), db)
	reader, err := metaservice.NewReadService(env.Log.Named("read"), db,
		platformInfo(env.Conf), publicResources(env.Conf))
	if err != nil {
		return err
	}

	server := api.NewServer(env.Log.Named("api"), env.Conf.API,
		metaservice.NewInterceptor(env.Log.Named("interceptor")), writer, reader)
	return server.Run(ctx)
}

func runMigrate(ctx context.Context, env *process.Environment) error {
	db, err := metastore.Open(ctx, env.Log.Named("metastore"), env.Conf.Metastore)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.MigrateToLatest(ctx); err != nil {
		return err
	}
	return ensureTenants(ctx, env, db)
}

// openStore connects to the metadata store and creates the configured
// tenants. The schema must already be migrated.
func openStore(ctx context.Context, env *process.Environment) (*metastore.DB, error) {
	db, err := metastore.Open(ctx, env.Log.Named("metastore"), env.Conf.Metastore)
	if err != nil {
		return nil, err
	}
	if err := ensureTenants(ctx, env, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func ensureTenants(ctx context.Context, env *process.Environment, db *metastore.DB) error {
	for _, tenant := range env.Conf.Tenants {
		err := db.EnsureTenant(ctx, metastore.TenantInfo{
			Code:        tenant.Code,
			Description: tenant.Description,
		})
		if err != nil {
			return err
		}
		env.Log.Info("tenant ready", zap.String("tenant", tenant.Code))
	}
	return nil
}

func platformInfo(conf *config.Config) metaservice.PlatformInfo {
	return metaservice.PlatformInfo{
		Environment:    conf.Platform.Environment,
		Production:     conf.Platform.Production,
		DeploymentInfo: conf.Platform.DeploymentInfo,
	}
}

// publicResources builds the read service's resource view. Private
// properties and secret aliases never leave the config.
func publicResources(conf *config.Config) map[string]metaservice.ResourceEntry {
	entries := make(map[string]metaservice.ResourceEntry, len(conf.Resources))
	for name, resource := range conf.Resources {
		entries[name] = metaservice.ResourceEntry{
			Name:             name,
			ResourceType:     resource.ResourceType,
			Protocol:         resource.Protocol,
			PublicProperties: resource.PublicProperties,
		}
	}
	return entries
}
