// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package process_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tracdap.io/tracmeta/pkg/config"
	"tracdap.io/tracmeta/pkg/process"
)

func init() {
	process.RegisterTask(process.Task{
		Name:        "noop",
		Description: "do nothing and exit",
		Run:         func(ctx context.Context, env *process.Environment) error { return nil },
	})
}

func writeConfig(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "tracmeta.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
platform:
  environment: TEST
metastore:
  conn-str: "sqlite://:memory:"
`), 0o600))
	return path
}

func TestCommandRunsTask(t *testing.T) {
	cmd := process.NewCommand("tracmeta", "metadata catalog", "noop")
	cmd.SetArgs([]string{"--config", writeConfig(t), "--task", "noop"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
}

func TestCommandUnknownTask(t *testing.T) {
	cmd := process.NewCommand("tracmeta", "metadata catalog", "noop")
	cmd.SetArgs([]string{"--config", writeConfig(t), "--task", "no_such_task"})
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown task")
}

func TestCommandUnknownFlag(t *testing.T) {
	cmd := process.NewCommand("tracmeta", "metadata catalog", "noop")
	cmd.SetArgs([]string{"--no-such-flag"})
	cmd.SetErr(&bytes.Buffer{})
	require.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestCommandTaskList(t *testing.T) {
	var out bytes.Buffer
	cmd := process.NewCommand("tracmeta", "metadata catalog", "noop")
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--task-list"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	require.Contains(t, out.String(), "noop")
}

func TestRegisterTaskRejectsDuplicates(t *testing.T) {
	require.Panics(t, func() {
		process.RegisterTask(process.Task{Name: "noop"})
	})
}

func TestNewLogger(t *testing.T) {
	log, err := process.NewLogger(config.LogConfig{Level: "debug", Encoding: "json"})
	require.NoError(t, err)
	log.Debug("logger built")

	_, err = process.NewLogger(config.LogConfig{Level: "loud"})
	require.Error(t, err)

	_, err = process.NewLogger(config.LogConfig{Level: "info", Encoding: "xml"})
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "tracmeta.log")
	log, err = process.NewLogger(config.LogConfig{Level: "info", File: file, MaxSizeMB: 1})
	require.NoError(t, err)
	log.Info("rotating sink active")
	require.NoError(t, log.Sync())

	_, err = os.Stat(file)
	require.NoError(t, err)
}
