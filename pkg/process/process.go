// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

// Package process is the bootstrap shared by platform binaries: command line
// handling, configuration loading, logging setup and the task registry.
package process

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"tracdap.io/tracmeta/pkg/config"
)

var mon = monkit.Package()

// Error is the error class for bootstrap failures.
var Error = errs.Class("process")

// SecretKeyEnv overrides the --secret-key flag.
const SecretKeyEnv = "TRACMETA_SECRET_KEY"

// Environment is what a running task gets from the bootstrap.
type Environment struct {
	Conf    *config.Config
	Log     *zap.Logger
	Secrets config.SecretStore

	// SecretValues holds resolved resource secrets, keyed by resource and
	// property name. Never logged, never served.
	SecretValues map[string]map[string]string
}

// NewCommand builds the root command of a platform binary. The default task
// runs when no --task flag is given.
func NewCommand(use, short, defaultTask string) *cobra.Command {
	var (
		configPath string
		secretKey  string
		taskName   string
		taskList   bool
	)

	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskList {
				for _, task := range Tasks() {
					fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", task.Name, task.Description)
				}
				return nil
			}

			if key, ok := os.LookupEnv(SecretKeyEnv); ok {
				secretKey = key
			}
			return runTask(cmd.Context(), configPath, secretKey, taskName)
		},
	}

	// accept underscore spellings of the flags
	cmd.Flags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	cmd.Flags().StringVar(&configPath, "config", "tracmeta.yaml", "path to the platform config file")
	cmd.Flags().StringVar(&secretKey, "secret-key", "", "key for the secret store (or "+SecretKeyEnv+")")
	cmd.Flags().StringVar(&taskName, "task", defaultTask, "task to run")
	cmd.Flags().BoolVar(&taskList, "task-list", false, "list available tasks and exit")

	return cmd
}

// Exec runs the root command and exits non-zero on failure.
func Exec(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd.Name(), err)
		os.Exit(1)
	}
}

func runTask(ctx context.Context, configPath, secretKey, taskName string) (err error) {
	defer mon.Task()(&ctx)(&err)

	task, ok := LookupTask(taskName)
	if !ok {
		return Error.New("unknown task %q, use --task-list to see available tasks", taskName)
	}

	conf, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := NewLogger(conf.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	secrets, err := config.OpenSecretStore(conf.Secrets.Store, secretKey)
	if err != nil {
		return err
	}
	secretValues, err := config.ResolveSecrets(conf, secrets)
	if err != nil {
		return err
	}

	log.Info("starting task",
		zap.String("task", task.Name),
		zap.String("environment", conf.Platform.Environment))

	return task.Run(ctx, &Environment{
		Conf:         conf,
		Log:          log,
		Secrets:      secrets,
		SecretValues: secretValues,
	})
}
