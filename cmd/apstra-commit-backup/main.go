// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the command-line interface for the backup agent using
// the Cobra library. The root command runs the unattended polling daemon;
// subcommands cover one-off operations (discover, backup).

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vignitin/apstra-commit-backup/internal/apstra"
	"github.com/vignitin/apstra-commit-backup/internal/backup"
	"github.com/vignitin/apstra-commit-backup/internal/config"
	"github.com/vignitin/apstra-commit-backup/internal/logging"
	"github.com/vignitin/apstra-commit-backup/internal/metrics"
	"github.com/vignitin/apstra-commit-backup/internal/registry"
	"github.com/vignitin/apstra-commit-backup/internal/scheduler"
	"github.com/vignitin/apstra-commit-backup/internal/state"
	"github.com/vignitin/apstra-commit-backup/internal/transfer"
)

var version = "dev" // this will be set by the linker

var (
	cfgFile        string
	envFile        string
	debugFlag      bool
	onceFlag       bool
	forceDiscovery bool
)

// cfg is the effective configuration, populated by PersistentPreRunE
// before any command body runs.
var cfg config.Config

// main is the entry point of the application. Every command runs under a
// signal-aware context so SIGINT and SIGTERM cancel in-flight work.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// The error is already printed by Cobra on failure.
		os.Exit(1)
	}
}

var rootCmd *cobra.Command

func init() {
	rootCmd = newRootCmd()
}

// newRootCmd creates and configures a new root cobra command. This function
// is used to build the main application command as well as fresh instances
// for isolated testing.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apstra-commit-backup",
		Short: "Commit-aware backup agent for Juniper Apstra",
		Long: `apstra-commit-backup watches an Apstra controller for blueprint
configuration revisions and takes a backup whenever one lands. The
backup artifact is shipped off-box over SFTP, FTP or S3, and the
revision state is committed only after the artifact is safely away.

Running without a subcommand starts the unattended polling daemon.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if loaded, err := config.LoadDotenv(envFile); err != nil {
				return err
			} else if loaded != "" {
				logging.Debugf("loaded environment from %s", loaded)
			}

			var err error
			cfg, err = config.Load(cmd, cfgFile)
			if err != nil {
				return err
			}
			if err := logging.Setup(cfg.Logging.Level, cfg.Logging.File); err != nil {
				return err
			}
			if debugFlag {
				logging.SetDebug(true)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context())
		},
	}

	cmd.AddCommand(discoverCmd)
	cmd.AddCommand(backupCmd)

	cmd.Version = version

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches the user config dir, /etc/apstra-commit-backup and .)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file with credentials (default probes ./.env and ~/.env)")
	cmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	cmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&onceFlag, "once", false, "run a single poll cycle and exit")
	cmd.Flags().BoolVar(&forceDiscovery, "force-discovery", false, "re-discover blueprints on the first cycle")
	cmd.Flags().Int("blueprint-refresh", 300, "seconds between blueprint discovery refreshes")
	cmd.Flags().String("metrics-listen", "", "address for the Prometheus endpoint (empty disables it)")

	return cmd
}

// runDaemon wires the agent together and runs the polling loop until the
// context is cancelled.
func runDaemon(ctx context.Context) error {
	promptCredentials()
	if err := cfg.Validate(); err != nil {
		return err
	}

	shipper, err := transfer.NewClient(cfg.Transfer)
	if err != nil {
		return err
	}

	client := apstra.NewClient(cfg.API.Server, cfg.APITimeout(), cfg.API.TLSVerify)
	store := state.NewStore(cfg.State.FilePath)
	orch := backup.NewOrchestrator(cfg.Backup, shipper)

	reg := registry.New(cfg.API.Blueprints, cfg.API.LastBlueprintDiscovery)
	if forceDiscovery || len(cfg.API.Blueprints) == 0 {
		reg.ForceNext()
	}

	sched := scheduler.New(&cfg, client, reg, store, orch)
	if cfg.Discovery.Persist {
		if cfgFile != "" {
			sched.ConfigPath = cfgFile
		} else {
			logging.Warnf("discovery.persist requires --config, discovered blueprints will not be written back")
		}
	}

	metrics.Serve(ctx, cfg.Metrics.Listen)

	if onceFlag {
		return sched.Cycle(ctx)
	}
	sched.Run(ctx)
	return nil
}

// promptCredentials asks for the controller credentials interactively when
// they are missing and stdin is a terminal. Unattended runs skip this and
// fail validation instead.
func promptCredentials() {
	if cfg.API.Username != "" && cfg.API.Password != "" {
		return
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return
	}

	if cfg.API.Username == "" {
		fmt.Print("Apstra username: ")
		reader := bufio.NewReader(os.Stdin)
		name, _ := reader.ReadString('\n')
		cfg.API.Username = strings.TrimSpace(name)
	}
	if cfg.API.Password == "" {
		fmt.Print("Apstra password: ")
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err == nil {
			cfg.API.Password = string(pw)
		}
	}
}
