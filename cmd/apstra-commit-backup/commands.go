// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vignitin/apstra-commit-backup/internal/apstra"
	"github.com/vignitin/apstra-commit-backup/internal/backup"
	"github.com/vignitin/apstra-commit-backup/internal/registry"
	"github.com/vignitin/apstra-commit-backup/internal/transfer"
)

// discoverCmd represents the 'discover' command. It lists the blueprints
// the controller currently reports, without touching the persisted state.
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List the blueprints the controller reports",
	Long: `Authenticates against the Apstra controller, queries the blueprint
collection and prints what the daemon would poll. State and config are
left untouched; use discovery.persist to write discoveries back.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		promptCredentials()
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx := cmd.Context()
		client := apstra.NewClient(cfg.API.Server, cfg.APITimeout(), cfg.API.TLSVerify)
		token, err := client.Login(ctx, cfg.API.Username, cfg.API.Password)
		if err != nil {
			return err
		}

		blueprints, err := registry.Discover(ctx, client, token)
		if err != nil {
			return err
		}
		if len(blueprints) == 0 {
			fmt.Println("No blueprints found.")
			return nil
		}
		for _, bp := range blueprints {
			fmt.Printf("%-40s %s\n", bp.ID, bp.Name)
		}
		return nil
	},
}

// backupCmd represents the 'backup' command. It takes one full-fabric
// backup immediately, outside the change-detection loop.
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Take a full-fabric backup now",
	Long: `Runs the backup program once, resolves the artifact and ships it to
the configured retention target. Revision polling state is not read or
written, so the daemon's change detection is unaffected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		shipper, err := transfer.NewClient(cfg.Transfer)
		if err != nil {
			return err
		}
		orch := backup.NewOrchestrator(cfg.Backup, shipper)
		return orch.ProcessManual(cmd.Context())
	},
}
