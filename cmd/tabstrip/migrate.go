package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/tabstrip/internal/appconfig"
	"pkt.systems/tabstrip/internal/persist"
)

func newMigrateCmd() *cobra.Command {
	var cfgPath string
	var skipLegacy bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply storage migrations and import the legacy tab layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if cfg.Storage.Backend == appconfig.BackendSQLite {
				if err := persist.MigrateSQLite(cfg.Storage.SQLitePath, logger); err != nil {
					return fmt.Errorf("sqlite migrate: %w", err)
				}
				logger.Info("sqlite schema up to date", "path", cfg.Storage.SQLitePath)
			}
			if skipLegacy {
				return nil
			}
			backend, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()
			id, err := backend.ResolveIdentity(cmd.Context())
			if err != nil {
				return err
			}
			copied, err := backend.MigrateLegacy(cmd.Context(), id)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "identity %s: legacy copied=%t\n", id, copied)
			return err
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&skipLegacy, "skip-legacy", false, "only apply schema migrations")
	return cmd
}
