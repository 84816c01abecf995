package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/tabstrip/core"
	"pkt.systems/tabstrip/internal/appconfig"
	"pkt.systems/tabstrip/internal/catalog"
	"pkt.systems/tabstrip/internal/persist"
	"pkt.systems/tabstrip/schema"
)

func newTabsCmd() *cobra.Command {
	var cfgPath string
	var identityFlag string
	cmd := &cobra.Command{
		Use:   "tabs",
		Short: "Inspect or reset a stored tab list",
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.PersistentFlags().StringVar(&identityFlag, "identity", "", "identity to act on (default: resolved account or device)")

	cmd.AddCommand(newTabsListCmd(&cfgPath, &identityFlag))
	cmd.AddCommand(newTabsResetCmd(&cfgPath, &identityFlag))
	return cmd
}

// tabsEnv is an opened service bound to one identity.
type tabsEnv struct {
	cfg      appconfig.Config
	catalog  *catalog.Catalog
	backend  *persist.Backend
	service  core.Service
	identity schema.IdentityID
}

func openTabsEnv(ctx context.Context, cfgPath, identityFlag string) (*tabsEnv, error) {
	cfg, err := appconfig.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	id := schema.IdentityID(identityFlag)
	if id == "" {
		id, err = backend.ResolveIdentity(ctx)
		if err != nil {
			_ = backend.Close()
			return nil, err
		}
	}
	if err := schema.ValidateIdentity(id); err != nil {
		_ = backend.Close()
		return nil, err
	}
	svcCfg := serviceConfig(cfg, cat)
	svcCfg.DisableWatch = true
	service, err := core.NewService(svcCfg, core.ServiceDeps{
		Adapter: backend,
		Icons:   cat,
		Logger:  pslog.Ctx(ctx),
	})
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return &tabsEnv{cfg: cfg, catalog: cat, backend: backend, service: service, identity: id}, nil
}

func (e *tabsEnv) Close() error {
	err := e.service.Close()
	if cerr := e.backend.Close(); err == nil {
		err = cerr
	}
	return err
}

func newTabsListCmd(cfgPath, identityFlag *string) *cobra.Command {
	var width int
	var location string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tabs in order and mark which fit the given width",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openTabsEnv(cmd.Context(), *cfgPath, *identityFlag)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()
			if _, err := env.service.Open(cmd.Context(), schema.OpenRequest{Identity: env.identity}); err != nil {
				return err
			}
			resp, err := env.service.ListTabs(cmd.Context(), schema.ListTabsRequest{Identity: env.identity, Location: location})
			if err != nil {
				return err
			}
			snapshot := layoutEngine(env.cfg).Snapshot(resp.Tabs, width)
			return writeTabTable(cmd.OutOrStdout(), env.identity, snapshot)
		},
	}
	cmd.Flags().IntVar(&width, "width", 80, "container width in cells")
	cmd.Flags().StringVar(&location, "location", "", "current location used to mark the active tab")
	return cmd
}

func newTabsResetCmd(cfgPath, identityFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Replace the stored tab list with the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openTabsEnv(cmd.Context(), *cfgPath, *identityFlag)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()
			resp, err := env.service.ResetTabs(cmd.Context(), schema.ResetTabsRequest{Identity: env.identity})
			if err != nil {
				return err
			}
			if err := env.service.Flush(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "identity %s: reset to %d tabs\n", env.identity, len(resp.Tabs))
			return err
		},
	}
}

func writeTabTable(out io.Writer, id schema.IdentityID, snapshot schema.LayoutSnapshot) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "# identity %s, width %d\n", id, snapshot.Width)
	_, _ = fmt.Fprintln(tw, "POS\tPIN\tSHOWN\tID\tTITLE\tURL")
	pos := 0
	row := func(view schema.TabView, shown string) {
		pin := ""
		if view.Pinned {
			pin = "*"
		}
		title := view.Title
		if view.Active {
			title += " (active)"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s %s\t%s\n", pos, pin, shown, view.ID, catalog.Glyph(view.Icon), title, view.URL)
		pos++
	}
	for _, view := range snapshot.Visible {
		row(view, "bar")
	}
	for _, view := range snapshot.Overflow {
		row(view, "menu")
	}
	return tw.Flush()
}
