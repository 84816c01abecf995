package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/tabstrip"
	"pkt.systems/tabstrip/core"
	"pkt.systems/tabstrip/httpapi"
	"pkt.systems/tabstrip/internal/appconfig"
	"pkt.systems/tabstrip/schema"
	"pkt.systems/tabstrip/sshserver"
)

const hubHistory = 256

func newServeCmd() *cobra.Command {
	var cfgPath string
	var noHTTP bool
	var noSSH bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tab bar over SSH and HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			// Served identities come from the transport, so the device and
			// account resolvers of the backend are not consulted here.
			backend, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			theme, _ := schema.NormalizeThemeName(cfg.UI.Theme)
			serverCfg := tabstrip.ServerConfig{
				Service:    serviceConfig(cfg, cat),
				HTTP:       toHTTPConfig(cfg),
				SSH:        toSSHConfig(cfg),
				Layout:     layoutEngine(cfg),
				Theme:      theme,
				HubHistory: hubHistory,
			}
			serverDeps := tabstrip.ServerDeps{
				ServiceDeps: core.ServiceDeps{
					Adapter: backend,
					Icons:   cat,
					Logger:  logger,
				},
				Catalog: cat,
			}
			var opts []tabstrip.ServerOption
			if !noHTTP {
				opts = append(opts, tabstrip.WithHTTP())
			}
			if !noSSH {
				opts = append(opts, tabstrip.WithSSH())
			}
			server, err := tabstrip.New(serverCfg, serverDeps, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			if !noHTTP {
				logger.Info("http server listening", "addr", serverCfg.HTTP.Addr)
			}
			if !noSSH {
				logger.Info("ssh server listening", "addr", serverCfg.SSH.Addr)
			}
			if err := server.Start(ctx); err != nil {
				return err
			}
			waitErr := server.Wait()
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Stop(stopCtx); err != nil {
				logger.Warn("server stop failed", "err", err)
			}
			return waitErr
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&noHTTP, "no-http", false, "disable the HTTP API")
	cmd.Flags().BoolVar(&noSSH, "no-ssh", false, "disable the SSH server")
	return cmd
}

func toHTTPConfig(cfg appconfig.Config) httpapi.Config {
	return httpapi.Config{
		Addr:             cfg.HTTP.Addr,
		IdentityCookie:   cfg.HTTP.IdentityCookie,
		IdentityTTLHours: cfg.HTTP.IdentityTTLHours,
		BasePath:         cfg.HTTP.BasePath,
		SessionFile:      filepath.Join(cfg.StateDir, "http-sessions.json"),
	}
}

func toSSHConfig(cfg appconfig.Config) sshserver.Config {
	return sshserver.Config{
		Addr:               cfg.SSH.Addr,
		HostKeyPath:        cfg.SSH.HostKeyPath,
		KeyStorePath:       cfg.SSH.KeyStorePath,
		KeyDir:             cfg.SSH.KeyDir,
		AuthorizedKeysPath: cfg.SSH.AuthorizedKeysPath,
		Mouse:              cfg.UI.Mouse,
	}
}
