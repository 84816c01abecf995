package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/tabstrip/core"
	"pkt.systems/tabstrip/internal/appconfig"
	"pkt.systems/tabstrip/internal/eventbus"
	"pkt.systems/tabstrip/internal/nav"
	"pkt.systems/tabstrip/internal/sessionprefs"
	"pkt.systems/tabstrip/tui"
)

func newRunCmd() *cobra.Command {
	var cfgPath string
	var location string
	var theme string
	var noMouse bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Show the tab bar in this terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if location != "" {
				cfg.UI.Location = location
			}
			if theme != "" {
				cfg.UI.Theme = theme
			}
			if noMouse {
				cfg.UI.Mouse = false
			}
			logFile, err := openLogFile(cfg.UI.LogFile)
			if err != nil {
				return err
			}
			defer func() { _ = logFile.Close() }()
			logger := pslog.NewWithOptions(logFile, pslog.Options{Mode: pslog.ModeStructured, NoColor: true})
			ctx := pslog.ContextWithLogger(cmd.Context(), logger)
			log.SetOutput(pslog.LogLogger(logger).Writer())
			return runLocal(ctx, cfg, os.Stdin, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&location, "location", "", "initial navigation location")
	cmd.Flags().StringVar(&theme, "theme", "", "color theme (outrun, gruvbox, tokyo-midnight)")
	cmd.Flags().BoolVar(&noMouse, "no-mouse", false, "disable mouse tracking")
	return cmd
}

// openLogFile keeps log output off the terminal the tab bar draws on.
func openLogFile(path string) (io.WriteCloser, error) {
	if strings.TrimSpace(path) == "" {
		return nopWriteCloser{io.Discard}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("log file: %w", err)
	}
	return f, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func runLocal(ctx context.Context, cfg appconfig.Config, in io.Reader, out io.Writer) error {
	logger := pslog.Ctx(ctx)
	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	bus := eventbus.New(logger)
	service, err := core.NewService(serviceConfig(cfg, cat), core.ServiceDeps{
		Adapter:   backend,
		Icons:     cat,
		EventSink: bus,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := service.Close(); err != nil {
			logger.Warn("service close failed", "err", err)
		}
	}()

	prefs := sessionprefs.New()
	if !prefs.SetTheme(cfg.UI.Theme) {
		logger.Warn("ui theme unknown", "theme", cfg.UI.Theme)
	}
	location := cfg.UI.Location
	if location == "" {
		if tabs := cat.Tabs(); len(tabs) > 0 {
			location = tabs[0].URL
		}
	}
	history := nav.NewHistory(location)
	prefs.SetLocation(history.Location())
	ctx = sessionprefs.WithContext(ctx, prefs)

	model, err := tui.New(ctx, tui.Options{
		Session:   core.NewSession(service, cat.Tabs(), cat),
		Identity:  backend,
		Subscribe: bus.Subscribe,
		Navigator: history,
		Layout:    layoutEngine(cfg),
		Prefs:     prefs,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer model.Close()

	opts := []tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithAltScreen(),
	}
	if cfg.UI.Mouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	logger.Info("tui start", "location", location, "mouse", cfg.UI.Mouse, "theme", prefs.Theme())
	if _, err := tea.NewProgram(model, opts...).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	logger.Info("tui stop")
	return nil
}
