package tabstrip

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/tabstrip/core"
	"pkt.systems/tabstrip/httpapi"
	"pkt.systems/tabstrip/internal/auth"
	"pkt.systems/tabstrip/internal/catalog"
	"pkt.systems/tabstrip/internal/eventbus"
	"pkt.systems/tabstrip/internal/layout"
	"pkt.systems/tabstrip/internal/sshkeys"
	"pkt.systems/tabstrip/schema"
	"pkt.systems/tabstrip/sshserver"
)

// Server composes the HTTP and SSH front ends around one tab service.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	Service    schema.ServiceConfig
	HTTP       httpapi.Config
	SSH        sshserver.Config
	Layout     layout.Engine
	Theme      schema.ThemeName
	HubHistory int
}

// ServerDeps captures dependencies required to build the server.
type ServerDeps struct {
	ServiceDeps core.ServiceDeps
	Catalog     *catalog.Catalog
	// AuthStore overrides the authorized_keys store built from SSH.AuthorizedKeysPath.
	AuthStore sshserver.LoginAuthStore
}

// ServerOption toggles compositor components.
type ServerOption func(*serverOptions)

type serverOptions struct {
	enableHTTP bool
	enableSSH  bool
}

// WithHTTP enables the HTTP API.
func WithHTTP() ServerOption {
	return func(o *serverOptions) { o.enableHTTP = true }
}

// WithSSH enables the SSH tab bar.
func WithSSH() ServerOption {
	return func(o *serverOptions) { o.enableSSH = true }
}

// New constructs a composable tabstrip server.
func New(cfg ServerConfig, deps ServerDeps, opts ...ServerOption) (Server, error) {
	options := serverOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if !options.enableHTTP && !options.enableSSH {
		return nil, errors.New("no services enabled")
	}
	normalized, err := schema.NormalizeServiceConfig(cfg.Service)
	if err != nil {
		return nil, err
	}
	cfg.Service = normalized
	if cfg.Layout == (layout.Engine{}) {
		cfg.Layout = layout.DefaultEngine()
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.Default()
	}

	serviceDeps := deps.ServiceDeps
	if serviceDeps.Icons == nil {
		serviceDeps.Icons = deps.Catalog
	}
	var hub *httpapi.Hub
	var bus *eventbus.Bus
	if options.enableSSH {
		bus = eventbus.New(serviceDeps.Logger)
	}
	if options.enableHTTP {
		hub = httpapi.NewHub(cfg.HubHistory)
	}
	sinks := make([]core.EventSink, 0, 3)
	if serviceDeps.EventSink != nil {
		sinks = append(sinks, serviceDeps.EventSink)
	}
	if hub != nil {
		sinks = append(sinks, hub)
	}
	if bus != nil {
		sinks = append(sinks, bus)
	}
	if len(sinks) == 1 {
		serviceDeps.EventSink = sinks[0]
	} else {
		serviceDeps.EventSink = eventFanout{sinks: sinks}
	}

	service, err := core.NewService(cfg.Service, serviceDeps)
	if err != nil {
		return nil, err
	}

	var httpSrv *httpapi.Server
	var sshSrv *sshserver.Server
	if options.enableHTTP {
		httpSrv = httpapi.NewServer(cfg.HTTP, service, cfg.Layout, hub)
	}
	if options.enableSSH {
		authStore := deps.AuthStore
		if authStore == nil {
			store, err := auth.NewKeyStore(cfg.SSH.AuthorizedKeysPath, serviceDeps.Logger)
			if err != nil {
				_ = service.Close()
				return nil, err
			}
			authStore = store
		}
		var hostKeys sshserver.HostKeySource
		if cfg.SSH.KeyStorePath != "" {
			vault, err := sshkeys.NewVault(cfg.SSH.KeyStorePath, cfg.SSH.KeyDir, serviceDeps.Logger)
			if err != nil {
				_ = service.Close()
				return nil, err
			}
			hostKeys = vault
		}
		sshSrv = &sshserver.Server{
			Addr:        cfg.SSH.Addr,
			HostKeyPath: cfg.SSH.HostKeyPath,
			HostKeys:    hostKeys,
			Service:     service,
			Catalog:     deps.Catalog,
			Layout:      cfg.Layout,
			AuthStore:   authStore,
			EventBus:    bus,
			Theme:       cfg.Theme,
			Mouse:       cfg.SSH.Mouse,
		}
	}

	return &compositeServer{
		cfg:     cfg,
		options: options,
		service: service,
		httpSrv: httpSrv,
		sshSrv:  sshSrv,
	}, nil
}

type compositeServer struct {
	cfg     ServerConfig
	options serverOptions
	service core.Service
	httpSrv *httpapi.Server
	sshSrv  *sshserver.Server
	logger  pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	started bool
	stop    sync.Once
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 2)
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info(
		"server start",
		"http", s.options.enableHTTP,
		"ssh", s.options.enableSSH,
		"http_addr", s.cfg.HTTP.Addr,
		"http_base_path", s.cfg.HTTP.BasePath,
		"ssh_addr", s.cfg.SSH.Addr,
		"catalog", len(s.cfg.Service.Catalog),
	)
	if s.options.enableHTTP && s.httpSrv != nil {
		s.httpSrv.SetBaseContext(s.ctx)
		go func() {
			if err := httpapi.ListenAndServe(s.ctx, s.cfg.HTTP.Addr, s.httpSrv.Handler()); err != nil {
				log.Error("http server failed", "err", err)
				s.errCh <- err
			}
		}()
	}
	if s.options.enableSSH && s.sshSrv != nil {
		go func() {
			if err := s.sshSrv.ListenAndServe(s.ctx); err != nil {
				log.Error("ssh server failed", "err", err)
				s.errCh <- err
			}
		}()
	}
	return nil
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

// Stop cancels the front ends and flushes pending saves through the service.
// Concurrent callers wait for the first stop to finish.
func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	log := s.logger
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	s.stop.Do(func() {
		log.Info("server stop requested")
		if cancel != nil {
			cancel()
		}
		if s.service != nil {
			if err := s.service.Close(); err != nil {
				log.Warn("server service close failed", "err", err)
			} else {
				log.Info("server service close ok")
			}
		}
	})
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-s.ctx.Done():
		log.Info("server stopped")
		return nil
	}
}
