package sshserver

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	gliderssh "github.com/gliderlabs/ssh"
	"github.com/muesli/termenv"
	"golang.org/x/crypto/ssh"

	"pkt.systems/pslog"
	"pkt.systems/tabstrip/core"
	"pkt.systems/tabstrip/internal/catalog"
	"pkt.systems/tabstrip/internal/eventbus"
	"pkt.systems/tabstrip/internal/layout"
	"pkt.systems/tabstrip/internal/logx"
	"pkt.systems/tabstrip/internal/nav"
	"pkt.systems/tabstrip/internal/sessionprefs"
	"pkt.systems/tabstrip/schema"
	"pkt.systems/tabstrip/tui"
)

// Server serves the tab bar over SSH. The authenticated SSH user is the
// identity whose tab list is shown.
type Server struct {
	Addr        string
	HostKeyPath string
	// HostKeys, when set, supplies the host key instead of HostKeyPath.
	HostKeys    HostKeySource
	Listener    net.Listener
	Service     core.Service
	Catalog     *catalog.Catalog
	Layout      layout.Engine
	AuthStore   LoginAuthStore
	EventBus    *eventbus.Bus
	Theme       schema.ThemeName
	Mouse       bool
	logger      pslog.Logger
}

// HostKeyName names the server key in a HostKeySource.
const HostKeyName = "ssh-host"

// HostKeySource loads or creates named host keys.
type HostKeySource interface {
	Signer(name string) (ssh.Signer, error)
}

// LoginAuthStore validates SSH public keys.
type LoginAuthStore interface {
	HasLoginPubKey(userID schema.IdentityID, key ssh.PublicKey) (bool, error)
}

// ListenAndServe starts the SSH server and shuts down on context cancellation.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.logger == nil {
		s.logger = pslog.Ctx(ctx)
	}
	if s.Service == nil {
		return errors.New("service is required for SSH")
	}
	if s.AuthStore == nil {
		return errors.New("auth store is required for SSH")
	}
	if s.Catalog == nil {
		s.Catalog = catalog.Default()
	}

	signer, err := s.hostSigner()
	if err != nil {
		return err
	}

	server := &gliderssh.Server{
		Addr:             s.Addr,
		Handler:          s.handleSession,
		PublicKeyHandler: s.handlePublicKey,
	}
	server.AddHostKey(signer)

	errCh := make(chan error, 1)
	go func() {
		if s.Listener != nil {
			errCh <- server.Serve(s.Listener)
			return
		}
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		_ = server.Close()
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handlePublicKey(ctx gliderssh.Context, key gliderssh.PublicKey) bool {
	log := s.logger
	if log == nil {
		log = pslog.Ctx(ctx)
	}
	fingerprint := ssh.FingerprintSHA256(key)
	remote := remoteAddr(ctx)
	userID := schema.IdentityID(strings.ToLower(ctx.User()))
	if userID == "" {
		log.Warn("ssh pubkey rejected", "reason", "missing user", "remote", remote, "fingerprint", fingerprint)
		return false
	}
	log = log.With("identity", userID, "remote", remote, "fingerprint", fingerprint)
	ok, err := s.AuthStore.HasLoginPubKey(userID, key)
	if err != nil {
		log.Warn("ssh pubkey rejected", "err", err)
		return false
	}
	if !ok {
		log.Warn("ssh pubkey rejected", "reason", "no matching key")
		return false
	}
	log.Info("ssh pubkey accepted")
	return true
}

func remoteAddr(ctx gliderssh.Context) string {
	if ctx == nil || ctx.RemoteAddr() == nil {
		return ""
	}
	return ctx.RemoteAddr().String()
}

func (s *Server) handleSession(sess gliderssh.Session) {
	log := s.logger
	if log == nil {
		log = pslog.Ctx(sess.Context())
	}
	id := schema.IdentityID(strings.ToLower(sess.User()))
	remote := sess.RemoteAddr().String()
	if err := schema.ValidateIdentity(id); err != nil {
		log.Info("ssh session rejected", "reason", "invalid user", "remote", remote)
		_, _ = io.WriteString(sess, "invalid user\n")
		return
	}
	log = log.With("identity", id, "remote", remote)
	if sshSession := sess.Context().SessionID(); sshSession != "" {
		log = log.With("ssh_session", sshSession)
	}
	ctx := logx.ContextWithIdentityLogger(sess.Context(), log, id)

	pty, winCh, ok := sess.Pty()
	if !ok {
		log.Info("ssh session rejected", "reason", "pty required")
		_, _ = io.WriteString(sess, "pty required\n")
		return
	}
	log.Info("ssh session opened", "term", pty.Term)
	defer log.Info("ssh session closed", "term", pty.Term)

	prefs := sessionprefs.New()
	if s.Theme != "" {
		prefs.SetTheme(string(s.Theme))
	}
	ctx = sessionprefs.WithContext(ctx, prefs)

	session, err := core.NewBoundSession(ctx, s.Service, s.Catalog.Tabs(), s.Catalog, id)
	if err != nil {
		log.Warn("ssh session open failed", "err", err)
		_, _ = io.WriteString(sess, "could not open tab list\n")
		return
	}

	renderer := lipgloss.NewRenderer(sess, termenv.WithProfile(colorProfile(pty.Term, sess.Environ())), termenv.WithTTY(true))
	var subscribe func(schema.IdentityID) (<-chan eventbus.Event, func())
	if s.EventBus != nil {
		subscribe = s.EventBus.Subscribe
	}
	model, err := tui.New(ctx, tui.Options{
		Session:   session,
		Subscribe: subscribe,
		Navigator: nav.NewHistory(""),
		Layout:    s.Layout,
		Prefs:     prefs,
		Logger:    log,
		Renderer:  renderer,
		Width:     pty.Window.Width,
		Height:    pty.Window.Height,
	})
	if err != nil {
		log.Warn("ssh session ui failed", "err", err)
		return
	}
	defer model.Close()

	opts := []tea.ProgramOption{
		tea.WithInput(sess),
		tea.WithOutput(sess),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
	}
	if s.Mouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	program := tea.NewProgram(model, opts...)
	go forwardWindowChanges(ctx, program, winCh)
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		log.Warn("ssh session ui exited", "err", err)
	}
}

func forwardWindowChanges(ctx context.Context, program *tea.Program, winCh <-chan gliderssh.Window) {
	for {
		select {
		case <-ctx.Done():
			return
		case win, ok := <-winCh:
			if !ok {
				return
			}
			program.Send(tea.WindowSizeMsg{Width: win.Width, Height: win.Height})
		}
	}
}

// colorProfile picks the richest color profile the client advertises.
func colorProfile(term string, environ []string) termenv.Profile {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key != "COLORTERM" {
			continue
		}
		switch strings.ToLower(value) {
		case "truecolor", "24bit":
			return termenv.TrueColor
		}
	}
	term = strings.ToLower(term)
	switch {
	case term == "" || term == "dumb":
		return termenv.Ascii
	case strings.Contains(term, "truecolor") || strings.Contains(term, "direct"):
		return termenv.TrueColor
	case strings.Contains(term, "256color"):
		return termenv.ANSI256
	default:
		return termenv.ANSI
	}
}

func (s *Server) hostSigner() (ssh.Signer, error) {
	if s.HostKeys != nil {
		return s.HostKeys.Signer(HostKeyName)
	}
	return EnsureHostKey(s.HostKeyPath)
}
