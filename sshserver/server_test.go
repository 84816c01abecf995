package sshserver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/muesli/termenv"
)

func TestColorProfile(t *testing.T) {
	cases := []struct {
		term    string
		environ []string
		want    termenv.Profile
	}{
		{term: "xterm-256color", want: termenv.ANSI256},
		{term: "xterm", environ: []string{"COLORTERM=truecolor"}, want: termenv.TrueColor},
		{term: "xterm-direct", want: termenv.TrueColor},
		{term: "vt100", want: termenv.ANSI},
		{term: "dumb", want: termenv.Ascii},
		{term: "", environ: []string{"LANG=C"}, want: termenv.Ascii},
	}
	for _, tc := range cases {
		if got := colorProfile(tc.term, tc.environ); got != tc.want {
			t.Fatalf("term %q env %v: expected %v, got %v", tc.term, tc.environ, tc.want, got)
		}
	}
}

func TestListenAndServeRequiresDependencies(t *testing.T) {
	srv := &Server{HostKeyPath: filepath.Join(t.TempDir(), "host_key")}
	if err := srv.ListenAndServe(context.Background()); err == nil {
		t.Fatalf("expected missing service error")
	}
}

func TestEnsureHostKeyReusesKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "host_key")
	first, err := EnsureHostKey(path)
	if err != nil {
		t.Fatalf("create host key: %v", err)
	}
	second, err := EnsureHostKey(path)
	if err != nil {
		t.Fatalf("load host key: %v", err)
	}
	if string(first.PublicKey().Marshal()) != string(second.PublicKey().Marshal()) {
		t.Fatalf("expected host key to be reused")
	}
	if _, err := EnsureHostKey(""); err == nil {
		t.Fatalf("expected empty path error")
	}
}

func TestEnsureHostKeyWritesPrivateFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")
	path := filepath.Join(dir, "host_key")
	if _, err := EnsureHostKey(path); err != nil {
		t.Fatalf("create host key: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected mode 0600, got %v", info.Mode().Perm())
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the key file, got %d entries", len(entries))
	}
}

func TestEnsureHostKeyRejectsSharedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host_key")
	if _, err := EnsureHostKey(path); err != nil {
		t.Fatalf("create host key: %v", err)
	}
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	_, err := EnsureHostKey(path)
	if err == nil || !strings.Contains(err.Error(), "other users") {
		t.Fatalf("expected permission error, got %v", err)
	}
}
