package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"

	"pkt.systems/tabstrip/schema"
)

func TestRootHasCommands(t *testing.T) {
	root := newRootCmd()
	want := map[string]bool{"run": false, "serve": false, "migrate": false, "tabs": false, "keys": false, "init": false, "version": false}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("expected %s subcommand", name)
		}
	}
}

func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	cfgPath := filepath.Join(dir, "config.yaml")
	content := strings.Join([]string{
		"config_version: 1",
		"state_dir: " + filepath.Join(dir, "state"),
		"storage:",
		"  backend: file",
		"  legacy_path: " + filepath.Join(dir, "tabs-layout.json"),
		"identity:",
		"  device_file: " + filepath.Join(dir, "device"),
		"ssh:",
		"  authorized_keys_path: " + filepath.Join(dir, "authorized_keys"),
		"",
	}, "\n")
	if err := os.WriteFile(cfgPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir, cfgPath
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out.String()
}

func TestTabsListPartitionsByWidth(t *testing.T) {
	_, cfgPath := writeTestConfig(t)
	out := execute(t, "tabs", "list", "--config", cfgPath, "--identity", "alice", "--width", "80")
	if n := strings.Count(out, " bar "); n != 4 {
		t.Fatalf("expected 4 tabs in the bar, got %d:\n%s", n, out)
	}
	if n := strings.Count(out, " menu "); n != 10 {
		t.Fatalf("expected 10 tabs in the menu, got %d:\n%s", n, out)
	}
	if !strings.Contains(out, "# identity alice, width 80") {
		t.Fatalf("missing header:\n%s", out)
	}
}

func TestTabsResetWritesCatalog(t *testing.T) {
	dir, cfgPath := writeTestConfig(t)
	out := execute(t, "tabs", "reset", "--config", cfgPath, "--identity", "bob")
	if !strings.Contains(out, "identity bob: reset to 14 tabs") {
		t.Fatalf("unexpected output: %q", out)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "state"))
	if err != nil {
		t.Fatalf("read state dir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("expected a stored document for bob")
	}
}

func TestTabsRejectsInvalidIdentity(t *testing.T) {
	_, cfgPath := writeTestConfig(t)
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"tabs", "list", "--config", cfgPath, "--identity", "   "})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Fatalf("expected invalid identity error")
	}
}

func TestReadPubKey(t *testing.T) {
	if got, err := readPubKey(nil, []string{"alice", "ssh-ed25519 AAAA"}, ""); err != nil || got != "ssh-ed25519 AAAA" {
		t.Fatalf("unexpected arg key: %q %v", got, err)
	}
	if got, err := readPubKey(strings.NewReader("ssh-ed25519 BBBB\n"), []string{"alice"}, "-"); err != nil || got != "ssh-ed25519 BBBB\n" {
		t.Fatalf("unexpected stdin key: %q %v", got, err)
	}
	if _, err := readPubKey(nil, []string{"alice"}, ""); err == nil {
		t.Fatalf("expected error without key source")
	}
}

func TestWriteTabTableMarksActiveAndPinned(t *testing.T) {
	var out bytes.Buffer
	snapshot := schema.LayoutSnapshot{
		Width:    40,
		Visible:  []schema.TabView{{ID: "home", Title: "Home", URL: "/", Pinned: true, Active: true}},
		Overflow: []schema.TabView{{ID: "docs", Title: "Docs", URL: "/docs"}},
	}
	if err := writeTabTable(&out, "alice", snapshot); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[2], "*") || !strings.Contains(lines[2], "(active)") {
		t.Fatalf("expected pinned active row, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "menu") {
		t.Fatalf("expected overflow row, got %q", lines[3])
	}
}

func TestInitWritesConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "cfg", "config.yaml")
	execute(t, "init", "--output", path)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "config_version: 1") {
		t.Fatalf("unexpected config:\n%s", data)
	}
}

func TestKeysAddListAndHost(t *testing.T) {
	dir, cfgPath := writeTestConfig(t)
	raw, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	key, err := ssh.NewPublicKey(raw)
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	pub := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(key)))
	execute(t, "keys", "add", "--config", cfgPath, "Dave", pub)
	out := execute(t, "keys", "list", "--config", cfgPath)
	if !strings.HasPrefix(out, "dave\tssh-ed25519\tSHA256:") {
		t.Fatalf("unexpected key list: %q", out)
	}
	host := execute(t, "keys", "host", "--config", cfgPath)
	if !strings.HasPrefix(host, "SHA256:") || !strings.Contains(host, "ssh-ed25519 ") {
		t.Fatalf("unexpected host key output: %q", host)
	}
	if _, err := os.Stat(filepath.Join(dir, ".tabstrip", "ssh", "keys", "ssh-host.enc")); err != nil {
		t.Fatalf("expected encrypted host key: %v", err)
	}
}
