// Package sshkeys keeps SSH host keys encrypted at rest. A kryptograf root
// key in the store file wraps one data key per named host key.
package sshkeys

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"

	"pkt.systems/kryptograf"
	"pkt.systems/kryptograf/keymgmt"
	"pkt.systems/pslog"
)

const (
	privateSuffix    = ".enc"
	publicSuffix     = ".pub"
	descriptorPrefix = "tabstrip:hostkey:"
)

// Vault stores named ed25519 host keys encrypted under a root key.
type Vault struct {
	storePath string
	dir       string
	log       pslog.Logger
}

// NewVault loads or creates the root key store and the key directory.
func NewVault(storePath, dir string, logger pslog.Logger) (*Vault, error) {
	if strings.TrimSpace(storePath) == "" {
		return nil, errors.New("ssh key store path is required")
	}
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("ssh key directory is required")
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	logger = logger.With("ssh_key_store", storePath, "ssh_key_dir", dir)
	if err := ensureKeyStore(storePath); err != nil {
		logger.Warn("ssh key store ensure failed", "err", err)
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	logger.Debug("ssh key store ensure ok")
	return &Vault{storePath: storePath, dir: dir, log: logger}, nil
}

func ensureKeyStore(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	store, err := keymgmt.LoadProto(path)
	if err != nil {
		return err
	}
	if _, err := store.EnsureRootKey(); err != nil {
		return err
	}
	return store.Commit()
}

// Signer returns the named host key, generating it on first use.
func (v *Vault) Signer(name string) (ssh.Signer, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if _, err := os.Stat(v.privatePath(name)); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return v.generate(name, false)
	}
	return v.load(name)
}

// Rotate replaces the named host key and its data key.
func (v *Vault) Rotate(name string) (ssh.Signer, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	return v.generate(name, true)
}

// PublicKey returns the authorized_keys form of the named host key.
func (v *Vault) PublicKey(name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	data, err := os.ReadFile(v.publicPath(name))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (v *Vault) load(name string) (ssh.Signer, error) {
	log := v.log.With("key", name)
	material, root, err := v.material(name, false)
	if err != nil {
		log.Warn("ssh key load failed", "err", err)
		return nil, err
	}
	file, err := os.Open(v.privatePath(name))
	if err != nil {
		log.Warn("ssh key load failed", "err", err)
		return nil, err
	}
	defer func() { _ = file.Close() }()
	reader, err := kryptograf.New(root).DecryptReader(file, material)
	if err != nil {
		log.Warn("ssh key decrypt failed", "err", err)
		return nil, err
	}
	defer func() { _ = reader.Close() }()
	plain, err := io.ReadAll(reader)
	if err != nil {
		log.Warn("ssh key decrypt failed", "err", err)
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(plain)
	if err != nil {
		return nil, fmt.Errorf("parse host key %q: %w", name, err)
	}
	log.Debug("ssh key load ok")
	return signer, nil
}

func (v *Vault) generate(name string, rotate bool) (ssh.Signer, error) {
	log := v.log.With("key", name)
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate host key: %w", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "tabstrip")
	if err != nil {
		return nil, fmt.Errorf("marshal host key: %w", err)
	}
	material, root, err := v.material(name, rotate)
	if err != nil {
		log.Warn("ssh key write failed", "err", err)
		return nil, err
	}
	if err := v.writeEncrypted(name, root, material, pem.EncodeToMemory(block)); err != nil {
		log.Warn("ssh key write failed", "err", err)
		return nil, err
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(v.publicPath(name), ssh.MarshalAuthorizedKey(signer.PublicKey()), 0o644); err != nil {
		log.Warn("ssh key write failed", "err", err)
		return nil, err
	}
	action := "generated"
	if rotate {
		action = "rotated"
	}
	log.Info("ssh key write ok", "action", action, "fingerprint", ssh.FingerprintSHA256(signer.PublicKey()))
	return signer, nil
}

// writeEncrypted replaces the private key file atomically.
func (v *Vault) writeEncrypted(name string, root keymgmt.RootKey, material keymgmt.Material, plain []byte) error {
	tmp, err := os.CreateTemp(v.dir, name+"-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		return fail(err)
	}
	writer, err := kryptograf.New(root).EncryptWriter(tmp, material)
	if err != nil {
		return fail(err)
	}
	if _, err := io.Copy(writer, bytes.NewReader(plain)); err != nil {
		_ = writer.Close()
		return fail(err)
	}
	if err := writer.Close(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, v.privatePath(name)); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// material returns the data key for name. Rotation mints a fresh one.
func (v *Vault) material(name string, rotate bool) (keymgmt.Material, keymgmt.RootKey, error) {
	store, err := keymgmt.LoadProto(v.storePath)
	if err != nil {
		return keymgmt.Material{}, keymgmt.RootKey{}, err
	}
	root, err := store.EnsureRootKey()
	if err != nil {
		return keymgmt.Material{}, keymgmt.RootKey{}, err
	}
	descName := descriptorPrefix + name
	var material keymgmt.Material
	if rotate {
		material, err = keymgmt.MintDEK(root, []byte(descName))
		if err == nil {
			err = store.SetDescriptor(descName, material.Descriptor)
		}
	} else {
		material, err = store.EnsureDescriptor(descName, root, []byte(descName))
	}
	if err != nil {
		return keymgmt.Material{}, keymgmt.RootKey{}, err
	}
	if err := store.Commit(); err != nil {
		return keymgmt.Material{}, keymgmt.RootKey{}, err
	}
	return material, root, nil
}

func (v *Vault) privatePath(name string) string {
	return filepath.Join(v.dir, name+privateSuffix)
}

func (v *Vault) publicPath(name string) string {
	return filepath.Join(v.dir, name+publicSuffix)
}

func validName(name string) error {
	if name == "" {
		return errors.New("ssh key name is required")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("invalid ssh key name %q", name)
		}
	}
	return nil
}
