package storage

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// sftpClientPool manages a pool of SFTP clients over a single SSH
// connection, using a channel-based semaphore for concurrent access.
type sftpClientPool struct {
	sshClient  *ssh.Client
	clients    chan *sftp.Client
	maxSize    int
	actualSize int32
	mu         sync.Mutex
	closed     bool
}

// newSFTPClientPool creates a pool pre-filled with initialSize clients.
// Parameters must satisfy 0 < initialSize <= maxSize.
func newSFTPClientPool(sshClient *ssh.Client, initialSize, maxSize int) (*sftpClientPool, error) {
	if initialSize <= 0 {
		return nil, fmt.Errorf("%w: initialSize must be greater than 0, got %d", ErrInvalidArgument, initialSize)
	}

	if initialSize > maxSize {
		return nil, fmt.Errorf("%w: initialSize (%d) must be <= maxSize (%d)", ErrInvalidArgument, initialSize, maxSize)
	}

	pool := &sftpClientPool{
		sshClient:  sshClient,
		clients:    make(chan *sftp.Client, maxSize),
		maxSize:    maxSize,
		actualSize: int32(initialSize), //nolint:gosec // validated small value
	}

	for i := 0; i < initialSize; i++ {
		client, err := sftp.NewClient(sshClient, sftp.UseConcurrentWrites(true))
		if err != nil {
			_ = pool.Close()
			return nil, fmt.Errorf("failed to create SFTP client %d/%d: %w", i+1, initialSize, err)
		}

		pool.clients <- client
	}

	return pool, nil
}

// Acquire retrieves a client, blocking until one is available.
func (p *sftpClientPool) Acquire() (*sftp.Client, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: SFTP pool is closed", ErrProviderUnavailable)
	}
	p.mu.Unlock()

	return <-p.clients, nil
}

// Release returns a client to the pool. If the pool has been closed in
// the meantime the client is closed instead.
func (p *sftpClientPool) Release(client *sftp.Client) {
	if client == nil {
		return
	}

	p.mu.Lock()
	poolClosed := p.closed
	p.mu.Unlock()

	if poolClosed {
		_ = client.Close()
		return
	}

	select {
	case p.clients <- client:
	default:
		// Pool full, should not happen.
		atomic.AddInt32(&p.actualSize, -1)
		_ = client.Close()
	}
}

// Size returns the current number of clients owned by the pool.
func (p *sftpClientPool) Size() int {
	return int(atomic.LoadInt32(&p.actualSize))
}

// Close closes the pool and every client in it. Idempotent.
// Does not close the underlying SSH connection; the pool does not own it.
func (p *sftpClientPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.clients)

	var firstErr error

	for client := range p.clients {
		err := client.Close()
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	atomic.StoreInt32(&p.actualSize, 0)

	return firstErr
}
