// Package ssh runs commands on and copies files to a cluster master over SSH.
// This is part of the Imperative Shell - handles network I/O.
package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/artpar/clusterdeploy/internal/core/deployment"
)

// Config configures the SSH client.
type Config struct {
	Host           string
	Port           int
	User           string
	KnownHostsFile string        // empty disables host key verification
	ConnectTimeout time.Duration // Default: 10 seconds
	CommandTimeout time.Duration // Default: 5 minutes
}

// DefaultConfig returns the default configuration for host.
func DefaultConfig(host string, port int, user string) Config {
	return Config{
		Host:           host,
		Port:           port,
		User:           user,
		ConnectTimeout: 10 * time.Second,
		CommandTimeout: 5 * time.Minute,
	}
}

// CommandError is returned when a remote command exits non-zero.
type CommandError struct {
	Command    string
	ExitStatus int
	Output     string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("remote command exited with status %d: %s", e.ExitStatus, e.Output)
}

// Client is a lazily connected SSH client. It is safe for sequential use
// by one pipeline run; each command opens its own session.
type Client struct {
	config    Config
	signer    ssh.Signer
	logger    *slog.Logger
	mu        sync.Mutex // Protects sshClient
	sshClient *ssh.Client
}

// NewClient creates a new SSH client.
func NewClient(config Config, signer ssh.Signer, logger *slog.Logger) *Client {
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if config.CommandTimeout == 0 {
		config.CommandTimeout = 5 * time.Minute
	}
	return &Client{
		config: config,
		signer: signer,
		logger: logger.With("component", "ssh", "host", config.Host),
	}
}

// Addr is the host:port the client connects to.
func (c *Client) Addr() string {
	return net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))
}

// =============================================================================
// Connection Management
// =============================================================================

// connect establishes the SSH connection if not already connected.
func (c *Client) connect(ctx context.Context) (*ssh.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sshClient != nil {
		// Check if connection is still alive
		_, _, err := c.sshClient.SendRequest("keepalive@clusterdeploy", true, nil)
		if err == nil {
			return c.sshClient, nil
		}
		c.sshClient.Close()
		c.sshClient = nil
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if c.config.KnownHostsFile != "" {
		cb, err := knownhosts.New(c.config.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
		hostKeyCallback = cb
	}

	config := &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(c.signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.config.ConnectTimeout,
	}

	addr := c.Addr()
	dialer := net.Dialer{Timeout: c.config.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("SSH dial %s: %w", addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SSH handshake %s: %w", addr, err)
	}

	c.sshClient = ssh.NewClient(sshConn, chans, reqs)
	c.logger.Debug("SSH connection established")
	return c.sshClient, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sshClient != nil {
		err := c.sshClient.Close()
		c.sshClient = nil
		return err
	}
	return nil
}

// =============================================================================
// Commands
// =============================================================================

// Run executes command on the remote host and returns its combined output.
// Commands are not logged since some carry registry passwords.
func (c *Client) Run(ctx context.Context, command string) (string, error) {
	return c.run(ctx, command, nil)
}

// Upload writes content to remotePath, replacing any existing file.
func (c *Client) Upload(ctx context.Context, remotePath string, content []byte) error {
	_, err := c.run(ctx, "cat > "+deployment.Quote(remotePath), content)
	if err != nil {
		return fmt.Errorf("upload %s: %w", remotePath, err)
	}
	c.logger.Debug("file uploaded", "path", remotePath, "bytes", len(content))
	return nil
}

func (c *Client) run(ctx context.Context, command string, stdin []byte) (string, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return "", err
	}

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("create SSH session: %w", err)
	}
	defer session.Close()

	var output bytes.Buffer
	session.Stdout = &output
	session.Stderr = &output
	if stdin != nil {
		session.Stdin = bytes.NewReader(stdin)
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return "", ctx.Err()
	case <-time.After(c.config.CommandTimeout):
		_ = session.Signal(ssh.SIGKILL)
		return "", fmt.Errorf("command timeout after %v", c.config.CommandTimeout)
	case err := <-done:
		if err != nil {
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				return output.String(), &CommandError{Command: command, ExitStatus: exitErr.ExitStatus(), Output: output.String()}
			}
			return output.String(), fmt.Errorf("run remote command: %w", err)
		}
		return output.String(), nil
	}
}

// DialContext opens a TCP connection from the remote host to addr, for
// clients that talk to daemons listening only on the master.
func (c *Client) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	conn, err := client.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s via %s: %w", addr, c.Addr(), err)
	}
	return conn, nil
}
