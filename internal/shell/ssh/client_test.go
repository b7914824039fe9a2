package ssh

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// =============================================================================
// Test Server
// =============================================================================

// testServer is a minimal SSH server that understands "echo <text>",
// "exit <n>" and "cat > '<path>'".
type testServer struct {
	addr    string
	hostKey ssh.Signer

	mu    sync.Mutex
	files map[string]string
}

func newSigner(t *testing.T) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)
	return signer
}

func startServer(t *testing.T) *testServer {
	t.Helper()
	srv := &testServer{hostKey: newSigner(t), files: map[string]string{}}

	config := &ssh.ServerConfig{
		PublicKeyCallback: func(ssh.ConnMetadata, ssh.PublicKey) (*ssh.Permissions, error) {
			return nil, nil
		},
	}
	config.AddHostKey(srv.hostKey)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	srv.addr = ln.Addr().String()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.serve(conn, config)
		}
	}()
	return srv
}

func (s *testServer) serve(conn net.Conn, config *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)
	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			newCh.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, requests, err := newCh.Accept()
		if err != nil {
			return
		}
		go s.session(ch, requests)
	}
}

func (s *testServer) session(ch ssh.Channel, requests <-chan *ssh.Request) {
	defer ch.Close()
	for req := range requests {
		if req.Type != "exec" {
			req.Reply(false, nil)
			continue
		}
		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			req.Reply(false, nil)
			return
		}
		req.Reply(true, nil)

		status := s.exec(ch, payload.Command)
		ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
		return
	}
}

func (s *testServer) exec(ch ssh.Channel, command string) uint32 {
	switch {
	case strings.HasPrefix(command, "echo "):
		io.WriteString(ch, strings.TrimPrefix(command, "echo ")+"\n")
		return 0
	case strings.HasPrefix(command, "exit "):
		n, _ := strconv.Atoi(strings.TrimPrefix(command, "exit "))
		io.WriteString(ch.Stderr(), "failed\n")
		return uint32(n)
	case strings.HasPrefix(command, "cat > "):
		data, _ := io.ReadAll(ch)
		path := strings.Trim(strings.TrimPrefix(command, "cat > "), "'")
		s.mu.Lock()
		s.files[path] = string(data)
		s.mu.Unlock()
		return 0
	default:
		return 127
	}
}

func (s *testServer) file(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[path]
}

func newTestClient(t *testing.T, srv *testServer, knownHosts string) *Client {
	t.Helper()
	host, portStr, err := net.SplitHostPort(srv.addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := DefaultConfig(host, port, "azureuser")
	cfg.KnownHostsFile = knownHosts
	cfg.CommandTimeout = 5 * time.Second
	client := NewClient(cfg, newSigner(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { client.Close() })
	return client
}

// =============================================================================
// Client Tests
// =============================================================================

func TestClient_Run(t *testing.T) {
	srv := startServer(t)
	client := newTestClient(t, srv, "")

	out, err := client.Run(context.Background(), "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	// second command reuses the connection
	out, err = client.Run(context.Background(), "echo again")
	require.NoError(t, err)
	assert.Equal(t, "again\n", out)
}

func TestClient_Run_NonZeroExit(t *testing.T) {
	srv := startServer(t)
	client := newTestClient(t, srv, "")

	out, err := client.Run(context.Background(), "exit 3")
	require.Error(t, err)

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 3, cmdErr.ExitStatus)
	assert.Equal(t, "failed\n", out)
}

func TestClient_Upload(t *testing.T) {
	srv := startServer(t)
	client := newTestClient(t, srv, "")

	err := client.Upload(context.Background(), "acsDep1.yml", []byte("services: {}\n"))
	require.NoError(t, err)
	assert.Equal(t, "services: {}\n", srv.file("acsDep1.yml"))
}

func TestClient_Run_Cancelled(t *testing.T) {
	srv := startServer(t)
	client := newTestClient(t, srv, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Run(ctx, "echo never")
	assert.Error(t, err)
}

func TestClient_KnownHosts(t *testing.T) {
	srv := startServer(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "known_hosts")
	line := knownhosts.Line([]string{knownhosts.Normalize(srv.addr)}, srv.hostKey.PublicKey())
	require.NoError(t, os.WriteFile(good, []byte(line+"\n"), 0600))

	out, err := newTestClient(t, srv, good).Run(context.Background(), "echo trusted")
	require.NoError(t, err)
	assert.Equal(t, "trusted\n", out)

	bad := filepath.Join(dir, "known_hosts_other")
	other := knownhosts.Line([]string{knownhosts.Normalize(srv.addr)}, newSigner(t).PublicKey())
	require.NoError(t, os.WriteFile(bad, []byte(other+"\n"), 0600))

	_, err = newTestClient(t, srv, bad).Run(context.Background(), "echo untrusted")
	assert.Error(t, err)
}
