package docker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

type fakeDaemon struct {
	containers []map[string]any
	filters    string
}

func (d *fakeDaemon) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/_ping"):
		w.Header().Set("API-Version", "1.41")
		w.Write([]byte("OK"))
	case strings.HasSuffix(r.URL.Path, "/containers/json"):
		d.filters = r.URL.Query().Get("filters")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(d.containers)
	default:
		http.NotFound(w, r)
	}
}

func newTestInspector(t *testing.T, daemon http.Handler) *Inspector {
	t.Helper()
	srv := httptest.NewServer(daemon)
	t.Cleanup(srv.Close)

	host := "tcp://" + strings.TrimPrefix(srv.URL, "http://")
	inspector, err := NewInspector(host, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { inspector.Close() })
	return inspector
}

func composeContainer(id, name, service, state string) map[string]any {
	return map[string]any{
		"Id":      id,
		"Names":   []string{"/" + name},
		"Image":   "nginx:latest",
		"State":   state,
		"Status":  "Up 2 minutes",
		"Created": 1700000000,
		"Labels": map[string]string{
			LabelComposeProject: "shop",
			LabelComposeService: service,
		},
		"Ports": []map[string]any{
			{"PrivatePort": 80, "PublicPort": 8080, "Type": "tcp"},
		},
	}
}

// =============================================================================
// Inspector Tests
// =============================================================================

func TestInspector_ListProjectContainers(t *testing.T) {
	daemon := &fakeDaemon{containers: []map[string]any{
		composeContainer("b2", "shop_worker_1", "worker", "exited"),
		composeContainer("a1", "shop_web_1", "web", "running"),
	}}
	inspector := newTestInspector(t, daemon)

	containers, err := inspector.ListProjectContainers(context.Background(), "shop")
	require.NoError(t, err)
	require.Len(t, containers, 2)

	web := containers[0]
	assert.Equal(t, "shop_web_1", web.Name)
	assert.Equal(t, "web", web.Service)
	assert.True(t, web.IsRunning())
	assert.Equal(t, []PortBinding{{ContainerPort: 80, HostPort: 8080, Protocol: "tcp"}}, web.Ports)
	assert.False(t, containers[1].IsRunning())

	assert.Contains(t, daemon.filters, "com.docker.compose.project=shop")
}

func TestInspector_RunningServices(t *testing.T) {
	daemon := &fakeDaemon{containers: []map[string]any{
		composeContainer("c3", "shop_web_2", "web", "running"),
		composeContainer("a1", "shop_web_1", "web", "running"),
		composeContainer("b2", "shop_api_1", "api", "running"),
		composeContainer("d4", "shop_worker_1", "worker", "exited"),
	}}
	inspector := newTestInspector(t, daemon)

	services, err := inspector.RunningServices(context.Background(), "shop")
	require.NoError(t, err)
	assert.Equal(t, []string{"api", "web"}, services)
}

func TestInspector_RunningServices_NothingRunning(t *testing.T) {
	daemon := &fakeDaemon{containers: []map[string]any{
		composeContainer("d4", "shop_worker_1", "worker", "exited"),
	}}
	inspector := newTestInspector(t, daemon)

	_, err := inspector.RunningServices(context.Background(), "shop")
	assert.True(t, errors.Is(err, ErrNoContainers))
}

func TestInspector_DaemonError(t *testing.T) {
	inspector := newTestInspector(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/_ping") {
			w.Header().Set("API-Version", "1.41")
			return
		}
		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
	}))

	_, err := inspector.ListProjectContainers(context.Background(), "shop")
	require.Error(t, err)

	var dockerErr *DockerError
	require.ErrorAs(t, err, &dockerErr)
	assert.Equal(t, "shop", dockerErr.ID)
	assert.True(t, errors.Is(err, ErrConnectionFailed))
}
