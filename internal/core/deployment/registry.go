package deployment

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// =============================================================================
// Registry Credentials
// =============================================================================

// Variables injected into the deployment files when registry credentials
// are configured.
const (
	SecretNameVariable       = "KUBERNETES_SECRET_NAME"
	DockerArchiveURIVariable = "MARATHON_DOCKER_CFG_ARCHIVE_URI"
)

// DockerArchiveName is the file name of the docker config archive Marathon
// fetches into the sandbox of each task.
const DockerArchiveName = "docker.tar.gz"

var (
	ErrNoRegistryAuth      = errors.New("no registry has credentials")
	ErrRelativeCredsPath   = errors.New("docker credentials path must be absolute")
	ErrUnfetchableArchive  = errors.New("path cannot be fetched by marathon")
	secretNameInvalidChars = regexp.MustCompile(`[^a-z0-9.-]+`)
)

// Registry is a private container registry and the credentials used to pull
// from it.
type Registry struct {
	Server   string `mapstructure:"server"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Email    string `mapstructure:"email"`
}

type dockerAuth struct {
	Auth  string `json:"auth"`
	Email string `json:"email,omitempty"`
}

type dockerConfig struct {
	Auths map[string]dockerAuth `json:"auths"`
}

// DockerConfigJSON renders a docker config.json holding an auth entry per
// registry. Registries without a username are skipped.
func DockerConfigJSON(registries []Registry) ([]byte, error) {
	cfg := dockerConfig{Auths: make(map[string]dockerAuth, len(registries))}
	for _, r := range registries {
		if r.Username == "" {
			continue
		}
		cfg.Auths[r.Server] = dockerAuth{
			Auth:  base64.StdEncoding.EncodeToString([]byte(r.Username + ":" + r.Password)),
			Email: r.Email,
		}
	}
	if len(cfg.Auths) == 0 {
		return nil, ErrNoRegistryAuth
	}
	return json.Marshal(cfg)
}

// DockerConfigArchive packs the docker config as .docker/config.json in a
// gzipped tarball, the layout Marathon expects for a fetched docker config.
func DockerConfigArchive(registries []Registry) ([]byte, error) {
	content, err := DockerConfigJSON(registries)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	hdr := &tar.Header{
		Name: ".docker/config.json",
		Mode: 0o600,
		Size: int64(len(content)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, fmt.Errorf("write archive header: %w", err)
	}
	if _, err := tw.Write(content); err != nil {
		return nil, fmt.Errorf("write archive entry: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

// SecretName returns the image pull secret name. A configured name wins;
// otherwise the name is derived from fallback. Either is reduced to a valid
// Kubernetes resource name.
//
// Example:
//
//	SecretName("", "Web App") // returns "acs-plugin-web-app"
func SecretName(configured, fallback string) string {
	name := strings.TrimSpace(configured)
	if name == "" {
		name = "acs-plugin-" + fallback
	}
	name = secretNameInvalidChars.ReplaceAllString(strings.ToLower(name), "-")
	name = strings.Trim(name, "-.")
	if len(name) > 253 {
		name = strings.TrimRight(name[:253], "-.")
	}
	if name == "" {
		return "acs-plugin-secret"
	}
	return name
}

// CredentialsPath returns the directory on the master that receives the
// docker config archive. A configured path must be absolute; without one the
// archive goes under the admin user's home directory.
func CredentialsPath(configured, adminUser, name string) (string, error) {
	path := strings.TrimSpace(configured)
	if path == "" {
		return fmt.Sprintf("/home/%s/acs-plugin-dcos.docker/acs-plugin-dcos-%s", adminUser, ProjectName(name)), nil
	}
	if !strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("%w: %q", ErrRelativeCredsPath, path)
	}
	path = strings.TrimRight(path, "/")
	if path == "" {
		path = "/"
	}
	return path, nil
}

// ArchiveURI returns the file URI Marathon fetches the archive from. The
// Mesos fetcher rejects paths containing a backslash, a single quote or NUL.
func ArchiveURI(dir string) (string, error) {
	path := strings.TrimRight(dir, "/") + "/" + DockerArchiveName
	if strings.ContainsAny(path, "\\'\x00") {
		return "", fmt.Errorf("%w: %q", ErrUnfetchableArchive, path)
	}
	return (&url.URL{Scheme: "file", Path: path}).String(), nil
}
