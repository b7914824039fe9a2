package deployment

import (
	"fmt"
	"strings"
)

// =============================================================================
// Swarm Commands
// =============================================================================

// swarmDockerHost points the compose CLI at the swarm endpoint on the master.
// The variable is set inline because sshd rejects environment passing by default.
const swarmDockerHost = "DOCKER_HOST=:2375"

// ComposeUpCommand creates or updates the services of a compose file.
func ComposeUpCommand(remoteFile, project string) string {
	return fmt.Sprintf("%s docker-compose -p %s -f %s up -d", swarmDockerHost, Quote(project), Quote(remoteFile))
}

// ComposeDownCommand removes the containers of a compose file.
func ComposeDownCommand(remoteFile, project string) string {
	return fmt.Sprintf("%s docker-compose -p %s -f %s down", swarmDockerHost, Quote(project), Quote(remoteFile))
}

// DockerLoginCommand logs the master into a private registry.
func DockerLoginCommand(server, username, password string) string {
	return fmt.Sprintf("docker login -u %s -p %s %s", Quote(username), Quote(password), Quote(server))
}

// MakeDirCommand creates a directory and its parents on the master.
func MakeDirCommand(dir string) string {
	return "mkdir -p -- " + Quote(dir)
}

// RemoveFileCommand deletes a file copied to the master.
func RemoveFileCommand(remoteFile string) string {
	return "rm -f -- " + Quote(remoteFile)
}

// =============================================================================
// Marathon Commands
// =============================================================================

// MarathonDeleteCommand removes an application. A missing application is
// not an error for curl.
func MarathonDeleteCommand(appID string) string {
	return fmt.Sprintf("curl -i -X DELETE %s", Quote("http://localhost/marathon/v2/apps/"+strings.TrimLeft(appID, "/")))
}

// MarathonDeployCommand posts an application definition. force=true
// overrides the lock a preceding delete may leave behind.
func MarathonDeployCommand(remoteFile string) string {
	return fmt.Sprintf("curl -i -H 'Content-Type: application/json' -d@%s http://localhost/marathon/v2/apps?force=true", Quote(remoteFile))
}

// =============================================================================
// Kubernetes Commands
// =============================================================================

// KubectlApplyCommand applies a manifest through kubectl on the master.
func KubectlApplyCommand(remoteFile string) string {
	return "kubectl apply -f " + Quote(remoteFile)
}

// KubectlSecretCommand creates or replaces an image pull secret from a docker
// config file on the master. Rendering the secret client-side and piping it
// to apply makes the command idempotent. An empty namespace uses the
// kubeconfig default.
func KubectlSecretCommand(name, namespace, configFile string) string {
	ns := ""
	if namespace != "" {
		ns = " --namespace " + Quote(namespace)
	}
	return fmt.Sprintf("kubectl create secret generic %s%s --type=kubernetes.io/dockerconfigjson --from-file=.dockerconfigjson=%s --dry-run=client -o yaml | kubectl apply%s -f -",
		Quote(name), ns, Quote(configFile), ns)
}
