package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/artpar/clusterdeploy/internal/core/domain"
)

var ErrClusterNotFound = errors.New("container service not found")

// StaticDirectory resolves clusters from a fixed list, usually the
// configuration file.
type StaticDirectory struct {
	clusters []domain.Cluster
}

// NewStaticDirectory creates a directory over clusters.
func NewStaticDirectory(clusters ...domain.Cluster) *StaticDirectory {
	return &StaticDirectory{clusters: clusters}
}

// Lookup finds a cluster by resource group and name. Names compare case
// insensitively.
func (d *StaticDirectory) Lookup(_ context.Context, resourceGroup, name string) (domain.Cluster, error) {
	for _, c := range d.clusters {
		if strings.EqualFold(c.ResourceGroup, resourceGroup) && strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return domain.Cluster{}, fmt.Errorf("%w: %s/%s", ErrClusterNotFound, resourceGroup, name)
}
