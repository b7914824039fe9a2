package compose

import (
	"context"
	"sort"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Parser Functions
// =============================================================================

// LoadProject validates a compose file and lists its services.
// Versioned files go through the compose-spec loader with the given
// environment for interpolation. Version 1 files, which keep services at the
// document root, are only checked for an image or build per service.
func LoadProject(content []byte, projectName string, env map[string]string) (*Project, error) {
	if strings.TrimSpace(string(content)) == "" {
		return nil, ErrEmptyInput
	}

	var dict map[string]any
	if err := yaml.Unmarshal(content, &dict); err != nil || dict == nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}

	_, hasVersion := dict["version"]
	_, hasServices := dict["services"]
	if !hasVersion && !hasServices {
		return loadLegacy(content, projectName)
	}

	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: content,
				Config:  dict,
			},
		},
		Environment: types.Mapping(env),
	}, func(opts *loader.Options) {
		opts.SetProjectName(projectName, true)
		opts.SkipValidation = false
		opts.SkipInterpolation = false
		// Don't resolve paths since we're in-memory
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "dependency cycle detected") {
			return nil, NewParseError("", "circular dependency detected", ErrCircularDependency)
		}
		return nil, NewParseError("", errStr, ErrInvalidProject)
	}

	if len(project.Services) == 0 {
		return nil, ErrNoServices
	}

	deps := make(map[string][]string, len(project.Services))
	out := &Project{Name: projectName}
	for _, svc := range project.Services {
		for dep := range svc.DependsOn {
			deps[svc.Name] = append(deps[svc.Name], dep)
		}
		if svc.Image == "" && svc.Build == nil {
			return nil, NewParseError("services."+svc.Name, "service must have image or build", ErrServiceNoImage)
		}
		service := Service{Name: svc.Name, Image: svc.Image, Build: svc.Build != nil}
		for _, p := range svc.Ports {
			service.Ports = append(service.Ports, Port{
				Target:    p.Target,
				Published: p.Published,
				Protocol:  p.Protocol,
				HostIP:    p.HostIP,
			})
		}
		out.Services = append(out.Services, service)
	}
	sort.Slice(out.Services, func(i, j int) bool {
		return out.Services[i].Name < out.Services[j].Name
	})

	if err := detectCircularDependencies(out.ServiceNames(), deps); err != nil {
		return nil, err
	}
	return out, nil
}

// detectCircularDependencies walks depends_on edges depth first.
func detectCircularDependencies(names []string, deps map[string][]string) error {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int, len(names))

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return NewParseError("services."+name+".depends_on", "circular dependency detected", ErrCircularDependency)
		case visited:
			return nil
		}
		state[name] = visiting
		for _, dep := range deps[name] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = visited
		return nil
	}

	for _, name := range names {
		if state[name] == unvisited {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadLegacy lists the services of a version 1 file in document order.
func loadLegacy(content []byte, projectName string) (*Project, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(content, &root); err != nil || len(root.Content) == 0 {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, NewParseError("", "top level must be a mapping", ErrInvalidYAML)
	}

	out := &Project{Name: projectName, Legacy: true}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		name := doc.Content[i].Value
		var def struct {
			Image string `yaml:"image"`
			Build any    `yaml:"build"`
		}
		if err := doc.Content[i+1].Decode(&def); err != nil {
			return nil, NewParseError(name, "service definition must be a mapping", ErrInvalidYAML)
		}
		if def.Image == "" && def.Build == nil {
			return nil, NewParseError(name, "service must have image or build", ErrServiceNoImage)
		}
		out.Services = append(out.Services, Service{Name: name, Image: def.Image, Build: def.Build != nil})
	}
	if len(out.Services) == 0 {
		return nil, ErrNoServices
	}
	return out, nil
}
