package compose

// Project is the validated content of one compose file.
type Project struct {
	Name     string    `json:"name"`
	Legacy   bool      `json:"legacy"` // version 1 file with services at the root
	Services []Service `json:"services"`
}

// Service is a single service definition.
type Service struct {
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
	Build bool   `json:"build,omitempty"`
	Ports []Port `json:"ports,omitempty"`
}

// Port represents a port mapping.
type Port struct {
	Target    uint32 `json:"target"`              // Container port
	Published string `json:"published,omitempty"` // Host port or range
	Protocol  string `json:"protocol,omitempty"`  // tcp, udp
	HostIP    string `json:"host_ip,omitempty"`   // Bind IP
}

// ServiceNames returns the service names in file order for legacy files and
// sorted order otherwise.
func (p *Project) ServiceNames() []string {
	names := make([]string, 0, len(p.Services))
	for _, s := range p.Services {
		names = append(names, s.Name)
	}
	return names
}
