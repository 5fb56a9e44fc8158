// ABOUTME: Backend descriptor types parsed from per-backend manifest files.
// ABOUTME: Descriptors are immutable after loading; the tool catalog is declared, not introspected.

package manifest

// Kind identifies the transport a backend is reached through.
type Kind string

const (
	// KindExec backends are long-lived external processes reached by running
	// a command inside them (docker exec style) with JSON-RPC over stdio.
	KindExec Kind = "exec"
	// KindHTTP backends expose a synchronous HTTP endpoint for tool calls.
	KindHTTP Kind = "http"
)

// ToolSpec describes one tool a backend advertises. Parameter descriptions
// are opaque strings; whether a parameter is required is encoded in its
// description text and not validated at this layer.
type ToolSpec struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Parameters  map[string]string `yaml:"parameters"`
}

// ExecConfig holds connection parameters for exec backends.
type ExecConfig struct {
	// Container is the name of the already-running process/container.
	Container string `yaml:"container"`
	// Workdir is the working directory inside the container, also used as
	// the target of the reachability probe.
	Workdir string `yaml:"workdir"`
	// Command is the argv run inside the container for each tool call.
	Command []string `yaml:"command"`
	Port    int      `yaml:"port"`
}

// HTTPConfig holds connection parameters for HTTP backends.
type HTTPConfig struct {
	BaseURL string `yaml:"base_url"`
	// HealthPath is probed with a GET; defaults to /health.
	HealthPath string `yaml:"health_path"`
	// CallPath receives tool call POSTs; defaults to /mcp.
	CallPath string `yaml:"call_path"`
}

// Descriptor is the immutable description of one backend.
//
// ID is the backend's unique identity and comes from the manifest's location
// (directory or file name), matching how the backend is addressed in calls.
type Descriptor struct {
	ID          string      `yaml:"-"`
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Enabled     bool        `yaml:"enabled"`
	Adapter     string      `yaml:"adapter"`
	Exec        *ExecConfig `yaml:"exec"`
	HTTP        *HTTPConfig `yaml:"http"`
	Tools       []ToolSpec  `yaml:"tools"`

	// Kind is derived from which connection block is present.
	Kind Kind `yaml:"-"`
}

// Tool returns the declared tool with the given name, if any.
func (d *Descriptor) Tool(name string) (*ToolSpec, bool) {
	for i := range d.Tools {
		if d.Tools[i].Name == name {
			return &d.Tools[i], true
		}
	}
	return nil, false
}

// AdapterName returns the adapter implementation name for this backend:
// the explicit manifest reference if present, otherwise the conventional
// "<id>_client" name.
func (d *Descriptor) AdapterName() string {
	if d.Adapter != "" {
		return d.Adapter
	}
	return d.ID + "_client"
}

// Set holds the outcome of loading a manifest directory.
type Set struct {
	descriptors map[string]*Descriptor
	order       []string

	// failed maps backend id to the load error that excluded it. Failures
	// are isolated: one bad manifest never prevents others from loading.
	failed map[string]error
}

// NewSet builds a Set from descriptors directly, bypassing the filesystem.
// Used by tests and by embedders that configure backends programmatically.
func NewSet(descriptors ...*Descriptor) *Set {
	s := &Set{
		descriptors: make(map[string]*Descriptor, len(descriptors)),
		failed:      make(map[string]error),
	}
	for _, d := range descriptors {
		if _, exists := s.descriptors[d.ID]; exists {
			continue
		}
		s.descriptors[d.ID] = d
		s.order = append(s.order, d.ID)
	}
	return s
}

// Get returns the descriptor with the given id, enabled or not.
func (s *Set) Get(id string) (*Descriptor, bool) {
	d, ok := s.descriptors[id]
	return d, ok
}

// All returns every loaded descriptor in manifest scan order, including
// disabled ones, for introspection and tooling.
func (s *Set) All() []*Descriptor {
	out := make([]*Descriptor, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.descriptors[id])
	}
	return out
}

// Enabled returns the descriptors eligible for orchestration, keyed by id.
func (s *Set) Enabled() map[string]*Descriptor {
	out := make(map[string]*Descriptor)
	for id, d := range s.descriptors {
		if d.Enabled {
			out[id] = d
		}
	}
	return out
}

// Failed returns per-backend load errors keyed by backend id.
func (s *Set) Failed() map[string]error {
	return s.failed
}

// Len returns the number of successfully loaded descriptors.
func (s *Set) Len() int {
	return len(s.descriptors)
}
