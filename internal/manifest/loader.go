// ABOUTME: Scans a directory of backend manifests and parses them into descriptors.
// ABOUTME: Resolves each backend's adapter implementation through a registry lookup.

package manifest

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrAdapterNotFound indicates that neither the manifest's explicit adapter
// reference nor the conventional "<id>_client" name is registered.
var ErrAdapterNotFound = errors.New("adapter implementation not found")

// ErrDuplicateBackend indicates two manifests declare the same backend id.
var ErrDuplicateBackend = errors.New("duplicate backend id")

// Error is a manifest load error scoped to a single backend.
type Error struct {
	BackendID string
	Path      string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("manifest %s (%s): %v", e.BackendID, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Resolver reports whether an adapter implementation name is registered.
// Satisfied by adapter.Registry.
type Resolver interface {
	Has(name string) bool
}

// Loader discovers backend manifests in a directory.
//
// Each backend lives either in <dir>/<id>/manifest.yaml or in a flat
// <dir>/<id>.yaml file; the id is taken from the directory or file name.
// Loading is idempotent and side-effect free: every call re-reads the
// filesystem and returns fresh descriptors. Caching is the caller's concern.
type Loader struct {
	resolver Resolver
	logger   *slog.Logger
}

// NewLoader creates a loader that validates adapter references against the
// given resolver.
func NewLoader(resolver Resolver, logger *slog.Logger) *Loader {
	return &Loader{
		resolver: resolver,
		logger:   logger.With("component", "manifest"),
	}
}

// Load scans dir and returns the parsed descriptor set.
//
// A malformed manifest excludes only its own backend: the error is recorded
// in the set's Failed map and logged, and loading continues. Load returns a
// non-nil error only when the directory itself cannot be read.
func (l *Loader) Load(dir string) (*Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading manifest directory: %w", err)
	}

	set := &Set{
		descriptors: make(map[string]*Descriptor),
		failed:      make(map[string]error),
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		var id, path string
		switch {
		case entry.IsDir():
			id = name
			path = filepath.Join(dir, name, "manifest.yaml")
			if _, err := os.Stat(path); err != nil {
				l.logger.Warn("backend directory has no manifest.yaml, skipping", "backend", id)
				continue
			}
		case strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml"):
			id = strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
			path = filepath.Join(dir, name)
		default:
			continue
		}

		if _, exists := set.descriptors[id]; exists {
			set.failed[id] = &Error{BackendID: id, Path: path, Err: ErrDuplicateBackend}
			l.logger.Warn("duplicate backend id, keeping first manifest", "backend", id, "path", path)
			continue
		}

		desc, err := l.parse(path, id)
		if err != nil {
			set.failed[id] = err
			l.logger.Warn("failed to load manifest", "backend", id, "error", err)
			continue
		}

		set.descriptors[id] = desc
		set.order = append(set.order, id)
		l.logger.Info("loaded backend manifest",
			"backend", id,
			"kind", desc.Kind,
			"enabled", desc.Enabled,
			"tools", len(desc.Tools),
		)
	}

	return set, nil
}

// parse reads and validates a single manifest file.
func (l *Loader) parse(path, id string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{BackendID: id, Path: path, Err: err}
	}

	// Expand ${VAR} so credentials can be sourced from the environment and
	// passed through verbatim.
	expanded := expandEnvVars(string(data))

	var desc Descriptor
	if err := yaml.Unmarshal([]byte(expanded), &desc); err != nil {
		return nil, &Error{BackendID: id, Path: path, Err: fmt.Errorf("parsing yaml: %w", err)}
	}
	desc.ID = id

	if err := l.validate(&desc); err != nil {
		return nil, &Error{BackendID: id, Path: path, Err: err}
	}
	return &desc, nil
}

// validate checks required fields, derives the transport kind, and resolves
// the adapter implementation name.
func (l *Loader) validate(d *Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if d.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case d.Exec != nil && d.HTTP != nil:
		return fmt.Errorf("exec and http connection blocks are mutually exclusive")
	case d.Exec != nil:
		if d.Exec.Container == "" {
			return fmt.Errorf("exec.container is required")
		}
		if len(d.Exec.Command) == 0 {
			return fmt.Errorf("exec.command is required")
		}
		d.Kind = KindExec
	case d.HTTP != nil:
		if d.HTTP.BaseURL == "" {
			return fmt.Errorf("http.base_url is required")
		}
		d.Kind = KindHTTP
	default:
		return fmt.Errorf("an exec or http connection block is required")
	}

	if len(d.Tools) == 0 {
		return fmt.Errorf("at least one tool is required")
	}
	seen := make(map[string]bool, len(d.Tools))
	for _, tool := range d.Tools {
		if tool.Name == "" {
			return fmt.Errorf("tool name is required")
		}
		if seen[tool.Name] {
			return fmt.Errorf("duplicate tool %q", tool.Name)
		}
		seen[tool.Name] = true
	}

	if l.resolver != nil && !l.resolver.Has(d.AdapterName()) {
		return fmt.Errorf("%w: %q", ErrAdapterNotFound, d.AdapterName())
	}
	return nil
}

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}
