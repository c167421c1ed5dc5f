package schema

import (
	"regexp"
	"sort"
	"strconv"
)

// componentRegistry assigns stable component names to classes and records
// their schemas once.
type componentRegistry struct {
	names     map[string]string
	schemas   map[string]map[string]any
	usedNames map[string]struct{}
}

func newComponentRegistry() *componentRegistry {
	return &componentRegistry{
		names:     map[string]string{},
		schemas:   map[string]map[string]any{},
		usedNames: map[string]struct{}{},
	}
}

// reference returns the component name for key, reporting whether it was
// newly assigned.
func (r *componentRegistry) reference(key, hint string) (string, bool) {
	if name, ok := r.names[key]; ok {
		return name, false
	}
	name := r.uniqueName(hint)
	r.names[key] = name
	return name, true
}

func (r *componentRegistry) define(name string, schema map[string]any) {
	r.schemas[name] = schema
}

func (r *componentRegistry) uniqueName(hint string) string {
	safe := sanitizeComponentName(hint)
	if safe == "" {
		safe = "Class"
	}
	candidate := safe
	for suffix := 1; ; suffix++ {
		if _, taken := r.usedNames[candidate]; !taken {
			r.usedNames[candidate] = struct{}{}
			return candidate
		}
		candidate = safe + "_" + strconv.Itoa(suffix)
	}
}

func (r *componentRegistry) componentsMap() map[string]any {
	if len(r.schemas) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make(map[string]any, len(names))
	for _, name := range names {
		out[name] = r.schemas[name]
	}
	return out
}

var componentNameRegexp = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

func sanitizeComponentName(name string) string {
	name = componentNameRegexp.ReplaceAllString(name, "_")
	for len(name) > 0 && name[0] == '_' {
		name = name[1:]
	}
	for len(name) > 0 && name[len(name)-1] == '_' {
		name = name[:len(name)-1]
	}
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}
