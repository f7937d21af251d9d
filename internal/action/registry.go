package action

import (
	"fmt"
	"sort"

	"github.com/ericfisherdev/prpilot/internal/domain/model"
)

// Registry indexes action kinds by name.
type Registry struct {
	kinds map[string]Kind
}

// NewRegistry builds a registry. It panics on duplicate names since kinds are
// registered once at startup.
func NewRegistry(kinds ...Kind) *Registry {
	r := &Registry{kinds: make(map[string]Kind, len(kinds))}
	for _, k := range kinds {
		if _, dup := r.kinds[k.Name]; dup {
			panic(fmt.Sprintf("action: kind %q registered twice", k.Name))
		}
		r.kinds[k.Name] = k
	}
	return r
}

// Get returns the kind registered under name.
func (r *Registry) Get(name string) (Kind, error) {
	k, ok := r.kinds[name]
	if !ok {
		return Kind{}, fmt.Errorf("%w: %q", model.ErrUnknownAction, name)
	}
	return k, nil
}

// Names returns every registered name in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.kinds))
	for name := range r.kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Commands returns the sorted names of kinds invocable as commands.
func (r *Registry) Commands() []string {
	var names []string
	for _, name := range r.Names() {
		if r.kinds[name].Flags.IsCommand {
			names = append(names, name)
		}
	}
	return names
}
