package addons

import "sort"

// Registry is filled once by the owner before use and read-only afterwards.
type Registry struct {
	byName map[string]any
}

func New() *Registry {
	return &Registry{byName: map[string]any{}}
}

// Register records impl under name, replacing any earlier registration.
func (r *Registry) Register(name string, impl any) {
	r.byName[name] = impl
}

func (r *Registry) Loaded(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.byName[name]
	return ok
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the add-on registered under name if it implements T.
func Lookup[T any](r *Registry, name string) (T, bool) {
	var zero T
	if r == nil {
		return zero, false
	}
	impl, ok := r.byName[name]
	if !ok {
		return zero, false
	}
	t, ok := impl.(T)
	return t, ok
}
