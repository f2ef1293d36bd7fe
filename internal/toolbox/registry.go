package toolbox

// Registry maps tool names to definitions. All registration happens during
// startup before the first dispatch, so lookups need no locking.
type Registry struct {
	defs  map[string]*Definition
	order []string
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

func (r *Registry) Register(defs ...*Definition) error {
	for _, def := range defs {
		if _, ok := r.defs[def.Name]; ok {
			return Errorf(KindDuplicateTool, "tool %q is already registered", def.Name)
		}
		r.defs[def.Name] = def
		r.order = append(r.order, def.Name)
	}
	return nil
}

func (r *Registry) Lookup(name string) (*Definition, error) {
	def, ok := r.defs[name]
	if !ok {
		return nil, Errorf(KindUnknownTool, "unknown tool %q", name)
	}
	return def, nil
}

// Definitions returns the registered definitions in registration order.
func (r *Registry) Definitions() []*Definition {
	out := make([]*Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name])
	}
	return out
}
