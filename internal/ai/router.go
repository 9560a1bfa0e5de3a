package ai

// DefaultProvider is the free local fallback.
const DefaultProvider = "ollama"

// Router selects a completion provider by name. Empty or unknown names
// fall back to the free local provider so malformed input never routes to
// a paid backend.
type Router struct {
	providers map[string]Provider
}

// NewRouter builds a router over the given providers. One of them should
// be named DefaultProvider.
func NewRouter(providers ...Provider) *Router {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Router{providers: m}
}

// Provider returns the backend for a name, falling back to the default.
func (r *Router) Provider(name string) Provider {
	if name == "" {
		return r.providers[DefaultProvider]
	}
	if p, ok := r.providers[name]; ok {
		return p
	}
	return r.providers[DefaultProvider]
}
