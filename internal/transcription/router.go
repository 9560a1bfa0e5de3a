package transcription

// ParseKind maps a symbolic provider name to an execution strategy.
// Empty or unrecognized names fall back to the free server_local provider:
// malformed input must never silently route to a paid backend.
func ParseKind(name string) Kind {
	switch name {
	case string(KindRemoteOpenAI):
		return KindRemoteOpenAI
	case string(KindServerLocal):
		return KindServerLocal
	case string(KindDesktopLocal):
		return KindDesktopLocal
	default:
		return KindServerLocal
	}
}

// ParseModel normalizes a whisper model name, defaulting to large-v3.
func ParseModel(name string) string {
	switch name {
	case ModelLargeV3, ModelMedium, ModelSmall, ModelBase, ModelTiny:
		return name
	default:
		return ModelLargeV3
	}
}

// Router selects the synchronous provider for a kind. The desktop kind has
// no synchronous provider; the orchestrator routes it through the queue.
type Router struct {
	providers map[Kind]Provider
}

// NewRouter builds a router over the given providers.
func NewRouter(providers ...Provider) *Router {
	m := make(map[Kind]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Router{providers: m}
}

// Provider returns the backend for a kind, or nil when none is configured.
func (r *Router) Provider(kind Kind) Provider {
	return r.providers[kind]
}
