package synth

import (
	"fmt"
	"net/http"
	"sync"
)

// Factory builds the adapter for one provider row.
type Factory func(cfg ProviderConfig) (Synthesizer, error)

// Registry maps provider kinds to adapters. Adapters are built on first use
// and reused while the provider's settings are unchanged; they hold no
// credentials.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	built     map[ProviderConfig]Synthesizer
}

// NewRegistry returns a registry with the OpenAI, ElevenLabs and Google
// adapters. httpClient is used by the plain HTTP adapters.
func NewRegistry(httpClient *http.Client) *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		built:     make(map[ProviderConfig]Synthesizer),
	}
	r.Register(KindOpenAI, func(cfg ProviderConfig) (Synthesizer, error) {
		return NewOpenAI(cfg), nil
	})
	r.Register(KindElevenLabs, func(cfg ProviderConfig) (Synthesizer, error) {
		return NewElevenLabs(cfg, httpClient), nil
	})
	r.Register(KindGoogle, func(cfg ProviderConfig) (Synthesizer, error) {
		return NewGoogle(cfg), nil
	})
	return r
}

// Register adds or replaces the factory for kind.
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
	clear(r.built)
}

// For returns the adapter for the provider. An unknown kind is a permanent
// request error so the affected items fail without a network call.
func (r *Registry) For(cfg ProviderConfig) (Synthesizer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.built[cfg]; ok {
		return s, nil
	}
	f, ok := r.factories[cfg.Kind]
	if !ok {
		return nil, permanent(cfg.ID, fmt.Errorf("unknown provider kind %q", cfg.Kind))
	}
	s, err := f(cfg)
	if err != nil {
		return nil, permanent(cfg.ID, err)
	}
	r.built[cfg] = s
	return s, nil
}
