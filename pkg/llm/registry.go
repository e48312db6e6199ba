package llm

import (
	"fmt"

	"github.com/kadirpekel/sentinel/pkg/registry"
)

// Registry binds provider names (e.g. "openai", "anthropic",
// "gemini") to Client implementations.
type Registry struct {
	*registry.BaseRegistry[Client]
}

func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Client]()}
}

func (r *Registry) RegisterClient(name string, client Client) error {
	if client == nil {
		return fmt.Errorf("llm: client cannot be nil")
	}
	return r.Register(name, client)
}

func (r *Registry) GetClient(name string) (Client, error) {
	c, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("llm: provider %q not registered", name)
	}
	return c, nil
}
