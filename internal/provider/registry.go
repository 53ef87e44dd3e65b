package provider

import (
	"strings"

	"github.com/smallbiznis/subsync/internal/provider/domain"
)

// Endpoint binds a provider gateway to its webhook verification settings.
type Endpoint struct {
	Name            string
	Gateway         domain.Gateway
	WebhookSecret   string
	SignatureHeader string
}

type Registry struct {
	endpoints map[string]Endpoint
}

func NewRegistry(endpoints ...Endpoint) *Registry {
	registry := &Registry{endpoints: map[string]Endpoint{}}
	for _, endpoint := range endpoints {
		name := strings.ToLower(strings.TrimSpace(endpoint.Name))
		if name == "" || endpoint.Gateway == nil {
			continue
		}
		endpoint.Name = name
		registry.endpoints[name] = endpoint
	}
	return registry
}

func (r *Registry) Lookup(name string) (Endpoint, error) {
	if r == nil {
		return Endpoint{}, domain.ErrUnknownProvider
	}
	endpoint, ok := r.endpoints[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Endpoint{}, domain.ErrUnknownProvider
	}
	return endpoint, nil
}
